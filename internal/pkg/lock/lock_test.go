package lock

import (
	"sync"
	"testing"

	"pgregory.net/rapid"
)

// TestConcurrentBalanceSafetyProperty checks that concurrent
// read-modify-write operations on the same account, serialized through
// the lock, produce the same final balance as sequential execution.
func TestConcurrentBalanceSafetyProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initialBalance := rapid.Int64Range(1000, 100000).Draw(t, "initialBalance")
		numOps := rapid.IntRange(2, 20).Draw(t, "numOps")

		amounts := make([]int64, numOps)
		expected := initialBalance
		for i := range amounts {
			amounts[i] = rapid.Int64Range(-500, 500).Draw(t, "amount")
			expected += amounts[i]
		}

		accountID := rapid.Int64Range(1, 1000000).Draw(t, "accountID")

		al := NewAccountLock()
		balance := initialBalance

		var wg sync.WaitGroup
		wg.Add(numOps)
		for _, amount := range amounts {
			go func(amount int64) {
				defer wg.Done()
				al.Lock(accountID)
				defer al.Unlock(accountID)
				balance += amount
			}(amount)
		}
		wg.Wait()

		if balance != expected {
			t.Fatalf("balance mismatch: expected %d, got %d (initial=%d, numOps=%d)",
				expected, balance, initialBalance, numOps)
		}
	})
}

// TestWithLockSerializesProperty checks that WithLock serializes the
// closure the same way explicit Lock/Unlock does.
func TestWithLockSerializesProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initialBalance := rapid.Int64Range(1000, 100000).Draw(t, "initialBalance")
		numOps := rapid.IntRange(5, 30).Draw(t, "numOps")
		amountPerOp := rapid.Int64Range(1, 100).Draw(t, "amountPerOp")
		accountID := rapid.Int64Range(1, 1000000).Draw(t, "accountID")

		expected := initialBalance + int64(numOps)*amountPerOp

		al := NewAccountLock()
		balance := initialBalance

		var wg sync.WaitGroup
		wg.Add(numOps)
		for i := 0; i < numOps; i++ {
			go func() {
				defer wg.Done()
				_ = al.WithLock(accountID, func() error {
					balance += amountPerOp
					return nil
				})
			}()
		}
		wg.Wait()

		if balance != expected {
			t.Fatalf("balance mismatch with WithLock: expected %d, got %d", expected, balance)
		}
	})
}

// TestIndependentAccountLocksProperty checks that locks for different
// accounts do not interfere with each other's updates.
func TestIndependentAccountLocksProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numAccounts := rapid.IntRange(2, 10).Draw(t, "numAccounts")
		opsPerAccount := rapid.IntRange(5, 20).Draw(t, "opsPerAccount")

		al := NewAccountLock()

		balances := make([]int64, numAccounts)
		initial := make([]int64, numAccounts)
		for i := range balances {
			initial[i] = rapid.Int64Range(1000, 10000).Draw(t, "initialBalance")
			balances[i] = initial[i]
		}

		var wg sync.WaitGroup
		wg.Add(numAccounts * opsPerAccount)
		for i := 0; i < numAccounts; i++ {
			for j := 0; j < opsPerAccount; j++ {
				go func(idx int) {
					defer wg.Done()
					accountID := int64(idx + 1)
					al.Lock(accountID)
					defer al.Unlock(accountID)
					balances[idx] += 10
				}(i)
			}
		}
		wg.Wait()

		for i := range balances {
			want := initial[i] + int64(opsPerAccount)*10
			if balances[i] != want {
				t.Fatalf("account %d balance mismatch: expected %d, got %d", i+1, want, balances[i])
			}
		}
	})
}

func TestLockUnlockSymmetry(t *testing.T) {
	al := NewAccountLock()
	for i := 0; i < 50; i++ {
		al.Lock(7)
		al.Unlock(7)
	}
	ran := false
	if err := al.WithLock(7, func() error {
		ran = true
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if !ran {
		t.Fatal("lock should be available after symmetric lock/unlock cycles")
	}
}
