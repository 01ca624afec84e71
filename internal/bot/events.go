package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"discord-casino-bot/internal/session"
)

// ErrUnknownSession is returned when waiting on a session nobody
// registered.
var ErrUnknownSession = errors.New("unknown session")

// sessionBuffer is how many button presses a session can queue before
// further presses are dropped.
const sessionBuffer = 16

// Dispatcher fans component interactions out to the sessions waiting
// for them. A session registers before it starts waiting; presses for
// unregistered sessions are dropped.
type Dispatcher struct {
	mu       sync.Mutex
	sessions map[string]chan *session.Event
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{sessions: make(map[string]chan *session.Event)}
}

// Register opens an event queue for a session. The returned cancel
// must be called when the session ends.
func (d *Dispatcher) Register(sessionID string) func() {
	ch := make(chan *session.Event, sessionBuffer)

	d.mu.Lock()
	d.sessions[sessionID] = ch
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.sessions, sessionID)
		d.mu.Unlock()
	}
}

// Dispatch routes an event to its session's queue. It reports whether
// anybody was listening; full queues drop the event.
func (d *Dispatcher) Dispatch(ev *session.Event) bool {
	d.mu.Lock()
	ch, ok := d.sessions[ev.SessionID]
	d.mu.Unlock()
	if !ok {
		return false
	}

	select {
	case ch <- ev:
		return true
	default:
		return false
	}
}

// WaitNext blocks for the session's next event. A timeout yields a nil
// event with no error, matching what the session controller treats as
// the player walking away.
func (d *Dispatcher) WaitNext(ctx context.Context, sessionID string, timeout time.Duration) (*session.Event, error) {
	d.mu.Lock()
	ch, ok := d.sessions[sessionID]
	d.mu.Unlock()
	if !ok {
		return nil, ErrUnknownSession
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ev := <-ch:
		return ev, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
