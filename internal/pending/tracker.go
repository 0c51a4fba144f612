// internal/pending/tracker.go
package pending

import (
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Tracker correlates user-initiated commands with their eventual server
// acknowledgement, driving optimistic "loading" UI state. Keys are built
// from the command type plus the target id where relevant, e.g.
// "kick-<userId>", so two concurrent kicks do not block each other's UI.
//
// Every marked key is cleared by exactly one of: a matching success frame, a
// mapped error frame, or connection teardown. Nothing stays pending forever.
type Tracker struct {
	mu       sync.Mutex
	inflight map[string]bool
	subs     []func()
	logger   *logrus.Logger
}

// NewTracker returns an empty tracker.
func NewTracker(logger *logrus.Logger) *Tracker {
	if logger == nil {
		logger = logrus.New()
	}
	return &Tracker{
		inflight: make(map[string]bool),
		logger:   logger,
	}
}

// Key builds a pending-action key from a command type and optional target
// parts: Key("kick", userID) -> "kick-<userID>".
func Key(action string, parts ...string) string {
	if len(parts) == 0 {
		return action
	}
	return action + "-" + strings.Join(parts, "-")
}

// Mark flags the key as in-flight.
func (t *Tracker) Mark(key string) {
	t.mu.Lock()
	t.inflight[key] = true
	t.mu.Unlock()
	t.notify()
}

// Resolve clears one key. A key that was never marked is a no-op.
func (t *Tracker) Resolve(key string) {
	t.mu.Lock()
	_, ok := t.inflight[key]
	delete(t.inflight, key)
	t.mu.Unlock()
	if ok {
		t.notify()
	}
}

// ResolveFamily clears every in-flight key belonging to the given action
// family, i.e. the key equals the prefix or starts with prefix+"-". This is
// the conservative answer to error frames that carry no target id: one
// KICK_FAILED clears all in-flight kicks.
func (t *Tracker) ResolveFamily(prefix string) {
	t.mu.Lock()
	cleared := 0
	for key := range t.inflight {
		if key == prefix || strings.HasPrefix(key, prefix+"-") {
			delete(t.inflight, key)
			cleared++
		}
	}
	t.mu.Unlock()
	if cleared > 0 {
		t.logger.Debugf("pending: cleared %d action(s) in family %q", cleared, prefix)
		t.notify()
	}
}

// Clear drops every in-flight key. Invoked on connection teardown so no UI
// is left stuck in a loading state after the socket is gone.
func (t *Tracker) Clear() {
	t.mu.Lock()
	n := len(t.inflight)
	t.inflight = make(map[string]bool)
	t.mu.Unlock()
	if n > 0 {
		t.logger.Debugf("pending: teardown cleared %d in-flight action(s)", n)
		t.notify()
	}
}

// IsPending reports whether the key is currently in flight.
func (t *Tracker) IsPending(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inflight[key]
}

// Snapshot returns a copy of all in-flight keys.
func (t *Tracker) Snapshot() map[string]bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]bool, len(t.inflight))
	for k := range t.inflight {
		out[k] = true
	}
	return out
}

// Subscribe registers a change listener and returns an unsubscribe func.
func (t *Tracker) Subscribe(fn func()) func() {
	t.mu.Lock()
	t.subs = append(t.subs, fn)
	idx := len(t.subs) - 1
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		t.subs[idx] = nil
		t.mu.Unlock()
	}
}

// notify invokes subscribers outside the lock.
func (t *Tracker) notify() {
	t.mu.Lock()
	subs := make([]func(), 0, len(t.subs))
	for _, fn := range t.subs {
		if fn != nil {
			subs = append(subs, fn)
		}
	}
	t.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}
