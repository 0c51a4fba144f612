// internal/plugin/slot.go
package plugin

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/chainwars-gg/roomsync/internal/protocol"
)

// Slot is the single mutable cell holding the active plugin's reducer
// output. It is owned by whichever plugin is currently active; activating a
// different plugin discards the previous value entirely.
type Slot struct {
	mu     sync.Mutex
	active Plugin
	state  interface{}
	subs   []func()
	logger *logrus.Logger
}

// NewSlot returns an empty slot.
func NewSlot(logger *logrus.Logger) *Slot {
	if logger == nil {
		logger = logrus.New()
	}
	return &Slot{logger: logger}
}

// Activate installs a plugin and seeds the slot with its initial state,
// dropping whatever the previous plugin left behind. A nil plugin empties
// the slot (unknown game path on bootstrap).
func (s *Slot) Activate(p Plugin) {
	s.mu.Lock()
	s.active = p
	if p == nil {
		s.state = nil
	} else {
		s.state = p.InitialState()
	}
	s.mu.Unlock()
	s.notify()
}

// Apply folds one game frame through the active plugin's reducer. Frames
// arriving with no active plugin are logged and dropped.
func (s *Slot) Apply(frame protocol.GameFrame) {
	s.mu.Lock()
	p := s.active
	if p == nil {
		s.mu.Unlock()
		s.logger.Warnf("game frame for %q dropped: no active plugin", frame.Game)
		return
	}
	s.state = p.Reduce(s.state, frame)
	s.mu.Unlock()
	s.notify()
}

// ImportSnapshot merges a bulk reconnection snapshot through the plugin's
// importer so live-accumulated state is reconciled rather than discarded.
// Plugins without an importer leave the slot unchanged.
func (s *Slot) ImportSnapshot(raw json.RawMessage) {
	s.mu.Lock()
	p := s.active
	if p == nil {
		s.mu.Unlock()
		s.logger.Warnf("gameState snapshot dropped: no active plugin")
		return
	}
	imp, ok := p.(SnapshotImporter)
	if !ok {
		s.mu.Unlock()
		s.logger.Warnf("plugin %q has no snapshot importer; keeping live state", p.Path())
		return
	}
	s.state = imp.ImportSnapshot(s.state, raw)
	s.mu.Unlock()
	s.notify()
}

// State returns the current reducer output (nil when no game is active).
func (s *Slot) State() interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Active returns the currently active plugin, or nil.
func (s *Slot) Active() Plugin {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Subscribe registers a change listener and returns an unsubscribe func.
func (s *Slot) Subscribe(fn func()) func() {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	idx := len(s.subs) - 1
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.subs[idx] = nil
		s.mu.Unlock()
	}
}

func (s *Slot) notify() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		if fn != nil {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
