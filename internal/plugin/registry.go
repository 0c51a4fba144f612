// internal/plugin/registry.go
package plugin

import (
	"encoding/json"

	"github.com/chainwars-gg/roomsync/internal/protocol"
)

// Plugin is a capability bundle for one game, keyed by its stable path.
// Plugins are pure with respect to the engine: the engine never inspects
// game-specific fields, it only shuttles frames in and state out.
type Plugin interface {
	// Path is the stable game identifier the server references in bootstrap
	// frames and game-scoped messages.
	Path() string

	// InitialState seeds the game state slot when the lobby bootstraps.
	InitialState() interface{}

	// Reduce folds one game-scoped frame into the current state and returns
	// the next state. Reducers must not mutate the passed-in state.
	Reduce(state interface{}, frame protocol.GameFrame) interface{}
}

// SnapshotImporter is implemented by plugins that can merge a bulk
// reconnection snapshot into live-accumulated state instead of discarding
// it. Plugins lacking it leave the slot unchanged on a snapshot frame.
type SnapshotImporter interface {
	ImportSnapshot(state interface{}, snapshot json.RawMessage) interface{}
}

// Registry is an immutable lookup table from game path to plugin.
// Registration happens once at process start.
type Registry struct {
	plugins map[string]Plugin
	order   []string
}

// NewRegistry builds the table. A later plugin with a duplicate path
// replaces the earlier one.
func NewRegistry(plugins ...Plugin) *Registry {
	r := &Registry{plugins: make(map[string]Plugin, len(plugins))}
	for _, p := range plugins {
		if _, exists := r.plugins[p.Path()]; !exists {
			r.order = append(r.order, p.Path())
		}
		r.plugins[p.Path()] = p
	}
	return r
}

// Get returns the plugin for a game path, or nil.
func (r *Registry) Get(path string) Plugin {
	return r.plugins[path]
}

// Has reports whether a plugin is registered for the path.
func (r *Registry) Has(path string) bool {
	_, ok := r.plugins[path]
	return ok
}

// All returns the registered plugins in registration order.
func (r *Registry) All() []Plugin {
	out := make([]Plugin, 0, len(r.order))
	for _, path := range r.order {
		out = append(out, r.plugins[path])
	}
	return out
}
