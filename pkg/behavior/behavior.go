// Package behavior defines the application adapter contract (spec.md §4.7)
// and its factory registry. Generalized from the teacher's pkg/plugin
// Capturer/Parser/Processor/Reporter factory-registry pattern down to the
// single Behavior kind this engine needs.
package behavior

import (
	"fmt"
	"sort"

	"github.com/dronenet/server/internal/core"
	"github.com/dronenet/server/pkg/wire"
)

// Behavior handles reassembled application payloads for one server type
// (chat, text-content, media-content). The engine never inspects payload
// bytes itself; it only serializes Handle's output and fragments it toward
// Dest.
type Behavior interface {
	// Handle processes an assembled payload from initiator and returns the
	// response bytes and the node they should be routed to. Handle never
	// blocks and never fails silently: implementations convert internal
	// errors into a serialized response addressed back to initiator.
	Handle(payload []byte, initiator wire.NodeID) (response []byte, dest wire.NodeID)

	// SetPath configures the filesystem root a content-serving behavior
	// reads from. Behaviors that don't serve files (chat) return
	// core.ErrWrongServerType.
	SetPath(path string) error
}

// Factory constructs an empty Behavior instance. Construction is separated
// from configuration (SetPath) the same way the teacher's plugin Factory
// separates allocation from Init().
type Factory func() Behavior

var registry = make(map[string]Factory)

// Register adds a behavior factory under name. It panics on empty name,
// nil factory, or duplicate registration, matching the teacher's
// register-time invariant: a naming collision is a compile-time bug, not a
// runtime condition to recover from.
func Register(name string, factory Factory) {
	if name == "" {
		panic("behavior: name cannot be empty")
	}
	if factory == nil {
		panic("behavior: factory cannot be nil")
	}
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("behavior: %q already registered", name))
	}
	registry[name] = factory
}

// New constructs a fresh Behavior instance registered under name. It
// returns core.ErrBehaviorNotFound if no such behavior is registered.
func New(name string) (Behavior, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("behavior %q: %w", name, core.ErrBehaviorNotFound)
	}
	return factory(), nil
}

// List returns the sorted names of every registered behavior.
func List() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
