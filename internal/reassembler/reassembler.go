// Package reassembler collects inbound fragments into complete application
// messages, one buffer per session id (spec.md §4.3). It is grounded on the
// original source's Assembler/AssemblersManager pair: a fixed-capacity
// per-session buffer plus a registry keyed by session id.
package reassembler

import (
	"github.com/dronenet/server/internal/core"
	"github.com/dronenet/server/internal/metrics"
	"github.com/dronenet/server/pkg/wire"
)

// buffer holds the fragments of one in-progress session.
type buffer struct {
	total    uint64
	slots    [][]byte
	received int
}

func newBuffer(total uint64) *buffer {
	return &buffer{total: total, slots: make([][]byte, total)}
}

func (b *buffer) insert(index wire.FragmentIndex, data []byte) error {
	if uint64(index) >= b.total {
		return core.ErrIndexOutOfBounds
	}
	if b.slots[index] == nil {
		b.received++
	}
	b.slots[index] = data
	return nil
}

func (b *buffer) complete() bool {
	return b.received == int(b.total)
}

func (b *buffer) assemble() []byte {
	out := make([]byte, 0, int(b.total)*wire.FrameSize)
	for _, s := range b.slots {
		out = append(out, s...)
	}
	return out
}

// Registry tracks one buffer per session id awaiting reassembly. It is
// owned by a single goroutine (the engine's event loop) and holds no
// internal locking, matching the single-owner discipline used throughout
// this engine (spec.md §5).
type Registry struct {
	sessions map[wire.SessionID]*buffer
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{sessions: make(map[wire.SessionID]*buffer)}
}

// Insert adds one fragment to the buffer for session, creating the buffer
// on first sight of that session id. It returns core.ErrCapacityDoesNotMatch
// if a later fragment claims a different TotalNFragments than the buffer
// was created with, and core.ErrIndexOutOfBounds if FragmentIndex is
// outside that capacity.
func (r *Registry) Insert(session wire.SessionID, frag wire.Fragment) error {
	b, ok := r.sessions[session]
	if !ok {
		b = newBuffer(frag.TotalNFragments)
		r.sessions[session] = b
		metrics.ReassemblySessionsActive.Set(float64(len(r.sessions)))
	} else if b.total != frag.TotalNFragments {
		return core.ErrCapacityDoesNotMatch
	}

	data := make([]byte, frag.Length)
	copy(data, frag.Data[:frag.Length])
	return b.insert(frag.FragmentIndex, data)
}

// Complete reports whether every fragment of session has arrived.
func (r *Registry) Complete(session wire.SessionID) bool {
	b, ok := r.sessions[session]
	return ok && b.complete()
}

// Take removes and returns the assembled payload for session. It returns
// core.ErrUnknownSessionID if the session was never seen, and
// core.ErrIncomplete if the session exists but is not yet complete.
func (r *Registry) Take(session wire.SessionID) ([]byte, error) {
	b, ok := r.sessions[session]
	if !ok {
		return nil, core.ErrUnknownSessionID
	}
	if !b.complete() {
		return nil, core.ErrIncomplete
	}
	delete(r.sessions, session)
	metrics.ReassemblySessionsActive.Set(float64(len(r.sessions)))
	return b.assemble(), nil
}

// Drop discards any in-progress buffer for session without assembling it.
// The engine does not call it.
func (r *Registry) Drop(session wire.SessionID) {
	if _, ok := r.sessions[session]; ok {
		delete(r.sessions, session)
		metrics.ReassemblySessionsActive.Set(float64(len(r.sessions)))
	}
}

// ActiveSessions returns the number of sessions currently buffering
// fragments, for tests and status reporting.
func (r *Registry) ActiveSessions() int {
	return len(r.sessions)
}
