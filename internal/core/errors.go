// Package core defines the sentinel errors shared across the engine's
// packages, plus the handful of error values that carry structured data.
package core

import (
	"errors"

	"github.com/dronenet/server/pkg/wire"
)

// Sentinel errors following the ADR-021 error handling pattern: one
// package-prefixed sentinel per failure mode, compared with errors.Is.
var (
	// Reassembly errors (§4.3).
	ErrCapacityDoesNotMatch = errors.New("engine: fragment total_n_fragments does not match existing session")
	ErrIndexOutOfBounds     = errors.New("engine: fragment_index out of bounds for session capacity")
	ErrIncomplete           = errors.New("engine: session retrieval requested before all fragments arrived")
	ErrUnknownSessionID     = errors.New("engine: retrieval requested for unknown session id")

	// Routing errors (§4.2).
	ErrSourceIsDest = errors.New("engine: routing source equals destination")
	ErrNoPathFound  = errors.New("engine: no path satisfying the interior-hop constraint exists")

	// Behavior adapter errors (§4.7).
	ErrWrongServerType = errors.New("engine: server type does not support this operation")
	ErrBehaviorNotFound = errors.New("engine: no behavior registered under that name")

	// Control-plane / daemon errors.
	ErrDaemonNotRunning = errors.New("engine: daemon not running")
	ErrNeighborUnknown  = errors.New("engine: neighbor not found")
)

// RoutingError wraps ErrorInRouting/UnexpectedRecipient NACK kinds, both of
// which carry the offending NodeId (spec.md §3, NackKind).
type RoutingError struct {
	Node wire.NodeID
	Err  error
}

func (e *RoutingError) Error() string {
	return e.Err.Error()
}

func (e *RoutingError) Unwrap() error {
	return e.Err
}

// Sentinels wrapped by RoutingError.
var (
	ErrErrorInRouting      = errors.New("engine: downstream reported error in routing")
	ErrUnexpectedRecipient = errors.New("engine: downstream reported unexpected recipient")
)
