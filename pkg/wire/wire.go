// Package wire defines the engine's data model: node identities, fragments,
// source-routed frames, and the control/event types that cross the engine's
// channel boundaries. It has zero external dependencies by design, the same
// discipline the teacher repo applies to its own core package.
package wire

import "fmt"

// FrameSize is the fixed payload size of one fragment, inherited from the
// overlay protocol. 128 matches the reference implementation's FRAGMENT_DSIZE.
const FrameSize = 128

// NetworkSize bounds the number of distinct nodes the topology can track.
const NetworkSize = 256

// NodeID identifies a node in the overlay. The network is bounded at
// NetworkSize nodes, so a NodeID is always < NetworkSize.
type NodeID uint8

// NodeKind classifies a node. Only Drone nodes may appear as interior hops
// in a source-routed path.
type NodeKind uint8

const (
	Client NodeKind = iota
	Drone
	Server
)

func (k NodeKind) String() string {
	switch k {
	case Client:
		return "client"
	case Drone:
		return "drone"
	case Server:
		return "server"
	default:
		return fmt.Sprintf("nodekind(%d)", uint8(k))
	}
}

// SessionID is assigned by the sender of a multi-fragment message.
// Monotonically increasing from 1, unique per sender within the process
// lifetime.
type SessionID uint64

// FragmentIndex is the zero-based position of a fragment within a message.
type FragmentIndex uint64

// Fragment is one chunk of a larger application payload.
type Fragment struct {
	FragmentIndex   FragmentIndex
	TotalNFragments uint64
	// Length is the number of valid bytes in Data; only the final fragment
	// of a message may have Length < FrameSize.
	Length uint8
	Data   [FrameSize]byte
}

// SourceRoutingHeader names the full end-to-end path of a frame. HopIndex
// is the position of the next hop to process the frame.
type SourceRoutingHeader struct {
	HopIndex uint8
	Hops     []NodeID
}

// NextHop returns the node id the frame should be forwarded to next, and
// whether one exists.
func (h SourceRoutingHeader) NextHop() (NodeID, bool) {
	if int(h.HopIndex) >= len(h.Hops) {
		return 0, false
	}
	return h.Hops[h.HopIndex], true
}

// Source returns the originating node of the path (position 0).
func (h SourceRoutingHeader) Source() NodeID {
	return h.Hops[0]
}

// Dest returns the final hop of the path.
func (h SourceRoutingHeader) Dest() NodeID {
	return h.Hops[len(h.Hops)-1]
}

// NackKind enumerates the reasons a downstream node reports delivery failure.
type NackKind uint8

const (
	NackDropped NackKind = iota
	NackDestinationIsDrone
	NackErrorInRouting
	NackUnexpectedRecipient
)

func (k NackKind) String() string {
	switch k {
	case NackDropped:
		return "dropped"
	case NackDestinationIsDrone:
		return "destination_is_drone"
	case NackErrorInRouting:
		return "error_in_routing"
	case NackUnexpectedRecipient:
		return "unexpected_recipient"
	default:
		return fmt.Sprintf("nackkind(%d)", uint8(k))
	}
}

// FrameKind tags the payload carried by a Frame.
type FrameKind uint8

const (
	KindMsgFragment FrameKind = iota
	KindAck
	KindNack
	KindFloodRequest
	KindFloodResponse
)

// PathEntry is one (node, kind) pair accrued in a flood's path trace.
type PathEntry struct {
	Node NodeID
	Kind NodeKind
}

// Frame is a source-routed packet carrying exactly one typed body, selected
// by Kind. This mirrors the spec's tagged-variant Frame with a Go-idiomatic
// flat struct (unused fields for the frame's kind are simply left zero)
// rather than an interface hierarchy, matching the teacher's plain-struct
// packet types (core.RawPacket / core.OutputPacket).
type Frame struct {
	Kind      FrameKind
	Routing   SourceRoutingHeader
	SessionID SessionID

	// KindMsgFragment
	Fragment Fragment

	// KindAck / KindNack
	FragmentIndex FragmentIndex
	NackKind      NackKind
	// ErrorInRouting / UnexpectedRecipient carry the offending node id.
	NackNode NodeID

	// KindFloodRequest / KindFloodResponse
	FloodID    uint64
	Initiator  NodeID
	PathTrace  []PathEntry
}
