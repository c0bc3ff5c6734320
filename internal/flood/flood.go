// Package flood implements topology discovery: emitting FloodRequest
// probes, answering them as a terminal node, and integrating the path
// traces carried back by FloodResponse frames into the topology map
// (spec.md §4.5). Grounded on original_source/topology.rs's reset/
// is_updating pairing, generalized into the probe/response exchange the
// Rust source delegates to the wider simulation.
package flood

import (
	"github.com/dronenet/server/internal/metrics"
	"github.com/dronenet/server/internal/topology"
	"github.com/dronenet/server/pkg/wire"
	"golang.org/x/sync/singleflight"
)

// Handler drives the flood protocol for one engine instance.
type Handler struct {
	topo      *topology.Topology
	nextFlood uint64

	// dedup merges StartDiscovery calls that overlap in time from different
	// goroutines into a single reset + probe emission. Calls made one after
	// another (as the engine's single loop goroutine makes them) are not
	// merged: each one resets and emits under a new flood id.
	dedup singleflight.Group
}

// New creates a flood Handler bound to topo, with flood ids starting at 1.
func New(topo *topology.Topology) *Handler {
	return &Handler{topo: topo, nextFlood: 1}
}

// StartDiscovery resets the topology and returns one FloodRequest frame per
// current neighbor, addressed directly to that neighbor. Only calls that
// are in flight at the same moment on different goroutines share one
// reset; sequential calls each reset the topology and use a new flood id.
func (h *Handler) StartDiscovery(neighbors []wire.NodeID) []wire.Frame {
	result, _, _ := h.dedup.Do("start_discovery", func() (interface{}, error) {
		h.topo.Reset()

		floodID := h.nextFlood
		h.nextFlood++

		frames := make([]wire.Frame, 0, len(neighbors))
		for _, n := range neighbors {
			frames = append(frames, wire.Frame{
				Kind:      wire.KindFloodRequest,
				SessionID: 0,
				Routing: wire.SourceRoutingHeader{
					HopIndex: 1,
					Hops:     []wire.NodeID{h.topo.Self(), n},
				},
				FloodID:   floodID,
				Initiator: h.topo.Self(),
				PathTrace: []wire.PathEntry{{Node: h.topo.Self(), Kind: wire.Server}},
			})
			metrics.FloodProbesEmittedTotal.Inc()
		}
		return frames, nil
	})
	return result.([]wire.Frame)
}

// HandleRequest answers an inbound FloodRequest. This engine is always a
// terminal node: it never forwards the request, it only appends itself to
// the path trace and returns along the reversed route (spec.md §4.5).
func (h *Handler) HandleRequest(req wire.Frame) wire.Frame {
	trace := append(append([]wire.PathEntry{}, req.PathTrace...), wire.PathEntry{
		Node: h.topo.Self(),
		Kind: wire.Server,
	})

	hops := make([]wire.NodeID, len(trace))
	for i, e := range trace {
		hops[len(trace)-1-i] = e.Node
	}
	if len(hops) == 0 || hops[len(hops)-1] != req.Initiator {
		hops = append(hops, req.Initiator)
	}

	return wire.Frame{
		Kind:      wire.KindFloodResponse,
		SessionID: req.SessionID,
		Routing:   wire.SourceRoutingHeader{HopIndex: 1, Hops: hops},
		FloodID:   req.FloodID,
		Initiator: req.Initiator,
		PathTrace: trace,
	}
}

// HandleResponse integrates an inbound FloodResponse's path trace into the
// topology map: every adjacent pair in the trace becomes a symmetric edge.
func (h *Handler) HandleResponse(resp wire.Frame) {
	trace := resp.PathTrace
	for i := 0; i+1 < len(trace); i++ {
		a, b := trace[i], trace[i+1]
		h.topo.InsertEdge(a.Node, a.Kind, b.Node, b.Kind)
	}
}
