// Package topology implements the engine's view of the overlay network: a
// symmetric adjacency matrix with per-node kind and learned drop statistics,
// plus drop-rate-weighted shortest-path routing (spec.md §4.2).
package topology

import (
	"container/heap"
	"time"

	"github.com/dronenet/server/internal/core"
	"github.com/dronenet/server/internal/metrics"
	"github.com/dronenet/server/pkg/wire"
)

// UpdateGrace is the window after a reset during which missing routes are
// expected and should not trigger another reset (spec.md §4.2). The spec
// leaves the exact value to the implementer within 2-3 seconds.
const UpdateGrace = 3 * time.Second

// nodeStats holds the Laplace-smoothed success/failure counters for one
// node, initialized to {1,1} per spec.md §3.
type nodeStats struct {
	success float64
	failure float64
}

// dropRate returns the conditional marginal drop probability p(v) from
// spec.md §4.2. The smoothed initialization means the denominator is never
// zero.
func (s nodeStats) dropRate() float64 {
	return s.failure / (s.success + s.failure)
}

// Topology is the engine's owned, single-goroutine view of the network. It
// is never accessed concurrently (spec.md §5), so no internal locking is
// used — matching the teacher's own zero-dependency, single-owner core
// types.
type Topology struct {
	self NodeID

	graph [wire.NetworkSize]bitset256
	kinds [wire.NetworkSize]wire.NodeKind
	known [wire.NetworkSize]bool // a node has been referenced by an edge

	// stats persist across Reset (learned drop behavior is durable).
	stats [wire.NetworkSize]nodeStats

	lastReset time.Time
}

// NodeID is re-exported for package-local readability.
type NodeID = wire.NodeID

// New creates a topology with self pinned to wire.Server and all
// Laplace-smoothed counters initialized to {1,1}. lastReset is backdated so
// IsUpdating() is false immediately, matching the original source's
// `Instant::now() - ESTIMATED_UPDATE_TIME` initialization.
func New(self NodeID) *Topology {
	t := &Topology{self: self}
	for i := range t.stats {
		t.stats[i] = nodeStats{success: 1, failure: 1}
	}
	t.kinds[self] = wire.Server
	t.known[self] = true
	t.lastReset = time.Now().Add(-UpdateGrace)
	return t
}

// Self returns the engine's own node id.
func (t *Topology) Self() NodeID {
	return t.self
}

// InsertEdge sets adjacency both ways and updates each node's kind, unless
// the node is the engine's own id (self-kind is protected, spec.md §4.2).
func (t *Topology) InsertEdge(a NodeID, kindA wire.NodeKind, b NodeID, kindB wire.NodeKind) {
	before := t.edgeCount()

	t.graph[a].set(uint8(b), true)
	t.graph[b].set(uint8(a), true)
	t.known[a] = true
	t.known[b] = true

	if a != t.self {
		t.kinds[a] = kindA
	}
	if b != t.self {
		t.kinds[b] = kindB
	}

	if after := t.edgeCount(); after != before {
		metrics.TopologyEdges.Set(float64(after))
	}
}

// RemoveEdge clears adjacency both ways.
func (t *Topology) RemoveEdge(a, b NodeID) {
	t.graph[a].set(uint8(b), false)
	t.graph[b].set(uint8(a), false)
	metrics.TopologyEdges.Set(float64(t.edgeCount()))
}

// ObserveSuccess increments the success counter for node.
func (t *Topology) ObserveSuccess(node NodeID) {
	t.stats[node].success++
}

// ObserveFailure increments the failure counter for node.
func (t *Topology) ObserveFailure(node NodeID) {
	t.stats[node].failure++
}

// Counters returns the raw (success, failure) counters for node, primarily
// for tests asserting on learned drop behavior (spec.md §8, S2/S3).
func (t *Topology) Counters(node NodeID) (success, failure float64) {
	s := t.stats[node]
	return s.success, s.failure
}

// Reset clears all adjacency and kind information and records the current
// time as last_reset. Success/failure counters are preserved (spec.md §4.2:
// "learned drop behavior is durable").
func (t *Topology) Reset() {
	for i := range t.graph {
		t.graph[i] = bitset256{}
		t.known[i] = false
	}
	for i := range t.kinds {
		t.kinds[i] = 0
	}
	t.kinds[t.self] = wire.Server
	t.known[t.self] = true
	t.lastReset = time.Now()
	metrics.TopologyResetsTotal.Inc()
	metrics.TopologyEdges.Set(0)
}

// IsUpdating reports whether the engine is still within the grace window
// following the last reset (spec.md §4.2).
func (t *Topology) IsUpdating() bool {
	return time.Since(t.lastReset) < UpdateGrace
}

// Neighbors returns the set of nodes adjacent to node, in ascending order.
func (t *Topology) Neighbors(node NodeID) []NodeID {
	var out []NodeID
	t.graph[node].forEach(func(i uint8) {
		out = append(out, NodeID(i))
	})
	return out
}

// Kind returns the recorded kind of node.
func (t *Topology) Kind(node NodeID) wire.NodeKind {
	return t.kinds[node]
}

// Known reports whether node has ever appeared as an edge endpoint since
// the last Reset; RemoveEdge does not clear it, so it tells "never seen"
// apart from "seen but currently disconnected".
func (t *Topology) Known(node NodeID) bool {
	return t.known[node]
}

// EdgeCount returns the current number of undirected edges known to the
// topology, for status/stats reporting.
func (t *Topology) EdgeCount() int {
	return t.edgeCount()
}

func (t *Topology) edgeCount() int {
	total := 0
	for i := range t.graph {
		total += t.graph[i].count()
	}
	// Every edge is counted from both endpoints.
	return total / 2
}

// heapItem is one entry in the Dijkstra priority queue.
type heapItem struct {
	node NodeID
	cost float64
	seq  int // insertion order, for stable tie-breaking
}

type priorityQueue []heapItem

func (q priorityQueue) Len() int { return len(q) }
func (q priorityQueue) Less(i, j int) bool {
	if q[i].cost != q[j].cost {
		return q[i].cost < q[j].cost
	}
	return q[i].seq < q[j].seq
}
func (q priorityQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *priorityQueue) Push(x any)        { *q = append(*q, x.(heapItem)) }
func (q *priorityQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// Route returns a drop-rate-minimizing path from src to dst, starting at
// src and ending at dst, where every interior hop is a Drone (spec.md
// §4.2). Ties are broken by first-popped order, matching the spec's
// "stable with heap ordering" note: a monotonically increasing insertion
// sequence number is carried in each heap item specifically because Go's
// container/heap does not guarantee FIFO ordering among equal keys.
func (t *Topology) Route(src, dst NodeID) ([]NodeID, error) {
	if src == dst {
		metrics.RoutingFailuresTotal.WithLabelValues("source_is_dest").Inc()
		return nil, core.ErrSourceIsDest
	}

	dist := make(map[NodeID]float64, wire.NetworkSize)
	pred := make(map[NodeID]NodeID, wire.NetworkSize)
	visited := make(map[NodeID]bool, wire.NetworkSize)

	pq := &priorityQueue{}
	heap.Init(pq)
	seq := 0
	push := func(node NodeID, cost float64) {
		heap.Push(pq, heapItem{node: node, cost: cost, seq: seq})
		seq++
	}

	dist[src] = 0
	push(src, 0)

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(heapItem)
		if visited[cur.node] {
			continue
		}
		visited[cur.node] = true

		if cur.node == dst {
			return t.reconstruct(pred, src, dst), nil
		}

		for _, v := range t.Neighbors(cur.node) {
			if visited[v] {
				continue
			}
			// Interior-hop constraint: once we've moved past the source,
			// only Drone nodes (or the final destination) are admissible.
			if v != dst && t.kinds[v] != wire.Drone {
				continue
			}

			p := t.stats[v].dropRate()
			metrics.TopologyDropRate.WithLabelValues(nodeLabel(v)).Observe(p)
			cost := cur.cost + (1-cur.cost)*p

			if existing, ok := dist[v]; !ok || cost < existing {
				dist[v] = cost
				pred[v] = cur.node
				push(v, cost)
			}
		}
	}

	metrics.RoutingFailuresTotal.WithLabelValues("no_path_found").Inc()
	return nil, core.ErrNoPathFound
}

func (t *Topology) reconstruct(pred map[NodeID]NodeID, src, dst NodeID) []NodeID {
	path := []NodeID{dst}
	cur := dst
	for cur != src {
		p, ok := pred[cur]
		if !ok {
			break
		}
		path = append(path, p)
		cur = p
	}
	// Reverse in place.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

func nodeLabel(n NodeID) string {
	return string([]byte{'0' + byte(n/100%10), '0' + byte(n/10%10), '0' + byte(n%10)})
}
