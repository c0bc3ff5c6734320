// Package engine implements the server endpoint's single cooperative event
// loop: a biased select over control, packet, and retransmit work that
// drives the topology map, reassembler, fragmenter, and flood handler
// (spec.md §4.1, §5). Grounded on the teacher's internal/pipeline.Pipeline
// for the goroutine/channel/context shape, generalized from its two-
// goroutine capture/process split to this engine's single-goroutine,
// three-source select loop.
package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dronenet/server/internal/core"
	"github.com/dronenet/server/internal/flood"
	"github.com/dronenet/server/internal/fragmenter"
	"github.com/dronenet/server/internal/metrics"
	"github.com/dronenet/server/internal/reassembler"
	"github.com/dronenet/server/internal/topology"
	"github.com/dronenet/server/pkg/behavior"
	"github.com/dronenet/server/pkg/wire"
)

// Default channel buffer sizes when Config leaves them zero.
const (
	defaultCommandBuf = 16
	defaultPacketBuf  = 256
	defaultEventBuf   = 256
)

// Config configures a new Engine.
type Config struct {
	Self     wire.NodeID
	Behavior behavior.Behavior

	CommandBuf int
	PacketBuf  int
	EventBuf   int

	Logger *slog.Logger
}

// Engine is the server endpoint's reliable-transport core. All of its state
// (topology, reassembler, fragmenter, neighbor map) is touched only from
// Run's goroutine; Commands/Packets/Events are the only cross-goroutine
// boundaries (spec.md §5).
type Engine struct {
	topo     *topology.Topology
	reasm    *reassembler.Registry
	frag     *fragmenter.Fragmenter
	flood    *flood.Handler
	behavior behavior.Behavior

	neighbors map[wire.NodeID]chan<- wire.Frame

	commands chan wire.Command
	packets  chan wire.Frame
	events   chan wire.Event

	log *slog.Logger
}

// New builds an Engine. If cfg.Behavior is nil, SetContentPath fails with
// core.ErrWrongServerType and completed messages are logged and dropped;
// no command installs a behavior after construction.
func New(cfg Config) *Engine {
	if cfg.CommandBuf == 0 {
		cfg.CommandBuf = defaultCommandBuf
	}
	if cfg.PacketBuf == 0 {
		cfg.PacketBuf = defaultPacketBuf
	}
	if cfg.EventBuf == 0 {
		cfg.EventBuf = defaultEventBuf
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	topo := topology.New(cfg.Self)

	return &Engine{
		topo:      topo,
		reasm:     reassembler.New(),
		frag:      fragmenter.New(),
		flood:     flood.New(topo),
		behavior:  cfg.Behavior,
		neighbors: make(map[wire.NodeID]chan<- wire.Frame),
		commands:  make(chan wire.Command, cfg.CommandBuf),
		packets:   make(chan wire.Frame, cfg.PacketBuf),
		events:    make(chan wire.Event, cfg.EventBuf),
		log:       cfg.Logger,
	}
}

// Commands returns the send endpoint for control-plane commands.
func (e *Engine) Commands() chan<- wire.Command {
	return e.commands
}

// Packets returns the send endpoint for inbound frames.
func (e *Engine) Packets() chan<- wire.Frame {
	return e.packets
}

// Events returns the receive endpoint for outbound notifications.
func (e *Engine) Events() <-chan wire.Event {
	return e.events
}

// Run drives the event loop until ctx is cancelled or a Crash command is
// processed. It performs a biased select in priority order — command,
// then packet, then at most one retransmit-queue send — per spec.md §4.1:
// a single native select cannot express priority among simultaneously
// ready cases, so each tier is peeked with its own non-blocking select
// before falling through to the next. The loop blocks only in the final
// select, when no command, packet, or send is pending — its sole
// suspension point (spec.md §5).
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-e.commands:
			metrics.LoopIterationsTotal.WithLabelValues("command").Inc()
			if e.handleCommand(cmd) {
				return
			}
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return
		case cmd := <-e.commands:
			metrics.LoopIterationsTotal.WithLabelValues("command").Inc()
			if e.handleCommand(cmd) {
				return
			}
			continue
		case pkt := <-e.packets:
			metrics.LoopIterationsTotal.WithLabelValues("packet").Inc()
			e.handleFrame(pkt)
			continue
		default:
		}

		if e.trySendNext() {
			metrics.LoopIterationsTotal.WithLabelValues("retransmit").Inc()
			continue
		}

		select {
		case <-ctx.Done():
			return
		case cmd := <-e.commands:
			metrics.LoopIterationsTotal.WithLabelValues("command").Inc()
			if e.handleCommand(cmd) {
				return
			}
		case pkt := <-e.packets:
			metrics.LoopIterationsTotal.WithLabelValues("packet").Inc()
			e.handleFrame(pkt)
		}
	}
}

// handleCommand applies one control-plane command. It reports true only
// for Crash, signaling Run to stop.
func (e *Engine) handleCommand(cmd wire.Command) bool {
	switch cmd.Kind {
	case wire.CmdAddNeighbor:
		e.neighbors[cmd.NeighborID] = cmd.SendCh
		reportDone(cmd.Done, nil)

	case wire.CmdRemoveNeighbor:
		delete(e.neighbors, cmd.NeighborID)
		e.topo.RemoveEdge(e.topo.Self(), cmd.NeighborID)
		reportDone(cmd.Done, nil)

	case wire.CmdSetContentPath:
		err := e.setContentPath(cmd.Path)
		reportDone(cmd.Done, err)

	case wire.CmdStatus:
		e.reportStatus(cmd.StatusCh)
		reportDone(cmd.Done, nil)

	case wire.CmdStats:
		e.reportStats(cmd.StatsCh)
		reportDone(cmd.Done, nil)

	case wire.CmdCrash:
		reportDone(cmd.Done, nil)
		return true

	default:
		e.log.Warn("unrecognized command kind", "kind", cmd.Kind)
		e.emitEvent(wire.Event{Kind: wire.EventUnexpectedCommand})
	}
	return false
}

func (e *Engine) setContentPath(path string) error {
	if e.behavior == nil {
		return core.ErrWrongServerType
	}
	err := e.behavior.SetPath(path)
	if err != nil {
		e.log.Warn("set content path failed", "path", path, "error", err)
		e.emitEvent(wire.Event{Kind: wire.EventMediaPathError, Err: err})
	}
	return err
}

// reportStatus sends a point-in-time snapshot to statusCh, non-blockingly.
func (e *Engine) reportStatus(statusCh chan<- wire.Status) {
	if statusCh == nil {
		return
	}
	s := wire.Status{
		Self:          e.topo.Self(),
		NeighborCount: len(e.neighbors),
		TopologyEdges: e.topo.EdgeCount(),
		Updating:      e.topo.IsUpdating(),
	}
	select {
	case statusCh <- s:
	default:
	}
}

// reportStats sends a point-in-time transport-load snapshot to statsCh,
// non-blockingly.
func (e *Engine) reportStats(statsCh chan<- wire.Stats) {
	if statsCh == nil {
		return
	}
	s := wire.Stats{
		ReassemblySessionsActive: e.reasm.ActiveSessions(),
		FragmenterQueueLen:       e.frag.QueueLen(),
		FragmenterCacheLen:       e.frag.CacheLen(),
	}
	select {
	case statsCh <- s:
	default:
	}
}

func reportDone(done chan<- error, err error) {
	if done == nil {
		return
	}
	select {
	case done <- err:
	default:
	}
}

// handleFrame dispatches one inbound frame by kind (spec.md §4.6).
func (e *Engine) handleFrame(f wire.Frame) {
	switch f.Kind {
	case wire.KindMsgFragment:
		e.handleMsgFragment(f)
	case wire.KindAck:
		e.handleAck(f)
	case wire.KindNack:
		e.handleNack(f)
	case wire.KindFloodRequest:
		e.handleFloodRequest(f)
	case wire.KindFloodResponse:
		e.handleFloodResponse(f)
	default:
		e.log.Warn("unrecognized frame kind", "kind", f.Kind)
	}
}

// handleMsgFragment inserts one fragment into the reassembler and, on
// session completion, hands the reassembled payload to the application
// behavior and fragments its response back out.
func (e *Engine) handleMsgFragment(f wire.Frame) {
	if err := e.reasm.Insert(f.SessionID, f.Fragment); err != nil {
		e.log.Warn("fragment rejected", "session", f.SessionID, "index", f.Fragment.FragmentIndex, "error", err)
		return
	}
	if !e.reasm.Complete(f.SessionID) {
		return
	}

	payload, err := e.reasm.Take(f.SessionID)
	if err != nil {
		e.log.Error("reassembly take failed after completion check", "session", f.SessionID, "error", err)
		return
	}

	initiator := f.Routing.Source()
	if e.behavior == nil {
		e.log.Error("no behavior configured, dropping message", "session", f.SessionID)
		return
	}

	resp, dest := e.behavior.Handle(payload, initiator)
	e.frag.Split(resp, dest)
}

// handleAck applies observe_success to the reporting hop and clears the
// fragment from the retransmit cache (spec.md §4.4, §4.6).
func (e *Engine) handleAck(f wire.Frame) {
	if len(f.Routing.Hops) > 0 {
		e.topo.ObserveSuccess(f.Routing.Hops[0])
	}
	e.frag.Ack(f.SessionID, f.FragmentIndex)
}

// handleNack applies observe_failure and dispatches by NackKind (spec.md
// §4.4): Dropped retries in place, DestinationIsDrone/ErrorInRouting retry
// and trigger rediscovery, UnexpectedRecipient is logged and dropped.
func (e *Engine) handleNack(f wire.Frame) {
	if len(f.Routing.Hops) > 0 {
		e.topo.ObserveFailure(f.Routing.Hops[0])
	}

	switch f.NackKind {
	case wire.NackDropped:
		e.frag.Requeue(f.SessionID, f.FragmentIndex, f.NackKind.String())

	case wire.NackDestinationIsDrone, wire.NackErrorInRouting:
		e.frag.Requeue(f.SessionID, f.FragmentIndex, f.NackKind.String())
		e.triggerDiscovery()

	case wire.NackUnexpectedRecipient:
		e.log.Warn("unexpected recipient nack, dropping", "session", f.SessionID, "index", f.FragmentIndex, "node", f.NackNode)

	default:
		e.log.Warn("unrecognized nack kind", "kind", f.NackKind)
	}
}

func (e *Engine) handleFloodRequest(f wire.Frame) {
	e.sendFrame(e.flood.HandleRequest(f))
}

func (e *Engine) handleFloodResponse(f wire.Frame) {
	e.flood.HandleResponse(f)
}

// triggerDiscovery emits a FloodRequest to every current neighbor.
func (e *Engine) triggerDiscovery() {
	neighbors := make([]wire.NodeID, 0, len(e.neighbors))
	for n := range e.neighbors {
		neighbors = append(neighbors, n)
	}
	for _, f := range e.flood.StartDiscovery(neighbors) {
		e.sendFrame(f)
	}
}

// trySendNext pops at most one fragment from the retransmit queue and
// attempts delivery. It returns false only when the queue is empty, so
// Run's default arm can tell "did work" from "truly idle" (spec.md §4.1).
func (e *Engine) trySendNext() bool {
	p, ok := e.frag.Next()
	if !ok {
		return false
	}

	path, err := e.topo.Route(e.topo.Self(), p.Dest)
	if err != nil {
		e.handleRouteFailure(p, err)
		return true
	}

	e.sendFrame(wire.Frame{
		Kind:      wire.KindMsgFragment,
		Routing:   wire.SourceRoutingHeader{HopIndex: 1, Hops: path},
		SessionID: p.SessionID,
		Fragment:  p.Fragment,
	})
	metrics.FragmentsSentTotal.Inc()
	return true
}

// handleRouteFailure implements spec.md §4.6's routing-failure branches.
func (e *Engine) handleRouteFailure(p fragmenter.Pending, err error) {
	switch {
	case errors.Is(err, core.ErrSourceIsDest):
		e.log.Error("routing source equals destination, dropping fragment", "dest", p.Dest, "session", p.SessionID)

	case errors.Is(err, core.ErrNoPathFound):
		e.frag.Requeue(p.SessionID, p.Fragment.FragmentIndex, "no_path_found")
		if !e.topo.IsUpdating() {
			e.triggerDiscovery()
		}

	default:
		e.log.Error("unexpected routing error", "error", err, "dest", p.Dest, "session", p.SessionID)
	}
}

// sendFrame resolves f's next hop from its own routing header and
// non-blockingly hands it to that neighbor's channel, dropping (and
// logging) if the neighbor is unknown or its channel is full — a send
// must never block the event loop (spec.md §5).
func (e *Engine) sendFrame(f wire.Frame) {
	next, ok := f.Routing.NextHop()
	if !ok {
		e.log.Error("frame has no next hop", "kind", f.Kind, "session", f.SessionID)
		return
	}

	ch, ok := e.neighbors[next]
	if !ok {
		e.log.Warn("neighbor channel absent, dropping frame", "neighbor", next, "kind", f.Kind)
		return
	}

	select {
	case ch <- f:
		e.emitEvent(wire.Event{Kind: wire.EventPacketSent, Frame: f})
	default:
		e.log.Warn("neighbor send channel full, dropping frame", "neighbor", next, "kind", f.Kind)
	}
}

func (e *Engine) emitEvent(ev wire.Event) {
	select {
	case e.events <- ev:
	default:
	}
}
