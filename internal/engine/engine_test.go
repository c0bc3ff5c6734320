package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dronenet/server/pkg/behavior"
	"github.com/dronenet/server/pkg/wire"
)

// echoBehavior answers every message by sending the same payload back to
// its initiator, and records every SetPath call it receives.
type echoBehavior struct {
	paths []string
	err   error
}

func (b *echoBehavior) Handle(payload []byte, initiator wire.NodeID) ([]byte, wire.NodeID) {
	return payload, initiator
}

func (b *echoBehavior) SetPath(path string) error {
	b.paths = append(b.paths, path)
	return b.err
}

var _ behavior.Behavior = (*echoBehavior)(nil)

func newTestEngine(self wire.NodeID, b behavior.Behavior) *Engine {
	return New(Config{Self: self, Behavior: b})
}

func fragment(data string) wire.Fragment {
	var f wire.Fragment
	f.TotalNFragments = 1
	f.Length = uint8(len(data))
	copy(f.Data[:], data)
	return f
}

func recvFrame(t *testing.T, ch <-chan wire.Frame, timeout time.Duration) wire.Frame {
	t.Helper()
	select {
	case f := <-ch:
		return f
	case <-time.After(timeout):
		t.Fatal("timed out waiting for frame")
		return wire.Frame{}
	}
}

func doCommand(t *testing.T, e *Engine, cmd wire.Command) error {
	t.Helper()
	done := make(chan error, 1)
	cmd.Done = done
	e.Commands() <- cmd
	select {
	case err := <-done:
		return err
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for command to be processed")
		return nil
	}
}

// TestAddNeighborThenMessageRoutesAfterFloodResponse exercises the
// happy-path flow of a §8 S1-style scenario at the engine layer: a
// client message arrives, the echo behavior replies, and — once topology
// has been populated by a flood response — the reply reaches the right
// neighbor on the right path.
func TestAddNeighborThenMessageRoutesAfterFloodResponse(t *testing.T) {
	const self, drone, client = wire.NodeID(72), wire.NodeID(71), wire.NodeID(70)

	e := newTestEngine(self, &echoBehavior{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	neighborCh := make(chan wire.Frame, 8)
	require.NoError(t, doCommand(t, e, wire.Command{Kind: wire.CmdAddNeighbor, NeighborID: drone, SendCh: neighborCh}))

	// Populate topology via a flood response before the client message
	// arrives, so routing succeeds on the first attempt.
	e.Packets() <- wire.Frame{
		Kind:      wire.KindFloodResponse,
		FloodID:   1,
		Initiator: self,
		PathTrace: []wire.PathEntry{
			{Node: self, Kind: wire.Server},
			{Node: drone, Kind: wire.Drone},
			{Node: client, Kind: wire.Client},
		},
	}

	e.Packets() <- wire.Frame{
		Kind:      wire.KindMsgFragment,
		SessionID: 1,
		Routing:   wire.SourceRoutingHeader{HopIndex: 2, Hops: []wire.NodeID{client, drone, self}},
		Fragment:  fragment("hello"),
	}

	out := recvFrame(t, neighborCh, time.Second)
	assert.Equal(t, wire.KindMsgFragment, out.Kind)
	assert.Equal(t, []wire.NodeID{self, drone, client}, out.Routing.Hops)
	assert.EqualValues(t, 1, out.Routing.HopIndex)
	assert.Equal(t, "hello", string(out.Fragment.Data[:out.Fragment.Length]))
}

// TestNoPathFoundTriggersDiscovery covers §4.6's NoPathFound branch and
// §8 S4's "emits FloodRequest to every neighbor" assertion: with an empty
// topology, a queued reply has nowhere to go, so the engine resets and
// probes its neighbors instead of dropping the message.
func TestNoPathFoundTriggersDiscovery(t *testing.T) {
	const self, drone, unknownClient = wire.NodeID(72), wire.NodeID(71), wire.NodeID(99)

	e := newTestEngine(self, &echoBehavior{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	neighborCh := make(chan wire.Frame, 8)
	require.NoError(t, doCommand(t, e, wire.Command{Kind: wire.CmdAddNeighbor, NeighborID: drone, SendCh: neighborCh}))

	e.Packets() <- wire.Frame{
		Kind:      wire.KindMsgFragment,
		SessionID: 1,
		Routing:   wire.SourceRoutingHeader{HopIndex: 1, Hops: []wire.NodeID{unknownClient, self}},
		Fragment:  fragment("hi"),
	}

	out := recvFrame(t, neighborCh, time.Second)
	assert.Equal(t, wire.KindFloodRequest, out.Kind)
	assert.Equal(t, self, out.Initiator)
}

// TestRemoveNeighborDropsRoute verifies RemoveNeighbor clears the
// corresponding topology edge, so a previously reachable destination
// becomes unroutable.
func TestRemoveNeighborDropsRoute(t *testing.T) {
	const self, drone, client = wire.NodeID(72), wire.NodeID(71), wire.NodeID(70)

	e := newTestEngine(self, &echoBehavior{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	neighborCh := make(chan wire.Frame, 8)
	require.NoError(t, doCommand(t, e, wire.Command{Kind: wire.CmdAddNeighbor, NeighborID: drone, SendCh: neighborCh}))

	e.Packets() <- wire.Frame{
		Kind:      wire.KindFloodResponse,
		FloodID:   1,
		Initiator: self,
		PathTrace: []wire.PathEntry{
			{Node: self, Kind: wire.Server},
			{Node: drone, Kind: wire.Drone},
			{Node: client, Kind: wire.Client},
		},
	}
	// Give the flood response a moment to be processed before removal.
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, doCommand(t, e, wire.Command{Kind: wire.CmdRemoveNeighbor, NeighborID: drone}))

	e.Packets() <- wire.Frame{
		Kind:      wire.KindMsgFragment,
		SessionID: 2,
		Routing:   wire.SourceRoutingHeader{HopIndex: 2, Hops: []wire.NodeID{client, drone, self}},
		Fragment:  fragment("x"),
	}

	// With the 72-71 edge gone, the only outbound traffic possible is a
	// rediscovery FloodRequest, never a routed MsgFragment.
	out := recvFrame(t, neighborCh, time.Second)
	assert.Equal(t, wire.KindFloodRequest, out.Kind)
}

// TestSetContentPathDelegatesToBehaviorAndReportsResult covers §6's
// SetContentPath command and its error-reporting contract.
func TestSetContentPathDelegatesToBehaviorAndReportsResult(t *testing.T) {
	b := &echoBehavior{}
	e := newTestEngine(72, b)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	require.NoError(t, doCommand(t, e, wire.Command{Kind: wire.CmdSetContentPath, Path: "/srv/content"}))
	assert.Equal(t, []string{"/srv/content"}, b.paths)
}

func TestSetContentPathPropagatesBehaviorError(t *testing.T) {
	boom := assert.AnError
	b := &echoBehavior{err: boom}
	e := newTestEngine(72, b)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	err := doCommand(t, e, wire.Command{Kind: wire.CmdSetContentPath, Path: "/bad"})
	assert.ErrorIs(t, err, boom)
}

// TestCrashStopsTheLoop covers §4.1: a Crash command makes Run return.
func TestCrashStopsTheLoop(t *testing.T) {
	e := newTestEngine(72, &echoBehavior{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	require.NoError(t, doCommand(t, e, wire.Command{Kind: wire.CmdCrash}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Crash")
	}
}

// TestAckAndNackObserveRoutingFeedback covers §4.6: the reporting hop of
// an Ack/Nack is hops[0] of its routing header.
func TestAckAndNackObserveRoutingFeedback(t *testing.T) {
	const self, drone = wire.NodeID(72), wire.NodeID(71)

	e := newTestEngine(self, &echoBehavior{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	e.Packets() <- wire.Frame{
		Kind:      wire.KindAck,
		SessionID: 1,
		Routing:   wire.SourceRoutingHeader{Hops: []wire.NodeID{drone, self}},
	}
	e.Packets() <- wire.Frame{
		Kind:      wire.KindNack,
		SessionID: 1,
		NackKind:  wire.NackDropped,
		Routing:   wire.SourceRoutingHeader{Hops: []wire.NodeID{drone, self}},
	}

	// No externally visible effect to assert beyond "the engine kept
	// running and accepted both frames without deadlocking" — the
	// resulting counter state is covered at the topology package layer.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, doCommand(t, e, wire.Command{Kind: wire.CmdCrash}))
}

// TestUnexpectedRecipientNackIsDroppedNotRequeued covers §4.4's
// UnexpectedRecipient branch: it must not trigger rediscovery.
func TestUnexpectedRecipientNackIsDroppedNotRequeued(t *testing.T) {
	const self, drone = wire.NodeID(72), wire.NodeID(71)

	e := newTestEngine(self, &echoBehavior{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	neighborCh := make(chan wire.Frame, 8)
	require.NoError(t, doCommand(t, e, wire.Command{Kind: wire.CmdAddNeighbor, NeighborID: drone, SendCh: neighborCh}))

	e.Packets() <- wire.Frame{
		Kind:      wire.KindNack,
		SessionID: 1,
		NackKind:  wire.NackUnexpectedRecipient,
		NackNode:  drone,
		Routing:   wire.SourceRoutingHeader{Hops: []wire.NodeID{drone, self}},
	}

	select {
	case f := <-neighborCh:
		t.Fatalf("expected no discovery to be triggered, got frame kind %v", f.Kind)
	case <-time.After(200 * time.Millisecond):
	}
}
