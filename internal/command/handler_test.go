package command

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/dronenet/server/internal/engine"
	"github.com/dronenet/server/pkg/behavior"
	"github.com/dronenet/server/pkg/wire"
)

// nopBehavior satisfies behavior.Behavior without producing any traffic;
// these tests only exercise the control plane, not message dispatch.
type nopBehavior struct {
	err error
}

func (b *nopBehavior) Handle(payload []byte, initiator wire.NodeID) ([]byte, wire.NodeID) {
	return payload, initiator
}

func (b *nopBehavior) SetPath(path string) error { return b.err }

var _ behavior.Behavior = (*nopBehavior)(nil)

func newTestHandler(t *testing.T, b behavior.Behavior) (*CommandHandler, context.CancelFunc) {
	t.Helper()
	e := engine.New(engine.Config{Self: 1, Behavior: b})
	ctx, cancel := context.WithCancel(context.Background())
	go e.Run(ctx)
	return NewCommandHandler(e), cancel
}

func TestHandleAddAndRemoveNeighbor(t *testing.T) {
	h, cancel := newTestHandler(t, &nopBehavior{})
	defer cancel()

	params, _ := json.Marshal(AddNeighborParams{NeighborID: 5})
	resp := h.Handle(context.Background(), Command{Method: "add_neighbor", Params: params, ID: "1"})
	if resp.Error != nil {
		t.Fatalf("add_neighbor failed: %v", resp.Error.Message)
	}

	params, _ = json.Marshal(RemoveNeighborParams{NeighborID: 5})
	resp = h.Handle(context.Background(), Command{Method: "remove_neighbor", Params: params, ID: "2"})
	if resp.Error != nil {
		t.Fatalf("remove_neighbor failed: %v", resp.Error.Message)
	}
}

func TestHandleSetContentPath(t *testing.T) {
	h, cancel := newTestHandler(t, &nopBehavior{})
	defer cancel()

	params, _ := json.Marshal(SetContentPathParams{Path: "/srv/content"})
	resp := h.Handle(context.Background(), Command{Method: "set_content_path", Params: params, ID: "1"})
	if resp.Error != nil {
		t.Fatalf("set_content_path failed: %v", resp.Error.Message)
	}
}

func TestHandleSetContentPathPropagatesBehaviorError(t *testing.T) {
	h, cancel := newTestHandler(t, &nopBehavior{err: errors.New("disk full")})
	defer cancel()

	params, _ := json.Marshal(SetContentPathParams{Path: "/bad"})
	resp := h.Handle(context.Background(), Command{Method: "set_content_path", Params: params, ID: "1"})
	if resp.Error == nil {
		t.Fatal("expected error for behavior failure")
	}
	if resp.Error.Code != ErrCodeInternalError {
		t.Errorf("error code = %d, want %d", resp.Error.Code, ErrCodeInternalError)
	}
}

func TestHandleStatus(t *testing.T) {
	h, cancel := newTestHandler(t, &nopBehavior{})
	defer cancel()

	params, _ := json.Marshal(AddNeighborParams{NeighborID: 5})
	h.Handle(context.Background(), Command{Method: "add_neighbor", Params: params, ID: "1"})

	resp := h.Handle(context.Background(), Command{Method: "status", ID: "2"})
	if resp.Error != nil {
		t.Fatalf("status failed: %v", resp.Error.Message)
	}

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("result is not a map")
	}
	if result["neighbor_count"] != 1 {
		t.Errorf("neighbor_count = %v, want 1", result["neighbor_count"])
	}
}

func TestHandleStats(t *testing.T) {
	h, cancel := newTestHandler(t, &nopBehavior{})
	defer cancel()

	resp := h.Handle(context.Background(), Command{Method: "stats", ID: "1"})
	if resp.Error != nil {
		t.Fatalf("stats failed: %v", resp.Error.Message)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("result is not a map")
	}
	if _, exists := result["reassembly_sessions_active"]; !exists {
		t.Error("result missing 'reassembly_sessions_active' field")
	}
}

func TestHandlePing(t *testing.T) {
	h, cancel := newTestHandler(t, &nopBehavior{})
	defer cancel()

	resp := h.Handle(context.Background(), Command{Method: "ping", ID: "1"})
	if resp.Error != nil {
		t.Fatalf("ping failed: %v", resp.Error.Message)
	}
}

func TestHandleUnknownMethod(t *testing.T) {
	h, cancel := newTestHandler(t, &nopBehavior{})
	defer cancel()

	resp := h.Handle(context.Background(), Command{Method: "bogus", ID: "1"})
	if resp.Error == nil {
		t.Fatal("expected error for unknown method")
	}
	if resp.Error.Code != ErrCodeMethodNotFound {
		t.Errorf("error code = %d, want %d", resp.Error.Code, ErrCodeMethodNotFound)
	}
}

func TestHandleInvalidParams(t *testing.T) {
	h, cancel := newTestHandler(t, &nopBehavior{})
	defer cancel()

	resp := h.Handle(context.Background(), Command{Method: "add_neighbor", Params: json.RawMessage(`{invalid}`), ID: "1"})
	if resp.Error == nil {
		t.Fatal("expected error for invalid params")
	}
	if resp.Error.Code != ErrCodeInvalidParams {
		t.Errorf("error code = %d, want %d", resp.Error.Code, ErrCodeInvalidParams)
	}
}

func TestHandleCrashStopsEngine(t *testing.T) {
	h, cancel := newTestHandler(t, &nopBehavior{})
	defer cancel()

	resp := h.Handle(context.Background(), Command{Method: "crash", ID: "1"})
	if resp.Error != nil {
		t.Fatalf("crash failed: %v", resp.Error.Message)
	}
}
