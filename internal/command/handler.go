// Package command implements the server endpoint's control plane: a
// JSON-RPC-over-Unix-Domain-Socket protocol (spec.md §6) that proxies into
// an engine.Engine's Commands channel.
package command

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dronenet/server/pkg/wire"
)

// Engine is the subset of *engine.Engine the handler depends on. Declaring
// it here (rather than importing the engine package's concrete type)
// keeps this package's only coupling to the engine as a channel contract,
// matching the teacher's ConfigReloader-style seam.
type Engine interface {
	Commands() chan<- wire.Command
}

// CommandHandler dispatches control-plane commands into an engine's command
// channel and waits for their completion before replying.
type CommandHandler struct {
	engine    Engine
	startTime int64 // unix seconds, for uptime reporting

	// commandTimeout bounds how long Handle waits for the engine to drain
	// a command before reporting a timeout error. The engine's loop always
	// drains commands ahead of packets (spec.md §4.1), so this should only
	// ever fire if the engine goroutine itself has stalled or exited.
	commandTimeout time.Duration
}

// NewCommandHandler creates a handler that proxies into eng.
func NewCommandHandler(eng Engine) *CommandHandler {
	return &CommandHandler{
		engine:         eng,
		startTime:      time.Now().Unix(),
		commandTimeout: 5 * time.Second,
	}
}

// Command represents a control plane command.
type Command struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	ID     string          `json:"id"`
}

// Response represents a command response.
type Response struct {
	ID     string      `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo represents an error in the response.
type ErrorInfo struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error codes, following JSON-RPC 2.0's reserved range.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Handle processes one command and returns a response.
func (h *CommandHandler) Handle(ctx context.Context, cmd Command) Response {
	slog.Info("handling command", "method", cmd.Method, "id", cmd.ID)

	switch cmd.Method {
	case "add_neighbor":
		return h.handleAddNeighbor(ctx, cmd)
	case "remove_neighbor":
		return h.handleRemoveNeighbor(ctx, cmd)
	case "set_content_path":
		return h.handleSetContentPath(ctx, cmd)
	case "crash":
		return h.handleCrash(ctx, cmd)
	case "status":
		return h.handleStatus(ctx, cmd)
	case "stats":
		return h.handleStats(ctx, cmd)
	case "ping":
		return Response{ID: cmd.ID, Result: map[string]interface{}{"status": "ok"}}
	default:
		return errResponse(cmd.ID, ErrCodeMethodNotFound, fmt.Sprintf("method %q not found", cmd.Method))
	}
}

func errResponse(id string, code int, msg string) Response {
	return Response{ID: id, Error: &ErrorInfo{Code: code, Message: msg}}
}

// AddNeighborParams is the param shape for add_neighbor.
//
// SendCh cannot travel over JSON-RPC, so the engine records the neighbor id
// with no send channel, replacing any channel already installed for that
// id. Frames the engine then addresses to that neighbor are dropped.
type AddNeighborParams struct {
	NeighborID uint8 `json:"neighbor_id"`
}

func (h *CommandHandler) handleAddNeighbor(ctx context.Context, cmd Command) Response {
	var params AddNeighborParams
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		return errResponse(cmd.ID, ErrCodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
	}

	err := h.sendCommand(ctx, wire.Command{
		Kind:       wire.CmdAddNeighbor,
		NeighborID: wire.NodeID(params.NeighborID),
	})
	if err != nil {
		return errResponse(cmd.ID, ErrCodeInternalError, err.Error())
	}
	return Response{ID: cmd.ID, Result: map[string]interface{}{"neighbor_id": params.NeighborID, "status": "added"}}
}

// RemoveNeighborParams is the param shape for remove_neighbor.
type RemoveNeighborParams struct {
	NeighborID uint8 `json:"neighbor_id"`
}

func (h *CommandHandler) handleRemoveNeighbor(ctx context.Context, cmd Command) Response {
	var params RemoveNeighborParams
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		return errResponse(cmd.ID, ErrCodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
	}

	err := h.sendCommand(ctx, wire.Command{
		Kind:       wire.CmdRemoveNeighbor,
		NeighborID: wire.NodeID(params.NeighborID),
	})
	if err != nil {
		return errResponse(cmd.ID, ErrCodeInternalError, err.Error())
	}
	return Response{ID: cmd.ID, Result: map[string]interface{}{"neighbor_id": params.NeighborID, "status": "removed"}}
}

// SetContentPathParams is the param shape for set_content_path.
type SetContentPathParams struct {
	Path string `json:"path"`
}

func (h *CommandHandler) handleSetContentPath(ctx context.Context, cmd Command) Response {
	var params SetContentPathParams
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		return errResponse(cmd.ID, ErrCodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
	}

	err := h.sendCommand(ctx, wire.Command{Kind: wire.CmdSetContentPath, Path: params.Path})
	if err != nil {
		return errResponse(cmd.ID, ErrCodeInternalError, err.Error())
	}
	return Response{ID: cmd.ID, Result: map[string]interface{}{"path": params.Path, "status": "set"}}
}

func (h *CommandHandler) handleCrash(ctx context.Context, cmd Command) Response {
	err := h.sendCommand(ctx, wire.Command{Kind: wire.CmdCrash})
	if err != nil {
		return errResponse(cmd.ID, ErrCodeInternalError, err.Error())
	}
	return Response{ID: cmd.ID, Result: map[string]interface{}{"status": "crashing"}}
}

func (h *CommandHandler) handleStatus(ctx context.Context, cmd Command) Response {
	statusCh := make(chan wire.Status, 1)
	err := h.sendCommand(ctx, wire.Command{Kind: wire.CmdStatus, StatusCh: statusCh})
	if err != nil {
		return errResponse(cmd.ID, ErrCodeInternalError, err.Error())
	}

	select {
	case s := <-statusCh:
		return Response{ID: cmd.ID, Result: map[string]interface{}{
			"self":           s.Self,
			"neighbor_count": s.NeighborCount,
			"topology_edges": s.TopologyEdges,
			"updating":       s.Updating,
			"uptime_sec":     time.Now().Unix() - h.startTime,
		}}
	case <-ctx.Done():
		return errResponse(cmd.ID, ErrCodeInternalError, ctx.Err().Error())
	}
}

func (h *CommandHandler) handleStats(ctx context.Context, cmd Command) Response {
	statsCh := make(chan wire.Stats, 1)
	err := h.sendCommand(ctx, wire.Command{Kind: wire.CmdStats, StatsCh: statsCh})
	if err != nil {
		return errResponse(cmd.ID, ErrCodeInternalError, err.Error())
	}

	select {
	case s := <-statsCh:
		return Response{ID: cmd.ID, Result: map[string]interface{}{
			"reassembly_sessions_active": s.ReassemblySessionsActive,
			"fragmenter_queue_len":       s.FragmenterQueueLen,
			"fragmenter_cache_len":       s.FragmenterCacheLen,
		}}
	case <-ctx.Done():
		return errResponse(cmd.ID, ErrCodeInternalError, ctx.Err().Error())
	}
}

// sendCommand delivers cmd to the engine and waits for it to be processed.
// Done always has capacity 1 so the engine's non-blocking reportDone send
// never drops the result even if this call times out first.
func (h *CommandHandler) sendCommand(ctx context.Context, cmd wire.Command) error {
	done := make(chan error, 1)
	cmd.Done = done

	select {
	case h.engine.Commands() <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-time.After(h.commandTimeout):
		return fmt.Errorf("command %v timed out waiting for engine", cmd.Kind)
	case <-ctx.Done():
		return ctx.Err()
	}
}
