package command

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dronenet/server/internal/engine"
)

func newTestServer(t *testing.T, socketPath string) (*UDSServer, context.CancelFunc) {
	t.Helper()
	e := engine.New(engine.Config{Self: 1, Behavior: &nopBehavior{}})
	engineCtx, engineCancel := context.WithCancel(context.Background())
	go e.Run(engineCtx)

	handler := NewCommandHandler(e)
	server := NewUDSServer(socketPath, handler, 1)

	serverCtx, serverCancel := context.WithCancel(context.Background())
	go server.Start(serverCtx)
	time.Sleep(100 * time.Millisecond)

	return server, func() { serverCancel(); engineCancel() }
}

func TestUDSServerClient_Integration(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "test.sock")
	_, cancel := newTestServer(t, socketPath)
	defer cancel()

	client := NewUDSClient(socketPath, 5*time.Second)

	t.Run("add_neighbor", func(t *testing.T) {
		resp, err := client.AddNeighbor(context.Background(), 7)
		if err != nil {
			t.Fatalf("AddNeighbor failed: %v", err)
		}
		if resp.Error != nil {
			t.Errorf("unexpected error: %v", resp.Error.Message)
		}
	})

	t.Run("status", func(t *testing.T) {
		resp, err := client.Status(context.Background())
		if err != nil {
			t.Fatalf("Status failed: %v", err)
		}
		if resp.Error != nil {
			t.Errorf("unexpected error: %v", resp.Error.Message)
		}
		result, ok := resp.Result.(map[string]interface{})
		if !ok {
			t.Fatal("result is not a map")
		}
		if _, exists := result["neighbor_count"]; !exists {
			t.Error("result missing 'neighbor_count' field")
		}
	})

	t.Run("ping", func(t *testing.T) {
		if err := client.Ping(context.Background()); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("unknown_method", func(t *testing.T) {
		resp, err := client.Call(context.Background(), "unknown.method", nil)
		if err != nil {
			t.Fatalf("Call failed: %v", err)
		}
		if resp.Error == nil {
			t.Error("expected error for unknown method")
		}
		if resp.Error.Code != ErrCodeMethodNotFound {
			t.Errorf("error code = %d, want %d", resp.Error.Code, ErrCodeMethodNotFound)
		}
	})
}

func TestUDSServer_SocketRemovedOnStop(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "test.sock")
	e := engine.New(engine.Config{Self: 1, Behavior: &nopBehavior{}})
	engineCtx, engineCancel := context.WithCancel(context.Background())
	defer engineCancel()
	go e.Run(engineCtx)

	server := NewUDSServer(socketPath, NewCommandHandler(e), 1)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start(ctx) }()
	time.Sleep(100 * time.Millisecond)

	cancel()

	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("server didn't stop in time")
	}

	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Error("socket file not removed after server stop")
	}
}

func TestUDSClient_ConnectionError(t *testing.T) {
	client := NewUDSClient("/tmp/dronenet-nonexistent.sock", 1*time.Second)
	_, err := client.Status(context.Background())
	if err == nil {
		t.Error("expected connection error")
	}
}

func TestUDSClient_Timeout(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "test-timeout.sock")
	_, cancel := newTestServer(t, socketPath)
	defer cancel()

	client := NewUDSClient(socketPath, 1*time.Nanosecond)
	_, err := client.Status(context.Background())
	if err == nil {
		t.Error("expected timeout error")
	}
}

func TestUDSServer_MultipleConnections(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "test-multi.sock")
	_, cancel := newTestServer(t, socketPath)
	defer cancel()

	errCh := make(chan error, 5)
	for i := 0; i < 5; i++ {
		go func() {
			client := NewUDSClient(socketPath, 5*time.Second)
			_, err := client.Status(context.Background())
			errCh <- err
		}()
	}

	for i := 0; i < 5; i++ {
		if err := <-errCh; err != nil {
			t.Errorf("client %d failed: %v", i, err)
		}
	}
}

func TestNewUDSClient_DefaultTimeout(t *testing.T) {
	client := NewUDSClient("/tmp/test.sock", 0)
	if client.timeout != 10*time.Second {
		t.Errorf("default timeout = %v, want 10s", client.timeout)
	}

	client2 := NewUDSClient("/tmp/test.sock", 5*time.Second)
	if client2.timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", client2.timeout)
	}
}
