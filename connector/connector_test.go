package connector_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/txrpc/jrpc2"
	"github.com/txrpc/jrpc2/channel"
	"github.com/txrpc/jrpc2/connector"
	"github.com/txrpc/jrpc2/export"
)

func startEchoServer(t *testing.T) (channel.Channel, func()) {
	t.Helper()
	cpipe, spipe := channel.Direct()
	srv := jrpc2.NewServer(export.Map(export.Func("Echo", func(ctx context.Context, req *jrpc2.Request) (any, error) {
		var s [1]string
		if err := req.UnmarshalParams(&s); err != nil {
			return nil, err
		}
		return s[0], nil
	})), nil)
	srv.Start(spipe)
	return cpipe, func() { srv.Stop(); srv.Wait() }
}

func TestEnsureConnectedDialsOnce(t *testing.T) {
	var dials int32
	var mu sync.Mutex
	cpipe, stop := startEchoServer(t)
	defer stop()

	conn := connector.New(func(ctx context.Context) (channel.Channel, error) {
		mu.Lock()
		dials++
		mu.Unlock()
		return cpipe, nil
	}, nil)
	defer conn.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := conn.EnsureConnected(context.Background()); err != nil {
				t.Errorf("EnsureConnected: %v", err)
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if dials != 1 {
		t.Errorf("dial count: got %d, want 1", dials)
	}
}

func TestCallAndDisconnect(t *testing.T) {
	cpipe, stop := startEchoServer(t)
	defer stop()

	conn := connector.New(func(ctx context.Context) (channel.Channel, error) {
		return cpipe, nil
	}, nil)
	defer conn.Close()

	rsp, err := conn.Call(context.Background(), "Echo", []string{"hello"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	var out string
	if err := rsp.UnmarshalResult(&out); err != nil {
		t.Fatalf("UnmarshalResult: %v", err)
	}
	if out != "hello" {
		t.Errorf("result: got %q, want hello", out)
	}

	done := conn.NotifyDisconnect()
	if err := conn.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	select {
	case <-done:
	default:
		t.Error("NotifyDisconnect channel was not closed by Disconnect")
	}
}

func TestEnsureConnectedAfterClose(t *testing.T) {
	conn := connector.New(func(ctx context.Context) (channel.Channel, error) {
		return nil, errors.New("unreachable")
	}, nil)
	conn.Close()
	if _, err := conn.EnsureConnected(context.Background()); !errors.Is(err, connector.ErrClosed) {
		t.Errorf("EnsureConnected after Close: got %v, want ErrClosed", err)
	}
}
