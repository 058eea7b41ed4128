// Copyright (C) 2017 Michael J. Fromberger. All Rights Reserved.

package jrpc2_test

import (
	"context"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"

	"github.com/txrpc/jrpc2"
	"github.com/txrpc/jrpc2/channel"
	"github.com/txrpc/jrpc2/code"
	"github.com/txrpc/jrpc2/export"
)

func sum(ctx context.Context, req *jrpc2.Request) (any, error) {
	var vs []int
	if err := req.UnmarshalParams(&vs); err != nil {
		return nil, err
	}
	total := 0
	for _, v := range vs {
		total += v
	}
	return total, nil
}

func newFixture(t *testing.T, opts *jrpc2.ServerOptions) (*jrpc2.Client, *jrpc2.Server) {
	t.Helper()
	cpipe, spipe := channel.Direct()
	srv := jrpc2.NewServer(export.Map(export.Func("Sum", sum)), opts).Start(spipe)
	cli := jrpc2.NewClient(cpipe, nil)
	t.Cleanup(func() {
		cli.Close()
		srv.Wait()
	})
	return cli, srv
}

func TestCallSuccess(t *testing.T) {
	t.Cleanup(leaktest.Check(t)) // runs after the fixture's cleanup
	cli, _ := newFixture(t, nil)

	rsp, err := cli.Call(context.Background(), "Sum", []int{1, 2, 3})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	var got int
	if err := rsp.UnmarshalResult(&got); err != nil {
		t.Fatalf("UnmarshalResult: %v", err)
	}
	if got != 6 {
		t.Errorf("result: got %d, want 6", got)
	}
}

func TestCallNoSuchMethod(t *testing.T) {
	t.Cleanup(leaktest.Check(t)) // runs after the fixture's cleanup
	cli, _ := newFixture(t, nil)

	_, err := cli.Call(context.Background(), "Missing", nil)
	e, ok := err.(*jrpc2.Error)
	if !ok {
		t.Fatalf("Call: got %v (%T), want *jrpc2.Error", err, err)
	}
	if e.Code != code.MethodNotFound {
		t.Errorf("Code: got %v, want %v", e.Code, code.MethodNotFound)
	}
}

func TestDynamicAdd(t *testing.T) {
	defer leaktest.Check(t)()
	cpipe, spipe := channel.Direct()
	srv := jrpc2.NewServer(nil, nil).Start(spipe)
	srv.Add("Ping", func(context.Context, *jrpc2.Request) (any, error) {
		return "pong", nil
	}, nil)
	cli := jrpc2.NewClient(cpipe, nil)
	defer func() { cli.Close(); srv.Wait() }()

	rsp, err := cli.Call(context.Background(), "Ping", nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	var got string
	if err := rsp.UnmarshalResult(&got); err != nil {
		t.Fatalf("UnmarshalResult: %v", err)
	}
	if got != "pong" {
		t.Errorf("result: got %q, want pong", got)
	}
}

func TestMethodArity(t *testing.T) {
	defer leaktest.Check(t)()
	cpipe, spipe := channel.Direct()
	srv := jrpc2.NewServer(export.Map(export.Typed("Sum", sum, &jrpc2.Types{
		MinArgs: 1, MaxArgs: 3,
	})), nil).Start(spipe)
	cli := jrpc2.NewClient(cpipe, nil)
	defer func() { cli.Close(); srv.Wait() }()

	if _, err := cli.Call(context.Background(), "Sum", []int{}); err == nil {
		t.Error("Call with no args: got nil error, want InvalidParams")
	}
	if _, err := cli.Call(context.Background(), "Sum", []int{1, 2, 3, 4}); err == nil {
		t.Error("Call with too many args: got nil error, want InvalidParams")
	}
	if _, err := cli.Call(context.Background(), "Sum", []int{1, 2}); err != nil {
		t.Errorf("Call within arity: got error %v, want nil", err)
	}
}

func TestStopServingDrain(t *testing.T) {
	t.Cleanup(leaktest.Check(t)) // runs after the fixture's cleanup
	cli, srv := newFixture(t, nil)

	comp := srv.StopServing(code.ServiceUnavailable)
	_, err := cli.Call(context.Background(), "Sum", []int{1})
	e, ok := err.(*jrpc2.Error)
	if !ok || e.Code != code.ServiceUnavailable {
		t.Fatalf("Call while draining: got %v, want ServiceUnavailable", err)
	}
	select {
	case <-comp.Done():
	case <-time.After(time.Second):
		t.Fatal("drain did not complete")
	}

	srv.StartServing()
	if _, err := cli.Call(context.Background(), "Sum", []int{1, 2}); err != nil {
		t.Errorf("Call after StartServing: got %v, want nil", err)
	}
}

func TestPerCallTimeout(t *testing.T) {
	defer leaktest.Check(t)()
	cpipe, spipe := channel.Direct()
	block := make(chan struct{})
	srv := jrpc2.NewServer(export.Map(export.Func("Block", func(ctx context.Context, req *jrpc2.Request) (any, error) {
		<-block
		return nil, nil
	})), &jrpc2.ServerOptions{Timeout: 20 * time.Millisecond}).Start(spipe)
	cli := jrpc2.NewClient(cpipe, nil)
	defer func() {
		close(block)
		cli.Close()
		srv.Wait()
	}()

	_, err := cli.Call(context.Background(), "Block", nil)
	e, ok := err.(*jrpc2.Error)
	if !ok || e.Code != code.TimeoutError {
		t.Fatalf("Call: got %v, want TimeoutError", err)
	}
}

func TestServerInfo(t *testing.T) {
	t.Cleanup(leaktest.Check(t)) // runs after the fixture's cleanup
	cli, _ := newFixture(t, nil)

	rsp, err := cli.Call(context.Background(), "rpc.serverInfo", nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	var info jrpc2.ServerInfo
	if err := rsp.UnmarshalResult(&info); err != nil {
		t.Fatalf("UnmarshalResult: %v", err)
	}
	found := false
	for _, m := range info.Methods {
		if m == "Sum" {
			found = true
		}
	}
	if !found {
		t.Errorf("Methods: got %v, want to include Sum", info.Methods)
	}
}
