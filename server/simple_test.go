package server_test

import (
	"context"
	"testing"

	"github.com/txrpc/jrpc2"
	"github.com/txrpc/jrpc2/channel"
	"github.com/txrpc/jrpc2/export"
	"github.com/txrpc/jrpc2/server"
)

type echoService struct {
	finished chan jrpc2.ServerStatus
}

func (s *echoService) Assigner() (jrpc2.Assigner, error) {
	return export.Map(export.Func("Echo", func(ctx context.Context, req *jrpc2.Request) (any, error) {
		var v [1]string
		if err := req.UnmarshalParams(&v); err != nil {
			return nil, err
		}
		return v[0], nil
	})), nil
}

func (s *echoService) Finish(stat jrpc2.ServerStatus) { s.finished <- stat }

func TestSimpleRun(t *testing.T) {
	cpipe, spipe := channel.Direct()
	svc := &echoService{finished: make(chan jrpc2.ServerStatus, 1)}
	simple := server.NewSimple(svc, nil)

	go func() {
		if err := simple.Run(spipe); err != nil {
			t.Errorf("Run: %v", err)
		}
	}()

	cli := jrpc2.NewClient(cpipe, nil)
	defer cli.Close()

	rsp, err := cli.Call(context.Background(), "Echo", []string{"hi"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	var out string
	if err := rsp.UnmarshalResult(&out); err != nil {
		t.Fatalf("UnmarshalResult: %v", err)
	}
	if out != "hi" {
		t.Errorf("result: got %q, want hi", out)
	}

	if err := simple.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	stat := <-svc.finished
	if !stat.Stopped {
		t.Errorf("status: got %+v, want Stopped", stat)
	}
}

func TestSimpleRunClientClose(t *testing.T) {
	cpipe, spipe := channel.Direct()
	svc := &echoService{finished: make(chan jrpc2.ServerStatus, 1)}
	simple := server.NewSimple(svc, nil)
	go simple.Run(spipe)
	cli := jrpc2.NewClient(cpipe, nil)
	if err := cli.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	<-svc.finished // the run exits and reports to Finish once the client hangs up
}
