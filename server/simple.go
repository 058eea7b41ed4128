// Package server provides a lifecycle wrapper for running a single
// jrpc2.Server instance against one connection at a time.
package server

import (
	"errors"

	"github.com/txrpc/jrpc2"
	"github.com/txrpc/jrpc2/channel"
)

// A Service describes a unit of work that can be plugged into a Simple
// server. Assigner builds the method dispatch table for a fresh connection;
// Finish is called once that connection's server has exited, so the service
// can record metrics or clean up connection-scoped state.
type Service interface {
	// Assigner returns the Assigner to use for a new connection, or an error
	// if the service is not ready to accept one.
	Assigner() (jrpc2.Assigner, error)

	// Finish is called when the server for a connection has exited.
	Finish(jrpc2.ServerStatus)
}

// A Simple server manages execution of a server for a single service instance.
type Simple struct {
	server *jrpc2.Server
	svc    Service
	opts   *jrpc2.ServerOptions
}

// NewSimple constructs a new, unstarted *Simple instance for the given
// service.  When run, the server will use the specified options.
func NewSimple(svc Service, opts *jrpc2.ServerOptions) *Simple {
	return &Simple{svc: svc, opts: opts}
}

// Run starts a server on the given channel, and blocks until it returns.  The
// server exit status is reported to the service, and the error value returned.
func (s *Simple) Run(ch channel.Channel) error {
	if s.server != nil {
		return errors.New("server is already running")
	}
	assigner, err := s.svc.Assigner()
	if err != nil {
		return err
	}
	s.server = jrpc2.NewServer(assigner, s.opts).Start(ch)
	return s.wait()
}

// wait for the server to exit and report its status back to the service.
// Reset the wrapper so it can be re-used.
func (s *Simple) wait() error {
	stat := s.server.WaitStatus()
	s.svc.Finish(stat)
	s.server = nil // reset
	return stat.Err
}

// Stop shuts down the server instance, waits for it to complete, and reports
// the result from its Wait method. It is safe to call Stop even if the server
// is not running; it will report nil.
func (s *Simple) Stop() error {
	srv := s.server
	if srv == nil {
		return nil
	}
	srv.Stop()
	return srv.Wait() // Run reports the exit status to the service
}
