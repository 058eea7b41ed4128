// Package connector provides a long-lived client wrapper that dials a
// transport lazily, shares a single in-flight dial among concurrent callers,
// and dials afresh on the next call after the connection is dropped.
//
// The teacher package hands its Client an already-live channel.Channel and
// leaves connection lifecycle to the caller. This package fills that gap for
// callers that want a JSON-RPC client to survive reconnects: it is grounded
// on the connect/connectionMade/connectionLost/callRemote state machine of a
// Python Twisted JSON-RPC proxy, expressed with context-aware dialing and
// golang.org/x/sync/singleflight instead of deferreds.
package connector

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/txrpc/jrpc2"
	"github.com/txrpc/jrpc2/channel"
)

// A Dialer opens a fresh transport channel to the remote peer. It is called
// at most once per connection attempt; concurrent callers of EnsureConnected
// during a single attempt share its outcome.
type Dialer func(ctx context.Context) (channel.Channel, error)

// A Connector manages a *jrpc2.Client over a Dialer, reconnecting as needed.
// The zero value is not usable; construct one with New.
type Connector struct {
	dial Dialer
	opts *jrpc2.ClientOptions

	group singleflight.Group

	mu       sync.Mutex
	cli      *jrpc2.Client
	ch       channel.Channel
	waiters  []chan struct{} // registered via NotifyDisconnect
	closing  bool
}

// New returns a Connector that dials with dial and configures each client it
// creates with opts (which may be nil).
func New(dial Dialer, opts *jrpc2.ClientOptions) *Connector {
	return &Connector{dial: dial, opts: opts}
}

// ErrClosed is returned by EnsureConnected and the call helpers once the
// Connector has been closed.
var ErrClosed = errors.New("connector: closed")

// EnsureConnected returns the current client, dialing a new connection if
// none is active. Concurrent callers during a single dial attempt block on
// and share that attempt's result, mirroring the single "self.connecting"
// deferred of the originating proxy.
func (c *Connector) EnsureConnected(ctx context.Context) (*jrpc2.Client, error) {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.cli != nil {
		cli := c.cli
		c.mu.Unlock()
		return cli, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do("connect", func() (any, error) {
		c.mu.Lock()
		if c.cli != nil { // another caller already connected while we waited
			cli := c.cli
			c.mu.Unlock()
			return cli, nil
		}
		c.mu.Unlock()

		ch, err := c.dial(ctx)
		if err != nil {
			return nil, err
		}
		cli := jrpc2.NewClient(ch, c.opts)

		c.mu.Lock()
		c.ch, c.cli = ch, cli
		c.mu.Unlock()
		return cli, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*jrpc2.Client), nil
}

// Disconnect tears down the active connection, if any, and notifies every
// registered NotifyDisconnect waiter. A subsequent EnsureConnected dials a
// fresh connection.
func (c *Connector) Disconnect() error {
	c.mu.Lock()
	cli := c.cli
	c.cli, c.ch = nil, nil
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
	if cli == nil {
		return nil
	}
	return cli.Close() // the client closes its channel
}

// NotifyDisconnect returns a channel that is closed the next time the
// Connector's connection is dropped, that is, the next time Disconnect runs:
// an explicit Disconnect or Close, or a Call or Notify that finds the
// transport broken. A transport failure that no Call or Notify observes does
// not close the channel. Each call registers a fresh one-shot waiter, also
// when no connection is active; the caller should call it again after it
// fires if it wants to observe future disconnects too.
func (c *Connector) NotifyDisconnect() <-chan struct{} {
	ch := make(chan struct{})
	c.mu.Lock()
	c.waiters = append(c.waiters, ch)
	c.mu.Unlock()
	return ch
}

// Call dials if necessary and issues method with params. If the call fails
// because the transport is broken, Call disconnects so that the next call
// dials a fresh connection; neither the dial nor the call is retried.
func (c *Connector) Call(ctx context.Context, method string, params any) (*jrpc2.Response, error) {
	cli, err := c.EnsureConnected(ctx)
	if err != nil {
		return nil, err
	}
	rsp, err := cli.Call(ctx, method, params)
	if err != nil && c.isBroken(cli, err) {
		c.Disconnect()
	}
	return rsp, err
}

// Notify dials if necessary and sends a one-way notification.
func (c *Connector) Notify(ctx context.Context, method string, params any) error {
	cli, err := c.EnsureConnected(ctx)
	if err != nil {
		return err
	}
	err = cli.Notify(ctx, method, params)
	if err != nil && c.isBroken(cli, err) {
		c.Disconnect()
	}
	return err
}

// isBroken reports whether err indicates cli's transport has failed, as
// opposed to an application-level *jrpc2.Error reply.
func (c *Connector) isBroken(cli *jrpc2.Client, err error) bool {
	var jerr *jrpc2.Error
	if errors.As(err, &jerr) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cli == cli
}

// Close disconnects and marks the Connector unusable for future calls.
func (c *Connector) Close() error {
	c.mu.Lock()
	c.closing = true
	c.mu.Unlock()
	return c.Disconnect()
}
