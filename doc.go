/*
Package jrpc2 implements a server and a client for the JSON-RPC 2.0 protocol
defined by http://www.jsonrpc.org/specification, together with a compatibility
layer for the v1.1 and v1.0 wire profiles used by older peers.

# Servers

The *Server type implements a JSON-RPC server. A server communicates with a
client over a channel.Channel, and dispatches client requests to user-defined
method handlers. A handler is any function with the signature:

	func(ctx context.Context, req *jrpc2.Request) (any, error)

The server finds the handler for a request by looking up its name in a
jrpc2.Assigner provided when the server is set up. Methods carry explicit
arity and shape metadata rather than being inferred by reflection over a Go
function signature, so that the same validation applies uniformly regardless
of wire profile: a method registered with keyed parameter names will reject
keyed params from a v1.0 peer, which cannot express them.

Let's work an example. Suppose we have defined the following Add function, and
would like to export it via JSON-RPC:

	// Add returns the sum of a slice of integers.
	func Add(ctx context.Context, req *jrpc2.Request) (any, error) {
	   var values []int
	   if err := req.UnmarshalParams(&values); err != nil {
	      return nil, err
	   }
	   sum := 0
	   for _, v := range values {
	      sum += v
	   }
	   return sum, nil
	}

The export package builds an Assigner from a set of named handlers:

	import "github.com/txrpc/jrpc2/export"

	assigner := export.Map(export.Func("Math.Add", Add))

Equipped with an Assigner we can now construct a Server:

	srv := jrpc2.NewServer(assigner, nil)  // nil for default options

To serve requests, we will next need a connection. The channel package exports
functions that can adapt various input and output streams to a channel.Channel,
for example:

	srv.Start(channel.Line(os.Stdin, os.Stdout))

The running server will handle incoming requests until the connection fails or
until it is stopped explicitly by calling srv.Stop(). To wait for the server to
finish, call:

	err := srv.Wait()

This will report the error that led to the server exiting.

Methods can also be added dynamically once the server is running, with
srv.Add(name, handler, types), where types optionally describes the
expected parameter shape for validation.

# Clients

The *Client type implements a JSON-RPC client. A client communicates with a
server over a Channel, and is safe for concurrent use by multiple
goroutines. It supports batched requests and may have arbitrarily many pending
requests in flight simultaneously.

To establish a client we first need a Channel:

	import "net"

	conn, err := net.Dial("tcp", "localhost:8080")
	...
	cli := jrpc2.NewClient(channel.Netstring(conn, conn), nil)

To send an RPC, call the Call method with the method name and parameters. It
issues the request to the server and blocks until the reply arrives:

	rsp, err := cli.Call(ctx, "Math.Add", []int{1, 3, 5, 7})

You can check whether a response contains an error using its Error method:

	if rsp.Error() != nil {
	   log.Printf("Error from server: %v", rsp.Error())
	}

To issue a batch of requests all at once, use the Batch method:

	batch, err := cli.Batch(ctx, []jrpc2.Spec{
	   {Method: "Math.Add", Params: []int{1, 2, 3}},
	   {Method: "Math.Mul", Params: []int{4, 5, 6}},
	   {Method: "Math.Max", Params: []int{-1, 5, 3, 0, 1}},
	})
	...
	for i, rsp := range batch {
	   if err := rsp.Error(); err != nil {
	      log.Printf("Request %d [%s] failed: %v", i, rsp.ID(), err)
	   }
	}

To decode the result from a successful response use its UnmarshalResult method:

	var result int
	if err := rsp.UnmarshalResult(&result); err != nil {
	   log.Fatalln("UnmarshalResult:", err)
	}

To shut down a client and discard all its pending work, call cli.Close().

Errors reported by the server reach the caller as a *jrpc2.Error, with a
JSON-RPC numeric code. A reply that the client cannot decode is also reported
as a *jrpc2.Error; a reply that matches no pending call is logged and
discarded.

# Notifications

The JSON-RPC protocol also supports a kind of request called a notification.
Notifications differ from ordinary requests in that they are one-way: The
client sends them to the server, but the server does not reply.

A Client supports sending notifications as follows:

	err := cli.Notify(ctx, "Alert", struct{ Msg string }{"a fire is burning"})

Unlike ordinary requests, there are no pending calls for notifications; the
notification is complete once it has been sent.

On the server side, notifications are identical to ordinary requests, save that
their return value is discarded once the handler returns. If a handler does not
want to do anything for a notification, it can query the request:

	if req.IsNotification() {
	   return 0, nil  // ignore notifications
	}

# Services with multiple methods

The export package also supports grouping handlers under a namespace:

	assigner := export.Services(map[string]jrpc2.Map{
	   "Math":   export.Namespace(export.Func("Add", Add), export.Func("Mul", Mul)),
	   "Status": export.Namespace(export.Func("Get", Get)),
	})

This assigner dispatches "Math.Add" and "Math.Mul" to the Math namespace's
handlers, and "Status.Get" to the Status namespace's handler. A ServiceMap
splits the method name on the first period ("."), and you may nest them more
deeply if you require a more complex hierarchy.

# Connection management

The connector package provides a long-lived client wrapper that dials lazily
on first use, shares a single in-flight dial among concurrent callers, and
dials afresh on the next call after the connection is dropped explicitly or a
call finds it broken. See the connector package documentation for details.
*/
package jrpc2
