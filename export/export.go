// Package export builds a jrpc2.Map/jrpc2.ServiceMap registry from a list of
// named handlers, the Go counterpart of the decorator-based registration in
// original_source/txjason/handler.py: there, exportRPC(name) tags a bound
// method and Handler.addToService walks an object's exported methods,
// joining namespace segments with a separator to produce the dotted wire
// name ("Accounts.Create"). Go has no decorators, so the same intent is
// expressed as an explicit list built at startup.
package export

import (
	"github.com/txrpc/jrpc2"
)

// An Entry names one exported method, together with its handler and
// optional parameter-shape constraints.
type Entry struct {
	Name    string
	Handler jrpc2.Handler
	Types   *jrpc2.Types
}

// Func constructs an Entry for a handler with no shape constraints.
func Func(name string, h jrpc2.Handler) Entry {
	return Entry{Name: name, Handler: h}
}

// Typed constructs an Entry whose parameters are validated against types
// before h runs.
func Typed(name string, h jrpc2.Handler, types *jrpc2.Types) Entry {
	return Entry{Name: name, Handler: h, Types: types}
}

// Map builds a jrpc2.Map from a list of entries. Later entries override
// earlier ones with the same name, matching the teacher's handler.Map
// semantics and the "last registration wins" behavior of addToService.
func Map(entries ...Entry) jrpc2.Map {
	m := make(jrpc2.Map, len(entries))
	for _, e := range entries {
		m[e.Name] = jrpc2.Method{Handler: e.Handler, Types: e.Types}
	}
	return m
}

// Namespace builds the method table of one service, for use as a value in
// the map passed to Services; it is the same as Map. Namespace adds no
// prefix itself: Services keys each table by its service name, and the
// dispatcher then sees its methods as "service.method". The separator is
// always "." and a service name is a single segment.
func Namespace(entries ...Entry) jrpc2.Map { return Map(entries...) }

// Services composes several namespaces into one Assigner, keyed by service
// name, for use as the top-level registry passed to NewServer.
func Services(byName map[string]jrpc2.Map) jrpc2.ServiceMap {
	out := make(jrpc2.ServiceMap, len(byName))
	for name, m := range byName {
		out[name] = m
	}
	return out
}
