// Copyright (C) 2017 Michael J. Fromberger. All Rights Reserved.

package jrpc2

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/txrpc/jrpc2/code"
)

// Types constrains the parameters a registered Method will accept. A nil
// *Types imposes no constraint: any params value, or none, is passed to the
// handler unexamined.
//
// Unlike the teacher's reflection-driven handler.New, a caller states the
// expected shape explicitly at registration time (spec.md §9, "Arity
// introspection"): there is no inspection of the handler's Go signature.
// This mirrors original_source/txjason/service.py's _man_args/_max_args and
// _validate_params_types, which derive the same checks from a Python
// function's declared argument list.
type Types struct {
	// MinArgs and MaxArgs bound the number of elements accepted when params
	// is encoded as a JSON array. A negative value disables the
	// corresponding bound. Both are ignored when params is an object.
	MinArgs, MaxArgs int

	// Keys, if non-nil, lists the only permitted keys when params is
	// encoded as a JSON object. A nil slice permits any keys.
	Keys []string

	// Required lists the subset of Keys that must be present when params is
	// encoded as a JSON object.
	Required []string
}

// checkKeywordVersion rejects keyed (object) params sent to a request under
// a protocol version that does not support them (v1.0). Unlike arity/key
// checking, this rule needs no registered *Types to apply: it runs for every
// method, typed or not, mirroring
// original_source/txjason/service.py:_call_method, which raises
// KeywordError unconditionally rather than gating it behind the optional
// _validate_params_types arity check.
func checkKeywordVersion(req *Request) error {
	if firstByte([]byte(req.ParamString())) == '{' && req.Version() == V10 {
		return errKeywordsUnsupported
	}
	return nil
}

// check validates req.params against t, returning nil if req satisfies the
// declared shape. A nil *Types always succeeds. The v10-keyword-params rule
// is checked separately by checkKeywordVersion, regardless of t.
func (t *Types) check(req *Request) error {
	if t == nil {
		return nil
	}
	switch fb := firstByte([]byte(req.ParamString())); fb {
	case 0: // no parameters supplied
		if t.MinArgs > 0 {
			return errNotEnoughArgs
		}
	case '[':
		var arr []json.RawMessage
		if err := req.UnmarshalParams(&arr); err != nil {
			return err
		}
		if t.MinArgs >= 0 && len(arr) < t.MinArgs {
			return errNotEnoughArgs
		}
		if t.MaxArgs >= 0 && len(arr) > t.MaxArgs {
			return errTooManyArgs
		}
	case '{':
		var obj map[string]json.RawMessage
		if err := req.UnmarshalParams(&obj); err != nil {
			return err
		}
		if t.Keys != nil {
			allowed := make(map[string]bool, len(t.Keys))
			for _, k := range t.Keys {
				allowed[k] = true
			}
			for k := range obj {
				if !allowed[k] {
					return Errorf(code.InvalidParams, "unexpected parameter %q", k)
				}
			}
		}
		for _, k := range t.Required {
			if _, ok := obj[k]; !ok {
				return errMissingRequired.WithData(k)
			}
		}
	}
	return nil
}

// A Method pairs a Handler with optional parameter-shape metadata. The zero
// Method is a handler with no shape constraints.
type Method struct {
	Handler Handler
	Types   *Types
}

// NewMethod constructs a Method from a bare Handler with no shape
// constraints.
func NewMethod(h Handler) Method { return Method{Handler: h} }

// bind wraps m.Handler so that req is validated against m.Types (if any)
// before the underlying handler runs. The v10-keyword-params check always
// applies, since it requires no registered Types.
func (m Method) bind() Handler {
	h := m.Handler
	t := m.Types
	return func(ctx context.Context, req *Request) (any, error) {
		if err := checkKeywordVersion(req); err != nil {
			return nil, err
		}
		if err := t.check(req); err != nil {
			return nil, err
		}
		return h(ctx, req)
	}
}

// A Map is a collection of Methods keyed by name. It implements Assigner and
// Namer directly, so it can be passed to NewServer or registered as part of
// a ServiceMap.
type Map map[string]Method

// Assign implements the Assigner interface.
func (m Map) Assign(ctx context.Context, method string) Handler {
	if fn, ok := m[method]; ok {
		return fn.bind()
	}
	return nil
}

// Names implements the Namer interface.
func (m Map) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// A ServiceMap combines multiple assigners into one, and permits them to be
// addressed by a prefix. This mirrors the namespace-composition idiom of
// original_source/txjason/handler.py's Handler.addToService, which joins
// namespace segments with a separator (here fixed at ".") to build exported
// method names such as "Accounts.Create".
type ServiceMap map[string]Assigner

// Assign splits the inbound method name at the first "." to select the
// sub-assigner by service name, and delegates the remainder to it. A
// method name with no "." matches no service, and Assign returns nil.
func (m ServiceMap) Assign(ctx context.Context, method string) Handler {
	service, name := method, ""
	if i := strings.Index(method, "."); i >= 0 {
		service, name = method[:i], method[i+1:]
	}
	if mm, ok := m[service]; ok && name != "" {
		return mm.Assign(ctx, name)
	}
	return nil
}

// Names implements the Namer interface, reporting all the names exported by
// the constituent assigners that implement Namer, each qualified by its
// service prefix.
func (m ServiceMap) Names() []string {
	var names []string
	for svc, assigner := range m {
		if n, ok := assigner.(Namer); ok {
			for _, name := range n.Names() {
				names = append(names, svc+"."+name)
			}
		}
	}
	sort.Strings(names)
	return names
}
