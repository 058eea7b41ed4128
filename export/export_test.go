package export_test

import (
	"context"
	"testing"

	"github.com/txrpc/jrpc2"
	"github.com/txrpc/jrpc2/export"
)

func add(ctx context.Context, req *jrpc2.Request) (any, error) {
	var vs []int
	if err := req.UnmarshalParams(&vs); err != nil {
		return nil, err
	}
	sum := 0
	for _, v := range vs {
		sum += v
	}
	return sum, nil
}

func TestMapAssign(t *testing.T) {
	m := export.Map(export.Func("Add", add))
	if m.Assign(context.Background(), "Add") == nil {
		t.Error("Assign(Add): got nil, want handler")
	}
	if m.Assign(context.Background(), "Missing") != nil {
		t.Error("Assign(Missing): got handler, want nil")
	}
	if got, want := m.Names(), []string{"Add"}; len(got) != len(want) || got[0] != want[0] {
		t.Errorf("Names: got %v, want %v", got, want)
	}
}

func TestServices(t *testing.T) {
	m := export.Services(map[string]jrpc2.Map{
		"Math": export.Namespace(export.Func("Add", add)),
	})
	if m.Assign(context.Background(), "Math.Add") == nil {
		t.Error("Assign(Math.Add): got nil, want handler")
	}
	if m.Assign(context.Background(), "Math.Missing") != nil {
		t.Error("Assign(Math.Missing): got handler, want nil")
	}
	want := "Math.Add"
	names := m.Names()
	if len(names) != 1 || names[0] != want {
		t.Errorf("Names: got %v, want [%s]", names, want)
	}
}
