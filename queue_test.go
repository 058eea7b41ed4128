// Copyright (C) 2017 Michael J. Fromberger. All Rights Reserved.

package jrpc2

import "testing"

func TestQueue(t *testing.T) {
	q := newQueue()
	if !q.isEmpty() {
		t.Fatal("new queue is not empty")
	}
	a := jmessages{{M: "a"}}
	b := jmessages{{M: "b"}}
	q.push(a)
	q.push(b)
	if q.size() != 2 {
		t.Fatalf("size: got %d, want 2", q.size())
	}
	var seen []string
	q.each(func(batch jmessages) { seen = append(seen, batch[0].M) })
	if len(seen) != 2 || seen[0] != "a" || seen[1] != "b" {
		t.Fatalf("each: got %v", seen)
	}
	if got := q.pop(); got[0].M != "a" {
		t.Fatalf("pop: got %v, want a", got)
	}
	if q.size() != 1 {
		t.Fatalf("size after pop: got %d, want 1", q.size())
	}
	q.reset()
	if !q.isEmpty() {
		t.Fatal("queue not empty after reset")
	}
}
