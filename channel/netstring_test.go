package channel_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/txrpc/jrpc2/channel"
)

type closeBuffer struct{ bytes.Buffer }

func (closeBuffer) Close() error { return nil }

func TestNetstringWireFormat(t *testing.T) {
	var buf closeBuffer
	ch := channel.Netstring(nil, &buf)
	if err := ch.Send([]byte(`{"jsonrpc":"2.0"}`)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	const want = `17:{"jsonrpc":"2.0"},`
	if got := buf.String(); got != want {
		t.Errorf("wire format: got %q, want %q", got, want)
	}
}

func TestNetstringRecv(t *testing.T) {
	r := bytes.NewBufferString("5:hello,3:abc,")
	ch := channel.Netstring(r, &closeBuffer{})
	for _, want := range []string{"hello", "abc"} {
		got, err := ch.Recv()
		if err != nil {
			t.Fatalf("Recv failed: %v", err)
		}
		if string(got) != want {
			t.Errorf("Recv: got %q, want %q", got, want)
		}
	}
	if _, err := ch.Recv(); err != io.EOF {
		t.Errorf("Recv at end: got err=%v, want io.EOF", err)
	}
}

func TestNetstringRejectsBadPrefix(t *testing.T) {
	r := bytes.NewBufferString("notanumber:x,")
	ch := channel.Netstring(r, &closeBuffer{})
	if _, err := ch.Recv(); err == nil {
		t.Error("Recv with malformed length prefix did not fail")
	}
}

func TestNetstringRejectsMissingComma(t *testing.T) {
	r := bytes.NewBufferString("5:helloXXXXX")
	ch := channel.Netstring(r, &closeBuffer{})
	if _, err := ch.Recv(); err == nil {
		t.Error("Recv with missing trailing comma did not fail")
	}
}
