package code

import (
	"context"
	"errors"
	"testing"
)

type coded struct{ c Code }

func (e coded) Error() string { return e.c.Error() }
func (e coded) ErrCode() Code { return e.c }

func TestFromError(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{nil, NoError},
		{coded{c: InvalidParams}, InvalidParams},
		{context.DeadlineExceeded, DeadlineExceeded},
		{context.Canceled, Cancelled},
		{errors.New("boom"), SystemError},
	}
	for _, c := range cases {
		if got := FromError(c.err); got != c.want {
			t.Errorf("FromError(%v): got %v, want %v", c.err, got, c.want)
		}
	}
}

func TestRegistration(t *testing.T) {
	const message = "fun for the whole family"
	c := Register(-100, message)
	if got := c.Error(); got != message {
		t.Errorf("Register(-100): got %q, want %q", got, message)
	} else if c != -100 {
		t.Errorf("Register(-100): got %d instead", c)
	}
}

func TestRegistrationError(t *testing.T) {
	defer func() {
		if v := recover(); v != nil {
			t.Logf("Register correctly panicked: %v", v)
		} else {
			t.Fatalf("Register should have panicked on input %d, but did not", ParseError)
		}
	}()
	Register(int32(ParseError), "bogus")
}
