package channel

import (
	"errors"
	"io"
	"strings"
)

// IsErrClosing reports whether err indicates an orderly shutdown of the
// channel's underlying stream, as opposed to a genuine I/O failure. This
// lets a server or client distinguish a peer that hung up deliberately from
// one that failed.
func IsErrClosing(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	return strings.Contains(err.Error(), "use of closed")
}
