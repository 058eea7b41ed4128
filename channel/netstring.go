package channel

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// maxNetstringLength bounds the decimal length prefix accepted by Netstring,
// guarding against a corrupt or hostile peer claiming an unbounded message.
const maxNetstringLength = 64 << 20 // 64 MiB

// Netstring is a framing that transmits and receives messages using the
// netstring discipline: a decimal ASCII length, a colon, that many bytes of
// payload, and a trailing comma. This is the reference framing for the
// JSON-RPC engine pair and is compatible with the netstring-framed transport
// used by the originating Python/Twisted service.
func Netstring(r io.Reader, wc io.WriteCloser) Channel {
	return netstring{wc: wc, buf: bufio.NewReader(r)}
}

type netstring struct {
	wc  io.WriteCloser
	buf *bufio.Reader
}

// Send implements part of the Channel interface.
func (c netstring) Send(msg []byte) error {
	if _, err := fmt.Fprintf(c.wc, "%d:", len(msg)); err != nil {
		return err
	}
	if _, err := c.wc.Write(msg); err != nil {
		return err
	}
	_, err := c.wc.Write([]byte{','})
	return err
}

// Recv implements part of the Channel interface.
func (c netstring) Recv() ([]byte, error) {
	lenbuf, err := c.buf.ReadSlice(':')
	if err != nil {
		if err == io.EOF && len(lenbuf) == 0 {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("netstring: reading length prefix: %w", err)
	}
	n, err := strconv.Atoi(string(lenbuf[:len(lenbuf)-1]))
	if err != nil || n < 0 {
		return nil, errors.New("netstring: invalid length prefix")
	}
	if n > maxNetstringLength {
		return nil, fmt.Errorf("netstring: length %d exceeds maximum", n)
	}
	msg := make([]byte, n+1) // +1 for the trailing comma
	if _, err := io.ReadFull(c.buf, msg); err != nil {
		return nil, fmt.Errorf("netstring: reading payload: %w", err)
	}
	if msg[n] != ',' {
		return nil, errors.New("netstring: missing trailing comma")
	}
	return msg[:n], nil
}

// Close implements part of the Channel interface.
func (c netstring) Close() error { return c.wc.Close() }
