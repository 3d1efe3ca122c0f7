// Package transport implements the framed-message wire protocol: a two-byte
// delimiter terminates every message, reads are bounded by a per-call
// maximum length, and an orthogonal "recharging" bracket may precede any
// expected message. Grounded on the teacher's sendRecv idiom (go-sol's
// Session.sendRecv): set a deadline on the connection before every read and
// wrap I/O errors with %w rather than losing the underlying cause.
package transport

import (
	"bytes"
	"errors"
	"io"
	"net"
	"time"

	"github.com/glennswest/robotserver/protoerr"
)

// Delimiter is the fixed two-byte sequence ending every protocol message.
var Delimiter = []byte{0x07, 0x08}

const (
	rechargingToken = "RECHARGING"
	fullPowerToken  = "FULL POWER"

	// NormalTimeout bounds ordinary receives.
	NormalTimeout = 1 * time.Second
	// RechargeTimeout bounds the wait for FULL POWER once RECHARGING arrives.
	RechargeTimeout = 5 * time.Second
)

// rechargingCap is the max_len a receive needs to fit "RECHARGING" plus its
// trailing delimiter, used to extend a caller's smaller cap when the
// buffered prefix so far could still turn out to be RECHARGING.
var rechargingCap = len(rechargingToken) + len(Delimiter)

// TranscriptWriter records one wire-level message for a session. It is
// satisfied by translog.Writer; kept as an interface here so transport has
// no dependency on that package.
type TranscriptWriter interface {
	Write(sessionID, direction string, payload []byte) error
}

// Conn is a framed connection over a byte stream. It owns the buffered
// remainder left over from the previous receive and the stream's current
// read timeout.
type Conn struct {
	nc              net.Conn
	remainder       []byte
	normalTimeout   time.Duration
	rechargeTimeout time.Duration

	transcript TranscriptWriter
	sessionID  string
}

// SetTranscript attaches a transcript writer; every subsequent Send and
// successful Receive/ReadExpected is appended to it, tagged "->" or "<-".
func (c *Conn) SetTranscript(w TranscriptWriter, sessionID string) {
	c.transcript = w
	c.sessionID = sessionID
}

func (c *Conn) logTranscript(direction string, payload []byte) {
	if c.transcript == nil {
		return
	}
	c.transcript.Write(c.sessionID, direction, payload)
}

// NewConn wraps nc for framed reads and writes, using the given normal and
// recharge timeouts (pass zero values to use the protocol defaults).
func NewConn(nc net.Conn, normalTimeout, rechargeTimeout time.Duration) *Conn {
	if normalTimeout <= 0 {
		normalTimeout = NormalTimeout
	}
	if rechargeTimeout <= 0 {
		rechargeTimeout = RechargeTimeout
	}
	return &Conn{nc: nc, normalTimeout: normalTimeout, rechargeTimeout: rechargeTimeout}
}

// Close closes the underlying connection.
func (c *Conn) Close() error { return c.nc.Close() }

// RemoteAddr exposes the peer address for logging.
func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

// Receive returns the next complete message (without the delimiter),
// reading at most maxLen bytes total (remainder included) before declaring
// the message too long or missing its delimiter. When the buffered bytes are
// a proper prefix of RECHARGING, the limit is raised to fit RECHARGING and
// its delimiter.
func (c *Conn) Receive(maxLen int) ([]byte, error) {
	msg, err := c.receive(maxLen, c.normalTimeout)
	if err == nil {
		c.logTranscript("<-", msg)
	}
	return msg, err
}

func (c *Conn) receive(maxLen int, timeout time.Duration) ([]byte, error) {
	buf := c.remainder
	c.remainder = nil

	for {
		if idx := bytes.Index(buf, Delimiter); idx != -1 {
			msg := buf[:idx]
			c.remainder = buf[idx+len(Delimiter):]
			return msg, nil
		}

		if len(buf) >= maxLen {
			// The buffered prefix might still be a proper prefix of
			// RECHARGING cut off too early by a caller's smaller cap;
			// extend the cap once and keep reading rather than fail.
			if maxLen < rechargingCap && isPrefixOf(buf, rechargingToken) {
				maxLen = rechargingCap
				continue
			}
			return nil, protoerr.SyntaxError("message too long or missing delimiter", nil)
		}

		if err := c.nc.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return nil, protoerr.TransportError("set read deadline", err)
		}

		chunk := make([]byte, maxLen-len(buf))
		n, err := c.nc.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, protoerr.TransportError("peer closed connection", err)
			}
			return nil, protoerr.TransportError("read failed", err)
		}
		if n == 0 {
			return nil, protoerr.TransportError("peer closed connection", nil)
		}
	}
}

func isPrefixOf(buf []byte, s string) bool {
	if len(buf) >= len(s) {
		return false
	}
	return string(buf) == s[:len(buf)]
}

// Send writes payload in full, retrying on short writes.
func (c *Conn) Send(payload []byte) error {
	written := 0
	for written < len(payload) {
		n, err := c.nc.Write(payload[written:])
		if err != nil {
			return protoerr.TransportError("write failed", err)
		}
		if n == 0 {
			return protoerr.TransportError("write returned zero bytes", nil)
		}
		written += n
	}
	c.logTranscript("->", payload)
	return nil
}

// SendString is a convenience wrapper for literal protocol messages.
func (c *Conn) SendString(s string) error {
	return c.Send([]byte(s))
}

// ReadExpected performs a framed Receive for the caller's expected message,
// transparently absorbing a RECHARGING / FULL POWER bracket beforehand.
// Every higher-layer read goes through this so the recharge sub-protocol
// is handled in exactly one place.
func (c *Conn) ReadExpected(maxLen int) ([]byte, error) {
	payload, err := c.receive(maxLen, c.normalTimeout)
	if err != nil {
		return nil, err
	}
	c.logTranscript("<-", payload)

	if string(payload) == rechargingToken {
		full, err := c.receive(rechargingCap, c.rechargeTimeout)
		if err != nil {
			return nil, err
		}
		c.logTranscript("<-", full)
		if string(full) != fullPowerToken {
			return nil, protoerr.LogicError("expected FULL POWER after RECHARGING", nil)
		}
		return c.ReadExpected(maxLen)
	}

	if string(payload) == fullPowerToken {
		return nil, protoerr.LogicError("FULL POWER received outside a recharge window", nil)
	}

	return payload, nil
}
