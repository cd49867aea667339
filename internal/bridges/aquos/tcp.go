package aquos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"
)

// staleDrainWindow is how long Exchange listens for leftover bytes from a
// previous exchange before writing a new frame.
const staleDrainWindow = 10 * time.Millisecond

// tcpTransport talks to the TV's IP control port (serial tunnelled over TCP).
// A broken connection is dropped and redialled with the same parameters on
// the next exchange.
type tcpTransport struct {
	address string
	params  ConnectionParams
	dialer  net.Dialer

	mu     sync.Mutex
	conn   net.Conn
	closed bool

	counters
}

func dialTCP(ctx context.Context, params ConnectionParams, address string) (*tcpTransport, error) {
	t := &tcpTransport{
		address: address,
		params:  params,
		dialer:  net.Dialer{Timeout: params.ReadTimeout + params.WriteTimeout},
	}

	conn, err := t.dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrConnectionFailed, address, err)
	}
	t.conn = conn
	t.touch()
	return t, nil
}

// Exchange implements Transport.
func (t *tcpTransport) Exchange(ctx context.Context, frame []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrNotConnected
	}
	if t.conn == nil {
		if err := t.redial(ctx); err != nil {
			return nil, err
		}
	}

	// The TV closes idle sessions; a dead socket shows up here before
	// anything is written, so redial once instead of failing the exchange.
	if err := t.discardStale(); err != nil {
		t.drop()
		if err := t.redial(ctx); err != nil {
			return nil, err
		}
	}

	if err := t.conn.SetWriteDeadline(t.deadline(ctx, t.params.WriteTimeout)); err != nil {
		t.drop()
		return nil, fmt.Errorf("aquos: set write deadline: %w", err)
	}
	if _, err := t.conn.Write(frame); err != nil {
		t.drop()
		return nil, fmt.Errorf("aquos: write: %w", err)
	}
	t.framesTx.Add(1)
	t.touch()

	buf := make([]byte, 1)
	reply, err := readReply(func() (byte, bool, error) {
		if err := t.conn.SetReadDeadline(t.deadline(ctx, t.params.ReadTimeout)); err != nil {
			return 0, false, fmt.Errorf("aquos: set read deadline: %w", err)
		}
		n, err := t.conn.Read(buf)
		if n == 1 {
			return buf[0], true, nil
		}
		if isTimeout(err) {
			return 0, false, nil
		}
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return 0, false, fmt.Errorf("aquos: read: %w", err)
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrTimeout):
			t.timeoutsTotal.Add(1)
		case errors.Is(err, ErrMalformedReply):
			t.errorsTotal.Add(1)
		default:
			t.drop()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", ctxErr, err)
		}
		return nil, err
	}

	t.repliesRx.Add(1)
	t.touch()
	return reply, nil
}

// deadline returns now+d, or the context deadline if it is sooner.
func (t *tcpTransport) deadline(ctx context.Context, d time.Duration) time.Time {
	dl := time.Now().Add(d)
	if ctxDL, ok := ctx.Deadline(); ok && ctxDL.Before(dl) {
		return ctxDL
	}
	return dl
}

// discardStale reads and drops anything left in the receive buffer.
func (t *tcpTransport) discardStale() error {
	if err := t.conn.SetReadDeadline(time.Now().Add(staleDrainWindow)); err != nil {
		return fmt.Errorf("aquos: set read deadline: %w", err)
	}
	buf := make([]byte, maxReplySize)
	for {
		_, err := t.conn.Read(buf)
		if err == nil {
			continue
		}
		if isTimeout(err) {
			return nil
		}
		return fmt.Errorf("aquos: clear input: %w", err)
	}
}

// redial must be called with mu held.
func (t *tcpTransport) redial(ctx context.Context) error {
	t.reconnectsTotal.Add(1)
	conn, err := t.dialer.DialContext(ctx, "tcp", t.address)
	if err != nil {
		t.errorsTotal.Add(1)
		return fmt.Errorf("%w: redial %s: %w", ErrConnectionFailed, t.address, err)
	}
	t.conn = conn
	return nil
}

// drop must be called with mu held.
func (t *tcpTransport) drop() {
	t.errorsTotal.Add(1)
	if t.conn != nil {
		t.conn.Close() //nolint:errcheck // connection is already broken
		t.conn = nil
	}
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Address implements Transport.
func (t *tcpTransport) Address() string {
	return "tcp://" + t.address
}

// Stats implements Transport.
func (t *tcpTransport) Stats() TransportStats {
	t.mu.Lock()
	connected := t.conn != nil && !t.closed
	t.mu.Unlock()
	return t.snapshot(connected)
}

// Close implements Transport. Safe to call more than once.
func (t *tcpTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}
