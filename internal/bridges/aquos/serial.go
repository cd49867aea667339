package aquos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
)

// serialPort is the subset of serial.Port the transport uses.
type serialPort interface {
	io.ReadWriteCloser
	Drain() error
	ResetInputBuffer() error
	ResetOutputBuffer() error
	SetReadTimeout(t time.Duration) error
}

// serialTransport talks to the TV over a local RS-232C port.
type serialTransport struct {
	address string
	port    serialPort
	closed  atomic.Bool
	counters
}

func openSerial(params ConnectionParams, path string) (*serialTransport, error) {
	mode := &serial.Mode{
		BaudRate: params.BaudRate,
		DataBits: params.DataBits,
		Parity:   serialParity(params.Parity),
		StopBits: serialStopBits(params.StopBits),
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrConnectionFailed, path, err)
	}

	t, err := newSerialTransport(port, path, params.ReadTimeout)
	if err != nil {
		port.Close()
		return nil, err
	}
	return t, nil
}

func newSerialTransport(port serialPort, address string, readTimeout time.Duration) (*serialTransport, error) {
	if err := port.SetReadTimeout(readTimeout); err != nil {
		return nil, fmt.Errorf("%w: set read timeout: %w", ErrConnectionFailed, err)
	}
	t := &serialTransport{address: address, port: port}
	t.touch()
	return t, nil
}

func serialParity(p string) serial.Parity {
	switch strings.ToUpper(p) {
	case "E":
		return serial.EvenParity
	case "O":
		return serial.OddParity
	case "M":
		return serial.MarkParity
	case "S":
		return serial.SpaceParity
	default:
		return serial.NoParity
	}
}

func serialStopBits(s float64) serial.StopBits {
	switch s {
	case 1.5:
		return serial.OnePointFiveStopBits
	case 2:
		return serial.TwoStopBits
	default:
		return serial.OneStopBit
	}
}

// Exchange implements Transport.
func (t *serialTransport) Exchange(ctx context.Context, frame []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.closed.Load() {
		return nil, ErrNotConnected
	}

	if err := t.port.ResetOutputBuffer(); err != nil {
		t.errorsTotal.Add(1)
		return nil, fmt.Errorf("aquos: reset output buffer: %w", err)
	}
	if err := t.port.ResetInputBuffer(); err != nil {
		t.errorsTotal.Add(1)
		return nil, fmt.Errorf("aquos: reset input buffer: %w", err)
	}

	if _, err := t.port.Write(frame); err != nil {
		t.errorsTotal.Add(1)
		return nil, fmt.Errorf("aquos: write: %w", err)
	}
	if err := t.port.Drain(); err != nil {
		t.errorsTotal.Add(1)
		return nil, fmt.Errorf("aquos: drain: %w", err)
	}
	t.framesTx.Add(1)
	t.touch()

	buf := make([]byte, 1)
	reply, err := readReply(func() (byte, bool, error) {
		n, err := t.port.Read(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, false, fmt.Errorf("aquos: read: %w", err)
		}
		if n == 0 {
			return 0, false, nil
		}
		return buf[0], true, nil
	})
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			t.timeoutsTotal.Add(1)
		} else {
			t.errorsTotal.Add(1)
		}
		return nil, err
	}

	t.repliesRx.Add(1)
	t.touch()
	return reply, nil
}

// Address implements Transport.
func (t *serialTransport) Address() string {
	return t.address
}

// Stats implements Transport.
func (t *serialTransport) Stats() TransportStats {
	return t.snapshot(!t.closed.Load())
}

// Close implements Transport. Safe to call more than once.
func (t *serialTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	return t.port.Close()
}
