package aquos

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync/atomic"
	"time"
)

// Default line settings, matching the Aquos RS-232C manual.
const (
	DefaultBaudRate     = 9600
	DefaultDataBits     = 8
	DefaultStopBits     = 1.0
	DefaultParity       = "N"
	DefaultReadTimeout  = 2 * time.Second
	DefaultWriteTimeout = 2 * time.Second

	// DefaultIPPort is the TCP port of the TV's IP control service.
	DefaultIPPort = 10002

	// maxReplySize bounds a reply that never terminates but keeps streaming.
	maxReplySize = 256
)

// ConnectionParams holds the line settings of one transport.
// They are fixed at construction; a reconnect reapplies them unchanged.
type ConnectionParams struct {
	// Address selects the addressing mode:
	//   - "/dev/ttyUSB0", "COM3" (serial device)
	//   - "tcp://192.168.1.20:10002", "socket://192.168.1.20:10002" or
	//     "192.168.1.20:10002" (network-tunnelled serial)
	Address string

	BaudRate int

	// DataBits is the byte size: 5, 6, 7 or 8.
	DataBits int

	// StopBits is 1, 1.5 or 2.
	StopBits float64

	// Parity is one of N, E, O, M, S.
	Parity string

	// ReadTimeout bounds the wait for each reply byte.
	ReadTimeout time.Duration

	// WriteTimeout bounds a frame write (TCP only; serial writes block
	// until drained).
	WriteTimeout time.Duration
}

// WithDefaults fills zero fields with the manual's defaults.
func (p ConnectionParams) WithDefaults() ConnectionParams {
	if p.BaudRate == 0 {
		p.BaudRate = DefaultBaudRate
	}
	if p.DataBits == 0 {
		p.DataBits = DefaultDataBits
	}
	if p.StopBits == 0 {
		p.StopBits = DefaultStopBits
	}
	if p.Parity == "" {
		p.Parity = DefaultParity
	}
	if p.ReadTimeout == 0 {
		p.ReadTimeout = DefaultReadTimeout
	}
	if p.WriteTimeout == 0 {
		p.WriteTimeout = DefaultWriteTimeout
	}
	return p
}

// Validate checks the line settings.
func (p ConnectionParams) Validate() error {
	var errs []string
	if p.Address == "" {
		errs = append(errs, "address is required")
	}
	if p.BaudRate <= 0 {
		errs = append(errs, fmt.Sprintf("baud rate must be positive, got %d", p.BaudRate))
	}
	if p.DataBits < 5 || p.DataBits > 8 {
		errs = append(errs, fmt.Sprintf("data bits must be 5-8, got %d", p.DataBits))
	}
	if p.StopBits != 1 && p.StopBits != 1.5 && p.StopBits != 2 {
		errs = append(errs, fmt.Sprintf("stop bits must be 1, 1.5 or 2, got %v", p.StopBits))
	}
	switch strings.ToUpper(p.Parity) {
	case "N", "E", "O", "M", "S":
	default:
		errs = append(errs, fmt.Sprintf("parity must be one of N, E, O, M, S, got %q", p.Parity))
	}
	if p.ReadTimeout <= 0 {
		errs = append(errs, "read timeout must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid connection parameters: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Endpoint returns the network ("serial" or "tcp") and address.
func (p ConnectionParams) Endpoint() (network, address string, err error) {
	if strings.Contains(p.Address, "://") {
		u, err := url.Parse(p.Address)
		if err != nil {
			return "", "", fmt.Errorf("invalid address: %w", err)
		}
		switch u.Scheme {
		case "tcp", "socket":
			host := u.Host
			if u.Port() == "" {
				host = net.JoinHostPort(u.Hostname(), fmt.Sprint(DefaultIPPort))
			}
			return "tcp", host, nil
		case "serial", "file":
			return "serial", u.Path, nil
		default:
			return "", "", fmt.Errorf("unsupported scheme %q (use tcp, socket or a device path)", u.Scheme)
		}
	}

	if !strings.HasPrefix(p.Address, "/") {
		if _, port, err := net.SplitHostPort(p.Address); err == nil && port != "" {
			return "tcp", p.Address, nil
		}
	}
	return "serial", p.Address, nil
}

// Transport performs synchronous request/response exchanges with the TV.
type Transport interface {
	// Exchange clears stale buffers, writes frame, and reads until CR.
	Exchange(ctx context.Context, frame []byte) ([]byte, error)

	// Address is the endpoint, for logs and health messages.
	Address() string

	// Stats returns operational counters.
	Stats() TransportStats

	// Close releases the connection.
	Close() error
}

// TransportStats holds operational statistics.
type TransportStats struct {
	FramesTx        uint64
	RepliesRx       uint64
	TimeoutsTotal   uint64
	ErrorsTotal     uint64
	ReconnectsTotal uint64
	LastActivity    time.Time
	Connected       bool
}

// Open establishes the connection described by params.
// Failures match ErrConnectionFailed.
func Open(ctx context.Context, params ConnectionParams) (Transport, error) {
	params = params.WithDefaults()
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	network, address, err := params.Endpoint()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	if network == "tcp" {
		return dialTCP(ctx, params, address)
	}
	return openSerial(params, address)
}

// counters is embedded by both transports.
type counters struct {
	framesTx        atomic.Uint64
	repliesRx       atomic.Uint64
	timeoutsTotal   atomic.Uint64
	errorsTotal     atomic.Uint64
	reconnectsTotal atomic.Uint64
	lastActivity    atomic.Int64
}

func (c *counters) snapshot(connected bool) TransportStats {
	return TransportStats{
		FramesTx:        c.framesTx.Load(),
		RepliesRx:       c.repliesRx.Load(),
		TimeoutsTotal:   c.timeoutsTotal.Load(),
		ErrorsTotal:     c.errorsTotal.Load(),
		ReconnectsTotal: c.reconnectsTotal.Load(),
		LastActivity:    time.Unix(c.lastActivity.Load(), 0),
		Connected:       connected,
	}
}

func (c *counters) touch() {
	c.lastActivity.Store(time.Now().Unix())
}

// readReply calls next until it yields the reply terminator.
// next reports ok=false when no byte arrived within the read timeout.
func readReply(next func() (b byte, ok bool, err error)) ([]byte, error) {
	var reply []byte
	for {
		b, ok, err := next()
		if err != nil {
			return reply, err
		}
		if !ok {
			return nil, &TimeoutError{Partial: reply}
		}
		reply = append(reply, b)
		if b == replyTerminator {
			return reply, nil
		}
		if len(reply) >= maxReplySize {
			return nil, fmt.Errorf("%w: no terminator within %d bytes", ErrMalformedReply, maxReplySize)
		}
	}
}
