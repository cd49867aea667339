package aquos

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors for the Aquos bridge package.
// Use errors.Is() against these; the typed errors below all match one of them.
var (
	// ErrConnectionFailed is returned when the transport cannot be opened
	// (bad device path, refused TCP connection, permission denied).
	ErrConnectionFailed = errors.New("aquos: connection failed")

	// ErrNotConnected is returned when an exchange is attempted on a
	// closed transport.
	ErrNotConnected = errors.New("aquos: not connected")

	// ErrTimeout is returned when the TV does not terminate its reply with
	// a carriage return within the read timeout.
	ErrTimeout = errors.New("aquos: reply timed out")

	// ErrUnknownCommand is returned when a command path is not present in
	// the command table. This is a configuration defect and is never retried.
	ErrUnknownCommand = errors.New("aquos: unknown command")

	// ErrMalformedReply is returned when a reply does not have the shape the
	// operation expects (e.g. a setter answered with neither OK nor ERR).
	ErrMalformedReply = errors.New("aquos: malformed reply")

	// ErrInvalidParameter is returned when a caller value is outside the
	// domain of the operation. Nothing is sent to the TV.
	ErrInvalidParameter = errors.New("aquos: invalid parameter")

	// ErrDegraded is returned by Retry once the attempt budget is exhausted
	// and the client state has been forced to off.
	ErrDegraded = errors.New("aquos: retries exhausted, state degraded")
)

// TimeoutError carries the bytes received before the read deadline expired.
type TimeoutError struct {
	Partial []byte
}

func (e *TimeoutError) Error() string {
	hex := make([]string, len(e.Partial))
	for i, b := range e.Partial {
		hex[i] = fmt.Sprintf("0x%02x", b)
	}
	return fmt.Sprintf("aquos: reply timed out, last received bytes [%s]", strings.Join(hex, " "))
}

// Unwrap lets errors.Is(err, ErrTimeout) match.
func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// UnknownCommandError names the first path segment that could not be resolved.
type UnknownCommandError struct {
	Path    []string
	Segment string
	Reason  string
}

func (e *UnknownCommandError) Error() string {
	msg := fmt.Sprintf("aquos: unknown command %q in path %q", e.Segment, strings.Join(e.Path, "."))
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Unwrap lets errors.Is(err, ErrUnknownCommand) match.
func (e *UnknownCommandError) Unwrap() error { return ErrUnknownCommand }

// MalformedReplyError describes a reply that did not fit the operation.
type MalformedReplyError struct {
	Operation string
	Reply     Reply
	Want      string
}

func (e *MalformedReplyError) Error() string {
	return fmt.Sprintf("aquos: %s: expected %s, got %s %q", e.Operation, e.Want, e.Reply.Kind, e.Reply.Text)
}

// Unwrap lets errors.Is(err, ErrMalformedReply) match.
func (e *MalformedReplyError) Unwrap() error { return ErrMalformedReply }

// isConfigurationError reports whether retrying err can never succeed.
func isConfigurationError(err error) bool {
	return errors.Is(err, ErrUnknownCommand) || errors.Is(err, ErrInvalidParameter)
}
