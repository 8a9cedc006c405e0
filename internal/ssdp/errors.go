package ssdp

import (
	"errors"
	"fmt"
)

// ErrorKind represents the category of failure inside the discovery engine
type ErrorKind int

const (
	// KindMalformedPacket indicates inbound text that could not be parsed into a packet
	KindMalformedPacket ErrorKind = iota
	// KindTransientSocket indicates a receive, bind or send failure that triggers socket re-creation
	KindTransientSocket
	// KindExhaustedRetries indicates the receive loop gave up after too many consecutive failures
	KindExhaustedRetries
	// KindResponseSend indicates a failure while answering a search request
	KindResponseSend
	// KindStartupBind indicates the engine could not bind or join the group at startup
	KindStartupBind
)

// ErrExhaustedRetries is matched by errors.Is for any KindExhaustedRetries error
var ErrExhaustedRetries = errors.New("an excessive number of socket failures was detected")

// String returns a human-readable name for the error kind
func (k ErrorKind) String() string {
	switch k {
	case KindMalformedPacket:
		return "MalformedPacket"
	case KindTransientSocket:
		return "TransientSocketError"
	case KindExhaustedRetries:
		return "ExhaustedRetries"
	case KindResponseSend:
		return "ResponseSendFailure"
	case KindStartupBind:
		return "StartupBindFailure"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is the error type returned by every failing operation in this package
type Error struct {
	Kind ErrorKind // Category of failure
	Op   string    // Operation that failed (e.g. "receive", "join", "respond")
	Addr string    // Remote or group address involved, if any
	Err  error     // Underlying error, if any
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("ssdp %s: %s", e.Kind, e.Op)
	if e.Addr != "" {
		msg += " " + e.Addr
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports ErrExhaustedRetries for exhausted-retry errors so callers can use errors.Is
func (e *Error) Is(target error) bool {
	return target == ErrExhaustedRetries && e.Kind == KindExhaustedRetries
}

// NewMalformedPacketError creates a parse failure error
func NewMalformedPacketError(reason string) *Error {
	return &Error{Kind: KindMalformedPacket, Op: "parse", Err: errors.New(reason)}
}

// NewTransientSocketError creates a recoverable socket I/O error
func NewTransientSocketError(op, addr string, err error) *Error {
	return &Error{Kind: KindTransientSocket, Op: op, Addr: addr, Err: err}
}

// NewExhaustedRetriesError creates the terminal receive-loop error, wrapping the last I/O failure
func NewExhaustedRetriesError(failures int, last error) *Error {
	return &Error{
		Kind: KindExhaustedRetries,
		Op:   fmt.Sprintf("receive loop stopped after %d consecutive failures", failures),
		Err:  last,
	}
}

// NewResponseSendError creates a per-response failure error
func NewResponseSendError(addr string, err error) *Error {
	return &Error{Kind: KindResponseSend, Op: "respond", Addr: addr, Err: err}
}

// NewStartupBindError creates a startup failure error
func NewStartupBindError(op, addr string, err error) *Error {
	return &Error{Kind: KindStartupBind, Op: op, Addr: addr, Err: err}
}

func hasKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsMalformed checks if an error is a packet parse failure
func IsMalformed(err error) bool {
	return hasKind(err, KindMalformedPacket)
}

// IsTransient checks if an error is a recoverable socket failure
func IsTransient(err error) bool {
	return hasKind(err, KindTransientSocket)
}

// IsExhaustedRetries checks if an error is the terminal receive-loop failure
func IsExhaustedRetries(err error) bool {
	return hasKind(err, KindExhaustedRetries)
}

// IsResponseSend checks if an error is a search response failure
func IsResponseSend(err error) bool {
	return hasKind(err, KindResponseSend)
}

// IsStartupBind checks if an error is a startup bind failure
func IsStartupBind(err error) bool {
	return hasKind(err, KindStartupBind)
}
