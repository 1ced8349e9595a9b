package scgi

import (
	"errors"
	"fmt"
	"syscall"
)

// Kind tells the accept loop what to do with a failed connection.
type Kind int

const (
	// Retryable errors drop the current connection and keep serving.
	Retryable Kind = iota + 1
	// Protocol errors are local to one connection. Whether the server keeps
	// serving depends on its ErrorPolicy.
	Protocol
	// Fatal errors stop the server.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Retryable:
		return "retryable"
	case Protocol:
		return "protocol"
	case Fatal:
		return "fatal"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

var (
	ErrSocketBind             = errors.New("scgi: failed creating socket server")
	ErrEmptyRequest           = errors.New("scgi: empty request")
	ErrMalformedLength        = errors.New("scgi: invalid netstring length")
	ErrHeaderTooLarge         = errors.New("scgi: header block too large")
	ErrMalformedHeaders       = errors.New("scgi: odd number of header tokens")
	ErrVersionMismatch        = errors.New("scgi: request is not SCGI/1 compliant")
	ErrMissingContentLength   = errors.New("scgi: CONTENT_LENGTH header not present")
	ErrMalformedContentLength = errors.New("scgi: invalid CONTENT_LENGTH")
	ErrTruncated              = errors.New("scgi: connection closed mid-request")
	ErrHandler                = errors.New("scgi: handler failed")
	ErrResponseFlushed        = errors.New("scgi: response already flushed")
	ErrServerClosed           = errors.New("scgi: server closed")
)

// Error is the single error type returned by the decoder, the listener and
// the accept loop.
type Error struct {
	Kind Kind
	Op   string // "bind", "accept", "read", "handle", "write"
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Code returns the OS error number behind the failure, or 0.
func (e *Error) Code() int {
	var errno syscall.Errno
	if errors.As(e.Err, &errno) {
		return int(errno)
	}
	return 0
}

// KindOf reports the kind of err. Errors not produced by this package are
// treated as Protocol errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Protocol
}

func protocolError(op string, err error) *Error {
	return &Error{Kind: Protocol, Op: op, Err: err}
}

// errorf wraps cause with a detail message, keeping cause matchable.
func errorf(kind Kind, op string, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf("%w: "+format, append([]any{cause}, args...)...)}
}
