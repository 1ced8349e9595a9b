package scgi

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/raphaelreyna/ez-scgi/internal/logger"
)

// Accept backoff bounds for temporary errors such as EMFILE.
const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// DefaultMaxHeaderBytes caps the header block when Server.MaxHeaderBytes
// is zero.
const DefaultMaxHeaderBytes = 1 << 20

// ErrorPolicy decides what Serve does after a protocol error.
type ErrorPolicy int

const (
	// ContinueOnError closes the offending connection and keeps serving.
	ContinueOnError ErrorPolicy = iota
	// StopOnError makes Serve return the first protocol or handler error.
	StopOnError
)

func (p ErrorPolicy) String() string {
	if p == StopOnError {
		return "stop"
	}
	return "continue"
}

func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch s {
	case "", "continue":
		return ContinueOnError, nil
	case "stop":
		return StopOnError, nil
	}
	return 0, fmt.Errorf("unknown error policy %q (want continue or stop)", s)
}

// Server accepts SCGI connections one at a time and dispatches each decoded
// request to Handler.
type Server struct {
	Addr           string // socket URL, see ParseAddr
	Handler        Handler
	Logger         *slog.Logger
	ErrorPolicy    ErrorPolicy
	MaxHeaderBytes int // negative disables the limit

	mu     sync.Mutex
	ln     net.Listener
	closed bool
}

// ListenAndServe binds s.Addr and calls Serve.
func (s *Server) ListenAndServe() error {
	addr := s.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	ln, err := Listen(addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve runs the accept loop on ln until Close is called, accepting fails,
// or a protocol error occurs under StopOnError. After Close it returns
// ErrServerClosed. Temporary accept errors (timeouts, descriptor
// exhaustion, aborted connections) are retried with a growing delay.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	s.ln = ln
	s.mu.Unlock()

	log := s.logger()
	log.Info("Initialized SCGI server", "addr", addrURL(ln.Addr()), "on_error", s.ErrorPolicy)
	log.Debug("Entering run loop")
	defer log.Debug("Left run loop")

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				return ErrServerClosed
			}
			if !temporaryAcceptError(err) {
				return &Error{Kind: Fatal, Op: "accept", Err: err}
			}
			if delay == 0 {
				delay = minAcceptDelay
			} else {
				delay *= 2
			}
			if delay > maxAcceptDelay {
				delay = maxAcceptDelay
			}
			log.Warn("accept failed: retrying", "error", err, "delay", delay)
			time.Sleep(delay)
			continue
		}
		delay = 0

		err = s.serveConn(conn)
		if err == nil {
			continue
		}
		switch KindOf(err) {
		case Retryable:
			log.Info("bad request: retrying", "error", err)
		case Protocol:
			log.Warn("request failed", "error", err)
			if s.ErrorPolicy == StopOnError {
				return err
			}
		default:
			return err
		}
	}
}

// serveConn handles exactly one request and always closes conn.
func (s *Server) serveConn(conn net.Conn) error {
	defer conn.Close()
	log := s.logger()
	log.Debug("got request", "remote", conn.RemoteAddr())

	req, err := ReadRequest(bufio.NewReader(conn), s.maxHeaderBytes())
	if err != nil {
		return err
	}
	log.Debug("parsed request", "method", req.Method(), "uri", req.Get("REQUEST_URI"))

	res := NewResponse()
	if err := s.dispatch(res, req); err != nil {
		return err
	}
	if _, err := res.WriteTo(conn); err != nil {
		return &Error{Kind: Protocol, Op: "write", Err: err}
	}
	log.Debug("done with request", "status", res.Status())
	return nil
}

func (s *Server) dispatch(w *Response, r *Request) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errorf(Protocol, "handle", ErrHandler, "%v", p)
		}
	}()
	h := s.Handler
	if h == nil {
		h = DefaultHandler
	}
	h.ServeSCGI(w, r)
	return nil
}

// Close closes the listener. A Serve blocked in Accept returns
// ErrServerClosed; a request in flight is finished first.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.ln == nil {
		return nil
	}
	err := s.ln.Close()
	s.logger().Info("DeInitialized SCGI server", "addr", addrURL(s.ln.Addr()))
	return err
}

func temporaryAcceptError(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	for _, errno := range []syscall.Errno{syscall.EMFILE, syscall.ENFILE, syscall.ENOBUFS, syscall.ENOMEM, syscall.ECONNABORTED} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return logger.Default()
}

func (s *Server) maxHeaderBytes() int {
	if s.MaxHeaderBytes == 0 {
		return DefaultMaxHeaderBytes
	}
	return s.MaxHeaderBytes
}
