package scgi

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// Response buffers what a Handler produces. It is written to the
// connection once, after the handler returns.
//
// The status is the one passed to WriteHeader. Without a WriteHeader call, a
// "Status" header such as "404 Not Found" set before the first Write
// supplies it, as in CGI output; otherwise it is 200. The Status header
// itself is never emitted as a regular header.
//
// Response implements http.ResponseWriter.
type Response struct {
	status  int
	header  http.Header
	body    bytes.Buffer
	flushed bool
}

func NewResponse() *Response {
	return &Response{header: make(http.Header)}
}

func (w *Response) Header() http.Header { return w.header }

// WriteHeader sets the status code. Only the first call has an effect, as
// with net/http.
func (w *Response) WriteHeader(code int) {
	if w.status != 0 {
		return
	}
	w.status = code
}

func (w *Response) Write(p []byte) (int, error) {
	if w.flushed {
		return 0, ErrResponseFlushed
	}
	if w.status == 0 {
		w.status = w.Status()
	}
	return w.body.Write(p)
}

func (w *Response) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// Status returns the status code that WriteTo will send.
func (w *Response) Status() int {
	if w.status != 0 {
		return w.status
	}
	if code, ok := parseStatusHeader(w.header.Get("Status")); ok {
		return code
	}
	return http.StatusOK
}

// parseStatusHeader reads the code from a CGI Status value ("404 Not Found").
func parseStatusHeader(v string) (int, bool) {
	if len(v) < 3 {
		return 0, false
	}
	if len(v) > 3 && v[3] != ' ' {
		return 0, false
	}
	code, err := strconv.Atoi(v[:3])
	if err != nil || code < 100 {
		return 0, false
	}
	return code, true
}

// Bytes returns the buffered body.
func (w *Response) Bytes() []byte { return w.body.Bytes() }

// WriteTo writes the response in CGI form: a Status line, the headers, a
// blank line and the body. Only the first call writes anything.
func (w *Response) WriteTo(dst io.Writer) (int64, error) {
	if w.flushed {
		return 0, ErrResponseFlushed
	}
	w.flushed = true

	var buf bytes.Buffer
	status := w.Status()
	if text := http.StatusText(status); text != "" {
		fmt.Fprintf(&buf, "Status: %d %s\r\n", status, text)
	} else {
		fmt.Fprintf(&buf, "Status: %d\r\n", status)
	}
	w.header.Del("Status")
	if err := w.header.Write(&buf); err != nil {
		return 0, err
	}
	buf.WriteString("\r\n")
	buf.Write(w.body.Bytes())

	n, err := dst.Write(buf.Bytes())
	return int64(n), err
}
