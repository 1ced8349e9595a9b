package scgi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"
)

func TestDefaultHandler(t *testing.T) {
	req, err := decode("24:CONTENT_LENGTH\x002\x00SCGI\x001\x00,hi")
	if err != nil {
		t.Fatal(err)
	}
	w := NewResponse()
	DefaultHandler.ServeSCGI(w, req)

	if w.Status() != http.StatusInternalServerError {
		t.Fatalf("wrong status - expected: %d\treceived: %d", http.StatusInternalServerError, w.Status())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=UTF-8" {
		t.Fatalf("wrong content type: %s", ct)
	}
	if string(w.Bytes()) != defaultBody {
		t.Fatalf("wrong body: %s", w.Bytes())
	}

	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	expected := "Status: 500 Internal Server Error\r\n" +
		"Content-Type: text/html; charset=UTF-8\r\n" +
		"\r\n" + defaultBody
	if buf.String() != expected {
		t.Fatalf("wrong output - expected: %q\treceived: %q", expected, buf.String())
	}
}

func TestResponseWriteTo(t *testing.T) {
	type test struct {
		Name     string
		Fill     func(w *Response)
		Expected string
	}

	tt := []test{
		{
			Name:     "Empty response",
			Fill:     func(w *Response) {},
			Expected: "Status: 200 OK\r\n\r\n",
		},
		{
			Name: "Headers are sorted",
			Fill: func(w *Response) {
				w.Header().Set("X-Zeta", "z")
				w.Header().Set("Content-Type", "text/plain")
				w.WriteString("hello")
			},
			Expected: "Status: 200 OK\r\nContent-Type: text/plain\r\nX-Zeta: z\r\n\r\nhello",
		},
		{
			Name: "First status wins",
			Fill: func(w *Response) {
				w.WriteHeader(http.StatusNotFound)
				w.WriteHeader(http.StatusTeapot)
			},
			Expected: "Status: 404 Not Found\r\n\r\n",
		},
		{
			Name: "Unknown status code",
			Fill: func(w *Response) {
				w.WriteHeader(599)
			},
			Expected: "Status: 599\r\n\r\n",
		},
		{
			Name: "Status header sets the code",
			Fill: func(w *Response) {
				w.Header().Set("Status", "404 Not Found")
				w.Header().Set("Content-Type", "text/plain")
				w.WriteString("missing")
			},
			Expected: "Status: 404 Not Found\r\nContent-Type: text/plain\r\n\r\nmissing",
		},
		{
			Name: "Status header without reason",
			Fill: func(w *Response) {
				w.Header().Set("Status", "503")
			},
			Expected: "Status: 503 Service Unavailable\r\n\r\n",
		},
		{
			Name: "Invalid Status header",
			Fill: func(w *Response) {
				w.Header().Set("Status", "teapot")
			},
			Expected: "Status: 200 OK\r\n\r\n",
		},
		{
			Name: "Status header after body",
			Fill: func(w *Response) {
				w.WriteString("late")
				w.Header().Set("Status", "404 Not Found")
			},
			Expected: "Status: 200 OK\r\n\r\nlate",
		},
		{
			Name: "WriteHeader beats Status header",
			Fill: func(w *Response) {
				w.Header().Set("Status", "302 Found")
				w.WriteHeader(http.StatusCreated)
			},
			Expected: "Status: 201 Created\r\n\r\n",
		},
	}

	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			w := NewResponse()
			tc.Fill(w)
			var buf bytes.Buffer
			if _, err := w.WriteTo(&buf); err != nil {
				t.Fatal(err)
			}
			if buf.String() != tc.Expected {
				t.Fatalf("wrong output - expected: %q\treceived: %q", tc.Expected, buf.String())
			}
		})
	}
}

func TestResponseWritesOnce(t *testing.T) {
	w := NewResponse()
	w.WriteString("once")
	if _, err := w.WriteTo(io.Discard); err != nil {
		t.Fatal(err)
	}
	if _, err := w.WriteTo(io.Discard); !errors.Is(err, ErrResponseFlushed) {
		t.Fatalf("expected ErrResponseFlushed, received: %v", err)
	}
	if _, err := w.WriteString("twice"); !errors.Is(err, ErrResponseFlushed) {
		t.Fatalf("expected ErrResponseFlushed, received: %v", err)
	}
}

func TestHTTPHandler(t *testing.T) {
	var buf bytes.Buffer
	WriteRequest(&buf, NewHeaderMap(
		"REQUEST_METHOD", "GET",
		"REQUEST_URI", "/hello?name=arthur",
		"SERVER_PROTOCOL", "HTTP/1.1",
	), nil)
	req, err := decode(buf.String())
	if err != nil {
		t.Fatal(err)
	}

	h := HTTPHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintf(w, "hello %s", r.URL.Query().Get("name"))
	}))
	w := NewResponse()
	h.ServeSCGI(w, req)

	if w.Status() != http.StatusOK {
		t.Fatalf("wrong status: %d", w.Status())
	}
	if string(w.Bytes()) != "hello arthur" {
		t.Fatalf("wrong body: %s", w.Bytes())
	}
}

func TestHTTPHandlerBadRequest(t *testing.T) {
	// No REQUEST_METHOD: not convertible to an *http.Request.
	req, err := decode("24:CONTENT_LENGTH\x000\x00SCGI\x001\x00,")
	if err != nil {
		t.Fatal(err)
	}
	w := NewResponse()
	HTTPHandler(http.NotFoundHandler()).ServeSCGI(w, req)
	if w.Status() != http.StatusBadRequest {
		t.Fatalf("wrong status - expected: %d\treceived: %d", http.StatusBadRequest, w.Status())
	}
}
