package scgi

import (
	"net/http"
)

// Handler responds to a decoded SCGI request by filling in w.
// A handler that panics aborts the request: nothing is written and the
// connection is closed.
type Handler interface {
	ServeSCGI(w *Response, r *Request)
}

// HandlerFunc adapts an ordinary function to a Handler.
type HandlerFunc func(w *Response, r *Request)

func (f HandlerFunc) ServeSCGI(w *Response, r *Request) { f(w, r) }

const defaultBody = "<h1>500 Internal Server Error</h1>" +
	"<p>This application does not define a request handler.</p>"

// DefaultHandler answers every request with a 500 page. It is used when a
// Server has no Handler.
var DefaultHandler Handler = HandlerFunc(func(w *Response, r *Request) {
	w.Header().Set("Content-Type", "text/html; charset=UTF-8")
	w.WriteHeader(http.StatusInternalServerError)
	w.WriteString(defaultBody)
})

// HTTPHandler serves SCGI requests with h. Requests that cannot be turned
// into an *http.Request get a 400.
func HTTPHandler(h http.Handler) Handler {
	return HandlerFunc(func(w *Response, r *Request) {
		req, err := r.HTTPRequest()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.ServeHTTP(w, req)
	})
}
