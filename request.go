package scgi

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cgi"
	"strconv"
	"strings"
)

// maxLengthDigits bounds how far the decoder scans for the ':' that ends
// the netstring length.
const maxLengthDigits = 20

// Request is a decoded SCGI request. The SCGI and CONTENT_LENGTH
// meta-headers are consumed by the decoder and are not part of Header.
type Request struct {
	header        HeaderMap
	body          []byte
	contentLength int64
}

// Header returns a copy of the application headers.
func (r *Request) Header() HeaderMap { return r.header.Clone() }

// Get returns the value of the named header, or "".
func (r *Request) Get(name string) string { return r.header.Get(name) }

// Body returns the request body; it is nil when CONTENT_LENGTH is 0.
// Callers must not modify it.
func (r *Request) Body() []byte { return r.body }

func (r *Request) ContentLength() int64 { return r.contentLength }

func (r *Request) Method() string { return r.header.Get("REQUEST_METHOD") }

// HTTPRequest converts the CGI-style headers into an *http.Request whose
// Body reads the SCGI body.
func (r *Request) HTTPRequest() (*http.Request, error) {
	params := r.header.Map()
	params["CONTENT_LENGTH"] = strconv.FormatInt(r.contentLength, 10)
	if params["SERVER_PROTOCOL"] == "" {
		params["SERVER_PROTOCOL"] = "HTTP/1.0"
	}
	req, err := cgi.RequestFromMap(params)
	if err != nil {
		return nil, fmt.Errorf("building http request: %w", err)
	}
	req.Body = io.NopCloser(bytes.NewReader(r.body))
	return req, nil
}

// ReadRequest decodes one SCGI request from br. A maxHeaderBytes of zero or
// less disables the header block size check.
func ReadRequest(br *bufio.Reader, maxHeaderBytes int) (*Request, error) {
	n, err := readLength(br)
	if err != nil {
		return nil, err
	}
	if maxHeaderBytes > 0 && n > maxHeaderBytes {
		return nil, errorf(Protocol, "read", ErrHeaderTooLarge, "%d bytes, limit %d", n, maxHeaderBytes)
	}

	block, err := readExact(br, int64(n), "header block")
	if err != nil {
		return nil, err
	}
	header, err := parseHeaderBlock(block)
	if err != nil {
		return nil, err
	}
	// ","
	if _, err := readExact(br, 1, "separator"); err != nil {
		return nil, err
	}

	if v, ok := header.Lookup("SCGI"); !ok || v != "1" {
		return nil, protocolError("read", ErrVersionMismatch)
	}
	cls, ok := header.Lookup("CONTENT_LENGTH")
	if !ok {
		return nil, protocolError("read", ErrMissingContentLength)
	}
	cl, err := strconv.ParseInt(cls, 10, 64)
	if err != nil || cl < 0 {
		return nil, errorf(Protocol, "read", ErrMalformedContentLength, "%q", cls)
	}

	req := &Request{contentLength: cl}
	if cl > 0 {
		if req.body, err = readExact(br, cl, "body"); err != nil {
			return nil, err
		}
	}

	header.Del("SCGI")
	header.Del("CONTENT_LENGTH")
	req.header = header
	return req, nil
}

func readLength(br *bufio.Reader) (int, error) {
	var token []byte
	for {
		c, err := br.ReadByte()
		if err != nil {
			if err != io.EOF {
				return 0, &Error{Kind: Protocol, Op: "read", Err: err}
			}
			if len(token) == 0 {
				return 0, &Error{Kind: Retryable, Op: "read", Err: ErrEmptyRequest}
			}
			return 0, errorf(Protocol, "read", ErrTruncated, "length prefix %q", token)
		}
		if c == ':' {
			break
		}
		if len(token) == maxLengthDigits {
			return 0, errorf(Protocol, "read", ErrMalformedLength, "no ':' within %d bytes", maxLengthDigits)
		}
		token = append(token, c)
	}

	if len(token) == 0 {
		return 0, &Error{Kind: Retryable, Op: "read", Err: ErrEmptyRequest}
	}
	for _, c := range token {
		if c < '0' || c > '9' {
			return 0, errorf(Protocol, "read", ErrMalformedLength, "expected length, got %q", token)
		}
	}
	n, err := strconv.Atoi(string(token))
	if err != nil {
		return 0, errorf(Protocol, "read", ErrMalformedLength, "%q", token)
	}
	return n, nil
}

// readExact reads exactly n bytes. Declared lengths come from the client, so
// the buffer grows with what actually arrives instead of being sized by n.
func readExact(r io.Reader, n int64, what string) ([]byte, error) {
	buf, err := io.ReadAll(io.LimitReader(r, n))
	if err != nil {
		return nil, truncated(err, what, n)
	}
	if int64(len(buf)) != n {
		return nil, truncated(io.ErrUnexpectedEOF, what, n)
	}
	return buf, nil
}

func truncated(err error, what string, want int64) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return errorf(Protocol, "read", ErrTruncated, "%s: want %d bytes", what, want)
	}
	return &Error{Kind: Protocol, Op: "read", Err: err}
}

func parseHeaderBlock(block []byte) (HeaderMap, error) {
	var h HeaderMap
	if len(block) == 0 {
		return h, nil
	}
	tokens := strings.Split(strings.TrimSuffix(string(block), "\x00"), "\x00")
	if len(tokens)%2 != 0 {
		return h, errorf(Protocol, "read", ErrMalformedHeaders, "%d tokens", len(tokens))
	}
	for i := 0; i < len(tokens); i += 2 {
		h.Set(tokens[i], tokens[i+1])
	}
	return h, nil
}

// WriteRequest encodes an SCGI request. CONTENT_LENGTH and SCGI are written
// first and any copies of them in h are skipped.
func WriteRequest(w io.Writer, h HeaderMap, body []byte) error {
	var block bytes.Buffer
	put := func(name, value string) {
		block.WriteString(name)
		block.WriteByte(0)
		block.WriteString(value)
		block.WriteByte(0)
	}
	put("CONTENT_LENGTH", strconv.Itoa(len(body)))
	put("SCGI", "1")
	h.Each(func(name, value string) {
		if name == "CONTENT_LENGTH" || name == "SCGI" {
			return
		}
		put(name, value)
	})

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d:", block.Len())
	bw.Write(block.Bytes())
	bw.WriteByte(',')
	bw.Write(body)
	return bw.Flush()
}
