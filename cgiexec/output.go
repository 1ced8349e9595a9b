package cgiexec

import (
	"bufio"
	"io"
	"net/http"
	"strconv"
	"strings"

	scgi "github.com/raphaelreyna/ez-scgi"
)

// OutputHandler turns the executable's stdout into the response.
// By the time OutputHandler is called the executable has been started; it is
// waited on right after OutputHandler returns.
type OutputHandler func(w http.ResponseWriter, r *scgi.Request, h *Handler, stdout io.Reader)

// EZOutputHandler sends the entire output of the executable without scanning
// for headers. Always responds with a 200 status code.
var EZOutputHandler OutputHandler = func(w http.ResponseWriter, r *scgi.Request, h *Handler, stdout io.Reader) {
	copyHeader(w.Header(), h.defaultHeader())
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, bufio.NewReaderSize(stdout, 1024)); err != nil {
		h.logErr("cgi: copy error", "error", err)
	}
}

// EZOutputHandlerReplacer scans the output for headers which replace the
// default header values. Scanning stops at the first blank or non-header
// line; the rest of the output is the body.
var EZOutputHandlerReplacer OutputHandler = func(w http.ResponseWriter, r *scgi.Request, h *Handler, stdout io.Reader) {
	linebody := bufio.NewReaderSize(stdout, 1024)
	header := h.defaultHeader()
	statusCode := 0

	// head holds a line read during the header scan that belongs to the body.
	var head []byte
	for {
		line, tooBig, err := linebody.ReadLine()
		if tooBig || err == io.EOF {
			break
		}
		if err != nil {
			h.internalError(w, err)
			return
		}
		if len(line) == 0 {
			break
		}

		k, v, ok := splitHeaderLine(line)
		if !ok {
			head = append(append([]byte(nil), line...), '\n')
			break
		}
		if k == "Status" {
			if statusCode, ok = parseStatus(h, v); !ok {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			continue
		}
		header.Set(k, v)
	}
	if statusCode == 0 {
		statusCode = http.StatusOK
	}

	copyHeader(w.Header(), header)
	w.WriteHeader(statusCode)

	if head != nil {
		if _, err := w.Write(head); err != nil {
			h.logErr("cgi: copy error", "error", err)
			return
		}
	}
	if _, err := io.Copy(w, linebody); err != nil {
		h.logErr("cgi: copy error", "error", err)
	}
}

// DefaultOutputHandler mostly mimics net/http/cgi: the output must start
// with headers and a blank line, and must carry a Content-Type unless it sets
// a status or a Location. Local Location redirects are not followed.
var DefaultOutputHandler OutputHandler = func(w http.ResponseWriter, r *scgi.Request, h *Handler, stdout io.Reader) {
	linebody := bufio.NewReaderSize(stdout, 1024)
	header := make(http.Header)
	statusCode := 0
	headerLines := 0
	sawBlankLine := false
	for {
		line, isPrefix, err := linebody.ReadLine()
		if isPrefix {
			w.WriteHeader(http.StatusInternalServerError)
			h.logErr("cgi: long header line from subprocess")
			return
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			h.internalError(w, err)
			return
		}
		if len(line) == 0 {
			sawBlankLine = true
			break
		}
		headerLines++
		k, v, ok := splitHeaderLine(line)
		if !ok {
			h.logErr("cgi: bogus header line", "line", string(line))
			continue
		}
		if k == "Status" {
			if statusCode, ok = parseStatus(h, v); !ok {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			continue
		}
		header.Add(k, v)
	}
	if headerLines == 0 || !sawBlankLine {
		w.WriteHeader(http.StatusInternalServerError)
		h.logErr("cgi: no headers")
		return
	}

	if header.Get("Location") != "" && statusCode == 0 {
		statusCode = http.StatusFound
	}
	if statusCode == 0 && header.Get("Content-Type") == "" {
		w.WriteHeader(http.StatusInternalServerError)
		h.logErr("cgi: missing required Content-Type in headers")
		return
	}
	if statusCode == 0 {
		statusCode = http.StatusOK
	}

	copyHeader(w.Header(), header)
	w.WriteHeader(statusCode)

	if _, err := io.Copy(w, linebody); err != nil {
		h.logErr("cgi: copy error", "error", err)
	}
}

func splitHeaderLine(line []byte) (k, v string, ok bool) {
	k, v, ok = strings.Cut(string(line), ":")
	if !ok {
		return "", "", false
	}
	return strings.TrimSpace(k), strings.TrimSpace(v), true
}

func parseStatus(h *Handler, v string) (int, bool) {
	if len(v) < 3 {
		h.logErr("cgi: bogus status (short)", "status", v)
		return 0, false
	}
	code, err := strconv.Atoi(v[0:3])
	if err != nil {
		h.logErr("cgi: bogus status", "status", v)
		return 0, false
	}
	return code, true
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}
