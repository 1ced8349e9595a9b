// Package cgiexec serves SCGI requests by running an executable with a CGI
// environment built from the request headers. Environment handling follows
// the Go standard library: https://golang.org/src/net/http/cgi/host.go
package cgiexec

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	scgi "github.com/raphaelreyna/ez-scgi"
)

var osDefaultInheritEnv = map[string][]string{
	"darwin":  {"DYLD_LIBRARY_PATH"},
	"freebsd": {"LD_LIBRARY_PATH"},
	"hpux":    {"LD_LIBRARY_PATH", "SHLIB_PATH"},
	"irix":    {"LD_LIBRARY_PATH", "LD_LIBRARYN32_PATH", "LD_LIBRARY64_PATH"},
	"linux":   {"LD_LIBRARY_PATH"},
	"openbsd": {"LD_LIBRARY_PATH"},
	"solaris": {"LD_LIBRARY_PATH", "LD_LIBRARY_PATH_32", "LD_LIBRARY_PATH_64"},
	"windows": {"SystemRoot", "COMSPEC", "PATHEXT", "WINDIR"},
}

// Handler runs an executable once per SCGI request. The request headers
// become the executable's environment and the request body its stdin.
// What the executable prints is turned into the response by OutputHandler.
type Handler struct {
	Path string
	Dir  string
	Args []string

	Name string // value to use for SERVER_SOFTWARE when the front-end sends none

	InheritEnv []string
	Logger     *slog.Logger
	Stderr     io.Writer

	// Header contains header values that should be used by default.
	// Output handlers that scan for headers may override them per request.
	Header http.Header

	OutputHandler OutputHandler
}

func (h *Handler) ServeSCGI(w *scgi.Response, r *scgi.Request) {
	cmd := &exec.Cmd{
		Path:   h.Path,
		Args:   append([]string{h.Path}, h.Args...),
		Dir:    h.Dir,
		Env:    h.env(r),
		Stderr: h.Stderr,
	}
	if cmd.Dir == "" {
		cmd.Dir, cmd.Path = filepath.Split(h.Path)
		if cmd.Dir == "" {
			cmd.Dir = "."
		}
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	if len(r.Body()) > 0 {
		cmd.Stdin = bytes.NewReader(r.Body())
	}

	stdoutRead, err := cmd.StdoutPipe()
	if err != nil {
		h.internalError(w, err)
		return
	}
	if err := cmd.Start(); err != nil {
		h.internalError(w, err)
		return
	}
	defer cmd.Wait()
	defer stdoutRead.Close()

	out := h.OutputHandler
	if out == nil {
		out = EZOutputHandler
	}
	out(w, r, h, stdoutRead)
}

func (h *Handler) env(r *scgi.Request) []string {
	name := h.Name
	if name == "" {
		name = "ez-scgi"
	}
	env := []string{
		"SERVER_SOFTWARE=" + name,
		"GATEWAY_INTERFACE=CGI/1.1",
	}

	r.Header().Each(func(k, v string) {
		if k == "" || strings.ContainsRune(k, '=') {
			return
		}
		env = append(env, k+"="+v)
	})
	if r.ContentLength() > 0 {
		env = append(env, "CONTENT_LENGTH="+strconv.FormatInt(r.ContentLength(), 10))
	}

	envPath := os.Getenv("PATH")
	if envPath == "" {
		envPath = "/bin:/usr/bin:/usr/ucb:/usr/bsd:/usr/local/bin"
	}
	env = append(env, "PATH="+envPath)

	for _, e := range append(osDefaultInheritEnv[runtime.GOOS], h.InheritEnv...) {
		if k, v, ok := strings.Cut(e, "="); ok {
			env = append(env, k+"="+v)
		} else if v := os.Getenv(e); v != "" {
			env = append(env, e+"="+v)
		}
	}

	return removeLeadingDuplicates(env)
}

// defaultHeader returns a copy of h.Header, or Content-Type: text/plain.
func (h *Handler) defaultHeader() http.Header {
	if h.Header == nil {
		return http.Header{"Content-Type": []string{"text/plain"}}
	}
	return h.Header.Clone()
}

func (h *Handler) internalError(w http.ResponseWriter, err error) {
	w.WriteHeader(http.StatusInternalServerError)
	h.logErr("cgi error", "path", h.Path, "error", err)
}

func (h *Handler) logErr(msg string, args ...any) {
	if h.Logger != nil {
		h.Logger.Error(msg, args...)
		return
	}
	slog.Error(msg, args...)
}

func removeLeadingDuplicates(env []string) (ret []string) {
	for i, e := range env {
		found := false
		if eq := strings.IndexByte(e, '='); eq != -1 {
			keq := e[:eq+1]
			for _, e2 := range env[i+1:] {
				if strings.HasPrefix(e2, keq) {
					found = true
					break
				}
			}
		}
		if !found {
			ret = append(ret, e)
		}
	}
	return
}
