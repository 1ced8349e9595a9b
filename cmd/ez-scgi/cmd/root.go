package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	scgi "github.com/raphaelreyna/ez-scgi"
	"github.com/raphaelreyna/ez-scgi/cgiexec"
	"github.com/raphaelreyna/ez-scgi/internal/config"
	"github.com/raphaelreyna/ez-scgi/internal/logger"
)

// version can be set at build time with
// -ldflags "-X github.com/raphaelreyna/ez-scgi/cmd/ez-scgi/cmd.version=v1.2.3".
var version = "dev"

var cfg *config.Config

var (
	dir          string
	shell        string
	shellCommand bool

	rawHeaders []string
	replace    bool
	conformCGI bool

	envVars []string

	stderr string
)

var RootCmd = &cobra.Command{
	Use:     "ez-scgi [flags]... [executable [args]...]",
	Version: version,
	Short:   "A small one-connection-at-a-time SCGI application server.",
	Long: `Start an SCGI application server behind a front-end such as nginx or lighttpd.
Requests are served one at a time. When an executable is given it is run for every
request with the SCGI headers as its CGI environment and the request body on stdin.
Without an executable every request is answered with a 500 page.
By default the executable's output is sent with the header 'Content-Type: text/plain'.
`,
	RunE: run,
}

func SetFlags() {
	cfg.BindFlags(RootCmd.Flags())

	RootCmd.Flags().StringArrayVarP(&rawHeaders, "header", "H", nil, `Header to send to the client.
To allow the executable to override a header see the --replace flag.
Must be in the form 'KEY: VALUE'.`,
	)
	RootCmd.Flags().BoolVarP(&replace, "replace", "r", false, `Allow executable to replace default header values.
See also: --cgi, -C.`)

	RootCmd.Flags().BoolVarP(&conformCGI, "cgi", "C", false, `Conform to the CGI standard (except for local 'Location' redirects which are not followed.)
This flag overrides the --replace, -r flag.`,
	)

	RootCmd.Flags().StringVarP(&shell, "shell", "s", "/bin/sh", `Which shell ez-scgi should use when a shell command is passed.
See also: --shell-command, -S.`,
	)
	RootCmd.Flags().BoolVarP(&shellCommand, "shell-command", "S", false, `The argument executable will be interpreted as a shell command.
The command will be passed to the shell set by the --shell, -s flag (sh by default).
See also: --shell, -s.`,
	)

	RootCmd.Flags().StringArrayVarP(&envVars, "env-var", "e", nil, `Environment variable to pass on to the executable.
Either 'KEY=VALUE' or the name of a variable to inherit.`,
	)

	RootCmd.Flags().StringVarP(&stderr, "stderr", "E", "", `File to append the executable's stderr to.`)

	RootCmd.Flags().StringVarP(&dir, "dir", "d", "", `Working directory for the executable.
Defaults to where ez-scgi was called.`,
	)
}

func run(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := slog.LevelInfo
	switch {
	case cfg.Debug:
		level = slog.LevelDebug
	case cfg.Quiet:
		level = slog.LevelWarn
	}
	logger.InitLevel(level)

	handler, closer, err := newHandler(args)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	return serve(cmd.Context(), cfg, handler)
}

// newHandler returns the CGI bridge for args, or the default 500 handler
// when no executable is given.
func newHandler(args []string) (scgi.Handler, io.Closer, error) {
	if len(args) == 0 {
		logger.Warn("No executable given, every request will get a 500 response")
		return scgi.DefaultHandler, nil, nil
	}

	handler := &cgiexec.Handler{
		InheritEnv: envVars,
		Logger:     logger.With("component", "cgi"),
	}

	if shellCommand {
		handler.Path = shell
		handler.Args = []string{"-c", args[0]}
	} else {
		handler.Path = args[0]
		handler.Args = args[1:]
	}

	var closer io.Closer
	if stderr != "" {
		f, err := os.OpenFile(stderr, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("error opening stderr: %w", err)
		}
		handler.Stderr = f
		closer = f
	}

	header := http.Header{}
	for _, rh := range rawHeaders {
		k, v, ok := strings.Cut(rh, ":")
		if !ok {
			return nil, closer, fmt.Errorf("invalid header: %s", rh)
		}
		header.Set(strings.TrimSpace(k), strings.TrimSpace(v))
	}
	if len(header) != 0 {
		handler.Header = header
	}

	if dir != "" {
		handler.Dir = dir
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, closer, fmt.Errorf("error getting working directory: %w", err)
		}
		handler.Dir = wd
	}

	switch {
	case conformCGI:
		handler.OutputHandler = cgiexec.DefaultOutputHandler
	case replace:
		handler.OutputHandler = cgiexec.EZOutputHandlerReplacer
	default:
		handler.OutputHandler = cgiexec.EZOutputHandler
	}

	return handler, closer, nil
}

func Execute() {
	var err error
	cfg, err = config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	SetFlags()
	RootCmd.SilenceUsage = true
	if err := RootCmd.Execute(); err != nil {
		logger.Error("ez-scgi failed", "error", err)
		os.Exit(1)
	}
}
