package config

import (
	"testing"

	"github.com/spf13/pflag"

	scgi "github.com/raphaelreyna/ez-scgi"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"DEBUG", "QUIET", "SCGI_ADDR", "SCGI_ON_ERROR", "SCGI_MAX_HEADER_BYTES"} {
		t.Setenv(k, "")
	}
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != scgi.DefaultAddr {
		t.Fatalf("wrong addr - expected: %s\treceived: %s", scgi.DefaultAddr, cfg.Addr)
	}
	if cfg.ErrorPolicy() != scgi.ContinueOnError {
		t.Fatalf("wrong policy: %s", cfg.ErrorPolicy())
	}
	if cfg.MaxHeaderBytes != scgi.DefaultMaxHeaderBytes {
		t.Fatalf("wrong max header bytes: %d", cfg.MaxHeaderBytes)
	}
}

func TestLoadFromEnv(t *testing.T) {
	type test struct {
		Name string
		Env  map[string]string
		Err  bool
	}

	tt := []test{
		{
			Name: "Unix socket and stop policy",
			Env:  map[string]string{"SCGI_ADDR": "unix:///tmp/app.sock", "SCGI_ON_ERROR": "stop"},
		},
		{
			Name: "Bare host and port",
			Env:  map[string]string{"SCGI_ADDR": "127.0.0.1:4000"},
		},
		{
			Name: "Unsupported scheme",
			Env:  map[string]string{"SCGI_ADDR": "udp://127.0.0.1:4000"},
			Err:  true,
		},
		{
			Name: "Unknown policy",
			Env:  map[string]string{"SCGI_ON_ERROR": "explode"},
			Err:  true,
		},
		{
			Name: "Zero header limit",
			Env:  map[string]string{"SCGI_MAX_HEADER_BYTES": "0"},
			Err:  true,
		},
		{
			Name: "Debug and quiet",
			Env:  map[string]string{"DEBUG": "true", "QUIET": "true"},
			Err:  true,
		},
	}

	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			for _, k := range []string{"DEBUG", "QUIET", "SCGI_ADDR", "SCGI_ON_ERROR", "SCGI_MAX_HEADER_BYTES"} {
				t.Setenv(k, tc.Env[k])
			}
			_, err := LoadFromEnv()
			if tc.Err && err == nil {
				t.Fatal("expected an error")
			}
			if !tc.Err && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestBindFlagsOverride(t *testing.T) {
	t.Setenv("SCGI_ADDR", "tcp://127.0.0.1:7000")
	t.Setenv("SCGI_ON_ERROR", "")
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatal(err)
	}

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.BindFlags(fs)
	if err := fs.Parse([]string{"-a", "unix:///run/app.sock", "--on-error", "stop"}); err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != "unix:///run/app.sock" {
		t.Fatalf("flag did not override addr: %s", cfg.Addr)
	}
	if cfg.ErrorPolicy() != scgi.StopOnError {
		t.Fatalf("flag did not override policy: %s", cfg.ErrorPolicy())
	}
}
