package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/pflag"

	scgi "github.com/raphaelreyna/ez-scgi"
)

// Config holds the server configuration.
type Config struct {
	// Core
	Debug bool
	Quiet bool

	// Server
	Addr           string // socket URL
	OnError        string // continue, stop
	MaxHeaderBytes int
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Debug: getEnvBool("DEBUG", false),
		Quiet: getEnvBool("QUIET", false),

		Addr:           getEnv("SCGI_ADDR", scgi.DefaultAddr),
		OnError:        getEnv("SCGI_ON_ERROR", "continue"),
		MaxHeaderBytes: getEnvInt("SCGI_MAX_HEADER_BYTES", scgi.DefaultMaxHeaderBytes),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// BindFlags registers flags that override the loaded values.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.Addr, "addr", "a", c.Addr, `Socket URL to listen on.
Either tcp://host:port or unix:///path/to.sock (env SCGI_ADDR).`)
	fs.StringVar(&c.OnError, "on-error", c.OnError, `What to do after a malformed request or a failing handler:
'continue' drops the connection and keeps serving, 'stop' shuts the server down (env SCGI_ON_ERROR).`)
	fs.IntVar(&c.MaxHeaderBytes, "max-header-bytes", c.MaxHeaderBytes, `Largest accepted SCGI header block, negative for no limit (env SCGI_MAX_HEADER_BYTES).`)
	fs.BoolVar(&c.Debug, "debug", c.Debug, "Log every request (env DEBUG).")
	fs.BoolVarP(&c.Quiet, "quiet", "q", c.Quiet, "Only log warnings and errors (env QUIET).")
}

// Validate ensures configuration is coherent
func (c *Config) Validate() error {
	if _, _, err := scgi.ParseAddr(c.Addr); err != nil {
		return fmt.Errorf("invalid SCGI_ADDR %q: %w", c.Addr, err)
	}
	if _, err := scgi.ParseErrorPolicy(c.OnError); err != nil {
		return fmt.Errorf("invalid SCGI_ON_ERROR: %w", err)
	}
	if c.MaxHeaderBytes == 0 {
		return fmt.Errorf("SCGI_MAX_HEADER_BYTES must not be 0")
	}
	if c.Debug && c.Quiet {
		return fmt.Errorf("DEBUG and QUIET are mutually exclusive")
	}
	return nil
}

// ErrorPolicy returns the parsed OnError value. Call Validate first.
func (c *Config) ErrorPolicy() scgi.ErrorPolicy {
	p, _ := scgi.ParseErrorPolicy(c.OnError)
	return p
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}
