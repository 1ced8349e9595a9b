package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	scgi "github.com/raphaelreyna/ez-scgi"
	"github.com/raphaelreyna/ez-scgi/internal/config"
	"github.com/raphaelreyna/ez-scgi/internal/logger"
)

func newServer(cfg *config.Config, handler scgi.Handler) *scgi.Server {
	return &scgi.Server{
		Addr:           cfg.Addr,
		Handler:        handler,
		Logger:         logger.Default(),
		ErrorPolicy:    cfg.ErrorPolicy(),
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}
}

// serve runs the server until a signal arrives or the accept loop stops.
func serve(ctx context.Context, cfg *config.Config, handler scgi.Handler) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := newServer(cfg, handler)
	ln, err := scgi.Listen(cfg.Addr)
	if err != nil {
		return err
	}
	defer s.Close()

	go func() {
		<-ctx.Done()
		s.Close()
	}()

	err = s.Serve(ln)
	if errors.Is(err, scgi.ErrServerClosed) {
		return nil
	}
	return err
}
