package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/loykin/solo/internal/supervisor"
)

const defaultShutdownTimeout = 5 * time.Second

// App is the bundled application: an HTTP server exposing Router until the
// launcher cancels its context.
type App struct {
	Listen          string
	Router          *Router
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
	// OnListen, if set, is called with the bound address once the listener is open.
	OnListen func(net.Addr)
}

// Run serves until ctx is cancelled, then shuts the server down and returns
// supervisor.ErrInterrupted. Listen and serve failures are returned as-is.
func (a *App) Run(ctx context.Context) error {
	log := a.Logger
	if log == nil {
		log = slog.Default()
	}
	ln, err := net.Listen("tcp", a.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.Listen, err)
	}
	srv := &http.Server{
		Handler:           a.Router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	log.Info("http server listening", "addr", ln.Addr().String())
	if a.OnListen != nil {
		a.OnListen(ln.Addr())
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	timeout := a.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("http server stopped")
	return supervisor.ErrInterrupted
}
