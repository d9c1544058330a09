// Package server launches the Camoufox remote browser server from environment
// configuration. The browser server itself is the camoufox Python package;
// this package builds its configuration, starts it and supervises it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// bindHost is the address the Camoufox server listens on.
const bindHost = "0.0.0.0"

// Options configures optional pieces of the Server.
type Options struct {
	// HealthAddr enables the health sidecar when non-empty (e.g., ":8081").
	HealthAddr string

	// ReadyInterval is how often the server port is polled. Defaults to 500ms.
	ReadyInterval time.Duration
}

// Server runs a Launcher with a fixed Config.
type Server struct {
	config   Config
	launcher Launcher
	logger   *zap.Logger
	opts     Options
	health   *Health
}

// New creates a Server.
func New(config Config, launcher Launcher, logger *zap.Logger, opts Options) *Server {
	if opts.ReadyInterval <= 0 {
		opts.ReadyInterval = 500 * time.Millisecond
	}

	s := &Server{
		config:   config,
		launcher: launcher,
		logger:   logger,
		opts:     opts,
	}
	if opts.HealthAddr != "" {
		s.health = NewHealth(config, logger)
	}
	return s
}

// Health returns the sidecar, or nil when it is disabled.
func (s *Server) Health() *Health {
	return s.health
}

// Run logs the configuration and blocks in the launcher until the server
// exits or ctx is cancelled. Failures are logged before being returned.
func (s *Server) Run(ctx context.Context) error {
	s.logSummary()

	err := s.run(ctx)
	switch {
	case err == nil:
		s.logger.Info("camoufox server exited")
	case errors.Is(err, ErrNotInstalled):
		s.logger.Error("Failed to import camoufox", zap.Error(err))
		s.logger.Error(InstallHint)
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		s.logger.Info("camoufox server stopped")
	default:
		s.logger.Error("Server error", zap.Error(err))
	}
	return err
}

func (s *Server) run(ctx context.Context) error {
	var ln net.Listener
	if s.health != nil {
		var err error
		ln, err = net.Listen("tcp", s.opts.HealthAddr)
		if err != nil {
			return fmt.Errorf("health server listen on %s: %w", s.opts.HealthAddr, err)
		}
		s.logger.Info("starting health server", zap.String("listen", ln.Addr().String()))
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)

	if ln != nil {
		g.Go(func() error {
			err := s.health.Serve(ln)
			if gctx.Err() != nil {
				return nil
			}
			if err == nil {
				err = errors.New("stopped unexpectedly")
			}
			return fmt.Errorf("health server: %w", err)
		})
		g.Go(func() error {
			<-gctx.Done()
			if err := s.health.Shutdown(); err != nil {
				s.logger.Warn("health server shutdown failed", zap.Error(err))
			}
			ln.Close()
			return nil
		})
	}

	if s.config.Port != 0 {
		g.Go(func() error {
			addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(s.config.Port))
			if err := WaitReady(gctx, addr, s.opts.ReadyInterval); err != nil {
				return nil
			}
			s.logger.Info("camoufox server ready", zap.String("url", s.config.URL(bindHost)))
			if s.health != nil {
				s.health.SetReady(true)
			}
			return nil
		})
	}

	g.Go(func() error {
		// The sidecar and readiness watcher live only as long as the server.
		defer cancel()
		return s.launcher.Launch(gctx, s.config)
	})

	return g.Wait()
}

func (s *Server) logSummary() {
	proxy := "None"
	if s.config.Proxy != nil {
		proxy = "Configured"
		s.logger.Info("Proxy configured", zap.String("server", s.config.Proxy.Server))
	}

	s.logger.Info("Camoufox Server Configuration",
		zap.Int("port", s.config.Port),
		zap.String("ws_path", "/"+strings.TrimPrefix(s.config.WSPath, "/")),
		zap.Bool("headless", s.config.Headless),
		zap.Bool("geoip", s.config.GeoIP),
		zap.String("proxy", proxy),
	)
	s.logger.Info("WebSocket URL", zap.String("url", s.config.URL(bindHost)))
}

// ExitCode maps the error returned by Run to a process exit status.
// A cancelled run is a clean shutdown.
func ExitCode(err error) int {
	if err == nil || errors.Is(err, context.Canceled) {
		return 0
	}
	return 1
}
