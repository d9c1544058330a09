package server

import (
	"net"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ErrorResponse is the body of non-2xx sidecar responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ConfigResponse is returned by GET /config.
type ConfigResponse struct {
	Config
	WSURL string `json:"ws_url"`
}

// Health is an HTTP sidecar reporting whether the Camoufox server is up and
// which configuration it was started with.
type Health struct {
	config Config
	logger *zap.Logger
	ready  atomic.Bool
	server *fiber.App
}

// NewHealth creates the sidecar. The proxy password is never served.
func NewHealth(config Config, logger *zap.Logger) *Health {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	h := &Health{
		config: config.Redacted(),
		logger: logger,
		server: app,
	}

	app.Get("/health", h.handleHealth)
	app.Get("/config", h.handleConfig)

	return h
}

// SetReady marks the Camoufox server as accepting connections.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// Ready reports the last value passed to SetReady.
func (h *Health) Ready() bool {
	return h.ready.Load()
}

// Serve serves the sidecar on an existing listener.
func (h *Health) Serve(ln net.Listener) error {
	h.logger.Debug("health server listening", zap.String("addr", ln.Addr().String()))
	return h.server.Listener(ln)
}

// Shutdown stops the sidecar.
func (h *Health) Shutdown() error {
	return h.server.Shutdown()
}

// App exposes the fiber app, mainly for app.Test in tests.
func (h *Health) App() *fiber.App {
	return h.server
}

func (h *Health) handleHealth(c *fiber.Ctx) error {
	if !h.ready.Load() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(map[string]string{"status": "starting"})
	}
	return c.JSON(map[string]string{"status": "ok"})
}

func (h *Health) handleConfig(c *fiber.Ctx) error {
	return c.JSON(ConfigResponse{
		Config: h.config,
		WSURL:  h.config.URL(bindHost),
	})
}
