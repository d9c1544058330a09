package servecmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/camoufox-launcher/cmd/camoufox/envfile"
	"github.com/papercomputeco/camoufox-launcher/pkg/logger"
	"github.com/papercomputeco/camoufox-launcher/server"
)

const serveLongDesc string = `Launch Camoufox as a remote WebSocket browser server.

Configuration is read from CAMOUFOX_* environment variables:

  CAMOUFOX_PORT             WebSocket server port (default: 3000)
  CAMOUFOX_WS_PATH          WebSocket URL path (default: connect)
  CAMOUFOX_HEADLESS         Run in headless mode (default: true)
  CAMOUFOX_GEOIP            Enable GeoIP-based fingerprinting (default: false)
  CAMOUFOX_PROXY_SERVER     Proxy server URL (optional)
  CAMOUFOX_PROXY_USERNAME   Proxy username (optional)
  CAMOUFOX_PROXY_PASSWORD   Proxy password (optional)
  CAMOUFOX_PYTHON           Python interpreter (default: python3)
  CAMOUFOX_HEALTH_ADDR      Health endpoint listen address (optional)
  CAMOUFOX_DEBUG            Enable debug logging (default: false)
  CAMOUFOX_LOG_FORMAT       console or json (default: console)

Examples:
  camoufox
  CAMOUFOX_PORT=8080 CAMOUFOX_HEADLESS=0 camoufox serve
  camoufox serve --env-file /etc/camoufox.env`

const serveShortDesc string = "Launch the Camoufox server"

// ExitError carries the process exit status of a failed serve run. The
// failure has already been logged when it is returned.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d: %v", e.Code, e.Err)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

type serveCommander struct {
	envFile string
	debug   bool

	// launcher overrides the Python launcher in tests.
	launcher server.Launcher
}

// NewServeCmd returns the serve command. use is the command name, so the
// same command can act as the root command.
func NewServeCmd(use string) *cobra.Command {
	return newServeCmd(use, &serveCommander{})
}

func newServeCmd(use string, cmder *serveCommander) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmd.Flags().StringVar(&cmder.envFile, "env-file", "", "Path to a .env file with CAMOUFOX_* variables")
	cmd.Flags().BoolVar(&cmder.debug, "debug", false, "Enable debug logging")

	return cmd
}

func (c *serveCommander) run(ctx context.Context, cmd *cobra.Command) error {
	env, err := envfile.Load(c.envFile)
	if err != nil {
		return err
	}

	runtime := server.LoadRuntimeConfig(env)

	log := logger.NewLogger(logger.Options{
		Debug:  c.debug || runtime.Debug,
		Format: runtime.LogFormat,
		Output: cmd.OutOrStdout(),
	})
	defer log.Sync()

	for _, warning := range server.Lint(env) {
		log.Warn(warning)
	}

	config, err := server.LoadServerConfig(env)
	if err != nil {
		log.Error("invalid configuration", zap.Error(err))
		return &ExitError{Code: 1, Err: err}
	}

	launcher := c.launcher
	if launcher == nil {
		launcher = server.NewPythonLauncher(runtime.Python, log)
	}

	srv := server.New(config, launcher, log, server.Options{
		HealthAddr: runtime.HealthAddr,
	})

	err = srv.Run(ctx)
	if code := server.ExitCode(err); code != 0 {
		return &ExitError{Code: code, Err: err}
	}
	return nil
}
