package probecmder

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/camoufox-launcher/cmd/camoufox/envfile"
	"github.com/papercomputeco/camoufox-launcher/pkg/probe"
	"github.com/papercomputeco/camoufox-launcher/server"
)

const probeLongDesc string = `Check that a running Camoufox server accepts connections.

Connects to the server described by the CAMOUFOX_* environment as a
Playwright Firefox client, opens a page and prints the browser version.
The Playwright driver must be installed; browsers are not downloaded.

Examples:
  camoufox probe
  camoufox probe --host camoufox.internal --timeout 10s`

const probeShortDesc string = "Connect to a running Camoufox server"

type probeCommander struct {
	envFile string
	host    string
	timeout time.Duration
}

func NewProbeCmd() *cobra.Command {
	cmder := &probeCommander{}

	cmd := &cobra.Command{
		Use:   "probe",
		Short: probeShortDesc,
		Long:  probeLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmd.Flags().StringVar(&cmder.envFile, "env-file", "", "Path to a .env file with CAMOUFOX_* variables")
	cmd.Flags().StringVar(&cmder.host, "host", "127.0.0.1", "Host the Camoufox server is reachable on")
	cmd.Flags().DurationVar(&cmder.timeout, "timeout", 30*time.Second, "Connection timeout")

	return cmd
}

func (c *probeCommander) wsURL() (string, error) {
	env, err := envfile.Load(c.envFile)
	if err != nil {
		return "", err
	}

	config, err := server.LoadServerConfig(env)
	if err != nil {
		return "", fmt.Errorf("could not load configuration: %w", err)
	}

	return config.URL(c.host), nil
}

func (c *probeCommander) run(ctx context.Context, cmd *cobra.Command) error {
	wsURL, err := c.wsURL()
	if err != nil {
		return err
	}

	result, err := probe.Run(ctx, probe.Options{WSURL: wsURL, Timeout: c.timeout}, zap.NewNop())
	if err != nil {
		return fmt.Errorf("probe failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Connected to %s (Firefox %s) in %s\n",
		result.WSURL, result.Version, result.Duration.Round(time.Millisecond))

	return nil
}
