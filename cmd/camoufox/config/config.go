package configcmder

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/camoufox-launcher/cmd/camoufox/envfile"
	"github.com/papercomputeco/camoufox-launcher/server"
)

const configLongDesc string = `Print the configuration the server would start with.

Reads the same CAMOUFOX_* variables as serve and prints the resolved
values as TOML. The proxy password is masked. Warnings about values
that are silently treated as false are printed as comments.

Examples:
  camoufox config
  camoufox config --env-file /etc/camoufox.env`

const configShortDesc string = "Print the resolved configuration"

type configCommander struct {
	envFile string
}

type configDocument struct {
	WSURL   string          `toml:"ws_url"`
	Server  server.Config   `toml:"server"`
	Runtime runtimeDocument `toml:"runtime"`
}

type runtimeDocument struct {
	Python     string `toml:"python"`
	HealthAddr string `toml:"health_addr,omitempty"`
	Debug      bool   `toml:"debug"`
	LogFormat  string `toml:"log_format,omitempty"`
}

func NewConfigCmd() *cobra.Command {
	cmder := &configCommander{}

	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd)
		},
	}

	cmd.Flags().StringVar(&cmder.envFile, "env-file", "", "Path to a .env file with CAMOUFOX_* variables")

	return cmd
}

func (c *configCommander) run(cmd *cobra.Command) error {
	env, err := envfile.Load(c.envFile)
	if err != nil {
		return err
	}

	config, err := server.LoadServerConfig(env)
	if err != nil {
		return fmt.Errorf("could not load configuration: %w", err)
	}
	runtime := server.LoadRuntimeConfig(env)

	out := cmd.OutOrStdout()
	for _, warning := range server.Lint(env) {
		fmt.Fprintf(out, "# warning: %s\n", warning)
	}

	doc := configDocument{
		WSURL:  config.URL("0.0.0.0"),
		Server: config.Redacted(),
		Runtime: runtimeDocument{
			Python:     runtime.Python,
			HealthAddr: runtime.HealthAddr,
			Debug:      runtime.Debug,
			LogFormat:  runtime.LogFormat,
		},
	}

	if err := toml.NewEncoder(out).Encode(doc); err != nil {
		return fmt.Errorf("could not encode configuration: %w", err)
	}
	return nil
}
