package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	configcmder "github.com/papercomputeco/camoufox-launcher/cmd/camoufox/config"
	probecmder "github.com/papercomputeco/camoufox-launcher/cmd/camoufox/probe"
	servecmder "github.com/papercomputeco/camoufox-launcher/cmd/camoufox/serve"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	// With no subcommand the root command serves.
	cmd := servecmder.NewServeCmd("camoufox")
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	cmd.AddCommand(
		servecmder.NewServeCmd("serve"),
		configcmder.NewConfigCmd(),
		probecmder.NewProbeCmd(),
	)

	err := cmd.ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}

	var exitErr *servecmder.ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.Code)
	}

	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}
