// Package envfile builds the environment snapshot the camoufox commands read from.
package envfile

import (
	"fmt"

	"github.com/joho/godotenv"

	"github.com/papercomputeco/camoufox-launcher/server"
)

// Load snapshots the process environment and, when path is non-empty,
// fills in variables from the .env file at path. Variables already set in
// the process environment are never overridden.
func Load(path string) (server.Env, error) {
	env := server.EnvFromOS()
	if path == "" {
		return env, nil
	}

	file, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("could not read env file %s: %w", path, err)
	}

	return env.Merge(server.Env(file)), nil
}
