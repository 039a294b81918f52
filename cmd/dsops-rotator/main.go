package main

import (
	"fmt"
	"os"

	"github.com/systmms/dsops-rotator/cmd/dsops-rotator/commands"
	"github.com/systmms/dsops-rotator/internal/config"
	dserrors "github.com/systmms/dsops-rotator/internal/errors"
	"github.com/systmms/dsops-rotator/internal/secure"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	err := run()
	secure.Purge()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", dserrors.SimplifyError(err))
		os.Exit(1)
	}
}

func run() error {
	cfg := &config.Config{}
	rootCmd := commands.NewRootCommand(cfg, fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date))
	return rootCmd.Execute()
}
