package commands

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/dsops-rotator/internal/config"
	dserrors "github.com/systmms/dsops-rotator/internal/errors"
	"github.com/systmms/dsops-rotator/internal/secretstores"
	"github.com/systmms/dsops-rotator/internal/secure"
)

// DefaultSeedToken is the version token of a freshly seeded secret.
const DefaultSeedToken = "initial"

// NewSeedCommand creates a secret with a single CURRENT version.
func NewSeedCommand(cfg *config.Config) *cobra.Command {
	var (
		secretID        string
		token           string
		rotationEnabled bool
	)

	cmd := &cobra.Command{
		Use:   "seed [file]",
		Short: "Create a secret with one CURRENT version",
		Long: `Create or replace a secret in a store the rotator manages itself, such as
the OS keyring. The JSON payload is read from a file, or from stdin when the
file is omitted or "-".

Examples:
  echo '{"username":"app","password":"s3cret"}' | dsops-rotator seed --secret-id prod/db/app`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := loadStore(cfg)
			if err != nil {
				return err
			}
			seeder, ok := store.(secretstores.Seeder)
			if !ok {
				return dserrors.UserError{
					Message:    fmt.Sprintf("Store %s cannot be seeded by the rotator", store.Name()),
					Suggestion: "Create the secret with the store's own tooling",
				}
			}

			payload, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			defer secure.Wipe(payload)

			payload = bytes.TrimSpace(payload)
			if !json.Valid(payload) {
				return dserrors.UserError{
					Message:    "Secret payload is not valid JSON",
					Suggestion: `Provide a JSON object such as {"username":"app","password":"..."}`,
				}
			}

			if err := seeder.Seed(cmd.Context(), secretID, token, payload, rotationEnabled); err != nil {
				return dserrors.StoreError(cfg.Definition.Store.Type, "seed", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Seeded %s with version %s as CURRENT\n", secretID, token)
			return nil
		},
	}

	cmd.Flags().StringVar(&secretID, "secret-id", "", "Secret to create (required)")
	cmd.Flags().StringVar(&token, "token", DefaultSeedToken, "Version token of the seeded version")
	cmd.Flags().BoolVar(&rotationEnabled, "rotation-enabled", true, "Mark the secret as rotatable")
	_ = cmd.MarkFlagRequired("secret-id")

	return cmd
}
