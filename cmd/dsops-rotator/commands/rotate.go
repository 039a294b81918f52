package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/systmms/dsops-rotator/internal/config"
	"github.com/systmms/dsops-rotator/pkg/rotation"
)

// NewRotateCommand runs a complete rotation locally.
func NewRotateCommand(cfg *config.Config) *cobra.Command {
	var (
		secretID string
		token    string
	)

	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Run a complete rotation",
		Long: `Register a new version token and run all four rotation steps in order,
stopping at the first failure.

Only stores without a managed rotation service support this. A failed
rotation can be resumed by passing the printed token back with --token.

Examples:
  dsops-rotator rotate --secret-id prod/db/app
  dsops-rotator rotate --secret-id prod/db/app --token 3f6c...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := newRotator(cfg)
			if err != nil {
				return err
			}
			starter, err := r.starter(secretID)
			if err != nil {
				return err
			}

			if token == "" {
				token = uuid.NewString()
			}
			trigger := rotation.NewTrigger(r.orchestrator, starter, r.logger)
			err = trigger.RotateWithToken(cmd.Context(), secretID, token)
			r.recordRotation(err)
			if err != nil {
				return storeFailure(cfg, "rotate", fmt.Errorf("rotation of %s with token %s failed: %w", secretID, token, err))
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Rotated %s: version %s is now CURRENT\n", secretID, token)
			return nil
		},
	}

	cmd.Flags().StringVar(&secretID, "secret-id", "", "Secret to rotate (required)")
	cmd.Flags().StringVar(&token, "token", "", "Token for the new version (default: a new UUID)")
	_ = cmd.MarkFlagRequired("secret-id")

	return cmd
}

// NewStartCommand registers a new version token for step-by-step rotation.
func NewStartCommand(cfg *config.Config) *cobra.Command {
	var (
		secretID string
		token    string
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Register a new version token",
		Long: `Register a new version token for a secret and print it, so the steps can
be run one at a time with 'dsops-rotator handle'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := loadStore(cfg)
			if err != nil {
				return err
			}
			r := &rotator{store: store}
			starter, err := r.starter(secretID)
			if err != nil {
				return err
			}

			if token == "" {
				token = uuid.NewString()
			}
			if err := starter.StartRotation(cmd.Context(), secretID, token); err != nil {
				return storeFailure(cfg, "start", fmt.Errorf("failed to start rotation of %s: %w", secretID, err))
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&secretID, "secret-id", "", "Secret to rotate (required)")
	cmd.Flags().StringVar(&token, "token", "", "Token for the new version (default: a new UUID)")
	_ = cmd.MarkFlagRequired("secret-id")

	return cmd
}
