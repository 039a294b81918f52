package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/systmms/dsops-rotator/internal/config"
	"github.com/systmms/dsops-rotator/pkg/rotation"
)

// NewHandleCommand runs a single rotation step.
func NewHandleCommand(cfg *config.Config) *cobra.Command {
	var (
		secretID string
		token    string
		step     string
	)

	cmd := &cobra.Command{
		Use:   "handle",
		Short: "Run one rotation step",
		Long: `Run one step of the rotation protocol for a secret.

Steps must be run in order under the same token:
  createSecret   store a new PENDING version derived from CURRENT
  setSecret      apply the PENDING credential to the target system
  testSecret     verify the PENDING credential against the target system
  finishSecret   promote the PENDING version to CURRENT

Examples:
  dsops-rotator handle --secret-id prod/db/app --token $(dsops-rotator start --secret-id prod/db/app) --step createSecret`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStep(cmd, cfg, rotation.Request{
				SecretID:           secretID,
				ClientRequestToken: token,
				Step:               rotation.Step(step),
			})
		},
	}

	cmd.Flags().StringVar(&secretID, "secret-id", "", "Secret to rotate (required)")
	cmd.Flags().StringVar(&token, "token", "", "Client request token naming the new version (required)")
	cmd.Flags().StringVar(&step, "step", "", "Rotation step (required)")

	_ = cmd.MarkFlagRequired("secret-id")
	_ = cmd.MarkFlagRequired("token")
	_ = cmd.MarkFlagRequired("step")

	return cmd
}

// NewEventCommand runs the step described by a JSON rotation event.
func NewEventCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event [file]",
		Short: "Run the rotation step described by a JSON event",
		Long: `Read a rotation event from a file, or from stdin when the file is
omitted or "-", and run the step it names.

The event has the same shape a managed rotation service sends:
  {"SecretId": "prod/db/app", "ClientRequestToken": "...", "Step": "createSecret"}`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			req, err := rotation.ParseEvent(data)
			if err != nil {
				return err
			}
			return runStep(cmd, cfg, req)
		},
	}
	return cmd
}

func runStep(cmd *cobra.Command, cfg *config.Config, req rotation.Request) error {
	r, err := newRotator(cfg)
	if err != nil {
		return err
	}
	if err := r.orchestrator.Handle(cmd.Context(), req); err != nil {
		return storeFailure(cfg, req.Step.String(), err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s completed for %s (version %s)\n", req.Step, req.SecretID, req.ClientRequestToken)
	return nil
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	return data, nil
}
