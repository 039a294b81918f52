package commands

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"

	"github.com/systmms/dsops-rotator/internal/config"
	"github.com/systmms/dsops-rotator/internal/secure"
	"github.com/systmms/dsops-rotator/pkg/rotation"
)

// NewLambdaCommand serves rotation events as an AWS Lambda function.
func NewLambdaCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lambda",
		Short: "Run as an AWS Secrets Manager rotation Lambda",
		Long: `Run as the rotation function of an AWS Secrets Manager secret.

Secrets Manager invokes the function once per step with a rotation event.
Configuration comes from the config file bundled with the function or from
DSOPS_ROTATOR_* environment variables.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := newRotator(cfg)
			if err != nil {
				return err
			}
			lambda.StartWithOptions(lambdaHandler(r.orchestrator),
				lambda.WithContext(cmd.Context()),
				lambda.WithEnableSIGTERM(secure.Purge),
			)
			return nil
		},
	}
	return cmd
}

// lambdaHandler validates the raw event the same way POST /rotate does.
func lambdaHandler(h interface {
	Handle(ctx context.Context, req rotation.Request) error
}) func(ctx context.Context, event json.RawMessage) error {
	return func(ctx context.Context, event json.RawMessage) error {
		req, err := rotation.ParseEvent(event)
		if err != nil {
			return err
		}
		return h.Handle(ctx, req)
	}
}
