package rotation

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/systmms/dsops-rotator/internal/logging"
	"github.com/systmms/dsops-rotator/pkg/secretstore"
)

// Trigger plays the part of the managed rotation service for stores that
// have none: it registers a fresh token and drives the four steps in order,
// stopping at the first failure.
type Trigger struct {
	orchestrator *Orchestrator
	starter      secretstore.Starter
	newToken     func() string
	logger       *logging.Logger
}

// NewTrigger creates a trigger. logger may be nil.
func NewTrigger(o *Orchestrator, starter secretstore.Starter, logger *logging.Logger) *Trigger {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Trigger{
		orchestrator: o,
		starter:      starter,
		newToken:     uuid.NewString,
		logger:       logger,
	}
}

// Rotate runs a complete rotation under a new token and returns the token.
func (t *Trigger) Rotate(ctx context.Context, secretID string) (string, error) {
	token := t.newToken()
	return token, t.RotateWithToken(ctx, secretID, token)
}

// RotateWithToken runs a complete rotation under token. After a failure
// before finishSecret it may be re-run with the same token.
func (t *Trigger) RotateWithToken(ctx context.Context, secretID, token string) error {
	log := t.logger.With("secret", secretID).With("token", token)

	if err := t.starter.StartRotation(ctx, secretID, token); err != nil {
		return fmt.Errorf("failed to start rotation of %s: %w", secretID, err)
	}
	log.Debug("registered rotation token")

	for _, step := range Steps() {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := t.orchestrator.Handle(ctx, Request{
			SecretID:           secretID,
			ClientRequestToken: token,
			Step:               step,
		})
		if err != nil {
			return err
		}
	}

	log.Info("rotation completed")
	return nil
}
