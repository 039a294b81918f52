package secretstore

import (
	"context"
	"errors"
	"fmt"
)

// StageLabel marks a version's role in the rotation lifecycle.
type StageLabel string

const (
	// StageCurrent marks the active credential. Exactly one version holds it.
	StageCurrent StageLabel = "CURRENT"

	// StagePending marks the in-progress replacement. At most one version holds it.
	StagePending StageLabel = "PENDING"

	// StagePrevious marks the version displaced by the last completed rotation.
	StagePrevious StageLabel = "PREVIOUS"
)

// Store is the capability the rotation orchestrator needs from a secret
// management system: secret metadata, versioned payloads and stage labels.
//
// Implementations own all concurrency control. The orchestrator never locks;
// it relies on PutVersion tolerating duplicate tokens and on MoveStageLabel
// being atomic.
type Store interface {
	// Name returns the configured store name.
	Name() string

	// Describe returns the rotation flag and the version token to stage
	// label mapping for a secret.
	Describe(ctx context.Context, secretID string) (Description, error)

	// GetVersion returns the version currently holding label.
	// It returns a NotFoundError if no version holds it.
	GetVersion(ctx context.Context, secretID string, label StageLabel) (Version, error)

	// PutVersion stores payload under token with the given labels.
	// Writing a token that already has a payload succeeds without
	// changing the stored payload. The caller may wipe payload once
	// PutVersion returns.
	PutVersion(ctx context.Context, secretID, token string, payload []byte, labels []StageLabel) error

	// MoveStageLabel attaches label to toToken and detaches it from
	// fromToken in one atomic operation. An empty toToken only detaches;
	// an empty fromToken only attaches.
	MoveStageLabel(ctx context.Context, secretID string, label StageLabel, toToken, fromToken string) error
}

// Starter is implemented by stores that let a local trigger register a new
// version token before the first rotation step, the way a managed secret
// service does when it starts a rotation.
type Starter interface {
	StartRotation(ctx context.Context, secretID, token string) error
}

// Description is the metadata view of a secret.
type Description struct {
	// RotationEnabled reports whether the secret may be rotated.
	RotationEnabled bool

	// VersionStages maps every known version token to its stage labels.
	// A token with no labels maps to an empty slice.
	VersionStages map[string][]StageLabel
}

// HasToken reports whether token is a known version.
func (d Description) HasToken(token string) bool {
	_, ok := d.VersionStages[token]
	return ok
}

// TokenHas reports whether the version under token carries label.
func (d Description) TokenHas(token string, label StageLabel) bool {
	return HasStage(d.VersionStages[token], label)
}

// Holder returns the token of the version holding label.
func (d Description) Holder(label StageLabel) (string, bool) {
	for token, stages := range d.VersionStages {
		if HasStage(stages, label) {
			return token, true
		}
	}
	return "", false
}

// Version is one immutable payload of a secret.
type Version struct {
	Token   string
	Payload []byte
	Stages  []StageLabel
}

// HasStage reports whether label is in stages.
func HasStage(stages []StageLabel, label StageLabel) bool {
	for _, s := range stages {
		if s == label {
			return true
		}
	}
	return false
}

// NotFoundError represents a missing secret or a label no version holds.
type NotFoundError struct {
	// Store is the name of the secret store that was queried.
	Store string

	// SecretID identifies the secret.
	SecretID string

	// Label is set when the secret exists but no version holds the label.
	Label StageLabel
}

func (e NotFoundError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("no version of secret %s holds %s in store %s", e.SecretID, e.Label, e.Store)
	}
	return "secret not found: " + e.SecretID + " in store " + e.Store
}

// AuthError represents an authentication or authorization failure.
type AuthError struct {
	Store   string
	Message string
}

func (e AuthError) Error() string {
	return "authentication failed for store " + e.Store + ": " + e.Message
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

// IsAuth reports whether err is or wraps an AuthError.
func IsAuth(err error) bool {
	var ae AuthError
	return errors.As(err, &ae)
}
