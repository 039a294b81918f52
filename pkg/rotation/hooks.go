package rotation

import (
	"context"
	"time"
)

// Generator derives the PENDING payload from the CURRENT payload.
type Generator interface {
	Generate(ctx context.Context, current []byte) ([]byte, error)
}

// CredentialApplier propagates the PENDING credential to the system that
// consumes it. Apply must be idempotent: calling it again with the same
// payload must neither fail nor apply twice.
type CredentialApplier interface {
	Apply(ctx context.Context, secretID string, pending []byte) error
}

// CredentialVerifier checks the PENDING credential against the real target.
type CredentialVerifier interface {
	Verify(ctx context.Context, secretID string, pending []byte) error
}

// Recorder receives one observation per Handle call.
type Recorder interface {
	ObserveStep(step, outcome string, duration time.Duration)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, current []byte) ([]byte, error)

func (f GeneratorFunc) Generate(ctx context.Context, current []byte) ([]byte, error) {
	return f(ctx, current)
}

// ApplierFunc adapts a function to CredentialApplier.
type ApplierFunc func(ctx context.Context, secretID string, pending []byte) error

func (f ApplierFunc) Apply(ctx context.Context, secretID string, pending []byte) error {
	return f(ctx, secretID, pending)
}

// VerifierFunc adapts a function to CredentialVerifier.
type VerifierFunc func(ctx context.Context, secretID string, pending []byte) error

func (f VerifierFunc) Verify(ctx context.Context, secretID string, pending []byte) error {
	return f(ctx, secretID, pending)
}

// NoopApplier accepts every credential without touching any system.
type NoopApplier struct{}

func (NoopApplier) Apply(context.Context, string, []byte) error { return nil }

// NoopVerifier accepts every credential without checking it.
type NoopVerifier struct{}

func (NoopVerifier) Verify(context.Context, string, []byte) error { return nil }

type noopRecorder struct{}

func (noopRecorder) ObserveStep(string, string, time.Duration) {}
