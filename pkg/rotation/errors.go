package rotation

import (
	"errors"
	"fmt"
)

var (
	// ErrSecretNotRotatable is returned when rotation is disabled for the secret.
	ErrSecretNotRotatable = errors.New("secret rotation is not enabled")

	// ErrInvalidToken is returned when the client request token does not name
	// a version that may be rotated: unknown, already CURRENT, or (for
	// finishSecret) not PENDING.
	ErrInvalidToken = errors.New("client request token is not valid")

	// ErrUnknownStep is returned for a step name outside the protocol.
	ErrUnknownStep = errors.New("unknown rotation step")

	// ErrVerificationFailed is returned when the PENDING credential does not
	// work against the target system.
	ErrVerificationFailed = errors.New("pending credential verification failed")

	// ErrInconsistentStageState is returned when no version holds CURRENT.
	ErrInconsistentStageState = errors.New("inconsistent stage state")
)

// StepError wraps a failure inside a step handler.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// FailedStep returns the step err was raised in, if any.
func FailedStep(err error) (Step, bool) {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step, true
	}
	return "", false
}

// Outcome classifies the result of Handle for metrics and transports.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrSecretNotRotatable):
		return "not_rotatable"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrUnknownStep):
		return "unknown_step"
	case errors.Is(err, ErrVerificationFailed):
		return "verification_failed"
	}
	if _, ok := FailedStep(err); ok {
		return "step_failed"
	}
	return "store_error"
}
