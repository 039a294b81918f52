package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/systmms/dsops-rotator/pkg/rotation"
	"github.com/systmms/dsops-rotator/pkg/secretstore"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// StoreError adds store-specific suggestions to a secret store failure
func StoreError(store string, operation string, err error) error {
	return UserError{
		Message:    fmt.Sprintf("%s store error during %s", store, operation),
		Details:    err.Error(),
		Suggestion: getStoreSuggestion(store, err),
		Err:        err,
	}
}

func getStoreSuggestion(store string, err error) string {
	errStr := err.Error()

	switch store {
	case "aws", "aws-secretsmanager":
		if secretstore.IsAuth(err) || strings.Contains(errStr, "credentials") {
			return "Configure AWS credentials: 'aws configure' or set AWS_PROFILE"
		}
		if strings.Contains(errStr, "AccessDenied") {
			return "Check IAM permissions for secretsmanager:DescribeSecret, GetSecretValue, PutSecretValue and UpdateSecretVersionStage"
		}
		if secretstore.IsNotFound(err) || strings.Contains(errStr, "ResourceNotFoundException") {
			return "Verify the secret name and region. List secrets with: 'aws secretsmanager list-secrets'"
		}
		if strings.Contains(errStr, "ThrottlingException") {
			return "AWS rate limit exceeded. Wait a moment and try again"
		}

	case "keyring":
		if secretstore.IsNotFound(err) {
			return "Seed the secret first with 'dsops-rotator seed --secret-id <secret-id>'"
		}
		if strings.Contains(errStr, "org.freedesktop.secrets") || strings.Contains(errStr, "dbus") {
			return "Start a Secret Service provider such as gnome-keyring-daemon"
		}
	}

	if secretstore.IsNotFound(err) {
		return "Verify the secret ID is spelled correctly"
	}
	if strings.Contains(errStr, "timeout") {
		return "The operation timed out. Check your network connection and try again"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to connect. Check your network and store configuration"
	}

	return ""
}

// Explain turns a rotation failure into a UserError with a suggestion for
// the operator. Errors it does not recognise are returned unchanged.
func Explain(err error) error {
	if err == nil {
		return nil
	}
	if ue, ok := explain(err); ok {
		return ue
	}
	return err
}

func explain(err error) (UserError, bool) {
	var msg, suggestion string
	switch {
	case errors.Is(err, rotation.ErrSecretNotRotatable):
		msg = "Rotation is not enabled for this secret"
		suggestion = "Enable rotation on the secret before invoking a rotation step"
	case errors.Is(err, rotation.ErrInvalidToken):
		msg = "The client request token cannot be rotated"
		suggestion = "Check 'dsops-rotator status --secret-id <secret-id>' for the token's stage labels. Tokens must be registered and must not be CURRENT"
	case errors.Is(err, rotation.ErrUnknownStep):
		msg = "Unknown rotation step"
		suggestion = "Use one of: createSecret, setSecret, testSecret, finishSecret"
	case errors.Is(err, rotation.ErrVerificationFailed):
		msg = "The pending credential did not work against the target"
		suggestion = "Inspect the target's logs, then re-run setSecret and testSecret with the same token"
	case errors.Is(err, rotation.ErrInconsistentStageState):
		msg = "The secret has no CURRENT version"
		suggestion = "Repair the stage labels manually before rotating again"
	default:
		return UserError{}, false
	}

	return UserError{Message: msg, Details: err.Error(), Suggestion: suggestion, Err: err}, true
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"timeout",
		"temporary failure",
		"connection reset",
		"broken pipe",
		"rate limit",
		"throttling",
		"too many requests",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// SimplifyError simplifies complex error messages for users
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	// Already a user-friendly error
	var ue UserError
	if errors.As(err, &ue) {
		return err
	}
	var ce ConfigError
	if errors.As(err, &ce) {
		return err
	}

	if ue, ok := explain(err); ok {
		return ue
	}

	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}
	errStr := rootErr.Error()

	if strings.HasPrefix(errStr, "yaml: ") {
		return ConfigError{
			Message:    "Invalid YAML format",
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "no such file or directory") {
		return UserError{
			Message:    "File or directory not found",
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	}

	return err
}
