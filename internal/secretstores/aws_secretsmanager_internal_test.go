package secretstores

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"

	"github.com/systmms/dsops-rotator/pkg/secretstore"
)

type fakeAPIError struct {
	code string
	msg  string
}

func (e fakeAPIError) ErrorCode() string    { return e.code }
func (e fakeAPIError) ErrorMessage() string { return e.msg }
func (e fakeAPIError) ErrorFault() smithy.ErrorFault {
	return smithy.FaultClient
}
func (e fakeAPIError) Error() string { return e.msg }

func TestIsAuthError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"expired token", fakeAPIError{code: "ExpiredTokenException", msg: "expired"}, true},
		{"bad signature", fmt.Errorf("wrapped: %w", fakeAPIError{code: "SignatureDoesNotMatch", msg: "bad"}), true},
		{"access denied text", errors.New("AccessDeniedException: no"), true},
		{"missing credentials", errors.New("failed to retrieve credentials"), true},
		{"throttling", fakeAPIError{code: "ThrottlingException", msg: "slow down"}, false},
		{"other", errors.New("other"), false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, isAuthError(tt.err))
		})
	}
}

func TestIsNotFoundError(t *testing.T) {
	t.Parallel()

	assert.True(t, isNotFoundError(fmt.Errorf("op: %w", &types.ResourceNotFoundException{})))
	assert.False(t, isNotFoundError(fakeAPIError{code: "ResourceNotFoundException"}))
}

func TestLabelMapping(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "AWSCURRENT", toAWSLabel(secretstore.StageCurrent))
	assert.Equal(t, "AWSPENDING", toAWSLabel(secretstore.StagePending))
	assert.Equal(t, "AWSPREVIOUS", toAWSLabel(secretstore.StagePrevious))
	assert.Equal(t, "CUSTOM", toAWSLabel("CUSTOM"))

	got := fromAWSLabels([]string{"AWSCURRENT", "release-7", "AWSPREVIOUS"})
	assert.Equal(t, []secretstore.StageLabel{secretstore.StageCurrent, secretstore.StagePrevious}, got)
}
