package rotation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    Request
		wantErr string
	}{
		{
			name:  "valid event",
			input: `{"SecretId":"arn:aws:secretsmanager:us-east-1:123456789012:secret:db","ClientRequestToken":"tok-B","Step":"createSecret"}`,
			want: Request{
				SecretID:           "arn:aws:secretsmanager:us-east-1:123456789012:secret:db",
				ClientRequestToken: "tok-B",
				Step:               StepCreate,
			},
		},
		{
			name:  "unknown step still parses",
			input: `{"SecretId":"db","ClientRequestToken":"tok-B","Step":"bogusStep"}`,
			want:  Request{SecretID: "db", ClientRequestToken: "tok-B", Step: "bogusStep"},
		},
		{
			name:  "empty step still parses",
			input: `{"SecretId":"db","ClientRequestToken":"tok-B","Step":""}`,
			want:  Request{SecretID: "db", ClientRequestToken: "tok-B", Step: ""},
		},
		{
			name:  "extra fields are ignored",
			input: `{"SecretId":"db","ClientRequestToken":"tok-B","Step":"finishSecret","RotationToken":"x"}`,
			want:  Request{SecretID: "db", ClientRequestToken: "tok-B", Step: StepFinish},
		},
		{
			name:    "missing token",
			input:   `{"SecretId":"db","Step":"createSecret"}`,
			wantErr: "ClientRequestToken",
		},
		{
			name:    "empty secret id",
			input:   `{"SecretId":"","ClientRequestToken":"tok","Step":"createSecret"}`,
			wantErr: "SecretId",
		},
		{
			name:    "wrong type",
			input:   `{"SecretId":"db","ClientRequestToken":"tok","Step":3}`,
			wantErr: "Step",
		},
		{
			name:    "not json",
			input:   `SecretId=db`,
			wantErr: "invalid rotation event",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseEvent([]byte(tt.input))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStepValid(t *testing.T) {
	t.Parallel()

	for _, s := range Steps() {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, Step("bogusStep").Valid())
	assert.Equal(t, []Step{StepCreate, StepSet, StepTest, StepFinish}, Steps())
}
