package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/dsops-rotator/internal/config"
	dserrors "github.com/systmms/dsops-rotator/internal/errors"
	"github.com/systmms/dsops-rotator/internal/secretstores"
	"github.com/systmms/dsops-rotator/pkg/rotation"
	"github.com/systmms/dsops-rotator/pkg/secretstore"
	"github.com/systmms/dsops-rotator/tests/testutil"
)

func TestRotateCommand_Memory(t *testing.T) {
	t.Parallel()

	cfg := memoryConfig(t)
	out, err := execute(t, NewRotateCommand(cfg), "", "--secret-id", "db", "--token", "tok-B")
	require.NoError(t, err, out)
	assert.Equal(t, "Rotated db: version tok-B is now CURRENT\n", out)
}

func TestRotateCommand_GeneratesToken(t *testing.T) {
	cfg, service := keyringConfig(t)
	seed(t, cfg, "db")

	out, err := execute(t, NewRotateCommand(cfg), "", "--secret-id", "db")
	require.NoError(t, err, out)

	current := keyringCurrent(t, service, "db")
	assert.Len(t, current.Token, 36)
	assert.Contains(t, out, "version "+current.Token+" is now CURRENT")
	assert.JSONEq(t, `{"username":"app","password":"hunter2-next"}`, string(current.Payload))
}

func TestRotateCommand_StopsAtFailedStep(t *testing.T) {
	builder := testutil.NewTestConfig(t).
		WithKeyringStore().
		WithTarget(config.TargetConfig{
			Type:      "sql",
			TimeoutMs: 2000,
			Connection: map[string]string{
				"type":     "postgres",
				"host":     "127.0.0.1",
				"port":     "1",
				"database": "app",
				"sslmode":  "disable",
			},
			Auth: map[string]string{
				"username": "admin",
				"password": "admin-password",
			},
		})
	cfg, service := builder.Config(), builder.KeyringService()
	tl := testutil.NewTestLogger(t)
	cfg.Logger = tl.Logger
	seed(t, cfg, "db")

	_, err := execute(t, NewRotateCommand(cfg), "", "--secret-id", "db", "--token", "tok-B")
	require.Error(t, err)
	step, ok := rotation.FailedStep(err)
	require.True(t, ok)
	assert.Equal(t, rotation.StepSet, step)
	assert.NotContains(t, err.Error(), "admin-password")
	tl.AssertContains(t, "preconditions passed")
	tl.AssertContains(t, "rotation step failed")
	tl.AssertNotContains(t, "admin-password")
	tl.AssertNotContains(t, "hunter2")

	store := secretstores.NewKeyringStore("keyring", map[string]interface{}{"service": service})
	d, err := store.Describe(context.Background(), "db")
	require.NoError(t, err)
	assert.True(t, d.TokenHas(DefaultSeedToken, secretstore.StageCurrent))
	assert.True(t, d.TokenHas("tok-B", secretstore.StagePending))

	out, err := execute(t, NewDoctorCommand(cfg), "", "--secret-id", "db", "--verbose")
	require.NoError(t, err, out)
	assert.Contains(t, out, "rotation in progress under version tok-B")
	assert.Contains(t, out, "--token tok-B")
}

func TestRotateCommand_ManagedStore(t *testing.T) {
	t.Parallel()

	cfg := testutil.NewTestConfig(t).
		WithStore(config.StoreAWSSecretsManager, map[string]interface{}{
			"region":            "us-east-1",
			"endpoint":          "http://127.0.0.1:1",
			"access_key_id":     "test",
			"secret_access_key": "test",
		}).
		Config()
	for name, cmd := range map[string]func() error{
		"rotate": func() error {
			_, err := execute(t, NewRotateCommand(cfg), "", "--secret-id", "db")
			return err
		},
		"start": func() error {
			_, err := execute(t, NewStartCommand(cfg), "", "--secret-id", "db")
			return err
		},
	} {
		err := cmd()
		require.Error(t, err, name)
		var ue dserrors.UserError
		require.ErrorAs(t, err, &ue, name)
		assert.Contains(t, ue.Message, "registers rotation tokens itself", name)
		assert.Contains(t, ue.Suggestion, "aws secretsmanager rotate-secret --secret-id db", name)
	}
}
