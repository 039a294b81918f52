package commands

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/systmms/dsops-rotator/internal/errors"
	"github.com/systmms/dsops-rotator/pkg/rotation"
	"github.com/systmms/dsops-rotator/pkg/secretstore"
)

func TestHandleCommand_StepByStep(t *testing.T) {
	cfg, service := keyringConfig(t)
	seed(t, cfg, "db")

	out, err := execute(t, NewStartCommand(cfg), "", "--secret-id", "db", "--token", "tok-B")
	require.NoError(t, err)
	assert.Equal(t, "tok-B\n", out)

	for _, step := range rotation.Steps() {
		out, err := execute(t, NewHandleCommand(cfg), "",
			"--secret-id", "db", "--token", "tok-B", "--step", step.String())
		require.NoError(t, err, out)
		assert.Contains(t, out, step.String()+" completed for db (version tok-B)")
	}

	current := keyringCurrent(t, service, "db")
	assert.Equal(t, "tok-B", current.Token)
	assert.JSONEq(t, `{"username":"app","password":"hunter2-next"}`, string(current.Payload))
}

func TestHandleCommand_Errors(t *testing.T) {
	cfg, _ := keyringConfig(t)
	seed(t, cfg, "db")

	_, err := execute(t, NewHandleCommand(cfg), "",
		"--secret-id", "db", "--token", "tok-unknown", "--step", "createSecret")
	require.Error(t, err)
	assert.ErrorIs(t, err, rotation.ErrInvalidToken)

	_, err = execute(t, NewHandleCommand(cfg), "",
		"--secret-id", "db", "--token", DefaultSeedToken, "--step", "createSecret")
	assert.ErrorIs(t, err, rotation.ErrInvalidToken, "the CURRENT token cannot be rotated")

	_, err = execute(t, NewHandleCommand(cfg), "",
		"--secret-id", "missing", "--token", "tok-B", "--step", "createSecret")
	require.Error(t, err)
	assert.True(t, secretstore.IsNotFound(err))
	var ue dserrors.UserError
	require.ErrorAs(t, err, &ue)
	assert.Contains(t, ue.Suggestion, "dsops-rotator seed")

	_, err = execute(t, NewHandleCommand(cfg), "", "--secret-id", "db")
	assert.ErrorContains(t, err, "required flag(s)")
}

func TestEventCommand(t *testing.T) {
	cfg, service := keyringConfig(t)
	seed(t, cfg, "db")
	_, err := execute(t, NewStartCommand(cfg), "", "--secret-id", "db", "--token", "tok-B")
	require.NoError(t, err)

	// createSecret from a file, the rest from stdin
	path := filepath.Join(t.TempDir(), "event.json")
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"SecretId":"db","ClientRequestToken":"tok-B","Step":"createSecret"}`), 0600))
	out, err := execute(t, NewEventCommand(cfg), "", path)
	require.NoError(t, err, out)

	for _, step := range []string{"setSecret", "testSecret", "finishSecret"} {
		event := `{"SecretId":"db","ClientRequestToken":"tok-B","Step":"` + step + `"}`
		out, err := execute(t, NewEventCommand(cfg), event)
		require.NoError(t, err, out)
	}
	assert.Equal(t, "tok-B", keyringCurrent(t, service, "db").Token)

	_, err = execute(t, NewEventCommand(cfg), `{"SecretId":"db"}`, "-")
	assert.ErrorContains(t, err, "invalid rotation event")

	_, err = execute(t, NewEventCommand(cfg), "", filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorContains(t, err, "failed to read")
}

func TestLambdaHandler(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := secretstore.NewMemoryStore("mem")
	store.AddVersion("db", "tok-A", []byte(seedPayload), secretstore.StageCurrent)
	require.NoError(t, store.StartRotation(ctx, "db", "tok-B"))

	handler := lambda.NewHandler(lambdaHandler(rotation.New(store)))
	for _, step := range rotation.Steps() {
		payload, err := json.Marshal(rotation.Event{SecretID: "db", ClientRequestToken: "tok-B", Step: step.String()})
		require.NoError(t, err)
		_, err = handler.Invoke(ctx, payload)
		require.NoError(t, err, step)
	}

	d, err := store.Describe(ctx, "db")
	require.NoError(t, err)
	assert.True(t, d.TokenHas("tok-B", secretstore.StageCurrent))

	_, err = handler.Invoke(ctx, []byte(`{"SecretId":"db","Step":"createSecret"}`))
	assert.ErrorContains(t, err, "ClientRequestToken")

	require.NoError(t, store.StartRotation(ctx, "db", "tok-C"))
	_, err = handler.Invoke(ctx, []byte(`{"SecretId":"db","ClientRequestToken":"tok-C","Step":"rollback"}`))
	assert.ErrorContains(t, err, "unknown rotation step")
}
