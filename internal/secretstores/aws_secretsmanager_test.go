package secretstores_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/dsops-rotator/internal/secretstores"
	"github.com/systmms/dsops-rotator/pkg/rotation"
	"github.com/systmms/dsops-rotator/pkg/secretstore"
	"github.com/systmms/dsops-rotator/tests/fakes"
)

const awsSecret = "prod/db/app"

func newAWSStore(t *testing.T) (*secretstores.AWSSecretsManagerStore, *fakes.FakeSecretsManagerClient) {
	t.Helper()

	fake := fakes.NewFakeSecretsManagerClient()
	fake.AddSecretString(awsSecret, "tok-A", `{"username":"app","password":"old"}`, true)

	store, err := secretstores.NewAWSSecretsManagerStore("aws", map[string]interface{}{"region": "eu-west-1"},
		secretstores.WithSecretsManagerClient(fake),
		secretstores.WithCallerIdentityClient(&fakes.FakeSTSClient{Account: "123456789012", Arn: "arn:aws:iam::123456789012:role/rotator"}),
	)
	require.NoError(t, err)
	return store, fake
}

func TestAWSSecretsManagerStore_Describe(t *testing.T) {
	t.Parallel()

	store, fake := newAWSStore(t)
	fake.BeginRotation(awsSecret, "tok-B")

	d, err := store.Describe(context.Background(), awsSecret)
	require.NoError(t, err)
	assert.True(t, d.RotationEnabled)
	assert.Equal(t, []secretstore.StageLabel{secretstore.StageCurrent}, d.VersionStages["tok-A"])
	assert.Equal(t, []secretstore.StageLabel{secretstore.StagePending}, d.VersionStages["tok-B"])
	assert.Equal(t, "aws", store.Name())
	assert.Equal(t, "eu-west-1", store.Region())
}

func TestAWSSecretsManagerStore_NotFound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, _ := newAWSStore(t)

	_, err := store.Describe(ctx, "missing")
	assert.True(t, secretstore.IsNotFound(err))

	_, err = store.GetVersion(ctx, awsSecret, secretstore.StagePending)
	require.Error(t, err)
	assert.True(t, secretstore.IsNotFound(err))
	assert.Contains(t, err.Error(), "PENDING")
}

func TestAWSSecretsManagerStore_PutVersionIsWriteIfAbsent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, fake := newAWSStore(t)
	fake.BeginRotation(awsSecret, "tok-B")

	pending := []secretstore.StageLabel{secretstore.StagePending}
	require.NoError(t, store.PutVersion(ctx, awsSecret, "tok-B", []byte("first"), pending))
	require.NoError(t, store.PutVersion(ctx, awsSecret, "tok-B", []byte("second"), pending))

	assert.Equal(t, "first", fake.Value(awsSecret, "tok-B"))
	assert.Equal(t, 2, fake.Calls("PutSecretValue"))
}

func TestAWSSecretsManagerStore_ErrorClassification(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, fake := newAWSStore(t)
	fake.Errors["DescribeSecret"] = errors.New("operation error: AccessDeniedException: not authorized")
	fake.Errors["PutSecretValue"] = errors.New("ThrottlingException: Rate exceeded")

	_, err := store.Describe(ctx, awsSecret)
	assert.True(t, secretstore.IsAuth(err))

	err = store.PutVersion(ctx, awsSecret, "tok-B", []byte("x"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AWS Secrets Manager error")
	assert.False(t, secretstore.IsAuth(err))
}

func TestAWSSecretsManagerStore_MoveStageLabel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, fake := newAWSStore(t)
	fake.BeginRotation(awsSecret, "tok-B")
	require.NoError(t, store.PutVersion(ctx, awsSecret, "tok-B", []byte("new"), []secretstore.StageLabel{secretstore.StagePending}))

	err := store.MoveStageLabel(ctx, awsSecret, secretstore.StageCurrent, "tok-B", "")
	require.Error(t, err, "CURRENT holder must be named")

	err = store.MoveStageLabel(ctx, awsSecret, secretstore.StageCurrent, "", "")
	require.Error(t, err)
	assert.Equal(t, 1, fake.Calls("UpdateSecretVersionStage"))

	require.NoError(t, store.MoveStageLabel(ctx, awsSecret, secretstore.StageCurrent, "tok-B", "tok-A"))
	assert.Equal(t, []string{"AWSPREVIOUS"}, fake.Stages(awsSecret, "tok-A"))
	assert.Equal(t, []string{"AWSCURRENT", "AWSPENDING"}, fake.Stages(awsSecret, "tok-B"))
}

func TestAWSSecretsManagerStore_FullRotation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, fake := newAWSStore(t)
	fake.BeginRotation(awsSecret, "tok-B")

	orch := rotation.New(store, rotation.WithGenerator(&rotation.SuffixGenerator{}))
	for _, step := range rotation.Steps() {
		require.NoError(t, orch.Handle(ctx, rotation.Request{SecretID: awsSecret, ClientRequestToken: "tok-B", Step: step}), step)
	}

	assert.Equal(t, []string{"AWSPREVIOUS"}, fake.Stages(awsSecret, "tok-A"))
	assert.Equal(t, []string{"AWSCURRENT"}, fake.Stages(awsSecret, "tok-B"))
	assert.JSONEq(t, `{"username":"app","password":"old_ROTATED"}`, fake.Value(awsSecret, "tok-B"))

	// a late retry of finishSecret is rejected without touching labels
	calls := fake.Calls("UpdateSecretVersionStage")
	err := orch.Handle(ctx, rotation.Request{SecretID: awsSecret, ClientRequestToken: "tok-B", Step: rotation.StepFinish})
	assert.ErrorIs(t, err, rotation.ErrInvalidToken)
	assert.Equal(t, calls, fake.Calls("UpdateSecretVersionStage"))
}

func TestAWSSecretsManagerStore_Identity(t *testing.T) {
	t.Parallel()

	store, _ := newAWSStore(t)
	var checker secretstores.IdentityChecker = store

	id, err := checker.Identity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "123456789012", id.Account)
	assert.Equal(t, "arn:aws:iam::123456789012:role/rotator (account 123456789012)", id.String())

	failing, err := secretstores.NewAWSSecretsManagerStore("aws", nil,
		secretstores.WithSecretsManagerClient(fakes.NewFakeSecretsManagerClient()),
		secretstores.WithCallerIdentityClient(&fakes.FakeSTSClient{Err: errors.New("dial tcp: i/o timeout")}),
	)
	require.NoError(t, err)
	_, err = failing.Identity(context.Background())
	assert.ErrorContains(t, err, "failed to get caller identity")
}
