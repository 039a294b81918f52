package secretstores

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"

	"github.com/systmms/dsops-rotator/pkg/secretstore"
)

// SecretsManagerClientAPI defines the Secrets Manager operations the store uses.
// This allows for fakes in tests.
type SecretsManagerClientAPI interface {
	DescribeSecret(ctx context.Context, params *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error)
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	UpdateSecretVersionStage(ctx context.Context, params *secretsmanager.UpdateSecretVersionStageInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.UpdateSecretVersionStageOutput, error)
}

// Secrets Manager staging labels for the three rotation stages.
var awsLabels = map[secretstore.StageLabel]string{
	secretstore.StageCurrent:  "AWSCURRENT",
	secretstore.StagePending:  "AWSPENDING",
	secretstore.StagePrevious: "AWSPREVIOUS",
}

// AWSSecretsManagerStore implements secretstore.Store on AWS Secrets Manager.
// Version tokens are Secrets Manager version IDs. Labels other than the three
// rotation stages are not reported.
type AWSSecretsManagerStore struct {
	name     string
	client   SecretsManagerClientAPI
	identity CallerIdentityAPI
	region   string
	endpoint string // Optional custom endpoint for LocalStack or testing
	timeout  time.Duration
}

// AWSOption is a functional option for configuring the AWS store
type AWSOption func(*AWSSecretsManagerStore)

// WithSecretsManagerClient sets a custom Secrets Manager client (for testing)
func WithSecretsManagerClient(client SecretsManagerClientAPI) AWSOption {
	return func(s *AWSSecretsManagerStore) {
		s.client = client
	}
}

// WithCallerIdentityClient sets a custom STS client (for testing)
func WithCallerIdentityClient(client CallerIdentityAPI) AWSOption {
	return func(s *AWSSecretsManagerStore) {
		s.identity = client
	}
}

// WithTimeout bounds every API call.
func WithTimeout(d time.Duration) AWSOption {
	return func(s *AWSSecretsManagerStore) {
		s.timeout = d
	}
}

// NewAWSSecretsManagerStore creates a new AWS Secrets Manager store
func NewAWSSecretsManagerStore(name string, storeConfig map[string]interface{}, opts ...AWSOption) (*AWSSecretsManagerStore, error) {
	region := "us-east-1" // Default region
	if r, ok := storeConfig["region"].(string); ok && r != "" {
		region = r
	}

	// Get optional endpoint for LocalStack/testing
	var endpoint string
	if e, ok := storeConfig["endpoint"].(string); ok && e != "" {
		endpoint = e
	}

	// Get optional static credentials for LocalStack/testing
	var accessKeyID, secretAccessKey string
	if ak, ok := storeConfig["access_key_id"].(string); ok && ak != "" {
		accessKeyID = ak
	}
	if sk, ok := storeConfig["secret_access_key"].(string); ok && sk != "" {
		secretAccessKey = sk
	}

	s := &AWSSecretsManagerStore{
		name:     name,
		region:   region,
		endpoint: endpoint,
		timeout:  30 * time.Second,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil || s.identity == nil {
		var configOpts []func(*config.LoadOptions) error
		configOpts = append(configOpts, config.WithRegion(region))

		if accessKeyID != "" && secretAccessKey != "" {
			configOpts = append(configOpts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
			))
		}

		cfg, err := config.LoadDefaultConfig(context.Background(), configOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}

		if s.client == nil {
			var clientOpts []func(*secretsmanager.Options)
			if endpoint != "" {
				clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
					o.BaseEndpoint = aws.String(endpoint)
				})
			}
			s.client = secretsmanager.NewFromConfig(cfg, clientOpts...)
		}
		if s.identity == nil {
			var stsOpts []func(*sts.Options)
			if endpoint != "" {
				stsOpts = append(stsOpts, func(o *sts.Options) {
					o.BaseEndpoint = aws.String(endpoint)
				})
			}
			s.identity = sts.NewFromConfig(cfg, stsOpts...)
		}
	}

	return s, nil
}

// Name returns the store name
func (s *AWSSecretsManagerStore) Name() string {
	return s.name
}

// Region returns the configured region
func (s *AWSSecretsManagerStore) Region() string {
	return s.region
}

// Describe implements secretstore.Store.
func (s *AWSSecretsManagerStore) Describe(ctx context.Context, secretID string) (secretstore.Description, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.client.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return secretstore.Description{}, s.handleError(err, secretID, "")
	}

	stages := make(map[string][]secretstore.StageLabel, len(out.VersionIdsToStages))
	for versionID, awsStages := range out.VersionIdsToStages {
		stages[versionID] = fromAWSLabels(awsStages)
	}
	return secretstore.Description{
		RotationEnabled: aws.ToBool(out.RotationEnabled),
		VersionStages:   stages,
	}, nil
}

// GetVersion implements secretstore.Store.
func (s *AWSSecretsManagerStore) GetVersion(ctx context.Context, secretID string, label secretstore.StageLabel) (secretstore.Version, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(secretID),
		VersionStage: aws.String(toAWSLabel(label)),
	})
	if err != nil {
		return secretstore.Version{}, s.handleError(err, secretID, label)
	}

	payload := out.SecretBinary
	if out.SecretString != nil {
		payload = []byte(*out.SecretString)
	}
	return secretstore.Version{
		Token:   aws.ToString(out.VersionId),
		Payload: payload,
		Stages:  fromAWSLabels(out.VersionStages),
	}, nil
}

// PutVersion implements secretstore.Store. Secrets Manager rejects a second
// write under the same ClientRequestToken with a different value; that
// rejection means the version already exists and is treated as success.
func (s *AWSSecretsManagerStore) PutVersion(ctx context.Context, secretID, token string, payload []byte, labels []secretstore.StageLabel) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	stages := make([]string, 0, len(labels))
	for _, l := range labels {
		stages = append(stages, toAWSLabel(l))
	}

	_, err := s.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:           aws.String(secretID),
		ClientRequestToken: aws.String(token),
		SecretString:       aws.String(string(payload)),
		VersionStages:      stages,
	})
	if err != nil {
		var exists *types.ResourceExistsException
		if errors.As(err, &exists) {
			return nil
		}
		return s.handleError(err, secretID, "")
	}
	return nil
}

// MoveStageLabel implements secretstore.Store with a single
// UpdateSecretVersionStage call. Moving CURRENT makes the service attach
// PREVIOUS to the version it was removed from.
func (s *AWSSecretsManagerStore) MoveStageLabel(ctx context.Context, secretID string, label secretstore.StageLabel, toToken, fromToken string) error {
	if toToken == "" && fromToken == "" {
		return fmt.Errorf("store %s: move of %s needs a source or a target version", s.name, label)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	input := &secretsmanager.UpdateSecretVersionStageInput{
		SecretId:     aws.String(secretID),
		VersionStage: aws.String(toAWSLabel(label)),
	}
	if toToken != "" {
		input.MoveToVersionId = aws.String(toToken)
	}
	if fromToken != "" {
		input.RemoveFromVersionId = aws.String(fromToken)
	}

	if _, err := s.client.UpdateSecretVersionStage(ctx, input); err != nil {
		return s.handleError(err, secretID, "")
	}
	return nil
}

// handleError converts AWS errors to store errors
func (s *AWSSecretsManagerStore) handleError(err error, secretID string, label secretstore.StageLabel) error {
	if isNotFoundError(err) {
		return fmt.Errorf("%w: %v", secretstore.NotFoundError{
			Store:    s.name,
			SecretID: secretID,
			Label:    label,
		}, err)
	}

	if isAuthError(err) {
		return secretstore.AuthError{
			Store:   s.name,
			Message: fmt.Sprintf("AWS authentication/authorization failed: %v", err),
		}
	}

	return fmt.Errorf("AWS Secrets Manager error: %w", err)
}

func toAWSLabel(label secretstore.StageLabel) string {
	if l, ok := awsLabels[label]; ok {
		return l
	}
	return string(label)
}

func fromAWSLabels(awsStages []string) []secretstore.StageLabel {
	out := make([]secretstore.StageLabel, 0, len(awsStages))
	for _, st := range awsStages {
		for label, awsLabel := range awsLabels {
			if st == awsLabel {
				out = append(out, label)
			}
		}
	}
	return out
}

// Error checking utilities

func isNotFoundError(err error) bool {
	var resourceNotFound *types.ResourceNotFoundException
	return errors.As(err, &resourceNotFound)
}

func isAuthError(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "InvalidClientTokenId", "SignatureDoesNotMatch", "AuthFailure", "UnrecognizedClientException",
			"ExpiredToken", "ExpiredTokenException", "InvalidSignatureException", "AccessDeniedException":
			return true
		}
	}
	errStr := err.Error()
	return strings.Contains(errStr, "AccessDenied") ||
		strings.Contains(errStr, "UnauthorizedOperation") ||
		strings.Contains(errStr, "no EC2 IMDS role found") ||
		strings.Contains(errStr, "failed to retrieve credentials")
}
