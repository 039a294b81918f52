package fakes

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

const (
	awsCurrent  = "AWSCURRENT"
	awsPrevious = "AWSPREVIOUS"
	awsPending  = "AWSPENDING"
)

// FakeSecretsManagerClient is a stateful stand-in for the Secrets Manager
// API. It models version stages the way the service does: PutSecretValue is
// idempotent per ClientRequestToken, staging labels are unique per secret and
// moving AWSCURRENT leaves AWSPREVIOUS on the version it came from.
type FakeSecretsManagerClient struct {
	mu sync.Mutex

	// Secrets maps secret names to their data
	Secrets map[string]*SecretData
	// Errors maps operation names ("DescribeSecret", "GetSecretValue",
	// "PutSecretValue", "UpdateSecretVersionStage") to errors to return
	Errors map[string]error

	calls map[string]int
}

// SecretData holds the data for a fake secret
type SecretData struct {
	RotationEnabled bool
	Versions        map[string]*VersionData
}

// VersionData is one version of a fake secret. A version with a nil
// SecretString and no SecretBinary has metadata only.
type VersionData struct {
	SecretString *string
	SecretBinary []byte
	Stages       []string
}

// NewFakeSecretsManagerClient creates a new fake Secrets Manager client
func NewFakeSecretsManagerClient() *FakeSecretsManagerClient {
	return &FakeSecretsManagerClient{
		Secrets: make(map[string]*SecretData),
		Errors:  make(map[string]error),
		calls:   make(map[string]int),
	}
}

// AddSecretString adds a secret whose only version holds AWSCURRENT
func (f *FakeSecretsManagerClient) AddSecretString(name, versionID, value string, rotationEnabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Secrets[name] = &SecretData{
		RotationEnabled: rotationEnabled,
		Versions: map[string]*VersionData{
			versionID: {SecretString: aws.String(value), Stages: []string{awsCurrent}},
		},
	}
}

// BeginRotation registers versionID with AWSPENDING and no value, which is
// what the service does before it invokes the rotation function.
func (f *FakeSecretsManagerClient) BeginRotation(name, versionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.Secrets[name]
	for _, v := range s.Versions {
		v.Stages = without(v.Stages, awsPending)
	}
	s.Versions[versionID] = &VersionData{Stages: []string{awsPending}}
}

// Stages returns the labels of a version, sorted.
func (f *FakeSecretsManagerClient) Stages(name, versionID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.Secrets[name].Versions[versionID]
	if !ok {
		return nil
	}
	out := append([]string{}, v.Stages...)
	sort.Strings(out)
	return out
}

// Value returns the string value of a version.
func (f *FakeSecretsManagerClient) Value(name, versionID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.Secrets[name].Versions[versionID]; ok {
		return aws.ToString(v.SecretString)
	}
	return ""
}

// Calls returns how many times op was invoked
func (f *FakeSecretsManagerClient) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *FakeSecretsManagerClient) begin(op, name string) (*SecretData, error) {
	f.calls[op]++
	if err, ok := f.Errors[op]; ok {
		return nil, err
	}
	s, ok := f.Secrets[name]
	if !ok {
		return nil, &types.ResourceNotFoundException{
			Message: aws.String(fmt.Sprintf("Secrets Manager can't find the specified secret: %s", name)),
		}
	}
	return s, nil
}

// DescribeSecret fakes the DescribeSecret operation. Versions without any
// staging label are omitted, as the service does.
func (f *FakeSecretsManagerClient) DescribeSecret(ctx context.Context, params *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(params.SecretId)
	s, err := f.begin("DescribeSecret", name)
	if err != nil {
		return nil, err
	}

	stages := make(map[string][]string)
	for id, v := range s.Versions {
		if len(v.Stages) > 0 {
			stages[id] = append([]string{}, v.Stages...)
		}
	}
	return &secretsmanager.DescribeSecretOutput{
		ARN:                aws.String("arn:aws:secretsmanager:us-east-1:123456789012:secret:" + name),
		Name:               params.SecretId,
		RotationEnabled:    aws.Bool(s.RotationEnabled),
		VersionIdsToStages: stages,
	}, nil
}

// GetSecretValue fakes the GetSecretValue operation
func (f *FakeSecretsManagerClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(params.SecretId)
	s, err := f.begin("GetSecretValue", name)
	if err != nil {
		return nil, err
	}

	stage := aws.ToString(params.VersionStage)
	if stage == "" && params.VersionId == nil {
		stage = awsCurrent
	}
	for id, v := range s.Versions {
		if params.VersionId != nil && id != aws.ToString(params.VersionId) {
			continue
		}
		if stage != "" && !contains(v.Stages, stage) {
			continue
		}
		if v.SecretString == nil && v.SecretBinary == nil {
			break
		}
		return &secretsmanager.GetSecretValueOutput{
			Name:          params.SecretId,
			VersionId:     aws.String(id),
			SecretString:  v.SecretString,
			SecretBinary:  append([]byte(nil), v.SecretBinary...),
			VersionStages: append([]string{}, v.Stages...),
		}, nil
	}
	return nil, &types.ResourceNotFoundException{
		Message: aws.String("Secrets Manager can't find the specified secret value for staging label: " + stage),
	}
}

// PutSecretValue fakes the PutSecretValue operation
func (f *FakeSecretsManagerClient) PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(params.SecretId)
	s, err := f.begin("PutSecretValue", name)
	if err != nil {
		return nil, err
	}

	id := aws.ToString(params.ClientRequestToken)
	v, ok := s.Versions[id]
	if ok && (v.SecretString != nil || v.SecretBinary != nil) {
		if aws.ToString(v.SecretString) == aws.ToString(params.SecretString) && string(v.SecretBinary) == string(params.SecretBinary) {
			return &secretsmanager.PutSecretValueOutput{VersionId: aws.String(id), VersionStages: v.Stages}, nil
		}
		return nil, &types.ResourceExistsException{
			Message: aws.String("You can't modify an existing version, you can only create a new version."),
		}
	}
	if !ok {
		v = &VersionData{}
		s.Versions[id] = v
	}
	v.SecretString = params.SecretString
	v.SecretBinary = append([]byte(nil), params.SecretBinary...)

	labels := params.VersionStages
	if len(labels) == 0 {
		labels = []string{awsCurrent}
	}
	for _, label := range labels {
		for otherID, other := range s.Versions {
			if otherID == id || !contains(other.Stages, label) {
				continue
			}
			other.Stages = without(other.Stages, label)
			if label == awsCurrent {
				f.markPrevious(s, otherID)
			}
		}
		if !contains(v.Stages, label) {
			v.Stages = append(v.Stages, label)
		}
	}
	return &secretsmanager.PutSecretValueOutput{VersionId: aws.String(id), VersionStages: v.Stages}, nil
}

// UpdateSecretVersionStage fakes the UpdateSecretVersionStage operation
func (f *FakeSecretsManagerClient) UpdateSecretVersionStage(ctx context.Context, params *secretsmanager.UpdateSecretVersionStageInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.UpdateSecretVersionStageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(params.SecretId)
	s, err := f.begin("UpdateSecretVersionStage", name)
	if err != nil {
		return nil, err
	}

	label := aws.ToString(params.VersionStage)
	toID := aws.ToString(params.MoveToVersionId)
	fromID := aws.ToString(params.RemoveFromVersionId)

	var to, from *VersionData
	if fromID != "" {
		if from = s.Versions[fromID]; from == nil || !contains(from.Stages, label) {
			return nil, &types.InvalidParameterException{
				Message: aws.String(fmt.Sprintf("The staging label %s is not attached to version %s.", label, fromID)),
			}
		}
	}
	if toID != "" {
		if to = s.Versions[toID]; to == nil {
			return nil, &types.ResourceNotFoundException{Message: aws.String("version not found: " + toID)}
		}
		for otherID, other := range s.Versions {
			if otherID != toID && otherID != fromID && contains(other.Stages, label) {
				return nil, &types.InvalidParameterException{
					Message: aws.String(fmt.Sprintf("The staging label %s is currently attached to version %s, so you must explicitly reference that version in RemoveFromVersionId.", label, otherID)),
				}
			}
		}
	}

	if from != nil {
		from.Stages = without(from.Stages, label)
		if label == awsCurrent && to != nil {
			f.markPrevious(s, fromID)
		}
	}
	if to != nil && !contains(to.Stages, label) {
		to.Stages = append(to.Stages, label)
	}
	return &secretsmanager.UpdateSecretVersionStageOutput{ARN: aws.String(name), Name: params.SecretId}, nil
}

func (f *FakeSecretsManagerClient) markPrevious(s *SecretData, id string) {
	for _, v := range s.Versions {
		v.Stages = without(v.Stages, awsPrevious)
	}
	s.Versions[id].Stages = append(s.Versions[id].Stages, awsPrevious)
}

// FakeSTSClient answers GetCallerIdentity with a fixed identity
type FakeSTSClient struct {
	Account string
	Arn     string
	Err     error
}

// GetCallerIdentity fakes the GetCallerIdentity operation
func (f *FakeSTSClient) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return &sts.GetCallerIdentityOutput{
		Account: aws.String(f.Account),
		Arn:     aws.String(f.Arn),
		UserId:  aws.String("AIDAFAKE"),
	}, nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func without(list []string, s string) []string {
	out := make([]string, 0, len(list))
	for _, item := range list {
		if item != s {
			out = append(out, item)
		}
	}
	return out
}
