package secretstores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/zalando/go-keyring"

	"github.com/systmms/dsops-rotator/pkg/secretstore"
)

// DefaultKeyringService is the keyring service name entries are stored under.
const DefaultKeyringService = "dsops-rotator"

// KeyringStore keeps every secret as one JSON document in the OS keyring
// (macOS Keychain, Secret Service, Windows Credential Manager). Updates are
// read-modify-write under a process-wide lock, so label moves are atomic for
// a single rotator process only.
type KeyringStore struct {
	name    string
	service string
	mu      sync.Mutex
}

type keyringDocument struct {
	RotationEnabled bool             `json:"rotation_enabled"`
	Versions        []keyringVersion `json:"versions"`
}

type keyringVersion struct {
	Token   string                   `json:"token"`
	Payload []byte                   `json:"payload,omitempty"`
	Written bool                     `json:"written"`
	Stages  []secretstore.StageLabel `json:"stages"`
}

// NewKeyringStore creates a keyring store. The "service" option overrides
// DefaultKeyringService.
func NewKeyringStore(name string, storeConfig map[string]interface{}) *KeyringStore {
	service := DefaultKeyringService
	if s, ok := storeConfig["service"].(string); ok && s != "" {
		service = s
	}
	return &KeyringStore{name: name, service: service}
}

// Name returns the store name
func (k *KeyringStore) Name() string {
	return k.name
}

// Seed creates or replaces a secret with a single CURRENT version.
func (k *KeyringStore) Seed(ctx context.Context, secretID, token string, payload []byte, rotationEnabled bool) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	doc := &keyringDocument{
		RotationEnabled: rotationEnabled,
		Versions: []keyringVersion{{
			Token:   token,
			Payload: payload,
			Written: true,
			Stages:  []secretstore.StageLabel{secretstore.StageCurrent},
		}},
	}
	return k.save(secretID, doc)
}

// Delete removes a secret and all its versions.
func (k *KeyringStore) Delete(ctx context.Context, secretID string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := keyring.Delete(k.service, secretID); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return secretstore.NotFoundError{Store: k.name, SecretID: secretID}
		}
		return fmt.Errorf("keyring error: %w", err)
	}
	return nil
}

// Describe implements secretstore.Store.
func (k *KeyringStore) Describe(ctx context.Context, secretID string) (secretstore.Description, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	doc, err := k.load(secretID)
	if err != nil {
		return secretstore.Description{}, err
	}
	stages := make(map[string][]secretstore.StageLabel, len(doc.Versions))
	for _, v := range doc.Versions {
		stages[v.Token] = append([]secretstore.StageLabel{}, v.Stages...)
	}
	return secretstore.Description{RotationEnabled: doc.RotationEnabled, VersionStages: stages}, nil
}

// GetVersion implements secretstore.Store.
func (k *KeyringStore) GetVersion(ctx context.Context, secretID string, label secretstore.StageLabel) (secretstore.Version, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	doc, err := k.load(secretID)
	if err != nil {
		return secretstore.Version{}, err
	}
	for _, v := range doc.Versions {
		if v.Written && secretstore.HasStage(v.Stages, label) {
			return secretstore.Version{Token: v.Token, Payload: v.Payload, Stages: v.Stages}, nil
		}
	}
	return secretstore.Version{}, secretstore.NotFoundError{Store: k.name, SecretID: secretID, Label: label}
}

// PutVersion implements secretstore.Store.
func (k *KeyringStore) PutVersion(ctx context.Context, secretID, token string, payload []byte, labels []secretstore.StageLabel) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	doc, err := k.load(secretID)
	if err != nil {
		return err
	}

	v := doc.version(token)
	if v != nil && v.Written {
		return nil
	}
	if v == nil {
		doc.Versions = append(doc.Versions, keyringVersion{Token: token})
		v = &doc.Versions[len(doc.Versions)-1]
	}
	v.Payload = append([]byte(nil), payload...)
	v.Written = true

	for _, label := range labels {
		for i := range doc.Versions {
			if doc.Versions[i].Token != token {
				doc.Versions[i].Stages = withoutStage(doc.Versions[i].Stages, label)
			}
		}
		if !secretstore.HasStage(v.Stages, label) {
			v.Stages = append(v.Stages, label)
		}
	}
	return k.save(secretID, doc)
}

// MoveStageLabel implements secretstore.Store.
func (k *KeyringStore) MoveStageLabel(ctx context.Context, secretID string, label secretstore.StageLabel, toToken, fromToken string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if toToken == "" && fromToken == "" {
		return fmt.Errorf("store %s: move of %s needs a source or a target version", k.name, label)
	}
	doc, err := k.load(secretID)
	if err != nil {
		return err
	}

	var to, from *keyringVersion
	if toToken != "" {
		if to = doc.version(toToken); to == nil {
			return fmt.Errorf("store %s: version %s of secret %s does not exist", k.name, toToken, secretID)
		}
	}
	if fromToken != "" {
		if from = doc.version(fromToken); from == nil {
			return fmt.Errorf("store %s: version %s of secret %s does not exist", k.name, fromToken, secretID)
		}
		if !secretstore.HasStage(from.Stages, label) {
			return fmt.Errorf("store %s: version %s does not hold %s", k.name, fromToken, label)
		}
	}
	if to != nil {
		for _, v := range doc.Versions {
			if v.Token != toToken && v.Token != fromToken && secretstore.HasStage(v.Stages, label) {
				return fmt.Errorf("store %s: %s is held by version %s, which must be named as the source", k.name, label, v.Token)
			}
		}
	}

	if from != nil {
		from.Stages = withoutStage(from.Stages, label)
	}
	if to != nil && !secretstore.HasStage(to.Stages, label) {
		to.Stages = append(to.Stages, label)
	}
	return k.save(secretID, doc)
}

// StartRotation implements secretstore.Starter.
func (k *KeyringStore) StartRotation(ctx context.Context, secretID, token string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	doc, err := k.load(secretID)
	if err != nil {
		return err
	}
	if doc.version(token) != nil {
		return nil
	}
	doc.Versions = append(doc.Versions, keyringVersion{Token: token, Stages: []secretstore.StageLabel{}})
	return k.save(secretID, doc)
}

func (k *KeyringStore) load(secretID string) (*keyringDocument, error) {
	raw, err := keyring.Get(k.service, secretID)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, secretstore.NotFoundError{Store: k.name, SecretID: secretID}
		}
		return nil, fmt.Errorf("keyring error: %w", err)
	}
	var doc keyringDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("store %s: entry for %s is not a rotator document", k.name, secretID)
	}
	return &doc, nil
}

func (k *KeyringStore) save(secretID string, doc *keyringDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode keyring entry: %w", err)
	}
	if err := keyring.Set(k.service, secretID, string(data)); err != nil {
		return fmt.Errorf("keyring error: %w", err)
	}
	return nil
}

func (d *keyringDocument) version(token string) *keyringVersion {
	for i := range d.Versions {
		if d.Versions[i].Token == token {
			return &d.Versions[i]
		}
	}
	return nil
}

func withoutStage(stages []secretstore.StageLabel, label secretstore.StageLabel) []secretstore.StageLabel {
	out := make([]secretstore.StageLabel, 0, len(stages))
	for _, s := range stages {
		if s != label {
			out = append(out, s)
		}
	}
	return out
}
