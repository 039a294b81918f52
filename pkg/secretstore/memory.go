package secretstore

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-process Store. It serialises every operation with a
// mutex, which makes MoveStageLabel trivially atomic. Operation counts are
// recorded so tests can assert how often the store was contacted.
type MemoryStore struct {
	name    string
	mu      sync.Mutex
	secrets map[string]*memorySecret
	calls   map[string]int
}

type memorySecret struct {
	rotationEnabled bool
	order           []string
	versions        map[string]*memoryVersion
}

type memoryVersion struct {
	payload []byte
	written bool
	stages  []StageLabel
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(name string) *MemoryStore {
	if name == "" {
		name = "memory"
	}
	return &MemoryStore{
		name:    name,
		secrets: make(map[string]*memorySecret),
		calls:   make(map[string]int),
	}
}

// Name returns the store name.
func (m *MemoryStore) Name() string {
	return m.name
}

// AddSecret creates or replaces a secret with no versions.
func (m *MemoryStore) AddSecret(secretID string, rotationEnabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[secretID] = &memorySecret{
		rotationEnabled: rotationEnabled,
		versions:        make(map[string]*memoryVersion),
	}
}

// AddVersion seeds a version directly, bypassing label invariants.
// It creates the secret with rotation enabled if it does not exist.
func (m *MemoryStore) AddVersion(secretID, token string, payload []byte, stages ...StageLabel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.secrets[secretID]
	if !ok {
		s = &memorySecret{rotationEnabled: true, versions: make(map[string]*memoryVersion)}
		m.secrets[secretID] = s
	}
	if _, exists := s.versions[token]; !exists {
		s.order = append(s.order, token)
	}
	s.versions[token] = &memoryVersion{
		payload: append([]byte(nil), payload...),
		written: payload != nil,
		stages:  append([]StageLabel{}, stages...),
	}
}

// Payload returns a copy of the payload stored under token.
func (m *MemoryStore) Payload(secretID, token string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.secrets[secretID]
	if !ok {
		return nil, false
	}
	v, ok := s.versions[token]
	if !ok || !v.written {
		return nil, false
	}
	return append([]byte(nil), v.payload...), true
}

// Calls returns how many times op was invoked. Writes that were absorbed by
// an existing payload are counted under "PutVersion.noop".
func (m *MemoryStore) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// Describe implements Store.
func (m *MemoryStore) Describe(ctx context.Context, secretID string) (Description, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["Describe"]++

	s, err := m.secret(secretID)
	if err != nil {
		return Description{}, err
	}
	stages := make(map[string][]StageLabel, len(s.versions))
	for token, v := range s.versions {
		stages[token] = append([]StageLabel{}, v.stages...)
	}
	return Description{RotationEnabled: s.rotationEnabled, VersionStages: stages}, nil
}

// GetVersion implements Store.
func (m *MemoryStore) GetVersion(ctx context.Context, secretID string, label StageLabel) (Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["GetVersion"]++

	s, err := m.secret(secretID)
	if err != nil {
		return Version{}, err
	}
	for _, token := range s.order {
		v := s.versions[token]
		if v.written && HasStage(v.stages, label) {
			return Version{
				Token:   token,
				Payload: append([]byte(nil), v.payload...),
				Stages:  append([]StageLabel{}, v.stages...),
			}, nil
		}
	}
	return Version{}, NotFoundError{Store: m.name, SecretID: secretID, Label: label}
}

// PutVersion implements Store. Labels given here are moved off any other
// version that holds them.
func (m *MemoryStore) PutVersion(ctx context.Context, secretID, token string, payload []byte, labels []StageLabel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["PutVersion"]++

	s, err := m.secret(secretID)
	if err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("store %s: version token is required", m.name)
	}

	v, ok := s.versions[token]
	if ok && v.written {
		m.calls["PutVersion.noop"]++
		return nil
	}
	if !ok {
		v = &memoryVersion{}
		s.versions[token] = v
		s.order = append(s.order, token)
	}
	v.payload = append([]byte(nil), payload...)
	v.written = true

	for _, label := range labels {
		for other, ov := range s.versions {
			if other != token {
				ov.stages = removeStage(ov.stages, label)
			}
		}
		if !HasStage(v.stages, label) {
			v.stages = append(v.stages, label)
		}
	}
	return nil
}

// MoveStageLabel implements Store.
func (m *MemoryStore) MoveStageLabel(ctx context.Context, secretID string, label StageLabel, toToken, fromToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["MoveStageLabel"]++

	s, err := m.secret(secretID)
	if err != nil {
		return err
	}
	if toToken == "" && fromToken == "" {
		return fmt.Errorf("store %s: move of %s needs a source or a target version", m.name, label)
	}

	var to, from *memoryVersion
	if toToken != "" {
		if to = s.versions[toToken]; to == nil {
			return fmt.Errorf("store %s: version %s of secret %s does not exist", m.name, toToken, secretID)
		}
	}
	if fromToken != "" {
		if from = s.versions[fromToken]; from == nil {
			return fmt.Errorf("store %s: version %s of secret %s does not exist", m.name, fromToken, secretID)
		}
		if !HasStage(from.stages, label) {
			return fmt.Errorf("store %s: version %s does not hold %s", m.name, fromToken, label)
		}
	}
	if to != nil {
		for token, v := range s.versions {
			if token != toToken && token != fromToken && HasStage(v.stages, label) {
				return fmt.Errorf("store %s: %s is held by version %s, which must be named as the source", m.name, label, token)
			}
		}
	}

	if from != nil {
		from.stages = removeStage(from.stages, label)
	}
	if to != nil && !HasStage(to.stages, label) {
		to.stages = append(to.stages, label)
	}
	return nil
}

// StartRotation implements Starter by registering token with no labels.
func (m *MemoryStore) StartRotation(ctx context.Context, secretID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["StartRotation"]++

	s, err := m.secret(secretID)
	if err != nil {
		return err
	}
	if _, ok := s.versions[token]; ok {
		return nil
	}
	s.versions[token] = &memoryVersion{stages: []StageLabel{}}
	s.order = append(s.order, token)
	return nil
}

func (m *MemoryStore) secret(secretID string) (*memorySecret, error) {
	s, ok := m.secrets[secretID]
	if !ok {
		return nil, NotFoundError{Store: m.name, SecretID: secretID}
	}
	return s, nil
}

func removeStage(stages []StageLabel, label StageLabel) []StageLabel {
	out := stages[:0]
	for _, s := range stages {
		if s != label {
			out = append(out, s)
		}
	}
	return out
}
