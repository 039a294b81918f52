package secretstores

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/systmms/dsops-rotator/internal/config"
	dserrors "github.com/systmms/dsops-rotator/internal/errors"
	"github.com/systmms/dsops-rotator/pkg/secretstore"
)

// Factory creates a store from its configuration.
type Factory func(name string, cfg config.StoreConfig) (secretstore.Store, error)

// Seeder is implemented by stores whose secrets the rotator itself creates.
type Seeder interface {
	Seed(ctx context.Context, secretID, token string, payload []byte, rotationEnabled bool) error
}

// Registry manages secret store creation
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates a new secret store registry with the built-in stores
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}

	r.Register(config.StoreAWSSecretsManager, newAWSStore)
	r.Register("aws", newAWSStore)
	r.Register(config.StoreKeyring, func(name string, cfg config.StoreConfig) (secretstore.Store, error) {
		return NewKeyringStore(name, cfg.Config), nil
	})
	r.Register(config.StoreMemory, newMemoryStore)

	return r
}

// Register adds or replaces the factory for a store type
func (r *Registry) Register(storeType string, f Factory) {
	r.factories[storeType] = f
}

// CreateSecretStore creates a secret store instance from configuration
func (r *Registry) CreateSecretStore(cfg config.StoreConfig) (secretstore.Store, error) {
	f, ok := r.factories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown secret store type: %s", cfg.Type)
	}
	return f(cfg.StoreName(), cfg)
}

// GetSupportedTypes returns the supported secret store types, sorted
func (r *Registry) GetSupportedTypes() []string {
	types := make([]string, 0, len(r.factories))
	for storeType := range r.factories {
		types = append(types, storeType)
	}
	sort.Strings(types)
	return types
}

// IsSupported checks if a secret store type is supported
func (r *Registry) IsSupported(storeType string) bool {
	_, ok := r.factories[storeType]
	return ok
}

func newAWSStore(name string, cfg config.StoreConfig) (secretstore.Store, error) {
	return NewAWSSecretsManagerStore(name, cfg.Config,
		WithTimeout(time.Duration(cfg.GetTimeout())*time.Millisecond))
}

// newMemoryStore seeds one CURRENT version per entry of the "secrets" option.
// A memory-backed server registers tokens for them through POST /start.
func newMemoryStore(name string, cfg config.StoreConfig) (secretstore.Store, error) {
	store := secretstore.NewMemoryStore(name)
	seeds, _ := cfg.Config["secrets"].(map[string]interface{})
	for id, value := range seeds {
		payload, ok := value.(string)
		if !ok {
			return nil, dserrors.ConfigError{
				Field:      "store.secrets." + id,
				Message:    "seed value must be a string",
				Suggestion: "Quote the JSON payload, e.g. '{\"password\":\"x\"}'",
			}
		}
		store.AddVersion(id, "initial", []byte(payload), secretstore.StageCurrent)
	}
	return store, nil
}
