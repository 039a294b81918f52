// Package testutil provides test utilities and helpers for dsops-rotator tests.
//
// This package contains shared test infrastructure: a configuration builder
// that writes rotator.yaml files and a logger that captures output.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/systmms/dsops-rotator/internal/config"
	"github.com/systmms/dsops-rotator/internal/logging"
)

// TestConfigBuilder provides a fluent API for building test configurations.
//
// Example usage:
//
//	cfg := testutil.NewTestConfig(t).
//	    WithKeyringStore().
//	    WithGenerator(config.GeneratorConfig{Type: "suffix", Suffix: "-next"}).
//	    Config()
type TestConfigBuilder struct {
	def     *config.Definition
	tempDir string
	t       *testing.T
}

// NewTestConfig creates a new TestConfigBuilder.
//
// The builder starts from an in-memory store with no secrets.
func NewTestConfig(t *testing.T) *TestConfigBuilder {
	t.Helper()

	return &TestConfigBuilder{
		def: &config.Definition{
			Store: config.StoreConfig{
				Type:   config.StoreMemory,
				Config: map[string]interface{}{},
			},
		},
		tempDir: t.TempDir(),
		t:       t,
	}
}

// WithStore replaces the store configuration.
func (b *TestConfigBuilder) WithStore(storeType string, cfg map[string]interface{}) *TestConfigBuilder {
	if cfg == nil {
		cfg = map[string]interface{}{}
	}
	b.def.Store = config.StoreConfig{Type: storeType, Config: cfg}
	return b
}

// WithKeyringStore selects the keyring store under a service name private
// to the test, so tests sharing the keyring mock never see each other's
// secrets.
func (b *TestConfigBuilder) WithKeyringStore() *TestConfigBuilder {
	return b.WithStore(config.StoreKeyring, map[string]interface{}{"service": b.KeyringService()})
}

// KeyringService returns the keyring service name WithKeyringStore uses.
func (b *TestConfigBuilder) KeyringService() string {
	return "dsops-rotator-test-" + strings.ReplaceAll(b.t.Name(), "/", "-")
}

// WithMemorySecret seeds the in-memory store with one CURRENT version.
func (b *TestConfigBuilder) WithMemorySecret(secretID, payload string) *TestConfigBuilder {
	secrets, _ := b.def.Store.Config["secrets"].(map[string]interface{})
	if secrets == nil {
		secrets = map[string]interface{}{}
		b.def.Store.Config["secrets"] = secrets
	}
	secrets[secretID] = payload
	return b
}

// WithGenerator sets the generator configuration.
func (b *TestConfigBuilder) WithGenerator(gen config.GeneratorConfig) *TestConfigBuilder {
	b.def.Generator = gen
	return b
}

// WithTarget sets the target configuration.
func (b *TestConfigBuilder) WithTarget(target config.TargetConfig) *TestConfigBuilder {
	b.def.Target = target
	return b
}

// Build returns the configuration Definition.
func (b *TestConfigBuilder) Build() *config.Definition {
	return b.def
}

// Write writes the configuration to a temporary rotator.yaml and returns
// its path. The file is removed by the testing framework.
func (b *TestConfigBuilder) Write() string {
	b.t.Helper()

	data, err := yaml.Marshal(b.def)
	if err != nil {
		b.t.Fatalf("Failed to marshal test config: %v", err)
	}

	path := filepath.Join(b.tempDir, config.DefaultPath)
	if err := os.WriteFile(path, data, 0600); err != nil {
		b.t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

// Config writes the configuration and returns a config.Config pointing at
// it, with a logger that discards output.
func (b *TestConfigBuilder) Config() *config.Config {
	b.t.Helper()

	return &config.Config{Path: b.Write(), Logger: logging.Discard()}
}
