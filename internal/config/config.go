package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	dserrors "github.com/systmms/dsops-rotator/internal/errors"
	"github.com/systmms/dsops-rotator/internal/logging"
)

// DefaultPath is the configuration file looked up when --config is not given.
// A missing default file is not an error; the built-in defaults apply.
const DefaultPath = "rotator.yaml"

// Environment variables that override the file, for deployments such as
// Lambda where shipping a config file is awkward.
const (
	EnvStore          = "DSOPS_ROTATOR_STORE"
	EnvRegion         = "DSOPS_ROTATOR_REGION"
	EnvEndpoint       = "DSOPS_ROTATOR_ENDPOINT"
	EnvTargetPassword = "DSOPS_ROTATOR_TARGET_PASSWORD"
)

// Store types
const (
	StoreAWSSecretsManager = "aws-secretsmanager"
	StoreKeyring           = "keyring"
	StoreMemory            = "memory"
)

// Config holds the runtime configuration
type Config struct {
	Path       string
	Logger     *logging.Logger
	Definition *Definition
}

// Definition represents the rotator.yaml structure
type Definition struct {
	Version   int             `yaml:"version"`
	Store     StoreConfig     `yaml:"store"`
	Generator GeneratorConfig `yaml:"generator,omitempty"`
	Target    TargetConfig    `yaml:"target,omitempty"`
	Metrics   MetricsConfig   `yaml:"metrics,omitempty"`
	Server    ServerConfig    `yaml:"server,omitempty"`
}

// StoreConfig selects and configures the secret store. Options other than
// type and timeout_ms are passed to the store as-is.
type StoreConfig struct {
	Type      string                 `yaml:"type"`
	TimeoutMs int                    `yaml:"timeout_ms,omitempty"`
	Config    map[string]interface{} `yaml:",inline"`
}

// GeneratorConfig selects how createSecret derives the new payload.
type GeneratorConfig struct {
	// Type is "random" (default) or "suffix".
	Type    string `yaml:"type,omitempty"`
	Field   string `yaml:"field,omitempty"`
	Length  int    `yaml:"length,omitempty"`
	Charset string `yaml:"charset,omitempty"`
	Suffix  string `yaml:"suffix,omitempty"`
}

// TargetConfig configures the system setSecret and testSecret talk to.
type TargetConfig struct {
	// Type is "none" (default) or "sql".
	Type       string            `yaml:"type,omitempty"`
	TimeoutMs  int               `yaml:"timeout_ms,omitempty"`
	Connection map[string]string `yaml:"connection,omitempty"`
	Auth       map[string]string `yaml:"auth,omitempty"`
	Commands   map[string]string `yaml:"commands,omitempty"`

	// UsernameField and PasswordField name the payload fields holding the
	// rotated user's credentials.
	UsernameField string `yaml:"username_field,omitempty"`
	PasswordField string `yaml:"password_field,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint served next to the
// rotation endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

// ServerConfig configures the HTTP rotation endpoint.
type ServerConfig struct {
	Addr           string `yaml:"addr,omitempty"`
	ReadTimeoutMs  int    `yaml:"read_timeout_ms,omitempty"`
	WriteTimeoutMs int    `yaml:"write_timeout_ms,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() *Definition {
	def := &Definition{
		Store: StoreConfig{
			Type:   StoreAWSSecretsManager,
			Config: map[string]interface{}{},
		},
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		def.Store.Config["region"] = region
	}
	def.applyDefaults()
	return def
}

// Load reads and parses the rotator.yaml file
func (c *Config) Load() error {
	if c.Path == "" {
		c.Path = DefaultPath
	}

	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			if c.Path == DefaultPath {
				def := Default()
				def.applyEnv()
				c.Definition = def
				return def.Validate()
			}
			return dserrors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: "Check the --config path, or omit it to use the built-in defaults",
			}
		}
		return dserrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return dserrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}

	if def.Version != 0 {
		return dserrors.ConfigError{
			Field:      "version",
			Value:      def.Version,
			Message:    "unsupported configuration version",
			Suggestion: "Set 'version: 0' at the top of your rotator.yaml file",
		}
	}

	if def.Store.Config == nil {
		def.Store.Config = map[string]interface{}{}
	}
	def.applyDefaults()
	def.applyEnv()
	if err := def.Validate(); err != nil {
		return err
	}

	c.Definition = &def
	return nil
}

func (d *Definition) applyDefaults() {
	if d.Store.Type == "" {
		d.Store.Type = StoreAWSSecretsManager
	}
	if d.Generator.Type == "" {
		d.Generator.Type = "random"
	}
	if d.Target.Type == "" {
		d.Target.Type = "none"
	}
	if d.Metrics.Path == "" {
		d.Metrics.Path = "/metrics"
	}
	if d.Server.Addr == "" {
		d.Server.Addr = ":8080"
	}
	if d.Server.ReadTimeoutMs == 0 {
		d.Server.ReadTimeoutMs = 5000
	}
	if d.Server.WriteTimeoutMs == 0 {
		d.Server.WriteTimeoutMs = 120000
	}
}

func (d *Definition) applyEnv() {
	if v := os.Getenv(EnvStore); v != "" {
		d.Store.Type = v
	}
	if v := os.Getenv(EnvRegion); v != "" {
		d.Store.Config["region"] = v
	}
	if v := os.Getenv(EnvEndpoint); v != "" {
		d.Store.Config["endpoint"] = v
	}
	if v := os.Getenv(EnvTargetPassword); v != "" {
		if d.Target.Auth == nil {
			d.Target.Auth = map[string]string{}
		}
		d.Target.Auth["password"] = v
	}
}

// Validate checks the enumerations and required fields.
func (d *Definition) Validate() error {
	switch d.Store.Type {
	case StoreAWSSecretsManager, "aws", StoreKeyring, StoreMemory:
	default:
		return dserrors.ConfigError{
			Field:      "store.type",
			Value:      d.Store.Type,
			Message:    "unsupported store type",
			Suggestion: fmt.Sprintf("Use one of: %s", strings.Join(SupportedStores(), ", ")),
		}
	}

	switch d.Generator.Type {
	case "random", "suffix":
	default:
		return dserrors.ConfigError{
			Field:      "generator.type",
			Value:      d.Generator.Type,
			Message:    "unsupported generator type",
			Suggestion: "Use 'random' or 'suffix'",
		}
	}
	if d.Generator.Length < 0 {
		return dserrors.ConfigError{
			Field:   "generator.length",
			Value:   d.Generator.Length,
			Message: "length must not be negative",
		}
	}

	switch d.Target.Type {
	case "none":
	case "sql":
		for _, field := range []string{"type", "host", "port", "database"} {
			if d.Target.Connection[field] == "" {
				return dserrors.ConfigError{
					Field:      "target.connection." + field,
					Message:    "required connection field is missing",
					Suggestion: "SQL targets need type, host, port and database",
				}
			}
		}
		if d.Target.Auth["username"] == "" {
			return dserrors.ConfigError{
				Field:      "target.auth.username",
				Message:    "username is required in auth configuration",
				Suggestion: "Set the admin user that may change passwords",
			}
		}
	default:
		return dserrors.ConfigError{
			Field:      "target.type",
			Value:      d.Target.Type,
			Message:    "unsupported target type",
			Suggestion: "Use 'none' or 'sql'",
		}
	}

	if !strings.HasPrefix(d.Metrics.Path, "/") || d.Metrics.Path == "/rotate" || d.Metrics.Path == "/health" {
		return dserrors.ConfigError{
			Field:      "metrics.path",
			Value:      d.Metrics.Path,
			Message:    "metrics path must be absolute and must not shadow /rotate or /health",
			Suggestion: "Use the default '/metrics'",
		}
	}

	return nil
}

// SupportedStores lists the accepted store types.
func SupportedStores() []string {
	return []string{StoreAWSSecretsManager, StoreKeyring, StoreMemory}
}

// StoreName returns the configured store name, falling back to its type.
func (s StoreConfig) StoreName() string {
	if name, ok := s.Config["name"].(string); ok && name != "" {
		return name
	}
	return s.Type
}

// GetTimeout returns the store timeout in milliseconds
func (s StoreConfig) GetTimeout() int {
	if s.TimeoutMs <= 0 {
		return 30000 // Default 30 seconds
	}
	return s.TimeoutMs
}

// GetTimeout returns the target timeout in milliseconds
func (t TargetConfig) GetTimeout() int {
	if t.TimeoutMs <= 0 {
		return 30000
	}
	return t.TimeoutMs
}
