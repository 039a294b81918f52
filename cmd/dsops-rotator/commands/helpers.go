package commands

import (
	"fmt"

	"github.com/systmms/dsops-rotator/internal/config"
	dserrors "github.com/systmms/dsops-rotator/internal/errors"
	"github.com/systmms/dsops-rotator/internal/logging"
	"github.com/systmms/dsops-rotator/internal/metrics"
	"github.com/systmms/dsops-rotator/internal/secretstores"
	"github.com/systmms/dsops-rotator/internal/targets"
	"github.com/systmms/dsops-rotator/pkg/rotation"
	"github.com/systmms/dsops-rotator/pkg/secretstore"
)

// rotator is what every rotation command builds from the configuration.
type rotator struct {
	store        secretstore.Store
	orchestrator *rotation.Orchestrator
	metrics      *metrics.StepMetrics
	logger       *logging.Logger
}

// loadStore loads the configuration and creates the configured store.
func loadStore(cfg *config.Config) (secretstore.Store, error) {
	if err := cfg.Load(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}

	storeCfg := cfg.Definition.Store
	store, err := secretstores.NewRegistry().CreateSecretStore(storeCfg)
	if err != nil {
		return nil, dserrors.StoreError(storeCfg.StoreName(), "setup", err)
	}
	cfg.Logger.Debug("using %s store %s", storeCfg.Type, store.Name())
	return store, nil
}

func newRotator(cfg *config.Config) (*rotator, error) {
	store, err := loadStore(cfg)
	if err != nil {
		return nil, err
	}
	def := cfg.Definition

	generator, err := newGenerator(def.Generator)
	if err != nil {
		return nil, err
	}
	applier, verifier, err := newTarget(def.Target)
	if err != nil {
		return nil, err
	}

	opts := []rotation.Option{
		rotation.WithGenerator(generator),
		rotation.WithApplier(applier),
		rotation.WithVerifier(verifier),
		rotation.WithLogger(cfg.Logger),
	}

	r := &rotator{store: store, logger: cfg.Logger}
	if def.Metrics.Enabled {
		metrics.InitMetrics()
		r.metrics = metrics.NewStepMetrics(store.Name())
		opts = append(opts, rotation.WithRecorder(r.metrics))
	}
	r.orchestrator = rotation.New(store, opts...)
	return r, nil
}

func (r *rotator) recordRotation(err error) {
	if r.metrics != nil {
		r.metrics.RecordRotation(err)
	}
}

// starter returns the store as a Starter, or a user error naming the
// managed service that registers tokens instead.
func (r *rotator) starter(secretID string) (secretstore.Starter, error) {
	starter, ok := r.store.(secretstore.Starter)
	if !ok {
		return nil, dserrors.UserError{
			Message:    fmt.Sprintf("Store %s registers rotation tokens itself", r.store.Name()),
			Details:    "Rotations of this store are started by its managed rotation service, which then calls the rotator once per step",
			Suggestion: fmt.Sprintf("Start the rotation with the service, e.g. 'aws secretsmanager rotate-secret --secret-id %s'", secretID),
		}
	}
	return starter, nil
}

func newGenerator(cfg config.GeneratorConfig) (rotation.Generator, error) {
	switch cfg.Type {
	case "", "random":
		return &rotation.PasswordGenerator{Field: cfg.Field, Length: cfg.Length, Charset: cfg.Charset}, nil
	case "suffix":
		return &rotation.SuffixGenerator{Field: cfg.Field, Suffix: cfg.Suffix}, nil
	default:
		return nil, dserrors.ConfigError{
			Field:      "generator.type",
			Value:      cfg.Type,
			Message:    "unknown generator type",
			Suggestion: "Use 'random' or 'suffix'",
		}
	}
}

func newTarget(cfg config.TargetConfig) (rotation.CredentialApplier, rotation.CredentialVerifier, error) {
	switch cfg.Type {
	case "", "none":
		return rotation.NoopApplier{}, rotation.NoopVerifier{}, nil
	case "sql":
		target, err := targets.NewSQLTarget(cfg)
		if err != nil {
			return nil, nil, dserrors.ConfigError{
				Field:      "target",
				Message:    err.Error(),
				Suggestion: "Check target.connection and target.commands",
			}
		}
		return target, target, nil
	default:
		return nil, nil, dserrors.ConfigError{
			Field:      "target.type",
			Value:      cfg.Type,
			Message:    "unknown target type",
			Suggestion: "Use 'none' or 'sql'",
		}
	}
}

// storeFailure attaches store suggestions to failures the store raised.
// Rotation protocol errors pass through for dserrors.Explain.
func storeFailure(cfg *config.Config, operation string, err error) error {
	if secretstore.IsNotFound(err) || secretstore.IsAuth(err) {
		return dserrors.StoreError(cfg.Definition.Store.Type, operation, err)
	}
	return err
}
