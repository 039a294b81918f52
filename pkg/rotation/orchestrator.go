package rotation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/systmms/dsops-rotator/internal/logging"
	"github.com/systmms/dsops-rotator/internal/secure"
	"github.com/systmms/dsops-rotator/pkg/secretstore"
)

// Orchestrator validates rotation requests and dispatches them to the step
// handlers. It keeps no state between calls.
type Orchestrator struct {
	store     secretstore.Store
	generator Generator
	applier   CredentialApplier
	verifier  CredentialVerifier
	recorder  Recorder
	logger    *logging.Logger
	now       func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithGenerator sets the strategy createSecret uses to derive new payloads.
func WithGenerator(g Generator) Option {
	return func(o *Orchestrator) {
		o.generator = g
	}
}

// WithApplier sets the hook setSecret calls.
func WithApplier(a CredentialApplier) Option {
	return func(o *Orchestrator) {
		o.applier = a
	}
}

// WithVerifier sets the hook testSecret calls.
func WithVerifier(v CredentialVerifier) Option {
	return func(o *Orchestrator) {
		o.verifier = v
	}
}

// WithRecorder sets the metrics sink.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// New creates an orchestrator over store.
func New(store secretstore.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:     store,
		generator: NewPasswordGenerator(),
		applier:   NoopApplier{},
		verifier:  NoopVerifier{},
		recorder:  noopRecorder{},
		logger:    logging.Discard(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Handle runs one step of the rotation protocol. It is the single point
// where failures are logged; callers receive the error unchanged.
func (o *Orchestrator) Handle(ctx context.Context, req Request) error {
	log := o.logger.
		With("secret", req.SecretID).
		With("step", req.Step).
		With("token", req.ClientRequestToken)

	start := o.now()
	err := o.handle(ctx, req, log)
	o.recorder.ObserveStep(req.Step.String(), Outcome(err), o.now().Sub(start))

	if err != nil {
		log.Error("rotation step failed: %v", err)
		return err
	}
	log.Info("rotation step completed")
	return nil
}

func (o *Orchestrator) handle(ctx context.Context, req Request, log *logging.Logger) error {
	desc, err := o.store.Describe(ctx, req.SecretID)
	if err != nil {
		return fmt.Errorf("failed to describe secret %s: %w", req.SecretID, err)
	}
	if !desc.RotationEnabled {
		return fmt.Errorf("%w: %s", ErrSecretNotRotatable, req.SecretID)
	}

	token := req.ClientRequestToken
	if !desc.HasToken(token) {
		return fmt.Errorf("%w: version %q is not registered for secret %s", ErrInvalidToken, token, req.SecretID)
	}
	if desc.TokenHas(token, secretstore.StageCurrent) {
		return fmt.Errorf("%w: version %q of secret %s is already %s", ErrInvalidToken, token, req.SecretID, secretstore.StageCurrent)
	}

	log.Debug("preconditions passed")

	switch req.Step {
	case StepCreate:
		err = o.createSecret(ctx, req.SecretID, token, log)
	case StepSet:
		err = o.setSecret(ctx, req.SecretID, token, log)
	case StepTest:
		err = o.testSecret(ctx, req.SecretID, token, log)
	case StepFinish:
		err = o.finishSecret(ctx, req.SecretID, token, log)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStep, string(req.Step))
	}
	if err != nil {
		return &StepError{Step: req.Step, Err: err}
	}
	return nil
}

// createSecret writes a PENDING version derived from CURRENT. Duplicate
// invocations are absorbed by the store's write-if-absent semantics.
func (o *Orchestrator) createSecret(ctx context.Context, secretID, token string, log *logging.Logger) error {
	current, err := o.store.GetVersion(ctx, secretID, secretstore.StageCurrent)
	if err != nil {
		return fmt.Errorf("failed to read %s version: %w", secretstore.StageCurrent, err)
	}

	sealed := secure.Seal(current.Payload)
	defer sealed.Destroy()

	var next []byte
	err = sealed.Use(func(plaintext []byte) error {
		var genErr error
		next, genErr = o.generator.Generate(ctx, plaintext)
		return genErr
	})
	if err != nil {
		return fmt.Errorf("failed to generate new credential: %w", err)
	}
	defer secure.Wipe(next)

	if err := o.store.PutVersion(ctx, secretID, token, next, []secretstore.StageLabel{secretstore.StagePending}); err != nil {
		return fmt.Errorf("failed to store %s version: %w", secretstore.StagePending, err)
	}

	log.Info("stored %s version derived from %s", secretstore.StagePending, current.Token)
	return nil
}

func (o *Orchestrator) setSecret(ctx context.Context, secretID, token string, log *logging.Logger) error {
	pending, err := o.pendingPayload(ctx, secretID, token)
	if err != nil {
		return err
	}
	defer pending.Destroy()

	err = pending.Use(func(plaintext []byte) error {
		return o.applier.Apply(ctx, secretID, plaintext)
	})
	if err != nil {
		return fmt.Errorf("failed to apply %s credential: %w", secretstore.StagePending, err)
	}

	log.Info("applied %s credential to target", secretstore.StagePending)
	return nil
}

func (o *Orchestrator) testSecret(ctx context.Context, secretID, token string, log *logging.Logger) error {
	pending, err := o.pendingPayload(ctx, secretID, token)
	if err != nil {
		return err
	}
	defer pending.Destroy()

	err = pending.Use(func(plaintext []byte) error {
		return o.verifier.Verify(ctx, secretID, plaintext)
	})
	if err != nil {
		if errors.Is(err, ErrVerificationFailed) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}

	log.Info("verified %s credential against target", secretstore.StagePending)
	return nil
}

// finishSecret promotes the token's version to CURRENT in one atomic label
// move, then detaches PENDING from it. Once CURRENT has moved the step
// succeeds even if the detach fails.
func (o *Orchestrator) finishSecret(ctx context.Context, secretID, token string, log *logging.Logger) error {
	desc, err := o.store.Describe(ctx, secretID)
	if err != nil {
		return fmt.Errorf("failed to re-read version stages: %w", err)
	}
	if !desc.TokenHas(token, secretstore.StagePending) {
		return fmt.Errorf("%w: version %q does not hold %s", ErrInvalidToken, token, secretstore.StagePending)
	}

	current, ok := desc.Holder(secretstore.StageCurrent)
	if !ok {
		return fmt.Errorf("%w: no version of secret %s holds %s", ErrInconsistentStageState, secretID, secretstore.StageCurrent)
	}
	if current == token {
		return fmt.Errorf("%w: version %q is already %s", ErrInvalidToken, token, secretstore.StageCurrent)
	}

	if err := o.store.MoveStageLabel(ctx, secretID, secretstore.StageCurrent, token, current); err != nil {
		return fmt.Errorf("failed to move %s from %s: %w", secretstore.StageCurrent, current, err)
	}
	log.Info("moved %s from version %s", secretstore.StageCurrent, current)

	// The promotion is the step's result. A PENDING label left on the new
	// CURRENT version is replaced by the next createSecret.
	if err := o.store.MoveStageLabel(ctx, secretID, secretstore.StagePending, "", token); err != nil {
		log.Warn("failed to detach %s from version %s: %v", secretstore.StagePending, token, err)
	}
	return nil
}

// pendingPayload reads the PENDING version, checks it belongs to token and
// seals its payload.
func (o *Orchestrator) pendingPayload(ctx context.Context, secretID, token string) (*secure.Payload, error) {
	pending, err := o.store.GetVersion(ctx, secretID, secretstore.StagePending)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s version: %w", secretstore.StagePending, err)
	}
	if pending.Token != token {
		secure.Wipe(pending.Payload)
		return nil, fmt.Errorf("%w: %s is held by version %q", ErrInvalidToken, secretstore.StagePending, pending.Token)
	}
	return secure.Seal(pending.Payload), nil
}
