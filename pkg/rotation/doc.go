// Package rotation implements the four-step rotation protocol a secret
// management service drives to replace a credential without downtime.
//
// # Protocol
//
// A rotation trigger (a managed service, the local Trigger, or an operator
// running the CLI) calls Orchestrator.Handle once per step, in order, with
// the same client request token:
//
//	createSecret   derive a new credential from CURRENT and store it as PENDING
//	setSecret      push the PENDING credential to the system that consumes it
//	testSecret     prove the PENDING credential works against that system
//	finishSecret   atomically move CURRENT onto the PENDING version
//
// The trigger must not advance until the previous step succeeds. Steps may be
// retried and delivered more than once, so every step is idempotent.
//
// # Preconditions
//
// Before any step runs, Handle checks, in order:
//
//  1. the secret has rotation enabled (ErrSecretNotRotatable)
//  2. the token names a known version that is not already CURRENT (ErrInvalidToken)
//  3. the step is one of the four above (ErrUnknownStep)
//
// The orchestrator is the only place these checks happen; step handlers can
// assume they hold.
//
// # Hooks
//
// The credential format and the downstream system are not fixed here. They
// are supplied as interfaces:
//
//   - Generator derives the PENDING payload from the CURRENT payload
//   - CredentialApplier configures the consumer with the PENDING payload
//   - CredentialVerifier checks the PENDING payload works
//
// The defaults are PasswordGenerator, NoopApplier and NoopVerifier.
//
// # Usage
//
//	store := secretstore.NewMemoryStore("local")
//	orch := rotation.New(store,
//	    rotation.WithLogger(logger),
//	    rotation.WithApplier(target),
//	    rotation.WithVerifier(target),
//	)
//
//	err := orch.Handle(ctx, rotation.Request{
//	    SecretID:           "prod/db/app",
//	    ClientRequestToken: token,
//	    Step:               rotation.StepCreate,
//	})
//
// # Errors
//
// Precondition failures are returned as wrapped sentinels and are terminal
// for the invocation. Failures inside a step are returned as *StepError,
// which names the step and unwraps to the cause. Payloads never appear in
// errors or logs.
package rotation
