// Package secretstore defines the storage contract the rotation orchestrator
// runs against.
//
// A secret is a named credential with a rotation flag and a set of versions.
// Each version is an immutable payload identified by a version token (the
// idempotency token supplied by the rotation trigger) and tagged with stage
// labels:
//
//	CURRENT   the active credential, held by exactly one version
//	PENDING   the replacement being rotated in, held by at most one version
//	PREVIOUS  the version displaced by the last completed rotation
//
// The orchestrator only reads metadata, appends versions and moves labels.
// It never creates or deletes secrets. Stores must make MoveStageLabel atomic
// so that no reader ever observes two CURRENT versions or none.
//
// # Implementations
//
//   - MemoryStore in this package, for tests and local demos
//   - internal/secretstores: AWS Secrets Manager and the OS keyring
//
// # Errors
//
// Stores return NotFoundError when a secret or label is missing and
// AuthError when credentials are rejected. Everything else is wrapped
// with the store name and returned as is.
//
// Stores must never log payloads.
package secretstore
