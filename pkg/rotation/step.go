package rotation

// Step names one phase of the rotation protocol.
type Step string

const (
	StepCreate Step = "createSecret"
	StepSet    Step = "setSecret"
	StepTest   Step = "testSecret"
	StepFinish Step = "finishSecret"
)

// Steps returns the four steps in the order a trigger must call them.
func Steps() []Step {
	return []Step{StepCreate, StepSet, StepTest, StepFinish}
}

// Valid reports whether s is one of the four known steps.
func (s Step) Valid() bool {
	switch s {
	case StepCreate, StepSet, StepTest, StepFinish:
		return true
	}
	return false
}

func (s Step) String() string {
	return string(s)
}

// Request is one invocation of the rotation protocol. It is never persisted.
type Request struct {
	// SecretID identifies the secret being rotated.
	SecretID string

	// ClientRequestToken is the idempotency key. It must equal the version
	// token of the version being created or promoted.
	ClientRequestToken string

	// Step selects the handler.
	Step Step
}
