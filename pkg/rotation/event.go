package rotation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Event is the JSON document a managed rotation trigger sends.
type Event struct {
	SecretID           string `json:"SecretId"`
	ClientRequestToken string `json:"ClientRequestToken"`
	Step               string `json:"Step"`
}

// The step is not enumerated and may be empty: unknown steps are rejected by
// the orchestrator after its precondition checks.
const eventSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["SecretId", "ClientRequestToken", "Step"],
  "properties": {
    "SecretId": {"type": "string", "minLength": 1},
    "ClientRequestToken": {"type": "string", "minLength": 1},
    "Step": {"type": "string"}
  }
}`

var eventSchemaLoader = gojsonschema.NewStringLoader(eventSchema)

// Request converts the event to an orchestrator request.
func (e Event) Request() Request {
	return Request{
		SecretID:           e.SecretID,
		ClientRequestToken: e.ClientRequestToken,
		Step:               Step(e.Step),
	}
}

// ParseEvent validates data against the event schema and decodes it.
func ParseEvent(data []byte) (Request, error) {
	result, err := gojsonschema.Validate(eventSchemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return Request{}, fmt.Errorf("invalid rotation event: %w", err)
	}
	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return Request{}, fmt.Errorf("invalid rotation event: %s", strings.Join(problems, "; "))
	}

	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return Request{}, fmt.Errorf("invalid rotation event: %w", err)
	}
	return event.Request(), nil
}
