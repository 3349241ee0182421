package agent

import (
	"encoding/json"
	"fmt"
)

// Params are the command fields sent alongside id and action.
type Params map[string]any

// Reply is a correlated response from the Agent.
type Reply struct {
	ID    int64
	OK    bool
	Error string

	raw json.RawMessage
}

// Decode unmarshals the full reply body into v.
func (r Reply) Decode(v any) error {
	if len(r.raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.raw, v); err != nil {
		return fmt.Errorf("decoding reply %d: %w", r.ID, err)
	}
	return nil
}

// Event is an unsolicited message (one without an id).
type Event struct {
	Type string
	Raw  json.RawMessage
}

// envelope is the minimal view of an incoming message.
type envelope struct {
	ID    *int64 `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	Event string `json:"event"`
	Type  string `json:"type"`
}

// encodeCommand builds {id, action, ...params}. id and action always win
// over params of the same name.
func encodeCommand(id int64, action string, params Params) ([]byte, error) {
	msg := make(map[string]any, len(params)+2)
	for k, v := range params {
		msg[k] = v
	}
	msg["id"] = id
	msg["action"] = action
	return json.Marshal(msg)
}
