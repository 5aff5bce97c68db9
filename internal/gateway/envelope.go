package gateway

import (
	"bytes"
	"encoding/json"
)

// StatusSuccess is the only envelope status treated as success.
const StatusSuccess = "success"

// Envelope is the backend response wrapper.
type Envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *Envelope) Succeeded() bool {
	return e != nil && e.Status == StatusSuccess
}

// DecodeData unmarshals the data field into out. Missing or null data leaves out untouched.
func (e *Envelope) DecodeData(out any) error {
	if e == nil || len(e.Data) == 0 || bytes.Equal(bytes.TrimSpace(e.Data), []byte("null")) {
		return nil
	}
	return json.Unmarshal(e.Data, out)
}

// decodeEnvelope never fails: a body that is not an envelope yields an empty one.
func decodeEnvelope(raw []byte) *Envelope {
	env := &Envelope{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return env
	}
	if err := json.Unmarshal(raw, env); err != nil {
		return &Envelope{}
	}
	return env
}
