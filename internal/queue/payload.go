package queue

import (
	"encoding/json"
	"fmt"
)

// PayloadSchemaVersion is the current payload layout. Bump it when fields
// change meaning; decoders reject versions newer than this.
const PayloadSchemaVersion = 1

// Payload carries what a processor needs to attempt a fix. The queue never
// interprets it.
type Payload struct {
	SchemaVersion int               `json:"schema_version"`
	Message       string            `json:"message"`
	Linter        string            `json:"linter,omitempty"`
	Severity      string            `json:"severity,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// EncodePayload serializes a payload for storage.
func EncodePayload(p Payload) (string, error) {
	if p.SchemaVersion == 0 {
		p.SchemaVersion = PayloadSchemaVersion
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

// DecodePayload parses a stored payload. An empty string yields the zero payload.
func DecodePayload(raw string) (Payload, error) {
	var p Payload
	if raw == "" {
		return p, nil
	}
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Payload{}, fmt.Errorf("unmarshal payload: %w", err)
	}
	if p.SchemaVersion > PayloadSchemaVersion {
		return Payload{}, fmt.Errorf("%w: version %d", ErrUnsupportedPayload, p.SchemaVersion)
	}
	return p, nil
}

// EncodeResult serializes a result for storage. Nil encodes to "".
func EncodeResult(r *Result) (string, error) {
	if r == nil {
		return "", nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	return string(data), nil
}

// DecodeResult parses a stored result. An empty string yields nil.
func DecodeResult(raw string) (*Result, error) {
	if raw == "" {
		return nil, nil
	}
	var r Result
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return &r, nil
}
