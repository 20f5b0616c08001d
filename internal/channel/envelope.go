package channel

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Envelope is the unit exchanged over the channel.
//
// Inbound frames need only a "type"; outbound application envelopes also
// carry "action" and a "data" payload.
type Envelope struct {
	ID     string          `json:"id,omitempty"`
	Type   string          `json:"type"`
	Action string          `json:"action,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`

	// Raw is the complete frame as received. Empty for outbound envelopes.
	Raw []byte `json:"-"`
}

// NewEnvelope builds an outbound envelope, marshaling data as the payload.
func NewEnvelope(typ, action string, data any) (Envelope, error) {
	env := Envelope{
		ID:     uuid.NewString(),
		Type:   typ,
		Action: action,
	}
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			return Envelope{}, fmt.Errorf("marshal %s payload: %w", typ, err)
		}
		env.Data = payload
	}
	return env, nil
}

// DecodeData unmarshals the envelope payload into v.
func (e Envelope) DecodeData(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("envelope %q has no data", e.Type)
	}
	return json.Unmarshal(e.Data, v)
}

// Fields returns the full inbound frame as a generic object, including
// fields beyond the envelope's own.
func (e Envelope) Fields() (map[string]any, error) {
	src := e.Raw
	if len(src) == 0 {
		var err error
		if src, err = json.Marshal(e); err != nil {
			return nil, err
		}
	}
	var m map[string]any
	if err := json.Unmarshal(src, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Encode converts an outbound message to a wire frame.
//
// Strings, byte slices and json.RawMessage are taken as already encoded.
// Envelopes get an ID if they lack one. Anything else is marshaled as JSON.
func Encode(msg any) ([]byte, error) {
	switch m := msg.(type) {
	case nil:
		return nil, fmt.Errorf("encode: nil message")
	case string:
		return []byte(m), nil
	case []byte:
		return bytes.Clone(m), nil
	case json.RawMessage:
		return bytes.Clone(m), nil
	case Envelope:
		return encodeEnvelope(m)
	case *Envelope:
		if m == nil {
			return nil, fmt.Errorf("encode: nil envelope")
		}
		return encodeEnvelope(*m)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", msg, err)
	}
	return data, nil
}

func encodeEnvelope(env Envelope) ([]byte, error) {
	if env.Type == "" {
		return nil, fmt.Errorf("encode envelope: %w", ErrMissingType)
	}
	if env.ID == "" {
		env.ID = uuid.NewString()
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return data, nil
}

// Decode parses an inbound frame. Frames that are not JSON objects or that
// lack a non-empty string "type" fail with a *DecodeError.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, &DecodeError{Frame: frame, Err: err}
	}
	if env.Type == "" {
		return Envelope{}, &DecodeError{Frame: frame, Err: ErrMissingType}
	}
	env.Raw = frame
	return env, nil
}
