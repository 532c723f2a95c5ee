package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentstation/queuelink/pkg/errors"
)

// Envelope is the wire form of an Event.
type Envelope struct {
	Type         Kind            `json:"type"`
	Timestamp    time.Time       `json:"timestamp"`
	TargetUserID string          `json:"target_user_id,omitempty"`
	Data         json.RawMessage `json:"data"`
}

// Decode parses one wire frame into an Event with a typed payload.
// Frames of unknown type are reported as a *errors.ParseError.
func Decode(frame []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Event{}, errors.WrapParse("json", "event frame", err)
	}

	var payload any
	var err error
	switch env.Type {
	case AppointmentStatusChanged:
		payload, err = decodePayload[AppointmentStatus](env.Data)
	case QueuePositionUpdated:
		payload, err = decodePayload[QueuePosition](env.Data)
	case SystemNotice:
		payload, err = decodePayload[Notice](env.Data)
	default:
		return Event{}, &errors.ParseError{
			Format:  "json",
			Source:  "event frame",
			Message: fmt.Sprintf("unknown event type %q", env.Type),
		}
	}
	if err != nil {
		return Event{}, errors.WrapParse("json", string(env.Type)+" payload", err)
	}

	return Event{
		Kind:         env.Type,
		Timestamp:    env.Timestamp,
		TargetUserID: env.TargetUserID,
		Payload:      payload,
	}, nil
}

// Encode renders e as a wire frame.
func Encode(e Event) ([]byte, error) {
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, errors.WrapParse("json", string(e.Kind)+" payload", err)
	}
	return json.Marshal(Envelope{
		Type:         e.Kind,
		Timestamp:    e.Timestamp,
		TargetUserID: e.TargetUserID,
		Data:         data,
	})
}

func decodePayload[T any](data json.RawMessage) (T, error) {
	var v T
	if len(data) == 0 {
		return v, nil
	}
	err := json.Unmarshal(data, &v)
	return v, err
}
