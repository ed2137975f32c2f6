package hooks

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Event keys sent by the productivity app. Anything else decodes as an
// unrecognized event and is ignored downstream.
const (
	EventKeyTaskChange = "nexa.change"
	EventKeyTimerEnd   = "timer.pomo.workcomplete"
)

var ErrMalformedEvent = errors.New("malformed event")

// TaskData is the nested task object inside a task-change event.
type TaskData struct {
	Text string `json:"text"`
	ID   string `json:"_id"`
}

type Colors struct {
	Color string `json:"color"`
}

type TaskChange struct {
	GoalName string   `json:"goalName"`
	Username string   `json:"username"`
	Task     TaskData `json:"nexa"`
	Colors   Colors   `json:"colors"`
}

type TimerEnd struct {
	Username string `json:"username"`
}

// Event is the decoded webhook payload. Exactly one of the variant pointers
// is set for a recognized key; both are nil for an unrecognized one.
type Event struct {
	Key        string
	TaskChange *TaskChange
	TimerEnd   *TimerEnd
}

// DecodeEvent decodes a webhook payload against the event-key table.
// Unrecognized keys decode successfully with no payload; ErrMalformedEvent is
// returned only when the key itself is missing or not a string, or when a
// recognized variant's required fields are absent or mistyped.
func DecodeEvent(payload []byte) (Event, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	rawKey, ok := fields["eventKey"]
	if !ok {
		return Event{}, fmt.Errorf("%w: missing eventKey", ErrMalformedEvent)
	}
	var key string
	if err := json.Unmarshal(rawKey, &key); err != nil {
		return Event{}, fmt.Errorf("%w: eventKey is not a string", ErrMalformedEvent)
	}

	switch key {
	case EventKeyTaskChange:
		change, err := decodeTaskChange(payload, fields)
		if err != nil {
			return Event{}, err
		}
		return Event{Key: key, TaskChange: change}, nil
	case EventKeyTimerEnd:
		end, err := decodeTimerEnd(payload, fields)
		if err != nil {
			return Event{}, err
		}
		return Event{Key: key, TimerEnd: end}, nil
	default:
		return Event{Key: key}, nil
	}
}

func decodeTaskChange(payload []byte, fields map[string]json.RawMessage) (*TaskChange, error) {
	if err := requireFields(EventKeyTaskChange, fields, "goalName", "username", "nexa", "colors"); err != nil {
		return nil, err
	}
	var change TaskChange
	if err := json.Unmarshal(payload, &change); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	var task map[string]json.RawMessage
	if err := json.Unmarshal(fields["nexa"], &task); err != nil {
		return nil, fmt.Errorf("%w: nexa is not an object", ErrMalformedEvent)
	}
	if err := requireFields(EventKeyTaskChange, task, "text", "_id"); err != nil {
		return nil, err
	}
	var colors map[string]json.RawMessage
	if err := json.Unmarshal(fields["colors"], &colors); err != nil {
		return nil, fmt.Errorf("%w: colors is not an object", ErrMalformedEvent)
	}
	if err := requireFields(EventKeyTaskChange, colors, "color"); err != nil {
		return nil, err
	}
	return &change, nil
}

func decodeTimerEnd(payload []byte, fields map[string]json.RawMessage) (*TimerEnd, error) {
	if err := requireFields(EventKeyTimerEnd, fields, "username"); err != nil {
		return nil, err
	}
	var end TimerEnd
	if err := json.Unmarshal(payload, &end); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return &end, nil
}

func requireFields(eventKey string, fields map[string]json.RawMessage, names ...string) error {
	for _, name := range names {
		raw, ok := fields[name]
		if !ok {
			return fmt.Errorf("%w: %s payload is missing %q", ErrMalformedEvent, eventKey, name)
		}
		// json.Unmarshal of null into a string is a no-op, so a null would
		// otherwise pass as an empty value.
		if isJSONNull(raw) {
			return fmt.Errorf("%w: %s payload field %q is null", ErrMalformedEvent, eventKey, name)
		}
	}
	return nil
}

func isJSONNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
