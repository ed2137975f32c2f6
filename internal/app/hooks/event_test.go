package hooks

import (
	"errors"
	"testing"
)

func TestDecodeEvent_TaskChange(t *testing.T) {
	payload := []byte(`{
		"eventKey": "nexa.change",
		"goalName": "G",
		"username": "alice",
		"nexa": {"text": "Write spec", "_id": "x"},
		"colors": {"color": "#fff"}
	}`)

	event, err := DecodeEvent(payload)
	if err != nil {
		t.Fatalf("DecodeEvent returned error: %v", err)
	}
	if event.Key != EventKeyTaskChange || event.TaskChange == nil || event.TimerEnd != nil {
		t.Fatalf("unexpected event: %+v", event)
	}
	change := event.TaskChange
	if change.GoalName != "G" || change.Username != "alice" || change.Task.Text != "Write spec" || change.Task.ID != "x" || change.Colors.Color != "#fff" {
		t.Fatalf("unexpected task change payload: %+v", change)
	}
}

func TestDecodeEvent_TimerEnd(t *testing.T) {
	event, err := DecodeEvent([]byte(`{"eventKey": "timer.pomo.workcomplete", "username": "alice"}`))
	if err != nil {
		t.Fatalf("DecodeEvent returned error: %v", err)
	}
	if event.TimerEnd == nil || event.TimerEnd.Username != "alice" {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestDecodeEvent_UnknownKeyIsNotAnError(t *testing.T) {
	event, err := DecodeEvent([]byte(`{"eventKey": "unknown.thing", "whatever": 42}`))
	if err != nil {
		t.Fatalf("unknown event key must decode: %v", err)
	}
	if event.Key != "unknown.thing" || event.TaskChange != nil || event.TimerEnd != nil {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestDecodeEvent_Malformed(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"invalid json", `{not json`},
		{"missing eventKey", `{"username": "alice"}`},
		{"non-string eventKey", `{"eventKey": 5}`},
		{"task change missing goalName", `{"eventKey": "nexa.change", "username": "alice", "nexa": {"text": "a", "_id": "x"}, "colors": {"color": "#fff"}}`},
		{"task change missing nexa", `{"eventKey": "nexa.change", "goalName": "G", "username": "alice", "colors": {"color": "#fff"}}`},
		{"task change missing nested text", `{"eventKey": "nexa.change", "goalName": "G", "username": "alice", "nexa": {"_id": "x"}, "colors": {"color": "#fff"}}`},
		{"task change missing color", `{"eventKey": "nexa.change", "goalName": "G", "username": "alice", "nexa": {"text": "a", "_id": "x"}, "colors": {}}`},
		{"task change mistyped nexa", `{"eventKey": "nexa.change", "goalName": "G", "username": "alice", "nexa": "a", "colors": {"color": "#fff"}}`},
		{"task change null goalName", `{"eventKey": "nexa.change", "goalName": null, "username": "alice", "nexa": {"text": "a", "_id": "x"}, "colors": {"color": "#fff"}}`},
		{"task change null username", `{"eventKey": "nexa.change", "goalName": "G", "username": null, "nexa": {"text": "a", "_id": "x"}, "colors": {"color": "#fff"}}`},
		{"task change null nexa", `{"eventKey": "nexa.change", "goalName": "G", "username": "alice", "nexa": null, "colors": {"color": "#fff"}}`},
		{"task change null nested text", `{"eventKey": "nexa.change", "goalName": "G", "username": "alice", "nexa": {"text": null, "_id": "x"}, "colors": {"color": "#fff"}}`},
		{"task change null color", `{"eventKey": "nexa.change", "goalName": "G", "username": "alice", "nexa": {"text": "a", "_id": "x"}, "colors": {"color": null}}`},
		{"timer end missing username", `{"eventKey": "timer.pomo.workcomplete"}`},
		{"timer end mistyped username", `{"eventKey": "timer.pomo.workcomplete", "username": 7}`},
		{"timer end null username", `{"eventKey": "timer.pomo.workcomplete", "username": null}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeEvent([]byte(tc.payload))
			if !errors.Is(err, ErrMalformedEvent) {
				t.Fatalf("expected ErrMalformedEvent, got %v", err)
			}
		})
	}
}
