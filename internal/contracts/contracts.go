package contracts

import (
	"encoding/json"
	"time"
)

// timestampLayout keeps the fractional seconds at a fixed width. The stores
// order documents by the field's JSON text, so every rendered timestamp must
// be the same length for that order to be chronological; time.Time's own
// MarshalJSON trims trailing zeros and breaks this within a second.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Timestamp is a time.Time that marshals with a fixed-width nanosecond
// fraction in UTC.
type Timestamp time.Time

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).UTC().Format(timestampLayout))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

func (t Timestamp) Time() time.Time { return time.Time(t) }

// Task is a task document in the "tasks" collection. The task's display text
// doubles as its document ID: renaming a task creates a new document.
type Task struct {
	GoalName    string    `json:"goal_name"`
	Username    string    `json:"username"`
	TaskName    string    `json:"task_name"`
	Color       string    `json:"color"`
	UpdatedAt   Timestamp `json:"updated_at"`
	Message     *string   `json:"message"`
	SpeedRating *int      `json:"speed_rating"`
}

// User is a user document in the "users" collection, keyed by username.
// An empty CurrentTaskID means the user has no current task.
type User struct {
	ID            string `json:"id"`
	CurrentTaskID string `json:"current_task_id"`
	PomodoroSpent int    `json:"pomodoro_spent"`
}

// UpdateResponse reflects exactly what a webhook event mutated. A nil field
// means the event did not touch that document.
type UpdateResponse struct {
	Task *Task `json:"task"`
	User *User `json:"user"`
}

// TaskUpdate is published to JetStream after a webhook event has been applied
// to the store, for downstream consumers following task activity.
type TaskUpdate struct {
	EventID    string    `json:"event_id"`
	Username   string    `json:"username"`
	TaskName   string    `json:"task_name"`
	Kind       string    `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`
}
