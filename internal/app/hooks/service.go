package hooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/intend-hooks/service/internal/contracts"
	"github.com/intend-hooks/service/internal/docstore"
	"github.com/intend-hooks/service/internal/sharding"
	"github.com/nats-io/nuid"
)

const (
	TasksCollection = "tasks"
	UsersCollection = "users"
)

// Relay event kinds published after an event has been applied.
const (
	UpdateKindTaskChanged    = "task.changed"
	UpdateKindTimerCompleted = "timer.completed"
)

var ErrTaskNotFound = errors.New("task not found")

// Write field lists. SetFields never touches fields outside the list, so
// these decide exactly which parts of a document each operation may change.
var (
	taskChangeTaskFields = []string{"goal_name", "username", "task_name", "color", "updated_at"}
	taskChangeUserFields = []string{"id", "current_task_id", "pomodoro_spent"}
	timerEndUserFields   = []string{"id", "pomodoro_spent"}
	speedRatingFields    = []string{"updated_at", "speed_rating"}
	messageFields        = []string{"updated_at", "message"}
	listTaskFields       = []string{"goal_name", "username", "task_name", "color", "updated_at"}
)

type PublishFunc func(subject string, payload []byte) error

type Service struct {
	Store docstore.Store

	// Publish relays applied updates to JetStream. Nil disables the relay.
	Publish PublishFunc

	Now   func() time.Time
	NewID func() string

	// ResetPomodoroOnTaskChange mirrors the upstream behavior of zeroing the
	// pomodoro counter whenever the current task changes. Set false to carry
	// the prior count forward instead.
	ResetPomodoroOnTaskChange bool
}

func NewService(store docstore.Store, publish PublishFunc) *Service {
	return &Service{
		Store:                     store,
		Publish:                   publish,
		Now:                       func() time.Time { return time.Now().UTC() },
		NewID:                     nuid.Next,
		ResetPomodoroOnTaskChange: true,
	}
}

// ProcessEvent routes a decoded event to its handler. At most one handler
// runs; unrecognized events are a no-op and the response carries neither
// document.
func (s *Service) ProcessEvent(ctx context.Context, event Event) (contracts.UpdateResponse, error) {
	var response contracts.UpdateResponse
	switch {
	case event.TaskChange != nil:
		task, user, err := s.HandleTaskChange(ctx, *event.TaskChange)
		if err != nil {
			return response, err
		}
		response.Task = &task
		response.User = &user
		s.relay(user.ID, task.TaskName, UpdateKindTaskChanged)
	case event.TimerEnd != nil:
		user, err := s.HandleTimerEnd(ctx, event.TimerEnd.Username)
		if err != nil {
			return response, err
		}
		response.User = &user
		s.relay(user.ID, user.CurrentTaskID, UpdateKindTimerCompleted)
	}
	return response, nil
}

// HandleTaskChange writes the task document keyed by its display text, then
// points the user's current task at it. The two writes are independent; if
// the task write fails the user is never touched, and a user-write failure
// leaves the already-written task in place.
func (s *Service) HandleTaskChange(ctx context.Context, change TaskChange) (contracts.Task, contracts.User, error) {
	taskName := change.Task.Text
	task := contracts.Task{
		GoalName:  change.GoalName,
		Username:  change.Username,
		TaskName:  taskName,
		Color:     change.Colors.Color,
		UpdatedAt: contracts.Timestamp(s.Now()),
	}
	if err := s.Store.SetFields(ctx, TasksCollection, taskName, task, taskChangeTaskFields); err != nil {
		return contracts.Task{}, contracts.User{}, fmt.Errorf("update tasks document %q: %w", taskName, err)
	}

	pomodoroSpent := 0
	if !s.ResetPomodoroOnTaskChange {
		var existing contracts.User
		found, err := s.Store.Get(ctx, UsersCollection, change.Username, &existing)
		if err != nil {
			return contracts.Task{}, contracts.User{}, fmt.Errorf("read users document %q: %w", change.Username, err)
		}
		if found {
			pomodoroSpent = existing.PomodoroSpent
		}
	}

	user := contracts.User{
		ID:            change.Username,
		CurrentTaskID: taskName,
		PomodoroSpent: pomodoroSpent,
	}
	if err := s.Store.SetFields(ctx, UsersCollection, change.Username, user, taskChangeUserFields); err != nil {
		return contracts.Task{}, contracts.User{}, fmt.Errorf("update users document %q: %w", change.Username, err)
	}
	return task, user, nil
}

// HandleTimerEnd bumps the user's pomodoro counter. A completion for a user
// the store has never seen starts the counter at zero. The write names only
// {id, pomodoro_spent}, so current_task_id keeps whatever value it had.
func (s *Service) HandleTimerEnd(ctx context.Context, username string) (contracts.User, error) {
	var existing contracts.User
	found, err := s.Store.Get(ctx, UsersCollection, username, &existing)
	if err != nil {
		return contracts.User{}, fmt.Errorf("read users document %q: %w", username, err)
	}

	newCount := 0
	if found {
		newCount = existing.PomodoroSpent + 1
	}

	user := contracts.User{
		ID:            username,
		CurrentTaskID: existing.CurrentTaskID,
		PomodoroSpent: newCount,
	}
	if err := s.Store.SetFields(ctx, UsersCollection, username, user, timerEndUserFields); err != nil {
		return contracts.User{}, fmt.Errorf("update users document %q: %w", username, err)
	}
	return user, nil
}

// ListUserTasks returns the user's tasks, most recently touched first.
// message and speed_rating are never part of the listing.
func (s *Service) ListUserTasks(ctx context.Context, userID string) ([]contracts.Task, error) {
	docs, err := s.Store.List(ctx, docstore.Query{
		Collection:  TasksCollection,
		FilterField: "username",
		FilterValue: userID,
		OrderField:  "updated_at",
		Descending:  true,
		Fields:      listTaskFields,
	})
	if err != nil {
		return nil, fmt.Errorf("query tasks documents for %q: %w", userID, err)
	}

	tasks := make([]contracts.Task, 0, len(docs))
	for _, raw := range docs {
		var task contracts.Task
		if err := json.Unmarshal(raw, &task); err != nil {
			return nil, fmt.Errorf("decode tasks document: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// GetCurrentTask resolves the user's current task through the user document.
// No user, no current task, or a dangling task reference all yield nil.
func (s *Service) GetCurrentTask(ctx context.Context, userID string) (*contracts.Task, error) {
	var user contracts.User
	found, err := s.Store.Get(ctx, UsersCollection, userID, &user)
	if err != nil {
		return nil, fmt.Errorf("read users document %q: %w", userID, err)
	}
	if !found || user.CurrentTaskID == "" {
		return nil, nil
	}

	var task contracts.Task
	found, err = s.Store.Get(ctx, TasksCollection, user.CurrentTaskID, &task)
	if err != nil {
		return nil, fmt.Errorf("read tasks document %q: %w", user.CurrentTaskID, err)
	}
	if !found {
		return nil, nil
	}
	return &task, nil
}

// UpdateSpeedRating sets the rating on an existing task. The guard read keeps
// the operation from creating a task document as a side effect.
func (s *Service) UpdateSpeedRating(ctx context.Context, taskName string, rating int) (contracts.Task, error) {
	var task contracts.Task
	found, err := s.Store.Get(ctx, TasksCollection, taskName, &task)
	if err != nil {
		return contracts.Task{}, fmt.Errorf("read tasks document %q: %w", taskName, err)
	}
	if !found {
		return contracts.Task{}, ErrTaskNotFound
	}

	task.UpdatedAt = contracts.Timestamp(s.Now())
	task.SpeedRating = &rating
	if err := s.Store.SetFields(ctx, TasksCollection, taskName, task, speedRatingFields); err != nil {
		return contracts.Task{}, fmt.Errorf("update tasks document %q: %w", taskName, err)
	}
	return task, nil
}

// UpdateMessage sets the message on an existing task, same guard as
// UpdateSpeedRating.
func (s *Service) UpdateMessage(ctx context.Context, userID, taskName, message string) (contracts.Task, error) {
	var task contracts.Task
	found, err := s.Store.Get(ctx, TasksCollection, taskName, &task)
	if err != nil {
		return contracts.Task{}, fmt.Errorf("read tasks document %q: %w", taskName, err)
	}
	if !found {
		return contracts.Task{}, ErrTaskNotFound
	}

	task.UpdatedAt = contracts.Timestamp(s.Now())
	task.Message = &message
	if err := s.Store.SetFields(ctx, TasksCollection, taskName, task, messageFields); err != nil {
		return contracts.Task{}, fmt.Errorf("update tasks document %q: %w", taskName, err)
	}
	return task, nil
}

// relay is best-effort: the store write already happened, so a publish
// failure is logged rather than failing the request.
func (s *Service) relay(username, taskName, kind string) {
	if s.Publish == nil {
		return
	}
	update := contracts.TaskUpdate{
		EventID:    s.NewID(),
		Username:   username,
		TaskName:   taskName,
		Kind:       kind,
		OccurredAt: s.Now(),
	}
	payload, err := json.Marshal(update)
	if err != nil {
		log.Printf("marshal task update for %s: %v", username, err)
		return
	}
	if err := s.Publish(sharding.UpdateSubject(username), payload); err != nil {
		log.Printf("relay task update for %s: %v", username, err)
	}
}
