package orchestrator

import (
	"strings"
	"time"

	apperrors "github.com/louisbranch/retroboard/internal/platform/errors"
	"github.com/louisbranch/retroboard/internal/retro/domain"
	"github.com/louisbranch/retroboard/internal/retro/event"
	"github.com/louisbranch/retroboard/internal/retro/storage"
)

// TaskInput describes a task create/update request.
type TaskInput struct {
	AssigneeID   string
	ReflectionID string
	Description  string
}

func (s State) validateTaskInput(input TaskInput) (TaskInput, error) {
	input.Description = strings.TrimSpace(input.Description)
	if input.Description == "" {
		return TaskInput{}, apperrors.New(apperrors.CodeTaskDescriptionEmpty, "task description is required")
	}
	if s.participantIndex(input.AssigneeID) < 0 {
		return TaskInput{}, storage.ErrNotFound
	}
	if input.ReflectionID != "" && s.reflectionIndex(input.ReflectionID) < 0 {
		return TaskInput{}, storage.ErrNotFound
	}
	return input, nil
}

// CreateTask records an action item during the actions step. Any
// participant can create tasks; the step is the only gate.
func CreateTask(s State, requesterID string, input TaskInput, now time.Time, newID func() (string, error)) Decision {
	if s.participantIndex(requesterID) < 0 {
		return reject(s, storage.ErrNotFound)
	}
	if s.Retro.Step != domain.StepActions {
		return reject(s, apperrors.New(apperrors.CodeTaskWrongStep, "tasks can only be managed during actions"))
	}
	input, err := s.validateTaskInput(input)
	if err != nil {
		return reject(s, err)
	}

	taskID, err := newID()
	if err != nil {
		return reject(s, err)
	}

	next := s.clone()
	task := domain.Task{
		ID:              taskID,
		RetrospectiveID: next.Retro.ID,
		AuthorID:        requesterID,
		AssigneeID:      input.AssigneeID,
		ReflectionID:    input.ReflectionID,
		Description:     input.Description,
		CreatedAt:       now.UTC(),
		UpdatedAt:       now.UTC(),
	}
	next.Tasks = append(next.Tasks, task)

	view := domain.ViewOfTask(task)
	return Decision{
		State:   next,
		Changes: []storage.Change{storage.PutTask{Task: task}},
		Events: []event.Event{event.New(next.Retro.ID, event.ActionTaskChanged,
			event.TaskChangedParams{Task: &view, TaskID: task.ID})},
		Reply: view,
	}
}

// UpdateTask rewrites an existing task during the actions step.
func UpdateTask(s State, requesterID, taskID string, input TaskInput, now time.Time) Decision {
	if s.participantIndex(requesterID) < 0 {
		return reject(s, storage.ErrNotFound)
	}
	if s.Retro.Step != domain.StepActions {
		return reject(s, apperrors.New(apperrors.CodeTaskWrongStep, "tasks can only be managed during actions"))
	}
	idx := s.taskIndex(taskID)
	if idx < 0 {
		return reject(s, storage.ErrNotFound)
	}
	input, err := s.validateTaskInput(input)
	if err != nil {
		return reject(s, err)
	}

	next := s.clone()
	next.Tasks[idx].AssigneeID = input.AssigneeID
	next.Tasks[idx].ReflectionID = input.ReflectionID
	next.Tasks[idx].Description = input.Description
	next.Tasks[idx].UpdatedAt = now.UTC()

	view := domain.ViewOfTask(next.Tasks[idx])
	return Decision{
		State:   next,
		Changes: []storage.Change{storage.PutTask{Task: next.Tasks[idx]}},
		Events: []event.Event{event.New(next.Retro.ID, event.ActionTaskChanged,
			event.TaskChangedParams{Task: &view, TaskID: taskID})},
		Reply: view,
	}
}

// DeleteTask removes a task during the actions step.
func DeleteTask(s State, requesterID, taskID string) Decision {
	if s.participantIndex(requesterID) < 0 {
		return reject(s, storage.ErrNotFound)
	}
	if s.Retro.Step != domain.StepActions {
		return reject(s, apperrors.New(apperrors.CodeTaskWrongStep, "tasks can only be managed during actions"))
	}
	idx := s.taskIndex(taskID)
	if idx < 0 {
		return reject(s, storage.ErrNotFound)
	}

	next := s.clone()
	next.Tasks = append(next.Tasks[:idx], next.Tasks[idx+1:]...)
	return Decision{
		State:   next,
		Changes: []storage.Change{storage.DeleteTask{ID: taskID}},
		Events: []event.Event{event.New(next.Retro.ID, event.ActionTaskChanged,
			event.TaskChangedParams{TaskID: taskID, Deleted: true})},
	}
}
