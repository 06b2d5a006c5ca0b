package domain

import "time"

// Task is an action item created while discussing a reflection. Tasks have
// an independent lifecycle within the actions step.
type Task struct {
	ID              string
	RetrospectiveID string
	AuthorID        string
	AssigneeID      string
	ReflectionID    string
	Description     string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TaskView is the wire representation of a task.
type TaskView struct {
	ID           string `json:"id"`
	AuthorID     string `json:"authorId"`
	AssigneeID   string `json:"assigneeId"`
	ReflectionID string `json:"reflectionId,omitempty"`
	Description  string `json:"description"`
}

// ViewOfTask builds the wire payload for a task.
func ViewOfTask(t Task) TaskView {
	return TaskView{
		ID:           t.ID,
		AuthorID:     t.AuthorID,
		AssigneeID:   t.AssigneeID,
		ReflectionID: t.ReflectionID,
		Description:  t.Description,
	}
}
