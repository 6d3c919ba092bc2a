package store

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"portal/api/internal/util"
)

var (
	ErrInvalidTransition = errors.New("invalid task status transition")
	ErrInvalidStatus     = errors.New("invalid task status")
	ErrInvalidPriority   = errors.New("invalid task priority")
)

func ParseStatus(value string) (TaskStatus, error) {
	switch TaskStatus(value) {
	case StatusPending, StatusInProgress, StatusCompleted:
		return TaskStatus(value), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, value)
}

func ParsePriority(value string) (Priority, error) {
	switch Priority(value) {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return Priority(value), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPriority, value)
}

func statusRank(status TaskStatus) int {
	switch status {
	case StatusPending:
		return 0
	case StatusInProgress:
		return 1
	case StatusCompleted:
		return 2
	}
	return -1
}

// CanTransition reports whether to is one step away from from in either
// direction.
func CanTransition(from, to TaskStatus) bool {
	a, b := statusRank(from), statusRank(to)
	if a < 0 || b < 0 {
		return false
	}
	return a-b == 1 || b-a == 1
}

// Next and Previous give the board's move forward and move back targets.
func Next(status TaskStatus) (TaskStatus, bool) {
	switch status {
	case StatusPending:
		return StatusInProgress, true
	case StatusInProgress:
		return StatusCompleted, true
	}
	return "", false
}

func Previous(status TaskStatus) (TaskStatus, bool) {
	switch status {
	case StatusCompleted:
		return StatusInProgress, true
	case StatusInProgress:
		return StatusPending, true
	}
	return "", false
}

// BoardTask is a task on the board with the columns it can move to.
type BoardTask struct {
	Task
	Forward TaskStatus `json:"forward,omitempty"`
	Back    TaskStatus `json:"back,omitempty"`
}

type Column struct {
	Status TaskStatus  `json:"status"`
	Count  int         `json:"count"`
	Tasks  []BoardTask `json:"tasks"`
}

// Tasks is the escalation board. Tasks keep insertion order and are never
// deleted.
type Tasks struct {
	mu    sync.RWMutex
	items []Task
	now   func() time.Time
}

func NewTasks(now func() time.Time, seed []Task) *Tasks {
	if now == nil {
		now = time.Now
	}
	t := &Tasks{now: now, items: make([]Task, 0, len(seed))}
	for _, task := range seed {
		if task.CreatedAt.IsZero() {
			task.CreatedAt = now().UTC()
		}
		t.items = append(t.items, task)
	}
	return t
}

// Add appends a Pending task.
func (t *Tasks) Add(title, description, assignee string, priority Priority) Task {
	task := Task{
		ID:          util.NewID("task"),
		Title:       title,
		Description: description,
		Assignee:    assignee,
		Status:      StatusPending,
		Priority:    priority,
		CreatedAt:   t.now().UTC(),
	}
	t.mu.Lock()
	t.items = append(t.items, task)
	t.mu.Unlock()
	return task
}

// UpdateStatus moves task id to status. It returns the task as stored and
// whether anything changed. An unknown id returns found=false and no error;
// moving to the current status is not a change.
func (t *Tasks) UpdateStatus(id string, status TaskStatus) (task Task, found, changed bool, err error) {
	if statusRank(status) < 0 {
		return Task{}, false, false, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.items {
		if t.items[i].ID != id {
			continue
		}
		current := t.items[i]
		if current.Status == status {
			return current, true, false, nil
		}
		if !CanTransition(current.Status, status) {
			return current, true, false, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, status)
		}
		t.items[i].Status = status
		return t.items[i], true, true, nil
	}
	return Task{}, false, false, nil
}

func (t *Tasks) List() []Task {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Task(nil), t.items...)
}

func (t *Tasks) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}

// Board groups tasks into one column per status, in board order.
func (t *Tasks) Board() []Column {
	items := t.List()
	columns := make([]Column, 0, len(TaskStatuses))
	for _, status := range TaskStatuses {
		forward, _ := Next(status)
		back, _ := Previous(status)
		col := Column{Status: status, Tasks: []BoardTask{}}
		for _, task := range items {
			if task.Status == status {
				col.Tasks = append(col.Tasks, BoardTask{Task: task, Forward: forward, Back: back})
			}
		}
		col.Count = len(col.Tasks)
		columns = append(columns, col)
	}
	return columns
}
