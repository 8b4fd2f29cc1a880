package scheduler

import (
	"errors"
	"fmt"
	"time"
)

// Task statuses. A task starts its life queued; idle describes the slot
// before any task exists for a file.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusPaused     Status = "paused"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// ErrTaskNotFound is returned when an operation references an unknown task.
var ErrTaskNotFound = errors.New("scheduler: task not found")

// ErrDuplicateTask is returned when a file already has an active task.
var ErrDuplicateTask = errors.New("scheduler: file already has an active task")

// InvalidTransitionError rejects a state change outside the legal table.
// The task is left unchanged.
type InvalidTransitionError struct {
	TaskID string
	From   Status
	To     Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition for task %s: %s -> %s", e.TaskID, e.From, e.To)
}

// Metadata describes the file a task transcribes.
type Metadata struct {
	Filename string  `json:"filename"`
	Size     int64   `json:"size"`
	Duration float64 `json:"duration"`
	Format   string  `json:"format"`
	Language string  `json:"language"`
}

// TaskResult is the completed transcription attached to a terminal task.
type TaskResult struct {
	TranscriptID string  `json:"transcriptId"`
	Text         string  `json:"text"`
	Language     string  `json:"language"`
	Duration     float64 `json:"duration"`
	SegmentCount int     `json:"segmentCount"`
}

// Task is one scheduled transcription run for a single file. All mutation
// goes through the scheduler; callers only ever see snapshots.
type Task struct {
	ID          string      `json:"id"`
	FileID      string      `json:"fileId"`
	Status      Status      `json:"status"`
	Progress    float64     `json:"progress"`
	Priority    int         `json:"priority"`
	Attempts    int         `json:"attempts"`
	Metadata    Metadata    `json:"metadata"`
	Error       string      `json:"error,omitempty"`
	Hint        string      `json:"hint,omitempty"`
	Result      *TaskResult `json:"result,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	StartedAt   *time.Time  `json:"startedAt,omitempty"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
}

// IsActive reports whether the task occupies the file's single active slot.
func (t *Task) IsActive() bool {
	switch t.Status {
	case StatusQueued, StatusProcessing, StatusPaused:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the task has finished for good.
func (t *Task) IsTerminal() bool {
	switch t.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// canTransition enforces the allowed task state machine edges. Terminal
// states admit no outgoing edge except failed -> queued for explicit retry.
func canTransition(from, to Status) bool {
	switch from {
	case StatusIdle:
		return to == StatusQueued
	case StatusQueued:
		return to == StatusProcessing || to == StatusCancelled
	case StatusProcessing:
		return to == StatusPaused || to == StatusCompleted || to == StatusFailed || to == StatusCancelled
	case StatusPaused:
		return to == StatusProcessing || to == StatusCancelled
	case StatusFailed:
		return to == StatusQueued
	default:
		return false
	}
}
