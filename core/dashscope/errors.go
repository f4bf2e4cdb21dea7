package dashscope

import (
	"errors"
	"fmt"
)

var (
	// ErrTaskActive is returned when a new task is started on a session whose
	// previous task has not reached a terminal state yet.
	ErrTaskActive = errors.New("previous task still active")
	// ErrClosedBeforeReady is returned when the connection closes before the
	// server acknowledged the task with task-started.
	ErrClosedBeforeReady = errors.New("connection closed before task started")
	// ErrSessionClosed is returned when an operation is attempted on a closed
	// session.
	ErrSessionClosed = errors.New("session closed")
)

// TaskError carries the server-provided detail of a task-failed event.
type TaskError struct {
	TaskID string
	Code   string
	Detail string
}

func (e *TaskError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("task %s failed: %s (%s)", e.TaskID, e.Detail, e.Code)
	}
	return fmt.Sprintf("task %s failed: %s", e.TaskID, e.Detail)
}
