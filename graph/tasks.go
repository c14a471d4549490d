package graph

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// TaskStatus is the progress marker of a tracked task.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
)

// ParseTaskStatus maps free text onto a TaskStatus.
func ParseTaskStatus(s string) (TaskStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "todo", "to do", "open", "pending":
		return TaskTodo, true
	case "in_progress", "in progress", "doing", "started":
		return TaskInProgress, true
	case "done", "complete", "completed", "closed":
		return TaskDone, true
	}
	return "", false
}

// Task is an entry of a task slot. ID is derived from the description.
type Task struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
}

// NewTask returns a todo task with its derived identity.
func NewTask(description string) Task {
	return Task{ID: taskID(description), Description: description, Status: TaskTodo}
}

func taskID(description string) string {
	sum := sha1.Sum([]byte(strings.TrimSpace(description)))
	return hex.EncodeToString(sum[:6])
}

// FindTask returns the first task whose description contains request.
//
// Matching is plain substring containment: "docs" matches an existing
// "write docs" entry, but "write docs today" does not.
func FindTask(tasks []Task, request string) (Task, bool) {
	for _, t := range tasks {
		if strings.Contains(t.Description, request) {
			return t, true
		}
	}
	return Task{}, false
}

// AddTask appends a task for description unless FindTask already matches one.
// It reports whether a matching task existed. The input slice is not modified.
func AddTask(tasks []Task, description string) ([]Task, bool) {
	if _, ok := FindTask(tasks, description); ok {
		return tasks, true
	}
	out := make([]Task, len(tasks), len(tasks)+1)
	copy(out, tasks)
	return append(out, NewTask(description)), false
}

// UpdateTaskStatus sets the status of the task matching description. It
// reports false when no task matches. The input slice is not modified.
func UpdateTaskStatus(tasks []Task, description string, status TaskStatus) ([]Task, bool) {
	match, ok := FindTask(tasks, description)
	if !ok {
		return tasks, false
	}
	out := make([]Task, len(tasks))
	copy(out, tasks)
	for i := range out {
		if out[i].ID == match.ID {
			out[i].Status = status
			break
		}
	}
	return out, true
}
