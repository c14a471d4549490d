package graph

import "testing"

func TestAddTask(t *testing.T) {
	t.Run("new description appends one entry", func(t *testing.T) {
		tasks, matched := AddTask(nil, "write docs")
		if matched {
			t.Error("expected no match on empty list")
		}
		if len(tasks) != 1 || tasks[0].Description != "write docs" || tasks[0].Status != TaskTodo {
			t.Fatalf("unexpected tasks: %+v", tasks)
		}
		if tasks[0].ID == "" {
			t.Error("expected derived ID")
		}
	})

	t.Run("contained request matches existing entry", func(t *testing.T) {
		existing := []Task{NewTask("write docs")}
		tasks, matched := AddTask(existing, "docs")
		if !matched {
			t.Error("expected substring match")
		}
		if len(tasks) != 1 {
			t.Errorf("expected no new entry, got %d tasks", len(tasks))
		}
	})

	t.Run("longer request does not match", func(t *testing.T) {
		existing := []Task{NewTask("write docs")}
		tasks, matched := AddTask(existing, "write docs today")
		if matched {
			t.Error("expected no match")
		}
		if len(tasks) != 2 {
			t.Errorf("expected 2 tasks, got %d", len(tasks))
		}
		if len(existing) != 1 {
			t.Error("input slice was modified")
		}
	})
}

func TestUpdateTaskStatus(t *testing.T) {
	tasks := []Task{NewTask("write docs"), NewTask("ship release")}

	got, ok := UpdateTaskStatus(tasks, "release", TaskInProgress)
	if !ok {
		t.Fatal("expected match")
	}
	if got[1].Status != TaskInProgress {
		t.Errorf("expected in_progress, got %s", got[1].Status)
	}
	if tasks[1].Status != TaskTodo {
		t.Error("input slice was modified")
	}

	if _, ok := UpdateTaskStatus(tasks, "missing", TaskDone); ok {
		t.Error("expected no match for unknown task")
	}
}

func TestNewTaskIDStable(t *testing.T) {
	a := NewTask("write docs")
	b := NewTask("  write docs ")
	if a.ID != b.ID {
		t.Errorf("expected ID to ignore surrounding space: %s vs %s", a.ID, b.ID)
	}
	if len(a.ID) != 12 {
		t.Errorf("expected 12 hex chars, got %q", a.ID)
	}
}

func TestParseTaskStatus(t *testing.T) {
	tests := []struct {
		in   string
		want TaskStatus
		ok   bool
	}{
		{"todo", TaskTodo, true},
		{"In Progress", TaskInProgress, true},
		{" completed ", TaskDone, true},
		{"blocked", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseTaskStatus(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseTaskStatus(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
