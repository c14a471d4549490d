package emit

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogEmitter_Text(t *testing.T) {
	var buf bytes.Buffer
	e := NewLogEmitter(&buf, false)

	e.Emit(Event{RunID: "chat-1", Step: 3, NodeID: "Context", Msg: "node_end", Meta: map[string]interface{}{"next": "ProductManager"}})
	e.Emit(Event{RunID: "chat-1", Msg: "run_start"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), buf.String())
	}
	want := `[node_end] run=chat-1 step=3 node=Context meta={"next":"ProductManager"}`
	if lines[0] != want {
		t.Errorf("line 0 = %q, want %q", lines[0], want)
	}
	if strings.Contains(lines[1], "meta=") {
		t.Errorf("line 1 = %q, want no meta", lines[1])
	}
}

func TestLogEmitter_JSON(t *testing.T) {
	var buf bytes.Buffer
	e := NewLogEmitter(&buf, true)

	e.Emit(Event{RunID: "chat-1", Step: 2, NodeID: "Coder", Msg: "node_error", Meta: map[string]interface{}{"code": "NODE_TIMEOUT"}})

	var got Event
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if got.RunID != "chat-1" || got.Step != 2 || got.NodeID != "Coder" || got.Msg != "node_error" {
		t.Errorf("decoded event = %+v", got)
	}
	if got.Str("code") != "NODE_TIMEOUT" {
		t.Errorf("meta code = %q, want NODE_TIMEOUT", got.Str("code"))
	}
}

func TestLogEmitter_UnmarshalableMeta(t *testing.T) {
	var buf bytes.Buffer
	e := NewLogEmitter(&buf, true)

	e.Emit(Event{RunID: "r", Msg: "node_end", Meta: map[string]interface{}{"bad": func() {}}})

	if !strings.Contains(buf.String(), "failed to marshal event") {
		t.Errorf("output = %q, want marshal error line", buf.String())
	}
}
