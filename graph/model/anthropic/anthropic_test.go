package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dshills/teamgraph/graph/model"
)

func newTestModel(t *testing.T, handler http.HandlerFunc) *ChatModel {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewChatModel("test-key", "", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
}

func TestChat_TextAndToolUse(t *testing.T) {
	var body map[string]interface{}
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		if r.Header.Get("X-Api-Key") != "test-key" {
			t.Errorf("api key header = %q", r.Header.Get("X-Api-Key"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-20250514",
			"content": [
				{"type": "text", "text": "Routing now."},
				{"type": "tool_use", "id": "tu_1", "name": "route", "input": {"next": "Coder", "agent_input": "write main.go"}}
			],
			"stop_reason": "tool_use",
			"usage": {"input_tokens": 120, "output_tokens": 30}
		}`))
	})

	out, err := m.Chat(context.Background(), []model.Message{
		model.System("You are a supervisor."),
		model.User("build it"),
		model.Assistant("ok"),
		model.User("go"),
	}, []model.ToolSpec{{
		Name:        "route",
		Description: "pick the next worker",
		Schema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"next": map[string]interface{}{"type": "string"}},
			"required":   []string{"next"},
		},
	}})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if out.Text != "Routing now." {
		t.Errorf("Text = %q", out.Text)
	}
	call, ok := out.FirstCall("route")
	if !ok || call.String("next") != "Coder" || call.ID != "tu_1" {
		t.Errorf("ToolCalls = %+v", out.ToolCalls)
	}
	if out.Usage.InputTokens != 120 || out.Usage.OutputTokens != 30 {
		t.Errorf("Usage = %+v", out.Usage)
	}

	if body["model"] != DefaultModel {
		t.Errorf("request model = %v", body["model"])
	}
	if msgs, _ := body["messages"].([]interface{}); len(msgs) != 3 {
		t.Errorf("request had %d messages, want 3 (system split out)", len(msgs))
	}
	if tools, _ := body["tools"].([]interface{}); len(tools) != 1 {
		t.Errorf("request had %d tools, want 1", len(tools))
	}
	if body["system"] == nil {
		t.Error("system prompt missing from request")
	}
}

func TestChat_ErrorClassification(t *testing.T) {
	tests := []struct {
		status int
		want   model.Kind
	}{
		{http.StatusUnauthorized, model.KindAuth},
		{http.StatusTooManyRequests, model.KindRateLimited},
		{http.StatusInternalServerError, model.KindUnavailable},
		{http.StatusBadRequest, model.KindOther},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"type":"error","error":{"type":"some_error","message":"nope"}}`))
			})
			_, err := m.Chat(context.Background(), []model.Message{model.User("hi")}, nil)
			var me *model.Error
			if !errors.As(err, &me) {
				t.Fatalf("error = %v, want *model.Error", err)
			}
			if me.Kind != tt.want || me.Provider != "anthropic" {
				t.Errorf("error = %+v, want kind %s", me, tt.want)
			}
		})
	}
}

func TestChat_CancelledContext(t *testing.T) {
	m := NewChatModel("k", "claude-3-5-haiku-20241022")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Chat(ctx, nil, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if m.Name() != "claude-3-5-haiku-20241022" {
		t.Errorf("Name() = %q", m.Name())
	}
}

func TestRequiredFields(t *testing.T) {
	if got := requiredFields(map[string]interface{}{"required": []interface{}{"a", 1, "b"}}); len(got) != 2 {
		t.Errorf("requiredFields() = %v", got)
	}
	if got := requiredFields(map[string]interface{}{}); got != nil {
		t.Errorf("requiredFields(empty) = %v", got)
	}
}
