package model

import (
	"context"
	"errors"
	"testing"
)

func TestMockChatModel_Sequence(t *testing.T) {
	m := &MockChatModel{Responses: []ChatOut{{Text: "one"}, {Text: "two"}}}
	ctx := context.Background()

	for _, want := range []string{"one", "two", "two"} {
		out, err := m.Chat(ctx, []Message{User("q")}, nil)
		if err != nil {
			t.Fatal(err)
		}
		if out.Text != want {
			t.Errorf("Text = %q, want %q", out.Text, want)
		}
	}
	if m.CallCount() != 3 {
		t.Errorf("CallCount() = %d, want 3", m.CallCount())
	}
	m.Reset()
	if out, _ := m.Chat(ctx, nil, nil); out.Text != "one" || m.CallCount() != 1 {
		t.Error("Reset should rewind responses and clear calls")
	}
}

func TestMockChatModel_RespondAndErr(t *testing.T) {
	m := &MockChatModel{Respond: func(msgs []Message, tools []ToolSpec) (ChatOut, error) {
		return ChatOut{Text: msgs[len(msgs)-1].Content + "!"}, nil
	}}
	out, _ := m.Chat(context.Background(), []Message{User("hey")}, []ToolSpec{{Name: "t"}})
	if out.Text != "hey!" {
		t.Errorf("Text = %q", out.Text)
	}
	if calls := m.Calls(); len(calls[0].Tools) != 1 {
		t.Error("tools should be recorded")
	}

	m.Err = errors.New("fail")
	if _, err := m.Chat(context.Background(), nil, nil); err == nil {
		t.Error("Err should fail the call")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Chat(ctx, nil, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled ctx error = %v", err)
	}
}

func TestToolCallHelpers(t *testing.T) {
	out := ChatOut{ToolCalls: []ToolCall{
		{Name: "other"},
		{Name: "route", Input: map[string]interface{}{
			"next":  "Coder",
			"files": []interface{}{"a.go", 3, "b.go"},
			"tags":  []string{"x"},
		}},
	}}
	call, ok := out.FirstCall("route")
	if !ok {
		t.Fatal("FirstCall(route) not found")
	}
	if call.String("next") != "Coder" || call.String("missing") != "" {
		t.Error("String() mismatch")
	}
	if got := call.Strings("files"); len(got) != 2 || got[1] != "b.go" {
		t.Errorf("Strings(files) = %v", got)
	}
	if got := call.Strings("tags"); len(got) != 1 {
		t.Errorf("Strings(tags) = %v", got)
	}
	if _, ok := out.FirstCall("nope"); ok {
		t.Error("FirstCall(nope) should not match")
	}
}
