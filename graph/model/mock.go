package model

import (
	"context"
	"sync"
)

// MockChatModel replays canned responses for tests.
//
// Responses are returned in order and the last one repeats once the list is
// exhausted. When Respond is set it takes precedence and can inspect the
// request. Err, when set, fails every call.
type MockChatModel struct {
	Responses []ChatOut
	Respond   func(messages []Message, tools []ToolSpec) (ChatOut, error)
	Err       error

	mu    sync.Mutex
	calls []MockChatCall
	next  int
}

// MockChatCall records one request.
type MockChatCall struct {
	Messages []Message
	Tools    []ToolSpec
}

// Chat implements ChatModel.
func (m *MockChatModel) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error) {
	if err := ctx.Err(); err != nil {
		return ChatOut{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockChatCall{
		Messages: append([]Message(nil), messages...),
		Tools:    append([]ToolSpec(nil), tools...),
	})
	if m.Err != nil {
		return ChatOut{}, m.Err
	}
	if m.Respond != nil {
		return m.Respond(messages, tools)
	}
	if len(m.Responses) == 0 {
		return ChatOut{}, nil
	}
	i := m.next
	if i >= len(m.Responses) {
		i = len(m.Responses) - 1
	} else {
		m.next++
	}
	return m.Responses[i], nil
}

// Calls returns the requests received so far.
func (m *MockChatModel) Calls() []MockChatCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockChatCall(nil), m.calls...)
}

// CallCount returns the number of requests received.
func (m *MockChatModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Reset clears recorded calls and rewinds the response list.
func (m *MockChatModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.next = 0
}
