// Package model defines the provider-neutral chat model interface used by
// supervisors and workers, plus cost tracking, retries and a scripted mock.
package model

import "context"

// ChatModel is a chat-completion capability.
//
// Implementations translate messages and tool specs into a provider request
// and the response back into ChatOut. Provider failures are returned as
// *Error so callers can tell timeouts and rate limits from other failures.
type ChatModel interface {
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}

// Message is one turn of a chat request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// System builds a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User builds a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Assistant builds an assistant message.
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// ToolSpec describes a function the model may call. Schema is a JSON Schema
// object with "properties" and optionally "required".
type ToolSpec struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Schema      map[string]interface{} `json:"schema"`
}

// ChatOut is the model's reply.
type ChatOut struct {
	Text      string     `json:"text"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Usage     Usage      `json:"usage"`
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID    string                 `json:"id,omitempty"`
	Name  string                 `json:"name"`
	Input map[string]interface{} `json:"input"`
}

// Usage reports token consumption for one call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// FirstCall returns the first tool call named name.
func (o ChatOut) FirstCall(name string) (ToolCall, bool) {
	for _, c := range o.ToolCalls {
		if c.Name == name {
			return c, true
		}
	}
	return ToolCall{}, false
}

// String returns Input[key] when it is a string.
func (c ToolCall) String(key string) string {
	s, _ := c.Input[key].(string)
	return s
}

// Strings returns Input[key] when it is a list, keeping only string elements.
func (c ToolCall) Strings(key string) []string {
	switch v := c.Input[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
