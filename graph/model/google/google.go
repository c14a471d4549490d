// Package google adapts Gemini models to model.ChatModel.
package google

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/dshills/teamgraph/graph/model"
)

// DefaultModel is used when NewChatModel receives an empty model name.
const DefaultModel = "gemini-2.5-flash"

// request is everything one Gemini call needs.
type request struct {
	system  string
	history []*genai.Content
	last    []genai.Part
	tools   []*genai.Tool
}

// ChatModel implements model.ChatModel for Gemini.
//
// System messages become the system instruction, earlier turns become chat
// history and the final turn is sent as the new message.
type ChatModel struct {
	client    *genai.Client
	modelName string
	generate  func(ctx context.Context, req request) (*genai.GenerateContentResponse, error)
}

// NewChatModel connects to the Gemini API. Close releases the client.
func NewChatModel(ctx context.Context, apiKey, modelName string, opts ...option.ClientOption) (*ChatModel, error) {
	if apiKey == "" {
		return nil, errors.New("google API key is required")
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}
	m := &ChatModel{client: client, modelName: modelName}
	m.generate = m.send
	return m, nil
}

// Name returns the model name.
func (m *ChatModel) Name() string { return m.modelName }

// Close releases the underlying client.
func (m *ChatModel) Close() error {
	if m.client == nil {
		return nil
	}
	return m.client.Close()
}

// Chat implements model.ChatModel.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	if err := ctx.Err(); err != nil {
		return model.ChatOut{}, err
	}
	req := buildRequest(messages, tools)
	if len(req.last) == 0 {
		return model.ChatOut{}, &model.Error{Provider: "google", Kind: model.KindOther, Message: "no user message to send"}
	}
	resp, err := m.generate(ctx, req)
	if err != nil {
		return model.ChatOut{}, classify(err)
	}
	return convertResponse(resp), nil
}

func (m *ChatModel) send(ctx context.Context, req request) (*genai.GenerateContentResponse, error) {
	gm := m.client.GenerativeModel(m.modelName)
	if req.system != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.system)}}
	}
	gm.Tools = req.tools
	cs := gm.StartChat()
	cs.History = req.history
	return cs.SendMessage(ctx, req.last...)
}

func buildRequest(messages []model.Message, tools []model.ToolSpec) request {
	var (
		req    request
		system []string
		turns  []*genai.Content
	)
	for _, msg := range messages {
		if msg.Content == "" {
			continue
		}
		if msg.Role == model.RoleSystem {
			system = append(system, msg.Content)
			continue
		}
		role := "user"
		if msg.Role == model.RoleAssistant {
			role = "model"
		}
		// Gemini rejects consecutive turns from the same role.
		if n := len(turns); n > 0 && turns[n-1].Role == role {
			turns[n-1].Parts = append(turns[n-1].Parts, genai.Text(msg.Content))
			continue
		}
		turns = append(turns, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(msg.Content)}})
	}
	req.system = strings.Join(system, "\n\n")
	if n := len(turns); n > 0 && turns[n-1].Role == "user" {
		req.last = turns[n-1].Parts
		turns = turns[:n-1]
	}
	req.history = turns
	if len(tools) > 0 {
		req.tools = convertTools(tools)
	}
	return req
}

func convertTools(tools []model.ToolSpec) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  convertSchema(t.Schema),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func convertSchema(schema map[string]interface{}) *genai.Schema {
	if schema == nil {
		return nil
	}
	out := &genai.Schema{Type: genai.TypeObject}
	if props, ok := schema["properties"].(map[string]interface{}); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if p, ok := raw.(map[string]interface{}); ok {
				out.Properties[name] = convertProperty(p)
			}
		}
	}
	switch req := schema["required"].(type) {
	case []string:
		out.Required = req
	case []interface{}:
		for _, r := range req {
			if s, ok := r.(string); ok {
				out.Required = append(out.Required, s)
			}
		}
	}
	return out
}

func convertProperty(p map[string]interface{}) *genai.Schema {
	s := &genai.Schema{}
	if t, ok := p["type"].(string); ok {
		s.Type = convertType(t)
	}
	if d, ok := p["description"].(string); ok {
		s.Description = d
	}
	switch enum := p["enum"].(type) {
	case []string:
		s.Enum = enum
	case []interface{}:
		for _, e := range enum {
			if v, ok := e.(string); ok {
				s.Enum = append(s.Enum, v)
			}
		}
	}
	if items, ok := p["items"].(map[string]interface{}); ok {
		s.Items = convertProperty(items)
	}
	return s
}

func convertType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	}
	return genai.TypeUnspecified
}

func convertResponse(resp *genai.GenerateContentResponse) model.ChatOut {
	var out model.ChatOut
	if resp == nil {
		return out
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = model.Usage{InputTokens: int(u.PromptTokenCount), OutputTokens: int(u.CandidatesTokenCount)}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out
	}
	var text []string
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			text = append(text, string(p))
		case genai.FunctionCall:
			out.ToolCalls = append(out.ToolCalls, model.ToolCall{Name: p.Name, Input: p.Args})
		}
	}
	out.Text = strings.Join(text, "\n")
	return out
}

func classify(err error) error {
	var apiErr *googleapi.Error
	status := 0
	if errors.As(err, &apiErr) {
		status = apiErr.Code
	}
	return model.Classify("google", status, err)
}
