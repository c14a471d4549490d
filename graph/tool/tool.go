// Package tool defines the function-calling capabilities agents expose to
// chat models.
package tool

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dshills/teamgraph/graph/model"
)

// ErrUnknownTool is returned when a model calls a tool that is not in the set.
var ErrUnknownTool = errors.New("unknown tool")

// Tool is a named capability a model may invoke.
//
// Call receives the model-supplied arguments and returns text that is fed
// back to the model. A returned error is also reported to the model; it
// does not fail the agent.
type Tool interface {
	Spec() model.ToolSpec
	Call(ctx context.Context, input map[string]interface{}) (string, error)
}

// Func is a Tool built from a spec and a function.
type Func struct {
	S  model.ToolSpec
	Fn func(ctx context.Context, input map[string]interface{}) (string, error)
}

// New builds a Func tool.
//
// Example:
//
//	echo := tool.New("echo", "repeat the input", tool.Object(tool.Props{"text": tool.String("text to echo")}, "text"),
//	    func(ctx context.Context, in map[string]interface{}) (string, error) {
//	        return tool.Arg(in, "text"), nil
//	    })
func New(name, description string, schema map[string]interface{}, fn func(ctx context.Context, input map[string]interface{}) (string, error)) *Func {
	return &Func{S: model.ToolSpec{Name: name, Description: description, Schema: schema}, Fn: fn}
}

// Spec implements Tool.
func (f *Func) Spec() model.ToolSpec { return f.S }

// Call implements Tool.
func (f *Func) Call(ctx context.Context, input map[string]interface{}) (string, error) {
	return f.Fn(ctx, input)
}

// Set is a collection of tools addressed by name.
type Set struct {
	tools map[string]Tool
}

// NewSet builds a Set. Later tools replace earlier ones with the same name.
func NewSet(tools ...Tool) *Set {
	s := &Set{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		s.tools[t.Spec().Name] = t
	}
	return s
}

// Len returns the number of tools.
func (s *Set) Len() int { return len(s.tools) }

// Specs returns the tool specs sorted by name.
func (s *Set) Specs() []model.ToolSpec {
	names := make([]string, 0, len(s.tools))
	for n := range s.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]model.ToolSpec, 0, len(names))
	for _, n := range names {
		out = append(out, s.tools[n].Spec())
	}
	return out
}

// Call dispatches a model tool call.
func (s *Set) Call(ctx context.Context, call model.ToolCall) (string, error) {
	t, ok := s.tools[call.Name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
	}
	return t.Call(ctx, call.Input)
}

// Props maps property names to JSON Schema fragments.
type Props map[string]interface{}

// Object builds an object schema.
func Object(props Props, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}(props),
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// String builds a string property schema.
func String(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

// Integer builds an integer property schema.
func Integer(description string) map[string]interface{} {
	return map[string]interface{}{"type": "integer", "description": description}
}

// Enum builds a string property restricted to values.
func Enum(description string, values ...string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description, "enum": values}
}

// StringList builds an array-of-strings property schema.
func StringList(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"description": description,
		"items":       map[string]interface{}{"type": "string"},
	}
}

// Arg returns input[key] when it is a string.
func Arg(input map[string]interface{}, key string) string {
	s, _ := input[key].(string)
	return s
}

// IntArg returns input[key] as an int, accepting JSON numbers, or def.
func IntArg(input map[string]interface{}, key string, def int) int {
	switch v := input[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return def
}
