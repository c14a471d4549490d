package tool

import (
	"context"
	"sync"

	"github.com/dshills/teamgraph/graph/model"
)

// MockTool returns canned outputs and records its inputs.
//
// Outputs are returned in order; the last one repeats. Err fails every call.
type MockTool struct {
	ToolName string
	Outputs  []string
	Err      error

	mu     sync.Mutex
	inputs []map[string]interface{}
	next   int
}

// Spec implements Tool.
func (m *MockTool) Spec() model.ToolSpec {
	return model.ToolSpec{Name: m.ToolName, Description: "mock " + m.ToolName, Schema: Object(Props{})}
}

// Call implements Tool.
func (m *MockTool) Call(ctx context.Context, input map[string]interface{}) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.inputs = append(m.inputs, input)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Outputs) == 0 {
		return "", nil
	}
	i := m.next
	if i >= len(m.Outputs) {
		i = len(m.Outputs) - 1
	} else {
		m.next++
	}
	return m.Outputs[i], nil
}

// Inputs returns the arguments of every call so far.
func (m *MockTool) Inputs() []map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]map[string]interface{}(nil), m.inputs...)
}
