package model

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Pricing is the USD price per million tokens.
type Pricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

var defaultPricing = map[string]Pricing{
	"gpt-4o":                     {InputPer1M: 2.50, OutputPer1M: 10.00},
	"gpt-4o-mini":                {InputPer1M: 0.15, OutputPer1M: 0.60},
	"gpt-4-turbo":                {InputPer1M: 10.00, OutputPer1M: 30.00},
	"claude-3-5-sonnet-20241022": {InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-sonnet-4-20250514":   {InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-3-5-haiku-20241022":  {InputPer1M: 0.80, OutputPer1M: 4.00},
	"gemini-1.5-pro":             {InputPer1M: 1.25, OutputPer1M: 5.00},
	"gemini-1.5-flash":           {InputPer1M: 0.075, OutputPer1M: 0.30},
	"gemini-2.5-flash":           {InputPer1M: 0.30, OutputPer1M: 2.50},
}

// Call is one recorded model invocation.
type Call struct {
	Model        string    `json:"model"`
	Agent        string    `json:"agent"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	CostUSD      float64   `json:"cost_usd"`
	At           time.Time `json:"at"`
}

// CostTracker accumulates token usage and cost across every model call of a
// process. Unknown models are recorded at zero cost.
type CostTracker struct {
	mu      sync.RWMutex
	pricing map[string]Pricing
	calls   []Call
	total   float64
	byAgent map[string]float64
}

// NewCostTracker creates a tracker with the built-in price table.
func NewCostTracker() *CostTracker {
	pricing := make(map[string]Pricing, len(defaultPricing))
	for k, v := range defaultPricing {
		pricing[k] = v
	}
	return &CostTracker{pricing: pricing, byAgent: make(map[string]float64)}
}

// SetPricing overrides the price of a model.
func (t *CostTracker) SetPricing(model string, p Pricing) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pricing[model] = p
}

// Record adds one call and returns its cost.
func (t *CostTracker) Record(model, agent string, usage Usage) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.pricing[model]
	cost := float64(usage.InputTokens)/1_000_000*p.InputPer1M +
		float64(usage.OutputTokens)/1_000_000*p.OutputPer1M
	t.calls = append(t.calls, Call{
		Model:        model,
		Agent:        agent,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		CostUSD:      cost,
		At:           time.Now(),
	})
	t.total += cost
	t.byAgent[agent] += cost
	return cost
}

// Total returns the accumulated cost in USD.
func (t *CostTracker) Total() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.total
}

// Tokens returns the accumulated input and output token counts.
func (t *CostTracker) Tokens() (in, out int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, c := range t.calls {
		in += c.InputTokens
		out += c.OutputTokens
	}
	return in, out
}

// Calls returns a copy of the call history.
func (t *CostTracker) Calls() []Call {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Call(nil), t.calls...)
}

// Agents returns the agents that made calls, sorted by descending cost.
func (t *CostTracker) Agents() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.byAgent))
	for a := range t.byAgent {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if t.byAgent[out[i]] != t.byAgent[out[j]] {
			return t.byAgent[out[i]] > t.byAgent[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

// Metered records the usage of every successful call on a tracker.
type Metered struct {
	model   ChatModel
	name    string
	agent   string
	tracker *CostTracker
}

// Meter wraps m so its calls are attributed to agent under the model name.
// A nil tracker returns m unchanged.
func (t *CostTracker) Meter(m ChatModel, name, agent string) ChatModel {
	if t == nil {
		return m
	}
	return &Metered{model: m, name: name, agent: agent, tracker: t}
}

// Chat implements ChatModel.
func (m *Metered) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error) {
	out, err := m.model.Chat(ctx, messages, tools)
	if err != nil {
		return out, err
	}
	m.tracker.Record(m.name, m.agent, out.Usage)
	return out, nil
}
