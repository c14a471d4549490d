package agents

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/dshills/teamgraph/graph/model"
)

// DefaultTokenBudget bounds the history sent to a supervisor model.
const DefaultTokenBudget = 100000

// perMessageOverhead approximates the role and framing tokens of a chat message.
const perMessageOverhead = 4

// Trimmer keeps the most recent messages that fit a token budget.
//
// System messages are always kept. Counting uses the cl100k_base tiktoken
// encoding; if the encoding cannot be loaded (it may need a download on
// first use) a four-characters-per-token estimate is used instead.
type Trimmer struct {
	Budget int

	count  func(string) int
	logger *zap.Logger

	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewTrimmer creates a Trimmer. A budget <= 0 selects DefaultTokenBudget.
func NewTrimmer(budget int, logger *zap.Logger) *Trimmer {
	if budget <= 0 {
		budget = DefaultTokenBudget
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trimmer{Budget: budget, logger: logger}
}

// WithCounter replaces token counting, mainly for tests.
func (t *Trimmer) WithCounter(count func(string) int) *Trimmer {
	t.count = count
	return t
}

// Count returns the token count of text.
func (t *Trimmer) Count(text string) int {
	if t.count != nil {
		return t.count(text)
	}
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			t.logger.Warn("tiktoken unavailable, estimating token counts", zap.Error(err))
			return
		}
		t.enc = enc
	})
	if t.enc == nil {
		return (len(text) + 3) / 4
	}
	return len(t.enc.Encode(text, nil, nil))
}

// Trim returns the system messages plus the longest suffix of the other
// messages whose total count fits the budget. Order is preserved.
func (t *Trimmer) Trim(msgs []model.Message) []model.Message {
	if t == nil {
		return msgs
	}
	used := 0
	for _, m := range msgs {
		if m.Role == model.RoleSystem {
			used += t.Count(m.Content) + perMessageOverhead
		}
	}

	keep := make([]bool, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Role == model.RoleSystem {
			keep[i] = true
			continue
		}
		cost := t.Count(m.Content) + perMessageOverhead
		if used+cost > t.Budget {
			break
		}
		used += cost
		keep[i] = true
	}
	// System messages earlier than the cut are still kept.
	for i, m := range msgs {
		if m.Role == model.RoleSystem {
			keep[i] = true
		}
	}

	out := make([]model.Message, 0, len(msgs))
	dropped := 0
	for i, m := range msgs {
		if keep[i] {
			out = append(out, m)
		} else {
			dropped++
		}
	}
	if dropped > 0 {
		t.logger.Debug("trimmed history", zap.Int("dropped", dropped), zap.Int("kept", len(out)))
	}
	return out
}
