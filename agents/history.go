package agents

import (
	"regexp"
	"strings"

	"github.com/dshills/teamgraph/graph"
	"github.com/dshills/teamgraph/graph/model"
)

// History converts the run's messages into chat messages. Node output is
// prefixed with its author so the model can tell the workers apart.
func History(s graph.State) []model.Message {
	out := make([]model.Message, 0, len(s.Messages))
	for _, m := range s.Messages {
		switch m.Role {
		case graph.RoleHuman:
			out = append(out, model.User(m.Content))
		default:
			content := m.Content
			if m.Author != "" {
				content = m.Author + ": " + content
			}
			out = append(out, model.Assistant(content))
		}
	}
	return out
}

var fence = regexp.MustCompile("(?s)```([A-Za-z0-9_+-]*)[ \\t]*\\n(.*?)```")

// CodeBlock is a fenced block found in text.
type CodeBlock struct {
	Lang string
	Code string
}

// ExtractCode returns every fenced code block in text, in order.
func ExtractCode(text string) []CodeBlock {
	var out []CodeBlock
	for _, m := range fence.FindAllStringSubmatch(text, -1) {
		out = append(out, CodeBlock{Lang: strings.ToLower(m[1]), Code: m[2]})
	}
	return out
}

// LatestCode returns the last code block in the run's messages.
func LatestCode(s graph.State) (CodeBlock, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if blocks := ExtractCode(s.Messages[i].Content); len(blocks) > 0 {
			return blocks[len(blocks)-1], true
		}
	}
	return CodeBlock{}, false
}

var fileName = regexp.MustCompile(`[A-Za-z0-9_./-]+\.(?:py|go|js|ts|sh|rb|txt|md|json|yaml|yml)\b`)

// FileNameIn returns the first file name mentioned in text.
func FileNameIn(text string) (string, bool) {
	m := fileName.FindString(text)
	return m, m != ""
}

// DefaultFileName picks a file name from a fence language.
func DefaultFileName(lang string) string {
	switch lang {
	case "go", "golang":
		return "main.go"
	case "js", "javascript":
		return "main.js"
	case "ts", "typescript":
		return "main.ts"
	case "sh", "bash", "shell":
		return "main.sh"
	default:
		return "main.py"
	}
}

// Fenced renders the block as a fenced code block.
func (c CodeBlock) Fenced() string {
	code := c.Code
	if !strings.HasSuffix(code, "\n") {
		code += "\n"
	}
	return "```" + c.Lang + "\n" + code + "```"
}
