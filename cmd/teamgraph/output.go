package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/teamgraph/graph"
	"github.com/dshills/teamgraph/graph/model"
)

// stateView is the printable form of a final state.
type stateView struct {
	Next       string            `json:"next" yaml:"next"`
	AgentInput string            `json:"agent_input,omitempty" yaml:"agent_input,omitempty"`
	Messages   []messageView     `json:"messages" yaml:"messages"`
	Slots      map[string]any    `json:"slots,omitempty" yaml:"slots,omitempty"`
	Tasks      map[string][]task `json:"tasks,omitempty" yaml:"tasks,omitempty"`
}

type messageView struct {
	Role    string `json:"role" yaml:"role"`
	Author  string `json:"author,omitempty" yaml:"author,omitempty"`
	Content string `json:"content" yaml:"content"`
}

type task struct {
	ID          string `json:"id" yaml:"id"`
	Description string `json:"description" yaml:"description"`
	Status      string `json:"status" yaml:"status"`
}

func viewOf(s graph.State) stateView {
	v := stateView{Next: s.Next, AgentInput: s.AgentInput}
	for _, m := range s.Messages {
		v.Messages = append(v.Messages, messageView{Role: string(m.Role), Author: m.Author, Content: m.Content})
	}
	for name, slot := range s.Slots {
		switch slot.Kind {
		case graph.KindText:
			if v.Slots == nil {
				v.Slots = map[string]any{}
			}
			v.Slots[name] = slot.Text
		case graph.KindTasks:
			if v.Tasks == nil {
				v.Tasks = map[string][]task{}
			}
			list := []task{}
			for _, t := range slot.Tasks {
				list = append(list, task{ID: t.ID, Description: t.Description, Status: string(t.Status)})
			}
			v.Tasks[name] = list
		default:
			if v.Slots == nil {
				v.Slots = map[string]any{}
			}
			v.Slots[name] = append([]string{}, slot.Items...)
		}
	}
	return v
}

// printState renders the final state as text, json or yaml.
func printState(w io.Writer, s graph.State, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(viewOf(s))
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(viewOf(s)); err != nil {
			return err
		}
		return enc.Close()
	default:
		fmt.Fprintf(w, "%s %s\n", labelColor.Sprint("next:"), s.Next)
		fmt.Fprintf(w, "%s %d\n", labelColor.Sprint("messages:"), len(s.Messages))
		if summary := s.Summary(); summary != "" {
			fmt.Fprintln(w, labelColor.Sprint("slots:"))
			for _, line := range strings.Split(strings.TrimRight(summary, "\n"), "\n") {
				fmt.Fprintln(w, "  "+line)
			}
		}
		return nil
	}
}

// printCosts prints per-agent model spend. Nothing is printed when no
// model call was recorded.
func printCosts(w io.Writer, costs *model.CostTracker) {
	calls := costs.Calls()
	if len(calls) == 0 {
		return
	}
	byAgent := map[string]float64{}
	for _, c := range calls {
		byAgent[c.Agent] += c.CostUSD
	}

	in, out := costs.Tokens()
	fmt.Fprintf(w, "%s %d calls, %d input + %d output tokens, $%.4f\n",
		labelColor.Sprint("cost:"), len(calls), in, out, costs.Total())
	for _, a := range costs.Agents() {
		fmt.Fprintf(w, "  %-16s $%.4f\n", a, byAgent[a])
	}
}
