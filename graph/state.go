package graph

import (
	"fmt"
	"sort"
	"strings"
)

// Role identifies who authored a message in the run history.
type Role string

const (
	// RoleHuman marks input that came from outside the graph.
	RoleHuman Role = "human"

	// RoleAI marks output produced by a node.
	RoleAI Role = "ai"
)

// Terminal sentinels. A run stops when its next target becomes one of these.
const (
	// Finish ends the run and returns the state to the caller.
	Finish = "FINISH"

	// WaitForInput suspends the run until new external input arrives.
	WaitForInput = "WAIT_FOR_INPUT"
)

// IsTerminal reports whether target is one of the terminal sentinels.
func IsTerminal(target string) bool {
	return target == Finish || target == WaitForInput
}

// Message is a single entry in the run history.
type Message struct {
	Content string `json:"content"`
	Author  string `json:"author,omitempty"`
	Role    Role   `json:"role"`
}

// HumanMessage creates a message carrying external input.
func HumanMessage(content string) Message {
	return Message{Content: content, Role: RoleHuman}
}

// AIMessage creates a message attributed to the named node.
func AIMessage(author, content string) Message {
	return Message{Content: content, Author: author, Role: RoleAI}
}

// Kind is the declared shape of an auxiliary slot.
type Kind string

const (
	// KindText is a scalar text slot. Merges overwrite it.
	KindText Kind = "text"

	// KindSet is an insertion-ordered set of strings. Merges union it.
	KindSet Kind = "set"

	// KindList is a list of strings. Merges append to it.
	KindList Kind = "list"

	// KindTasks is a task list. Merges append tasks not already represented.
	KindTasks Kind = "tasks"
)

// Slot is the value of an auxiliary field. Only the member matching Kind is meaningful.
type Slot struct {
	Kind  Kind     `json:"kind"`
	Text  string   `json:"text,omitempty"`
	Items []string `json:"items,omitempty"`
	Tasks []Task   `json:"tasks,omitempty"`
}

// TextSlot returns a scalar slot value.
func TextSlot(text string) Slot {
	return Slot{Kind: KindText, Text: text}
}

// SetSlot returns a set slot value. Duplicates in items are dropped.
func SetSlot(items ...string) Slot {
	return Slot{Kind: KindSet, Items: union(nil, items)}
}

// ListSlot returns a list slot value.
func ListSlot(items ...string) Slot {
	return Slot{Kind: KindList, Items: append([]string(nil), items...)}
}

// TaskSlot returns a task list slot value.
func TaskSlot(tasks ...Task) Slot {
	return Slot{Kind: KindTasks, Tasks: append([]Task(nil), tasks...)}
}

func (s Slot) clone() Slot {
	out := Slot{Kind: s.Kind, Text: s.Text}
	if s.Items != nil {
		out.Items = append([]string(nil), s.Items...)
	}
	if s.Tasks != nil {
		out.Tasks = append([]Task(nil), s.Tasks...)
	}
	return out
}

// merge folds delta into s according to the slot kind.
func (s Slot) merge(delta Slot) (Slot, error) {
	if s.Kind != "" && delta.Kind != s.Kind {
		return s, fmt.Errorf("cannot merge %s value into %s slot", delta.Kind, s.Kind)
	}
	out := s.clone()
	out.Kind = delta.Kind
	switch delta.Kind {
	case KindText:
		out.Text = delta.Text
	case KindSet:
		out.Items = union(out.Items, delta.Items)
	case KindList:
		out.Items = append(out.Items, delta.Items...)
	case KindTasks:
		for _, t := range delta.Tasks {
			var existed bool
			out.Tasks, existed = AddTask(out.Tasks, t.Description)
			if t.Status != "" && (existed || t.Status != TaskTodo) {
				out.Tasks, _ = UpdateTaskStatus(out.Tasks, t.Description, t.Status)
			}
		}
	default:
		return s, fmt.Errorf("unknown slot kind %q", delta.Kind)
	}
	return out, nil
}

// fits reports whether only the member matching Kind is populated.
func (s Slot) fits() bool {
	switch s.Kind {
	case KindText:
		return len(s.Items) == 0 && len(s.Tasks) == 0
	case KindSet, KindList:
		return s.Text == "" && len(s.Tasks) == 0
	case KindTasks:
		return s.Text == "" && len(s.Items) == 0
	}
	return false
}

func union(base, items []string) []string {
	seen := make(map[string]struct{}, len(base)+len(items))
	out := make([]string, 0, len(base)+len(items))
	for _, list := range [][]string{base, items} {
		for _, item := range list {
			if _, ok := seen[item]; ok {
				continue
			}
			seen[item] = struct{}{}
			out = append(out, item)
		}
	}
	return out
}

// State is the record threaded through every node invocation of a run.
//
// Messages is append-only. Next always holds a registered node name or a
// terminal sentinel once a node's update has been merged. Slots holds the
// auxiliary fields declared by the graph; each slot keeps its declared Kind.
//
// A State is owned by the run executing it. Nodes receive a clone and return
// an Update; they never mutate the record directly.
type State struct {
	Messages   []Message       `json:"messages"`
	Next       string          `json:"next,omitempty"`
	AgentInput string          `json:"agent_input,omitempty"`
	Slots      map[string]Slot `json:"slots,omitempty"`
}

// NewState returns a State seeded with a single human message.
//
// Example:
//
//	initial := graph.NewState("add a README to dshills/teamgraph")
//	final, err := engine.Run(ctx, runID, initial)
func NewState(request string) State {
	return State{Messages: []Message{HumanMessage(request)}}
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := State{
		Next:       s.Next,
		AgentInput: s.AgentInput,
	}
	if s.Messages != nil {
		out.Messages = append([]Message(nil), s.Messages...)
	}
	if s.Slots != nil {
		out.Slots = make(map[string]Slot, len(s.Slots))
		for name, slot := range s.Slots {
			out.Slots[name] = slot.clone()
		}
	}
	return out
}

// Text returns the value of a text slot, or "" when unset.
func (s State) Text(slot string) string {
	return s.Slots[slot].Text
}

// Items returns the values of a set or list slot.
func (s State) Items(slot string) []string {
	return s.Slots[slot].Items
}

// Tasks returns the entries of a task slot.
func (s State) Tasks(slot string) []Task {
	return s.Slots[slot].Tasks
}

// LastMessage returns the most recent message, if any.
func (s State) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// LastHuman returns the content of the most recent human message.
func (s State) LastHuman() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleHuman {
			return s.Messages[i].Content
		}
	}
	return ""
}

// view restricts the slots to the ones named in reads.
func (s State) view(reads map[string]struct{}) State {
	out := s.Clone()
	for name := range out.Slots {
		if _, ok := reads[name]; !ok {
			delete(out.Slots, name)
		}
	}
	return out
}

// Update is the partial state a node returns. The executor merges it:
// Messages are appended, Next and AgentInput overwrite when non-empty, and
// each slot merges according to its Kind.
type Update struct {
	Messages   []Message       `json:"messages,omitempty"`
	Next       string          `json:"next,omitempty"`
	AgentInput string          `json:"agent_input,omitempty"`
	Slots      map[string]Slot `json:"slots,omitempty"`
}

// Say returns an Update carrying a single message from author.
func Say(author, content string) Update {
	return Update{Messages: []Message{AIMessage(author, content)}}
}

// With returns a copy of u with the slot set.
func (u Update) With(name string, slot Slot) Update {
	slots := make(map[string]Slot, len(u.Slots)+1)
	for k, v := range u.Slots {
		slots[k] = v
	}
	slots[name] = slot
	u.Slots = slots
	return u
}

// Merge folds the update into prev and returns the new state. It fails only
// when a slot would change shape.
func Merge(prev State, delta Update) (State, error) {
	next := prev.Clone()
	next.Messages = append(next.Messages, delta.Messages...)
	if delta.Next != "" {
		next.Next = delta.Next
	}
	if delta.AgentInput != "" {
		next.AgentInput = delta.AgentInput
	}
	if len(delta.Slots) > 0 && next.Slots == nil {
		next.Slots = make(map[string]Slot, len(delta.Slots))
	}
	for name, value := range delta.Slots {
		merged, err := next.Slots[name].merge(value)
		if err != nil {
			return prev, fmt.Errorf("slot %s: %w", name, err)
		}
		next.Slots[name] = merged
	}
	return next, nil
}

// Summary renders the auxiliary slots as plain text, ordered by name.
func (s State) Summary() string {
	names := make([]string, 0, len(s.Slots))
	for name := range s.Slots {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		slot := s.Slots[name]
		switch slot.Kind {
		case KindText:
			fmt.Fprintf(&b, "%s: %s\n", name, slot.Text)
		case KindSet, KindList:
			fmt.Fprintf(&b, "%s: %s\n", name, strings.Join(slot.Items, ", "))
		case KindTasks:
			fmt.Fprintf(&b, "%s:\n", name)
			for _, t := range slot.Tasks {
				fmt.Fprintf(&b, "  - [%s] %s\n", t.Status, t.Description)
			}
		}
	}
	return b.String()
}
