package graph

import (
	"sort"

	"github.com/dshills/teamgraph/graph/emit"
	"github.com/dshills/teamgraph/graph/store"
)

// Builder assembles a graph: slot schema, nodes, edges and entry point.
//
// A Builder is not safe for concurrent use. Compile validates the assembly
// and produces an immutable *Engine that may be shared by concurrent runs.
//
// Example:
//
//	b := graph.New(graph.WithName("research"))
//	_ = b.Declare("relevant_files", graph.KindSet)
//	_ = b.AddSupervisor("supervisor", router)
//	_ = b.Add("ListRepoFiles", lister, graph.Writes("relevant_files"))
//	_ = b.Branch("supervisor", "ListRepoFiles")
//	_ = b.Connect("ListRepoFiles", "supervisor")
//	_ = b.StartAt("supervisor")
//	engine, err := b.Compile()
type Builder struct {
	opts       Options
	optErr     error
	slots      map[string]Kind
	nodes      map[string]*registered
	order      []string
	fixed      map[string]string
	branches   map[string][]string
	start      string
	supervisor string
}

type registered struct {
	node   Node
	fields *fieldSet
}

// New creates a Builder configured by opts. Option errors are reported by Compile.
func New(opts ...Option) *Builder {
	cfg := &engineConfig{}
	var optErr error
	for _, opt := range opts {
		if err := opt(cfg); err != nil && optErr == nil {
			optErr = err
		}
	}
	return &Builder{
		opts:     cfg.opts,
		optErr:   optErr,
		slots:    make(map[string]Kind),
		nodes:    make(map[string]*registered),
		fixed:    make(map[string]string),
		branches: make(map[string][]string),
	}
}

// Declare adds an auxiliary slot to the graph's state schema.
func (b *Builder) Declare(slot string, kind Kind) error {
	if slot == "" {
		return &EngineError{Message: "slot name cannot be empty", Code: "UNKNOWN_SLOT"}
	}
	switch kind {
	case KindText, KindSet, KindList, KindTasks:
	default:
		return &EngineError{Message: "unknown kind " + string(kind) + " for slot " + slot, Code: "SHAPE_MISMATCH"}
	}
	if existing, ok := b.slots[slot]; ok && existing != kind {
		return &EngineError{Message: "slot " + slot + " already declared as " + string(existing), Code: "SHAPE_MISMATCH"}
	}
	b.slots[slot] = kind
	return nil
}

// Add registers a node under name with its slot declarations.
//
// Returns error if name is empty, reserved, already registered, or node is nil.
func (b *Builder) Add(name string, node Node, fields ...Field) error {
	if name == "" {
		return &EngineError{Message: "node name cannot be empty", Code: "INVALID_NODE"}
	}
	if IsTerminal(name) {
		return &EngineError{Message: "node name " + name + " is reserved", Code: "RESERVED_NAME"}
	}
	if node == nil {
		return &EngineError{Message: "node cannot be nil", Code: "INVALID_NODE"}
	}
	if _, exists := b.nodes[name]; exists {
		return &EngineError{Message: "duplicate node: " + name, Code: "DUPLICATE_NODE"}
	}
	b.nodes[name] = &registered{node: node, fields: newFieldSet(fields)}
	b.order = append(b.order, name)
	return nil
}

// AddSupervisor registers a supervisor node backed by router and makes it the
// graph's designated supervisor: recovered node failures route back to it.
//
// If no Branch is declared for the supervisor, Compile lets it select any
// other registered node.
func (b *Builder) AddSupervisor(name string, router Router, fields ...Field) error {
	if router == nil {
		return &EngineError{Message: "router cannot be nil", Code: "INVALID_NODE"}
	}
	if b.supervisor != "" {
		return &EngineError{Message: "supervisor already set to " + b.supervisor, Code: "DUPLICATE_NODE"}
	}
	if err := b.Add(name, NewSupervisor(router), fields...); err != nil {
		return err
	}
	b.supervisor = name
	if _, ok := b.branches[name]; !ok {
		b.branches[name] = nil
	}
	return nil
}

// SetSupervisor designates an already registered conditional node as the
// target of recovered failures.
func (b *Builder) SetSupervisor(name string) error {
	if _, ok := b.nodes[name]; !ok {
		return &EngineError{Message: "supervisor node not found: " + name, Code: "NODE_NOT_FOUND"}
	}
	b.supervisor = name
	return nil
}

// StartAt sets the entry node.
func (b *Builder) StartAt(name string) error {
	if _, ok := b.nodes[name]; !ok {
		return &EngineError{Message: "start node not found: " + name, Code: "NODE_NOT_FOUND"}
	}
	b.start = name
	return nil
}

// Connect declares a fixed edge: after from completes, to runs next.
// to may be a registered node or a terminal sentinel.
func (b *Builder) Connect(from, to string) error {
	if from == "" || to == "" {
		return &EngineError{Message: "edge endpoints cannot be empty", Code: "INVALID_EDGE"}
	}
	if existing, ok := b.fixed[from]; ok {
		return &EngineError{Message: "node " + from + " already has a fixed edge to " + existing, Code: "INVALID_EDGE"}
	}
	b.fixed[from] = to
	return nil
}

// Branch declares from as a conditional node whose Update.Next selects its
// successor among targets. FINISH and WAIT_FOR_INPUT are always legal.
func (b *Builder) Branch(from string, targets ...string) error {
	if from == "" {
		return &EngineError{Message: "branch source cannot be empty", Code: "INVALID_EDGE"}
	}
	b.branches[from] = append(b.branches[from], targets...)
	return nil
}

// Compile validates the graph and returns an immutable Engine.
//
// Validation checks: option errors, a start node, every edge endpoint,
// at most one kind of outgoing edge per node, and slot declarations.
// The legal target set of each conditional node is computed here.
func (b *Builder) Compile() (*Engine, error) {
	if b.optErr != nil {
		return nil, b.optErr
	}
	if b.start == "" {
		return nil, &EngineError{Message: "start node not set (call StartAt before Compile)", Code: "NO_START_NODE"}
	}

	for from, to := range b.fixed {
		if _, ok := b.nodes[from]; !ok {
			return nil, &EngineError{Message: "edge source not found: " + from, Code: "NODE_NOT_FOUND"}
		}
		if _, ok := b.nodes[to]; !ok && !IsTerminal(to) {
			return nil, &EngineError{Message: "edge target not found: " + to, Code: "NODE_NOT_FOUND"}
		}
		if _, ok := b.branches[from]; ok {
			return nil, &EngineError{Message: "node " + from + " has both fixed and conditional edges", Code: "INVALID_EDGE"}
		}
	}

	legal := make(map[string]map[string]struct{}, len(b.branches))
	targets := make(map[string][]string, len(b.branches))
	for from, declared := range b.branches {
		if _, ok := b.nodes[from]; !ok {
			return nil, &EngineError{Message: "branch source not found: " + from, Code: "NODE_NOT_FOUND"}
		}
		if len(declared) == 0 {
			for _, name := range b.order {
				if name != from {
					declared = append(declared, name)
				}
			}
		}
		set := make(map[string]struct{}, len(declared)+2)
		list := make([]string, 0, len(declared)+2)
		for _, t := range declared {
			if _, ok := b.nodes[t]; !ok && !IsTerminal(t) {
				return nil, &EngineError{Message: "branch target not found: " + t, Code: "NODE_NOT_FOUND"}
			}
			if _, dup := set[t]; dup {
				continue
			}
			set[t] = struct{}{}
			list = append(list, t)
		}
		for _, t := range []string{Finish, WaitForInput} {
			if _, ok := set[t]; !ok {
				set[t] = struct{}{}
				list = append(list, t)
			}
		}
		legal[from] = set
		targets[from] = list
	}

	for name, reg := range b.nodes {
		for _, group := range []map[string]struct{}{reg.fields.reads, reg.fields.writes} {
			for slot := range group {
				if _, ok := b.slots[slot]; !ok {
					return nil, &EngineError{Message: "node " + name + " declares unknown slot " + slot, Code: "UNKNOWN_SLOT"}
				}
			}
		}
		if p := reg.fields.policy; p != nil && p.ErrorTarget != "" {
			if _, ok := b.nodes[p.ErrorTarget]; !ok && !IsTerminal(p.ErrorTarget) {
				return nil, &EngineError{Message: "error target not found: " + p.ErrorTarget, Code: "NODE_NOT_FOUND"}
			}
		}
	}

	opts := b.opts
	if opts.RecursionLimit == 0 {
		opts.RecursionLimit = DefaultRecursionLimit
	}
	if opts.Store == nil {
		opts.Store = store.NewMemStore[State]()
	}
	if opts.Emitter == nil {
		opts.Emitter = emit.NewNullEmitter()
	}
	if opts.Name == "" {
		opts.Name = "graph"
	}

	nodes := make(map[string]*registered, len(b.nodes))
	for name, reg := range b.nodes {
		nodes[name] = reg
	}
	fixed := make(map[string]string, len(b.fixed))
	for k, v := range b.fixed {
		fixed[k] = v
	}
	slots := make(map[string]Kind, len(b.slots))
	for k, v := range b.slots {
		slots[k] = v
	}
	order := append([]string(nil), b.order...)
	sort.Strings(order)

	return &Engine{
		opts:       opts,
		nodes:      nodes,
		order:      order,
		fixed:      fixed,
		legal:      legal,
		targets:    targets,
		slots:      slots,
		start:      b.start,
		supervisor: b.supervisor,
	}, nil
}
