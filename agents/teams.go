package agents

import (
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/dshills/teamgraph/collab/repo"
	"github.com/dshills/teamgraph/collab/sandbox"
	"github.com/dshills/teamgraph/collab/search"
	"github.com/dshills/teamgraph/collab/workspace"
	"github.com/dshills/teamgraph/graph"
	"github.com/dshills/teamgraph/graph/model"
	"github.com/dshills/teamgraph/graph/tool"
)

// Team names.
const (
	ResearchTeam = "research"
	ProductTeam  = "product"
	DevTeam      = "dev"
)

// ResearchRecursionLimit is the research team's iteration cap.
const ResearchRecursionLimit = 100

// Deps carries the capabilities the teams are built from. Only the ones a
// team uses need to be set.
type Deps struct {
	// Model backs supervisors and model-driven workers. Nil requires a
	// Router for every supervisor and selects deterministic workers.
	Model model.ChatModel

	// ModelFor, when set, returns the model for a named agent, so callers
	// can meter usage per agent. It falls back to Model.
	ModelFor func(agent string) model.ChatModel

	Repo      *repo.Client
	Search    *search.Client
	Workspace *workspace.Store
	Sandbox   *sandbox.Runner
	Trimmer   *Trimmer
	Logger    *zap.Logger

	// Routers overrides the supervisor router of a team, keyed by team name.
	Routers map[string]graph.Router

	// SearchResults is the number of web results the Researcher reports.
	SearchResults int

	// Options are applied to every team before its own name and limits.
	Options []graph.Option
}

func (d Deps) chatModel(agent string) model.ChatModel {
	if d.ModelFor != nil {
		if m := d.ModelFor(agent); m != nil {
			return m
		}
	}
	return d.Model
}

func (d Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

func (d Deps) router(team, supervisor, prompt string) (graph.Router, error) {
	if r, ok := d.Routers[team]; ok && r != nil {
		return r, nil
	}
	m := d.chatModel(supervisor)
	if m == nil {
		return nil, errors.New(team + " team: no model or router configured for " + supervisor)
	}
	trimmer := d.Trimmer
	if trimmer == nil {
		trimmer = NewTrimmer(DefaultTokenBudget, d.logger())
	}
	return NewModelRouter(m, prompt, trimmer, d.logger().Named(team)), nil
}

func (d Deps) builder(team string, extra ...graph.Option) *graph.Builder {
	opts := append([]graph.Option(nil), d.Options...)
	opts = append(opts, extra...)
	opts = append(opts, graph.WithName(team))
	return graph.New(opts...)
}

// build runs the registration steps in order and compiles.
func build(b *graph.Builder, steps ...func() error) (*graph.Engine, error) {
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return b.Compile()
}

// NewResearchTeam assembles the repository research team: a supervisor that
// answers directly or delegates to SearchRepository and ListRepoFiles.
func NewResearchTeam(d Deps) (*graph.Engine, error) {
	if d.Repo == nil {
		return nil, errors.New("research team: a repository client is required")
	}
	router, err := d.router(ResearchTeam, "supervisor", researchPrompt)
	if err != nil {
		return nil, err
	}
	b := d.builder(ResearchTeam, graph.WithRecursionLimit(ResearchRecursionLimit))
	return build(b,
		func() error { return b.AddSupervisor("supervisor", router) },
		func() error { return b.Add("SearchRepository", &RepoLookup{Repo: d.Repo}) },
		func() error { return b.Add("ListRepoFiles", &RepoLister{Repo: d.Repo}) },
		func() error { return b.Connect("SearchRepository", "supervisor") },
		func() error { return b.Connect("ListRepoFiles", "supervisor") },
		func() error { return b.StartAt("supervisor") },
	)
}

// NewProductTeam assembles the product team. The research team is nested
// as the Research node and runs with its own isolated state.
func NewProductTeam(d Deps) (*graph.Engine, error) {
	if d.Repo == nil {
		return nil, errors.New("product team: a repository client is required")
	}
	router, err := d.router(ProductTeam, "ProductManager", productPrompt)
	if err != nil {
		return nil, err
	}
	research, err := NewResearchTeam(d)
	if err != nil {
		return nil, err
	}

	b := d.builder(ProductTeam)
	slots := []string{SlotCodeContext, SlotRelevantFiles, SlotSuggestedPackages, SlotTasks}
	workers := []string{"Context", "CodeAnalysis", "TaskManager", "Research"}
	steps := []func() error{
		func() error { return b.Declare(SlotCodeContext, graph.KindText) },
		func() error { return b.Declare(SlotRelevantFiles, graph.KindSet) },
		func() error { return b.Declare(SlotSuggestedPackages, graph.KindSet) },
		func() error { return b.Declare(SlotTasks, graph.KindTasks) },
		func() error { return b.AddSupervisor("ProductManager", router, graph.Reads(slots...)) },
		func() error {
			return b.Add("Context", &ContextAgent{
				Model:  d.chatModel("Context"),
				Repo:   d.Repo,
				Logger: d.logger().Named("context"),
			}, graph.Writes(SlotCodeContext, SlotRelevantFiles))
		},
		func() error {
			return b.Add("CodeAnalysis", &CodeAnalysisAgent{Model: d.chatModel("CodeAnalysis")},
				graph.Reads(SlotCodeContext, SlotRelevantFiles), graph.Writes(SlotSuggestedPackages))
		},
		func() error { return b.Add("TaskManager", TaskManager{}, graph.Writes(SlotTasks)) },
		func() error { return b.Add("Research", graph.SubGraph(research, nil, nil)) },
	}
	for _, w := range workers {
		w := w
		steps = append(steps, func() error { return b.Connect(w, "ProductManager") })
	}
	steps = append(steps, func() error { return b.StartAt("ProductManager") })
	return build(b, steps...)
}

// NewDevTeam assembles the development team. After FileManager saves a file
// control always returns to Coder; the other workers report back to the
// supervisor.
func NewDevTeam(d Deps) (*graph.Engine, error) {
	if d.Search == nil || d.Workspace == nil || d.Sandbox == nil {
		return nil, errors.New("dev team: search, workspace and sandbox are required")
	}
	router, err := d.router(DevTeam, "Supervisor", devPrompt)
	if err != nil {
		return nil, err
	}

	var researcher graph.Node = &WebResearcher{Search: d.Search, MaxResults: d.SearchResults}
	if m := d.chatModel("Researcher"); m != nil {
		researcher = &ToolAgent{
			Name:   "Researcher",
			Model:  m,
			System: researcherPrompt,
			Tools: tool.NewSet(
				SearchTool(d.Search, orDefault(d.SearchResults, DefaultSearchResults)),
				tool.NewFetchTool(1),
			),
			Logger: d.logger().Named("researcher"),
		}
	}

	fm := &FileManager{Workspace: d.Workspace}
	if m := d.chatModel("FileManager"); m != nil {
		fm.Agent = &ToolAgent{
			Name:   "FileManager",
			Model:  m,
			System: fileManagerPrompt,
			Tools: tool.NewSet(
				WriteFileTool(d.Workspace),
				ReadFileTool(d.Workspace),
				ListWorkspaceTool(d.Workspace),
			),
			Logger: d.logger().Named("file_manager"),
			Prompt: fileManagerTask,
		}
	}

	b := d.builder(DevTeam)
	return build(b,
		func() error { return b.AddSupervisor("Supervisor", router) },
		func() error { return b.Add("Researcher", researcher) },
		func() error { return b.Add("Coder", &Coder{Model: d.chatModel("Coder"), Trimmer: d.Trimmer}) },
		func() error { return b.Add("FileManager", fm) },
		func() error { return b.Add("Tester", &Tester{Workspace: d.Workspace, Sandbox: d.Sandbox}) },
		func() error { return b.Connect("Researcher", "Supervisor") },
		func() error { return b.Connect("Coder", "Supervisor") },
		func() error { return b.Connect("FileManager", "Coder") },
		func() error { return b.Connect("Tester", "Supervisor") },
		func() error { return b.StartAt("Supervisor") },
	)
}

// Team describes a buildable team.
type Team struct {
	Name        string
	Description string
	Build       func(Deps) (*graph.Engine, error)
}

var catalog = map[string]Team{
	ResearchTeam: {
		Name:        ResearchTeam,
		Description: "Answers questions about GitHub repositories: metadata and directory listings.",
		Build:       NewResearchTeam,
	},
	ProductTeam: {
		Name:        ProductTeam,
		Description: "Gathers repository context, plans changes and tracks tasks; nests the research team.",
		Build:       NewProductTeam,
	},
	DevTeam: {
		Name:        DevTeam,
		Description: "Researches, writes, saves and runs code in a sandboxed workspace.",
		Build:       NewDevTeam,
	},
}

// Teams returns the available teams sorted by name.
func Teams() []Team {
	out := make([]Team, 0, len(catalog))
	for _, t := range catalog {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup returns the team registered under name.
func Lookup(name string) (Team, bool) {
	t, ok := catalog[name]
	return t, ok
}
