package agents

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/teamgraph/collab"
	"github.com/dshills/teamgraph/collab/repo"
	"github.com/dshills/teamgraph/graph"
	"github.com/dshills/teamgraph/graph/model"
)

// Product team slots.
const (
	SlotCodeContext       = "code_context"
	SlotRelevantFiles     = "relevant_files"
	SlotSuggestedPackages = "suggested_packages"
	SlotTasks             = "tasks"
)

// Context gathering defaults.
const (
	DefaultMaxKeyFiles  = 3
	DefaultMaxRelevant  = 50
	DefaultMaxFileBytes = 4000
)

// keyFiles are read, in this order, when present at the repository root.
var keyFiles = []string{
	"README.md", "README", "README.rst",
	"go.mod", "package.json", "pyproject.toml", "requirements.txt",
	"Cargo.toml", "setup.py", "pom.xml", "Makefile",
}

// ContextAgent gathers repository context: metadata, the file list and the
// contents of a few key files. It writes code_context and relevant_files.
type ContextAgent struct {
	Model        model.ChatModel
	Repo         *repo.Client
	MaxKeyFiles  int
	MaxRelevant  int
	MaxFileBytes int
	Logger       *zap.Logger
}

// Run implements graph.Node.
func (w *ContextAgent) Run(ctx context.Context, in graph.Input) graph.NodeResult {
	if w.Repo == nil {
		return graph.Fail(errors.New("no repository client configured"))
	}
	id, ok := w.inferRepo(ctx, in.Request)
	if !ok {
		return graph.Ok(graph.Say(in.Node, askForRepo))
	}
	name := id.String()

	meta, err := w.Repo.FetchMetadata(ctx, name)
	if err != nil {
		return graph.Fail(collab.Explain(name, err))
	}
	listing, err := w.Repo.ListFiles(ctx, name, "")
	if err != nil {
		return graph.Fail(collab.Explain(name, err))
	}

	maxRelevant := orDefault(w.MaxRelevant, DefaultMaxRelevant)
	relevant := listing.Files
	if len(relevant) > maxRelevant {
		relevant = relevant[:maxRelevant]
	}

	var b strings.Builder
	b.WriteString(meta.Summary())
	fmt.Fprintf(&b, "\n\nFiles (%d", len(listing.Files))
	if listing.Truncated {
		b.WriteString(", listing truncated")
	}
	b.WriteString("):\n")
	for _, f := range relevant {
		b.WriteString(f + "\n")
	}

	read := w.readKeyFiles(ctx, name, listing.Files, &b)
	summary := fmt.Sprintf("Gathered context for %s: %d files", name, len(listing.Files))
	if len(read) > 0 {
		summary += ", read " + strings.Join(read, ", ")
	}

	delta := graph.Say(in.Node, summary+".").
		With(SlotCodeContext, graph.TextSlot(b.String())).
		With(SlotRelevantFiles, graph.SetSlot(relevant...))
	return graph.Ok(delta)
}

func (w *ContextAgent) readKeyFiles(ctx context.Context, name string, files []string, b *strings.Builder) []string {
	logger := w.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := orDefault(w.MaxKeyFiles, DefaultMaxKeyFiles)
	clip := orDefault(w.MaxFileBytes, DefaultMaxFileBytes)

	present := make(map[string]string, len(files))
	for _, f := range files {
		if !strings.Contains(f, "/") {
			present[strings.ToLower(f)] = f
		}
	}

	var read []string
	for _, candidate := range keyFiles {
		if len(read) >= limit {
			break
		}
		f, ok := present[strings.ToLower(candidate)]
		if !ok {
			continue
		}
		content, err := w.Repo.ReadFile(ctx, name, f)
		if err != nil {
			logger.Warn("skipping key file", zap.String("repo", name), zap.String("file", f), zap.Error(err))
			continue
		}
		if len(content) > clip {
			content = content[:clip] + "\n... (truncated)"
		}
		fmt.Fprintf(b, "\n--- %s ---\n%s\n", f, content)
		read = append(read, f)
	}
	return read
}

// inferRepo asks the model for the repository name and falls back to a
// pattern match over the request.
func (w *ContextAgent) inferRepo(ctx context.Context, request string) (repo.ID, bool) {
	if w.Model != nil {
		out, err := w.Model.Chat(ctx, []model.Message{
			model.System(repoInferencePrompt),
			model.User(request),
		}, nil)
		if err == nil {
			text := strings.Trim(strings.TrimSpace(out.Text), "`'\"")
			if id, err := repo.ParseRepoID(text); err == nil {
				return id, true
			}
		} else if w.Logger != nil {
			w.Logger.Warn("repository inference failed", zap.Error(err))
		}
	}
	return repo.FindRepoID(request)
}

// CodeAnalysisAgent turns the gathered context into an implementation plan
// and records the third-party packages the plan calls for.
type CodeAnalysisAgent struct {
	Model model.ChatModel
}

// Run implements graph.Node.
func (w *CodeAnalysisAgent) Run(ctx context.Context, in graph.Input) graph.NodeResult {
	if w.Model == nil {
		return graph.Fail(errors.New("no model configured for code analysis"))
	}
	codeContext := in.State.Text(SlotCodeContext)
	if codeContext == "" {
		return graph.Ok(graph.Say(in.Node, "No code context is available yet. Gather repository context first."))
	}

	prompt := fmt.Sprintf("Code context:\n%s\n\nRelevant files:\n%s\n\nRequest: %s",
		codeContext, strings.Join(in.State.Items(SlotRelevantFiles), "\n"), in.Request)
	out, err := w.Model.Chat(ctx, []model.Message{
		model.System(codeAnalysisPrompt),
		model.User(prompt),
	}, nil)
	if err != nil {
		return graph.Fail(err)
	}

	plan := strings.TrimSpace(out.Text)
	if plan == "" {
		plan = "No plan produced."
	}
	delta := graph.Say(in.Node, plan)
	if pkgs := ParsePackages(plan); len(pkgs) > 0 {
		delta = delta.With(SlotSuggestedPackages, graph.SetSlot(pkgs...))
	}
	return graph.Ok(delta)
}

// ParsePackages collects the comma separated names of every "PACKAGES:" line.
func ParsePackages(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimLeft(strings.TrimSpace(line), "-*# ")
		line = strings.Trim(line, "*")
		if len(line) < 9 || !strings.EqualFold(line[:9], "PACKAGES:") {
			continue
		}
		for _, p := range strings.Split(line[9:], ",") {
			p = strings.Trim(p, " \t`*")
			if p == "" || strings.EqualFold(p, "none") {
				continue
			}
			out = append(out, p)
		}
	}
	return out
}

var statusRequest = regexp.MustCompile(`(?is)^\s*status\s+(.+?)\s*:\s*([a-z_ ]+?)\s*$`)

// TaskManager tracks tasks in the tasks slot.
//
// A request of the form "status <task>: <status>" updates a task. Any other
// request is checked against the existing tasks and added when no task
// contains it.
type TaskManager struct{}

// Run implements graph.Node.
func (TaskManager) Run(_ context.Context, in graph.Input) graph.NodeResult {
	req := strings.TrimSpace(in.Request)
	if req == "" {
		return graph.Ok(graph.Say(in.Node, "No task given."))
	}
	tasks := in.State.Tasks(SlotTasks)

	if m := statusRequest.FindStringSubmatch(req); m != nil {
		status, ok := graph.ParseTaskStatus(m[2])
		if !ok {
			return graph.Ok(graph.Say(in.Node,
				fmt.Sprintf("Unknown status '%s'. Use todo, in_progress or done.", m[2])))
		}
		updated, found := graph.UpdateTaskStatus(tasks, m[1], status)
		if !found {
			return graph.Ok(graph.Say(in.Node, fmt.Sprintf("Task '%s' not found.", m[1])))
		}
		t, _ := graph.FindTask(updated, m[1])
		text := fmt.Sprintf("Status of task '%s' updated to '%s'.", t.Description, status)
		return graph.Ok(graph.Say(in.Node, text+taskList(updated)).
			With(SlotTasks, graph.TaskSlot(graph.Task{ID: t.ID, Description: t.Description, Status: status})))
	}

	if t, ok := graph.FindTask(tasks, req); ok {
		text := fmt.Sprintf("Matching task found: [%s] %s", t.Status, t.Description)
		return graph.Ok(graph.Say(in.Node, text+taskList(tasks)))
	}

	added, _ := graph.AddTask(tasks, req)
	return graph.Ok(graph.Say(in.Node, "New task added: "+req+taskList(added)).
		With(SlotTasks, graph.TaskSlot(graph.NewTask(req))))
}

func taskList(tasks []graph.Task) string {
	if len(tasks) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\nTasks:")
	for _, t := range tasks {
		fmt.Fprintf(&b, "\n  - [%s] %s", t.Status, t.Description)
	}
	return b.String()
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
