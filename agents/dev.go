package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/teamgraph/collab"
	"github.com/dshills/teamgraph/collab/sandbox"
	"github.com/dshills/teamgraph/collab/search"
	"github.com/dshills/teamgraph/collab/workspace"
	"github.com/dshills/teamgraph/graph"
	"github.com/dshills/teamgraph/graph/model"
)

// DefaultSearchResults is the number of results the Researcher reports.
const DefaultSearchResults = 5

// WebResearcher answers with the top web search results for the request.
// It backs the Researcher when no model is configured.
type WebResearcher struct {
	Search     *search.Client
	MaxResults int
}

// Run implements graph.Node.
func (w *WebResearcher) Run(ctx context.Context, in graph.Input) graph.NodeResult {
	if w.Search == nil {
		return graph.Fail(errors.New("no search client configured"))
	}
	query := strings.TrimSpace(in.Request)
	if query == "" {
		return graph.Ok(graph.Say(in.Node, "Nothing to search for."))
	}
	results, err := w.Search.Search(ctx, query, orDefault(w.MaxResults, DefaultSearchResults))
	if err != nil {
		return graph.Fail(collab.Explain("the search service", err))
	}
	return graph.Ok(graph.Say(in.Node, search.Format(results)))
}

// Coder produces code for the request.
//
// With a model the code is generated from the conversation. Without one the
// fenced blocks of the request are used, or the latest code of the run.
type Coder struct {
	Model   model.ChatModel
	Trimmer *Trimmer
}

// Run implements graph.Node.
func (w *Coder) Run(ctx context.Context, in graph.Input) graph.NodeResult {
	if w.Model != nil {
		msgs := []model.Message{model.System(coderPrompt)}
		msgs = append(msgs, History(in.State)...)
		msgs = append(msgs, model.User("Task: "+in.Request))
		out, err := w.Model.Chat(ctx, w.Trimmer.Trim(msgs), nil)
		if err != nil {
			return graph.Fail(err)
		}
		text := strings.TrimSpace(out.Text)
		blocks := ExtractCode(text)
		if len(blocks) == 0 {
			if text == "" {
				return graph.Fail(errors.New("model returned no code"))
			}
			return graph.Ok(graph.Say(in.Node, CodeBlock{Code: text}.Fenced()))
		}
		return graph.Ok(graph.Say(in.Node, blocks[len(blocks)-1].Fenced()))
	}

	if blocks := ExtractCode(in.Request); len(blocks) > 0 {
		return graph.Ok(graph.Say(in.Node, blocks[len(blocks)-1].Fenced()))
	}
	if code, ok := LatestCode(in.State); ok {
		return graph.Ok(graph.Say(in.Node, "Latest code:\n"+code.Fenced()))
	}
	return graph.Ok(graph.Say(in.Node, "No code found. Please include the code in a fenced block."))
}

// FileManager saves the latest code block of the run to the workspace.
// When Agent is set the model chooses the file and writes it with tools.
type FileManager struct {
	Workspace *workspace.Store
	Agent     *ToolAgent
}

// Run implements graph.Node.
func (w *FileManager) Run(ctx context.Context, in graph.Input) graph.NodeResult {
	if w.Agent != nil {
		return w.Agent.Run(ctx, in)
	}
	if w.Workspace == nil {
		return graph.Fail(errors.New("no workspace configured"))
	}
	code, ok := LatestCode(in.State)
	if !ok {
		return graph.Fail(errors.New("no code block to write"))
	}
	name, ok := FileNameIn(in.Request)
	if !ok {
		name = DefaultFileName(code.Lang)
	}
	if err := w.Workspace.Write(name, code.Code); err != nil {
		return graph.Fail(err)
	}
	return graph.Ok(graph.Say(in.Node,
		fmt.Sprintf("File written successfully to %s (%d bytes).", name, len(code.Code))))
}

// fileManagerTask appends the code to save to the request.
func fileManagerTask(in graph.Input) string {
	task := in.Request
	if code, ok := LatestCode(in.State); ok {
		task += "\n\nCode to save:\n" + code.Fenced()
	}
	return task
}

// Tester runs a workspace file in the sandbox and reports the outcome.
type Tester struct {
	Workspace *workspace.Store
	Sandbox   *sandbox.Runner
}

// Run implements graph.Node.
func (w *Tester) Run(ctx context.Context, in graph.Input) graph.NodeResult {
	if w.Workspace == nil || w.Sandbox == nil {
		return graph.Fail(errors.New("tester needs a workspace and a sandbox"))
	}
	name, ok := FileNameIn(in.Request)
	if !ok {
		files, err := w.Workspace.List()
		if err != nil {
			return graph.Fail(err)
		}
		switch len(files) {
		case 0:
			return graph.Ok(graph.Say(in.Node, "There is no file in the workspace to test."))
		case 1:
			name = files[0]
		default:
			return graph.Ok(graph.Say(in.Node,
				"Which file should I test? Workspace files: "+strings.Join(files, ", ")))
		}
	}

	code, err := w.Workspace.Read(name)
	if err != nil {
		return graph.Fail(err)
	}
	res, err := w.Sandbox.Run(ctx, sandbox.Request{Code: code})
	if err != nil {
		return graph.Fail(err)
	}
	return graph.Ok(graph.Say(in.Node, fmt.Sprintf("Tested %s:\n%s", name, res.Report())))
}
