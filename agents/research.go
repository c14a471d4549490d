package agents

import (
	"context"
	"regexp"

	"github.com/dshills/teamgraph/collab"
	"github.com/dshills/teamgraph/collab/repo"
	"github.com/dshills/teamgraph/graph"
)

// RepoLookup reports the metadata of the repository named in the request.
type RepoLookup struct {
	Repo *repo.Client
}

// Run implements graph.Node.
func (w *RepoLookup) Run(ctx context.Context, in graph.Input) graph.NodeResult {
	id, ok := repo.FindRepoID(in.Request)
	if !ok {
		return graph.Ok(graph.Say(in.Node, askForRepo))
	}
	meta, err := w.Repo.FetchMetadata(ctx, id.String())
	if err != nil {
		return graph.Fail(collab.Explain(id.String(), err))
	}
	return graph.Ok(graph.Say(in.Node, meta.Summary()))
}

var pathInRequest = regexp.MustCompile(`(?i)\b(?:path|dir|directory)\s*[:=]\s*["']?([A-Za-z0-9_.][A-Za-z0-9_./-]*)`)

// RepoLister lists one directory of the repository named in the request.
// A "path: <dir>" mention selects the directory; the root is the default.
type RepoLister struct {
	Repo *repo.Client
}

// Run implements graph.Node.
func (w *RepoLister) Run(ctx context.Context, in graph.Input) graph.NodeResult {
	id, ok := repo.FindRepoID(in.Request)
	if !ok {
		return graph.Ok(graph.Say(in.Node, askForRepo))
	}
	var path string
	if m := pathInRequest.FindStringSubmatch(in.Request); m != nil {
		path = m[1]
	}
	text, err := listDirText(ctx, w.Repo, id.String(), path)
	if err != nil {
		return graph.Fail(collab.Explain(id.String(), err))
	}
	return graph.Ok(graph.Say(in.Node, text))
}
