package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/teamgraph/collab"
	"github.com/dshills/teamgraph/collab/repo"
	"github.com/dshills/teamgraph/collab/sandbox"
	"github.com/dshills/teamgraph/collab/search"
	"github.com/dshills/teamgraph/collab/workspace"
	"github.com/dshills/teamgraph/graph/tool"
)

// SearchTool exposes web search to a model.
func SearchTool(c *search.Client, maxResults int) tool.Tool {
	return tool.New("web_search", "Search the web for current information.",
		tool.Object(tool.Props{"query": tool.String("Search query")}, "query"),
		func(ctx context.Context, in map[string]interface{}) (string, error) {
			results, err := c.Search(ctx, tool.Arg(in, "query"), maxResults)
			if err != nil {
				return "", err
			}
			return search.Format(results), nil
		})
}

// WriteFileTool exposes workspace writes to a model.
func WriteFileTool(ws *workspace.Store) tool.Tool {
	return tool.New("write_file", "Write a file to the workspace directory.",
		tool.Object(tool.Props{
			"file_path": tool.String("Path relative to the workspace root"),
			"text":      tool.String("File content"),
		}, "file_path", "text"),
		func(_ context.Context, in map[string]interface{}) (string, error) {
			path := tool.Arg(in, "file_path")
			text := tool.Arg(in, "text")
			if err := ws.Write(path, text); err != nil {
				return "", err
			}
			return fmt.Sprintf("File written successfully to %s.", path), nil
		})
}

// ReadFileTool exposes workspace reads to a model.
func ReadFileTool(ws *workspace.Store) tool.Tool {
	return tool.New("read_file", "Read a file from the workspace directory.",
		tool.Object(tool.Props{"file_path": tool.String("Path relative to the workspace root")}, "file_path"),
		func(_ context.Context, in map[string]interface{}) (string, error) {
			return ws.Read(tool.Arg(in, "file_path"))
		})
}

// ListWorkspaceTool lists the workspace files.
func ListWorkspaceTool(ws *workspace.Store) tool.Tool {
	return tool.New("list_workspace", "List the files in the workspace directory.",
		tool.Object(tool.Props{}),
		func(context.Context, map[string]interface{}) (string, error) {
			files, err := ws.List()
			if err != nil {
				return "", err
			}
			if len(files) == 0 {
				return "The workspace is empty.", nil
			}
			return strings.Join(files, "\n"), nil
		})
}

// RunCodeTool exposes the sandbox to a model.
func RunCodeTool(r *sandbox.Runner) tool.Tool {
	return tool.New("run_code", "Execute code and return its output.",
		tool.Object(tool.Props{"code": tool.String("Source code to run")}, "code"),
		func(ctx context.Context, in map[string]interface{}) (string, error) {
			res, err := r.Run(ctx, sandbox.Request{Code: tool.Arg(in, "code")})
			if err != nil {
				return "", err
			}
			return res.Report(), nil
		})
}

// RepoMetadataTool looks up a repository.
func RepoMetadataTool(c *repo.Client) tool.Tool {
	return tool.New("fetch_repository", "Fetch information about a GitHub repository.",
		tool.Object(tool.Props{"repo_name": tool.String("Repository as owner/repo")}, "repo_name"),
		func(ctx context.Context, in map[string]interface{}) (string, error) {
			name := tool.Arg(in, "repo_name")
			meta, err := c.FetchMetadata(ctx, name)
			if err != nil {
				return "", collab.Explain(name, err)
			}
			return meta.Summary(), nil
		})
}

// RepoListTool lists one directory of a repository.
func RepoListTool(c *repo.Client) tool.Tool {
	return tool.New("list_files", "List the files of one directory in a GitHub repository.",
		tool.Object(tool.Props{
			"repo_name": tool.String("Repository as owner/repo"),
			"path":      tool.String("Directory path, empty for the root"),
		}, "repo_name"),
		func(ctx context.Context, in map[string]interface{}) (string, error) {
			name := tool.Arg(in, "repo_name")
			text, err := listDirText(ctx, c, name, tool.Arg(in, "path"))
			if err != nil {
				return "", collab.Explain(name, err)
			}
			return text, nil
		})
}

func listDirText(ctx context.Context, c *repo.Client, repoID, path string) (string, error) {
	if c == nil {
		return "", errors.New("no repository client configured")
	}
	entries, err := c.ListDir(ctx, repoID, path)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "No files found in this repository or directory.", nil
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			lines = append(lines, e.Path+"/ (directory)")
		} else {
			lines = append(lines, e.Path)
		}
	}
	return strings.Join(lines, "\n"), nil
}
