package agents

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/dshills/teamgraph/collab/repo"
	"github.com/dshills/teamgraph/collab/sandbox"
	"github.com/dshills/teamgraph/collab/search"
	"github.com/dshills/teamgraph/collab/workspace"
	"github.com/dshills/teamgraph/graph"
)

// fakeGitHub serves acme/widgets, a private acme/secret and nothing else.
func fakeGitHub(t *testing.T) *repo.Client {
	t.Helper()
	tree := map[string][]repo.Entry{
		"":    {{Path: "README.md", Type: "file"}, {Path: "go.mod", Type: "file"}, {Path: "main.go", Type: "file"}, {Path: "cmd", Type: "dir"}},
		"cmd": {{Path: "cmd/tool.go", Type: "file"}},
	}
	files := map[string]string{
		"README.md": "# Widgets\nMakes widgets.\n",
		"go.mod":    "module github.com/acme/widgets\n",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(repo.Metadata{FullName: "acme/widgets", Description: "Widgets", DefaultBranch: "main", Language: "Go", Stars: 7})
	})
	serveContents := func(w http.ResponseWriter, r *http.Request) {
		path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/repos/acme/widgets/contents"), "/")
		if content, ok := files[path]; ok {
			_ = json.NewEncoder(w).Encode(map[string]string{
				"type":     "file",
				"encoding": "base64",
				"content":  base64.StdEncoding.EncodeToString([]byte(content)),
			})
			return
		}
		entries, ok := tree[path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Not Found"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(entries)
	}
	mux.HandleFunc("/repos/acme/widgets/contents", serveContents)
	mux.HandleFunc("/repos/acme/widgets/contents/", serveContents)
	mux.HandleFunc("/repos/acme/secret", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"Resource not accessible"}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found"}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return repo.NewClient("tok", repo.WithBaseURL(srv.URL), repo.WithRateLimit(1000, 100))
}

// fakeSearch answers every query with three scored results.
func fakeSearch(t *testing.T) *search.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query string `json:"query"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{"title": "Result for " + req.Query, "url": "https://a.example", "content": "first", "score": 0.9},
				{"title": "Second", "url": "https://b.example", "content": "second", "score": 0.5},
				{"title": "Third", "url": "https://c.example", "content": "third", "score": 0.1},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return search.NewClient(search.Config{Endpoint: srv.URL, RatePerSecond: 1000}, nil)
}

func tempWorkspace(t *testing.T) *workspace.Store {
	t.Helper()
	ws, err := workspace.New(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("workspace: %v", err)
	}
	return ws
}

func shSandbox(t *testing.T) *sandbox.Runner {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	cfg := sandbox.DefaultConfig()
	cfg.Interpreter = "sh"
	cfg.Extension = ".sh"
	return sandbox.New(cfg, zap.NewNop())
}

// input builds a node input over state addressed to node.
func input(node, request string, state graph.State) graph.Input {
	return graph.Input{RunID: "test", Node: node, State: state, Request: request}
}

// lastMessage returns the content of the final message of a result.
func lastMessage(t *testing.T, res graph.NodeResult) string {
	t.Helper()
	if res.Err != nil {
		t.Fatalf("unexpected node error: %v", res.Err)
	}
	if len(res.Delta.Messages) == 0 {
		t.Fatal("no message in delta")
	}
	return res.Delta.Messages[len(res.Delta.Messages)-1].Content
}

// authors lists the author of every AI message in order.
func authors(s graph.State) []string {
	var out []string
	for _, m := range s.Messages {
		if m.Role == graph.RoleAI {
			out = append(out, m.Author)
		}
	}
	return out
}
