package repo

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/teamgraph/collab"
)

// fakeGitHub serves a small repository tree for acme/widgets.
func fakeGitHub(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	var requests int32
	tree := map[string][]Entry{
		"":              {{Path: "README.md", Type: "file"}, {Path: "go.mod", Type: "file"}, {Path: "cmd", Type: "dir"}, {Path: "internal", Type: "dir"}},
		"cmd":           {{Path: "cmd/main.go", Type: "file"}},
		"internal":      {{Path: "internal/a.go", Type: "file"}, {Path: "internal/deep", Type: "dir"}},
		"internal/deep": {{Path: "internal/deep/b.go", Type: "file"}},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(Metadata{FullName: "acme/widgets", Description: "Widgets", DefaultBranch: "main", Stars: 7})
	})
	mux.HandleFunc("/repos/acme/widgets/contents/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		path := strings.TrimPrefix(r.URL.Path, "/repos/acme/widgets/contents/")
		if path == "README.md" {
			_ = json.NewEncoder(w).Encode(map[string]string{
				"type":     "file",
				"encoding": "base64",
				"content":  base64.StdEncoding.EncodeToString([]byte("# Widgets\n")),
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
	})
	mux.HandleFunc("/repos/acme/widgets/contents", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		_ = json.NewEncoder(w).Encode(tree[""])
	})
	mux.HandleFunc("/repos/acme/secret", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"Resource not accessible"}`))
	})
	mux.HandleFunc("/repos/acme/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found"}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &requests
}

func TestParseRepoID(t *testing.T) {
	valid := map[string]string{
		"acme/widgets":                    "acme/widgets",
		"  acme/widgets ":                 "acme/widgets",
		"github.com/acme/widgets":         "acme/widgets",
		"https://github.com/acme/wid.git": "acme/wid",
		"a-b/c_d.e":                       "a-b/c_d.e",
	}
	for in, want := range valid {
		id, err := ParseRepoID(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, id.String())
	}

	for _, in := range []string{"", "acme", "acme/", "/widgets", "a/b/c", "acme/..", "-bad/x"} {
		_, err := ParseRepoID(in)
		assert.ErrorIs(t, err, ErrInvalidRepoID, in)
	}
}

func TestFindRepoID(t *testing.T) {
	id, ok := FindRepoID("Can you look at https://github.com/acme/widgets and add docs?")
	require.True(t, ok)
	assert.Equal(t, "acme/widgets", id.String())

	id, ok = FindRepoID("check acme/widgets.")
	require.True(t, ok)
	assert.Equal(t, "acme/widgets", id.String())

	_, ok = FindRepoID("no repository mentioned here")
	assert.False(t, ok)
}

func TestFetchMetadata(t *testing.T) {
	srv, _ := fakeGitHub(t)
	c := NewClient("tok", WithBaseURL(srv.URL))

	meta, err := c.FetchMetadata(context.Background(), "acme/widgets")
	require.NoError(t, err)
	assert.Equal(t, "acme/widgets", meta.FullName)
	assert.Contains(t, meta.Summary(), "Stars: 7")

	_, err = c.FetchMetadata(context.Background(), "not a repo")
	assert.ErrorIs(t, err, ErrInvalidRepoID)
}

func TestErrorCategories(t *testing.T) {
	srv, _ := fakeGitHub(t)
	c := NewClient("tok", WithBaseURL(srv.URL))
	ctx := context.Background()

	_, err := c.FetchMetadata(ctx, "acme/missing")
	require.Error(t, err)
	assert.Equal(t, collab.NotFound, collab.CategoryOf(err))
	assert.True(t, IsNotFound(err))

	_, err = c.FetchMetadata(ctx, "acme/secret")
	require.Error(t, err)
	assert.Equal(t, collab.AccessDenied, collab.CategoryOf(err))
	assert.True(t, IsAccessDenied(err))

	_, err = c.ListDir(ctx, "acme/widgets", "nope")
	assert.True(t, IsNotFound(err))
}

func TestReadFile(t *testing.T) {
	srv, _ := fakeGitHub(t)
	c := NewClient("tok", WithBaseURL(srv.URL))

	content, err := c.ReadFile(context.Background(), "acme/widgets", "README.md")
	require.NoError(t, err)
	assert.Equal(t, "# Widgets\n", content)
}

func TestListFiles(t *testing.T) {
	srv, _ := fakeGitHub(t)
	ctx := context.Background()

	t.Run("full tree", func(t *testing.T) {
		c := NewClient("tok", WithBaseURL(srv.URL))
		listing, err := c.ListFiles(ctx, "acme/widgets", "")
		require.NoError(t, err)
		assert.False(t, listing.Truncated)
		assert.Equal(t, []string{"README.md", "cmd/main.go", "go.mod", "internal/a.go", "internal/deep/b.go"}, listing.Files)
	})

	t.Run("depth limit", func(t *testing.T) {
		c := NewClient("tok", WithBaseURL(srv.URL), WithLimits(1, 100))
		listing, err := c.ListFiles(ctx, "acme/widgets", "")
		require.NoError(t, err)
		assert.True(t, listing.Truncated)
		assert.NotContains(t, listing.Files, "internal/deep/b.go")
		assert.Contains(t, listing.Files, "internal/a.go")
	})

	t.Run("entry limit", func(t *testing.T) {
		c := NewClient("tok", WithBaseURL(srv.URL), WithLimits(5, 3))
		listing, err := c.ListFiles(ctx, "acme/widgets", "")
		require.NoError(t, err)
		assert.True(t, listing.Truncated)
		assert.Len(t, listing.Files, 3)
	})

	t.Run("subdirectory", func(t *testing.T) {
		c := NewClient("tok", WithBaseURL(srv.URL), WithConcurrency(1))
		listing, err := c.ListFiles(ctx, "acme/widgets", "internal")
		require.NoError(t, err)
		assert.Equal(t, []string{"internal/a.go", "internal/deep/b.go"}, listing.Files)
	})
}

func TestListFilesDirectoryBudget(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		if r.URL.Path != "/repos/acme/wide/contents" {
			_ = json.NewEncoder(w).Encode([]Entry{})
			return
		}
		entries := make([]Entry, 300)
		for i := range entries {
			entries[i] = Entry{Path: fmt.Sprintf("d%03d", i), Type: "dir"}
		}
		_ = json.NewEncoder(w).Encode(entries)
	}))
	t.Cleanup(srv.Close)

	t.Run("explicit budget", func(t *testing.T) {
		atomic.StoreInt32(&requests, 0)
		c := NewClient("tok", WithBaseURL(srv.URL), WithLimits(5, 10), WithMaxDirs(20), WithRateLimit(1000, 1000))
		listing, err := c.ListFiles(context.Background(), "acme/wide", "")
		require.NoError(t, err)
		assert.True(t, listing.Truncated)
		assert.Empty(t, listing.Files)
		assert.Equal(t, int32(20), atomic.LoadInt32(&requests))
	})

	t.Run("default budget", func(t *testing.T) {
		atomic.StoreInt32(&requests, 0)
		c := NewClient("tok", WithBaseURL(srv.URL), WithLimits(5, 10), WithRateLimit(1000, 1000))
		listing, err := c.ListFiles(context.Background(), "acme/wide", "")
		require.NoError(t, err)
		assert.True(t, listing.Truncated)
		assert.LessOrEqual(t, atomic.LoadInt32(&requests), int32(200))
	})
}

func TestRateLimiterHonoursContext(t *testing.T) {
	srv, _ := fakeGitHub(t)
	c := NewClient("tok", WithBaseURL(srv.URL), WithRateLimit(0.001, 1))
	ctx := context.Background()

	_, err := c.FetchMetadata(ctx, "acme/widgets")
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = c.FetchMetadata(cancelled, "acme/widgets")
	assert.Error(t, err)
}
