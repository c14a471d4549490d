// Package repo browses source repositories through the GitHub REST API.
package repo

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dshills/teamgraph/collab"
)

const service = "github"

// DefaultBaseURL is the public GitHub API.
const DefaultBaseURL = "https://api.github.com"

// ErrInvalidRepoID is returned for identifiers not of the form owner/repo.
var ErrInvalidRepoID = errors.New("repository must be in the form owner/repo")

var (
	repoIDPattern = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,38})/[A-Za-z0-9._-]{1,100}$`)
	repoIDInText  = regexp.MustCompile(`(?:github\.com/)?\b([A-Za-z0-9](?:[A-Za-z0-9-]{0,38})/[A-Za-z0-9._-]{1,100})`)
)

// ID identifies a repository.
type ID struct {
	Owner string
	Name  string
}

// String returns owner/name.
func (id ID) String() string {
	return id.Owner + "/" + id.Name
}

// ParseRepoID validates s as owner/repo. Surrounding whitespace, a
// github.com prefix and a trailing ".git" are tolerated.
func ParseRepoID(s string) (ID, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "github.com/")
	s = strings.TrimSuffix(strings.TrimSuffix(s, "/"), ".git")
	if !repoIDPattern.MatchString(s) {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidRepoID, s)
	}
	owner, name, _ := strings.Cut(s, "/")
	if name == "." || name == ".." {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidRepoID, s)
	}
	return ID{Owner: owner, Name: name}, nil
}

// FindRepoID returns the first owner/repo mention in free text.
func FindRepoID(text string) (ID, bool) {
	for _, m := range repoIDInText.FindAllStringSubmatch(text, -1) {
		candidate := strings.TrimRight(m[1], ".,;:!?)")
		if id, err := ParseRepoID(candidate); err == nil {
			return id, true
		}
	}
	return ID{}, false
}

// Metadata describes a repository.
type Metadata struct {
	FullName      string   `json:"full_name"`
	Description   string   `json:"description"`
	DefaultBranch string   `json:"default_branch"`
	Language      string   `json:"language"`
	Stars         int      `json:"stargazers_count"`
	Topics        []string `json:"topics"`
	HTMLURL       string   `json:"html_url"`
	Private       bool     `json:"private"`
}

// Summary renders the metadata as a short paragraph.
func (m Metadata) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Repository %s", m.FullName)
	if m.Description != "" {
		fmt.Fprintf(&b, ": %s", m.Description)
	}
	fmt.Fprintf(&b, "\nDefault branch: %s", m.DefaultBranch)
	if m.Language != "" {
		fmt.Fprintf(&b, "\nLanguage: %s", m.Language)
	}
	fmt.Fprintf(&b, "\nStars: %d", m.Stars)
	if len(m.Topics) > 0 {
		fmt.Fprintf(&b, "\nTopics: %s", strings.Join(m.Topics, ", "))
	}
	return b.String()
}

// Entry is one item of a directory listing.
type Entry struct {
	Path string `json:"path"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool { return e.Type == "dir" }

// Client is a rate-limited GitHub contents client.
//
// Example:
//
//	c := repo.NewClient(os.Getenv("GITHUB_TOKEN"), repo.WithLimits(4, 500))
//	meta, err := c.FetchMetadata(ctx, "dshills/teamgraph")
//	if repo.IsNotFound(err) { ... }
type Client struct {
	baseURL     string
	token       string
	http        *http.Client
	limiter     *rate.Limiter
	logger      *zap.Logger
	maxDepth    int
	maxEntries  int
	maxDirs     int
	concurrency int
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root, such as GitHub Enterprise or a test server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRateLimit throttles requests to perSecond with the given burst.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithLimits bounds recursive listings: depth below the start path and the
// total number of files returned.
func WithLimits(maxDepth, maxEntries int) Option {
	return func(c *Client) {
		c.maxDepth = maxDepth
		c.maxEntries = maxEntries
	}
}

// WithMaxDirs bounds how many directories a recursive listing requests.
// Zero removes the bound.
func WithMaxDirs(n int) Option {
	return func(c *Client) { c.maxDirs = n }
}

// WithConcurrency sets how many directories of one level are listed at once.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// NewClient creates a client. An empty token sends unauthenticated requests.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		token:       token,
		http:        &http.Client{Timeout: 30 * time.Second},
		limiter:     rate.NewLimiter(rate.Limit(10), 10),
		logger:      zap.NewNop(),
		maxDepth:    5,
		maxEntries:  1000,
		maxDirs:     200,
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "repo"))
	return c
}

// IsNotFound reports whether err is a not-found failure.
func IsNotFound(err error) bool { return collab.CategoryOf(err) == collab.NotFound }

// IsAccessDenied reports whether err is an access-denied failure.
func IsAccessDenied(err error) bool { return collab.CategoryOf(err) == collab.AccessDenied }

// FetchMetadata returns the repository's metadata.
func (c *Client) FetchMetadata(ctx context.Context, repoID string) (Metadata, error) {
	id, err := ParseRepoID(repoID)
	if err != nil {
		return Metadata{}, err
	}
	var meta Metadata
	if err := c.get(ctx, "/repos/"+id.String(), &meta); err != nil {
		return Metadata{}, err
	}
	return meta, nil
}

// ListDir returns the entries of one directory. An empty path is the root.
func (c *Client) ListDir(ctx context.Context, repoID, path string) ([]Entry, error) {
	id, err := ParseRepoID(repoID)
	if err != nil {
		return nil, err
	}
	return c.listDir(ctx, id, path)
}

func (c *Client) listDir(ctx context.Context, id ID, path string) ([]Entry, error) {
	var entries []Entry
	if err := c.get(ctx, contentsPath(id, path), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// ReadFile returns the decoded content of a file.
func (c *Client) ReadFile(ctx context.Context, repoID, path string) (string, error) {
	id, err := ParseRepoID(repoID)
	if err != nil {
		return "", err
	}
	var file struct {
		Type     string `json:"type"`
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	if err := c.get(ctx, contentsPath(id, path), &file); err != nil {
		return "", err
	}
	if file.Type != "" && file.Type != "file" {
		return "", &collab.Error{Service: service, Category: collab.Other, Message: path + " is a " + file.Type + ", not a file"}
	}
	if file.Encoding != "base64" {
		return file.Content, nil
	}
	data, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(file.Content, "\n", ""))
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return string(data), nil
}

func contentsPath(id ID, path string) string {
	p := "/repos/" + id.String() + "/contents"
	path = strings.Trim(path, "/")
	if path != "" {
		segments := strings.Split(path, "/")
		for i, s := range segments {
			segments[i] = url.PathEscape(s)
		}
		p += "/" + strings.Join(segments, "/")
	}
	return p
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return collab.Wrap(service, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("github request",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(started)))

	if resp.StatusCode >= 300 {
		return collab.FromResponse(service, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}
