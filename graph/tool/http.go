package tool

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dshills/teamgraph/graph/model"
)

// DefaultFetchLimit caps how much of a response body FetchTool returns.
const DefaultFetchLimit = 64 * 1024

// FetchTool is the fetch_url tool: an HTTP GET of a public page, returning
// the status line and up to Limit bytes of body.
type FetchTool struct {
	Client  *http.Client
	Limiter *rate.Limiter
	Limit   int64
}

// NewFetchTool creates a FetchTool allowing perSecond requests.
func NewFetchTool(perSecond float64) *FetchTool {
	return &FetchTool{
		Client:  &http.Client{Timeout: 30 * time.Second},
		Limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		Limit:   DefaultFetchLimit,
	}
}

// Spec implements Tool.
func (f *FetchTool) Spec() model.ToolSpec {
	return model.ToolSpec{
		Name:        "fetch_url",
		Description: "Fetch a web page or document over HTTP(S) and return its text.",
		Schema:      Object(Props{"url": String("absolute http or https URL")}, "url"),
	}
}

// Call implements Tool.
func (f *FetchTool) Call(ctx context.Context, input map[string]interface{}) (string, error) {
	raw := Arg(input, "url")
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("url must be an absolute http(s) URL, got %q", raw)
	}
	if f.Limiter != nil {
		if err := f.Limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "teamgraph/1.0")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", u, err)
	}
	defer func() { _ = resp.Body.Close() }()

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultFetchLimit
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	truncated := int64(len(body)) > limit
	if truncated {
		body = body[:limit]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "HTTP %d\n", resp.StatusCode)
	sb.Write(body)
	if truncated {
		sb.WriteString("\n[truncated]")
	}
	if resp.StatusCode >= 400 {
		return sb.String(), fmt.Errorf("fetch %s: status %d", u, resp.StatusCode)
	}
	return sb.String(), nil
}
