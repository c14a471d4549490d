package repo

import (
	"context"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Listing is the result of a recursive listing.
type Listing struct {
	Files []string

	// Truncated is set when the depth, file or directory budget stopped
	// the walk early.
	Truncated bool
}

// ListFiles walks the tree below path level by level and returns file
// paths in sorted order.
//
// The walk is iterative: each level's directories are listed concurrently
// (bounded by WithConcurrency), then the next level is processed. It stops
// descending below maxDepth, stops collecting at maxEntries files and lists
// at most maxDirs directories, the start path included.
func (c *Client) ListFiles(ctx context.Context, repoID, path string) (Listing, error) {
	id, err := ParseRepoID(repoID)
	if err != nil {
		return Listing{}, err
	}

	var out Listing
	listed := 0
	level := []string{path}
	for depth := 0; len(level) > 0; depth++ {
		if depth > c.maxDepth {
			out.Truncated = true
			break
		}
		if c.maxDirs > 0 && listed+len(level) > c.maxDirs {
			out.Truncated = true
			level = level[:c.maxDirs-listed]
			if len(level) == 0 {
				break
			}
		}
		listed += len(level)

		results := make([][]Entry, len(level))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.concurrency)
		for i, dir := range level {
			i, dir := i, dir
			g.Go(func() error {
				entries, err := c.listDir(gctx, id, dir)
				if err != nil {
					return err
				}
				results[i] = entries
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return Listing{}, err
		}

		var next []string
		for _, entries := range results {
			for _, e := range entries {
				if e.IsDir() {
					next = append(next, e.Path)
					continue
				}
				if c.maxEntries > 0 && len(out.Files) >= c.maxEntries {
					out.Truncated = true
					continue
				}
				out.Files = append(out.Files, e.Path)
			}
		}
		if out.Truncated && c.maxEntries > 0 && len(out.Files) >= c.maxEntries {
			break
		}
		level = next
	}

	sort.Strings(out.Files)
	if out.Truncated {
		c.logger.Debug("listing truncated",
			zap.String("repo", id.String()),
			zap.Int("files", len(out.Files)),
			zap.Int("dirs", listed))
	}
	return out, nil
}
