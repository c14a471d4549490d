// Package workspace is a file store rooted at one directory. Agents write
// generated code here and the sandbox runs it from here.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// ErrPathEscape is returned for any path that would resolve outside the root.
var ErrPathEscape = errors.New("path escapes workspace root")

// Store reads and writes files below a root directory.
type Store struct {
	root   string
	logger *zap.Logger
}

// New creates the root directory if needed and returns a Store for it.
func New(root string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}
	return &Store{root: resolved, logger: logger.With(zap.String("component", "workspace"))}, nil
}

// Root returns the resolved root directory.
func (s *Store) Root() string { return s.root }

// Resolve maps a workspace-relative path to an absolute path inside the
// root. Absolute paths, ".." traversal and symlinks that point outside the
// root are rejected with ErrPathEscape.
func (s *Store) Resolve(name string) (string, error) {
	if name == "" || filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: %q", ErrPathEscape, name)
	}
	full := filepath.Join(s.root, filepath.Clean(name))
	if !s.within(full) || full == s.root {
		return "", fmt.Errorf("%w: %q", ErrPathEscape, name)
	}

	// Resolve the deepest existing ancestor so symlinks cannot lead out.
	existing := full
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		existing = parent
	}
	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", err
	}
	if !s.within(resolved) {
		return "", fmt.Errorf("%w: %q", ErrPathEscape, name)
	}
	return full, nil
}

func (s *Store) within(p string) bool {
	rel, err := filepath.Rel(s.root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Write stores content at name, creating parent directories.
func (s *Store) Write(name, content string) error {
	full, err := s.Resolve(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", name, err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	s.logger.Debug("wrote file", zap.String("path", name), zap.Int("bytes", len(content)))
	return nil
}

// Read returns the content of name.
func (s *Store) Read(name string) (string, error) {
	full, err := s.Resolve(name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", name, err)
	}
	return string(data), nil
}

// List returns every regular file below the root as slash-separated
// relative paths, sorted.
func (s *Store) List() ([]string, error) {
	var out []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list workspace: %w", err)
	}
	sort.Strings(out)
	return out, nil
}
