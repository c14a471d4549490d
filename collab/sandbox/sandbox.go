// Package sandbox runs generated code in a separate interpreter process
// with bounded time and output.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config configures a Runner.
type Config struct {
	// Interpreter is the program that receives the code file, e.g. "python3".
	Interpreter string `json:"interpreter"`

	// Args are passed before the code file.
	Args []string `json:"args,omitempty"`

	// Extension is appended to the temporary code file.
	Extension string `json:"extension"`

	// Timeout bounds each execution.
	Timeout time.Duration `json:"timeout"`

	// MaxOutputBytes caps stdout and stderr separately.
	MaxOutputBytes int `json:"max_output_bytes"`

	// WorkDir is the working directory of the process. Empty uses the
	// temporary directory holding the code file.
	WorkDir string `json:"work_dir,omitempty"`
}

// DefaultConfig runs Python with a 30 second limit and 64KiB of output.
func DefaultConfig() Config {
	return Config{
		Interpreter:    "python3",
		Extension:      ".py",
		Timeout:        30 * time.Second,
		MaxOutputBytes: 64 << 10,
	}
}

// Request is a single execution.
type Request struct {
	ID      string        `json:"id"`
	Code    string        `json:"code"`
	Stdin   string        `json:"stdin,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty"`
}

// Result is the outcome of an execution. A non-zero exit code is a result,
// not an error.
type Result struct {
	ID        string        `json:"id"`
	ExitCode  int           `json:"exit_code"`
	Stdout    string        `json:"stdout"`
	Stderr    string        `json:"stderr"`
	Duration  time.Duration `json:"duration"`
	TimedOut  bool          `json:"timed_out,omitempty"`
	Truncated bool          `json:"truncated,omitempty"`
}

// Success reports whether the code exited cleanly in time.
func (r Result) Success() bool {
	return r.ExitCode == 0 && !r.TimedOut
}

// Report renders the result as text for a conversation message.
func (r Result) Report() string {
	var b strings.Builder
	switch {
	case r.TimedOut:
		fmt.Fprintf(&b, "Execution timed out after %v.\n", r.Duration.Round(time.Millisecond))
	case r.ExitCode != 0:
		fmt.Fprintf(&b, "Execution failed with exit code %d.\n", r.ExitCode)
	default:
		b.WriteString("Execution succeeded.\n")
	}
	if r.Stdout != "" {
		fmt.Fprintf(&b, "stdout:\n%s\n", r.Stdout)
	}
	if r.Stderr != "" {
		fmt.Fprintf(&b, "stderr:\n%s\n", r.Stderr)
	}
	if r.Truncated {
		b.WriteString("[output truncated]\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Stats counts executions.
type Stats struct {
	Total    int64 `json:"total"`
	Failed   int64 `json:"failed"`
	TimedOut int64 `json:"timed_out"`
}

// Runner executes code with a configured interpreter.
type Runner struct {
	cfg    Config
	logger *zap.Logger

	mu    sync.Mutex
	stats Stats
}

// New creates a Runner. Zero fields of cfg take DefaultConfig values.
func New(cfg Config, logger *zap.Logger) *Runner {
	def := DefaultConfig()
	if cfg.Interpreter == "" {
		cfg.Interpreter = def.Interpreter
		if cfg.Extension == "" {
			cfg.Extension = def.Extension
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = def.MaxOutputBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, logger: logger.With(zap.String("component", "sandbox"))}
}

// Run writes the code to a temporary file and executes it.
//
// An error is returned only when the request is invalid or the process
// cannot be started; timeouts and failing programs are reported in Result.
func (r *Runner) Run(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Code) == "" {
		return Result{}, errors.New("code is required")
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	timeout := r.cfg.Timeout
	if req.Timeout > 0 && req.Timeout < timeout {
		timeout = req.Timeout
	}

	dir, err := os.MkdirTemp("", "teamgraph-sandbox-")
	if err != nil {
		return Result{}, fmt.Errorf("failed to create sandbox dir: %w", err)
	}
	defer os.RemoveAll(dir)

	file := filepath.Join(dir, "main"+r.cfg.Extension)
	if err := os.WriteFile(file, []byte(req.Code), 0o600); err != nil {
		return Result{}, fmt.Errorf("failed to write code: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string(nil), r.cfg.Args...), file)
	cmd := exec.CommandContext(runCtx, r.cfg.Interpreter, args...)
	cmd.Dir = dir
	if r.cfg.WorkDir != "" {
		cmd.Dir = r.cfg.WorkDir
	}
	cmd.WaitDelay = time.Second
	stdout := &cappedBuffer{limit: r.cfg.MaxOutputBytes}
	stderr := &cappedBuffer{limit: r.cfg.MaxOutputBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if req.Stdin != "" {
		cmd.Stdin = strings.NewReader(req.Stdin)
	}

	r.logger.Debug("executing code",
		zap.String("id", req.ID),
		zap.String("interpreter", r.cfg.Interpreter),
		zap.Int("code_length", len(req.Code)))

	started := time.Now()
	runErr := cmd.Run()
	res := Result{
		ID:        req.ID,
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Duration:  time.Since(started),
		Truncated: stdout.truncated || stderr.truncated,
	}

	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		res.TimedOut = true
		res.ExitCode = -1
	case ctx.Err() != nil:
		return res, ctx.Err()
	case errors.As(runErr, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		return res, fmt.Errorf("failed to run %s: %w", r.cfg.Interpreter, runErr)
	}

	r.record(res)
	return res, nil
}

func (r *Runner) record(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.Total++
	if !res.Success() {
		r.stats.Failed++
	}
	if res.TimedOut {
		r.stats.TimedOut++
	}
	if !res.Success() {
		r.logger.Info("execution failed",
			zap.String("id", res.ID),
			zap.Int("exit_code", res.ExitCode),
			zap.Bool("timed_out", res.TimedOut))
	}
}

// Stats returns execution counters.
func (r *Runner) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// cappedBuffer keeps the first limit bytes written and discards the rest.
type cappedBuffer struct {
	buf       strings.Builder
	limit     int
	truncated bool
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	room := c.limit - c.buf.Len()
	if room <= 0 {
		c.truncated = c.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > room {
		c.buf.Write(p[:room])
		c.truncated = true
		return len(p), nil
	}
	c.buf.Write(p)
	return len(p), nil
}

func (c *cappedBuffer) String() string { return c.buf.String() }
