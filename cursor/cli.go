package cursor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"strings"
)

// CLI runs auxiliary cursor-agent invocations: model listing, chat
// creation, and authentication. Failures here degrade functionality (empty
// lists, not-logged-in) rather than aborting prompts.
type CLI struct {
	Path    string
	WorkDir string
	Logger  *slog.Logger
}

// NewCLI creates a CLI helper. An empty path resolves to "cursor-agent".
func NewCLI(path, workDir string, logger *slog.Logger) *CLI {
	if path == "" {
		path = "cursor-agent"
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &CLI{Path: path, WorkDir: workDir, Logger: logger}
}

// Model is one entry from the CLI's model listing.
type Model struct {
	ModelID string
	Name    string
	Current bool
}

// ListModels invokes the CLI's model listing and parses its output.
func (c *CLI) ListModels(ctx context.Context) ([]Model, error) {
	out, err := c.run(ctx, "--list-models")
	if err != nil {
		return nil, err
	}
	return ParseModelList(out), nil
}

// ParseModelList parses lines of the form "<id> - <name>[ (current)]".
// Lines that do not match are skipped.
func ParseModelList(output string) []Model {
	var models []Model
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		id, name, found := strings.Cut(line, " - ")
		if !found {
			continue
		}

		model := Model{ModelID: strings.TrimSpace(id)}
		name = strings.TrimSpace(name)
		if rest, ok := strings.CutSuffix(name, "(current)"); ok {
			model.Current = true
			name = strings.TrimSpace(rest)
		}
		model.Name = name

		if model.ModelID != "" {
			models = append(models, model)
		}
	}
	return models
}

// CreateChat asks the CLI to create a new backend conversation and returns
// its id: the last non-empty trimmed output line.
func (c *CLI) CreateChat(ctx context.Context) (string, error) {
	out, err := c.run(ctx, "create-chat")
	if err != nil {
		return "", err
	}

	lines := strings.Split(out, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line, nil
		}
	}
	return "", errors.New("create-chat produced no output")
}

// AuthStatus is the CLI's authentication state.
type AuthStatus struct {
	Account  string
	LoggedIn bool
}

// Status reports whether the CLI is logged in.
func (c *CLI) Status(ctx context.Context) AuthStatus {
	out, err := c.runCombined(ctx, "status")
	if err != nil {
		c.Logger.Warn("status invocation failed", "error", err)
		return AuthStatus{}
	}
	return ParseAuthOutput(out)
}

// Login runs the CLI's interactive login flow and reports the resulting
// state.
func (c *CLI) Login(ctx context.Context) AuthStatus {
	out, err := c.runCombined(ctx, "login")
	if err != nil {
		c.Logger.Warn("login invocation failed", "error", err)
		return AuthStatus{}
	}
	return ParseAuthOutput(out)
}

// Logout signs the CLI out.
func (c *CLI) Logout(ctx context.Context) error {
	_, err := c.runCombined(ctx, "logout")
	return err
}

// ParseAuthOutput scans auth command output case-insensitively for
// "logged in as <account>" vs "not logged in". Unrecognized output is
// conservatively treated as not logged in.
func ParseAuthOutput(output string) AuthStatus {
	lower := strings.ToLower(output)

	if strings.Contains(lower, "not logged in") {
		return AuthStatus{}
	}

	marker := "logged in as "
	idx := strings.Index(lower, marker)
	if idx < 0 {
		return AuthStatus{}
	}

	rest := output[idx+len(marker):]
	if end := strings.IndexAny(rest, "\r\n"); end >= 0 {
		rest = rest[:end]
	}
	return AuthStatus{LoggedIn: true, Account: strings.TrimSpace(rest)}
}

// run executes the CLI and returns stdout.
func (c *CLI) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, c.Path, args...)
	if c.WorkDir != "" {
		cmd.Dir = c.WorkDir
	}

	out, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", &CLINotFoundError{Path: c.Path, Cause: err}
		}
		return "", &ProcessError{Message: "CLI invocation failed", Cause: err}
	}
	return string(out), nil
}

// runCombined executes the CLI and returns stdout and stderr together; the
// auth commands write their status to either stream.
func (c *CLI) runCombined(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, c.Path, args...)
	if c.WorkDir != "" {
		cmd.Dir = c.WorkDir
	}

	out, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", &CLINotFoundError{Path: c.Path, Cause: err}
		}
		// Auth commands exit nonzero when logged out; their output still
		// carries the answer.
		if len(out) > 0 {
			return string(out), nil
		}
		return "", &ProcessError{Message: "CLI invocation failed", Cause: err}
	}
	return string(out), nil
}
