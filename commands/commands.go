// Package commands discovers user-authored command and skill templates:
// markdown files with optional YAML front matter, scoped to the workspace
// (.cursor/ under the session cwd) and the user's home directory.
package commands

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Command is one user-defined command or skill.
type Command struct {
	Name         string
	Description  string
	ArgumentHint string
	Template     string
}

// frontMatter is the YAML header of a command file.
type frontMatter struct {
	Description  string `yaml:"description"`
	ArgumentHint string `yaml:"argument-hint"`
}

// Loader discovers commands in workspace and home scope.
type Loader struct {
	logger  *slog.Logger
	homeDir string
}

// NewLoader creates a loader. homeDir may be empty to skip home-scoped
// discovery.
func NewLoader(homeDir string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Loader{homeDir: homeDir, logger: logger}
}

// Load discovers all commands and skills visible from cwd. Workspace
// definitions shadow home definitions of the same name. Discovery failures
// degrade to an empty (or partial) list.
func (l *Loader) Load(cwd string) []Command {
	byName := make(map[string]Command)

	// Home first so workspace entries overwrite on collision.
	if l.homeDir != "" {
		l.loadDir(filepath.Join(l.homeDir, ".cursor", "commands"), byName)
		l.loadSkills(filepath.Join(l.homeDir, ".cursor", "skills"), byName)
	}
	if cwd != "" {
		l.loadDir(filepath.Join(cwd, ".cursor", "commands"), byName)
		l.loadSkills(filepath.Join(cwd, ".cursor", "skills"), byName)
	}

	commands := make([]Command, 0, len(byName))
	for _, cmd := range byName {
		commands = append(commands, cmd)
	}
	sort.Slice(commands, func(i, j int) bool { return commands[i].Name < commands[j].Name })
	return commands
}

// loadDir reads <dir>/*.md as commands named after their file.
func (l *Loader) loadDir(dir string, byName map[string]Command) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), ".md")
		cmd, err := l.parseFile(filepath.Join(dir, entry.Name()), name)
		if err != nil {
			l.logger.Warn("skipping command file", "path", entry.Name(), "error", err)
			continue
		}
		byName[cmd.Name] = cmd
	}
}

// loadSkills reads <dir>/<name>/SKILL.md as skills named after their
// directory.
func (l *Loader) loadSkills(dir string, byName map[string]Command) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		path := filepath.Join(dir, entry.Name(), "SKILL.md")
		cmd, err := l.parseFile(path, entry.Name())
		if err != nil {
			if !os.IsNotExist(err) {
				l.logger.Warn("skipping skill", "name", entry.Name(), "error", err)
			}
			continue
		}
		byName[cmd.Name] = cmd
	}
}

// parseFile splits front matter from body and builds the command.
func (l *Loader) parseFile(path, name string) (Command, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Command{}, err
	}

	header, body := splitFrontMatter(string(data))

	cmd := Command{
		Name:        name,
		Description: "Custom command: " + name,
		Template:    strings.TrimSpace(body),
	}

	if header != "" {
		var fm frontMatter
		if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
			return Command{}, err
		}
		if fm.Description != "" {
			cmd.Description = fm.Description
		}
		cmd.ArgumentHint = fm.ArgumentHint
	}

	return cmd, nil
}

// splitFrontMatter separates a leading "---" delimited YAML block from the
// markdown body. Files without a header return ("", whole file).
func splitFrontMatter(content string) (header, body string) {
	const delim = "---"

	trimmed := strings.TrimPrefix(content, "\uFEFF")
	if !strings.HasPrefix(trimmed, delim+"\n") && trimmed != delim {
		return "", content
	}

	rest := strings.TrimPrefix(trimmed, delim+"\n")
	end := strings.Index(rest, "\n"+delim)
	if end < 0 {
		return "", content
	}

	header = rest[:end]
	body = rest[end+len("\n"+delim):]
	body = strings.TrimPrefix(body, "\n")
	return header, body
}
