// Package history persists session transcripts as append-only JSONL files,
// one per session, for replay on session/load.
package history

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Record is one transcript entry.
type Record struct {
	Time time.Time `json:"time"`
	Role string    `json:"role"` // "user", "agent"
	Text string    `json:"text"`
}

// Store writes and replays per-session transcript files.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates a store rooted at dir. The directory is created lazily
// on first append.
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{dir: dir, logger: logger}
}

// DefaultDir returns the default history location under the user's state
// directory.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", "cursor-acp", "history")
}

// Append records one entry for the session. Failures are logged and
// swallowed; history must never fail a prompt.
func (s *Store) Append(sessionID string, rec Record) {
	if s.dir == "" {
		return
	}
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}

	if err := s.append(sessionID, rec); err != nil {
		s.logger.Warn("history append failed", "sessionId", sessionID, "error", err)
	}
}

func (s *Store) append(sessionID string, rec Record) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(s.path(sessionID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	_, err = f.Write(data)
	return err
}

// Replay streams the session's records in order. A missing file replays
// nothing. Unparseable lines are skipped with a warning so one bad record
// does not hide the rest of the transcript.
func (s *Store) Replay(sessionID string, fn func(Record) error) error {
	if s.dir == "" {
		return nil
	}

	f, err := os.Open(s.path(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			s.logger.Warn("skipping corrupt history line", "sessionId", sessionID, "error", err)
			continue
		}

		if err := fn(rec); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (s *Store) path(sessionID string) string {
	return filepath.Join(s.dir, sessionID+".jsonl")
}
