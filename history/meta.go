package history

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Meta is the persisted per-session state needed to resume a conversation
// in a later process: most importantly the backend session handle.
type Meta struct {
	BackendSessionID string `json:"backendSessionId,omitempty"`
	CWD              string `json:"cwd,omitempty"`
	ModeID           string `json:"modeId,omitempty"`
	ModelID          string `json:"modelId,omitempty"`
}

// SaveMeta persists the session's metadata. Failures are logged and
// swallowed like transcript appends.
func (s *Store) SaveMeta(sessionID string, m Meta) {
	if s.dir == "" {
		return
	}

	if err := s.saveMeta(sessionID, m); err != nil {
		s.logger.Warn("history meta save failed", "sessionId", sessionID, "error", err)
	}
}

func (s *Store) saveMeta(sessionID string, m Meta) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}

	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(s.metaPath(sessionID), data, 0o644)
}

// LoadMeta reads the session's metadata; ok is false when none was saved.
func (s *Store) LoadMeta(sessionID string) (Meta, bool) {
	if s.dir == "" {
		return Meta{}, false
	}

	data, err := os.ReadFile(s.metaPath(sessionID))
	if err != nil {
		return Meta{}, false
	}

	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		s.logger.Warn("history meta unreadable", "sessionId", sessionID, "error", err)
		return Meta{}, false
	}
	return m, true
}

func (s *Store) metaPath(sessionID string) string {
	return filepath.Join(s.dir, sessionID+".meta.json")
}
