package bridge

import (
	"sync"
	"sync/atomic"

	"github.com/raphaelluethy/cursor-acp/acp"
	"github.com/raphaelluethy/cursor-acp/commands"
	"github.com/raphaelluethy/cursor-acp/cursor"
)

// Session mode identifiers.
const (
	ModeDefault     = "default"
	ModeAcceptEdits = "acceptEdits"
	ModePlan        = "plan"
	ModeAsk         = "ask"
	ModeBypass      = "bypassPermissions"
)

// sessionModes is the mode table advertised to clients.
var sessionModes = []acp.SessionMode{
	{ID: ModeDefault, Name: "Always Ask", Description: "Asks before retrying rejected tool calls"},
	{ID: ModeAcceptEdits, Name: "Accept Edits", Description: "Accepts file edits, asks for the rest"},
	{ID: ModePlan, Name: "Plan", Description: "Plans without making changes"},
	{ID: ModeAsk, Name: "Ask", Description: "Answers questions without making changes"},
	{ID: ModeBypass, Name: "Bypass Permissions", Description: "Runs every tool without asking"},
}

// ValidMode reports whether id names a known session mode.
func ValidMode(id string) bool {
	for _, m := range sessionModes {
		if m.ID == id {
			return true
		}
	}
	return false
}

// confirmationMode reports whether the mode solicits an interactive
// permission decision after a rejected tool call.
func confirmationMode(id string) bool {
	return id == ModeDefault || id == ModeAcceptEdits
}

// Session is the bridge's per-session state. One prompt turn and at most
// one CLI run may be active at a time.
type Session struct {
	ID  string
	CWD string

	// promptMu serializes prompt turns; the orchestrator starts a new run
	// only after the previous one's completion has settled.
	promptMu sync.Mutex

	mu        sync.Mutex
	backendID string
	modeID    string
	modelID   string
	activeRun *cursor.Run
	cache     cursor.ToolUseCache
	commands  []commands.Command
	watcher   *commands.Watcher
	cancelled atomic.Bool
}

func newSession(id, cwd string) *Session {
	return &Session{
		ID:     id,
		CWD:    cwd,
		modeID: ModeDefault,
		cache:  cursor.NewToolUseCache(),
	}
}

// BeginPrompt clears the cancellation flag for a new turn.
func (s *Session) BeginPrompt() {
	s.cancelled.Store(false)
}

// Cancelled reports whether the current turn was cancelled.
func (s *Session) Cancelled() bool {
	return s.cancelled.Load()
}

// CancelTurn sets the cancellation flag and terminates the active run.
func (s *Session) CancelTurn() {
	s.cancelled.Store(true)

	s.mu.Lock()
	run := s.activeRun
	s.mu.Unlock()

	if run != nil {
		run.Cancel()
	}
}

func (s *Session) setActiveRun(run *cursor.Run) {
	s.mu.Lock()
	s.activeRun = run
	s.mu.Unlock()

	// A cancel may have raced the run start; honor it now.
	if run != nil && s.cancelled.Load() {
		run.Cancel()
	}
}

func (s *Session) clearActiveRun() {
	s.mu.Lock()
	s.activeRun = nil
	s.mu.Unlock()
}

// BackendID returns the CLI's own session handle, if discovered.
func (s *Session) BackendID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backendID
}

func (s *Session) setBackendID(id string) {
	s.mu.Lock()
	s.backendID = id
	s.mu.Unlock()
}

// Mode returns the session's current mode id.
func (s *Session) Mode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modeID
}

func (s *Session) setMode(id string) {
	s.mu.Lock()
	s.modeID = id
	s.mu.Unlock()
}

// Model returns the session's model override, or "".
func (s *Session) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modelID
}

func (s *Session) setModel(id string) {
	s.mu.Lock()
	s.modelID = id
	s.mu.Unlock()
}

// Commands returns the session's loaded user commands.
func (s *Session) Commands() []commands.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commands
}

func (s *Session) setCommands(cmds []commands.Command) {
	s.mu.Lock()
	s.commands = cmds
	s.mu.Unlock()
}

// FindCommand looks up a user command by name.
func (s *Session) FindCommand(name string) (commands.Command, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cmd := range s.commands {
		if cmd.Name == name {
			return cmd, true
		}
	}
	return commands.Command{}, false
}

// syncSessions is the agent's concurrent session registry.
type syncSessions struct {
	mu sync.Mutex
	m  map[string]*Session
}

func (r *syncSessions) put(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.m == nil {
		r.m = make(map[string]*Session)
	}
	if old, ok := r.m[s.ID]; ok && old != s {
		old.close()
	}
	r.m[s.ID] = s
}

func (r *syncSessions) get(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m[id]
}

// close releases session resources.
func (s *Session) close() {
	s.mu.Lock()
	watcher := s.watcher
	run := s.activeRun
	s.mu.Unlock()

	watcher.Close()
	if run != nil {
		run.Cancel()
	}
}
