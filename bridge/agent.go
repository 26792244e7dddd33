// Package bridge orchestrates prompt execution: it owns per-session state,
// drives Cursor CLI runs through the stream reader and event mapper, and
// implements the permission-retry protocol on top of the ACP connection.
package bridge

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/raphaelluethy/cursor-acp/acp"
	"github.com/raphaelluethy/cursor-acp/commands"
	"github.com/raphaelluethy/cursor-acp/cursor"
	"github.com/raphaelluethy/cursor-acp/history"
)

// Config configures the bridge agent.
type Config struct {
	Logger       *slog.Logger
	CursorPath   string
	HistoryDir   string
	HomeDir      string
	Version      string
	DrainTimeout time.Duration
}

// Agent implements acp.Agent by bridging ACP sessions onto Cursor CLI runs.
type Agent struct {
	logger  *slog.Logger
	config  Config
	conn    *acp.Conn
	cli     *cursor.CLI
	history *history.Store
	loader  *commands.Loader

	sessions syncSessions
}

// New creates a bridge agent. Attach must be called with the serving
// connection before any request is dispatched.
func New(config Config) *Agent {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Agent{
		logger:  logger,
		config:  config,
		cli:     cursor.NewCLI(config.CursorPath, "", logger),
		history: history.NewStore(config.HistoryDir, logger),
		loader:  commands.NewLoader(config.HomeDir, logger),
	}
}

// Attach binds the agent to its ACP connection.
func (a *Agent) Attach(conn *acp.Conn) {
	a.conn = conn
}

// Initialize negotiates the protocol version and advertises capabilities.
func (a *Agent) Initialize(ctx context.Context, req *acp.InitializeRequest) (*acp.InitializeResponse, error) {
	version := acp.ProtocolVersion
	if req.ProtocolVersion > 0 && req.ProtocolVersion < version {
		version = req.ProtocolVersion
	}

	return &acp.InitializeResponse{
		ProtocolVersion: version,
		AgentInfo: &acp.Implementation{
			Name:    "cursor-acp",
			Version: a.config.Version,
		},
		AgentCapabilities: &acp.AgentCapabilities{
			LoadSession: true,
			PromptCapabilities: &acp.PromptCapabilities{
				Image:           true,
				Audio:           true,
				EmbeddedContext: true,
			},
		},
		AuthMethods: []acp.AuthMethod{{
			ID:   "cursor-login",
			Name: "Log in with Cursor",
		}},
	}, nil
}

// Authenticate runs the CLI login flow.
func (a *Agent) Authenticate(ctx context.Context, req *acp.AuthenticateRequest) (*acp.AuthenticateResponse, error) {
	status := a.cli.Login(ctx)
	if !status.LoggedIn {
		return nil, fmt.Errorf("cursor login failed: %w", acp.ErrAuthRequired)
	}
	a.logger.Info("authenticated", "account", status.Account)
	return &acp.AuthenticateResponse{}, nil
}

// NewSession creates a fresh bridge session rooted at the client's cwd.
func (a *Agent) NewSession(ctx context.Context, req *acp.NewSessionRequest) (*acp.NewSessionResponse, error) {
	s := newSession(uuid.NewString(), req.CWD)
	a.setupSession(s)
	a.sessions.put(s)

	// Eagerly create the backend conversation so the first prompt already
	// resumes it. Failure is not fatal; the first run discovers the id.
	if backendID, err := a.cli.CreateChat(ctx); err == nil && backendID != "" {
		s.setBackendID(backendID)
		a.persistMeta(s)
	} else if err != nil {
		a.logger.Warn("backend chat creation failed", "error", err)
	}

	a.logger.Info("session created", "sessionId", s.ID, "cwd", s.CWD, "backendId", s.BackendID())

	return &acp.NewSessionResponse{
		SessionID: s.ID,
		Modes:     a.modeState(s),
		Models:    a.modelState(ctx, s),
	}, nil
}

// LoadSession resumes a previously created session: restores persisted
// metadata and replays the transcript as session updates.
func (a *Agent) LoadSession(ctx context.Context, req *acp.LoadSessionRequest) (*acp.LoadSessionResponse, error) {
	s := newSession(req.SessionID, req.CWD)

	if meta, ok := a.history.LoadMeta(req.SessionID); ok {
		s.setBackendID(meta.BackendSessionID)
		if ValidMode(meta.ModeID) {
			s.setMode(meta.ModeID)
		}
		s.setModel(meta.ModelID)
	}

	a.setupSession(s)
	a.sessions.put(s)

	err := a.history.Replay(req.SessionID, func(rec history.Record) error {
		var update acp.SessionUpdate
		switch rec.Role {
		case "user":
			update = acp.NewUserMessageChunk(rec.Text)
		default:
			update = acp.NewAgentMessageChunk(rec.Text)
		}
		return a.conn.SessionUpdate(s.ID, update)
	})
	if err != nil {
		a.logger.Warn("history replay failed", "sessionId", s.ID, "error", err)
	}

	a.logger.Info("session loaded", "sessionId", s.ID, "backendId", s.BackendID())

	return &acp.LoadSessionResponse{
		Modes:  a.modeState(s),
		Models: a.modelState(ctx, s),
	}, nil
}

// setupSession loads user commands and starts the workspace watcher that
// re-announces them on change.
func (a *Agent) setupSession(s *Session) {
	s.setCommands(a.loader.Load(s.CWD))

	s.watcher = commands.WatchWorkspace(s.CWD, a.logger, func() {
		s.setCommands(a.loader.Load(s.CWD))
		if err := a.conn.SessionUpdate(s.ID, a.availableCommands(s)); err != nil {
			a.logger.Warn("available commands update failed", "sessionId", s.ID, "error", err)
		}
	})

	// Announce commands once the session response has gone out.
	go func() {
		if err := a.conn.SessionUpdate(s.ID, a.availableCommands(s)); err != nil {
			a.logger.Warn("available commands update failed", "sessionId", s.ID, "error", err)
		}
	}()
}

// availableCommands builds the announcement for built-ins plus the
// session's user commands.
func (a *Agent) availableCommands(s *Session) acp.AvailableCommandsUpdate {
	cmds := builtinAvailableCommands()
	for _, cmd := range s.Commands() {
		entry := acp.AvailableCommand{Name: cmd.Name, Description: cmd.Description}
		if cmd.ArgumentHint != "" {
			entry.Input = &acp.AvailableCommandInput{Hint: cmd.ArgumentHint}
		}
		cmds = append(cmds, entry)
	}
	return acp.AvailableCommandsUpdate{
		Type:              acp.UpdateTypeAvailableCommands,
		AvailableCommands: cmds,
	}
}

func (a *Agent) modeState(s *Session) *acp.SessionModeState {
	return &acp.SessionModeState{
		CurrentModeID:  s.Mode(),
		AvailableModes: sessionModes,
	}
}

// modelState lists selectable models; listing failures degrade to nil.
func (a *Agent) modelState(ctx context.Context, s *Session) *acp.SessionModelState {
	models, err := a.cli.ListModels(ctx)
	if err != nil {
		a.logger.Warn("model listing failed", "error", err)
		return nil
	}

	state := &acp.SessionModelState{CurrentModelID: s.Model()}
	for _, m := range models {
		state.AvailableModels = append(state.AvailableModels, acp.SessionModel{
			ModelID: m.ModelID,
			Name:    m.Name,
		})
		if state.CurrentModelID == "" && m.Current {
			state.CurrentModelID = m.ModelID
		}
	}
	return state
}

// SetMode switches the session's mode.
func (a *Agent) SetMode(ctx context.Context, req *acp.SetSessionModeRequest) (*acp.SetSessionModeResponse, error) {
	s, err := a.session(req.SessionID)
	if err != nil {
		return nil, err
	}
	if !ValidMode(req.ModeID) {
		return nil, fmt.Errorf("unknown mode %q", req.ModeID)
	}

	s.setMode(req.ModeID)
	a.persistMeta(s)
	return &acp.SetSessionModeResponse{}, nil
}

// SetModel switches the session's model.
func (a *Agent) SetModel(ctx context.Context, req *acp.SetSessionModelRequest) (*acp.SetSessionModelResponse, error) {
	s, err := a.session(req.SessionID)
	if err != nil {
		return nil, err
	}

	s.setModel(req.ModelID)
	a.persistMeta(s)
	return &acp.SetSessionModelResponse{}, nil
}

// Cancel sets the session's cancellation flag and terminates the active
// run. Cancellation is advisory to the subprocess but authoritative to the
// orchestrator: every later step of the turn short-circuits.
func (a *Agent) Cancel(ctx context.Context, note *acp.CancelNotification) error {
	s, err := a.session(note.SessionID)
	if err != nil {
		return err
	}

	a.logger.Info("cancelling turn", "sessionId", s.ID)
	s.CancelTurn()
	return nil
}

func (a *Agent) session(id string) (*Session, error) {
	if s := a.sessions.get(id); s != nil {
		return s, nil
	}
	return nil, acp.ErrSessionNotFound
}

func (a *Agent) persistMeta(s *Session) {
	a.history.SaveMeta(s.ID, history.Meta{
		BackendSessionID: s.BackendID(),
		CWD:              s.CWD,
		ModeID:           s.Mode(),
		ModelID:          s.Model(),
	})
}
