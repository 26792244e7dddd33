package acp

// ACP protocol version supported by this agent.
const ProtocolVersion = 1

// --- Initialize ---

// InitializeRequest is sent by the client to establish the connection.
type InitializeRequest struct {
	ClientCapabilities *ClientCapabilities `json:"clientCapabilities,omitempty"`
	ClientInfo         *Implementation     `json:"clientInfo,omitempty"`
	ProtocolVersion    int                 `json:"protocolVersion"`
}

// InitializeResponse is returned by the agent with its capabilities.
type InitializeResponse struct {
	AgentCapabilities *AgentCapabilities `json:"agentCapabilities,omitempty"`
	AgentInfo         *Implementation    `json:"agentInfo,omitempty"`
	AuthMethods       []AuthMethod       `json:"authMethods,omitempty"`
	ProtocolVersion   int                `json:"protocolVersion"`
}

// Implementation identifies a client or agent.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// ClientCapabilities advertises what the client supports.
type ClientCapabilities struct {
	Fs       *FsCapability `json:"fs,omitempty"`
	Terminal bool          `json:"terminal,omitempty"`
}

// FsCapability describes file system capabilities.
type FsCapability struct {
	ReadTextFile  bool `json:"readTextFile"`
	WriteTextFile bool `json:"writeTextFile"`
}

// AgentCapabilities advertises what the agent supports.
type AgentCapabilities struct {
	PromptCapabilities *PromptCapabilities `json:"promptCapabilities,omitempty"`
	LoadSession        bool                `json:"loadSession,omitempty"`
}

// PromptCapabilities describes accepted prompt content.
type PromptCapabilities struct {
	Image           bool `json:"image,omitempty"`
	Audio           bool `json:"audio,omitempty"`
	EmbeddedContext bool `json:"embeddedContext,omitempty"`
}

// AuthMethod describes an authentication method.
type AuthMethod struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// AuthenticateRequest selects an authentication method.
type AuthenticateRequest struct {
	MethodID string `json:"methodId"`
}

// AuthenticateResponse is empty on success.
type AuthenticateResponse struct{}

// --- Session ---

// NewSessionRequest creates a new conversation session.
type NewSessionRequest struct {
	CWD        string            `json:"cwd"`
	McpServers []McpServerConfig `json:"mcpServers"`
}

// NewSessionResponse returns the created session info.
type NewSessionResponse struct {
	SessionID string             `json:"sessionId"`
	Modes     *SessionModeState  `json:"modes,omitempty"`
	Models    *SessionModelState `json:"models,omitempty"`
}

// SessionModeState lists available modes and the current one.
type SessionModeState struct {
	CurrentModeID  string        `json:"currentModeId"`
	AvailableModes []SessionMode `json:"availableModes"`
}

// SessionMode describes one operational policy for prompt execution.
type SessionMode struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// SessionModelState lists available models and the current one.
type SessionModelState struct {
	CurrentModelID  string         `json:"currentModelId"`
	AvailableModels []SessionModel `json:"availableModels"`
}

// SessionModel describes a selectable model.
type SessionModel struct {
	ModelID string `json:"modelId"`
	Name    string `json:"name"`
}

// McpServerConfig configures an MCP server for the session.
type McpServerConfig struct {
	Name    string   `json:"name"`
	Type    string   `json:"type,omitempty"`
	Command string   `json:"command,omitempty"`
	URL     string   `json:"url,omitempty"`
	Args    []string `json:"args,omitempty"`
	Env     []EnvVar `json:"env,omitempty"`
}

// EnvVar is a name-value pair for environment variables.
type EnvVar struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// LoadSessionRequest resumes an existing session.
type LoadSessionRequest struct {
	SessionID  string            `json:"sessionId"`
	CWD        string            `json:"cwd"`
	McpServers []McpServerConfig `json:"mcpServers"`
}

// LoadSessionResponse mirrors NewSessionResponse for a resumed session.
type LoadSessionResponse struct {
	Modes  *SessionModeState  `json:"modes,omitempty"`
	Models *SessionModelState `json:"models,omitempty"`
}

// SetSessionModeRequest switches the session's mode.
type SetSessionModeRequest struct {
	SessionID string `json:"sessionId"`
	ModeID    string `json:"modeId"`
}

// SetSessionModeResponse is empty on success.
type SetSessionModeResponse struct{}

// SetSessionModelRequest switches the session's model.
type SetSessionModelRequest struct {
	SessionID string `json:"sessionId"`
	ModelID   string `json:"modelId"`
}

// SetSessionModelResponse is empty on success.
type SetSessionModelResponse struct{}

// --- Prompt ---

// PromptRequest sends a user prompt to the agent.
type PromptRequest struct {
	SessionID string         `json:"sessionId"`
	Prompt    []ContentBlock `json:"prompt"`
}

// Stop reasons for a completed prompt turn.
const (
	StopReasonEndTurn         = "end_turn"
	StopReasonMaxTurnRequests = "max_turn_requests"
	StopReasonRefusal         = "refusal"
	StopReasonCancelled       = "cancelled"
)

// PromptResponse indicates the prompt turn has completed.
type PromptResponse struct {
	StopReason string `json:"stopReason"`
}

// --- Content Blocks ---

// ContentBlock represents typed content in prompts and messages.
// Discriminated by the Type field.
type ContentBlock struct {
	// Common
	Type string `json:"type"` // "text", "image", "audio", "resource_link", "resource"

	// TextContent
	Text string `json:"text,omitempty"`

	// ImageContent / AudioContent
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"` // base64-encoded

	// ResourceLink
	URI  string `json:"uri,omitempty"`
	Name string `json:"name,omitempty"`

	// Embedded resource
	Resource *EmbeddedResource `json:"resource,omitempty"`
}

// EmbeddedResource carries inline resource contents.
type EmbeddedResource struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
}

// NewTextContent creates a text content block.
func NewTextContent(text string) ContentBlock {
	return ContentBlock{Type: "text", Text: text}
}

// --- Session updates (agent-sent notifications) ---

// Session update discriminator values.
const (
	UpdateTypeUserMessage       = "user_message_chunk"
	UpdateTypeAgentMessage      = "agent_message_chunk"
	UpdateTypeAgentThought      = "agent_thought_chunk"
	UpdateTypeToolCall          = "tool_call"
	UpdateTypeToolCallUpdate    = "tool_call_update"
	UpdateTypePlan              = "plan"
	UpdateTypeAvailableCommands = "available_commands_update"
	UpdateTypeCurrentMode       = "current_mode_update"
)

// SessionNotification is the params for a session/update notification.
type SessionNotification struct {
	SessionID string        `json:"sessionId"`
	Update    SessionUpdate `json:"update"`
}

// SessionUpdate is the union of update payloads; the embedded Type field
// (JSON key "sessionUpdate") discriminates.
type SessionUpdate interface {
	updateType() string
}

// UserMessageChunk replays one chunk of user text (session/load).
type UserMessageChunk struct {
	Type    string       `json:"sessionUpdate"`
	Content ContentBlock `json:"content"`
}

func (u UserMessageChunk) updateType() string { return UpdateTypeUserMessage }

// AgentMessageChunk streams one chunk of agent response text.
type AgentMessageChunk struct {
	Type    string       `json:"sessionUpdate"`
	Content ContentBlock `json:"content"`
}

func (u AgentMessageChunk) updateType() string { return UpdateTypeAgentMessage }

// AgentThoughtChunk streams one chunk of agent reasoning text.
type AgentThoughtChunk struct {
	Type    string       `json:"sessionUpdate"`
	Content ContentBlock `json:"content"`
}

func (u AgentThoughtChunk) updateType() string { return UpdateTypeAgentThought }

// NewUserMessageChunk builds a user_message_chunk update.
func NewUserMessageChunk(text string) UserMessageChunk {
	return UserMessageChunk{Type: UpdateTypeUserMessage, Content: NewTextContent(text)}
}

// NewAgentMessageChunk builds an agent_message_chunk update.
func NewAgentMessageChunk(text string) AgentMessageChunk {
	return AgentMessageChunk{Type: UpdateTypeAgentMessage, Content: NewTextContent(text)}
}

// NewAgentThoughtChunk builds an agent_thought_chunk update.
func NewAgentThoughtChunk(text string) AgentThoughtChunk {
	return AgentThoughtChunk{Type: UpdateTypeAgentThought, Content: NewTextContent(text)}
}

// Tool call kinds.
const (
	ToolKindRead    = "read"
	ToolKindEdit    = "edit"
	ToolKindExecute = "execute"
	ToolKindThink   = "think"
	ToolKindOther   = "other"
)

// Tool call statuses.
const (
	ToolStatusPending   = "pending"
	ToolStatusCompleted = "completed"
	ToolStatusFailed    = "failed"
)

// ToolCallStart reports a newly created tool call.
type ToolCallStart struct {
	Type       string                 `json:"sessionUpdate"`
	ToolCallID string                 `json:"toolCallId"`
	Title      string                 `json:"title,omitempty"`
	Kind       string                 `json:"kind,omitempty"`
	Status     string                 `json:"status,omitempty"`
	Content    []ToolCallContent      `json:"content,omitempty"`
	Locations  []ToolCallLocation     `json:"locations,omitempty"`
	RawInput   map[string]interface{} `json:"rawInput,omitempty"`
	Meta       map[string]interface{} `json:"_meta,omitempty"`
}

func (u ToolCallStart) updateType() string { return UpdateTypeToolCall }

// ToolCallUpdate reports progress or completion of a tool call.
type ToolCallUpdate struct {
	Type       string                 `json:"sessionUpdate"`
	ToolCallID string                 `json:"toolCallId"`
	Status     string                 `json:"status,omitempty"`
	Content    []ToolCallContent      `json:"content,omitempty"`
	Locations  []ToolCallLocation     `json:"locations,omitempty"`
	RawOutput  interface{}            `json:"rawOutput,omitempty"`
	Meta       map[string]interface{} `json:"_meta,omitempty"`
}

func (u ToolCallUpdate) updateType() string { return UpdateTypeToolCallUpdate }

// ToolCallContent is one content item attached to a tool call: either an
// opaque content block or a structured diff. Discriminated by Type.
type ToolCallContent struct {
	Type string `json:"type"` // "content", "diff"

	// type == "content"
	Content *ContentBlock `json:"content,omitempty"`

	// type == "diff"
	Path    string  `json:"path,omitempty"`
	OldText *string `json:"oldText,omitempty"`
	NewText string  `json:"newText,omitempty"`
}

// NewTextToolContent wraps text in a "content" tool call content item.
func NewTextToolContent(text string) ToolCallContent {
	block := NewTextContent(text)
	return ToolCallContent{Type: "content", Content: &block}
}

// NewDiffToolContent builds a structured diff content item.
func NewDiffToolContent(path, oldText, newText string) ToolCallContent {
	return ToolCallContent{Type: "diff", Path: path, OldText: &oldText, NewText: newText}
}

// ToolCallLocation points a tool call at a file position.
type ToolCallLocation struct {
	Path string `json:"path"`
	Line *int   `json:"line,omitempty"`
}

// PlanUpdate reports the agent's current task list.
type PlanUpdate struct {
	Type    string      `json:"sessionUpdate"`
	Entries []PlanEntry `json:"entries"`
}

func (u PlanUpdate) updateType() string { return UpdateTypePlan }

// PlanEntry is a single step in a plan.
type PlanEntry struct {
	Content  string `json:"content"`
	Priority string `json:"priority"` // "high", "medium", "low"
	Status   string `json:"status"`   // "pending", "in_progress", "completed"
}

// CurrentModeUpdate reports a mode switch.
type CurrentModeUpdate struct {
	Type          string `json:"sessionUpdate"`
	CurrentModeID string `json:"currentModeId"`
}

func (u CurrentModeUpdate) updateType() string { return UpdateTypeCurrentMode }

// NewCurrentModeUpdate builds a current_mode_update.
func NewCurrentModeUpdate(modeID string) CurrentModeUpdate {
	return CurrentModeUpdate{Type: UpdateTypeCurrentMode, CurrentModeID: modeID}
}

// AvailableCommandsUpdate reports the commands the agent accepts.
type AvailableCommandsUpdate struct {
	Type              string             `json:"sessionUpdate"`
	AvailableCommands []AvailableCommand `json:"availableCommands"`
}

func (u AvailableCommandsUpdate) updateType() string { return UpdateTypeAvailableCommands }

// AvailableCommand describes one invocable command.
type AvailableCommand struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Input       *AvailableCommandInput `json:"input,omitempty"`
}

// AvailableCommandInput hints at the command's argument shape.
type AvailableCommandInput struct {
	Hint string `json:"hint,omitempty"`
}

// --- Cancel ---

// CancelNotification is sent by the client to cancel a prompt.
type CancelNotification struct {
	SessionID string `json:"sessionId"`
}

// --- Permission round trip (agent-to-client request) ---

// Permission option kinds.
const (
	PermissionAllowOnce   = "allow_once"
	PermissionAllowAlways = "allow_always"
	PermissionRejectOnce  = "reject_once"
)

// RequestPermissionRequest asks the client to authorize a tool call.
type RequestPermissionRequest struct {
	SessionID string             `json:"sessionId"`
	ToolCall  ToolCallRef        `json:"toolCall"`
	Options   []PermissionOption `json:"options"`
}

// ToolCallRef identifies the tool call requiring permission.
type ToolCallRef struct {
	ToolCallID string                 `json:"toolCallId"`
	Title      string                 `json:"title,omitempty"`
	RawInput   map[string]interface{} `json:"rawInput,omitempty"`
}

// PermissionOption describes a permission choice.
type PermissionOption struct {
	ID   string `json:"optionId"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// RequestPermissionResponse returns the user's permission choice.
type RequestPermissionResponse struct {
	Outcome PermissionOutcome `json:"outcome"`
}

// PermissionOutcome is the result of a permission request.
// Discriminated by the Type field.
type PermissionOutcome struct {
	Type     string `json:"outcome"` // "cancelled", "selected"
	OptionID string `json:"optionId,omitempty"`
}
