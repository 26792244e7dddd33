package cursor

import (
	"encoding/json"
	"fmt"
	"strings"
)

// rawRecord is used for initial type discrimination of NDJSON lines.
type rawRecord struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype,omitempty"`
}

// SystemInitRecord announces the backend session.
// Example: {"type":"system","subtype":"init","session_id":"...","model":"...","cwd":"...","permissionMode":"..."}
type SystemInitRecord struct {
	Type           string `json:"type"`
	Subtype        string `json:"subtype"`
	SessionID      string `json:"session_id"`
	Model          string `json:"model"`
	CWD            string `json:"cwd"`
	PermissionMode string `json:"permissionMode"`
	APIKeySource   string `json:"apiKeySource"`
}

// ThinkingDeltaRecord carries incremental reasoning text.
// Example: {"type":"thinking","subtype":"delta","text":"...","session_id":"..."}
type ThinkingDeltaRecord struct {
	Type      string `json:"type"`
	Subtype   string `json:"subtype"`
	Text      string `json:"text"`
	SessionID string `json:"session_id"`
}

// AssistantContent is a content block within an assistant message.
type AssistantContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// AssistantInner is the inner message object of an assistant record.
type AssistantInner struct {
	Role    string             `json:"role"`
	Content []AssistantContent `json:"content"`
}

// AssistantRecord represents an assistant text message.
// Example: {"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"..."}]},"session_id":"..."}
type AssistantRecord struct {
	Type      string         `json:"type"`
	Message   AssistantInner `json:"message"`
	SessionID string         `json:"session_id"`
}

// ToolCallRecord represents a tool call event (started or completed).
// The tool_call field is a map with a single key (the tool name) mapping to
// a payload of {args, result?}.
// Example: {"type":"tool_call","subtype":"started","call_id":"...","tool_call":{"readToolCall":{"args":{"path":"..."}}},"session_id":"..."}
type ToolCallRecord struct {
	Type      string                            `json:"type"`
	Subtype   string                            `json:"subtype"`
	CallID    string                            `json:"call_id"`
	ToolCall  map[string]map[string]interface{} `json:"tool_call"`
	SessionID string                            `json:"session_id"`
}

// ToolPayload holds the extracted name, args, and optional result from a
// tool call record's single-key wrapper.
type ToolPayload struct {
	Name   string
	Args   map[string]interface{}
	Result interface{}
}

// Payload extracts the tool payload from the record's single-key wrapper.
func (r *ToolCallRecord) Payload() (*ToolPayload, error) {
	if r == nil || len(r.ToolCall) == 0 {
		return nil, fmt.Errorf("empty tool_call field")
	}

	for name, detail := range r.ToolCall {
		p := &ToolPayload{Name: name}

		if args, ok := detail["args"]; ok {
			if argsMap, ok := args.(map[string]interface{}); ok {
				p.Args = argsMap
			}
		}

		if result, ok := detail["result"]; ok {
			p.Result = result
		}

		return p, nil
	}

	return nil, fmt.Errorf("no tool call entries found")
}

// ResultRecord represents the terminal result of a run.
// Example: {"type":"result","subtype":"success","duration_ms":1234,"is_error":false,"result":"...","session_id":"..."}
type ResultRecord struct {
	Type          string `json:"type"`
	Subtype       string `json:"subtype"`
	DurationMs    int64  `json:"duration_ms"`
	DurationAPIMs int64  `json:"duration_api_ms"`
	IsError       bool   `json:"is_error"`
	Result        string `json:"result"`
	SessionID     string `json:"session_id"`
}

// Record is the union type returned by ParseRecord.
type Record interface {
	recordType() string
}

func (r *SystemInitRecord) recordType() string    { return "system" }
func (r *ThinkingDeltaRecord) recordType() string { return "thinking" }
func (r *AssistantRecord) recordType() string     { return "assistant" }
func (r *ToolCallRecord) recordType() string      { return "tool_call" }
func (r *ResultRecord) recordType() string        { return "result" }

// ParseRecord parses a raw NDJSON line into a typed record.
// Unknown record shapes return (nil, nil) and are skipped by the caller;
// malformed JSON is an error.
func ParseRecord(line []byte) (Record, error) {
	var raw rawRecord
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse record type: %w", err)
	}

	switch raw.Type {
	case "system":
		if raw.Subtype != "init" {
			// Other system subtypes carry nothing the bridge needs.
			return nil, nil
		}
		var rec SystemInitRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("failed to parse system init record: %w", err)
		}
		return &rec, nil

	case "thinking":
		if raw.Subtype != "delta" {
			return nil, nil
		}
		var rec ThinkingDeltaRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("failed to parse thinking record: %w", err)
		}
		return &rec, nil

	case "assistant":
		var rec AssistantRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("failed to parse assistant record: %w", err)
		}
		return &rec, nil

	case "tool_call":
		var rec ToolCallRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("failed to parse tool_call record: %w", err)
		}
		return &rec, nil

	case "result":
		var rec ResultRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("failed to parse result record: %w", err)
		}
		return &rec, nil

	default:
		// Unknown record types (e.g. "user") are silently skipped.
		return nil, nil
	}
}

// toolCallSuffix is appended by the CLI to every tool name on the wire.
const toolCallSuffix = "ToolCall"

// NormalizeToolName strips the wire suffix from a tool name for display and
// classification. Callers keep the raw name for lookups.
func NormalizeToolName(name string) string {
	return strings.TrimSuffix(name, toolCallSuffix)
}

// SanitizeCallID makes a call identifier safe for use as a notification key.
// Any byte outside [A-Za-z0-9_.-] is replaced with '-'.
func SanitizeCallID(id string) string {
	var b strings.Builder
	b.Grow(len(id))
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == '_', c == '.', c == '-':
			b.WriteByte(c)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}
