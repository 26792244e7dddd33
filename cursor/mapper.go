package cursor

import (
	"github.com/raphaelluethy/cursor-acp/acp"
)

// ToolUse is one open tool call awaiting completion.
type ToolUse struct {
	ToolCallID string
	Name       string
	Title      string
	Args       map[string]interface{}
}

// ToolUseCache tracks open tool calls per session, keyed by sanitized call
// id so concurrent calls to the same tool never collide. A call id has at
// most one open entry; completion always removes it.
type ToolUseCache map[string]ToolUse

// NewToolUseCache creates an empty cache.
func NewToolUseCache() ToolUseCache {
	return make(ToolUseCache)
}

// RejectedToolCall identifies a tool call whose execution was declined by
// the CLI's permission gate.
type RejectedToolCall struct {
	ToolCallID string
	Title      string
	RawInput   map[string]interface{}
}

// MapperOutput is the translation of one stream record.
type MapperOutput struct {
	// Updates are the session/update notifications to emit, in order.
	Updates []acp.SessionUpdate

	// BackendSessionID is set when a system init record discloses the
	// CLI's own session handle.
	BackendSessionID string

	// CurrentModeID is set when the record echoes the CLI's permission
	// mode.
	CurrentModeID string

	// Rejected is set when a completed tool call was rejected.
	Rejected *RejectedToolCall
}

// MapRecord translates one stream record into protocol notifications,
// consulting and mutating the per-session cache. Result records produce no
// notification; they are the orchestrator's terminal signal.
func MapRecord(rec Record, cache ToolUseCache) MapperOutput {
	switch r := rec.(type) {
	case *SystemInitRecord:
		return MapperOutput{
			BackendSessionID: r.SessionID,
			CurrentModeID:    r.PermissionMode,
		}

	case *ThinkingDeltaRecord:
		if r.Text == "" {
			return MapperOutput{}
		}
		return MapperOutput{
			Updates: []acp.SessionUpdate{acp.NewAgentThoughtChunk(r.Text)},
		}

	case *AssistantRecord:
		var out MapperOutput
		for _, block := range r.Message.Content {
			if block.Type == "text" && block.Text != "" {
				out.Updates = append(out.Updates, acp.NewAgentMessageChunk(block.Text))
			}
		}
		return out

	case *ToolCallRecord:
		return mapToolCall(r, cache)

	default:
		return MapperOutput{}
	}
}

func mapToolCall(rec *ToolCallRecord, cache ToolUseCache) MapperOutput {
	payload, err := rec.Payload()
	if err != nil {
		// A tool_call record without a payload carries nothing to report.
		return MapperOutput{}
	}

	id := SanitizeCallID(rec.CallID)

	switch rec.Subtype {
	case "started":
		return mapToolStarted(id, payload, cache)
	case "completed":
		return mapToolCompleted(id, payload, cache)
	default:
		return MapperOutput{}
	}
}

func mapToolStarted(id string, payload *ToolPayload, cache ToolUseCache) MapperOutput {
	info := NewToolInfo(payload.Name, payload.Args)

	cache[id] = ToolUse{
		ToolCallID: id,
		Name:       payload.Name,
		Title:      info.Title,
		Args:       payload.Args,
	}

	return MapperOutput{
		Updates: []acp.SessionUpdate{acp.ToolCallStart{
			Type:       acp.UpdateTypeToolCall,
			ToolCallID: id,
			Title:      info.Title,
			Kind:       info.Kind,
			Status:     acp.ToolStatusPending,
			Content:    info.Content,
			Locations:  info.Locations,
			RawInput:   payload.Args,
			Meta:       map[string]interface{}{"toolName": payload.Name},
		}},
	}
}

func mapToolCompleted(id string, payload *ToolPayload, cache ToolUseCache) MapperOutput {
	use, ok := cache[id]
	if !ok {
		// The started record was missed; synthesize the entry from the
		// completion payload itself.
		info := NewToolInfo(payload.Name, payload.Args)
		use = ToolUse{
			ToolCallID: id,
			Name:       payload.Name,
			Title:      info.Title,
			Args:       payload.Args,
		}
	}
	delete(cache, id)

	rejected := IsRejected(payload.Result)

	status := acp.ToolStatusCompleted
	if rejected {
		status = acp.ToolStatusFailed
	}

	update := acp.ToolCallUpdate{
		Type:       acp.UpdateTypeToolCallUpdate,
		ToolCallID: id,
		Status:     status,
		RawOutput:  payload.Result,
	}

	if NormalizeToolName(use.Name) == toolShell {
		// Dual representation: clean raw output for strict clients, the
		// exit-code/signal prefixed text as display metadata.
		raw := ExtractResultText(payload.Result)
		display := raw
		if prefix := ShellResultPrefix(payload.Result); prefix != "" {
			display = prefix
			if raw != "" {
				display += "\n\n" + raw
			}
		}
		update.RawOutput = raw
		if display != "" {
			update.Content = []acp.ToolCallContent{acp.NewTextToolContent(FencedCodeBlock(display))}
			update.Meta = map[string]interface{}{"output": display}
		}
	} else {
		update.Content = CompletionContent(use.Name, use.Args, payload.Result)
	}

	out := MapperOutput{Updates: []acp.SessionUpdate{update}}

	if NormalizeToolName(use.Name) == toolUpdateTodos {
		if plan, ok := planFromTodos(use.Args, payload.Args); ok {
			out.Updates = append(out.Updates, plan)
		}
	}

	if rejected {
		out.Rejected = &RejectedToolCall{
			ToolCallID: id,
			Title:      use.Title,
			RawInput:   use.Args,
		}
	}

	return out
}

// planFromTodos translates the todo tool's entries into a plan update. The
// completion payload's args win over the cached start args.
func planFromTodos(startArgs, completionArgs map[string]interface{}) (acp.PlanUpdate, bool) {
	todos, ok := todoList(completionArgs)
	if !ok {
		todos, ok = todoList(startArgs)
	}
	if !ok {
		return acp.PlanUpdate{}, false
	}

	entries := make([]acp.PlanEntry, 0, len(todos))
	for _, todo := range todos {
		item, ok := todo.(map[string]interface{})
		if !ok {
			continue
		}
		entries = append(entries, acp.PlanEntry{
			Content:  stringField(item, "content", "text"),
			Status:   planStatus(stringField(item, "status")),
			Priority: "medium",
		})
	}

	return acp.PlanUpdate{Type: acp.UpdateTypePlan, Entries: entries}, true
}

func todoList(args map[string]interface{}) ([]interface{}, bool) {
	if args == nil {
		return nil, false
	}
	todos, ok := args["todos"].([]interface{})
	return todos, ok && len(todos) > 0
}

// planStatus maps the CLI's enumerated todo statuses onto plan entry
// statuses; anything unrecognized is pending.
func planStatus(s string) string {
	switch s {
	case "TODO_STATUS_COMPLETED", "completed":
		return "completed"
	case "TODO_STATUS_IN_PROGRESS", "in_progress":
		return "in_progress"
	default:
		return "pending"
	}
}
