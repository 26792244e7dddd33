package cursor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelluethy/cursor-acp/acp"
)

func toolCallRecord(subtype, callID, name string, detail map[string]interface{}) *ToolCallRecord {
	return &ToolCallRecord{
		Type:     "tool_call",
		Subtype:  subtype,
		CallID:   callID,
		ToolCall: map[string]map[string]interface{}{name: detail},
	}
}

func TestMapRecordSystemInit(t *testing.T) {
	out := MapRecord(&SystemInitRecord{
		SessionID:      "be-1",
		PermissionMode: "default",
	}, NewToolUseCache())

	assert.Empty(t, out.Updates)
	assert.Equal(t, "be-1", out.BackendSessionID)
	assert.Equal(t, "default", out.CurrentModeID)
}

func TestMapRecordThinking(t *testing.T) {
	cache := NewToolUseCache()

	out := MapRecord(&ThinkingDeltaRecord{Text: "pondering"}, cache)
	require.Len(t, out.Updates, 1)
	chunk, ok := out.Updates[0].(acp.AgentThoughtChunk)
	require.True(t, ok)
	assert.Equal(t, "pondering", chunk.Content.Text)

	out = MapRecord(&ThinkingDeltaRecord{Text: ""}, cache)
	assert.Empty(t, out.Updates)
}

func TestMapRecordAssistant(t *testing.T) {
	out := MapRecord(&AssistantRecord{
		Message: AssistantInner{Content: []AssistantContent{
			{Type: "text", Text: "part one"},
			{Type: "tool_use", Text: ""},
			{Type: "text", Text: "part two"},
		}},
	}, NewToolUseCache())

	require.Len(t, out.Updates, 2)
	first := out.Updates[0].(acp.AgentMessageChunk)
	second := out.Updates[1].(acp.AgentMessageChunk)
	assert.Equal(t, "part one", first.Content.Text)
	assert.Equal(t, "part two", second.Content.Text)
}

func TestMapRecordToolLifecycle(t *testing.T) {
	cache := NewToolUseCache()

	started := toolCallRecord("started", "c-1", "readToolCall", map[string]interface{}{
		"args": map[string]interface{}{"path": "main.go"},
	})
	out := MapRecord(started, cache)
	require.Len(t, out.Updates, 1)

	start, ok := out.Updates[0].(acp.ToolCallStart)
	require.True(t, ok)
	assert.Equal(t, "c-1", start.ToolCallID)
	assert.Equal(t, "Read main.go", start.Title)
	assert.Equal(t, acp.ToolKindRead, start.Kind)
	assert.Equal(t, acp.ToolStatusPending, start.Status)
	assert.Equal(t, "readToolCall", start.Meta["toolName"])
	require.Contains(t, cache, "c-1")

	completed := toolCallRecord("completed", "c-1", "readToolCall", map[string]interface{}{
		"args":   map[string]interface{}{"path": "main.go"},
		"result": map[string]interface{}{"success": map[string]interface{}{"content": "package main"}},
	})
	out = MapRecord(completed, cache)
	require.Len(t, out.Updates, 1)

	update, ok := out.Updates[0].(acp.ToolCallUpdate)
	require.True(t, ok)
	assert.Equal(t, "c-1", update.ToolCallID)
	assert.Equal(t, acp.ToolStatusCompleted, update.Status)
	assert.NotContains(t, cache, "c-1")
	assert.Nil(t, out.Rejected)
}

func TestMapRecordCompletionWithoutStart(t *testing.T) {
	cache := NewToolUseCache()

	completed := toolCallRecord("completed", "orphan", "shellToolCall", map[string]interface{}{
		"args":   map[string]interface{}{"command": "ls"},
		"result": map[string]interface{}{"success": map[string]interface{}{"stdout": "a.txt", "exitCode": float64(0)}},
	})
	out := MapRecord(completed, cache)
	require.Len(t, out.Updates, 1)

	update := out.Updates[0].(acp.ToolCallUpdate)
	assert.Equal(t, "orphan", update.ToolCallID)
	assert.Equal(t, acp.ToolStatusCompleted, update.Status)
	assert.Empty(t, cache)
}

func TestMapRecordShellCompletion(t *testing.T) {
	cache := NewToolUseCache()
	MapRecord(toolCallRecord("started", "sh-1", "shellToolCall", map[string]interface{}{
		"args": map[string]interface{}{"command": "false"},
	}), cache)

	out := MapRecord(toolCallRecord("completed", "sh-1", "shellToolCall", map[string]interface{}{
		"result": map[string]interface{}{"error": map[string]interface{}{
			"exitCode": float64(1),
			"stderr":   "nope",
		}},
	}), cache)

	require.Len(t, out.Updates, 1)
	update := out.Updates[0].(acp.ToolCallUpdate)

	// Raw output carries the clean text; the display prefix lives in content
	// and metadata.
	assert.Equal(t, "nope", update.RawOutput)
	require.Len(t, update.Content, 1)
	assert.Contains(t, update.Content[0].Content.Text, "Exit code 1")
	assert.Contains(t, update.Content[0].Content.Text, "nope")
	assert.Equal(t, "Exit code 1\n\nnope", update.Meta["output"])
}

func TestMapRecordRejection(t *testing.T) {
	cache := NewToolUseCache()
	args := map[string]interface{}{"command": "rm -rf /tmp/x"}

	MapRecord(toolCallRecord("started", "rj-1", "shellToolCall", map[string]interface{}{
		"args": args,
	}), cache)

	out := MapRecord(toolCallRecord("completed", "rj-1", "shellToolCall", map[string]interface{}{
		"args":   args,
		"result": map[string]interface{}{"rejected": map[string]interface{}{}},
	}), cache)

	require.Len(t, out.Updates, 1)
	update := out.Updates[0].(acp.ToolCallUpdate)
	assert.Equal(t, acp.ToolStatusFailed, update.Status)

	require.NotNil(t, out.Rejected)
	assert.Equal(t, "rj-1", out.Rejected.ToolCallID)
	assert.Equal(t, "`rm -rf /tmp/x`", out.Rejected.Title)
	assert.Equal(t, args, out.Rejected.RawInput)
}

func TestMapRecordTodosProducePlan(t *testing.T) {
	cache := NewToolUseCache()
	todos := map[string]interface{}{
		"todos": []interface{}{
			map[string]interface{}{"content": "write code", "status": "TODO_STATUS_COMPLETED"},
			map[string]interface{}{"content": "write tests", "status": "in_progress"},
			map[string]interface{}{"content": "ship it", "status": "TODO_STATUS_PENDING"},
		},
	}

	MapRecord(toolCallRecord("started", "td-1", "updateTodosToolCall", map[string]interface{}{
		"args": todos,
	}), cache)

	out := MapRecord(toolCallRecord("completed", "td-1", "updateTodosToolCall", map[string]interface{}{
		"args":   todos,
		"result": map[string]interface{}{"success": map[string]interface{}{}},
	}), cache)

	require.Len(t, out.Updates, 2)
	plan, ok := out.Updates[1].(acp.PlanUpdate)
	require.True(t, ok)
	require.Len(t, plan.Entries, 3)

	assert.Equal(t, "write code", plan.Entries[0].Content)
	assert.Equal(t, "completed", plan.Entries[0].Status)
	assert.Equal(t, "in_progress", plan.Entries[1].Status)
	assert.Equal(t, "pending", plan.Entries[2].Status)
	for _, entry := range plan.Entries {
		assert.Equal(t, "medium", entry.Priority)
	}
}

func TestMapRecordSanitizesCallID(t *testing.T) {
	cache := NewToolUseCache()
	out := MapRecord(toolCallRecord("started", "call id/1", "readToolCall", map[string]interface{}{
		"args": map[string]interface{}{},
	}), cache)

	require.Len(t, out.Updates, 1)
	start := out.Updates[0].(acp.ToolCallStart)
	assert.Equal(t, "call-id-1", start.ToolCallID)
}

func TestMapRecordResultProducesNothing(t *testing.T) {
	out := MapRecord(&ResultRecord{Subtype: "success"}, NewToolUseCache())
	assert.Empty(t, out.Updates)
	assert.Nil(t, out.Rejected)
}
