package cursor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/raphaelluethy/cursor-acp/acp"
)

// ToolInfo is the presentation derived from a tool invocation: never stored
// on the wire, rebuilt from (name, args) as needed.
type ToolInfo struct {
	Title     string
	Kind      string
	Content   []acp.ToolCallContent
	Locations []acp.ToolCallLocation
}

// Tool names as they appear after normalization.
const (
	toolShell       = "shell"
	toolRead        = "read"
	toolEdit        = "edit"
	toolWrite       = "write"
	toolUpdateTodos = "updateTodos"
)

// NewToolInfo classifies a tool invocation by normalized name and builds its
// start presentation.
func NewToolInfo(rawName string, args map[string]interface{}) ToolInfo {
	name := NormalizeToolName(rawName)
	path := stringField(args, "path", "file_path", "filePath")

	switch name {
	case toolShell:
		title := "Shell"
		if cmd := stringField(args, "command"); cmd != "" {
			title = "`" + cmd + "`"
		}
		return ToolInfo{Title: title, Kind: acp.ToolKindExecute}

	case toolRead:
		info := ToolInfo{Title: "Read", Kind: acp.ToolKindRead}
		if path != "" {
			info.Title = "Read " + path
			line := 0
			info.Locations = []acp.ToolCallLocation{{Path: path, Line: &line}}
		}
		return info

	case toolEdit:
		info := ToolInfo{Title: "Edit", Kind: acp.ToolKindEdit}
		if path != "" {
			info.Title = "Edit " + path
			info.Locations = []acp.ToolCallLocation{{Path: path}}
		}
		return info

	case toolWrite:
		info := ToolInfo{Title: "Write", Kind: acp.ToolKindEdit}
		if path != "" {
			info.Title = "Write " + path
			info.Locations = []acp.ToolCallLocation{{Path: path}}
		}
		return info

	case toolUpdateTodos:
		return ToolInfo{Title: "Update TODOs", Kind: acp.ToolKindThink}

	default:
		title := name
		if title == "" {
			title = rawName
		}
		return ToolInfo{Title: title, Kind: acp.ToolKindOther}
	}
}

// CompletionContent builds the content items for a tool call completion.
// Edit-shaped results prefer a structured diff; everything else falls back
// to generic text extraction.
func CompletionContent(rawName string, args map[string]interface{}, result interface{}) []acp.ToolCallContent {
	name := NormalizeToolName(rawName)

	if name == toolEdit || name == toolWrite {
		if item, ok := diffContent(args, result); ok {
			return []acp.ToolCallContent{item}
		}
	}

	text := ExtractResultText(result)
	if text == "" {
		return nil
	}
	return []acp.ToolCallContent{acp.NewTextToolContent(FencedCodeBlock(text))}
}

// diffContent builds a diff content item from an edit/write result. Full
// before/after snapshots win; a prebuilt diff string is second choice.
func diffContent(args map[string]interface{}, result interface{}) (acp.ToolCallContent, bool) {
	path := stringField(args, "path", "file_path", "filePath")

	for _, scope := range resultScopes(result) {
		before, hasBefore := scope["beforeSnapshot"].(string)
		after, hasAfter := scope["afterSnapshot"].(string)
		if hasBefore && hasAfter {
			if p := stringField(scope, "path"); p != "" {
				path = p
			}
			return acp.NewDiffToolContent(path, before, after), true
		}

		if diff := stringField(scope, "diff", "diffString", "patch"); diff != "" {
			return acp.NewTextToolContent(FencedCodeBlock(diff)), true
		}
	}

	return acp.ToolCallContent{}, false
}

// resultFields is the candidate field order for generic text extraction.
var resultFields = []string{"content", "text", "output", "message", "result", "lines"}

// ExtractResultText pulls a human-readable string out of a heterogeneous
// tool result. It walks the success, error, and rejected sub-objects in that
// order, trying interleaved output, then stdout/stderr, then a fixed list of
// content-ish fields; failing all of that it pretty-prints the whole result.
func ExtractResultText(result interface{}) string {
	if result == nil {
		return ""
	}

	if s, ok := result.(string); ok {
		return s
	}

	for _, scope := range resultScopes(result) {
		if text := extractFromScope(scope); text != "" {
			return text
		}
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", result)
	}
	return string(data)
}

// resultScopes returns the sub-objects to search, in priority order:
// success, error, rejected, then the result object itself.
func resultScopes(result interface{}) []map[string]interface{} {
	obj, ok := result.(map[string]interface{})
	if !ok {
		return nil
	}

	var scopes []map[string]interface{}
	for _, key := range []string{"success", "error", "rejected"} {
		if sub, ok := obj[key].(map[string]interface{}); ok {
			scopes = append(scopes, sub)
		}
	}
	return append(scopes, obj)
}

func extractFromScope(scope map[string]interface{}) string {
	if text := joinValue(scope["interleavedOutput"]); text != "" {
		return text
	}

	stdout := joinValue(scope["stdout"])
	stderr := joinValue(scope["stderr"])
	switch {
	case stdout != "" && stderr != "":
		return stdout + "\n" + stderr
	case stdout != "":
		return stdout
	case stderr != "":
		return stderr
	}

	for _, field := range resultFields {
		if text := joinValue(scope[field]); text != "" {
			return text
		}
	}
	return ""
}

// joinValue flattens a string or an array of strings/objects into text.
func joinValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case []interface{}:
		var parts []string
		for _, item := range val {
			switch iv := item.(type) {
			case string:
				parts = append(parts, iv)
			case map[string]interface{}:
				if text := stringField(iv, "text", "content"); text != "" {
					parts = append(parts, text)
				} else if data, err := json.Marshal(iv); err == nil {
					parts = append(parts, string(data))
				}
			}
		}
		return strings.Join(parts, "\n")
	default:
		return ""
	}
}

// IsRejected reports whether a tool result indicates explicit rejection: an
// object containing a nested rejected object. A bare error field does not
// count.
func IsRejected(result interface{}) bool {
	obj, ok := result.(map[string]interface{})
	if !ok {
		return false
	}
	_, ok = obj["rejected"].(map[string]interface{})
	return ok
}

// ShellResultPrefix summarizes a shell result's exit code and signal, if
// present. Returns "" when neither is carried.
func ShellResultPrefix(result interface{}) string {
	var parts []string
	for _, scope := range resultScopes(result) {
		if code, ok := numberField(scope, "exitCode", "exit_code"); ok {
			parts = append(parts, fmt.Sprintf("Exit code %d", code))
		}
		if sig := stringField(scope, "signal"); sig != "" {
			parts = append(parts, "Signal "+sig)
		}
		if len(parts) > 0 {
			break
		}
	}
	return strings.Join(parts, ", ")
}

// FencedCodeBlock wraps text in a backtick fence strictly longer than any
// backtick run inside the text, so the content cannot escape the fence.
func FencedCodeBlock(text string) string {
	longest := 0
	run := 0
	for _, r := range text {
		if r == '`' {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}

	size := longest + 1
	if size < 3 {
		size = 3
	}
	fence := strings.Repeat("`", size)

	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return fence + "\n" + text + fence
}

// stringField returns the first non-empty string among the named fields.
func stringField(m map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// numberField returns the first numeric field among the named keys.
func numberField(m map[string]interface{}, keys ...string) (int, bool) {
	for _, key := range keys {
		switch n := m[key].(type) {
		case float64:
			return int(n), true
		case int:
			return n, true
		case json.Number:
			if i, err := n.Int64(); err == nil {
				return int(i), true
			}
		}
	}
	return 0, false
}
