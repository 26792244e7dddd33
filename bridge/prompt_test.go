package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelluethy/cursor-acp/acp"
)

func TestParseSlashCommand(t *testing.T) {
	tests := []struct {
		text     string
		wantName string
		wantArgs string
		wantOK   bool
	}{
		{"/help", "help", "", true},
		{"/model gpt-5.2", "model", "gpt-5.2", true},
		{"  /mode plan  ", "mode", "plan", true},
		{"/review main develop", "review", "main develop", true},
		{"plain prompt", "", "", false},
		{"/", "", "", false},
		{"", "", "", false},
	}

	for _, tt := range tests {
		name, args, ok := parseSlashCommand(tt.text)
		assert.Equal(t, tt.wantOK, ok, tt.text)
		assert.Equal(t, tt.wantName, name, tt.text)
		assert.Equal(t, tt.wantArgs, args, tt.text)
	}
}

func TestFlattenPromptText(t *testing.T) {
	text := FlattenPrompt([]acp.ContentBlock{
		acp.NewTextContent("first "),
		acp.NewTextContent("second"),
	})
	assert.Equal(t, "first second", text)
}

func TestFlattenPromptResourceLink(t *testing.T) {
	text := FlattenPrompt([]acp.ContentBlock{
		acp.NewTextContent("see "),
		{Type: "resource_link", Name: "main.go", URI: "file:///work/main.go"},
	})
	assert.Equal(t, "see @main.go (file:///work/main.go)", text)

	// Name falls back to the URI.
	text = FlattenPrompt([]acp.ContentBlock{
		{Type: "resource_link", URI: "file:///x"},
	})
	assert.Equal(t, "@file:///x (file:///x)", text)
}

func TestFlattenPromptEmbeddedResource(t *testing.T) {
	text := FlattenPrompt([]acp.ContentBlock{
		acp.NewTextContent("explain "),
		{Type: "resource", Resource: &acp.EmbeddedResource{
			URI:  "file:///work/a.go",
			Text: "package main",
		}},
	})

	assert.Contains(t, text, "explain @file:///work/a.go")
	assert.Contains(t, text, "<context uri=\"file:///work/a.go\">\npackage main\n</context>")
}

func TestFlattenPromptBinaryPlaceholders(t *testing.T) {
	text := FlattenPrompt([]acp.ContentBlock{
		{Type: "image", MimeType: "image/png", Data: "aGk="},
		{Type: "audio", MimeType: "audio/wav", Data: "aGk="},
	})
	assert.Equal(t, "[image][audio]", text)
}

func TestBuildArgs(t *testing.T) {
	a := New(Config{})
	s := newSession("sess-1", "/work")

	args := a.buildArgs(s, "do the thing", false)
	assert.Equal(t, []string{
		"--print", "--output-format", "stream-json",
		"--workspace", "/work",
		"do the thing",
	}, args)

	s.setBackendID("be-1")
	s.setModel("gpt-5.2")
	args = a.buildArgs(s, "again", false)
	assert.Equal(t, []string{
		"--print", "--output-format", "stream-json",
		"--resume", "be-1",
		"--workspace", "/work",
		"--model", "gpt-5.2",
		"again",
	}, args)
}

func TestBuildArgsModes(t *testing.T) {
	a := New(Config{})
	s := newSession("sess-1", "")

	s.setMode(ModePlan)
	assert.Contains(t, a.buildArgs(s, "x", false), "--mode")
	assert.Contains(t, a.buildArgs(s, "x", false), "plan")

	s.setMode(ModeAsk)
	args := a.buildArgs(s, "x", false)
	assert.Contains(t, args, "ask")
	assert.NotContains(t, args, "--force")

	s.setMode(ModeBypass)
	args = a.buildArgs(s, "x", false)
	assert.Contains(t, args, "--force")
	assert.NotContains(t, args, "--mode")

	// A forced retry bypasses regardless of mode.
	s.setMode(ModeDefault)
	args = a.buildArgs(s, "x", true)
	assert.Contains(t, args, "--force")
}

func TestValidMode(t *testing.T) {
	for _, id := range []string{ModeDefault, ModeAcceptEdits, ModePlan, ModeAsk, ModeBypass} {
		assert.True(t, ValidMode(id), id)
	}
	assert.False(t, ValidMode("yolo"))
	assert.False(t, ValidMode(""))
}

func TestConfirmationMode(t *testing.T) {
	assert.True(t, confirmationMode(ModeDefault))
	assert.True(t, confirmationMode(ModeAcceptEdits))
	assert.False(t, confirmationMode(ModePlan))
	assert.False(t, confirmationMode(ModeAsk))
	assert.False(t, confirmationMode(ModeBypass))
}

func TestIsMaxTurnSubtype(t *testing.T) {
	assert.True(t, isMaxTurnSubtype("error_max_turns"))
	assert.True(t, isMaxTurnSubtype("max_turns"))
	assert.False(t, isMaxTurnSubtype("success"))
	assert.False(t, isMaxTurnSubtype("error"))
}

func TestSessionCancelRace(t *testing.T) {
	s := newSession("sess-1", "")

	s.BeginPrompt()
	assert.False(t, s.Cancelled())

	s.CancelTurn()
	assert.True(t, s.Cancelled())

	// A new turn clears the flag.
	s.BeginPrompt()
	assert.False(t, s.Cancelled())
}

func TestSessionRegistry(t *testing.T) {
	var reg syncSessions
	require.Nil(t, reg.get("missing"))

	s := newSession("sess-1", "/a")
	reg.put(s)
	assert.Same(t, s, reg.get("sess-1"))

	replacement := newSession("sess-1", "/b")
	reg.put(replacement)
	assert.Same(t, replacement, reg.get("sess-1"))
}
