package cursor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModelList(t *testing.T) {
	out := `
auto - Auto
gpt-5.2 - GPT-5.2 (current)
sonnet-4.5 - Claude Sonnet 4.5

some unrelated banner line
`
	models := ParseModelList(out)
	require.Len(t, models, 3)

	assert.Equal(t, Model{ModelID: "auto", Name: "Auto"}, models[0])
	assert.Equal(t, Model{ModelID: "gpt-5.2", Name: "GPT-5.2", Current: true}, models[1])
	assert.Equal(t, Model{ModelID: "sonnet-4.5", Name: "Claude Sonnet 4.5"}, models[2])
}

func TestParseModelListEmpty(t *testing.T) {
	assert.Empty(t, ParseModelList(""))
	assert.Empty(t, ParseModelList("no separator here"))
}

func TestParseAuthOutput(t *testing.T) {
	status := ParseAuthOutput("✓ Logged in as dev@example.com\n")
	assert.True(t, status.LoggedIn)
	assert.Equal(t, "dev@example.com", status.Account)

	status = ParseAuthOutput("You are not logged in. Run login first.")
	assert.False(t, status.LoggedIn)
	assert.Empty(t, status.Account)

	// Unrecognized output is conservatively logged out.
	status = ParseAuthOutput("something else entirely")
	assert.False(t, status.LoggedIn)
}

func TestCLIRunMissingBinary(t *testing.T) {
	cli := NewCLI("definitely-not-a-real-binary-name", "", nil)
	_, err := cli.ListModels(context.Background())
	require.Error(t, err)

	var notFound *CLINotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestCreateChatTakesLastLine(t *testing.T) {
	script := writeScript(t, "#!/bin/sh\necho 'Creating chat...'\necho ''\necho 'chat-abc123'\n")

	cli := NewCLI(script, "", nil)
	id, err := cli.CreateChat(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "chat-abc123", id)
}

func TestStatusParsesCombinedOutput(t *testing.T) {
	// Auth commands exit nonzero when logged out; the output still counts.
	script := writeScript(t, "#!/bin/sh\necho 'Not logged in' >&2\nexit 1\n")

	cli := NewCLI(script, "", nil)
	status := cli.Status(context.Background())
	assert.False(t, status.LoggedIn)

	script = writeScript(t, "#!/bin/sh\necho 'Logged in as dev@example.com'\n")
	cli = NewCLI(script, "", nil)
	status = cli.Status(context.Background())
	assert.True(t, status.LoggedIn)
	assert.Equal(t, "dev@example.com", status.Account)
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-cursor-agent")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}
