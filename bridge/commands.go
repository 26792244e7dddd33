package bridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/raphaelluethy/cursor-acp/acp"
)

// builtinAvailableCommands lists the commands handled by the bridge itself
// rather than forwarded to the CLI.
func builtinAvailableCommands() []acp.AvailableCommand {
	return []acp.AvailableCommand{
		{Name: "help", Description: "Show available commands"},
		{Name: "status", Description: "Show authentication status"},
		{Name: "login", Description: "Log in to Cursor"},
		{Name: "logout", Description: "Log out of Cursor"},
		{Name: "model", Description: "Show or switch the model", Input: &acp.AvailableCommandInput{Hint: "[model id]"}},
		{Name: "mode", Description: "Show or switch the permission mode", Input: &acp.AvailableCommandInput{Hint: "[mode id]"}},
	}
}

// runBuiltin executes a built-in slash command. handled is false when the
// name belongs to no built-in, leaving user commands and the CLI to claim it.
func (a *Agent) runBuiltin(ctx context.Context, s *Session, name, args string) (handled bool, resp *acp.PromptResponse, err error) {
	var text string

	switch name {
	case "help":
		text = a.helpText(s)
	case "status":
		status := a.cli.Status(ctx)
		if status.LoggedIn {
			text = fmt.Sprintf("Logged in as %s.", status.Account)
		} else {
			text = "Not logged in. Use /login to authenticate."
		}
	case "login":
		status := a.cli.Login(ctx)
		if status.LoggedIn {
			text = fmt.Sprintf("Logged in as %s.", status.Account)
		} else {
			text = "Login did not complete."
		}
	case "logout":
		if err := a.cli.Logout(ctx); err != nil {
			text = fmt.Sprintf("Logout failed: %v", err)
		} else {
			text = "Logged out."
		}
	case "model":
		text = a.modelCommand(ctx, s, args)
	case "mode":
		text, err = a.modeCommand(s, args)
		if err != nil {
			return true, nil, err
		}
	default:
		return false, nil, nil
	}

	// A cancel that landed while the handler ran wins over its output.
	if s.Cancelled() {
		return true, &acp.PromptResponse{StopReason: acp.StopReasonCancelled}, nil
	}

	if err := a.conn.SessionUpdate(s.ID, acp.NewAgentMessageChunk(text)); err != nil {
		return true, nil, err
	}
	return true, &acp.PromptResponse{StopReason: acp.StopReasonEndTurn}, nil
}

func (a *Agent) helpText(s *Session) string {
	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, cmd := range builtinAvailableCommands() {
		fmt.Fprintf(&b, "  /%s - %s\n", cmd.Name, cmd.Description)
	}
	if user := s.Commands(); len(user) > 0 {
		b.WriteString("\nCustom commands:\n")
		for _, cmd := range user {
			fmt.Fprintf(&b, "  /%s - %s\n", cmd.Name, cmd.Description)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// modelCommand shows the model list or switches to the named model.
func (a *Agent) modelCommand(ctx context.Context, s *Session, args string) string {
	if args == "" {
		models, err := a.cli.ListModels(ctx)
		if err != nil || len(models) == 0 {
			return "No models available."
		}
		var b strings.Builder
		b.WriteString("Available models:\n")
		for _, m := range models {
			marker := ""
			if m.ModelID == s.Model() || (s.Model() == "" && m.Current) {
				marker = " (current)"
			}
			fmt.Fprintf(&b, "  %s - %s%s\n", m.ModelID, m.Name, marker)
		}
		return strings.TrimRight(b.String(), "\n")
	}

	s.setModel(args)
	a.persistMeta(s)
	return fmt.Sprintf("Model set to %s.", args)
}

// modeCommand shows the mode list or switches to the named mode. A mode
// switch also notifies the client through current_mode_update.
func (a *Agent) modeCommand(s *Session, args string) (string, error) {
	if args == "" {
		var b strings.Builder
		b.WriteString("Available modes:\n")
		for _, m := range sessionModes {
			marker := ""
			if m.ID == s.Mode() {
				marker = " (current)"
			}
			fmt.Fprintf(&b, "  %s - %s%s\n", m.ID, m.Name, marker)
		}
		return strings.TrimRight(b.String(), "\n"), nil
	}

	if !ValidMode(args) {
		return fmt.Sprintf("Unknown mode %q.", args), nil
	}

	s.setMode(args)
	a.persistMeta(s)
	if err := a.conn.SessionUpdate(s.ID, acp.NewCurrentModeUpdate(args)); err != nil {
		return "", err
	}
	return fmt.Sprintf("Mode set to %s.", args), nil
}
