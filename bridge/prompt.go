package bridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/raphaelluethy/cursor-acp/acp"
	"github.com/raphaelluethy/cursor-acp/commands"
	"github.com/raphaelluethy/cursor-acp/cursor"
	"github.com/raphaelluethy/cursor-acp/history"
)

// attemptOutcome gathers what one CLI run produced beyond its streamed
// updates: the terminal result, the first rejected tool call, and the text
// accumulated for the transcript.
type attemptOutcome struct {
	result    *cursor.ResultRecord
	rejected  *cursor.RejectedToolCall
	agentText strings.Builder
}

// Prompt executes one prompt turn: flatten the content blocks, dispatch
// slash commands, run the CLI, and drive the permission-retry cycle for
// rejected tool calls.
func (a *Agent) Prompt(ctx context.Context, req *acp.PromptRequest) (*acp.PromptResponse, error) {
	s, err := a.session(req.SessionID)
	if err != nil {
		return nil, err
	}

	s.promptMu.Lock()
	defer s.promptMu.Unlock()
	s.BeginPrompt()

	text := FlattenPrompt(req.Prompt)
	if strings.TrimSpace(text) == "" {
		return &acp.PromptResponse{StopReason: acp.StopReasonEndTurn}, nil
	}

	a.history.Append(s.ID, history.Record{Role: "user", Text: text})

	if name, args, ok := parseSlashCommand(text); ok {
		if handled, resp, err := a.runBuiltin(ctx, s, name, args); handled {
			return resp, err
		}
		if cmd, ok := s.FindCommand(name); ok {
			text = commands.Expand(cmd.Template, args)
		}
	}

	outcome, err := a.runAttempt(ctx, s, text, false)
	if err != nil {
		return a.settle(s, outcome, err)
	}

	// One forced retry at most. The decision is only solicited in
	// confirmation modes and never after a cancel.
	if outcome.rejected != nil && confirmationMode(s.Mode()) && !s.Cancelled() {
		retry, err := a.resolvePermission(ctx, s, outcome.rejected)
		if err != nil {
			a.logger.Warn("permission request failed", "sessionId", s.ID, "error", err)
		} else if retry && !s.Cancelled() {
			outcome, err = a.runAttempt(ctx, s, text, true)
			return a.settle(s, outcome, err)
		}
	}

	return a.settle(s, outcome, nil)
}

// runAttempt performs a single CLI invocation for the prompt text and
// streams its records to the client. forced bypasses the CLI's permission
// gate regardless of session mode.
func (a *Agent) runAttempt(ctx context.Context, s *Session, text string, forced bool) (*attemptOutcome, error) {
	outcome := &attemptOutcome{}

	args := a.buildArgs(s, text, forced)

	run, err := cursor.StartRun(ctx, cursor.RunConfig{
		Logger:       a.logger,
		CLIPath:      a.config.CursorPath,
		WorkDir:      s.CWD,
		Args:         args,
		DrainTimeout: a.config.DrainTimeout,
	}, func(rec cursor.Record) error {
		return a.handleRecord(s, rec, outcome, forced)
	})
	if err != nil {
		return outcome, err
	}

	s.setActiveRun(run)
	defer s.clearActiveRun()

	result, err := run.Wait()
	if err != nil {
		return outcome, err
	}

	outcome.result = result.Result
	return outcome, nil
}

// handleRecord forwards one mapped record to the client. Called strictly in
// stream order; an emit failure aborts the run.
func (a *Agent) handleRecord(s *Session, rec cursor.Record, outcome *attemptOutcome, forced bool) error {
	out := cursor.MapRecord(rec, s.cache)

	if out.BackendSessionID != "" && out.BackendSessionID != s.BackendID() {
		s.setBackendID(out.BackendSessionID)
		a.persistMeta(s)
	}

	// The CLI echoes its effective permission mode on init. Adopt it
	// silently, but only while the session still runs the default policy:
	// an explicit client choice (acceptEdits, plan, bypass) outranks the
	// echo, and a forced retry's echo reflects --force rather than policy.
	if !forced && s.Mode() == ModeDefault && ValidMode(out.CurrentModeID) && out.CurrentModeID != ModeDefault {
		s.setMode(out.CurrentModeID)
		a.persistMeta(s)
	}

	// Only the first rejection of an unforced attempt is eligible for the
	// permission round trip.
	if out.Rejected != nil && outcome.rejected == nil && !forced {
		outcome.rejected = out.Rejected
	}

	for _, update := range out.Updates {
		if chunk, ok := update.(acp.AgentMessageChunk); ok {
			outcome.agentText.WriteString(chunk.Content.Text)
		}
		if err := a.conn.SessionUpdate(s.ID, update); err != nil {
			return err
		}
	}
	return nil
}

// buildArgs assembles the CLI invocation for one attempt.
func (a *Agent) buildArgs(s *Session, text string, forced bool) []string {
	args := []string{"--print", "--output-format", "stream-json"}

	if backendID := s.BackendID(); backendID != "" {
		args = append(args, "--resume", backendID)
	}
	if s.CWD != "" {
		args = append(args, "--workspace", s.CWD)
	}
	if model := s.Model(); model != "" {
		args = append(args, "--model", model)
	}

	switch mode := s.Mode(); {
	case forced || mode == ModeBypass:
		args = append(args, "--force")
	case mode == ModePlan:
		args = append(args, "--mode", "plan")
	case mode == ModeAsk:
		args = append(args, "--mode", "ask")
	}

	return append(args, text)
}

// resolvePermission asks the client what to do about a rejected tool call.
// It returns whether the call should be retried with permissions bypassed.
func (a *Agent) resolvePermission(ctx context.Context, s *Session, rejected *cursor.RejectedToolCall) (bool, error) {
	resp, err := a.conn.RequestPermission(ctx, &acp.RequestPermissionRequest{
		SessionID: s.ID,
		ToolCall: acp.ToolCallRef{
			ToolCallID: rejected.ToolCallID,
			Title:      rejected.Title,
			RawInput:   rejected.RawInput,
		},
		Options: []acp.PermissionOption{
			{ID: acp.PermissionAllowOnce, Name: "Allow", Kind: acp.PermissionAllowOnce},
			{ID: acp.PermissionAllowAlways, Name: "Always Allow", Kind: acp.PermissionAllowAlways},
			{ID: acp.PermissionRejectOnce, Name: "Reject", Kind: acp.PermissionRejectOnce},
		},
	})
	if err != nil {
		return false, err
	}

	// A cancelled turn wins over whatever the client answered.
	if s.Cancelled() || resp.Outcome.Type != "selected" {
		return false, nil
	}

	switch resp.Outcome.OptionID {
	case acp.PermissionAllowOnce:
		return true, nil
	case acp.PermissionAllowAlways:
		// Mode flips before the retry so the client sees the new policy in
		// effect for the rerun.
		s.setMode(ModeBypass)
		a.persistMeta(s)
		if err := a.conn.SessionUpdate(s.ID, acp.NewCurrentModeUpdate(ModeBypass)); err != nil {
			a.logger.Warn("mode update emit failed", "sessionId", s.ID, "error", err)
		}
		return true, nil
	default:
		return false, nil
	}
}

// settle converts an attempt's outcome into the prompt response.
// Cancellation takes precedence over both run errors and result subtypes.
func (a *Agent) settle(s *Session, outcome *attemptOutcome, runErr error) (*acp.PromptResponse, error) {
	if text := outcome.agentText.String(); text != "" {
		a.history.Append(s.ID, history.Record{Role: "agent", Text: text})
	}

	if s.Cancelled() {
		return &acp.PromptResponse{StopReason: acp.StopReasonCancelled}, nil
	}

	if runErr != nil {
		return nil, runErr
	}

	result := outcome.result
	if result == nil {
		return nil, cursor.ErrNoResult
	}

	switch {
	case isMaxTurnSubtype(result.Subtype):
		return &acp.PromptResponse{StopReason: acp.StopReasonMaxTurnRequests}, nil
	case result.IsError || result.Subtype != "success":
		msg := cursor.ExtractResultText(result.Result)
		if msg == "" {
			msg = result.Subtype
		}
		return nil, fmt.Errorf("prompt failed: %s", msg)
	default:
		return &acp.PromptResponse{StopReason: acp.StopReasonEndTurn}, nil
	}
}

// isMaxTurnSubtype matches the CLI's turn-limit result markers.
func isMaxTurnSubtype(subtype string) bool {
	switch subtype {
	case "error_max_turns", "max_turns", "max_turn_requests":
		return true
	}
	return false
}

// parseSlashCommand splits "/name rest" into its parts. Text not starting
// with a slash, or a bare "/", is not a command.
func parseSlashCommand(text string) (name, args string, ok bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return "", "", false
	}

	body := trimmed[1:]
	if body == "" {
		return "", "", false
	}

	name, args, _ = strings.Cut(body, " ")
	return name, strings.TrimSpace(args), name != ""
}

// FlattenPrompt renders the prompt's content blocks as a single text
// payload for the CLI. Resource links become @-mentions; embedded resources
// become a mention plus a trailing context block; binary content degrades
// to a placeholder.
func FlattenPrompt(blocks []acp.ContentBlock) string {
	var text strings.Builder
	var contexts []acp.EmbeddedResource

	for _, block := range blocks {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "resource_link":
			name := block.Name
			if name == "" {
				name = block.URI
			}
			fmt.Fprintf(&text, "@%s (%s)", name, block.URI)
		case "resource":
			if block.Resource == nil {
				continue
			}
			fmt.Fprintf(&text, "@%s", block.Resource.URI)
			if block.Resource.Text != "" {
				contexts = append(contexts, *block.Resource)
			}
		case "image":
			text.WriteString("[image]")
		case "audio":
			text.WriteString("[audio]")
		}
	}

	for _, res := range contexts {
		fmt.Fprintf(&text, "\n\n<context uri=%q>\n%s\n</context>", res.URI, res.Text)
	}

	return text.String()
}
