package cursor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shRun starts /bin/sh -c script as the CLI under test.
func shRun(t *testing.T, script string, handler RecordHandler) *Run {
	t.Helper()
	run, err := StartRun(context.Background(), RunConfig{
		CLIPath:      "/bin/sh",
		Args:         []string{"-c", script},
		DrainTimeout: 5 * time.Second,
	}, handler)
	require.NoError(t, err)
	return run
}

func TestRunDeliversRecordsInOrder(t *testing.T) {
	script := `
echo '{"type":"system","subtype":"init","session_id":"be-1"}'
echo '{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"one"}]}}'
echo '{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"two"}]}}'
echo '{"type":"result","subtype":"success","is_error":false,"result":"done"}'
`
	var seen []string
	run := shRun(t, script, func(rec Record) error {
		switch r := rec.(type) {
		case *SystemInitRecord:
			seen = append(seen, "init")
		case *AssistantRecord:
			seen = append(seen, r.Message.Content[0].Text)
		case *ResultRecord:
			seen = append(seen, "result")
		}
		return nil
	})

	result, err := run.Wait()
	require.NoError(t, err)
	assert.Equal(t, []string{"init", "one", "two", "result"}, seen)
	require.NotNil(t, result.Result)
	assert.Equal(t, "success", result.Result.Subtype)
	assert.Len(t, result.Records, 4)
}

func TestRunReassemblesSplitLines(t *testing.T) {
	// printf emits the line in fragments with no newline until the end; the
	// pump must reassemble it before parsing.
	script := `
printf '{"type":"assistant","message":{"role":"assistant",'
sleep 0.05
printf '"content":[{"type":"text","text":"joined"}]}}\n'
echo '{"type":"result","subtype":"success","is_error":false,"result":""}'
`
	var texts []string
	run := shRun(t, script, func(rec Record) error {
		if r, ok := rec.(*AssistantRecord); ok {
			texts = append(texts, r.Message.Content[0].Text)
		}
		return nil
	})

	_, err := run.Wait()
	require.NoError(t, err)
	assert.Equal(t, []string{"joined"}, texts)
}

func TestRunFlushesUnterminatedTail(t *testing.T) {
	// The result record lacks a trailing newline; EOF must flush it.
	script := `printf '{"type":"result","subtype":"success","is_error":false,"result":"tail"}'`

	run := shRun(t, script, nil)
	result, err := run.Wait()
	require.NoError(t, err)
	require.NotNil(t, result.Result)
	assert.Equal(t, "tail", result.Result.Result)
}

func TestRunSkipsUnknownAndBlankLines(t *testing.T) {
	script := `
echo '{"type":"user","text":"echoed back"}'
echo ''
echo '{"type":"result","subtype":"success","is_error":false,"result":""}'
`
	run := shRun(t, script, nil)
	result, err := run.Wait()
	require.NoError(t, err)
	assert.Len(t, result.Records, 1)
}

func TestRunInvalidJSONIsFatal(t *testing.T) {
	script := `
echo 'not json at all'
echo '{"type":"result","subtype":"success","is_error":false,"result":""}'
`
	run := shRun(t, script, nil)
	_, err := run.Wait()
	require.Error(t, err)

	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, "not json at all", protoErr.Line)
}

func TestRunExitWithoutResult(t *testing.T) {
	script := `
echo '{"type":"system","subtype":"init","session_id":"be-1"}'
echo 'went wrong' >&2
exit 3
`
	run := shRun(t, script, nil)
	_, err := run.Wait()
	require.Error(t, err)
	require.ErrorIs(t, err, ErrNoResult)

	var procErr *ProcessError
	require.ErrorAs(t, err, &procErr)
	assert.Equal(t, 3, procErr.ExitCode)
	assert.Contains(t, procErr.Stderr, "went wrong")
}

func TestRunHandlerErrorAborts(t *testing.T) {
	script := `
echo '{"type":"system","subtype":"init","session_id":"be-1"}'
echo '{"type":"result","subtype":"success","is_error":false,"result":""}'
`
	sentinel := errors.New("handler refused")
	run := shRun(t, script, func(Record) error { return sentinel })

	_, err := run.Wait()
	require.ErrorIs(t, err, sentinel)
}

func TestRunDrainTimeoutBoundsStall(t *testing.T) {
	// The CLI emits its result record and then stalls instead of exiting.
	// The drain timer must kill it and settle the run with everything
	// observed so far intact.
	script := `
echo '{"type":"system","subtype":"init","session_id":"be-1"}'
echo '{"type":"result","subtype":"success","is_error":false,"result":"done"}'
sleep 30
`
	run, err := StartRun(context.Background(), RunConfig{
		CLIPath:      "/bin/sh",
		Args:         []string{"-c", script},
		DrainTimeout: 300 * time.Millisecond,
	}, nil)
	require.NoError(t, err)

	start := time.Now()
	result, err := run.Wait()
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Less(t, elapsed, 10*time.Second, "wait should settle shortly after the drain timeout, not the sleep")
	require.NotNil(t, result.Result)
	assert.Equal(t, "done", result.Result.Result)
	assert.Len(t, result.Records, 2)
}

func TestRunDrainWindowAdmitsTrailingRecords(t *testing.T) {
	// A tool completion that lands after the result record but before the
	// drain timeout is still delivered.
	script := `
echo '{"type":"result","subtype":"success","is_error":false,"result":""}'
sleep 0.1
echo '{"type":"tool_call","subtype":"completed","call_id":"late","tool_call":{"shellToolCall":{"args":{},"result":{"success":{"stdout":"trailing"}}}}}'
`
	var late bool
	run, err := StartRun(context.Background(), RunConfig{
		CLIPath:      "/bin/sh",
		Args:         []string{"-c", script},
		DrainTimeout: 5 * time.Second,
	}, func(rec Record) error {
		if call, ok := rec.(*ToolCallRecord); ok && call.CallID == "late" {
			late = true
		}
		return nil
	})
	require.NoError(t, err)

	result, err := run.Wait()
	require.NoError(t, err)
	assert.True(t, late)
	assert.Len(t, result.Records, 2)
}

func TestRunCancel(t *testing.T) {
	script := `
echo '{"type":"system","subtype":"init","session_id":"be-1"}'
sleep 30
`
	run := shRun(t, script, nil)
	time.Sleep(100 * time.Millisecond)
	run.Cancel()

	_, err := run.Wait()
	require.Error(t, err)
	require.ErrorIs(t, err, ErrNoResult)
}

func TestRunCLINotFound(t *testing.T) {
	_, err := StartRun(context.Background(), RunConfig{
		CLIPath: "/nonexistent/cursor-agent-binary",
	}, nil)
	require.Error(t, err)
}

func TestStripControlSequences(t *testing.T) {
	in := "\x1b[31merror\x1b[0m line\r\n\x1b]0;title\x07rest"
	assert.Equal(t, "error line\nrest", stripControlSequences(in))
}
