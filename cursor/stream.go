package cursor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"sync"
	"syscall"
	"time"

	"github.com/raphaelluethy/cursor-acp/internal/procattr"
)

// DefaultDrainTimeout bounds how long a run keeps reading after the result
// record arrives, waiting for trailing tool-call completions to flush.
const DefaultDrainTimeout = 10 * time.Second

// lineBacklog is the queued-line capacity between the chunk pump and the
// sequential record processor. The pump never reorders; the backlog only
// decouples chunk arrival from handler latency.
const lineBacklog = 256

// RunConfig configures a single CLI run.
type RunConfig struct {
	Logger       *slog.Logger
	Env          map[string]string
	CLIPath      string
	WorkDir      string
	Args         []string
	DrainTimeout time.Duration
}

// RunResult is the outcome of a completed run.
type RunResult struct {
	Result   *ResultRecord
	Stderr   string
	Records  []Record
	ExitCode int
}

// RecordHandler receives each parsed record strictly in arrival order. The
// handler for record N+1 is not invoked before the handler for record N has
// returned. A handler error is fatal to the run.
type RecordHandler func(Record) error

// Run is a single invocation of the Cursor CLI in stream-json mode.
type Run struct {
	cmd        *exec.Cmd
	logger     *slog.Logger
	handler    RecordHandler
	lines      chan []byte
	done       chan struct{}
	stderr     bytes.Buffer
	stderrWg   sync.WaitGroup
	result     RunResult
	err        error
	drain      time.Duration
	drainOnce  sync.Once
	cancelOnce sync.Once
}

// StartRun spawns the CLI and begins streaming records to handler. The
// returned Run resolves through Wait; Cancel terminates the subprocess.
func StartRun(ctx context.Context, config RunConfig, handler RecordHandler) (*Run, error) {
	cliPath := config.CLIPath
	if cliPath == "" {
		cliPath = "cursor-agent"
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	drain := config.DrainTimeout
	if drain <= 0 {
		drain = DefaultDrainTimeout
	}

	cmd := exec.CommandContext(ctx, cliPath, config.Args...)

	// Configure process group for orphan prevention.
	procattr.Set(cmd)

	cmd.Env = os.Environ()
	for k, v := range config.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	if config.WorkDir != "" {
		cmd.Dir = config.WorkDir
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &ProcessError{Message: "failed to create stdout pipe", Cause: err}
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &ProcessError{Message: "failed to create stderr pipe", Cause: err}
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, &CLINotFoundError{Path: cliPath, Cause: err}
		}
		return nil, &ProcessError{Message: "failed to start CLI process", Cause: err}
	}

	r := &Run{
		cmd:     cmd,
		logger:  logger,
		handler: handler,
		drain:   drain,
		lines:   make(chan []byte, lineBacklog),
		done:    make(chan struct{}),
	}

	r.stderrWg.Add(1)
	go r.collectStderr(stderr)
	go r.pumpLoop(stdout)
	go r.processLoop()

	return r, nil
}

// Wait blocks until the run completes. Completion requires that a result
// record was observed, the queued line backlog has drained, and any trailing
// unterminated buffer content was flushed as a final line. A process that
// exits without emitting a result record is an error carrying the exit code
// and collected stderr.
func (r *Run) Wait() (*RunResult, error) {
	<-r.done
	if r.err != nil {
		return nil, r.err
	}
	return &r.result, nil
}

// Cancel sends a termination signal to the subprocess group. Already
// processed records are not discarded; Wait still resolves according to
// whatever was observed.
func (r *Run) Cancel() {
	r.cancelOnce.Do(func() {
		if r.cmd.Process != nil {
			_ = procattr.SignalGroup(r.cmd.Process, syscall.SIGTERM)
		}
		// Escalate if the CLI ignores SIGTERM.
		time.AfterFunc(2*time.Second, func() {
			select {
			case <-r.done:
			default:
				if r.cmd.Process != nil {
					_ = procattr.KillGroup(r.cmd.Process)
				}
			}
		})
	})
}

// pumpLoop reads raw chunks from stdout, reconstructs newline-delimited
// lines across chunk boundaries, and queues them in arrival order. The
// unterminated tail is buffered and flushed as a final line at EOF.
func (r *Run) pumpLoop(stdout io.Reader) {
	defer close(r.lines)

	var tail []byte
	buf := make([]byte, 4096)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			data := append(tail, buf[:n]...)
			for {
				idx := bytes.IndexByte(data, '\n')
				if idx < 0 {
					break
				}
				line := data[:idx]
				if len(line) > 0 && line[len(line)-1] == '\r' {
					line = line[:len(line)-1]
				}
				r.lines <- append([]byte(nil), line...)
				data = data[idx+1:]
			}
			tail = append(tail[:0], data...)
		}
		if err != nil {
			if len(tail) > 0 {
				r.lines <- append([]byte(nil), tail...)
			}
			return
		}
	}
}

// processLoop consumes queued lines one at a time, so the handler for line
// N+1 never begins before the handler for line N has finished.
func (r *Run) processLoop() {
	defer close(r.done)

	var failed bool
	for line := range r.lines {
		if failed || len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		rec, err := ParseRecord(line)
		if err != nil {
			r.fail(&ProtocolError{Message: "failed to parse stream line", Line: string(line), Cause: err})
			failed = true
			continue
		}
		if rec == nil {
			continue
		}

		if r.handler != nil {
			if err := r.handler(rec); err != nil {
				r.fail(err)
				failed = true
				continue
			}
		}

		r.result.Records = append(r.result.Records, rec)
		if res, ok := rec.(*ResultRecord); ok {
			r.result.Result = res
			r.armDrainTimer()
		}
	}

	r.finish()
}

// fail records the first fatal error and terminates the subprocess so the
// pump reaches EOF. Remaining queued lines are discarded.
func (r *Run) fail(err error) {
	if r.err == nil {
		r.err = err
	}
	if r.cmd.Process != nil {
		_ = procattr.KillGroup(r.cmd.Process)
	}
}

// armDrainTimer bounds the wait for process exit after the result record.
// The CLI may keep running to flush a trailing tool call; it is not killed
// merely because the result arrived, but it does not get to stall the run
// forever either.
func (r *Run) armDrainTimer() {
	r.drainOnce.Do(func() {
		time.AfterFunc(r.drain, func() {
			select {
			case <-r.done:
			default:
				r.logger.Warn("drain timeout elapsed after result record, killing CLI",
					"timeout", r.drain)
				if r.cmd.Process != nil {
					_ = procattr.KillGroup(r.cmd.Process)
				}
			}
		})
	})
}

// finish reaps the subprocess and settles the run outcome.
func (r *Run) finish() {
	waitErr := r.cmd.Wait()

	exitCode := 0
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		exitCode = exitErr.ExitCode()
	}

	r.stderrWg.Wait()
	r.result.Stderr = stripControlSequences(r.stderr.String())
	r.result.ExitCode = exitCode

	if r.err != nil {
		return
	}

	if r.result.Result == nil {
		r.err = &ProcessError{
			Message:  "CLI exited without a result record",
			Cause:    ErrNoResult,
			ExitCode: exitCode,
			Stderr:   r.result.Stderr,
		}
	}
}

func (r *Run) collectStderr(stderr io.Reader) {
	defer r.stderrWg.Done()
	_, _ = io.Copy(&r.stderr, stderr)
}

// ansiRE matches CSI and OSC terminal control sequences.
var ansiRE = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]|\x1b\][^\x07]*(\x07|\x1b\\)`)

// stripControlSequences removes terminal escape sequences and carriage
// returns from captured stderr so diagnostics stay readable.
func stripControlSequences(s string) string {
	s = ansiRE.ReplaceAllString(s, "")
	return string(bytes.ReplaceAll([]byte(s), []byte("\r"), nil))
}
