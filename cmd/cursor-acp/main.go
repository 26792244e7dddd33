// Command cursor-acp exposes the Cursor agent CLI as an ACP agent: it
// speaks JSON-RPC over stdio to the client editor and drives cursor-agent
// subprocesses underneath.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphaelluethy/cursor-acp/acp"
	"github.com/raphaelluethy/cursor-acp/bridge"
	"github.com/raphaelluethy/cursor-acp/history"
)

// version is stamped by the release build.
var version = "dev"

type rootFlags struct {
	cursorPath   string
	historyDir   string
	logFile      string
	logLevel     string
	drainTimeout time.Duration
}

func main() {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "cursor-acp",
		Short: "ACP adapter for the Cursor agent CLI",
		Long: `cursor-acp bridges the Agent Client Protocol to the Cursor agent CLI.

It reads JSON-RPC requests from stdin, runs cursor-agent in stream-json
mode for each prompt, and writes session updates back to stdout. Point an
ACP-capable editor at this binary as its agent command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(flags)
		},
	}

	rootCmd.Flags().StringVar(&flags.cursorPath, "cursor-path", "", "Path to the cursor-agent binary (defaults to PATH lookup)")
	rootCmd.Flags().StringVar(&flags.historyDir, "history-dir", history.DefaultDir(), "Directory for session transcripts")
	rootCmd.Flags().StringVar(&flags.logFile, "log-file", "", "Write logs to this file (stdout is reserved for the protocol)")
	rootCmd.Flags().StringVar(&flags.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.Flags().DurationVar(&flags.drainTimeout, "drain-timeout", 0, "How long to wait for trailing output after a result (default 10s)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(flags *rootFlags) error {
	logger, cleanup, err := newLogger(flags.logFile, flags.logLevel)
	if err != nil {
		return err
	}
	defer cleanup()

	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}

	agent := bridge.New(bridge.Config{
		Logger:       logger,
		CursorPath:   flags.cursorPath,
		HistoryDir:   flags.historyDir,
		HomeDir:      home,
		Version:      version,
		DrainTimeout: flags.drainTimeout,
	})

	conn := acp.NewConn(os.Stdin, os.Stdout, agent, acp.WithLogger(logger))
	agent.Attach(conn)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("serving", "version", version)
	return conn.Serve(ctx)
}

// newLogger builds the process logger. stdout carries the protocol, so logs
// go to the named file or, failing that, stderr.
func newLogger(file, level string) (*slog.Logger, func(), error) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info", "":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, nil, fmt.Errorf("unknown log level %q", level)
	}

	var out io.Writer = os.Stderr
	cleanup := func() {}
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("cannot open log file: %w", err)
		}
		out = f
		cleanup = func() { _ = f.Close() }
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler), cleanup, nil
}
