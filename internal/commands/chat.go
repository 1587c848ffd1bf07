package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/diogo/agentchat/internal/api"
	"github.com/diogo/agentchat/internal/chat"
	"github.com/diogo/agentchat/internal/config"
	"github.com/diogo/agentchat/internal/render"
	"github.com/diogo/agentchat/internal/socket"
	"github.com/diogo/agentchat/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start an interactive chat session with the backend.

Replies stream token by token over the persistent channel. If the
channel is unavailable the session falls back to single requests.
Press Ctrl+C to end the session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat()
	},
}

func runChat() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if modelFlag != "" {
		cfg.DefaultModel = modelFlag
	}

	log := newLogger(cfg.Verbose)

	client := api.NewClient(cfg.BackendURL)
	uploader := api.NewUploader(client)
	conn := socket.NewConn(cfg.BackendURL, socket.WithLogger(log))
	defer conn.Disconnect()

	updates, push := tui.NewUpdateChannel()

	session := chat.NewSession(conn, client,
		chat.WithModel(cfg.DefaultModel),
		chat.WithStreaming(cfg.Streaming),
		chat.WithStallTimeout(time.Duration(cfg.StallTimeoutSeconds)*time.Second),
		chat.WithSessionLogger(log),
		chat.WithOnUpdate(func() { push(tui.SessionUpdateMsg{}) }),
		chat.WithOnHeartbeat(func(status string) { push(tui.HeartbeatMsg{Status: status}) }),
	)
	session.Bind()

	conn.OnPhaseChange(func(p socket.Phase) {
		push(tui.PhaseMsg{Phase: p.String()})
	})

	// The TUI still works when the dial fails: sends take the request path
	// until the channel comes back.
	if cfg.Streaming {
		spin := newSpinner("Connecting to backend")
		spin.start()
		if err := conn.Connect(context.Background()); err != nil {
			spin.stopWithError()
			fmt.Fprintln(os.Stderr, formatErrorMessage(err, "Streaming unavailable, using request mode"))
		} else {
			spin.stopWithSuccess("Connected")
		}
	}

	markdown := render.Options{
		Style:            cfg.Markdown.Style,
		Width:            100,
		PreserveNewLines: cfg.Markdown.PreserveNewLines,
	}

	return tui.RunChat(session, uploader, updates, markdown)
}

// newLogger builds the process logger. Debug level requires verbose; the
// stream goes to stderr so it never corrupts rendered output.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
