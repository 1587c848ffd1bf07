package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/diogo/agentchat/internal/api"
	"github.com/diogo/agentchat/internal/config"
	apierrors "github.com/diogo/agentchat/internal/errors"
	"github.com/diogo/agentchat/internal/models"
	"github.com/diogo/agentchat/internal/render"
)

var (
	colorText    = lipgloss.Color("#c0caf5")
	colorTextDim = lipgloss.Color("#565f89")
	colorSuccess = lipgloss.Color("#9ece6a")
	colorPrimary = lipgloss.Color("#7aa2f7")
	colorError   = lipgloss.Color("#f7768e")
)

var (
	assistantLabelStyle = lipgloss.NewStyle().
				Foreground(colorPrimary).
				Bold(true)

	assistantBubbleStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(colorPrimary).
				Foreground(colorText).
				Padding(0, 1).
				MarginTop(1).
				MarginBottom(1)
)

// spinner handles the animated loading indicator on stderr
type spinner struct {
	message string
	stop    chan struct{}
	done    chan struct{}
	mu      sync.Mutex
	frame   int
	stopped bool
}

func newSpinner(message string) *spinner {
	return &spinner{
		message: message,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (s *spinner) start() {
	go func() {
		defer close(s.done)

		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		chars := []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}
		fmt.Fprint(os.Stderr, "\033[?25l")

		for {
			select {
			case <-s.stop:
				fmt.Fprint(os.Stderr, "\r\033[K\033[?25h")
				return
			case <-ticker.C:
				s.mu.Lock()
				frame := lipgloss.NewStyle().Foreground(colorPrimary).Bold(true).Render(chars[s.frame%len(chars)])
				msg := lipgloss.NewStyle().Foreground(colorText).Render(s.message)
				fmt.Fprintf(os.Stderr, "\r\033[K%s %s", frame, msg)
				s.frame++
				s.mu.Unlock()
			}
		}
	}()
}

// stopOnce safely closes the stop channel only once
func (s *spinner) stopOnce() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		close(s.stop)
		s.stopped = true
	}
}

func (s *spinner) stopWithSuccess(message string) {
	s.stopOnce()
	<-s.done

	checkmark := lipgloss.NewStyle().Foreground(colorSuccess).Bold(true).Render("✓")
	msg := lipgloss.NewStyle().Foreground(colorSuccess).Render(message)
	fmt.Fprintf(os.Stderr, "%s %s\n", checkmark, msg)
}

func (s *spinner) stopWithError() {
	s.stopOnce()
	<-s.done
}

// runQuery sends a single prompt over the request path and prints the reply.
// If rawOutput is true, only the raw response text is printed without
// decoration.
func runQuery(prompt string, rawOutput bool) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return fmt.Errorf("prompt cannot be empty")
	}

	cfg, _ := config.LoadConfig()
	modelName := getModel()

	if cfg.Verbose && !rawOutput {
		fmt.Fprintf(os.Stderr, "[verbose] Backend: %s\n", cfg.BackendURL)
		fmt.Fprintf(os.Stderr, "[verbose] Model: %s\n", modelName)
	}

	client := api.NewClient(cfg.BackendURL)

	var spin *spinner
	if !rawOutput {
		spin = newSpinner("Waiting for reply")
		spin.start()
	}

	startTime := time.Now()
	resp, err := client.Chat(context.Background(), []models.ChatMessage{
		{Role: "user", Content: prompt},
	}, modelName)
	requestDuration := time.Since(startTime)

	if err != nil {
		if !rawOutput {
			spin.stopWithError()
			fmt.Fprintln(os.Stderr, formatErrorMessage(err, "Request failed"))
		}
		return fmt.Errorf("request failed: %w", err)
	}
	if !rawOutput {
		spin.stopWithSuccess("Done")
	}

	if cfg.Verbose && !rawOutput {
		fmt.Fprintf(os.Stderr, "[verbose] Request took %s\n", requestDuration.Round(time.Millisecond))
		if resp.Model != "" {
			fmt.Fprintf(os.Stderr, "[verbose] Served by: %s\n", resp.Model)
		}
	}

	text := resp.Response

	// Raw output mode: only the text
	if rawOutput {
		if outputFlag != "" {
			if err := os.WriteFile(outputFlag, []byte(text), 0o644); err != nil {
				return fmt.Errorf("failed to write output file: %w", err)
			}
			return nil
		}
		fmt.Print(text)
		return nil
	}

	fmt.Fprintln(os.Stderr)

	if cfg.CopyToClipboard {
		if err := clipboard.WriteAll(text); err != nil {
			warnMsg := lipgloss.NewStyle().Foreground(colorError).Render(
				fmt.Sprintf("⚠ Failed to copy to clipboard: %v", err),
			)
			fmt.Fprintln(os.Stderr, warnMsg)
		} else {
			clipMsg := lipgloss.NewStyle().Foreground(colorSuccess).Render("✓ Copied to clipboard")
			fmt.Fprintln(os.Stderr, clipMsg)
		}
	}

	if outputFlag != "" {
		if err := os.WriteFile(outputFlag, []byte(text), 0o644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		successMsg := lipgloss.NewStyle().Foreground(colorSuccess).Render(
			fmt.Sprintf("✓ Response saved to %s", outputFlag),
		)
		fmt.Fprintln(os.Stderr, successMsg)
		return nil
	}

	termWidth := getTerminalWidth()
	bubbleWidth := termWidth - 4
	if bubbleWidth < 40 {
		bubbleWidth = 40
	}
	if bubbleWidth > 120 {
		bubbleWidth = 120
	}
	contentWidth := bubbleWidth - 4

	label := assistantLabelStyle.Render("✦ " + modelName)
	if resp.Model != "" && resp.Model != modelName {
		label = assistantLabelStyle.Render("✦ " + resp.Model)
	}
	fmt.Println(label)

	renderOpts := render.Options{
		Style:            cfg.Markdown.Style,
		Width:            contentWidth,
		PreserveNewLines: cfg.Markdown.PreserveNewLines,
	}
	rendered, err := render.Markdown(text, renderOpts)
	if err != nil {
		rendered = text
	}
	rendered = strings.TrimRight(rendered, "\n")

	bubble := assistantBubbleStyle.Width(bubbleWidth).Render(rendered)
	fmt.Println(bubble)

	return nil
}

// getTerminalWidth returns the terminal width or a default value
func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}

// isStdoutTTY returns true if stdout is connected to a terminal
func isStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// formatErrorMessage formats an error with additional context from
// structured errors
func formatErrorMessage(err error, context string) string {
	if err == nil {
		return ""
	}

	errorStyle := lipgloss.NewStyle().Foreground(colorError)
	dimStyle := lipgloss.NewStyle().Foreground(colorTextDim)

	var sb strings.Builder
	sb.WriteString(errorStyle.Render(fmt.Sprintf("✗ %s: %v", context, err)))

	var apiErr *apierrors.APIError
	if errors.As(err, &apiErr) {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("\n  HTTP Status: %d", apiErr.StatusCode)))
		sb.WriteString(dimStyle.Render(fmt.Sprintf("\n  Endpoint: %s", apiErr.Endpoint)))
	}

	var netErr *apierrors.NetworkError
	switch {
	case errors.As(err, &netErr):
		sb.WriteString(dimStyle.Render("\n  Hint: Check that the backend is running and reachable"))
	case errors.Is(err, apierrors.ErrNotConnected):
		sb.WriteString(dimStyle.Render("\n  Hint: The streaming channel is down; the request path may still work"))
	}

	return sb.String()
}
