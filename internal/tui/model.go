package tui

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/agentchat/internal/api"
	"github.com/diogo/agentchat/internal/models"
	"github.com/diogo/agentchat/internal/render"
)

// SessionInterface defines the session-manager operations the TUI drives
type SessionInterface interface {
	SendText(ctx context.Context, text, model string) error
	SendMultimodal(ctx context.Context, text string, attachments []models.FileAttachment, model string) error
	Messages() []models.Message
	InFlight() bool
	LastError() string
	ClearError()
	Model() string
}

// UploaderInterface resolves pending attachments to durable URLs before a
// multimodal send
type UploaderInterface interface {
	UploadAll(ctx context.Context, pending []*api.PendingAttachment) ([]models.FileAttachment, error)
}

// Messages pushed by the session collaborator callbacks
type (
	// SessionUpdateMsg signals the conversation changed
	SessionUpdateMsg struct{}
	// HeartbeatMsg signals the backend is still generating
	HeartbeatMsg struct{ Status string }
	// PhaseMsg signals a connection lifecycle transition
	PhaseMsg struct{ Phase string }

	sendResultMsg struct{ err error }
)

// NewUpdateChannel builds the bridge between session callbacks (which run
// on the socket read loop and must not block) and the bubbletea program
func NewUpdateChannel() (chan tea.Msg, func(tea.Msg)) {
	ch := make(chan tea.Msg, 64)
	push := func(m tea.Msg) {
		select {
		case ch <- m:
		default:
			// A dropped repaint signal is recovered by the next one
		}
	}
	return ch, push
}

// Model is the chat TUI state
type Model struct {
	session  SessionInterface
	uploader UploaderInterface
	updates  chan tea.Msg

	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	pending   []*api.PendingAttachment
	phase     string
	heartbeat string
	copied    bool

	markdown render.Options

	width  int
	height int
	ready  bool
	err    error
}

// NewChatModel creates the chat TUI over a bound session
func NewChatModel(session SessionInterface, uploader UploaderInterface, updates chan tea.Msg, markdown render.Options) Model {
	ta := textarea.New()
	ta.Placeholder = "Type a message, /attach <file> to add files..."
	ta.CharLimit = 4000
	ta.ShowLineNumbers = false
	ta.SetHeight(2)
	ta.Focus()
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle().Foreground(colorText)
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(colorTextDim)
	ta.BlurredStyle = ta.FocusedStyle

	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = lipgloss.NewStyle().Foreground(colorPrimary)

	return Model{
		session:  session,
		uploader: uploader,
		updates:  updates,
		textarea: ta,
		spinner:  s,
		phase:    "disconnected",
		markdown: markdown,
	}
}

// Init starts the update pump and cursor blink
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick, m.waitForUpdate())
}

// waitForUpdate relays one session callback into the program
func (m Model) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		return <-m.updates
	}
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := m.height - 9
		if vpHeight < 5 {
			vpHeight = 5
		}
		if !m.ready {
			m.viewport = viewport.New(m.width-4, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = m.width - 4
			m.viewport.Height = vpHeight
		}
		m.textarea.SetWidth(m.width - 4)
		m.refreshViewport()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.releasePending()
			return m, tea.Quit
		case tea.KeyCtrlY:
			m.copied = m.copyLastReply()
		case tea.KeyEnter:
			if cmd := m.submit(); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}

	case SessionUpdateMsg:
		m.refreshViewport()
		m.viewport.GotoBottom()
		cmds = append(cmds, m.waitForUpdate())

	case HeartbeatMsg:
		m.heartbeat = msg.Status
		cmds = append(cmds, m.waitForUpdate())

	case PhaseMsg:
		m.phase = msg.Phase
		cmds = append(cmds, m.waitForUpdate())

	case sendResultMsg:
		m.err = msg.err
		m.refreshViewport()
		m.viewport.GotoBottom()

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	m.textarea, cmd = m.textarea.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// submit handles the enter key: local commands, attachment sends, or a
// plain text send. Input stays disabled while an exchange is in flight.
func (m *Model) submit() tea.Cmd {
	if m.session.InFlight() {
		return nil
	}

	input := strings.TrimSpace(m.textarea.Value())
	if input == "" && len(m.pending) == 0 {
		return nil
	}

	if path, ok := strings.CutPrefix(input, "/attach "); ok {
		m.err = m.attach(strings.TrimSpace(path))
		m.textarea.Reset()
		return nil
	}
	if input == "/detach" {
		m.releasePending()
		m.textarea.Reset()
		return nil
	}

	m.textarea.Reset()
	m.err = nil
	m.copied = false
	m.heartbeat = ""
	m.session.ClearError()

	session, uploader := m.session, m.uploader
	pending := m.pending
	m.pending = nil

	return func() tea.Msg {
		ctx := context.Background()
		if len(pending) == 0 {
			return sendResultMsg{err: session.SendText(ctx, input, "")}
		}
		attachments, err := uploader.UploadAll(ctx, pending)
		if err != nil {
			// The selection still owns the buffers; drop them on abort
			for _, p := range pending {
				p.Release()
			}
			return sendResultMsg{err: err}
		}
		return sendResultMsg{err: session.SendMultimodal(ctx, input, attachments, "")}
	}
}

// attach stages a local file for the next send
func (m *Model) attach(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	m.pending = append(m.pending, api.NewPendingAttachment(filepath.Base(path), mimeType, data))
	return nil
}

// releasePending frees every staged preview buffer
func (m *Model) releasePending() {
	for _, p := range m.pending {
		p.Release()
	}
	m.pending = nil
}

// copyLastReply puts the most recent completed bot reply on the clipboard
func (m *Model) copyLastReply() bool {
	msgs := m.session.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Sender == models.SenderBot && !msgs[i].Streaming && msgs[i].Text != "" {
			return clipboard.WriteAll(msgs[i].Text) == nil
		}
	}
	return false
}

// refreshViewport re-renders the conversation into the viewport
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderConversation())
}

// renderConversation formats every message as a labeled bubble. Streaming
// text is shown raw with a cursor; completed replies go through the
// markdown renderer.
func (m *Model) renderConversation() string {
	msgs := m.session.Messages()
	if len(msgs) == 0 {
		return subtitleStyle.Render("Send a message to get started.")
	}

	width := m.viewport.Width - 4
	if width < 20 {
		width = 20
	}

	var b strings.Builder
	for _, msg := range msgs {
		switch {
		case msg.Sender == models.SenderUser:
			b.WriteString(userLabelStyle.Render("You"))
			b.WriteString("\n")
			b.WriteString(userBubbleStyle.Width(width).Render(msg.Text))
		case msg.Streaming:
			b.WriteString(botLabelStyle.Render("Assistant"))
			b.WriteString("\n")
			b.WriteString(streamingStyle.Render(msg.Text + "▌"))
		default:
			b.WriteString(m.renderBotLabel(msg))
			b.WriteString("\n")
			b.WriteString(botBubbleStyle.Width(width).Render(m.renderBotText(msg)))
		}
		for _, att := range msg.Attachments {
			b.WriteString("\n")
			b.WriteString(attachmentStyle.Render("📎 " + att.DisplayName + "  " + att.RemoteURL))
		}
		b.WriteString("\n\n")
	}
	return b.String()
}

func (m *Model) renderBotLabel(msg models.Message) string {
	label := botLabelStyle.Render("Assistant")
	if msg.Model != "" {
		label += subtitleStyle.Render("  " + msg.Model)
	}
	return label
}

func (m *Model) renderBotText(msg models.Message) string {
	out, err := render.Markdown(msg.Text, m.markdown.WithWidth(m.viewport.Width-8))
	if err != nil {
		return msg.Text
	}
	return strings.TrimSpace(out)
}

// View renders the whole screen
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := titleStyle.Render("Agent Chat") +
		subtitleStyle.Render("  "+m.session.Model()+"  ") +
		phaseStyle(m.phase).Render("● "+m.phase)

	var status string
	switch {
	case m.session.InFlight() && m.heartbeat != "":
		status = m.spinner.View() + heartbeatStyle.Render(" still working ("+m.heartbeat+")")
	case m.session.InFlight():
		status = m.spinner.View() + statusStyle.Render(" waiting for reply")
	case m.copied:
		status = statusStyle.Render("copied last reply")
	default:
		status = statusStyle.Render("enter: send  ctrl+y: copy  ctrl+c: quit")
	}

	var banner string
	if m.err != nil {
		banner = errorBannerStyle.Render("✗ " + m.err.Error())
	} else if lastErr := m.session.LastError(); lastErr != "" {
		banner = errorBannerStyle.Render("✗ " + lastErr)
	}

	var pendingLine string
	if len(m.pending) > 0 {
		names := make([]string, len(m.pending))
		for i, p := range m.pending {
			names[i] = p.FileName
		}
		pendingLine = attachmentStyle.Render("staged: " + strings.Join(names, ", ") + "  (/detach to clear)")
	}

	sections := []string{header, m.viewport.View()}
	if pendingLine != "" {
		sections = append(sections, pendingLine)
	}
	if banner != "" {
		sections = append(sections, banner)
	}
	sections = append(sections, m.textarea.View(), status)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// RunChat starts the interactive chat program
func RunChat(session SessionInterface, uploader UploaderInterface, updates chan tea.Msg, markdown render.Options) error {
	p := tea.NewProgram(
		NewChatModel(session, uploader, updates, markdown),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}
