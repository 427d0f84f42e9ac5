package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// NegotiationUI shows live progress while a session negotiates.
type NegotiationUI struct {
	program *tea.Program
	model   *negotiationModel
	wg      sync.WaitGroup
}

type stageMsg string

type peerStateMsg string

type tickMsg time.Time

type negotiationModel struct {
	title     string
	stage     string
	peerState string
	spinner   spinner.Model
	startTime time.Time
	now       time.Time
	onCancel  func()
	quitting  bool
}

// NewNegotiationUI creates the view. onCancel runs when the user presses q.
func NewNegotiationUI(title string, onCancel func()) *NegotiationUI {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	now := time.Now()
	return &NegotiationUI{
		model: &negotiationModel{
			title:     title,
			stage:     "Connecting to relay...",
			peerState: "new",
			spinner:   s,
			startTime: now,
			now:       now,
			onCancel:  onCancel,
		},
	}
}

// Start starts the UI in a goroutine
func (ui *NegotiationUI) Start() {
	// Inline mode without alt screen keeps previous output visible.
	ui.program = tea.NewProgram(ui.model)
	ui.wg.Add(1)
	go func() {
		defer ui.wg.Done()
		if _, err := ui.program.Run(); err != nil {
			fmt.Printf("UI error: %v\n", err)
		}
	}()
}

// SetStage replaces the status line.
func (ui *NegotiationUI) SetStage(stage string) {
	if ui.program != nil {
		ui.program.Send(stageMsg(stage))
	}
}

// SetPeerState records the latest peer connection state.
func (ui *NegotiationUI) SetPeerState(state fmt.Stringer) {
	if ui.program != nil {
		ui.program.Send(peerStateMsg(state.String()))
	}
}

// Stop stops the UI and waits for the terminal to be restored.
func (ui *NegotiationUI) Stop() {
	if ui.program != nil {
		ui.program.Quit()
	}
	ui.wg.Wait()
}

func (m *negotiationModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *negotiationModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			if m.onCancel != nil {
				m.onCancel()
			}
			return m, tea.Quit
		}

	case stageMsg:
		m.stage = string(msg)

	case peerStateMsg:
		m.peerState = string(msg)

	case tickMsg:
		m.now = time.Time(msg)
		if !m.quitting {
			return m, tick()
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *negotiationModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s %s\n\n", IconConnect, BoldStyle.Render(m.title))
	fmt.Fprintf(&b, "%s %s\n", m.spinner.View(), m.stage)
	fmt.Fprintf(&b, "  %s peer connection: %s\n", IconPeer, peerStateStyle(m.peerState))

	elapsed := m.now.Sub(m.startTime).Truncate(time.Second)
	fmt.Fprintf(&b, "  %s elapsed: %s\n", IconWaiting, MutedStyle.Render(elapsed.String()))

	b.WriteString("\n" + MutedStyle.Render("Press q to cancel"))
	return b.String()
}

func peerStateStyle(state string) string {
	switch state {
	case "connected":
		return SuccessStyle.Render(state)
	case "failed", "closed", "disconnected":
		return ErrorStyle.Render(state)
	}
	return MutedStyle.Render(state)
}
