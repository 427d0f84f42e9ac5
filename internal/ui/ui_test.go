package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func TestNegotiationModel_TracksStageAndState(t *testing.T) {
	cancelled := false
	ui := NewNegotiationUI("Pairing", func() { cancelled = true })
	m := ui.model

	m.Update(stageMsg("Waiting for peer..."))
	m.Update(peerStateMsg("connecting"))
	m.Update(tickMsg(m.startTime.Add(3 * time.Second)))

	view := m.View()
	for _, want := range []string{"Pairing", "Waiting for peer...", "connecting", "3s"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !cancelled {
		t.Errorf("q should invoke the cancel callback")
	}
	if cmd == nil {
		t.Errorf("q should quit the program")
	}
	if m.View() != "" {
		t.Errorf("view should be empty after quitting")
	}
}

func TestCodeView(t *testing.T) {
	view := CodeView("abandon-ability-able-about", "6162616e646f6e")
	for _, want := range []string{"abandon", "ability", "able", "about", "6162616e646f6e"} {
		if !strings.Contains(view, want) {
			t.Errorf("code view missing %q", want)
		}
	}
}

func TestDetailsTable(t *testing.T) {
	out := DetailsTable("Room", [][2]string{{"Room ID", "92561c15"}, {"Input form", "passphrase"}})
	for _, want := range []string{"Room", "92561c15", "passphrase", "Field", "Value"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "FIELD") {
		t.Errorf("headers should keep their casing:\n%s", out)
	}
}

func TestSessionSummaryView(t *testing.T) {
	out := SessionSummaryView(SessionSummary{Role: "initiator", DeviceID: "dev-1", PeerName: "phone", PeerVer: "1.2.0"})
	for _, want := range []string{"initiator", "dev-1", "phone 1.2.0"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q", want)
		}
	}
}
