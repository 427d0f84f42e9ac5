package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	prettytable "github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// CodeView renders the pairing code the other device has to type.
func CodeView(phrase, uuid string) string {
	words := strings.Split(phrase, "-")
	for i, w := range words {
		words[i] = PhraseStyle.Render(w)
	}

	content := fmt.Sprintf("%s Pairing code\n\n%s\n\n%s %s",
		IconKey,
		strings.Join(words, " "),
		MutedStyle.Render("or"),
		MutedStyle.Render(uuid),
	)
	return BoxStyle.Render(content)
}

// DetailsTable renders key/value rows with go-pretty.
func DetailsTable(title string, rows [][2]string) string {
	t := prettytable.NewWriter()
	t.SetTitle(title)
	t.AppendHeader(prettytable.Row{"Field", "Value"})
	for _, r := range rows {
		t.AppendRow(prettytable.Row{r[0], r[1]})
	}
	t.SetStyle(prettytable.StyleRounded)
	t.Style().Title.Align = text.AlignCenter
	t.Style().Format.Header = text.FormatDefault
	t.Style().Options.SeparateRows = false
	return t.Render()
}

type SessionSummary struct {
	Role      string
	DeviceID  string
	PeerName  string
	PeerVer   string
	Channel   string
	Duration  string
	ICEPolicy string
	RelayURL  string
}

// SessionSummaryView renders the outcome of a successful pairing.
func SessionSummaryView(s SessionSummary) string {
	rows := [][]string{
		{"Role", s.Role},
		{"Device", s.DeviceID},
		{"Peer", strings.TrimSpace(s.PeerName + " " + s.PeerVer)},
		{"Channel", s.Channel},
		{"ICE policy", s.ICEPolicy},
		{"Relay", s.RelayURL},
		{"Took", s.Duration},
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers("Metric", "Value").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return SuccessBoxStyle.Render(fmt.Sprintf("%s Paired\n\n%s", IconSuccess, tbl.Render()))
}
