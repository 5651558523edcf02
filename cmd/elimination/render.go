package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/elimination/internal/board"
	"github.com/vovakirdan/elimination/internal/client"
)

var (
	pieceStyles = []lipgloss.Style{
		lipgloss.NewStyle().Foreground(lipgloss.Color("196")), // Red
		lipgloss.NewStyle().Foreground(lipgloss.Color("46")),  // Green
		lipgloss.NewStyle().Foreground(lipgloss.Color("33")),  // Blue
		lipgloss.NewStyle().Foreground(lipgloss.Color("226")), // Yellow
		lipgloss.NewStyle().Foreground(lipgloss.Color("201")), // Magenta
		lipgloss.NewStyle().Foreground(lipgloss.Color("51")),  // Cyan
		lipgloss.NewStyle().Foreground(lipgloss.Color("208")), // Orange
		lipgloss.NewStyle().Foreground(lipgloss.Color("135")), // Purple
		lipgloss.NewStyle().Foreground(lipgloss.Color("255")), // White
		lipgloss.NewStyle().Foreground(lipgloss.Color("118")), // Lime
	}
	emptyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("51")).Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	winStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Bold(true)
	loseStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	borderStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
)

// renderBoard draws the board with row H-1 at the top.
func renderBoard(b *board.Board) string {
	var sb strings.Builder
	for y := b.H - 1; y >= 0; y-- {
		for x := range b.W {
			if x > 0 {
				sb.WriteByte(' ')
			}
			cell := b.Get(x, y)
			if cell == board.Empty {
				sb.WriteString(emptyStyle.Render("·"))
				continue
			}
			sb.WriteString(pieceStyles[(cell-1)%len(pieceStyles)].Render("●"))
		}
		if y > 0 {
			sb.WriteByte('\n')
		}
	}
	return borderStyle.Render(sb.String())
}

func renderState(name string, st client.State) string {
	opponent := st.Opponent
	if opponent == "" {
		opponent = "AI"
	}
	header := titleStyle.Render(name) + labelStyle.Render(" vs ") + titleStyle.Render(opponent)
	scores := labelStyle.Render("score ") + valueStyle.Render(fmt.Sprint(st.Score)) +
		labelStyle.Render("  opponent ") + valueStyle.Render(fmt.Sprint(st.OpponentScore)) +
		labelStyle.Render("  clicks ") + valueStyle.Render(fmt.Sprint(st.Clicks))
	return lipgloss.JoinVertical(lipgloss.Left, header, renderBoard(st.Board), scores)
}

func renderResult(round int, name string, r client.RoundResult) string {
	var verdict string
	switch {
	case r.Tie():
		verdict = valueStyle.Render("tie")
	case r.Winner == name:
		verdict = winStyle.Render("won")
	default:
		verdict = loseStyle.Render("lost")
	}
	return fmt.Sprintf("round %d: %s %d-%d", round, verdict, r.Score, r.OpponentScore)
}
