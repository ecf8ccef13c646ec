package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hazyhaar/chasse/collect"
	"github.com/hazyhaar/chasse/escalate"
	"github.com/hazyhaar/chasse/report"
)

var (
	summaryTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	summaryMuted = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	summaryGood  = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	summaryBad   = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	summaryWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	summaryPanel = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// renderSummary draws the after-batch terminal panel.
func renderSummary(boardID, keyword string, res collect.BatchResult, rep *report.Report) string {
	verdict := summaryWarn.Render(string(rep.Verdict))
	switch rep.Verdict {
	case report.Go:
		verdict = summaryGood.Render(string(rep.Verdict))
	case report.NoGo:
		verdict = summaryBad.Render(string(rep.Verdict))
	}

	lines := []string{
		summaryTitle.Render(fmt.Sprintf("%s %q", boardID, keyword)),
		fmt.Sprintf("runs %d  passes %d  pass rate %.0f%%  (95%% CI %.0f%%–%.0f%%)",
			rep.Runs, rep.Successes, rep.PassRate*100, rep.CILow*100, rep.CIHigh*100),
		fmt.Sprintf("challenges %d  blocked %d  p50 %.0fs",
			rep.Challenges, rep.Blocked, rep.DurationP50),
		fmt.Sprintf("verdict %s  %s", verdict, summaryMuted.Render(rep.Basis)),
	}
	if res.Decision.Recommendation != "" && res.Decision.Recommendation != escalate.Direct {
		lines = append(lines, summaryMuted.Render("next: "+string(res.Decision.Recommendation)))
	}
	if res.Stopped {
		lines = append(lines, summaryWarn.Render("batch stopped early: not ready"))
	}
	return summaryPanel.Render(strings.Join(lines, "\n"))
}
