// pattern: Functional Core
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	catppuccin "github.com/catppuccin/go"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"wtctl/internal/contexts"
	"wtctl/internal/worktree"
)

// maxCellWidth bounds a table cell before it is truncated.
const maxCellWidth = 48

// Styles colours CLI output from a catppuccin flavour.
type Styles struct {
	flavor catppuccin.Flavor
	plain  bool
}

// NewStyles creates styles for flavor. Plain styles render no colour.
func NewStyles(flavor catppuccin.Flavor, plain bool) *Styles {
	return &Styles{flavor: flavor, plain: plain}
}

func (s *Styles) fg(c catppuccin.Color) lipgloss.Style {
	if s.plain {
		return lipgloss.NewStyle()
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(c.Hex))
}

func (s *Styles) HeaderStyle() lipgloss.Style { return s.fg(s.flavor.Subtext0()).Bold(!s.plain) }
func (s *Styles) AccentStyle() lipgloss.Style { return s.fg(s.flavor.Teal()) }
func (s *Styles) MutedStyle() lipgloss.Style  { return s.fg(s.flavor.Overlay0()) }
func (s *Styles) WarnStyle() lipgloss.Style   { return s.fg(s.flavor.Yellow()) }
func (s *Styles) ErrorStyle() lipgloss.Style  { return s.fg(s.flavor.Red()).Bold(!s.plain) }
func (s *Styles) OKStyle() lipgloss.Style     { return s.fg(s.flavor.Green()) }
func (s *Styles) TitleStyle() lipgloss.Style  { return s.fg(s.flavor.Mauve()).Bold(!s.plain) }

// cell is one rendered table cell.
type cell struct {
	text  string
	style lipgloss.Style
}

// renderTable lays rows out in columns sized to their widest cell.
// Cells wider than maxCellWidth are truncated with an ellipsis.
func (s *Styles) renderTable(headers []string, rows [][]cell) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := range row {
			row[i].text = ansi.Truncate(row[i].text, maxCellWidth, "…")
			if w := lipgloss.Width(row[i].text); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	writeRow := func(cells []cell) {
		for i, c := range cells {
			text := c.style.Render(c.text)
			if i < len(cells)-1 {
				text += strings.Repeat(" ", widths[i]-lipgloss.Width(c.text)+2)
			}
			b.WriteString(text)
		}
		b.WriteString("\n")
	}

	head := make([]cell, len(headers))
	for i, h := range headers {
		head[i] = cell{text: h, style: s.HeaderStyle()}
	}
	writeRow(head)
	for _, row := range rows {
		writeRow(row)
	}
	return b.String()
}

// RenderWorktrees renders a worktree snapshot as a table. Paths are shown
// relative to base when they live under it.
func (s *Styles) RenderWorktrees(list []worktree.Worktree, base string) string {
	rows := make([][]cell, 0, len(list))
	for _, wt := range list {
		marker := cell{text: " "}
		switch {
		case wt.IsLinked:
			marker = cell{text: "*", style: s.AccentStyle()}
		case wt.IsMain:
			marker = cell{text: "M", style: s.MutedStyle()}
		}
		name := cell{text: wt.DisplayName()}
		if wt.Detached() {
			name.style = s.MutedStyle()
		}
		rows = append(rows, []cell{
			marker,
			name,
			{text: wt.RelativePath(base), style: s.MutedStyle()},
			s.statusCell(wt),
			s.provisionCell(wt),
			s.agentCell(wt),
		})
	}
	return s.renderTable([]string{"", "BRANCH", "PATH", "STATUS", "PROVISIONED", "AGENT"}, rows)
}

func (s *Styles) statusCell(wt worktree.Worktree) cell {
	st := wt.Status
	if !st.Loaded {
		return cell{text: "…", style: s.MutedStyle()}
	}
	var parts []string
	if st.Staged > 0 {
		parts = append(parts, fmt.Sprintf("+%d", st.Staged))
	}
	if st.Modified > 0 {
		parts = append(parts, fmt.Sprintf("~%d", st.Modified))
	}
	if st.Untracked > 0 {
		parts = append(parts, fmt.Sprintf("?%d", st.Untracked))
	}
	if st.Conflicts > 0 {
		parts = append(parts, fmt.Sprintf("!%d", st.Conflicts))
	}
	if st.Ahead != nil && *st.Ahead > 0 {
		parts = append(parts, fmt.Sprintf("↑%d", *st.Ahead))
	}
	if st.Behind != nil && *st.Behind > 0 {
		parts = append(parts, fmt.Sprintf("↓%d", *st.Behind))
	}
	if len(parts) == 0 {
		return cell{text: "clean", style: s.OKStyle()}
	}
	style := s.WarnStyle()
	if st.Conflicts > 0 {
		style = s.ErrorStyle()
	}
	return cell{text: strings.Join(parts, " "), style: style}
}

func (s *Styles) provisionCell(wt worktree.Worktree) cell {
	switch {
	case wt.IsProvisionedByCurrentContext:
		return cell{text: "yes", style: s.OKStyle()}
	case wt.IsProvisioned:
		return cell{text: "other", style: s.WarnStyle()}
	}
	return cell{text: "-", style: s.MutedStyle()}
}

func (s *Styles) agentCell(wt worktree.Worktree) cell {
	if !wt.HasActiveAgent() {
		return cell{text: "-", style: s.MutedStyle()}
	}
	ids := wt.ActiveAgentSessionIDs
	text := ids[0]
	if len(ids) > 1 {
		text = fmt.Sprintf("%s +%d", ids[0], len(ids)-1)
	}
	return cell{text: text, style: s.AccentStyle()}
}

// RenderContexts renders the context list, marking the current one.
func (s *Styles) RenderContexts(list []contexts.Context, current string) string {
	rows := make([][]cell, 0, len(list))
	for _, c := range list {
		marker := cell{text: " "}
		if c.Name == current {
			marker = cell{text: "*", style: s.AccentStyle()}
		}
		rows = append(rows, []cell{
			marker,
			{text: c.Name},
			{text: c.MainRepoRoot, style: s.MutedStyle()},
			{text: c.BaseBranch},
			{text: strings.Join(c.MetadataPatterns, " "), style: s.MutedStyle()},
		})
	}
	return s.renderTable([]string{"", "NAME", "REPOSITORY", "BASE", "PATTERNS"}, rows)
}

// PrintJSON writes v as indented JSON.
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
