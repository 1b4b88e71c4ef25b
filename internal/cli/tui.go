package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/lanegrid/pkg/pipeline"
)

const defaultReplayInterval = 400 * time.Millisecond

var (
	replayHelpStyle  = lipgloss.NewStyle().Foreground(colorDim)
	replayFrameStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorDim).Padding(0, 1)
)

// =============================================================================
// ReplayModel - step through a placement one item at a time
// =============================================================================

type tickMsg time.Time

// ReplayModel is the bubbletea model of the replay command. Each frame is
// the grid right after one top-level placement.
type ReplayModel struct {
	Frames   []pipeline.Frame
	Cursor   int
	Playing  bool
	Interval time.Duration
}

// NewReplayModel creates a replay positioned on the first frame.
func NewReplayModel(frames []pipeline.Frame) ReplayModel {
	return ReplayModel{Frames: frames, Interval: defaultReplayInterval}
}

func (m ReplayModel) Init() tea.Cmd {
	if m.Playing && len(m.Frames) > 1 {
		return m.tick()
	}
	return nil
}

func (m ReplayModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "right", "l", "n":
			m.Playing = false
			m.step(1)
		case "left", "h", "p":
			m.Playing = false
			m.step(-1)
		case "home", "g":
			m.Playing = false
			m.Cursor = 0
		case "end", "G":
			m.Playing = false
			m.Cursor = max(len(m.Frames)-1, 0)
		case " ":
			m.Playing = !m.Playing
			if m.Playing {
				if m.atEnd() {
					m.Cursor = 0
				}
				return m, m.tick()
			}
		}
	case tickMsg:
		if !m.Playing {
			return m, nil
		}
		m.step(1)
		if m.atEnd() {
			m.Playing = false
			return m, nil
		}
		return m, m.tick()
	}
	return m, nil
}

func (m *ReplayModel) step(delta int) {
	m.Cursor = min(max(m.Cursor+delta, 0), max(len(m.Frames)-1, 0))
}

func (m ReplayModel) atEnd() bool {
	return m.Cursor >= len(m.Frames)-1
}

func (m ReplayModel) tick() tea.Cmd {
	return tea.Tick(m.Interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m ReplayModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Placement Replay"))
	b.WriteString("\n")
	b.WriteString(replayHelpStyle.Render("←/→ step  space play  g/G first/last  q quit"))
	b.WriteString("\n\n")

	if len(m.Frames) == 0 {
		b.WriteString(StyleDim.Render("  no items to replay"))
		b.WriteString("\n")
		return b.String()
	}

	f := m.Frames[m.Cursor]
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Step", "Item", "Index", "Position", "Size", "Grid").
		Row(
			fmt.Sprintf("%d/%d", f.Step, len(m.Frames)),
			f.Item.ID,
			strconv.Itoa(f.Item.Index),
			fmt.Sprintf("(%d, %d)", f.Item.X, f.Item.Y),
			fmt.Sprintf("%dx%d", f.Item.W, f.Item.H),
			fmt.Sprintf("%dx%d", f.SizeX, f.SizeY),
		).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Foreground(colorGray).Bold(true).Padding(0, 1)
			}
			return lipgloss.NewStyle().Foreground(colorWhite).Padding(0, 1)
		})

	b.WriteString(t.Render())
	b.WriteString("\n")
	b.WriteString(replayFrameStyle.Render(strings.TrimSuffix(renderGrid(parseDump(f.Dump)), "\n")))
	b.WriteString("\n")
	if m.Playing {
		b.WriteString(StyleNumber.Render("  ▶ playing"))
		b.WriteString("\n")
	}
	return b.String()
}

// parseDump turns a grid dump back into an occupancy matrix.
func parseDump(dump string) [][]int {
	var occ [][]int
	for _, line := range strings.Split(strings.TrimSuffix(dump, "\n"), "\n") {
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		row := make([]int, len(fields))
		for i, f := range fields {
			n, err := strconv.Atoi(f)
			if err != nil {
				n = -1
			}
			row[i] = n
		}
		occ = append(occ, row)
	}
	return occ
}
