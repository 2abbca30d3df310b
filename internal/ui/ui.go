package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/Dicklesworthstone/sysglance/internal/config"
	"github.com/Dicklesworthstone/sysglance/internal/model"
	"github.com/Dicklesworthstone/sysglance/internal/sampler"
)

// Sampler is the part of the sampler the view drives once per frame.
type Sampler interface {
	Update(dt time.Duration)
	Snapshot() model.Snapshot
	Close() error
}

// Model renders the sampler's snapshot and advances it on every frame.
type Model struct {
	src    Sampler
	frame  time.Duration
	last   time.Time
	latest model.Snapshot
	width  int
	height int
}

func New(cfg config.Config, src Sampler) *Model {
	return &Model{
		src:    src,
		frame:  cfg.FrameInterval(),
		latest: src.Snapshot(),
		width:  120,
		height: 40,
	}
}

type frameMsg time.Time

func (m *Model) frameCmd() tea.Cmd {
	return tea.Tick(m.frame, func(t time.Time) tea.Msg { return frameMsg(t) })
}

func (m *Model) Init() tea.Cmd { return m.frameCmd() }

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case frameMsg:
		now := time.Time(msg)
		var dt time.Duration
		if !m.last.IsZero() {
			dt = now.Sub(m.last)
		}
		m.last = now
		m.src.Update(dt)
		m.latest = m.src.Snapshot()
		return m, m.frameCmd()
	}
	return m, nil
}

// Styles
var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("45"))
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("81")).Bold(true)
	gaugeFill   = "█"
	gaugeEmpty  = "░"
	cardStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("60")).
			Padding(0, 1).
			MarginRight(1)
)

func (m *Model) View() string {
	s := m.latest
	header := titleStyle.Render("sysglance") + "  " +
		subtleStyle.Render(s.Timestamp.Format("Mon Jan 2 15:04:05 MST 2006"))

	cpuCard := card("CPU", gaugeBar(s.CPULoad, 28))

	gpuTitle := "GPU"
	if s.GPUName != "" {
		gpuTitle += " " + truncate(s.GPUName, 24)
	}
	gpuBody := gaugeBar(s.GPULoad, 28)
	switch s.GPUBackend {
	case model.GPUNone:
		gpuBody += "\n" + subtleStyle.Render("no backend")
	default:
		gpuBody += "\n" + gpuDetails(s)
	}
	gpuCard := card(gpuTitle, gpuBody)

	memCard := card("Memory",
		fmt.Sprintf("%s\n%s / %s",
			gaugeBar(s.RAMPercent, 28),
			humanize.IBytes(gibToBytes(s.RAMUsage)),
			humanize.IBytes(gibToBytes(s.RAMTotal))))

	row := lipgloss.JoinHorizontal(lipgloss.Top, cpuCard, gpuCard, memCard)
	if lipgloss.Width(row) > m.width {
		row = lipgloss.JoinVertical(lipgloss.Left, cpuCard, gpuCard, memCard)
	}
	footer := subtleStyle.Render("q to quit")
	return lipgloss.JoinVertical(lipgloss.Left, header, row, footer)
}

func gpuDetails(s model.Snapshot) string {
	parts := []string{s.GPUBackend.String()}
	if s.GPUTemperature > 0 {
		parts = append(parts, fmt.Sprintf("%.0f°C", s.GPUTemperature))
	}
	if s.GPUVRAMTotal > 0 {
		parts = append(parts, fmt.Sprintf("vram %s / %s",
			humanize.IBytes(gibToBytes(s.GPUVRAMUsed)),
			humanize.IBytes(gibToBytes(s.GPUVRAMTotal))))
	}
	return subtleStyle.Render(strings.Join(parts, "  "))
}

// Helpers
func gaugeBar(pct float64, width int) string {
	pct = model.ClampPercent(pct)
	filled := int((pct / 100) * float64(width))
	if filled > width {
		filled = width
	}
	return fmt.Sprintf("[%s%s] %5.1f%%",
		strings.Repeat(gaugeFill, filled),
		strings.Repeat(gaugeEmpty, width-filled),
		pct)
}

func card(title, body string) string {
	return cardStyle.Render(labelStyle.Render(title) + "\n" + body)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func gibToBytes(g float64) uint64 {
	if g <= 0 {
		return 0
	}
	return uint64(g * (1 << 30))
}

// RunTUI builds a sampler from cfg and runs the Bubble Tea program until the
// user quits.
func RunTUI(cfg config.Config, log *zap.Logger) error {
	s := sampler.New(cfg, log)
	defer func() {
		if err := s.Close(); err != nil {
			log.Warn("closing sampler", zap.Error(err))
		}
	}()
	prog := tea.NewProgram(New(cfg, s), tea.WithAltScreen())
	_, err := prog.Run()
	return err
}
