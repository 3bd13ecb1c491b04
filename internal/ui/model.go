// ABOUTME: Bubbletea model for the meter TUI
// ABOUTME: Holds format, per-channel peaks and write statistics and renders them
package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spimeter/spimeter/pkg/audio"
	"github.com/spimeter/spimeter/pkg/meter"
	"github.com/spimeter/spimeter/pkg/stream"
)

const (
	// cells from which a bar turns yellow and red
	warnIndex = 24
	clipIndex = 33

	// peak hold decays by this many cells per frame
	holdDecay = 1
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).MarginBottom(1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	clipStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	holdStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	helpStyle   = lipgloss.NewStyle().Faint(true)
)

// Model represents the TUI state
type Model struct {
	// Pipeline
	source string
	target string

	// Stream
	format audio.Format

	// Meter
	peaks    []float32
	samples  int
	hold     []int
	showHold bool

	// Stats
	buffers     int64
	written     int64
	writeErrors int64
	skipped     int64

	quitting bool
	quitChan chan struct{}

	width  int
	height int
}

// FrameMsg carries one processed buffer
type FrameMsg struct {
	Frame meter.Frame
	Stats stream.Stats
}

// FormatMsg carries a negotiated format
type FormatMsg audio.Format

// SkipMsg reports a buffer that produced no frame
type SkipMsg stream.SkipReason

// StatusMsg describes the pipeline ends
type StatusMsg struct {
	Source string
	Target string
}

// NewModel creates a new TUI model
func NewModel(quitChan chan struct{}) Model {
	return Model{
		showHold: true,
		quitChan: quitChan,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case FrameMsg:
		m.applyFrame(msg)
	case FormatMsg:
		m.format = audio.Format(msg)
		m.peaks = make([]float32, m.format.Channels)
		m.hold = make([]int, m.format.Channels)
	case SkipMsg:
		m.skipped++
	case StatusMsg:
		m.source = msg.Source
		m.target = msg.Target
	}

	return m, nil
}

func (m *Model) applyFrame(msg FrameMsg) {
	m.buffers++
	m.written += int64(msg.Stats.BytesWritten)
	m.writeErrors += int64(msg.Stats.WriteErrors)
	m.samples = msg.Frame.SamplesPerChannel
	m.peaks = msg.Frame.Peaks

	if len(m.hold) != len(m.peaks) {
		m.hold = make([]int, len(m.peaks))
	}
	for c, p := range m.peaks {
		idx := meter.PeakIndex(p)
		if idx >= m.hold[c] {
			m.hold[c] = idx
		} else if m.hold[c] > 0 {
			m.hold[c] -= holdDecay
		}
	}
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		if m.quitChan != nil {
			select {
			case m.quitChan <- struct{}{}:
			default:
			}
		}
		return m, tea.Quit
	case "h":
		m.showHold = !m.showHold
	case "r":
		m.buffers, m.written, m.writeErrors, m.skipped = 0, 0, 0, 0
		for c := range m.hold {
			m.hold[c] = 0
		}
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("spimeter"))
	b.WriteString("\n\n")

	m.renderInfo(&b)
	b.WriteString("\n")
	m.renderMeter(&b)
	b.WriteString("\n")
	m.renderStats(&b)
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("h: peak hold  r: reset stats  q: quit"))

	return b.String()
}

func (m Model) renderInfo(b *strings.Builder) {
	field := func(name, value string) {
		b.WriteString(headerStyle.Render(name + ": "))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}

	field("Source", orDash(m.source))
	field("Target", orDash(m.target))
	if m.format.Configured() {
		field("Format", fmt.Sprintf("%d Hz, %s", m.format.SampleRate, channelName(m.format.Channels)))
	} else {
		field("Format", "waiting for format")
	}
}

func (m Model) renderMeter(b *strings.Builder) {
	if len(m.peaks) == 0 {
		b.WriteString(valueStyle.Render("  no audio yet"))
		b.WriteString("\n")
		return
	}

	b.WriteString(headerStyle.Render(fmt.Sprintf("captured %d samples", m.samples)))
	b.WriteString("\n")

	for c, p := range m.peaks {
		hold := -1
		if m.showHold && c < len(m.hold) {
			hold = m.hold[c]
		}
		fmt.Fprintf(b, "ch %-2d |%s| %s\n", c, renderBar(meter.PeakIndex(p), hold),
			valueStyle.Render(meter.FormatPeak(p)))
	}
}

func (m Model) renderStats(b *strings.Builder) {
	fmt.Fprintf(b, "%s %s  %s %s  %s %s",
		headerStyle.Render("Buffers:"), valueStyle.Render(fmt.Sprint(m.buffers)),
		headerStyle.Render("Written:"), valueStyle.Render(formatBytes(m.written)),
		headerStyle.Render("Skipped:"), valueStyle.Render(fmt.Sprint(m.skipped)))

	if m.writeErrors > 0 {
		b.WriteString("  ")
		b.WriteString(errorStyle.Render(fmt.Sprintf("Write errors: %d", m.writeErrors)))
	}
	b.WriteString("\n")
}

// renderBar draws idx+1 filled cells out of meter.Width, with an optional hold marker
func renderBar(idx, hold int) string {
	var b strings.Builder
	for i := 0; i < meter.Width; i++ {
		switch {
		case i <= idx:
			b.WriteString(cellStyle(i).Render("█"))
		case i == hold:
			b.WriteString(holdStyle.Render("▏"))
		default:
			b.WriteString(" ")
		}
	}
	return b.String()
}

func cellStyle(i int) lipgloss.Style {
	switch {
	case i >= clipIndex:
		return clipStyle
	case i >= warnIndex:
		return warnStyle
	default:
		return okStyle
	}
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func channelName(channels int) string {
	switch channels {
	case 1:
		return "Mono"
	case 2:
		return "Stereo"
	default:
		return fmt.Sprintf("%d channels", channels)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
