// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and feeds it from the stream session
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spimeter/spimeter/pkg/audio"
	"github.com/spimeter/spimeter/pkg/meter"
	"github.com/spimeter/spimeter/pkg/stream"
)

// TUI runs the meter program and observes a stream session
type TUI struct {
	program  *tea.Program
	updates  chan tea.Msg
	quitChan chan struct{}
	done     chan struct{}
}

var _ stream.Observer = (*TUI)(nil)

// New creates the program. opts are passed to bubbletea, the alt screen is always used.
func New(status StatusMsg, opts ...tea.ProgramOption) *TUI {
	quitChan := make(chan struct{}, 1)

	m := NewModel(quitChan)
	m.source = status.Source
	m.target = status.Target

	return &TUI{
		program:  tea.NewProgram(m, append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...),
		updates:  make(chan tea.Msg, 16),
		quitChan: quitChan,
		done:     make(chan struct{}),
	}
}

// Run blocks until the program exits
func (t *TUI) Run() error {
	go func() {
		for {
			select {
			case msg := <-t.updates:
				t.program.Send(msg)
			case <-t.done:
				return
			}
		}
	}()

	_, err := t.program.Run()
	close(t.done)
	return err
}

// FormatChanged forwards a negotiated format
func (t *TUI) FormatChanged(f audio.Format) {
	t.send(FormatMsg(f))
}

// FrameProcessed forwards a copy of the frame
func (t *TUI) FrameProcessed(f meter.Frame, st stream.Stats) {
	t.send(FrameMsg{Frame: f.Clone(), Stats: st})
}

// BufferSkipped counts a skipped buffer
func (t *TUI) BufferSkipped(reason stream.SkipReason) {
	t.send(SkipMsg(reason))
}

// send never blocks the audio callback
func (t *TUI) send(msg tea.Msg) {
	select {
	case t.updates <- msg:
	default:
	}
}

// Stop quits the program
func (t *TUI) Stop() {
	t.program.Quit()
}

// QuitChan signals when the user asked to quit
func (t *TUI) QuitChan() <-chan struct{} {
	return t.quitChan
}
