package setup

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const spinnerInterval = 120 * time.Millisecond

type spinnerHandle struct {
	out     io.Writer
	label   string
	enabled bool
	color   bool

	stopCh chan error
	doneCh chan struct{}
}

// startSpinner prints the stage label and, when enabled, animates a spinner on
// the same line until stop is called. When disabled it still prints the label
// so automation logs show stage boundaries.
func startSpinner(out io.Writer, label string, enabled bool) *spinnerHandle {
	s := &spinnerHandle{
		out:     out,
		label:   label,
		enabled: enabled,
		color:   supportsColor(out),
	}
	if !enabled {
		fmt.Fprintf(out, "==> %s\n", label)
		return s
	}

	s.stopCh = make(chan error, 1)
	s.doneCh = make(chan struct{})
	go s.loop()
	return s
}

func (s *spinnerHandle) loop() {
	defer close(s.doneCh)

	frame := lipgloss.NewStyle()
	if s.color {
		frame = frame.Foreground(lipgloss.Color("#58d4ff"))
	}

	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()

	i := 0
	for {
		select {
		case err := <-s.stopCh:
			fmt.Fprintf(s.out, "\r\033[K%s %s\n", s.statusMark(err), s.label)
			return
		case <-ticker.C:
			fmt.Fprintf(s.out, "\r\033[K%s %s", frame.Render(spinnerFrames[i%len(spinnerFrames)]), s.label)
			i++
		}
	}
}

func (s *spinnerHandle) statusMark(err error) string {
	if err != nil {
		mark := "✗"
		if s.color {
			return lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f87")).Render(mark)
		}
		return mark
	}
	mark := "✓"
	if s.color {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#5fd787")).Render(mark)
	}
	return mark
}

// stop ends the animation and prints the final status line.
func (s *spinnerHandle) stop(err error) {
	if s == nil || !s.enabled {
		return
	}
	s.stopCh <- err
	<-s.doneCh
}
