// ABOUTME: Watch mode
// ABOUTME: Renders a remote bridge's level feed with the local terminal meter
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spimeter/spimeter/internal/levels"
	"github.com/spimeter/spimeter/pkg/meter"
)

// Watch subscribes to the level feed at addr and draws every frame on w until ctx ends
// or the bridge goes away
func Watch(ctx context.Context, addr string, w io.Writer, logger *slog.Logger) error {
	sub, err := levels.Subscribe(ctx, addr, logger)
	if err != nil {
		return err
	}
	defer sub.Close()

	return render(ctx, sub.Messages, meter.NewTerminal(w), sub.Err)
}

// render draws levels messages, starting a fresh meter whenever the channel count changes
func render(ctx context.Context, msgs <-chan levels.Message, display meter.Display, feedErr func() error) error {
	var (
		cursor   meter.Cursor
		channels int
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				if err := feedErr(); err != nil {
					return fmt.Errorf("level feed ended: %w", err)
				}
				return nil
			}

			if msg.Format != nil {
				if msg.Format.Channels != channels {
					cursor = meter.Cursor{}
				}
				channels = msg.Format.Channels
				continue
			}

			l := msg.Levels
			if len(l.Peaks) != channels {
				cursor = meter.Cursor{}
				channels = len(l.Peaks)
			}
			if err := display.Render(meter.Frame{Peaks: l.Peaks, SamplesPerChannel: l.Samples}, &cursor); err != nil {
				return fmt.Errorf("failed to render: %w", err)
			}
		}
	}
}
