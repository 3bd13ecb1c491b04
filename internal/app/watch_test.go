// ABOUTME: Tests for watch mode rendering
// ABOUTME: Feeds level messages through a channel and checks the terminal output
package app

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spimeter/spimeter/internal/levels"
	"github.com/spimeter/spimeter/pkg/audio"
	"github.com/spimeter/spimeter/pkg/meter"
	"github.com/spimeter/spimeter/pkg/stream"
)

func noFeedErr() error { return nil }

func TestRenderDrawsAndRedraws(t *testing.T) {
	msgs := make(chan levels.Message, 4)
	msgs <- levels.Message{Format: &levels.FormatMessage{Type: "format", Rate: 48000, Channels: 2}}
	msgs <- levels.Message{Levels: &levels.LevelsMessage{Type: "levels", Peaks: []float32{0.5, 0.9}, Samples: 2}}
	msgs <- levels.Message{Levels: &levels.LevelsMessage{Type: "levels", Peaks: []float32{0.1, 0.2}, Samples: 2}}
	close(msgs)

	var out bytes.Buffer
	if err := render(context.Background(), msgs, meter.NewTerminal(&out), noFeedErr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := out.String()
	if strings.Count(s, "captured 2 samples\n") != 2 {
		t.Errorf("expected two frames, got %q", s)
	}
	if strings.Count(s, "\x1b[3A") != 1 {
		t.Errorf("expected one redraw over 3 lines, got %q", s)
	}
	if strings.HasPrefix(s, "\x1b[") {
		t.Error("expected the first frame without a cursor move")
	}
}

func TestRenderRestartsOnChannelChange(t *testing.T) {
	msgs := make(chan levels.Message, 4)
	msgs <- levels.Message{Levels: &levels.LevelsMessage{Peaks: []float32{0.5, 0.9}, Samples: 2}}
	msgs <- levels.Message{Format: &levels.FormatMessage{Rate: 48000, Channels: 1}}
	msgs <- levels.Message{Levels: &levels.LevelsMessage{Peaks: []float32{0.5}, Samples: 4}}
	close(msgs)

	var out bytes.Buffer
	if err := render(context.Background(), msgs, meter.NewTerminal(&out), noFeedErr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if strings.Contains(out.String(), "\x1b[") {
		t.Errorf("expected no redraw across a channel change, got %q", out.String())
	}
}

func TestRenderReportsFeedError(t *testing.T) {
	msgs := make(chan levels.Message)
	close(msgs)
	boom := errors.New("reset by peer")

	err := render(context.Background(), msgs, meter.NewTerminal(&bytes.Buffer{}), func() error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("expected feed error, got %v", err)
	}
}

func TestWatchLiveHub(t *testing.T) {
	hub := levels.NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(hub)
	defer srv.Close()

	var out lockedBuffer
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, srv.URL, &out, nil) }()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("watcher never connected")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.FormatChanged(audio.Format{SampleRate: 48000, Channels: 1, Encoding: audio.EncodingF32LE})
	hub.FrameProcessed(meter.Frame{Peaks: []float32{0.5}, SamplesPerChannel: 7}, stream.Stats{})

	for !strings.Contains(out.String(), "captured 7 samples") {
		if time.Now().After(deadline) {
			t.Fatalf("expected a rendered frame, got %q", out.String())
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean stop, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
