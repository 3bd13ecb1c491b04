// ABOUTME: Tests for the level feed client
// ABOUTME: Subscribes to a live hub through httptest and checks message routing
package levels

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spimeter/spimeter/pkg/audio"
	"github.com/spimeter/spimeter/pkg/meter"
	"github.com/spimeter/spimeter/pkg/stream"
)

func TestFeedURL(t *testing.T) {
	tests := []struct {
		addr     string
		expected string
		wantErr  bool
	}{
		{"10.0.0.2:9100", "ws://10.0.0.2:9100/levels", false},
		{"http://pi.local:9100", "ws://pi.local:9100/levels", false},
		{"https://pi.local", "wss://pi.local/levels", false},
		{"ws://pi.local:9100/levels", "ws://pi.local:9100/levels", false},
		{"ws://pi.local:9100/custom", "ws://pi.local:9100/custom", false},
		{"ftp://pi.local", "", true},
		{"http://", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			got, err := FeedURL(tt.addr)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestDecodeMessage(t *testing.T) {
	msg, err := decodeMessage([]byte(`{"type":"levels","peaks":[0.25],"samples":3}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Levels == nil || msg.Format != nil {
		t.Fatalf("expected a levels message, got %+v", msg)
	}
	if msg.Levels.Samples != 3 || msg.Levels.Peaks[0] != 0.25 {
		t.Errorf("unexpected levels %+v", msg.Levels)
	}

	for _, bad := range []string{`{"type":"volume"}`, `not json`} {
		if _, err := decodeMessage([]byte(bad)); err == nil {
			t.Errorf("expected error for %s", bad)
		}
	}
}

func TestSubscriberReceivesFeedInOrder(t *testing.T) {
	h := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	srv := httptest.NewServer(h)
	defer srv.Close()

	sub, err := Subscribe(ctx, srv.URL, nil)
	if err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}
	defer sub.Close()
	waitForClients(t, h, 1)

	h.FormatChanged(audio.Format{SampleRate: 48000, Channels: 2, Encoding: audio.EncodingF32LE})
	h.FrameProcessed(meter.Frame{Peaks: []float32{0.5, 0.9}, SamplesPerChannel: 2}, stream.Stats{})

	first := receive(t, sub)
	if first.Format == nil || first.Format.Rate != 48000 || first.Format.Channels != 2 {
		t.Fatalf("expected format first, got %+v", first)
	}

	second := receive(t, sub)
	if second.Levels == nil || len(second.Levels.Peaks) != 2 || second.Levels.Samples != 2 {
		t.Fatalf("expected levels second, got %+v", second)
	}
}

func TestSubscriberCloseEndsMessages(t *testing.T) {
	h := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	srv := httptest.NewServer(h)
	defer srv.Close()

	sub, err := Subscribe(ctx, srv.URL, nil)
	if err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}
	sub.Close()

	select {
	case _, ok := <-sub.Messages:
		for ok {
			_, ok = <-sub.Messages
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected Messages to close")
	}
	if err := sub.Err(); err != nil {
		t.Errorf("expected no error after Close, got %v", err)
	}
}

func TestSubscribeDialFailure(t *testing.T) {
	srv := httptest.NewServer(nil)
	addr := srv.URL
	srv.Close()

	if _, err := Subscribe(context.Background(), addr, nil); err == nil {
		t.Error("expected dial error")
	}
}

func receive(t *testing.T, sub *Subscriber) Message {
	t.Helper()
	select {
	case msg, ok := <-sub.Messages:
		if !ok {
			t.Fatalf("feed closed: %v", sub.Err())
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a message")
	}
	return Message{}
}
