// ABOUTME: Tests for the WebSocket level feed
// ABOUTME: Connects a real client through httptest and checks the message stream
package levels

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spimeter/spimeter/pkg/audio"
	"github.com/spimeter/spimeter/pkg/meter"
	"github.com/spimeter/spimeter/pkg/stream"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	return conn
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, got %d", n, h.Clients())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readJSON(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read: %v", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("failed to decode %s: %v", data, err)
	}
}

func TestHubBroadcastsFormatAndLevels(t *testing.T) {
	h := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	waitForClients(t, h, 1)

	h.FormatChanged(audio.Format{SampleRate: 48000, Channels: 2, Encoding: audio.EncodingF32LE})
	h.FrameProcessed(meter.Frame{Peaks: []float32{0.5, 0.9}, SamplesPerChannel: 2}, stream.Stats{})

	var format FormatMessage
	readJSON(t, conn, &format)
	if format.Type != "format" || format.Rate != 48000 || format.Channels != 2 {
		t.Errorf("unexpected format message %+v", format)
	}

	var levels LevelsMessage
	readJSON(t, conn, &levels)
	if levels.Type != "levels" || levels.Samples != 2 {
		t.Errorf("unexpected levels message %+v", levels)
	}
	if len(levels.Peaks) != 2 || levels.Peaks[1] != 0.9 {
		t.Errorf("expected peaks [0.5 0.9], got %v", levels.Peaks)
	}
}

func TestHubReplaysFormatToNewClients(t *testing.T) {
	h := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	srv := httptest.NewServer(h)
	defer srv.Close()

	h.FormatChanged(audio.Format{SampleRate: 44100, Channels: 1, Encoding: audio.EncodingF32LE})

	// the format is stored once the hub has handled the event
	deadline := time.Now().Add(2 * time.Second)
	for {
		h.clientsMu.Lock()
		stored := h.format != nil
		h.clientsMu.Unlock()
		if stored {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("format was never stored")
		}
		time.Sleep(5 * time.Millisecond)
	}

	conn := dial(t, srv)
	defer conn.Close()

	var format FormatMessage
	readJSON(t, conn, &format)
	if format.Rate != 44100 || format.Channels != 1 {
		t.Errorf("unexpected replayed format %+v", format)
	}
}

func TestHubNeverBlocksObserver(t *testing.T) {
	h := NewHub(nil)

	// nothing drains the queue
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			h.FrameProcessed(meter.Frame{Peaks: []float32{0.1}}, stream.Stats{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("observer blocked")
	}

	if h.Dropped() == 0 {
		t.Error("expected dropped events")
	}
}

func TestFrameProcessedCopiesPeaks(t *testing.T) {
	h := NewHub(nil)
	peaks := []float32{0.5}
	h.FrameProcessed(meter.Frame{Peaks: peaks}, stream.Stats{})
	peaks[0] = 1

	msg := (<-h.events).(LevelsMessage)
	if msg.Peaks[0] != 0.5 {
		t.Errorf("expected queued peak 0.5, got %v", msg.Peaks[0])
	}
}
