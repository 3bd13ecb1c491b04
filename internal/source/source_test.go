// ABOUTME: Tests for the file and tone sources
// ABOUTME: Drives a recording handler from raw files and generated tones
package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/spimeter/spimeter/pkg/audio"
	"github.com/spimeter/spimeter/pkg/audio/decode"
	"github.com/spimeter/spimeter/pkg/stream"
)

type recordingHandler struct {
	mu      sync.Mutex
	params  []audio.Param
	buffers [][]byte
}

func (h *recordingHandler) OnFormatChanged(p *audio.Param) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.params = append(h.params, *p)
}

func (h *recordingHandler) OnBufferReady(b *stream.Buffer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buffers = append(h.buffers, append([]byte(nil), b.Datas[0].Bytes...))
}

func (h *recordingHandler) totalBytes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, b := range h.buffers {
		n += len(b)
	}
	return n
}

func writeRaw(t *testing.T, samples int) string {
	t.Helper()
	data := make([]float32, samples)
	for i := range data {
		data[i] = float32(i%100) / 100
	}
	path := filepath.Join(t.TempDir(), "capture.f32")
	if err := os.WriteFile(path, audio.AppendF32LE(nil, data), 0o644); err != nil {
		t.Fatalf("failed to write raw file: %v", err)
	}
	return path
}

func TestNewValidation(t *testing.T) {
	h := &recordingHandler{}
	tests := []struct {
		name   string
		config Config
	}{
		{"unknown kind", Config{Kind: "mic"}},
		{"file without path", Config{Kind: KindFile}},
		{"raw without path", Config{Kind: KindRaw}},
		{"tone without rate", Config{Kind: KindTone, Channels: 2}},
		{"looped stdin", Config{Kind: KindRaw, Path: "-", SampleRate: 48000, Channels: 2, Loop: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.config, h); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}

	if _, err := New(Config{Kind: KindTone, SampleRate: 48000, Channels: 2}, nil); err == nil {
		t.Error("expected error without handler")
	}
}

func TestRawFileDeliversWholeFile(t *testing.T) {
	path := writeRaw(t, 960)
	h := &recordingHandler{}

	p, err := New(Config{
		Kind:       KindRaw,
		Path:       path,
		SampleRate: 48000,
		Channels:   2,
		Period:     time.Millisecond,
	}, h)
	if err != nil {
		t.Fatalf("failed to create pump: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.Run(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(h.params) != 1 {
		t.Fatalf("expected 1 format change, got %d", len(h.params))
	}
	expected := audio.Format{SampleRate: 48000, Channels: 2, Encoding: audio.EncodingF32LE}.Param()
	if h.params[0] != *expected {
		t.Errorf("expected param %q, got %q", *expected, h.params[0])
	}

	// 48 frames of 2 channels per millisecond
	if len(h.buffers) != 10 {
		t.Errorf("expected 10 buffers, got %d", len(h.buffers))
	}
	if h.totalBytes() != 960*audio.SampleWidth {
		t.Errorf("expected %d bytes, got %d", 960*audio.SampleWidth, h.totalBytes())
	}
}

func TestLoopingRestartsWithoutReannouncing(t *testing.T) {
	path := writeRaw(t, 96)
	h := &recordingHandler{}

	p, err := New(Config{
		Kind:       KindRaw,
		Path:       path,
		SampleRate: 48000,
		Channels:   1,
		Loop:       true,
		Period:     time.Millisecond,
	}, h)
	if err != nil {
		t.Fatalf("failed to create pump: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := p.Run(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if h.totalBytes() <= 96*audio.SampleWidth {
		t.Errorf("expected looping to deliver more than one pass, got %d bytes", h.totalBytes())
	}
	if len(h.params) != 1 {
		t.Errorf("expected a single format change, got %d", len(h.params))
	}
}

func TestToneRunsUntilCancelled(t *testing.T) {
	h := &recordingHandler{}
	p, err := New(Config{Kind: KindTone, SampleRate: 8000, Channels: 2, Period: time.Millisecond}, h)
	if err != nil {
		t.Fatalf("failed to create pump: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := p.Run(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(h.buffers) == 0 {
		t.Fatal("expected buffers from tone source")
	}
	// 8 frames of 2 channels
	if len(h.buffers[0]) != 16*audio.SampleWidth {
		t.Errorf("expected %d bytes per buffer, got %d", 16*audio.SampleWidth, len(h.buffers[0]))
	}
}

func TestMissingFileFailsRun(t *testing.T) {
	h := &recordingHandler{}
	p, err := New(Config{Kind: KindFile, Path: filepath.Join(t.TempDir(), "missing.wav")}, h)
	if err != nil {
		t.Fatalf("failed to create pump: %v", err)
	}
	if err := p.Run(context.Background()); err == nil {
		t.Error("expected error for missing file")
	}
	if len(h.params) != 0 {
		t.Errorf("expected no format change, got %d", len(h.params))
	}
}

func TestWAVFileKeepsNativeRate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create wav: %v", err)
	}
	data := make([]int, 240)
	for i := range data {
		data[i] = (i % 20) * 1000
	}
	enc := wav.NewEncoder(f, 24000, 16, 1, 1)
	if err := enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: 24000},
		Data:           data,
		SourceBitDepth: 16,
	}); err != nil {
		t.Fatalf("failed to write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("failed to close wav: %v", err)
	}
	f.Close()

	h := &recordingHandler{}
	p, err := New(Config{Kind: KindFile, Path: path, Period: time.Millisecond}, h)
	if err != nil {
		t.Fatalf("failed to create pump: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.Run(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(h.params) != 1 {
		t.Fatalf("expected 1 format change, got %d", len(h.params))
	}
	parsed, err := h.params[0].Parse()
	if err != nil {
		t.Fatalf("failed to parse announced format: %v", err)
	}
	got, err := parsed.Format()
	if err != nil {
		t.Fatalf("failed to read announced format: %v", err)
	}
	if got.SampleRate != 24000 {
		t.Errorf("expected announced rate 24000, got %d", got.SampleRate)
	}

	if samples := h.totalBytes() / audio.SampleWidth; samples != 240 {
		t.Errorf("expected 240 samples, got %d", samples)
	}
}

// stalledSource never returns from Read until released, like stdin with no writer
type stalledSource struct {
	release chan struct{}
}

func (s *stalledSource) Read(dst []float32) (int, error) {
	<-s.release
	return 0, io.EOF
}

func (s *stalledSource) SampleRate() int { return 48000 }
func (s *stalledSource) Channels() int   { return 2 }
func (s *stalledSource) Close() error    { return nil }

func TestLiveSourceStopsOnCancel(t *testing.T) {
	h := &recordingHandler{}
	p, err := New(Config{Kind: KindRaw, Path: "-", SampleRate: 48000, Channels: 2}, h)
	if err != nil {
		t.Fatalf("failed to create pump: %v", err)
	}

	src := &stalledSource{release: make(chan struct{})}
	defer close(src.release)
	p.open = func() (decode.Source, error) { return src, nil }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("expected run to return after cancel while blocked in read")
	}
	if len(h.buffers) != 0 {
		t.Errorf("expected no buffers, got %d", len(h.buffers))
	}
}
