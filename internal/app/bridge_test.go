// ABOUTME: Tests for bridge orchestration
// ABOUTME: Runs tone and raw sources into dump targets and exercises the monitoring listener
package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spimeter/spimeter/internal/config"
	"github.com/spimeter/spimeter/pkg/audio"
	"github.com/spimeter/spimeter/pkg/spi"
)

func toneConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Source.Kind = "tone"
	cfg.Source.Rate = 8000
	cfg.Source.Channels = 1
	cfg.Source.PeriodMs = 10
	cfg.SPI.Device = "none"
	cfg.Display.Mode = "none"
	return cfg
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := toneConfig(t)
	cfg.Display.Mode = "fancy"

	if _, err := New(cfg, Options{}); err == nil {
		t.Fatal("expected error for invalid display mode")
	}
}

func TestNewReturnsAcquireError(t *testing.T) {
	cfg := toneConfig(t)
	cfg.SPI.Device = "spi"
	cfg.SPI.Bus = 97
	cfg.SPI.ChipSelect = 3

	_, err := New(cfg, Options{})
	if err == nil {
		t.Fatal("expected acquisition to fail without SPI hardware")
	}

	var acquireErr *spi.AcquireError
	if !errors.As(err, &acquireErr) {
		t.Fatalf("expected *spi.AcquireError, got %T: %v", err, err)
	}
	if !errors.Is(err, spi.ErrUnavailable) {
		t.Errorf("expected error to match spi.ErrUnavailable, got %v", err)
	}
}

func TestRunToneToDumpFile(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "spi.bin")

	cfg := toneConfig(t)
	cfg.SPI.Device = "file:" + dump
	cfg.Display.Mode = "ansi"

	var stdout bytes.Buffer
	b, err := New(cfg, Options{Stdout: &stdout})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	if err := b.Run(ctx); err != nil {
		t.Fatalf("expected clean stop, got %v", err)
	}

	data, err := os.ReadFile(dump)
	if err != nil {
		t.Fatalf("failed to read dump: %v", err)
	}

	// 10ms at 8kHz mono is 80 samples of 4 bytes
	const bufferBytes = 80 * audio.SampleWidth
	if len(data) == 0 {
		t.Fatal("expected samples in the dump file")
	}
	if len(data)%bufferBytes != 0 {
		t.Errorf("expected whole buffers of %d bytes, got %d bytes", bufferBytes, len(data))
	}

	out := stdout.String()
	if !strings.Contains(out, "captured 80 samples\n") {
		t.Errorf("expected meter header in output, got %q", out)
	}
	if !strings.Contains(out, "channel 0: |") {
		t.Errorf("expected channel line in output, got %q", out)
	}
}

func TestRunEndsWithRawFile(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "in.f32")
	dump := filepath.Join(dir, "spi.bin")

	samples := make([]float32, 960)
	for i := range samples {
		samples[i] = float32(i%10) / 10
	}
	if err := os.WriteFile(raw, audio.AppendF32LE(nil, samples), 0o644); err != nil {
		t.Fatalf("failed to write input: %v", err)
	}

	cfg := toneConfig(t)
	cfg.Source.Kind = "raw"
	cfg.Source.Path = raw
	cfg.Source.Rate = 48000
	cfg.Source.Channels = 2
	cfg.Source.PeriodMs = 1
	cfg.SPI.Device = "file:" + dump
	cfg.SPI.Granularity = "buffer"

	b, err := New(cfg, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.Run(ctx); err != nil {
		t.Fatalf("expected clean end of stream, got %v", err)
	}
	if ctx.Err() != nil {
		t.Fatal("expected the source to end before the deadline")
	}

	data, err := os.ReadFile(dump)
	if err != nil {
		t.Fatalf("failed to read dump: %v", err)
	}
	if want := audio.AppendF32LE(nil, samples); !bytes.Equal(data, want) {
		t.Errorf("expected %d forwarded bytes equal to the input, got %d bytes", len(want), len(data))
	}
}

func TestRunServesMonitoring(t *testing.T) {
	cfg := toneConfig(t)
	cfg.HTTP.Listen = "127.0.0.1:0"

	b, err := New(cfg, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Addr() == "" {
		t.Fatal("expected a bound listener address")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	base := "http://" + b.Addr()

	var health HealthResponse
	deadline := time.Now().Add(3 * time.Second)
	for {
		health = getHealth(t, base+"/healthz")
		if health.Status == "ok" && health.Buffers > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected ok status with buffers, got %+v", health)
		}
		time.Sleep(20 * time.Millisecond)
	}

	if health.Session != b.Session().ID() {
		t.Errorf("expected session %s, got %s", b.Session().ID(), health.Session)
	}
	if health.Format != "F32LE 8000Hz 1ch" {
		t.Errorf("expected format F32LE 8000Hz 1ch, got %q", health.Format)
	}

	resp, err := http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "spimeter_buffers_processed_total") {
		t.Error("expected buffer counter in metrics output")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean stop, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("bridge did not stop")
	}

	if _, err := http.Get(base + "/healthz"); err == nil {
		t.Error("expected listener to be closed after Run")
	}
}

func TestCloseWithoutRun(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "spi.bin")

	cfg := toneConfig(t)
	cfg.SPI.Device = "file:" + dump
	cfg.HTTP.Listen = "127.0.0.1:0"

	b, err := New(cfg, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	addr := b.Addr()

	b.Close()
	b.Close()

	if _, err := os.Stat(dump); err != nil {
		t.Errorf("expected dump file to exist, got %v", err)
	}
	if _, err := http.Get("http://" + addr + "/healthz"); err == nil {
		t.Error("expected listener to be closed")
	}
}

func TestDescribeSource(t *testing.T) {
	tests := []struct {
		name     string
		source   config.SourceConfig
		expected string
	}{
		{"capture auto", config.SourceConfig{Kind: "capture"}, "capture auto"},
		{"capture device", config.SourceConfig{Kind: "capture", Backend: "pulse", Device: "Monitor"}, `capture pulse "Monitor"`},
		{"tone", config.SourceConfig{Kind: "tone", Rate: 48000, Channels: 2}, "tone 48000Hz 2ch"},
		{"file", config.SourceConfig{Kind: "file", Path: "song.flac"}, "file song.flac"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := describeSource(tt.source); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func getHealth(t *testing.T, url string) HealthResponse {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var h HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		t.Fatalf("failed to decode health: %v", err)
	}
	return h
}
