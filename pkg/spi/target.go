// ABOUTME: Writer target selection
// ABOUTME: Opens the SPI device, a dump file or a discarding writer
package spi

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Granularity controls how often the bus is written
type Granularity string

const (
	// PerSample transfers every 4-byte sample on its own
	PerSample Granularity = "sample"
	// PerBuffer transfers once per audio buffer
	PerBuffer Granularity = "buffer"
)

// OpenTarget opens the writer named by target:
//
//	"spi"          the hardware bus described by cfg
//	"file:<path>"  a dump file receiving the byte stream
//	"none"         discard
//
// With PerBuffer granularity the writer is wrapped in a Batch.
func OpenTarget(target string, cfg Config, g Granularity) (io.WriteCloser, error) {
	var (
		w     io.WriteCloser
		maxTx int
	)

	switch {
	case target == "spi" || target == "":
		dev, err := Open(cfg)
		if err != nil {
			return nil, err
		}
		w, maxTx = dev, dev.MaxTxSize()
	case strings.HasPrefix(target, "file:"):
		d, err := OpenDump(strings.TrimPrefix(target, "file:"))
		if err != nil {
			return nil, err
		}
		w = d
	case target == "none":
		w = nopCloser{io.Discard}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, target)
	}

	if g == PerBuffer {
		return NewBatch(w, maxTx), nil
	}
	return w, nil
}

// Dump writes the byte stream to a file
type Dump struct {
	f  *os.File
	bw *bufio.Writer
}

// OpenDump creates or truncates path
func OpenDump(path string) (*Dump, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty dump path", ErrUnknownTarget)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create dump file: %w", err)
	}
	return &Dump{f: f, bw: bufio.NewWriter(f)}, nil
}

func (d *Dump) Write(p []byte) (int, error) {
	return d.bw.Write(p)
}

// Flush pushes buffered bytes to the file
func (d *Dump) Flush() error {
	return d.bw.Flush()
}

func (d *Dump) Close() error {
	ferr := d.bw.Flush()
	if err := d.f.Close(); err != nil {
		return err
	}
	return ferr
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
