// ABOUTME: Batching writer
// ABOUTME: Collects per-sample writes and transfers them once per flush
package spi

import (
	"fmt"
	"io"
)

// Batch buffers writes until Flush
type Batch struct {
	w     io.Writer
	buf   []byte
	maxTx int
}

// NewBatch wraps w. Flush splits transfers into chunks of at most maxTx bytes (0 = unlimited).
func NewBatch(w io.Writer, maxTx int) *Batch {
	return &Batch{w: w, maxTx: maxTx}
}

// Write buffers p. It never fails.
func (b *Batch) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// Buffered returns the number of bytes waiting for Flush
func (b *Batch) Buffered() int {
	return len(b.buf)
}

// Flush writes the buffered bytes. On error the rest of the batch is dropped.
func (b *Batch) Flush() error {
	defer func() { b.buf = b.buf[:0] }()

	pending := b.buf
	for len(pending) > 0 {
		n := len(pending)
		if b.maxTx > 0 && n > b.maxTx {
			n = b.maxTx
		}
		if _, err := b.w.Write(pending[:n]); err != nil {
			return fmt.Errorf("flush %d of %d bytes: %w", len(pending), len(b.buf), err)
		}
		pending = pending[n:]
	}
	return nil
}

// Close flushes and closes the underlying writer when it is closable
func (b *Batch) Close() error {
	err := b.Flush()
	if c, ok := b.w.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
