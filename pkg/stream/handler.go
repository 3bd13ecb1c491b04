// ABOUTME: Callback contract between audio backends and the pipeline
// ABOUTME: Defines Handler, Buffer and Data
package stream

import "github.com/spimeter/spimeter/pkg/audio"

// Handler receives the callbacks of one audio stream. Calls are never concurrent.
type Handler interface {
	// OnFormatChanged is called when the server announces a format. nil clears it.
	OnFormatChanged(param *audio.Param)

	// OnBufferReady is called once per captured buffer. nil means no buffer could be dequeued.
	OnBufferReady(buf *Buffer)
}

// Buffer is one dequeued buffer. It is only valid for the duration of the callback.
type Buffer struct {
	Datas []Data
}

// Data is one mapped data segment of a buffer
type Data struct {
	// Bytes is the mapped memory
	Bytes []byte
	// Size is the chunk size reported by the server, in bytes
	Size int
}

// NewBuffer wraps a single segment whose chunk size is the length of b
func NewBuffer(b []byte) *Buffer {
	return &Buffer{Datas: []Data{{Bytes: b, Size: len(b)}}}
}
