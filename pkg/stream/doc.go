// ABOUTME: Stream processing core
// ABOUTME: Negotiates the capture format and processes every delivered buffer
// Package stream is the per-buffer processing pipeline between an audio server and the
// SPI bus.
//
// A capture backend drives a Handler: it calls OnFormatChanged when the server announces
// a format and OnBufferReady for every captured buffer. Session implements Handler. For
// each buffer it de-interleaves the F32LE samples channel by channel, writes every
// 4-byte sample unmodified to the peripheral writer, tracks the per-channel peak and
// hands the resulting meter.Frame to a display and to observers.
//
// Calls for one stream must be serialized by the caller; Session holds no locks.
//
// Example:
//
//	s := stream.NewSession(stream.Config{
//	    Writer:  dev,
//	    Display: meter.NewTerminal(os.Stdout),
//	    Logger:  logger,
//	})
//	s.OnFormatChanged(audio.Format{SampleRate: 48000, Channels: 2, Encoding: audio.EncodingF32LE}.Param())
//	s.OnBufferReady(&stream.Buffer{Datas: []stream.Data{{Bytes: b, Size: len(b)}}})
package stream
