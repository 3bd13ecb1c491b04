// ABOUTME: Audio decoder package for file driven sources
// ABOUTME: Provides Source and decoders for WAV, MP3, FLAC, Ogg Vorbis and raw F32LE
// Package decode turns encoded audio into interleaved float32 samples.
//
// Supports: WAV (integer PCM), MP3, FLAC, Ogg Vorbis and raw F32LE streams.
//
// Every decoder implements Source and yields samples in [-1, 1], which is the
// value range of the F32LE stream a capture backend delivers.
//
// Example:
//
//	src, err := decode.Open("take.flac")
//	if err != nil {
//		return err
//	}
//	defer src.Close()
//
//	buf := make([]float32, 1024*src.Channels())
//	n, err := src.Read(buf)
package decode
