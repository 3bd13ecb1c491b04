// ABOUTME: Decoder errors
// ABOUTME: Sentinel errors returned by the decoders
package decode

import "errors"

var (
	// ErrUnsupportedFormat is returned for containers or encodings no decoder handles
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrInvalidRawFormat is returned when a raw stream is opened without a usable rate or channel count
	ErrInvalidRawFormat = errors.New("invalid raw stream format")
)
