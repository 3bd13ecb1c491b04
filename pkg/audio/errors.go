// ABOUTME: Sentinel errors for format parameters
// ABOUTME: Matched with errors.Is by the negotiator
package audio

import "errors"

var (
	ErrMalformedParam      = errors.New("malformed format param")
	ErrNotRaw              = errors.New("format param is not raw audio")
	ErrUnsupportedEncoding = errors.New("unsupported sample encoding")
	ErrInvalidFormat       = errors.New("invalid rate or channel count")
)
