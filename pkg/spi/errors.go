// ABOUTME: SPI error types
// ABOUTME: Defines the acquisition failure returned by Open
package spi

import (
	"errors"
	"fmt"
)

var (
	ErrUnavailable   = errors.New("spi bus unavailable")
	ErrUnknownTarget = errors.New("unknown spi target")
)

// AcquireError reports that the bus could not be acquired at startup
type AcquireError struct {
	Port string
	Err  error
}

func (e *AcquireError) Error() string {
	return fmt.Sprintf("acquire %s: %v (is this running on hardware with SPI enabled?)", e.Port, e.Err)
}

func (e *AcquireError) Unwrap() []error {
	return []error{ErrUnavailable, e.Err}
}
