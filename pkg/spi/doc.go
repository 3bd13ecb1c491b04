// ABOUTME: SPI peripheral writer package
// ABOUTME: Provides the periph.io backed bus writer plus batching and dump writers
// Package spi provides the peripheral writers samples are streamed to.
//
// Device talks to a Linux spidev port through periph.io. It is acquired once at startup
// with Open; a failure is reported as an *AcquireError that also matches ErrUnavailable.
//
// Batch buffers writes and transfers them on Flush, which turns the per-sample write
// granularity into one transfer per audio buffer. OpenTarget picks a writer from a
// target string ("spi", "file:<path>" or "none").
//
// Example:
//
//	dev, err := spi.Open(spi.DefaultConfig())
//	if err != nil {
//	    var acqErr *spi.AcquireError
//	    if errors.As(err, &acqErr) {
//	        // not running on the expected hardware
//	    }
//	}
//	defer dev.Close()
//	_, err = dev.Write(sample)
package spi
