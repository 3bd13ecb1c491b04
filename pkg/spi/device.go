// ABOUTME: periph.io backed SPI device
// ABOUTME: Acquires a spidev port once and performs blocking write transfers
package spi

import (
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	pspi "periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// Config selects and configures the bus. It is immutable once the device is open.
type Config struct {
	Bus         int
	ChipSelect  int
	Speed       physic.Frequency
	Mode        pspi.Mode
	BitsPerWord int
}

// DefaultConfig is bus 0, chip-select 0, 1 MHz, mode 0, 8-bit words
func DefaultConfig() Config {
	return Config{
		Bus:         0,
		ChipSelect:  0,
		Speed:       physic.MegaHertz,
		Mode:        pspi.Mode0,
		BitsPerWord: 8,
	}
}

// PortName returns the periph registry name of the port, e.g. "SPI0.0"
func (c Config) PortName() string {
	return fmt.Sprintf("SPI%d.%d", c.Bus, c.ChipSelect)
}

// Device is an acquired SPI port
type Device struct {
	name  string
	port  pspi.PortCloser
	conn  pspi.Conn
	maxTx int
}

// Open initializes the host drivers and acquires the configured port
func Open(cfg Config) (*Device, error) {
	name := cfg.PortName()

	if _, err := host.Init(); err != nil {
		return nil, &AcquireError{Port: name, Err: fmt.Errorf("host init: %w", err)}
	}

	port, err := spireg.Open(name)
	if err != nil {
		return nil, &AcquireError{Port: name, Err: err}
	}

	c, err := port.Connect(cfg.Speed, cfg.Mode, cfg.BitsPerWord)
	if err != nil {
		port.Close()
		return nil, &AcquireError{Port: name, Err: fmt.Errorf("connect: %w", err)}
	}

	maxTx := 0
	if l, ok := c.(conn.Limits); ok {
		maxTx = l.MaxTxSize()
	}

	slog.Debug("spi port acquired",
		slog.String("port", name),
		slog.String("speed", cfg.Speed.String()),
		slog.Int("mode", int(cfg.Mode)),
		slog.Int("max_tx", maxTx))

	return &Device{name: name, port: port, conn: c, maxTx: maxTx}, nil
}

// Write transfers p and blocks until the transfer completed
func (d *Device) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := d.conn.Tx(p, nil); err != nil {
		return 0, fmt.Errorf("spi tx on %s: %w", d.name, err)
	}
	return len(p), nil
}

// MaxTxSize returns the largest single transfer the port accepts, 0 if unknown
func (d *Device) MaxTxSize() int {
	return d.maxTx
}

// Close releases the port
func (d *Device) Close() error {
	if d.port == nil {
		return nil
	}
	err := d.port.Close()
	d.port = nil
	return err
}

func (d *Device) String() string {
	return d.name
}
