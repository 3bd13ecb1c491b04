// ABOUTME: Live capture backend on miniaudio
// ABOUTME: Opens the desktop audio server's capture device and feeds a stream handler
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gen2brain/malgo"
	"github.com/spimeter/spimeter/pkg/audio"
	"github.com/spimeter/spimeter/pkg/stream"
)

// ErrDeviceStopped is returned by Run when the device stops without being asked to
var ErrDeviceStopped = errors.New("capture device stopped")

// Config configures a Capture
type Config struct {
	// Backend is "" (auto), "pulse", "alsa", "jack" or "null"
	Backend string
	// Device selects the first capture device whose name contains it, "" is the default device
	Device string
	// PeriodMs is the requested buffer duration, 0 lets the server decide
	PeriodMs int
	Logger   *slog.Logger
}

// Capture connects one capture stream to a handler
type Capture struct {
	config   Config
	backends []malgo.Backend
	handler  stream.Handler
	logger   *slog.Logger

	buf stream.Buffer
}

// New validates the configuration. Nothing is opened until Run.
func New(config Config, handler stream.Handler) (*Capture, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	if config.PeriodMs < 0 {
		return nil, fmt.Errorf("invalid period %dms", config.PeriodMs)
	}

	backends, err := ParseBackend(config.Backend)
	if err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Capture{
		config:   config,
		backends: backends,
		handler:  handler,
		logger:   logger.With(slog.String("component", "capture")),
		buf:      stream.Buffer{Datas: make([]stream.Data, 1)},
	}, nil
}

// ParseBackend maps a backend name to the malgo backend list, nil meaning auto
func ParseBackend(name string) ([]malgo.Backend, error) {
	switch strings.ToLower(name) {
	case "", "auto":
		return nil, nil
	case "pulse", "pulseaudio", "pipewire":
		return []malgo.Backend{malgo.BackendPulseaudio}, nil
	case "alsa":
		return []malgo.Backend{malgo.BackendAlsa}, nil
	case "jack":
		return []malgo.Backend{malgo.BackendJack}, nil
	case "null":
		return []malgo.Backend{malgo.BackendNull}, nil
	default:
		return nil, fmt.Errorf("unknown capture backend %q (supported: pulse, alsa, jack, null)", name)
	}
}

// Run captures until ctx is cancelled. The format is announced before the first buffer.
func (c *Capture) Run(ctx context.Context) error {
	mctx, err := malgo.InitContext(c.backends, malgo.ContextConfig{}, func(msg string) {
		c.logger.Debug(strings.TrimSpace(msg))
	})
	if err != nil {
		return fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	defer func() {
		if err := mctx.Uninit(); err != nil {
			c.logger.Warn("malgo context uninit error", slog.String("error", err.Error()))
		}
		mctx.Free()
	}()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	// zero leaves channels and rate to the server
	deviceConfig.Capture.Channels = 0
	deviceConfig.SampleRate = 0
	deviceConfig.PeriodSizeInMilliseconds = uint32(c.config.PeriodMs)
	deviceConfig.Alsa.NoMMap = 1

	if c.config.Device != "" {
		info, err := c.findDevice(mctx)
		if err != nil {
			return err
		}
		deviceConfig.Capture.DeviceID = info.ID.Pointer()
		c.logger.Info("using capture device", slog.String("name", info.Name()))
	}

	stopped := make(chan struct{}, 1)
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			c.buf.Datas[0] = stream.Data{Bytes: input, Size: len(input)}
			c.handler.OnBufferReady(&c.buf)
		},
		Stop: func() {
			select {
			case stopped <- struct{}{}:
			default:
			}
		},
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}
	defer device.Uninit()

	if device.CaptureFormat() != malgo.FormatF32 {
		return fmt.Errorf("%w: capture format %d", audio.ErrUnsupportedEncoding, device.CaptureFormat())
	}

	format := audio.Format{
		SampleRate: int(device.SampleRate()),
		Channels:   int(device.CaptureChannels()),
		Encoding:   audio.EncodingF32LE,
	}
	c.handler.OnFormatChanged(format.Param())

	if err := device.Start(); err != nil {
		return fmt.Errorf("failed to start capture device: %w", err)
	}
	c.logger.Info("capture started",
		slog.Int("rate", format.SampleRate),
		slog.Int("channels", format.Channels))

	select {
	case <-ctx.Done():
		if err := device.Stop(); err != nil {
			c.logger.Warn("device stop error", slog.String("error", err.Error()))
		}
		return nil
	case <-stopped:
		return ErrDeviceStopped
	}
}

func (c *Capture) findDevice(mctx *malgo.AllocatedContext) (malgo.DeviceInfo, error) {
	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceInfo{}, fmt.Errorf("failed to list capture devices: %w", err)
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if strings.Contains(strings.ToLower(info.Name()), strings.ToLower(c.config.Device)) {
			return info, nil
		}
		names = append(names, info.Name())
	}
	return malgo.DeviceInfo{}, fmt.Errorf("no capture device matching %q (available: %s)",
		c.config.Device, strings.Join(names, ", "))
}
