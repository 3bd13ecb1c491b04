// ABOUTME: Prometheus metrics for the capture pipeline
// ABOUTME: Observes the stream session and exposes counters, gauges and histograms
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spimeter/spimeter/pkg/audio"
	"github.com/spimeter/spimeter/pkg/meter"
	"github.com/spimeter/spimeter/pkg/stream"
)

// Metrics contains all Prometheus metrics of the bridge
type Metrics struct {
	registry *prometheus.Registry

	// Buffer metrics
	BuffersProcessed prometheus.Counter
	BuffersSkipped   *prometheus.CounterVec
	BufferSamples    prometheus.Histogram

	// SPI metrics
	SamplesWritten prometheus.Counter
	BytesWritten   prometheus.Counter
	WriteErrors    prometheus.Counter

	// Signal metrics
	ChannelPeak *prometheus.GaugeVec
	PeakIndex   *prometheus.GaugeVec

	// Format metrics
	SampleRate    prometheus.Gauge
	Channels      prometheus.Gauge
	FormatChanges prometheus.Counter
}

var _ stream.Observer = (*Metrics)(nil)

// NewMetrics creates all metrics on a dedicated registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		BuffersProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "spimeter_buffers_processed_total",
			Help: "Total number of buffers processed",
		}),
		BuffersSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "spimeter_buffers_skipped_total",
			Help: "Total number of buffer callbacks that produced no frame",
		}, []string{"reason"}),
		BufferSamples: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "spimeter_buffer_samples_per_channel",
			Help:    "Samples per channel in each processed buffer",
			Buckets: prometheus.ExponentialBuckets(64, 2, 8), // 64 to 8192
		}),

		SamplesWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "spimeter_spi_samples_total",
			Help: "Total number of samples handed to the SPI writer",
		}),
		BytesWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "spimeter_spi_bytes_total",
			Help: "Total number of bytes accepted by the SPI writer",
		}),
		WriteErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "spimeter_spi_write_errors_total",
			Help: "Total number of failed SPI writes",
		}),

		ChannelPeak: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "spimeter_channel_peak",
			Help: "Peak absolute amplitude of the last buffer per channel",
		}, []string{"channel"}),
		PeakIndex: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "spimeter_channel_peak_index",
			Help: "Meter cell index of the last buffer per channel",
		}, []string{"channel"}),

		SampleRate: factory.NewGauge(prometheus.GaugeOpts{
			Name: "spimeter_sample_rate_hz",
			Help: "Negotiated sample rate",
		}),
		Channels: factory.NewGauge(prometheus.GaugeOpts{
			Name: "spimeter_channels",
			Help: "Negotiated channel count",
		}),
		FormatChanges: factory.NewCounter(prometheus.CounterOpts{
			Name: "spimeter_format_changes_total",
			Help: "Total number of accepted format changes",
		}),
	}
}

// Registry returns the registry holding the metrics
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// FormatChanged records a negotiated format and drops per-channel series of the previous one
func (m *Metrics) FormatChanged(f audio.Format) {
	m.FormatChanges.Inc()
	m.SampleRate.Set(float64(f.SampleRate))
	m.Channels.Set(float64(f.Channels))
	m.ChannelPeak.Reset()
	m.PeakIndex.Reset()
}

// FrameProcessed records one processed buffer
func (m *Metrics) FrameProcessed(f meter.Frame, st stream.Stats) {
	m.BuffersProcessed.Inc()
	m.BufferSamples.Observe(float64(f.SamplesPerChannel))

	m.SamplesWritten.Add(float64(st.Samples))
	m.BytesWritten.Add(float64(st.BytesWritten))
	m.WriteErrors.Add(float64(st.WriteErrors))

	for c, peak := range f.Peaks {
		ch := strconv.Itoa(c)
		m.ChannelPeak.WithLabelValues(ch).Set(float64(peak))
		m.PeakIndex.WithLabelValues(ch).Set(float64(meter.PeakIndex(peak)))
	}
}

// BufferSkipped records a callback that produced no frame
func (m *Metrics) BufferSkipped(reason stream.SkipReason) {
	m.BuffersSkipped.WithLabelValues(string(reason)).Inc()
}
