// ABOUTME: Health endpoint for the monitoring listener
// ABOUTME: Tracks the negotiated format and buffer activity as a stream observer
package app

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/spimeter/spimeter/internal/version"
	"github.com/spimeter/spimeter/pkg/audio"
	"github.com/spimeter/spimeter/pkg/meter"
	"github.com/spimeter/spimeter/pkg/stream"
)

// HealthResponse is the body of GET /healthz
type HealthResponse struct {
	Status      string     `json:"status"`
	Version     string     `json:"version"`
	Session     string     `json:"session"`
	Format      string     `json:"format,omitempty"`
	Buffers     uint64     `json:"buffers"`
	Skipped     uint64     `json:"skipped"`
	WriteErrors uint64     `json:"write_errors"`
	LastBuffer  *time.Time `json:"last_buffer,omitempty"`
}

type health struct {
	mu          sync.Mutex
	session     string
	format      audio.Format
	buffers     uint64
	skipped     uint64
	writeErrors uint64
	lastBuffer  time.Time
	now         func() time.Time
}

var _ stream.Observer = (*health)(nil)

func newHealth() *health {
	return &health{now: time.Now}
}

func (h *health) FormatChanged(f audio.Format) {
	h.mu.Lock()
	h.format = f
	h.mu.Unlock()
}

func (h *health) FrameProcessed(_ meter.Frame, st stream.Stats) {
	h.mu.Lock()
	h.buffers++
	h.writeErrors += uint64(st.WriteErrors)
	h.lastBuffer = h.now()
	h.mu.Unlock()
}

func (h *health) BufferSkipped(stream.SkipReason) {
	h.mu.Lock()
	h.skipped++
	h.mu.Unlock()
}

// snapshot reports "waiting" until a format has been negotiated
func (h *health) snapshot() HealthResponse {
	h.mu.Lock()
	defer h.mu.Unlock()

	resp := HealthResponse{
		Status:      "waiting",
		Version:     version.Version,
		Session:     h.session,
		Buffers:     h.buffers,
		Skipped:     h.skipped,
		WriteErrors: h.writeErrors,
	}
	if h.format.Configured() {
		resp.Status = "ok"
		resp.Format = h.format.String()
	}
	if !h.lastBuffer.IsZero() {
		last := h.lastBuffer
		resp.LastBuffer = &last
	}
	return resp
}

func (h *health) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.snapshot())
}
