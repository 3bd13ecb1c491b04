// ABOUTME: Pipeline observers
// ABOUTME: Lets metrics and remote level feeds follow the session
package stream

import (
	"github.com/spimeter/spimeter/pkg/audio"
	"github.com/spimeter/spimeter/pkg/meter"
)

// SkipReason says why a buffer callback produced no frame
type SkipReason string

const (
	SkipNoBuffer     SkipReason = "no_buffer"
	SkipEmpty        SkipReason = "empty"
	SkipUnconfigured SkipReason = "unconfigured"
)

// Observer follows a session. Methods run on the audio callback and must not block.
type Observer interface {
	FormatChanged(f audio.Format)
	FrameProcessed(f meter.Frame, st Stats)
	BufferSkipped(reason SkipReason)
}

// Observers fans out to every non-nil observer in order
type Observers []Observer

func (o Observers) FormatChanged(f audio.Format) {
	for _, obs := range o {
		if obs != nil {
			obs.FormatChanged(f)
		}
	}
}

func (o Observers) FrameProcessed(f meter.Frame, st Stats) {
	for _, obs := range o {
		if obs != nil {
			obs.FrameProcessed(f, st)
		}
	}
}

func (o Observers) BufferSkipped(reason SkipReason) {
	for _, obs := range o {
		if obs != nil {
			obs.BufferSkipped(reason)
		}
	}
}
