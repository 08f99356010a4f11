// Package writers provides output writers for various formats.
package writers

import (
	"fmt"
	"io"
	"sync"

	"github.com/riskgate/riskgate/pkg/finding"
	"github.com/riskgate/riskgate/pkg/jsonutil"
	"github.com/riskgate/riskgate/pkg/output/dispatcher"
	"github.com/riskgate/riskgate/pkg/output/events"
)

// JSONLWriter writes events as JSON Lines (one JSON object per line).
// Unlike JSONWriter, it streams events immediately without buffering,
// making it suitable for tailing a run in progress or feeding a log
// pipeline.
type JSONLWriter struct {
	w       io.Writer
	encoder *jsonutil.Encoder
	mu      sync.Mutex
	opts    JSONLOptions
}

// JSONLOptions configures the JSONL writer behavior.
type JSONLOptions struct {
	// Pretty enables indented output. Technically this is no longer
	// valid JSONL, but it is useful for debugging.
	Pretty bool

	// MinSeverity drops finding events below this tier. Lifecycle
	// events always pass through. Empty means no filtering.
	MinSeverity finding.Severity

	// OmitDescriptions strips description and solution text from
	// finding events to keep lines small.
	OmitDescriptions bool
}

// NewJSONLWriter creates a new JSONL writer.
func NewJSONLWriter(w io.Writer, opts JSONLOptions) *JSONLWriter {
	encoder := jsonutil.NewStreamEncoder(w)
	if opts.Pretty {
		encoder.SetIndent("", "  ")
	}
	return &JSONLWriter{
		w:       w,
		encoder: encoder,
		opts:    opts,
	}
}

// Write writes an event as a JSON line.
func (jw *JSONLWriter) Write(event events.Event) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if fe, ok := event.(*events.FindingEvent); ok {
		if jw.opts.MinSeverity != "" && fe.Finding.Severity.Rank() < jw.opts.MinSeverity.Rank() {
			return nil
		}
		if jw.opts.OmitDescriptions && (fe.Finding.Description != "" || fe.Finding.Solution != "") {
			clean := *fe
			clean.Finding.Description = ""
			clean.Finding.Solution = ""
			event = &clean
		}
	}

	if err := jw.encoder.Encode(event); err != nil {
		return fmt.Errorf("jsonl: encode: %w", err)
	}
	return nil
}

// Flush is a no-op since events are written immediately.
func (jw *JSONLWriter) Flush() error {
	return nil
}

// Close closes the underlying writer if it implements io.Closer.
func (jw *JSONLWriter) Close() error {
	if closer, ok := jw.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// SupportsEvent returns true for all event types.
func (jw *JSONLWriter) SupportsEvent(eventType events.EventType) bool {
	return true
}

// Ensure JSONLWriter implements the Writer interface.
var _ dispatcher.Writer = (*JSONLWriter)(nil)
