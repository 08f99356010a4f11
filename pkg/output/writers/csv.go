// Package writers provides output writers for various formats.
package writers

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/riskgate/riskgate/pkg/output/dispatcher"
	"github.com/riskgate/riskgate/pkg/output/events"
)

// Compile-time interface check.
var _ dispatcher.Writer = (*CSVWriter)(nil)

// UTF-8 BOM for Excel compatibility.
const utf8BOM = "\xEF\xBB\xBF"

// Default timestamp format (RFC3339).
const defaultTimestampFormat = "2006-01-02T15:04:05Z07:00"

// CSVWriter writes events as CSV rows.
// Each row represents a single finding, making it ideal for data
// analysis in tools like Excel, pandas, or database imports.
//
// Features:
//   - One row per finding with its score weight
//   - Excel compatibility with UTF-8 BOM
//   - CSV injection prevention (formula sanitization)
//   - Verdict summary section
type CSVWriter struct {
	w             io.Writer
	csvWriter     *csv.Writer
	mu            sync.Mutex
	opts          CSVOptions
	headerWritten bool
	summary       *events.SummaryEvent // Store summary for Close()
}

// CSVOptions configures the CSV writer behavior.
type CSVOptions struct {
	// IncludeHeader includes a header row with column names.
	IncludeHeader bool

	// Delimiter sets the field delimiter character.
	// Default is comma when zero value.
	Delimiter rune

	// ExcelCompatible adds UTF-8 BOM for Excel compatibility.
	// This ensures proper display of Unicode characters in Excel.
	ExcelCompatible bool

	// SanitizeFormulas prevents CSV injection by prefixing dangerous characters.
	// Dangerous characters: = + - @ TAB CR
	SanitizeFormulas bool

	// TimestampFormat sets the timestamp format (default: RFC3339).
	TimestampFormat string

	// TruncateAt limits field length (0 = no limit).
	TruncateAt int
}

// csvColumns defines the CSV column headers.
// Order optimized for triage: classification first, prose last.
var csvColumns = []string{
	// Core identification
	"index",     // Position in the input document
	"timestamp", // ISO 8601 timestamp (RFC3339)
	"app",       // Application under evaluation

	// Classification
	"severity", // CRITICAL/HIGH/MEDIUM/LOW/INFO
	"weight",   // Contribution to the weighted risk score
	"source",   // Originating scanner
	"rule",     // Scanner rule identifier

	// Location
	"location", // Affected URL, file, or component

	// Detail
	"name",        // Finding title
	"description", // Human-readable finding description
	"solution",    // Remediation guidance
	"tags",        // Semicolon-joined tags
}

// sanitizeForCSV prevents CSV injection by prefixing dangerous characters.
// This is a SECURITY feature to prevent formula execution in spreadsheets.
func sanitizeForCSV(s string) string {
	if len(s) == 0 {
		return s
	}
	// Characters that can trigger formula execution in spreadsheets
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s // Prefix with single quote
	}
	return s
}

// truncateField truncates a field to the specified length.
func truncateField(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen > 3 {
		return string(runes[:maxLen-3]) + "..."
	}
	return string(runes[:maxLen])
}

// NewCSVWriter creates a new CSV writer.
// If IncludeHeader is true, a header row is written immediately.
// If ExcelCompatible is true, a UTF-8 BOM is written for proper Excel display.
// The writer is safe for concurrent use.
func NewCSVWriter(w io.Writer, opts CSVOptions) *CSVWriter {
	// Set defaults
	if opts.TimestampFormat == "" {
		opts.TimestampFormat = defaultTimestampFormat
	}

	// Write UTF-8 BOM for Excel compatibility
	if opts.ExcelCompatible {
		_, _ = w.Write([]byte(utf8BOM))
	}

	csvWriter := csv.NewWriter(w)
	if opts.Delimiter != 0 {
		csvWriter.Comma = opts.Delimiter
	}

	cw := &CSVWriter{
		w:         w,
		csvWriter: csvWriter,
		opts:      opts,
	}

	// Write header by default
	if opts.IncludeHeader {
		_ = csvWriter.Write(csvColumns)
		csvWriter.Flush()
		cw.headerWritten = true
	}

	return cw
}

// Write writes a finding event as a CSV row.
// Summary events are captured for output on Close().
// Other event types are silently skipped.
func (cw *CSVWriter) Write(event events.Event) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	switch e := event.(type) {
	case *events.FindingEvent:
		return cw.writeFinding(e)
	case *events.SummaryEvent:
		cw.summary = e
		return nil
	default:
		return nil // Skip other event types
	}
}

// writeFinding writes a single finding event as a CSV row.
func (cw *CSVWriter) writeFinding(fe *events.FindingEvent) error {
	tags := ""
	if len(fe.Finding.Tags) > 0 {
		tags = strings.Join(fe.Finding.Tags, ";")
	}
	ts := fe.Timestamp().Format(cw.opts.TimestampFormat)

	// Build row with all columns (matches csvColumns order)
	row := []string{
		strconv.Itoa(fe.Index),      // index
		ts,                          // timestamp
		fe.AppName,                  // app
		fe.Finding.Severity.Upper(), // severity
		strconv.Itoa(fe.Weight),     // weight
		fe.Finding.Source,           // source
		fe.Finding.Rule,             // rule
		fe.Finding.Location,         // location
		fe.Finding.Name,             // name
		fe.Finding.Description,      // description
		fe.Finding.Solution,         // solution
		tags,                        // tags
	}

	// Apply sanitization and truncation
	for i, field := range row {
		if cw.opts.SanitizeFormulas {
			field = sanitizeForCSV(field)
		}
		if cw.opts.TruncateAt > 0 {
			field = truncateField(field, cw.opts.TruncateAt)
		}
		row[i] = field
	}

	return cw.csvWriter.Write(row)
}

// Flush flushes the CSV writer's internal buffer.
func (cw *CSVWriter) Flush() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.csvWriter.Flush()
	return cw.csvWriter.Error()
}

// Close flushes the CSV writer and writes the summary if available.
// If the underlying writer implements io.Closer, it will be closed.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	// Write summary if available
	if cw.summary != nil {
		cw.writeSummaryLocked()
	}

	cw.csvWriter.Flush()
	if err := cw.csvWriter.Error(); err != nil {
		return fmt.Errorf("csv: flush: %w", err)
	}

	if closer, ok := cw.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// writeSummaryLocked writes a summary section at the end of the CSV.
// Must be called with mu held.
func (cw *CSVWriter) writeSummaryLocked() {
	if cw.summary == nil {
		return
	}

	// Write blank row as separator
	_ = cw.csvWriter.Write([]string{})

	// Write summary rows
	_ = cw.csvWriter.Write([]string{"# SUMMARY"})
	_ = cw.csvWriter.Write([]string{"Application", cw.summary.AppName})
	_ = cw.csvWriter.Write([]string{"Status", string(cw.summary.Verdict.Status)})
	_ = cw.csvWriter.Write([]string{"Decision Rule", cw.summary.Verdict.Rule})
	_ = cw.csvWriter.Write([]string{"Risk Score", strconv.Itoa(cw.summary.Verdict.RiskScore)})
	_ = cw.csvWriter.Write([]string{"Total Findings", strconv.Itoa(cw.summary.TotalFindings)})
	_ = cw.csvWriter.Write([]string{"Critical", strconv.Itoa(cw.summary.Totals.Critical)})
	_ = cw.csvWriter.Write([]string{"High", strconv.Itoa(cw.summary.Totals.High)})
	_ = cw.csvWriter.Write([]string{"Medium", strconv.Itoa(cw.summary.Totals.Medium)})
	_ = cw.csvWriter.Write([]string{"Low", strconv.Itoa(cw.summary.Totals.Low)})
	_ = cw.csvWriter.Write([]string{"Info", strconv.Itoa(cw.summary.Totals.Info)})
	_ = cw.csvWriter.Write([]string{"Violations", strconv.Itoa(len(cw.summary.Violations))})
}

// SupportsEvent returns true for finding and summary events.
// CSV format supports tabular finding data and summary statistics.
func (cw *CSVWriter) SupportsEvent(eventType events.EventType) bool {
	return eventType == events.EventTypeFinding || eventType == events.EventTypeSummary
}
