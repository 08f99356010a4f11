// Package input loads findings documents from files and stdin.
//
// Scanners hand over findings either as an envelope carrying the
// application name, or as a bare JSON array when the name comes from
// the command line. Both shapes parse into the same finding.Document.
package input

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/riskgate/riskgate/pkg/finding"
	"github.com/riskgate/riskgate/pkg/iohelper"
	"github.com/riskgate/riskgate/pkg/jsonutil"
)

// ErrInputNotFound is returned when a findings file does not exist.
var ErrInputNotFound = errors.New("findings file not found")

// ErrInvalidInput is returned when a findings document is malformed.
var ErrInvalidInput = errors.New("invalid findings document")

// ErrInputTooLarge is returned when a findings document exceeds the
// size limit.
var ErrInputTooLarge = errors.New("findings document too large")

// Source consolidates the findings input methods.
type Source struct {
	// Path is the findings file; "-" reads stdin explicitly.
	Path string

	// Stdin reads piped stdin when no path is given.
	Stdin bool

	// AppName overrides the document's app_name when set.
	AppName string

	// MaxSize caps the document size in bytes.
	// Zero means iohelper.DefaultMaxInputSize.
	MaxSize int64
}

// Load reads and parses the findings document.
func (s *Source) Load() (*finding.Document, error) {
	maxSize := s.MaxSize
	if maxSize <= 0 {
		maxSize = iohelper.DefaultMaxInputSize
	}

	data, truncated, err := s.read(maxSize)
	if err != nil {
		return nil, err
	}
	if truncated {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrInputTooLarge, maxSize)
	}

	doc, err := ParseDocument(data)
	if err != nil {
		return nil, err
	}
	if s.AppName != "" {
		doc.AppName = s.AppName
	}
	return doc, nil
}

func (s *Source) read(maxSize int64) ([]byte, bool, error) {
	switch {
	case s.Path == "-":
		return iohelper.ReadLimited(os.Stdin, maxSize)
	case s.Path != "":
		data, truncated, err := iohelper.ReadFileLimited(s.Path, maxSize)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, false, fmt.Errorf("%w: %s", ErrInputNotFound, s.Path)
			}
			return nil, false, fmt.Errorf("reading findings file: %w", err)
		}
		return data, truncated, nil
	case s.Stdin && stdinIsPiped():
		return iohelper.ReadLimited(os.Stdin, maxSize)
	default:
		return nil, false, fmt.Errorf("%w: no findings file given and stdin is not a pipe", ErrInputNotFound)
	}
}

// ParseDocument parses a findings document from JSON data. It accepts
// either the envelope form {"app_name": ..., "findings": [...]} or a
// bare findings array.
func ParseDocument(data []byte) (*finding.Document, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidInput)
	}

	switch trimmed[0] {
	case '[':
		var findings []finding.Finding
		if err := jsonutil.Unmarshal(trimmed, &findings); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return &finding.Document{Findings: findings}, nil
	case '{':
		var doc finding.Document
		if err := jsonutil.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if doc.Findings == nil {
			doc.Findings = []finding.Finding{}
		}
		return &doc, nil
	default:
		return nil, fmt.Errorf("%w: document must be a JSON object or array", ErrInvalidInput)
	}
}

// ParseReader parses a findings document from a stream with the
// default size limit.
func ParseReader(r io.Reader) (*finding.Document, error) {
	data, truncated, err := iohelper.ReadLimitedDefault(r)
	if err != nil {
		return nil, fmt.Errorf("reading findings: %w", err)
	}
	if truncated {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrInputTooLarge, iohelper.DefaultMaxInputSize)
	}
	return ParseDocument(data)
}

// stdinIsPiped reports whether stdin carries piped data rather than a
// terminal.
func stdinIsPiped() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}
