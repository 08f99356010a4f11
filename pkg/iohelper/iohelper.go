// Package iohelper provides helper functions for I/O operations,
// particularly for safely reading findings documents with size limits.
package iohelper

import (
	"io"
	"os"
)

// Standard input size limits for different use cases
const (
	// SmallMaxInputSize is for policies, configs, baselines (256KB)
	SmallMaxInputSize int64 = 256 * 1024

	// DefaultMaxInputSize is for findings documents (10MB)
	DefaultMaxInputSize int64 = 10 * 1024 * 1024

	// LargeMaxInputSize is for merged multi-scanner exports (100MB)
	LargeMaxInputSize int64 = 100 * 1024 * 1024
)

// ReadLimited reads from r with a size limit. The boolean reports
// whether r held more data than the limit allowed; the returned bytes
// are capped at maxSize either way.
// If r is nil, returns an empty slice and no error.
// This prevents memory exhaustion from runaway scanner exports.
//
// Usage:
//
//	data, truncated, err := iohelper.ReadLimited(f, iohelper.DefaultMaxInputSize)
func ReadLimited(r io.Reader, maxSize int64) ([]byte, bool, error) {
	if r == nil {
		return []byte{}, false, nil
	}
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(data)) > maxSize {
		return data[:maxSize], true, nil
	}
	return data, false, nil
}

// ReadLimitedDefault reads from r with the default 10MB limit.
// Convenience wrapper around ReadLimited with DefaultMaxInputSize.
func ReadLimitedDefault(r io.Reader) ([]byte, bool, error) {
	return ReadLimited(r, DefaultMaxInputSize)
}

// ReadFileLimited reads a file with a size limit, using the same
// truncation reporting as ReadLimited.
func ReadFileLimited(path string, maxSize int64) ([]byte, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false, err
	}
	defer f.Close()
	return ReadLimited(f, maxSize)
}

// DrainAndClose reads any remaining data from r and closes it if it's
// a ReadCloser, so the underlying HTTP connection can be reused.
// Always returns nil error to allow use in defer.
func DrainAndClose(r io.Reader) error {
	if r == nil {
		return nil
	}

	// Drain is capped at 64KB: notification endpoints return tiny
	// bodies, anything larger is not worth keeping the connection for.
	_, _ = io.Copy(io.Discard, io.LimitReader(r, 64*1024))

	if rc, ok := r.(io.ReadCloser); ok {
		rc.Close()
	}
	return nil
}
