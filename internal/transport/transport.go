// Package transport chooses how a packaged archive is sent to Preservica.
package transport

import (
	"github.com/docker/go-units"
)

// Transport is an upload method.
type Transport int

const (
	// Direct sends the archive in a single request to the Preservica upload gateway.
	Direct Transport = iota
	// BulkObjectStorage sends the archive as a multipart upload to the bulk bucket.
	BulkObjectStorage
)

func (t Transport) String() string {
	switch t {
	case Direct:
		return "Direct"
	case BulkObjectStorage:
		return "BulkObjectStorage"
	default:
		return "Unknown"
	}
}

// Selector picks a transport by archive size.
type Selector struct {
	ThresholdMB float64
}

// NewSelector returns a selector with the given threshold in MB.
func NewSelector(thresholdMB float64) Selector {
	return Selector{ThresholdMB: thresholdMB}
}

// Select returns BulkObjectStorage when the archive is at least ThresholdMB
// megabytes (binary, 1 MB = 1 MiB), and Direct otherwise.
func (s Selector) Select(sizeBytes int64) Transport {
	if SizeMB(sizeBytes) >= s.ThresholdMB {
		return BulkObjectStorage
	}
	return Direct
}

// SizeMB converts a byte count to megabytes.
func SizeMB(sizeBytes int64) float64 {
	return float64(sizeBytes) / float64(units.MiB)
}
