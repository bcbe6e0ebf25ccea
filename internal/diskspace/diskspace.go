// Package diskspace checks free space on the filesystem that will hold a
// temporary package before it is written.
package diskspace

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/docker/go-units"
)

// DefaultSafetyMargin leaves 10% headroom over the estimated package size.
const DefaultSafetyMargin = 1.1

// InsufficientSpaceError indicates that there is not enough disk space available.
type InsufficientSpaceError struct {
	Path           string
	RequiredBytes  int64
	AvailableBytes int64
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("insufficient disk space in %s: need %s, have %s available",
		e.Path, units.BytesSize(float64(e.RequiredBytes)), units.BytesSize(float64(e.AvailableBytes)))
}

// CheckAvailableSpace returns an *InsufficientSpaceError when the filesystem
// holding dir has less than requiredBytes*safetyMargin available. When the
// free space cannot be determined (network or virtual filesystems) the
// check passes and the write is left to fail on its own.
func CheckAvailableSpace(dir string, requiredBytes int64, safetyMargin float64) error {
	available, ok := availableBytes(filepath.Clean(dir))
	if !ok {
		return nil
	}

	required := int64(float64(requiredBytes) * safetyMargin)
	if available < required {
		return &InsufficientSpaceError{
			Path:           dir,
			RequiredBytes:  required,
			AvailableBytes: available,
		}
	}
	return nil
}

// GetAvailableSpace returns the available space in bytes for the filesystem
// containing dir. Returns 0 if unable to determine.
func GetAvailableSpace(dir string) int64 {
	available, _ := availableBytes(filepath.Clean(dir))
	return available
}

// IsInsufficientSpaceError checks if an error is an InsufficientSpaceError
func IsInsufficientSpaceError(err error) bool {
	var target *InsufficientSpaceError
	return errors.As(err, &target)
}
