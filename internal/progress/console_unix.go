//go:build !windows

package progress

import "os"

// enableWindowsANSI does nothing outside Windows; other terminals handle ANSI natively.
func enableWindowsANSI(*os.File) {}
