//go:build windows

package diskspace

import "golang.org/x/sys/windows"

func availableBytes(dir string) (int64, bool) {
	path, err := windows.UTF16PtrFromString(dir)
	if err != nil {
		return 0, false
	}
	var freeToCaller, total, free uint64
	if err := windows.GetDiskFreeSpaceEx(path, &freeToCaller, &total, &free); err != nil {
		return 0, false
	}
	return int64(freeToCaller), true
}
