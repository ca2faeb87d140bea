//go:build linux

package gpu

import "golang.org/x/sys/unix"

// systemMemory returns total and free RAM in bytes.
func systemMemory() (total, available int64) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, 0
	}
	unit := int64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	return int64(info.Totalram) * unit, int64(info.Freeram) * unit
}
