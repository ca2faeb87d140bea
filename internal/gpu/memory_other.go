//go:build !linux

package gpu

// systemMemory is unknown off Linux.
func systemMemory() (total, available int64) {
	return 0, 0
}
