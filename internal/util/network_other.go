//go:build !linux && !darwin

package util

import "syscall"

// detectPlatformNetwork assumes a local filesystem on platforms
// without a detection implementation
func detectPlatformNetwork(path string, stat *syscall.Statfs_t) (*NetworkInfo, error) {
	return &NetworkInfo{}, nil
}
