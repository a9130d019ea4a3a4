//go:build darwin

package util

import (
	"strings"
	"syscall"
)

// detectPlatformNetwork detects network filesystems on macOS from the
// filesystem type name statfs reports
func detectPlatformNetwork(path string, stat *syscall.Statfs_t) (*NetworkInfo, error) {
	info := &NetworkInfo{}

	fsType := strings.ToLower(int8ArrayToString(stat.Fstypename[:]))
	for _, netType := range []string{"nfs", "smbfs", "afpfs", "cifs", "webdav", "osxfuse"} {
		if strings.Contains(fsType, netType) {
			info.IsNetwork = true
			info.Protocol = fsType
			info.MountPath = int8ArrayToString(stat.Mntonname[:])
			break
		}
	}

	return info, nil
}

// int8ArrayToString converts a null-terminated int8 array to a string
func int8ArrayToString(arr []int8) string {
	n := 0
	for n < len(arr) && arr[n] != 0 {
		n++
	}
	b := make([]byte, n)
	for i := 0; i < n; i++ {
		b[i] = byte(arr[i])
	}
	return string(b)
}
