package util

import (
	"fmt"
	"path/filepath"
	"syscall"
)

// NetworkInfo describes a filesystem's network characteristics
type NetworkInfo struct {
	IsNetwork bool   // Whether the filesystem is network-mounted
	Protocol  string // Protocol (nfs, cifs, smb, ...) or empty if local
	MountPath string // Mount point, when known
}

// DetectNetworkFilesystem checks whether a path lives on a network
// mount. Detection is platform-specific; unsupported platforms report
// a local filesystem.
func DetectNetworkFilesystem(path string) (*NetworkInfo, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(absPath, &stat); err != nil {
		return nil, fmt.Errorf("failed to stat filesystem: %w", err)
	}

	return detectPlatformNetwork(absPath, &stat)
}

// IsNetworkPath reports whether a path is on a network filesystem
func IsNetworkPath(path string) bool {
	info, err := DetectNetworkFilesystem(path)
	if err != nil {
		return false
	}
	return info.IsNetwork
}

// RetryConfigForPaths picks retry settings based on where the paths
// live: network mounts get the NAS profile, local disks the default
func RetryConfigForPaths(paths ...string) *RetryConfig {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if info, err := DetectNetworkFilesystem(p); err == nil && info.IsNetwork {
			DebugLog("Network filesystem detected at %s (%s), using NAS retry profile",
				info.MountPath, info.Protocol)
			return NASRetryConfig()
		}
	}
	return DefaultRetryConfig()
}
