//go:build linux

package util

import (
	"bufio"
	"os"
	"strings"
	"syscall"
)

// Network filesystem magic numbers from the kernel VFS headers
var networkFsMagic = map[uint32]string{
	0x6969:     "nfs",
	0xff534d42: "cifs",
	0xfe534d42: "smb2",
	0x517b:     "smb",
	0x01021994: "smbfs",
	0x564c:     "ncp",
}

// detectPlatformNetwork detects network filesystems on Linux via the
// statfs magic number, confirmed against /proc/mounts for the mount
// point and fuse-backed remotes
func detectPlatformNetwork(path string, stat *syscall.Statfs_t) (*NetworkInfo, error) {
	info := &NetworkInfo{}

	if proto, ok := networkFsMagic[uint32(stat.Type)]; ok {
		info.IsNetwork = true
		info.Protocol = proto
	}

	mounts, err := parseProcMounts()
	if err != nil {
		// /proc/mounts unavailable, the magic number check stands alone
		return info, nil
	}

	best := ""
	for mountPoint, fsType := range mounts {
		if !strings.HasPrefix(path, mountPoint) || len(mountPoint) <= len(best) {
			continue
		}
		best = mountPoint

		fsType = strings.ToLower(fsType)
		switch {
		case strings.Contains(fsType, "nfs"),
			strings.Contains(fsType, "cifs"),
			strings.Contains(fsType, "smb"),
			strings.Contains(fsType, "fuse.sshfs"),
			strings.Contains(fsType, "fuse.rclone"):
			info.IsNetwork = true
			info.Protocol = fsType
			info.MountPath = mountPoint
		}
	}

	return info, nil
}

// parseProcMounts maps mount points to filesystem types
func parseProcMounts() (map[string]string, error) {
	file, err := os.Open("/proc/mounts")
	if err != nil {
		return nil, err
	}
	defer file.Close()

	mounts := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		// device mountpoint fstype options dump pass
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		mounts[fields[1]] = fields[2]
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return mounts, nil
}
