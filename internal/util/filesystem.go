package util

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"golang.org/x/sys/unix"
)

// IsSameFilesystem reports whether two paths live on the same device
// by comparing st_dev
func IsSameFilesystem(a, b string) (bool, error) {
	statA, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	statB, err := os.Stat(b)
	if err != nil {
		return false, err
	}

	sysA, okA := statA.Sys().(*syscall.Stat_t)
	sysB, okB := statB.Sys().(*syscall.Stat_t)
	if !okA || !okB {
		// No device IDs available, assume different so callers warn
		return false, nil
	}

	return sysA.Dev == sysB.Dev, nil
}

// DirWritable checks that a directory accepts new files, creating it
// when missing. Verified with a probe file because access(2) can lie
// on some network mounts.
func DirWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", dir, err)
	}
	probe := filepath.Join(dir, ".mlib-write-probe")
	f, err := os.Create(probe)
	if err != nil {
		return fmt.Errorf("cannot write to %s: %w", dir, err)
	}
	f.Close()
	return os.Remove(probe)
}

// FileDeletable checks that path exists and that its parent directory
// accepts changes, which is what unlink actually requires
func FileDeletable(path string) error {
	if _, err := os.Lstat(path); err != nil {
		return err
	}
	if err := unix.Access(filepath.Dir(path), unix.W_OK); err != nil {
		return fmt.Errorf("parent of %s not writable: %w", path, err)
	}
	return nil
}

// DiskFree returns the bytes available to unprivileged users on the
// filesystem containing path
func DiskFree(path string) (uint64, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return 0, err
	}
	return st.Bavail * uint64(st.Bsize), nil
}
