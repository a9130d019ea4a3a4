package util

import (
	"os"
	"testing"
)

func TestDetectNetworkFilesystem(t *testing.T) {
	for _, path := range []string{os.TempDir(), "/"} {
		info, err := DetectNetworkFilesystem(path)
		if err != nil {
			t.Fatalf("DetectNetworkFilesystem(%s) failed: %v", path, err)
		}
		// Cannot assert locality, tests may legitimately run on a NAS
		if info.IsNetwork {
			t.Logf("WARNING: %s is on network storage (%s at %s)", path, info.Protocol, info.MountPath)
		}
	}
}

func TestDetectNetworkFilesystemMissingPath(t *testing.T) {
	if _, err := DetectNetworkFilesystem("/this/path/does/not/exist/hopefully"); err == nil {
		t.Error("Expected error for non-existent path")
	}
}

func TestIsNetworkPath(t *testing.T) {
	// Missing paths are reported as local rather than erroring
	if IsNetworkPath("/this/path/does/not/exist/hopefully") {
		t.Error("Missing path should not be treated as a network path")
	}
}

func TestRetryConfigForPaths(t *testing.T) {
	// Local temp paths resolve to the default profile
	cfg := RetryConfigForPaths(os.TempDir(), "")
	if cfg.InitialWait != DefaultRetryConfig().InitialWait {
		t.Errorf("Expected default retry profile for local paths, got %+v", cfg)
	}

	// Empty path lists fall back to the default profile
	if got := RetryConfigForPaths(); got.MaxAttempts != DefaultRetryConfig().MaxAttempts {
		t.Errorf("Expected default retry profile for no paths, got %+v", got)
	}
}
