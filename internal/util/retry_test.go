package util

import (
	"errors"
	"os"
	"syscall"
	"testing"
	"time"
)

func TestIsRetryableError(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"EAGAIN", syscall.EAGAIN, true},
		{"ETIMEDOUT", syscall.ETIMEDOUT, true},
		{"ECONNRESET", syscall.ECONNRESET, true},
		{"EIO", syscall.EIO, true},
		{"ENOENT not retryable", syscall.ENOENT, false},
		{"EPERM not retryable", syscall.EPERM, false},
		{"timeout in message", errors.New("connection timeout"), true},
		{"reset in message", errors.New("connection reset by peer"), true},
		{"broken pipe in message", errors.New("write: broken pipe"), true},
		{"generic error not retryable", errors.New("invalid argument"), false},
		{"PathError with ETIMEDOUT", &os.PathError{Op: "open", Path: "/x", Err: syscall.ETIMEDOUT}, true},
		{"PathError with ENOENT", &os.PathError{Op: "open", Path: "/x", Err: syscall.ENOENT}, false},
		{"LinkError with EIO", &os.LinkError{Op: "rename", Old: "/a", New: "/b", Err: syscall.EIO}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRetryableError(tc.err); got != tc.expected {
				t.Errorf("IsRetryableError(%v) = %v, expected %v", tc.err, got, tc.expected)
			}
		})
	}
}

func TestRetryWithBackoff_ImmediateSuccess(t *testing.T) {
	attempts := 0
	cfg := &RetryConfig{MaxAttempts: 3, InitialWait: 10 * time.Millisecond, MaxWait: 100 * time.Millisecond}

	result, err := RetryWithBackoff(cfg, func() (int, error) {
		attempts++
		return 42, nil
	}, "test operation")

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if result != 42 {
		t.Errorf("Expected result 42, got: %d", result)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got: %d", attempts)
	}
}

func TestRetryWithBackoff_SuccessAfterRetries(t *testing.T) {
	attempts := 0
	cfg := &RetryConfig{MaxAttempts: 3, InitialWait: 10 * time.Millisecond, MaxWait: 100 * time.Millisecond}

	result, err := RetryWithBackoff(cfg, func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", syscall.ETIMEDOUT
		}
		return "success", nil
	}, "test operation")

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if result != "success" {
		t.Errorf("Expected result 'success', got: %s", result)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got: %d", attempts)
	}
}

func TestRetryWithBackoff_ExhaustsAttempts(t *testing.T) {
	attempts := 0
	cfg := &RetryConfig{MaxAttempts: 3, InitialWait: 10 * time.Millisecond, MaxWait: 100 * time.Millisecond}

	_, err := RetryWithBackoff(cfg, func() (int, error) {
		attempts++
		return 0, syscall.ETIMEDOUT
	}, "test operation")

	if err == nil {
		t.Error("Expected error after max retries, got nil")
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got: %d", attempts)
	}
}

func TestRetryWithBackoff_NonRetryableFailsFast(t *testing.T) {
	attempts := 0
	cfg := &RetryConfig{MaxAttempts: 3, InitialWait: 10 * time.Millisecond, MaxWait: 100 * time.Millisecond}

	_, err := RetryWithBackoff(cfg, func() (int, error) {
		attempts++
		return 0, syscall.ENOENT
	}, "test operation")

	if err == nil {
		t.Error("Expected error, got nil")
	}
	if attempts != 1 {
		t.Errorf("Expected a single attempt for a non-retryable error, got: %d", attempts)
	}
}

func TestRetry_NoReturnValue(t *testing.T) {
	attempts := 0
	cfg := &RetryConfig{MaxAttempts: 3, InitialWait: 10 * time.Millisecond, MaxWait: 100 * time.Millisecond}

	err := Retry(cfg, func() error {
		attempts++
		if attempts < 2 {
			return syscall.ETIMEDOUT
		}
		return nil
	}, "test operation")

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got: %d", attempts)
	}
}

func TestRetryConfigProfiles(t *testing.T) {
	def := DefaultRetryConfig()
	if def.MaxAttempts != 3 || def.InitialWait != 100*time.Millisecond || def.MaxWait != 5*time.Second {
		t.Errorf("unexpected default profile: %+v", def)
	}

	nas := NASRetryConfig()
	if nas.MaxAttempts != 3 || nas.InitialWait != 200*time.Millisecond || nas.MaxWait != 10*time.Second {
		t.Errorf("unexpected NAS profile: %+v", nas)
	}

	if nas.InitialWait <= def.InitialWait {
		t.Error("NAS profile should wait longer than the default")
	}
}
