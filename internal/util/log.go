package util

import (
	"fmt"
	"os"
	"time"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	minLevel  = LevelInfo
	useColors = os.Getenv("NO_COLOR") == "" && IsTerminal(os.Stderr.Fd())
)

// SetLogLevel sets the minimum log level to display
func SetLogLevel(level LogLevel) {
	minLevel = level
}

// SetVerbose enables verbose (debug) logging
func SetVerbose(verbose bool) {
	if verbose {
		minLevel = LevelDebug
	}
}

// SetQuiet enables quiet mode (errors only)
func SetQuiet(quiet bool) {
	if quiet {
		minLevel = LevelError
	}
}

// IsVerbose reports whether debug logging is enabled
func IsVerbose() bool {
	return minLevel <= LevelDebug
}

// IsQuiet reports whether only errors are logged
func IsQuiet() bool {
	return minLevel >= LevelError
}

// SetColors enables or disables colored output
func SetColors(enabled bool) {
	useColors = enabled
}

func colorize(color, text string) string {
	if !useColors {
		return text
	}
	return color + text + "\033[0m"
}

func stamp() string {
	return time.Now().Format("15:04:05")
}

// DebugLog logs debug messages
func DebugLog(format string, args ...interface{}) {
	if minLevel <= LevelDebug {
		fmt.Fprintf(os.Stderr, "%s [DEBUG] %s\n", colorize("\033[90m", stamp()), fmt.Sprintf(format, args...))
	}
}

// InfoLog logs informational messages
func InfoLog(format string, args ...interface{}) {
	if minLevel <= LevelInfo {
		fmt.Fprintf(os.Stderr, "%s [INFO]  %s\n", colorize("\033[36m", stamp()), fmt.Sprintf(format, args...))
	}
}

// WarnLog logs warning messages
func WarnLog(format string, args ...interface{}) {
	if minLevel <= LevelWarn {
		fmt.Fprintf(os.Stderr, "%s [WARN]  %s\n", colorize("\033[33m", stamp()), fmt.Sprintf(format, args...))
	}
}

// ErrorLog logs error messages
func ErrorLog(format string, args ...interface{}) {
	if minLevel <= LevelError {
		fmt.Fprintf(os.Stderr, "%s [ERROR] %s\n", colorize("\033[31m", stamp()), fmt.Sprintf(format, args...))
	}
}

// SuccessLog logs completion messages, suppressed in quiet mode
func SuccessLog(format string, args ...interface{}) {
	if minLevel <= LevelInfo {
		fmt.Fprintf(os.Stderr, "%s [OK]    %s\n", colorize("\033[32m", stamp()), fmt.Sprintf(format, args...))
	}
}
