// Package logging configures the process-wide standard logger: stdout plus a
// rotating file next to the executable.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Setup configures rotating file logs at <exe dir>/logs/<app>.log and also writes to stdout.
// It returns the rotating writer so callers can close it on exit.
func Setup(app string) *lumberjack.Logger {
	exe, _ := os.Executable()
	return SetupDir(app, filepath.Join(filepath.Dir(exe), "logs"))
}

// SetupDir is Setup with an explicit log directory.
func SetupDir(app, dir string) *lumberjack.Logger {
	_ = os.MkdirAll(dir, 0o755)
	w := &lumberjack.Logger{
		Filename:   filepath.Join(dir, app+".log"),
		MaxSize:    EnvInt("BCU_LOG_MAX_SIZE_MB", 20),
		MaxBackups: EnvInt("BCU_LOG_MAX_BACKUPS", 5),
		MaxAge:     EnvInt("BCU_LOG_MAX_AGE_DAYS", 7),
		Compress:   false,
	}
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.SetOutput(io.MultiWriter(os.Stdout, w))
	return w
}

// EnvInt reads a positive integer from the environment, falling back to def.
func EnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// Debug reports whether verbose tracing is on (BCU_DEBUG=1|true|yes).
func Debug() bool {
	v := strings.ToLower(os.Getenv("BCU_DEBUG"))
	return v == "1" || v == "true" || v == "yes"
}

// Debugf logs only when Debug is on.
func Debugf(format string, args ...any) {
	if Debug() {
		log.Printf(format, args...)
	}
}
