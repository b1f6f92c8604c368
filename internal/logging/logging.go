// Package logging routes the standard logger to stdout and an append-only log file
// and formats request traces exchanged with inference servers.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mwiater/prefbench/internal/util"
)

// maxPayloadRunes bounds traced payloads; token arrays and logit vectors get long.
const maxPayloadRunes = 2000

var (
	mu      sync.Mutex
	logFile *os.File
	debug   bool
)

// Init sends log output to stdout and, when logPath is set, to logPath as well.
func Init(logPath string) error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	writers := []io.Writer{os.Stdout}

	if logPath != "" {
		if dir := filepath.Dir(logPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		logFile = file
		writers = append(writers, logFile)
	}

	log.SetOutput(io.MultiWriter(writers...))
	log.SetFlags(log.LstdFlags)
	return nil
}

// Close restores stderr output and closes the log file.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	log.SetOutput(os.Stderr)
	err := logFile.Close()
	logFile = nil
	return err
}

// SetDebug toggles request tracing.
func SetDebug(enabled bool) {
	mu.Lock()
	debug = enabled
	mu.Unlock()
}

// DebugEnabled reports whether request tracing is on.
func DebugEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return debug
}

func LogEvent(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Println(msg)
}

func LogMetricsEvent(format string, args ...any) {
	log.Println("[METRICS] " + fmt.Sprintf(format, args...))
}

// LogRequest traces one leg of an inference server exchange. It is a no-op unless debug is on.
func LogRequest(direction, host, model, op string, payload any) {
	if !DebugEnabled() {
		return
	}
	log.Println(buildRequestMessage(direction, host, model, op, payload))
}

func buildRequestMessage(direction, host, model, op string, payload any) string {
	dir := strings.ToUpper(strings.TrimSpace(direction))
	hostValue := strings.TrimSpace(host)
	if hostValue == "" {
		hostValue = "unknown"
	}
	modelValue := strings.TrimSpace(model)
	if modelValue == "" {
		modelValue = "unknown"
	}
	parts := []string{fmt.Sprintf("[%s]", dir)}
	parts = append(parts, fmt.Sprintf("host=%s", hostValue))
	parts = append(parts, fmt.Sprintf("model=%s", modelValue))
	if op = strings.TrimSpace(op); op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", op))
	}
	parts = append(parts, fmt.Sprintf("payload=%s", util.TruncateRunes(formatPayload(payload), maxPayloadRunes)))
	return strings.Join(parts, " ")
}

func formatPayload(payload any) string {
	switch v := payload.(type) {
	case nil:
		return "null"
	case string:
		if strings.TrimSpace(v) == "" {
			return `""`
		}
		return v
	case []byte:
		if len(v) == 0 {
			return "[]"
		}
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
