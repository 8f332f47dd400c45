// Package logging applies the configured log level to the process logs.
//
// Application code logs through the standard log package with an
// "INFO: ", "WARN: " or "ERROR: " prefix; the echo server logs through
// its own gommon logger.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"strings"

	gommonlog "github.com/labstack/gommon/log"
)

// Level is a log verbosity threshold.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel parses debug, info, warn or error. Empty means info.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Echo maps the level onto the gommon logger used by echo.
func (l Level) Echo() gommonlog.Lvl {
	switch l {
	case LevelDebug:
		return gommonlog.DEBUG
	case LevelWarn:
		return gommonlog.WARN
	case LevelError:
		return gommonlog.ERROR
	}
	return gommonlog.INFO
}

var prefixes = []struct {
	tag   []byte
	level Level
}{
	{[]byte("DEBUG: "), LevelDebug},
	{[]byte("INFO: "), LevelInfo},
	{[]byte("WARN: "), LevelWarn},
	{[]byte("ERROR: "), LevelError},
}

// filterWriter drops log entries tagged below min. Untagged entries pass.
type filterWriter struct {
	w   io.Writer
	min Level
}

// NewFilter wraps w so that entries below min are discarded. The log
// package issues one Write per entry.
func NewFilter(w io.Writer, min Level) io.Writer {
	return &filterWriter{w: w, min: min}
}

func (f *filterWriter) Write(p []byte) (int, error) {
	if level, ok := entryLevel(p); ok && level < f.min {
		return len(p), nil
	}
	return f.w.Write(p)
}

// entryLevel returns the level of the first tag in the entry.
func entryLevel(p []byte) (Level, bool) {
	at, level := -1, LevelInfo
	for _, pre := range prefixes {
		if i := bytes.Index(p, pre.tag); i >= 0 && (at < 0 || i < at) {
			at, level = i, pre.level
		}
	}
	return level, at >= 0
}

// Setup applies level to the standard logger.
func Setup(w io.Writer, level Level) {
	log.SetOutput(NewFilter(w, level))
}
