// Package logging provides leveled console output for the dialogue pipeline.
// Logs are for real-time monitoring only; the memory event log attached to
// each CharacterMemoryState is the durable record of what a turn changed.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Logger provides structured logging to stdout.
type Logger struct {
	mu        sync.Mutex
	output    io.Writer
	minLevel  Level
	component string
	sessionID string
}

// levelPriority maps levels to numeric priority for filtering.
var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// New creates a new Logger.
func New() *Logger {
	return &Logger{
		output:   os.Stdout,
		minLevel: LevelInfo,
	}
}

// WithComponent returns a new logger with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: component,
		sessionID: l.sessionID,
	}
}

// WithSessionID returns a new logger scoped to one chat session.
func (l *Logger) WithSessionID(sessionID string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: l.component,
		sessionID: sessionID,
	}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.minLevel = level
}

// SetOutput sets the output writer (default: stdout).
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

// formatFields formats a map of fields as key=value pairs.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	var parts []string
	for k, v := range fields {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return " " + strings.Join(parts, " ")
}

// log writes a log entry in traditional format: LEVEL TIMESTAMP [component] message key=value ...
func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	if levelPriority[level] < levelPriority[l.minLevel] {
		return
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	var fieldStr string
	if len(fields) > 0 && fields[0] != nil {
		fieldStr = formatFields(fields[0])
	}
	if l.sessionID != "" {
		fieldStr += " session=" + l.sessionID
	}

	var line string
	if l.component != "" {
		line = fmt.Sprintf("%-5s %s [%s] %s%s\n", level, timestamp, l.component, msg, fieldStr)
	} else {
		line = fmt.Sprintf("%-5s %s %s%s\n", level, timestamp, msg, fieldStr)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.Write([]byte(line))
}

// --- Pipeline event methods ---
// Called by the orchestrator and stores as the turn progresses. They mirror
// the event log entries without duplicating their data.

// TurnStart logs the beginning of a conversational turn.
func (l *Logger) TurnStart(userID, characterID string) {
	l.Info("turn_start", map[string]interface{}{
		"user":      userID,
		"character": characterID,
	})
}

// TurnComplete logs a finished turn with its timing and segment count.
func (l *Logger) TurnComplete(userID, characterID string, segments int, duration time.Duration) {
	l.Info("turn_complete", map[string]interface{}{
		"user":      userID,
		"character": characterID,
		"segments":  segments,
		"duration":  duration.String(),
	})
}

// GeneratorFallback logs a timeout degrading to raw-text passthrough.
func (l *Logger) GeneratorFallback(characterID string, err error) {
	l.Warn("generator_fallback", map[string]interface{}{
		"character": characterID,
		"error":     err.Error(),
	})
}

// MilestoneFired logs a newly achieved milestone.
func (l *Logger) MilestoneFired(userID, characterID, milestone string) {
	l.Info("milestone_fired", map[string]interface{}{
		"user":      userID,
		"character": characterID,
		"milestone": milestone,
	})
}

// SegmentDropped logs a segment omitted because its speaker had no voice.
func (l *Logger) SegmentDropped(speaker string, sequence int) {
	l.Warn("segment_dropped", map[string]interface{}{
		"speaker":  speaker,
		"sequence": sequence,
	})
}

// SynthesisError logs a per-segment synthesis failure (turn still completes).
func (l *Logger) SynthesisError(speaker string, sequence int, err error) {
	l.Warn("synthesis_error", map[string]interface{}{
		"speaker":  speaker,
		"sequence": sequence,
		"error":    err.Error(),
	})
}

// StateSanitized logs a corrupt persisted state being reset to defaults.
func (l *Logger) StateSanitized(userID, characterID, reason string) {
	l.Warn("state_sanitized", map[string]interface{}{
		"user":      userID,
		"character": characterID,
		"reason":    reason,
	})
}

// UnknownItem logs an incrementUsage call against a missing knowledge item.
func (l *Logger) UnknownItem(itemID string) {
	l.Warn("unknown_knowledge_item", map[string]interface{}{
		"item": itemID,
	})
}

// ItemSkipped logs a knowledge item excluded from scoring as corrupt.
func (l *Logger) ItemSkipped(itemID string, err error) {
	l.Warn("knowledge_item_skipped", map[string]interface{}{
		"item":  itemID,
		"error": err.Error(),
	})
}
