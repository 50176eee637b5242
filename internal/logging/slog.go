package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// Common log attribute keys for consistent naming across the codebase.
const (
	KeyOperation = "operation"
	KeyStore     = "store"
	KeyCalendar  = "calendar"
	KeyEventID   = "event_id"
	KeyUserHash  = "user_hash"
	KeyDuration  = "duration"
	KeyStatus    = "status"
	KeyError     = "error"
	KeyTool      = "tool"
)

// Status values, kept in step with the instrumentation package.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// WithOperation returns a logger with the operation attribute set.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(slog.String(KeyOperation, operation))
}

// WithTool returns a logger with the tool attribute set.
func WithTool(logger *slog.Logger, tool string) *slog.Logger {
	return logger.With(slog.String(KeyTool, tool))
}

// WithStore returns a logger with the native store attribute set.
func WithStore(logger *slog.Logger, store string) *slog.Logger {
	return logger.With(slog.String(KeyStore, store))
}

// Operation returns a slog attribute for the operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Store returns a slog attribute for the native store name.
func Store(store string) slog.Attr {
	return slog.String(KeyStore, store)
}

// Calendar returns a slog attribute for a calendar title.
func Calendar(name string) slog.Attr {
	return slog.String(KeyCalendar, name)
}

// EventID returns a slog attribute for an event identifier.
func EventID(id string) slog.Attr {
	return slog.String(KeyEventID, id)
}

// Tool returns a slog attribute for the tool name.
func Tool(tool string) slog.Attr {
	return slog.String(KeyTool, tool)
}

// Status returns a slog attribute for the status.
func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// Err returns a slog attribute for an error.
// If err is nil, returns an empty Group attribute that will be omitted from output.
//
// Usage:
//
//	logger.Info("operation", logging.Err(err))  // Safe even if err is nil
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// AnonymizeUser returns a hashed representation of a store username (usually
// an Apple ID email) so log lines can be correlated without exposing it.
func AnonymizeUser(username string) string {
	if username == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(username))
	return "user:" + hex.EncodeToString(hash[:8])
}

// UserHash returns a slog attribute with the anonymized username.
func UserHash(username string) slog.Attr {
	return slog.String(KeyUserHash, AnonymizeUser(username))
}

// SanitizeSecret returns a length indicator for a password or token without
// exposing any of its content.
func SanitizeSecret(secret string) string {
	if secret == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[secret:%d chars]", len(secret))
}
