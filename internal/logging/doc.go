// Package logging provides structured logging utilities for calbridge.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Terminal-aware handler selection (text for humans, JSON for machines)
//   - Consistent attribute naming across the codebase
//   - Username anonymization and secret masking
//   - Logger adapter interface for flexibility
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "calendar.create")
//	logger.Info("event created",
//	    logging.EventID(ev.ID),
//	    logging.Calendar(ev.CalendarName))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("connecting to caldav",
//	    logging.UserHash(username))
//
// # Security Considerations
//
// CalDAV usernames are hashed and passwords are never logged; use
// SanitizeSecret when a value must be acknowledged in a log line.
package logging
