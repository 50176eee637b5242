// Package resources provides the read-only MCP resources of calbridge:
// calendars://list (calendar names) and calendars://today (today's events as
// JSON).
package resources
