// Package batch runs one tool operation over several identifiers and
// reports per-identifier outcomes, so a partial failure does not hide the
// successes. calendar_delete_event uses it for lists of event IDs.
package batch
