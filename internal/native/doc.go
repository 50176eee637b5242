// Package native groups the calendar.NativeStore implementations calbridge
// ships with and the helpers they share.
//
//   - memory: an in-process store used by tests and the "memory" store setting
//   - dav: a CalDAV store (iCloud by default) with a consent handshake
//   - consent: the sqlite ledger that records the user's access decision
//   - recur: RRULE conversion and occurrence expansion
//   - dispatch: the callback queue serviced by calendar.Authorize
//
// Instrument wraps any of them with store metrics and spans.
package native
