// Package calendar_tools provides MCP (Model Context Protocol) tools for the
// calendar bridge.
//
// Read tools list calendars, list events in a range, search by keyword and
// show one event. Write tools create, update and delete events and are only
// registered when the server is not read-only. Every tool goes through the
// access facade, so results and errors read the same as the CLI output:
// failures come back as tool errors whose text starts with "Error: ".
//
// Times are ISO 8601 strings interpreted in the server's timezone unless they
// carry an offset. Recurring events are changed and deleted from the given
// occurrence on.
package calendar_tools
