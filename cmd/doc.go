// Package cmd implements the command-line interface for calbridge.
//
// This package provides the following commands:
//   - authorize: Ask for calendar access and remember the answer
//   - calendars, today, week, search, show: Read events
//   - add, edit, rm: Change events
//   - serve: Start the MCP server to provide tools for AI assistants
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for all MCP tools
//
// Every command that touches the calendar opens one store per process and
// runs the authorization handshake before doing anything else.
package cmd
