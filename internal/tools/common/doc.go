// Package common holds what every calbridge MCP tool shares: the
// instrumented handler wrapper and small argument helpers.
package common
