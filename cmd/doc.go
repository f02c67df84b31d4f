// Package cmd implements the command-line interface for lever-mcp.
//
// This package provides the following commands:
//   - serve: Start the MCP server (default command)
//   - cleanup: Remove stale persisted credentials and client registrations
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for all MCP tools
package cmd
