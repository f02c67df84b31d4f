// Package common provides shared plumbing for the MCP tool packages:
// instrumented handler wrappers that record tool metrics, spans, and
// audit events, and user-ID resolution from tool arguments or the
// authenticated request context.
package common
