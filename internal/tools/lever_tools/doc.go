// Package lever_tools provides MCP (Model Context Protocol) tools for the
// Lever recruiting API.
//
// Candidate tools:
//   - lever_get_candidates: List candidates, optionally filtered by stage
//   - lever_get_candidate: Get a single candidate by ID
//   - lever_add_note: Add a note to a candidate's profile
//
// Requisition and posting tools:
//   - lever_create_requisition: Create a job requisition
//   - lever_list_postings: List job postings, optionally filtered by state
//
// All tools use the shared Lever client from the server context, which
// authenticates with the LEVER_API_KEY configured at startup. When no key
// is configured the tools return an error result explaining how to enable
// them rather than failing the MCP call.
package lever_tools
