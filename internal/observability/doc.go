// Package observability provides structured logging, per-call request ids
// and an optional JSON Lines journal of MCP tool calls. Call statistics and
// alerts are derived from the journal on demand, and alerts can be posted to
// a Slack webhook.
package observability
