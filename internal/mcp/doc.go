// Package mcp exposes the won-quotes knowledge base and pricing oracle as
// MCP tools over stdio, using github.com/modelcontextprotocol/go-sdk/mcp.
//
// Knowledge-base tools: quotes_ingest, quotes_search, quotes_history and
// quotes_stats. Pricing tools: win_probability, price_recommend,
// price_batch and pricing_health.
package mcp
