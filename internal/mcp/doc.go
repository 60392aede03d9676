// Package mcp implements the Model Context Protocol (MCP) server for gochunk.
//
// The MCP server exposes three tools:
//   - chunk_data: Split numeric samples, text tokens or bytes into chunks and store the run
//   - get_run: Fetch a stored run, optionally with its chunks
//   - get_status: Report store statistics and health
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Logs go to stderr so they never mix with protocol messages on stdout.
//
// # Basic Usage
//
// The MCP server is typically started via the serve command:
//
//	gochunk serve --config ~/.gochunk/config.yaml
//
// # Tool: chunk_data
//
//	Request:
//	{
//	  "name": "chunk_data",
//	  "arguments": {
//	    "data": [0, 0, 0, 9, 9, 9, 1, 1],
//	    "strategy": "variance",
//	    "params": {"window": 2, "threshold": 4},
//	    "checkpoint": false
//	  }
//	}
//
//	Response:
//	{
//	  "run_id": "6f1c...",
//	  "strategy": "variance",
//	  "chunks": 3,
//	  "sizes": [3, 3, 2],
//	  "quality": {"score": 0.91, "cohesion": 1, "separation": 0.83, "silhouette": 0.9, ...}
//	}
//
// Without a strategy, numeric runs use the configured one. Text runs default
// to text_entropy and byte runs (kind "bytes", base64 input) to rolling_hash.
//
// # Tool: get_run
//
//	Request:
//	{"name": "get_run", "arguments": {"run_id": "6f1c...", "include_chunks": true}}
//
// # Tool: get_status
//
//	Request:
//	{"name": "get_status", "arguments": {}}
//
// # Error Codes
//
//   - -32602: Invalid parameters
//   - -32603: Internal error
//   - -32001: Run not found
//   - -32002: Unknown strategy or rejected strategy parameters
package mcp
