package mcp

import (
	"slices"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/gochunk/internal/registry"
)

// chunkDataTool returns the tool definition for chunk_data
func chunkDataTool() mcp.Tool {
	names := append(registry.NumericNames(), registry.TextNames()...)
	names = append(names, registry.BytesNames()...)
	slices.Sort(names)
	names = slices.Compact(names)

	return mcp.Tool{
		Name:        "chunk_data",
		Description: "Split a sequence into variable-length chunks with a boundary strategy and store the run",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"kind": map[string]interface{}{
					"type":        "string",
					"description": "Element kind: numeric samples, text tokens, or base64 bytes",
					"enum":        []string{"numeric", "text", "bytes"},
					"default":     "numeric",
				},
				"data": map[string]interface{}{
					"type":        "array",
					"description": "Numeric samples (kind=numeric)",
					"items":       map[string]interface{}{"type": "number"},
				},
				"tokens": map[string]interface{}{
					"type":        "array",
					"description": "Text tokens (kind=text)",
					"items":       map[string]interface{}{"type": "string"},
				},
				"base64": map[string]interface{}{
					"type":        "string",
					"description": "Base64-encoded bytes (kind=bytes)",
				},
				"strategy": map[string]interface{}{
					"type":        "string",
					"description": "Strategy name; numeric runs default to the configured strategy",
					"enum":        names,
				},
				"params": map[string]interface{}{
					"type":                 "object",
					"description":          "Strategy parameters overriding the defaults (e.g. window, threshold)",
					"additionalProperties": map[string]interface{}{"type": "number"},
				},
				"children": map[string]interface{}{
					"type":        "array",
					"description": "Sub-strategies of a multi strategy",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"name":   map[string]interface{}{"type": "string"},
							"params": map[string]interface{}{"type": "object"},
						},
						"required": []string{"name"},
					},
				},
				"combine": map[string]interface{}{
					"type":        "string",
					"description": "How a multi strategy merges its children",
					"enum":        []string{"any", "all"},
					"default":     "any",
				},
				"checkpoint": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, run a numeric input through the checkpointed chunker",
					"default":     false,
				},
			},
		},
	}
}

// getRunTool returns the tool definition for get_run
func getRunTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_run",
		Description: "Fetch a stored chunking run and optionally its chunks",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"run_id": map[string]interface{}{
					"type":        "string",
					"description": "Run identifier returned by chunk_data",
				},
				"include_chunks": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, include every chunk with its elements",
					"default":     false,
				},
			},
			Required: []string{"run_id"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report run and chunk statistics of the store",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
