package mcp

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/gochunk/internal/pipeline"
	"github.com/dshills/gochunk/internal/registry"
	"github.com/dshills/gochunk/internal/storage"
	"github.com/dshills/gochunk/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams   = -32602 // Invalid method parameters
	ErrorCodeInternalError   = -32603 // Internal JSON-RPC error
	ErrorCodeRunNotFound     = -32001 // No run with the given id
	ErrorCodeInvalidStrategy = -32002 // Unknown strategy or rejected parameters
)

// handleChunkData handles the chunk_data tool invocation
func (s *Server) handleChunkData(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Extract and validate parameters
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	params, err := getParams(args, "params")
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid params", map[string]interface{}{
			"param":  "params",
			"reason": err.Error(),
		})
	}
	name := getStringDefault(args, "strategy", "")

	var res *pipeline.Result
	switch kind := getStringDefault(args, "kind", storage.KindNumeric); kind {
	case storage.KindNumeric:
		data, err := getFloatSlice(args, "data")
		if err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "data parameter is required", map[string]interface{}{
				"param":  "data",
				"reason": err.Error(),
			})
		}
		spec, err := s.numericSpec(args, name, params)
		if err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid children", map[string]interface{}{
				"param":  "children",
				"reason": err.Error(),
			})
		}

		req := pipeline.Request{Spec: spec, Data: data}
		if getBoolDefault(args, "checkpoint", false) {
			req.Checkpoint = &pipeline.CheckpointOptions{
				Dir:         s.cfg.CheckpointDir,
				MaxMemUsage: int64(s.cfg.MaxMemUsage),
				Freq:        s.cfg.CheckpointFreq,
				HistorySize: s.cfg.HistorySize,
			}
		}
		res, err = s.pipeline.Run(ctx, req)
		if err != nil {
			return nil, s.runError(err)
		}

	case storage.KindText:
		tokens, err := getStringSlice(args, "tokens")
		if err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "tokens parameter is required", map[string]interface{}{
				"param":  "tokens",
				"reason": err.Error(),
			})
		}
		if name == "" {
			name = "text_entropy"
		}
		res, err = s.pipeline.RunText(ctx, pipeline.TextRequest{Strategy: name, Params: params, Tokens: tokens})
		if err != nil {
			return nil, s.runError(err)
		}

	case storage.KindBytes:
		encoded, ok := args["base64"].(string)
		if !ok {
			return nil, newMCPError(ErrorCodeInvalidParams, "base64 parameter is required", map[string]interface{}{
				"param":  "base64",
				"reason": "missing",
			})
		}
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid base64", map[string]interface{}{
				"param":  "base64",
				"reason": err.Error(),
			})
		}
		if name == "" {
			name = "rolling_hash"
		}
		res, err = s.pipeline.RunBytes(ctx, pipeline.BytesRequest{Strategy: name, Params: params, Data: data})
		if err != nil {
			return nil, s.runError(err)
		}

	default:
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid kind", map[string]interface{}{
			"param":   "kind",
			"value":   kind,
			"allowed": []string{storage.KindNumeric, storage.KindText, storage.KindBytes},
		})
	}

	// Format response
	response := map[string]interface{}{
		"run_id":      res.Run.RunID,
		"strategy":    res.Run.Strategy,
		"params":      res.Run.Params,
		"kind":        res.Run.ElementKind,
		"elements":    res.Run.InputCount,
		"chunks":      res.Run.ChunkCount,
		"sizes":       res.Sizes,
		"checkpoints": res.Checkpoints,
		"duration_ms": res.Duration.Milliseconds(),
	}
	if res.Report != nil {
		response["quality"] = map[string]interface{}{
			"score":      res.Report.Quality,
			"cohesion":   res.Report.Cohesion,
			"separation": res.Report.Separation,
			"silhouette": res.Report.Silhouette,
			"sizes": map[string]interface{}{
				"mean":     res.Report.Sizes.Mean,
				"variance": res.Report.Sizes.Variance,
				"min":      res.Report.Sizes.Min,
				"max":      res.Report.Sizes.Max,
				"entropy":  res.Report.Sizes.Entropy,
			},
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetRun handles the get_run tool invocation
func (s *Server) handleGetRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	runID, ok := args["run_id"].(string)
	if !ok || runID == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "run_id parameter is required", map[string]interface{}{
			"param":  "run_id",
			"reason": "missing or empty",
		})
	}

	run, err := s.storage.GetRun(ctx, runID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newMCPError(ErrorCodeRunNotFound, "run not found", map[string]interface{}{
			"run_id": runID,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get run", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := runInfo(run)

	if getBoolDefault(args, "include_chunks", false) {
		records, err := s.storage.ListChunksByRun(ctx, run.ID)
		if err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "failed to list chunks", map[string]interface{}{
				"error": err.Error(),
			})
		}

		chunks := make([]map[string]interface{}, 0, len(records))
		for _, rec := range records {
			c := map[string]interface{}{
				"index":        rec.ChunkIndex,
				"offset":       rec.Offset,
				"length":       rec.Length,
				"content_hash": hex.EncodeToString(rec.ContentHash[:]),
				"elements":     json.RawMessage(rec.Elements),
			}
			if rec.Quality != nil {
				c["quality"] = *rec.Quality
			}
			chunks = append(chunks, c)
		}
		response["chunk_list"] = chunks
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.storage.GetStatus(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Format response
	response := map[string]interface{}{
		"statistics": map[string]interface{}{
			"runs_count":      status.RunsCount,
			"completed_runs":  status.CompletedRuns,
			"failed_runs":     status.FailedRuns,
			"chunks_count":    status.ChunksCount,
			"elements_stored": status.ElementsStored,
			"db_size_mb":      fmt.Sprintf("%.2f", status.DBSizeMB),
		},
		"schema_version": status.SchemaVersion,
		"health": map[string]interface{}{
			"database_accessible": status.Health.DatabaseAccessible,
			"migrations_current":  status.Health.MigrationsCurrent,
		},
	}
	if status.LastRun != nil {
		response["last_run"] = runInfo(status.LastRun)
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// numericSpec builds the strategy spec of a numeric request. Without a
// strategy name the configured strategy is used with params layered on top.
func (s *Server) numericSpec(args map[string]interface{}, name string, params map[string]float64) (registry.Spec, error) {
	if name == "" {
		return s.cfg.SpecFor(name, params), nil
	}

	spec := s.cfg.SpecFor(name, params)
	spec.Combine = getStringDefault(args, "combine", "")

	raw, ok := args["children"].([]interface{})
	if !ok {
		return spec, nil
	}
	for i, item := range raw {
		child, ok := item.(map[string]interface{})
		if !ok {
			return registry.Spec{}, fmt.Errorf("child %d is not an object", i)
		}
		childName, ok := child["name"].(string)
		if !ok || childName == "" {
			return registry.Spec{}, fmt.Errorf("child %d has no name", i)
		}
		childParams, err := getParams(child, "params")
		if err != nil {
			return registry.Spec{}, fmt.Errorf("child %d: %w", i, err)
		}
		spec.Children = append(spec.Children, registry.Spec{Name: childName, Params: childParams})
	}
	return spec, nil
}

// runError maps a pipeline failure onto an MCP error
func (s *Server) runError(err error) error {
	if errors.Is(err, types.ErrInvalidArgument) || errors.Is(err, types.ErrInvalidConfiguration) {
		data := map[string]interface{}{"error": err.Error()}
		var pe *types.ParamError
		if errors.As(err, &pe) {
			data["param"] = pe.Param
			data["value"] = pe.Value
		}
		return newMCPError(ErrorCodeInvalidStrategy, "invalid strategy", data)
	}
	return newMCPError(ErrorCodeInternalError, "chunking failed", map[string]interface{}{
		"error": err.Error(),
	})
}

// runInfo formats a stored run
func runInfo(run *storage.Run) map[string]interface{} {
	info := map[string]interface{}{
		"run_id":     run.RunID,
		"strategy":   run.Strategy,
		"params":     run.Params,
		"kind":       run.ElementKind,
		"status":     string(run.Status),
		"elements":   run.InputCount,
		"chunks":     run.ChunkCount,
		"started_at": run.StartedAt.Format(time.RFC3339),
	}
	if run.Quality != nil {
		info["quality"] = *run.Quality
	}
	if run.Error != nil {
		info["error"] = *run.Error
	}
	if run.CompletedAt != nil {
		info["completed_at"] = run.CompletedAt.Format(time.RFC3339)
	}
	return info
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getFloatSlice extracts a required array of numbers
func getFloatSlice(args map[string]interface{}, key string) ([]float64, error) {
	switch val := args[key].(type) {
	case []float64:
		return val, nil
	case []interface{}:
		out := make([]float64, len(val))
		for i, item := range val {
			f, ok := toFloat(item)
			if !ok {
				return nil, fmt.Errorf("element %d is not a number", i)
			}
			out[i] = f
		}
		return out, nil
	case nil:
		return nil, errors.New("missing")
	default:
		return nil, fmt.Errorf("expected an array, got %T", val)
	}
}

// getStringSlice extracts a required array of strings
func getStringSlice(args map[string]interface{}, key string) ([]string, error) {
	switch val := args[key].(type) {
	case []string:
		return val, nil
	case []interface{}:
		out := make([]string, len(val))
		for i, item := range val {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("element %d is not a string", i)
			}
			out[i] = str
		}
		return out, nil
	case nil:
		return nil, errors.New("missing")
	default:
		return nil, fmt.Errorf("expected an array, got %T", val)
	}
}

// getParams extracts an optional object of numeric parameters
func getParams(args map[string]interface{}, key string) (map[string]float64, error) {
	switch val := args[key].(type) {
	case nil:
		return nil, nil
	case map[string]float64:
		return val, nil
	case map[string]interface{}:
		out := make(map[string]float64, len(val))
		for k, item := range val {
			f, ok := toFloat(item)
			if !ok {
				return nil, fmt.Errorf("parameter %s is not a number", k)
			}
			out[k] = f
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected an object, got %T", val)
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
