package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dshills/gochunk/internal/config"
	"github.com/dshills/gochunk/internal/pipeline"
	"github.com/dshills/gochunk/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "gochunk"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	cfg      *config.Config
	storage  storage.Storage
	pipeline *pipeline.Pipeline
	logger   *zap.Logger
}

// NewServer opens the store at cfg.DBPath and registers every tool. A nil
// logger discards output.
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// Initialize storage
	store, err := storage.NewSQLiteStorage(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	p, err := pipeline.New(store,
		pipeline.WithWorkers(cfg.Workers),
		pipeline.WithLogger(logger.Named("pipeline")))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	// Create MCP server
	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp:      mcpServer,
		cfg:      cfg,
		storage:  store,
		pipeline: p,
		logger:   logger,
	}

	// Register tools
	if err := s.registerTools(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.Close() }()
	s.logger.Info("serving MCP on stdio", zap.String("db_path", s.cfg.DBPath))
	return server.ServeStdio(s.mcp)
}

// Close releases the store
func (s *Server) Close() error {
	return s.storage.Close()
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	s.mcp.AddTool(chunkDataTool(), s.handleChunkData)
	s.mcp.AddTool(getRunTool(), s.handleGetRun)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	return nil
}
