package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/strata"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Engine defines the batch controls the MCP server drives.
type Engine interface {
	Start(ctx context.Context, req domain.BatchRequest) (*session.Session, error)
	Cancel() error
	Progress() domain.Progress
	Token(ctx context.Context, id int64) (*domain.TokenMetadata, error)
	Tokens(ctx context.Context) ([]int64, error)
	Preview(ctx context.Context, req domain.PreviewRequest) (*domain.Token, error)
}

// BatchAccepted is the structured result of start_batch.
type BatchAccepted struct {
	BatchID string `json:"batch_id" jsonschema_description:"Identifier of the started batch"`
	Total   int    `json:"total" jsonschema_description:"Number of tokens requested"`
}

// Server wraps the Strata Engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		mcpServer: server.NewMCPServer("strata-mcp", strata.Version),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer exposes the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and shuts it down
// when ctx ends.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: start_batch
	startTool := mcp.NewTool("start_batch",
		mcp.WithDescription("Start generating a batch of unique tokens. Fails if a batch is already running."),
		mcp.WithNumber("count", mcp.Required(), mcp.Description("Number of tokens to generate")),
		mcp.WithNumber("start_id", mcp.Description("First token id (default 1)")),
		mcp.WithNumber("seed", mcp.Description("Random seed; omitted or 0 picks one")),
		mcp.WithNumber("width", mcp.Description("Output width in pixels (64..8192, default 1080)")),
		mcp.WithNumber("height", mcp.Description("Output height in pixels (64..8192, default 1080)")),
		mcp.WithArray("context", mcp.Description("Base context tags every token starts with"), mcp.WithStringItems()),
		mcp.WithBoolean("stop_on_error", mcp.Description("Cancel the batch after the first failed token")),
		mcp.WithBoolean("keep_output", mcp.Description("Keep previously emitted tokens")),
		mcp.WithOutputSchema[BatchAccepted](),
	)
	s.mcpServer.AddTool(startTool, mcp.NewStructuredToolHandler(s.handleStartBatch))

	// TOOL: cancel_batch
	s.mcpServer.AddTool(mcp.NewTool("cancel_batch",
		mcp.WithDescription("Cancel the running batch. Tokens already emitted are kept."),
	), s.handleCancelBatch)

	// TOOL: get_progress
	s.mcpServer.AddTool(mcp.NewTool("get_progress",
		mcp.WithDescription("Report the progress of the latest batch."),
	), s.handleGetProgress)

	// TOOL: list_tokens
	s.mcpServer.AddTool(mcp.NewTool("list_tokens",
		mcp.WithDescription("List the ids of emitted tokens."),
	), s.handleListTokens)

	// TOOL: get_token
	s.mcpServer.AddTool(mcp.NewTool("get_token",
		mcp.WithDescription("Get the metadata of an emitted token."),
		mcp.WithNumber("token_id", mcp.Required(), mcp.Description("Token id")),
	), s.handleGetToken)

	// TOOL: preview_token
	s.mcpServer.AddTool(mcp.NewTool("preview_token",
		mcp.WithDescription("Render one token without saving it or reserving its combination."),
		mcp.WithNumber("seed", mcp.Description("Random seed; omitted or 0 picks one")),
		mcp.WithNumber("size", mcp.Description("Edge length of the square image (64..8192, default 1080)")),
		mcp.WithArray("context", mcp.Description("Base context tags"), mcp.WithStringItems()),
	), s.handlePreviewToken)
}

func (s *Server) handleStartBatch(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (BatchAccepted, error) {
	req := domain.BatchRequest{
		Count:       request.GetInt("count", 0),
		StartID:     int64(request.GetInt("start_id", 0)),
		Seed:        int64(request.GetInt("seed", 0)),
		BaseContext: request.GetStringSlice("context", nil),
		StopOnError: request.GetBool("stop_on_error", false),
		KeepOutput:  request.GetBool("keep_output", false),
	}
	if w := request.GetInt("width", 0); w > 0 {
		req.OutWidth = domain.ClampOutputSize(w)
	}
	if h := request.GetInt("height", 0); h > 0 {
		req.OutHeight = domain.ClampOutputSize(h)
	}
	if req.Count <= 0 {
		return BatchAccepted{}, errors.New("count must be positive")
	}

	sess, err := s.engine.Start(ctx, req)
	if err != nil {
		s.logger.Warn("MCP start_batch failed", "err", err)
		return BatchAccepted{}, fmt.Errorf("start failed: %w", err)
	}
	return BatchAccepted{BatchID: sess.ID(), Total: req.Count}, nil
}

func (s *Server) handleCancelBatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.engine.Cancel(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cancel failed: %v", err)), nil
	}
	return jsonResult(s.engine.Progress())
}

func (s *Server) handleGetProgress(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.engine.Progress())
}

func (s *Server) handleListTokens(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := s.engine.Tokens(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}
	if ids == nil {
		ids = []int64{}
	}
	return jsonResult(ids)
}

func (s *Server) handleGetToken(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireInt("token_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	md, err := s.engine.Token(ctx, int64(id))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("token %d: %v", id, err)), nil
	}
	return jsonResult(md)
}

func (s *Server) handlePreviewToken(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tok, err := s.engine.Preview(ctx, domain.PreviewRequest{
		BaseContext: request.GetStringSlice("context", nil),
		Seed:        int64(request.GetInt("seed", 0)),
		Size:        domain.ClampOutputSize(request.GetInt("size", 0)),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("preview failed: %v", err)), nil
	}
	text, err := json.Marshal(map[string]any{
		"combo_key": tok.Key,
		"metadata":  tok.Metadata,
	})
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultImage(string(text), base64.StdEncoding.EncodeToString(tok.Image), "image/png"), nil
}

func (s *Server) registerResources() {
	// EXPOSE: strata://progress
	s.mcpServer.AddResource(mcp.NewResource("strata://progress", "Batch progress",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.engine.Progress())
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "strata://progress",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
