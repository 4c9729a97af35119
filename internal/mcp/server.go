// Package mcp exposes read-only ranking and engagement tools to AI agents
// over the Model Context Protocol.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/auth"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/arturoeanton/vietstart-api/internal/domain"
	"github.com/arturoeanton/vietstart-api/internal/middleware"
	"github.com/arturoeanton/vietstart-api/internal/port"
)

// Ranker ranks candidates for a startup.
type Ranker interface {
	Rank(ctx context.Context, startupID string, limit int) ([]domain.MatchResult, error)
	RankGrouped(ctx context.Context, startupID string, limit int) (*domain.GroupedRankings, error)
}

// EngagementLister lists engagements from one user's perspective.
type EngagementLister interface {
	List(ctx context.Context, actorID string, view domain.EngagementView, startupID string) ([]domain.Engagement, error)
}

// Server is the MCP tool server. Every call must carry the same bearer
// JWT the REST API accepts; tools act as the token's user.
type Server struct {
	ranker      Ranker
	engagements EngagementLister
	audit       port.AuditWriter
	jwt         middleware.JWTConfig
	port        string
	version     string
}

// NewServer creates a new MCP server. audit may be nil.
func NewServer(ranker Ranker, engagements EngagementLister, audit port.AuditWriter, jwt middleware.JWTConfig, listenPort, version string) *Server {
	return &Server{
		ranker:      ranker,
		engagements: engagements,
		audit:       audit,
		jwt:         jwt,
		port:        listenPort,
		version:     version,
	}
}

// --- Input types ---

// RankInput selects a startup and an optional result size.
type RankInput struct {
	StartupID string `json:"startup_id" jsonschema:"ID of the startup to rank candidates for"`
	Limit     int    `json:"limit,omitempty" jsonschema:"Maximum number of candidates (0 selects the default)"`
}

// ListEngagementsInput selects the caller's view of engagements.
type ListEngagementsInput struct {
	View      string `json:"view,omitempty" jsonschema:"One of sent, received, active, team, history (default received)"`
	StartupID string `json:"startup_id,omitempty" jsonschema:"Optional startup filter"`
}

// MCPServer builds the SDK server with every tool registered.
func (s *Server) MCPServer() *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "vietstart-matching",
		Version: s.version,
	}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "rank_candidates",
		Description: "Rank registered users for a startup by blended skills, roles and category similarity (0-100)",
	}, s.RankCandidates)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "rank_candidates_grouped",
		Description: "Rank candidates for a startup separately by skills, roles and category, plus the overall ranking",
	}, s.RankCandidatesGrouped)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_engagements",
		Description: "List the caller's recruitment engagements (invites, negotiations, team members)",
	}, s.ListEngagements)

	return srv
}

// Handler serves the tools over streamable HTTP behind bearer authentication.
func (s *Server) Handler() http.Handler {
	srv := s.MCPServer()
	streamable := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return srv
	}, nil)
	return auth.RequireBearerToken(s.verifyToken, nil)(streamable)
}

// verifyToken checks a bearer JWT and carries the caller in the token info.
func (s *Server) verifyToken(_ context.Context, token string, _ *http.Request) (*auth.TokenInfo, error) {
	claims, err := middleware.ValidateJWT(token, s.jwt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", auth.ErrInvalidToken, err)
	}
	return &auth.TokenInfo{
		UserID:     claims.Subject,
		Expiration: time.Unix(claims.ExpiresAt, 0),
		Extra:      map[string]any{callerKey: claims.UserContext()},
	}, nil
}

const callerKey = "user"

// caller returns the authenticated user of a tool call, or nil.
func caller(req *mcp.CallToolRequest) *domain.UserContext {
	if req == nil || req.Extra == nil || req.Extra.TokenInfo == nil {
		return nil
	}
	uc, _ := req.Extra.TokenInfo.Extra[callerKey].(*domain.UserContext)
	if uc == nil || uc.UserID == "" {
		return nil
	}
	return uc
}

const errUnauthenticated = "unauthorized: a bearer token is required"

// Start serves /mcp on the configured port until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/mcp", s.Handler())

	httpServer := &http.Server{
		Addr:              ":" + s.port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	slog.Info("MCP server starting", "port", s.port)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// --- Handlers ---

// RankCandidates returns the blended ranking.
func (s *Server) RankCandidates(ctx context.Context, req *mcp.CallToolRequest, input RankInput) (*mcp.CallToolResult, any, error) {
	uc := caller(req)
	if uc == nil {
		return toolError(errUnauthenticated), nil, nil
	}
	if input.StartupID == "" {
		return toolError("startup_id is required"), nil, nil
	}
	s.record(uc.UserID, "rank_candidates", input.StartupID)

	results, err := s.ranker.Rank(ctx, input.StartupID, input.Limit)
	if err != nil {
		return toolError("Failed to rank candidates: %v", err), nil, nil
	}
	return toolJSON(results)
}

// RankCandidatesGrouped returns the per-signal rankings.
func (s *Server) RankCandidatesGrouped(ctx context.Context, req *mcp.CallToolRequest, input RankInput) (*mcp.CallToolResult, any, error) {
	uc := caller(req)
	if uc == nil {
		return toolError(errUnauthenticated), nil, nil
	}
	if input.StartupID == "" {
		return toolError("startup_id is required"), nil, nil
	}
	s.record(uc.UserID, "rank_candidates_grouped", input.StartupID)

	grouped, err := s.ranker.RankGrouped(ctx, input.StartupID, input.Limit)
	if err != nil {
		return toolError("Failed to rank candidates: %v", err), nil, nil
	}
	return toolJSON(grouped)
}

// ListEngagements returns one view of the caller's engagements.
func (s *Server) ListEngagements(ctx context.Context, req *mcp.CallToolRequest, input ListEngagementsInput) (*mcp.CallToolResult, any, error) {
	uc := caller(req)
	if uc == nil {
		return toolError(errUnauthenticated), nil, nil
	}
	view := domain.ViewReceived
	if input.View != "" {
		view = domain.EngagementView(input.View)
	}
	s.record(uc.UserID, "list_engagements", input.StartupID)

	list, err := s.engagements.List(ctx, uc.UserID, view, input.StartupID)
	if err != nil {
		return toolError("Failed to list engagements: %v", err), nil, nil
	}
	return toolJSON(list)
}

func (s *Server) record(userID, tool, resourceID string) {
	if s.audit == nil {
		return
	}
	details, _ := json.Marshal(map[string]string{"tool": tool})
	if err := s.audit.WriteAudit(userID, domain.AuditActionMCPCall, "mcp", resourceID, string(details), "", ""); err != nil {
		slog.Error("failed to write audit log", "tool", tool, "error", err)
	}
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("Failed to marshal result: %v", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
