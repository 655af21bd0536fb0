// Package mcp serves the tool catalog over the Model Context Protocol.
//
// Every live, active tool with an active version is exposed as an MCP tool
// named by its slug. Calling a tool records a running execution in the
// ledger; the tool itself runs on the caller's side.
package mcp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/openctemio/toolstudio/pkg/domain/catalog"
	"github.com/openctemio/toolstudio/pkg/domain/execution"
	"github.com/openctemio/toolstudio/pkg/domain/shared"
	"github.com/openctemio/toolstudio/pkg/logger"
)

// Catalog is the part of app.CatalogService the MCP surface needs.
type Catalog interface {
	ListEntries(ctx context.Context) ([]catalog.Entry, error)
	InvokeBySlug(ctx context.Context, slug string, input json.RawMessage, llmSource string) (*execution.Execution, *catalog.Entry, error)
}

// Info identifies the server to MCP clients.
type Info struct {
	Name    string
	Version string
}

// Server keeps an MCP server's tool list in step with the catalog.
type Server struct {
	catalog Catalog
	server  *gomcp.Server
	logger  *logger.Logger

	mu          sync.Mutex
	fingerprint string
	registered  map[string]struct{}
}

// NewServer creates the MCP server. Tools are loaded lazily on the first
// tools/list or tools/call and refreshed whenever the catalog changes.
func NewServer(cat Catalog, info Info, log *logger.Logger) *Server {
	s := &Server{
		catalog:    cat,
		logger:     log.With("component", "mcp"),
		registered: make(map[string]struct{}),
	}
	s.server = gomcp.NewServer(&gomcp.Implementation{
		Name:    info.Name,
		Version: info.Version,
	}, &gomcp.ServerOptions{HasTools: true})
	s.server.AddReceivingMiddleware(s.syncMiddleware())
	return s
}

// MCP returns the underlying protocol server.
func (s *Server) MCP() *gomcp.Server {
	return s.server
}

// Handler serves the streamable HTTP transport.
func (s *Server) Handler() http.Handler {
	return gomcp.NewStreamableHTTPHandler(func(*http.Request) *gomcp.Server {
		return s.server
	}, &gomcp.StreamableHTTPOptions{JSONResponse: true})
}

func (s *Server) syncMiddleware() gomcp.Middleware {
	return func(next gomcp.MethodHandler) gomcp.MethodHandler {
		return func(ctx context.Context, method string, req gomcp.Request) (gomcp.Result, error) {
			if method == "tools/list" || method == "tools/call" {
				if err := s.Sync(ctx); err != nil {
					s.logger.Warn("catalog sync failed", "method", method, "error", err)
				}
			}
			return next(ctx, method, req)
		}
	}
}

// Sync reconciles the registered tools with the catalog.
func (s *Server) Sync(ctx context.Context) error {
	entries, err := s.catalog.ListEntries(ctx)
	if err != nil {
		return fmt.Errorf("list catalog entries: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fp := fingerprint(entries)
	if fp == s.fingerprint {
		return nil
	}

	next := make(map[string]struct{}, len(entries))
	for i := range entries {
		entry := entries[i]
		if !isObjectSchema(entry.InputSchema) {
			s.logger.Warn("skip tool with non-object input schema", "slug", entry.Slug)
			continue
		}
		s.server.AddTool(toolFor(entry), s.callHandler(entry.Slug))
		next[entry.Slug] = struct{}{}
	}

	var stale []string
	for name := range s.registered {
		if _, ok := next[name]; !ok {
			stale = append(stale, name)
		}
	}
	if len(stale) > 0 {
		s.server.RemoveTools(stale...)
	}

	s.registered = next
	s.fingerprint = fp
	s.logger.Debug("mcp tools synced", "tools", len(next), "removed", len(stale))
	return nil
}

func toolFor(entry catalog.Entry) *gomcp.Tool {
	description := entry.Description
	if description == "" {
		description = entry.Name
	}
	return &gomcp.Tool{
		Name:        entry.Slug,
		Title:       entry.Name,
		Description: fmt.Sprintf("%s (version %s)", description, entry.VersionNumber),
		InputSchema: json.RawMessage(entry.InputSchema),
		Meta: gomcp.Meta{
			"category":      entry.Category,
			"tool_id":       entry.ToolID.Int64(),
			"version_id":    entry.VersionID.Int64(),
			"outputSchema":  json.RawMessage(entry.OutputSchema),
			"versionNumber": entry.VersionNumber,
		},
	}
}

// CallResult is the structured content of a tool call.
type CallResult struct {
	ExecutionID   int64           `json:"executionId"`
	RequestID     string          `json:"executionRequestId"`
	Status        string          `json:"status"`
	ToolID        int64           `json:"toolId"`
	VersionID     int64           `json:"versionId"`
	VersionNumber string          `json:"versionNumber"`
	Input         json.RawMessage `json:"input"`
}

func (s *Server) callHandler(slug string) gomcp.ToolHandler {
	return func(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		var args json.RawMessage
		if req.Params != nil {
			args = req.Params.Arguments
		}

		e, entry, err := s.catalog.InvokeBySlug(ctx, slug, args, clientName(req))
		if err != nil {
			if isCallerError(err) {
				return errorResult(err), nil
			}
			s.logger.Error("mcp tool call failed", "tool", slug, "error", err)
			return nil, err
		}

		result := CallResult{
			ExecutionID:   e.ID.Int64(),
			RequestID:     e.RequestID,
			Status:        string(e.Status),
			ToolID:        entry.ToolID.Int64(),
			VersionID:     entry.VersionID.Int64(),
			VersionNumber: entry.VersionNumber,
			Input:         e.InputPayload,
		}
		text, err := json.Marshal(result)
		if err != nil {
			return nil, err
		}
		return &gomcp.CallToolResult{
			Content:           []gomcp.Content{&gomcp.TextContent{Text: string(text)}},
			StructuredContent: result,
		}, nil
	}
}

func clientName(req *gomcp.CallToolRequest) string {
	if req == nil || req.Session == nil {
		return ""
	}
	params := req.Session.InitializeParams()
	if params == nil || params.ClientInfo == nil {
		return ""
	}
	return params.ClientInfo.Name
}

func isCallerError(err error) bool {
	return errors.Is(err, shared.ErrValidation) || errors.Is(err, shared.ErrNotFound)
}

func errorResult(err error) *gomcp.CallToolResult {
	msg := err.Error()
	var de *shared.DomainError
	if errors.As(err, &de) {
		msg = de.Message
		if de.Field != "" {
			msg = de.Field + ": " + msg
		}
	}
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

func fingerprint(entries []catalog.Entry) string {
	h := sha256.New()
	for _, e := range entries {
		fmt.Fprintf(h, "%d|%s|%s|%s|%d|%s|", e.ToolID, e.Slug, e.Name, e.Description, e.VersionID, e.VersionNumber)
		h.Write(e.InputSchema)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func isObjectSchema(raw json.RawMessage) bool {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return false
	}
	typ, ok := obj["type"].(string)
	return ok && strings.EqualFold(typ, "object")
}
