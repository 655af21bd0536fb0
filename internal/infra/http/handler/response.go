package handler

import (
	"encoding/json"
	"time"

	"github.com/openctemio/toolstudio/pkg/domain/catalog"
	"github.com/openctemio/toolstudio/pkg/domain/execution"
	"github.com/openctemio/toolstudio/pkg/domain/tag"
	"github.com/openctemio/toolstudio/pkg/domain/tool"
	"github.com/openctemio/toolstudio/pkg/domain/toolversion"
)

// TagRefResponse is a tag embedded in a tool.
type TagRefResponse struct {
	TagID int64  `json:"tag_id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Color string `json:"color"`
}

// VersionSummaryResponse is a version embedded in a tool detail.
type VersionSummaryResponse struct {
	VersionID     int64  `json:"version_id"`
	VersionNumber string `json:"version_number"`
	IsActive      bool   `json:"is_active"`
	IsDeprecated  bool   `json:"is_deprecated"`
}

// ToolResponse is the JSON form of a tool.
type ToolResponse struct {
	ToolID      int64                    `json:"tool_id"`
	Name        string                   `json:"name"`
	Slug        string                   `json:"slug"`
	Description string                   `json:"description"`
	Category    string                   `json:"category"`
	IsActive    bool                     `json:"is_active"`
	CreatedBy   string                   `json:"created_by,omitempty"`
	UpdatedBy   string                   `json:"updated_by,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
	Tags        []TagRefResponse         `json:"tags"`
	Versions    []VersionSummaryResponse `json:"versions,omitempty"`
}

func toToolResponse(t *tool.Tool) ToolResponse {
	resp := ToolResponse{
		ToolID:      t.ID.Int64(),
		Name:        t.Name,
		Slug:        t.Slug,
		Description: t.Description,
		Category:    t.Category,
		IsActive:    t.IsActive,
		CreatedBy:   t.CreatedBy,
		UpdatedBy:   t.UpdatedBy,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		Tags:        make([]TagRefResponse, 0, len(t.Tags)),
	}
	for _, tr := range t.Tags {
		resp.Tags = append(resp.Tags, TagRefResponse{TagID: tr.ID.Int64(), Name: tr.Name, Slug: tr.Slug, Color: tr.Color})
	}
	for _, v := range t.Versions {
		resp.Versions = append(resp.Versions, VersionSummaryResponse{
			VersionID:     v.ID.Int64(),
			VersionNumber: v.VersionNumber,
			IsActive:      v.IsActive,
			IsDeprecated:  v.IsDeprecated,
		})
	}
	return resp
}

// VersionResponse is the JSON form of a tool version.
type VersionResponse struct {
	VersionID          int64           `json:"version_id"`
	ToolID             int64           `json:"tool_id"`
	VersionNumber      string          `json:"version_number"`
	SemanticVersion    string          `json:"semantic_version"`
	InputSchema        json.RawMessage `json:"input_schema"`
	OutputSchema       json.RawMessage `json:"output_schema"`
	HandlerSourceCode  string          `json:"handler_source_code,omitempty"`
	HandlerLanguage    string          `json:"handler_language,omitempty"`
	IsActive           bool            `json:"is_active"`
	IsDeprecated       bool            `json:"is_deprecated"`
	DeprecationMessage string          `json:"deprecation_message,omitempty"`
	Changelog          string          `json:"changelog,omitempty"`
	CreatedBy          string          `json:"created_by,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func toVersionResponse(v *toolversion.Version) VersionResponse {
	return VersionResponse{
		VersionID:          v.ID.Int64(),
		ToolID:             v.ToolID.Int64(),
		VersionNumber:      v.VersionNumber,
		SemanticVersion:    v.SemanticVersion,
		InputSchema:        v.InputSchema,
		OutputSchema:       v.OutputSchema,
		HandlerSourceCode:  v.HandlerSourceCode,
		HandlerLanguage:    string(v.HandlerLanguage),
		IsActive:           v.IsActive,
		IsDeprecated:       v.IsDeprecated,
		DeprecationMessage: v.DeprecationMessage,
		Changelog:          v.Changelog,
		CreatedBy:          v.CreatedBy,
		CreatedAt:          v.CreatedAt,
		UpdatedAt:          v.UpdatedAt,
	}
}

// TagResponse is the JSON form of a tag.
type TagResponse struct {
	TagID       int64     `json:"tag_id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Color       string    `json:"color"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toTagResponse(t *tag.Tag) TagResponse {
	return TagResponse{
		TagID:       t.ID.Int64(),
		Name:        t.Name,
		Slug:        t.Slug,
		Color:       t.Color,
		Description: t.Description,
		IsActive:    t.IsActive,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// ExecutionResponse is the JSON form of a ledger record.
type ExecutionResponse struct {
	ExecutionID        int64           `json:"execution_id"`
	ToolID             int64           `json:"tool_id"`
	VersionID          int64           `json:"version_id"`
	ExecutionRequestID string          `json:"execution_request_id"`
	ToolName           string          `json:"tool_name,omitempty"`
	VersionNumber      string          `json:"version_number,omitempty"`
	InputPayload       json.RawMessage `json:"input_payload"`
	OutputPayload      json.RawMessage `json:"output_payload"`
	ErrorMessage       *string         `json:"error_message"`
	ErrorStacktrace    *string         `json:"error_stacktrace"`
	ExecutionTimeMs    *int64          `json:"execution_time_ms"`
	Status             string          `json:"status"`
	HTTPStatusCode     *int            `json:"http_status_code"`
	AgentID            string          `json:"agent_id,omitempty"`
	WorkflowID         string          `json:"workflow_id,omitempty"`
	UserID             string          `json:"user_id,omitempty"`
	LLMSource          string          `json:"llm_source,omitempty"`
	StartedAt          time.Time       `json:"started_at"`
	CompletedAt        *time.Time      `json:"completed_at"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func toExecutionResponse(e *execution.Execution) ExecutionResponse {
	resp := ExecutionResponse{
		ExecutionID:        e.ID.Int64(),
		ToolID:             e.ToolID.Int64(),
		VersionID:          e.VersionID.Int64(),
		ExecutionRequestID: e.RequestID,
		ToolName:           e.ToolName,
		VersionNumber:      e.VersionNumber,
		InputPayload:       e.InputPayload,
		ExecutionTimeMs:    e.ExecutionTimeMs,
		Status:             string(e.Status),
		HTTPStatusCode:     e.HTTPStatusCode,
		AgentID:            e.AgentID,
		WorkflowID:         e.WorkflowID,
		UserID:             e.UserID,
		LLMSource:          e.LLMSource,
		StartedAt:          e.StartedAt,
		CompletedAt:        e.CompletedAt,
		CreatedAt:          e.CreatedAt,
		UpdatedAt:          e.UpdatedAt,
	}
	if len(e.OutputPayload) > 0 {
		resp.OutputPayload = e.OutputPayload
	}
	if e.ErrorMessage != "" {
		resp.ErrorMessage = &e.ErrorMessage
	}
	if e.ErrorStacktrace != "" {
		resp.ErrorStacktrace = &e.ErrorStacktrace
	}
	return resp
}

// CatalogToolResponse is one entry of the MCP compatibility tool list.
type CatalogToolResponse struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Slug         string          `json:"slug"`
	Description  string          `json:"description"`
	Category     string          `json:"category"`
	Version      string          `json:"version"`
	VersionID    int64           `json:"version_id"`
	InputSchema  json.RawMessage `json:"inputSchema"`
	OutputSchema json.RawMessage `json:"outputSchema"`
}

func toCatalogToolResponse(e catalog.Entry) CatalogToolResponse {
	return CatalogToolResponse{
		ID:           e.ToolID.Int64(),
		Name:         e.Name,
		Slug:         e.Slug,
		Description:  e.Description,
		Category:     e.Category,
		Version:      e.VersionNumber,
		VersionID:    e.VersionID.Int64(),
		InputSchema:  e.InputSchema,
		OutputSchema: e.OutputSchema,
	}
}
