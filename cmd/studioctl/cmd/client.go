package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to the toolstudio REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	verbose    io.Writer
}

// NewClient creates a new API client. A non-nil verbose writer receives a
// line per request and response.
func NewClient(baseURL string, verbose io.Writer) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		verbose: verbose,
	}
}

// envelope is the response wrapper every endpoint uses.
type envelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message,omitempty"`
	Pagination *Pagination     `json:"pagination,omitempty"`
	Error      *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"details"`
	} `json:"error,omitempty"`
}

// Pagination is the page block of list responses.
type Pagination struct {
	Page       int   `json:"page" yaml:"page"`
	Limit      int   `json:"limit" yaml:"limit"`
	Total      int64 `json:"total" yaml:"total"`
	TotalPages int   `json:"total_pages" yaml:"total_pages"`
}

// Do performs a request and decodes the envelope's data into out.
// out may be nil. The returned pagination is nil for non-list endpoints.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) (*Pagination, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if c.verbose != nil {
		fmt.Fprintf(c.verbose, ">>> %s %s\n", method, url)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if c.verbose != nil {
		fmt.Fprintf(c.verbose, "<<< %d %s\n", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode >= 400 {
		return nil, parseAPIError(resp.StatusCode, respBody)
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("parse response data: %w", err)
		}
	}
	return env.Pagination, nil
}

// Raw performs a GET and decodes the whole body into out, for the few
// endpoints that answer without an envelope.
func (c *Client) Raw(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return parseAPIError(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, out any) (*Pagination, error) {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Post performs a POST request.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	_, err := c.Do(ctx, http.MethodPost, path, body, out)
	return err
}

// Put performs a PUT request.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	_, err := c.Do(ctx, http.MethodPut, path, body, out)
	return err
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.Do(ctx, http.MethodDelete, path, nil, nil)
	return err
}

// APIError represents an error envelope from the API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    []string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = fmt.Sprintf("API error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	if len(e.Details) > 0 {
		msg += " (" + strings.Join(e.Details, "; ") + ")"
	}
	return msg
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func parseAPIError(statusCode int, body []byte) error {
	apiErr := &APIError{StatusCode: statusCode}

	var env envelope
	if err := json.Unmarshal(body, &env); err == nil {
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			for _, d := range env.Error.Details {
				apiErr.Details = append(apiErr.Details, d.Field+": "+d.Message)
			}
		} else if env.Message != "" {
			apiErr.Message = env.Message
		}
	}

	if apiErr.Message == "" {
		switch statusCode {
		case http.StatusNotFound:
			apiErr.Message = "resource not found"
		case http.StatusConflict:
			apiErr.Message = "conflict: resource already exists"
		case http.StatusTooManyRequests:
			apiErr.Message = "rate limit exceeded"
		}
	}
	return apiErr
}

// Response types matching the server's JSON.

type TagRef struct {
	TagID int64  `json:"tag_id" yaml:"tag_id"`
	Name  string `json:"name" yaml:"name"`
	Slug  string `json:"slug" yaml:"slug"`
	Color string `json:"color" yaml:"color"`
}

type VersionSummary struct {
	VersionID     int64  `json:"version_id" yaml:"version_id"`
	VersionNumber string `json:"version_number" yaml:"version_number"`
	IsActive      bool   `json:"is_active" yaml:"is_active"`
	IsDeprecated  bool   `json:"is_deprecated" yaml:"is_deprecated"`
}

type Tool struct {
	ToolID      int64            `json:"tool_id" yaml:"tool_id"`
	Name        string           `json:"name" yaml:"name"`
	Slug        string           `json:"slug" yaml:"slug"`
	Description string           `json:"description" yaml:"description"`
	Category    string           `json:"category" yaml:"category"`
	IsActive    bool             `json:"is_active" yaml:"is_active"`
	CreatedAt   string           `json:"created_at" yaml:"created_at"`
	UpdatedAt   string           `json:"updated_at" yaml:"updated_at"`
	Tags        []TagRef         `json:"tags" yaml:"tags"`
	Versions    []VersionSummary `json:"versions,omitempty" yaml:"versions,omitempty"`
}

type Version struct {
	VersionID          int64           `json:"version_id" yaml:"version_id"`
	ToolID             int64           `json:"tool_id" yaml:"tool_id"`
	VersionNumber      string          `json:"version_number" yaml:"version_number"`
	SemanticVersion    string          `json:"semantic_version" yaml:"semantic_version"`
	InputSchema        json.RawMessage `json:"input_schema" yaml:"-"`
	OutputSchema       json.RawMessage `json:"output_schema" yaml:"-"`
	HandlerLanguage    string          `json:"handler_language,omitempty" yaml:"handler_language,omitempty"`
	IsActive           bool            `json:"is_active" yaml:"is_active"`
	IsDeprecated       bool            `json:"is_deprecated" yaml:"is_deprecated"`
	DeprecationMessage string          `json:"deprecation_message,omitempty" yaml:"deprecation_message,omitempty"`
	Changelog          string          `json:"changelog,omitempty" yaml:"changelog,omitempty"`
	CreatedAt          string          `json:"created_at" yaml:"created_at"`
}

type Tag struct {
	TagID       int64  `json:"tag_id" yaml:"tag_id"`
	Name        string `json:"name" yaml:"name"`
	Slug        string `json:"slug" yaml:"slug"`
	Color       string `json:"color" yaml:"color"`
	Description string `json:"description" yaml:"description"`
	IsActive    bool   `json:"is_active" yaml:"is_active"`
	CreatedAt   string `json:"created_at" yaml:"created_at"`
}

type Execution struct {
	ExecutionID        int64   `json:"execution_id" yaml:"execution_id"`
	ToolID             int64   `json:"tool_id" yaml:"tool_id"`
	VersionID          int64   `json:"version_id" yaml:"version_id"`
	ExecutionRequestID string  `json:"execution_request_id" yaml:"execution_request_id"`
	ToolName           string  `json:"tool_name,omitempty" yaml:"tool_name,omitempty"`
	VersionNumber      string  `json:"version_number,omitempty" yaml:"version_number,omitempty"`
	Status             string  `json:"status" yaml:"status"`
	ErrorMessage       *string `json:"error_message" yaml:"error_message,omitempty"`
	ExecutionTimeMs    *int64  `json:"execution_time_ms" yaml:"execution_time_ms,omitempty"`
	AgentID            string  `json:"agent_id,omitempty" yaml:"agent_id,omitempty"`
	LLMSource          string  `json:"llm_source,omitempty" yaml:"llm_source,omitempty"`
	StartedAt          string  `json:"started_at" yaml:"started_at"`
	CompletedAt        *string `json:"completed_at" yaml:"completed_at,omitempty"`
}

type ExecutionStats struct {
	Total          int64    `json:"total_executions" yaml:"total_executions"`
	Succeeded      int64    `json:"successful_executions" yaml:"successful_executions"`
	Failed         int64    `json:"failed_executions" yaml:"failed_executions"`
	Pending        int64    `json:"pending_executions" yaml:"pending_executions"`
	Running        int64    `json:"running_executions" yaml:"running_executions"`
	TimedOut       int64    `json:"timeout_executions" yaml:"timeout_executions"`
	Cancelled      int64    `json:"cancelled_executions" yaml:"cancelled_executions"`
	AvgExecutionMs *float64 `json:"avg_execution_time_ms" yaml:"avg_execution_time_ms,omitempty"`
	MinExecutionMs *int64   `json:"min_execution_time_ms" yaml:"min_execution_time_ms,omitempty"`
	MaxExecutionMs *int64   `json:"max_execution_time_ms" yaml:"max_execution_time_ms,omitempty"`
}
