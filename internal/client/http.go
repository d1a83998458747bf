package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/rednight/internal/model"
)

// HTTPClient implements Client using the rednight HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080").
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

var _ Client = (*HTTPClient)(nil)

// --- Environments ---

func (c *HTTPClient) CreateEnvironment(ctx context.Context, name string) (*model.Environment, error) {
	var env model.Environment
	if err := c.doJSON(ctx, http.MethodPost, "/environments", model.CreateEnvironment{Name: name}, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

func (c *HTTPClient) GetEnvironment(ctx context.Context, id int64) (*model.Environment, error) {
	var env model.Environment
	if err := c.doJSON(ctx, http.MethodGet, environmentPath(id), nil, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

func (c *HTTPClient) ListEnvironments(ctx context.Context, q model.PageQuery) (*model.Page[*model.Environment], error) {
	var page model.Page[*model.Environment]
	if err := c.doJSON(ctx, http.MethodGet, "/environments"+pageParams(q), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *HTTPClient) DeleteEnvironment(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, environmentPath(id), nil, nil)
}

// --- Configs ---

func (c *HTTPClient) CreateConfig(ctx context.Context, envID int64, in model.CreateConfig) (*model.Config, error) {
	var cfg model.Config
	if err := c.doJSON(ctx, http.MethodPost, environmentPath(envID)+"/configs", in, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *HTTPClient) GetConfig(ctx context.Context, envID, id int64) (*model.Config, error) {
	var cfg model.Config
	if err := c.doJSON(ctx, http.MethodGet, configPath(envID, id), nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *HTTPClient) ListConfigs(ctx context.Context, envID int64, q model.PageQuery) (*model.Page[*model.ConfigSummary], error) {
	var page model.Page[*model.ConfigSummary]
	if err := c.doJSON(ctx, http.MethodGet, environmentPath(envID)+"/configs"+pageParams(q), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *HTTPClient) DeleteConfig(ctx context.Context, envID, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, configPath(envID, id), nil, nil)
}

// --- Health ---

// Health returns the server's health report. An unhealthy server answers 503
// with the same body, which is returned alongside the *APIError.
func (c *HTTPClient) Health(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	err := c.doJSON(ctx, http.MethodGet, "/health", nil, &status)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable {
		if jerr := json.Unmarshal(apiErr.body, &status); jerr == nil && status.Status != "" {
			return &status, err
		}
	}
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// --- internal helpers ---

func environmentPath(id int64) string {
	return "/environments/" + strconv.FormatInt(id, 10)
}

func configPath(envID, id int64) string {
	return environmentPath(envID) + "/configs/" + strconv.FormatInt(id, 10)
}

func pageParams(q model.PageQuery) string {
	v := url.Values{}
	if q.NextPage != "" {
		v.Set("next_page", q.NextPage)
	}
	if q.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(q.PageSize))
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

// APIError represents an error response from the server.
type APIError struct {
	StatusCode  int
	Code        string
	Message     string
	Description string

	body []byte
}

func (e *APIError) Error() string {
	if e.Description != "" && e.Description != e.Message {
		return fmt.Sprintf("HTTP %d: %s (%s)", e.StatusCode, e.Message, e.Description)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded (for DELETE/204 responses).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	// 204 No Content: success with no body.
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, body: respBody}
		var errResp struct {
			Code        string `json:"code"`
			Message     string `json:"message"`
			Description string `json:"description"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Message != "" {
			apiErr.Code = errResp.Code
			apiErr.Message = errResp.Message
			apiErr.Description = errResp.Description
		} else {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		return apiErr
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
