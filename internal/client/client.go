// Package client provides an HTTP client for the sprocket daemon API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sprocket/internal/api"
	"sprocket/internal/services"
)

const component = "client"

type Client struct {
	base string
	http *http.Client
}

type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// New returns a client for a daemon listening at addr (host:port or URL).
func New(addr string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return nil, services.Wrap(services.ErrValidation, component, "new", "daemon address is required", nil)
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	c := &Client{
		base: strings.TrimRight(trimmed, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Status(ctx context.Context) (api.StatusResponse, error) {
	var out api.StatusResponse
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &out)
	return out, err
}

func (c *Client) SubmitOperation(ctx context.Context, req api.SubmitOperationRequest) (api.JobView, error) {
	var out api.JobResponse
	if err := c.do(ctx, http.MethodPost, "/api/jobs", req, &out); err != nil {
		return api.JobView{}, err
	}
	return out.Job, nil
}

func (c *Client) SubmitProfile(ctx context.Context, req api.SubmitProfileRequest) (api.JobView, error) {
	var out api.JobResponse
	if err := c.do(ctx, http.MethodPost, "/api/jobs/profile", req, &out); err != nil {
		return api.JobView{}, err
	}
	return out.Job, nil
}

func (c *Client) SubmitWorkflow(ctx context.Context, req api.SubmitWorkflowRequest) ([]api.JobView, error) {
	var out api.JobListResponse
	if err := c.do(ctx, http.MethodPost, "/api/jobs/workflow", req, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

func (c *Client) GetJob(ctx context.Context, id string) (api.JobView, error) {
	var out api.JobResponse
	if err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, &out); err != nil {
		return api.JobView{}, err
	}
	return out.Job, nil
}

func (c *Client) ListJobs(ctx context.Context, statusFilter string) ([]api.JobView, error) {
	path := "/api/jobs"
	if trimmed := strings.TrimSpace(statusFilter); trimmed != "" {
		path += "?status=" + url.QueryEscape(trimmed)
	}
	var out api.JobListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

func (c *Client) CancelJob(ctx context.Context, id string) (bool, error) {
	var out api.CancelResponse
	if err := c.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(id)+"/cancel", nil, &out); err != nil {
		return false, err
	}
	return out.Cancelled, nil
}

func (c *Client) RetryFailed(ctx context.Context, ids ...string) ([]api.JobView, error) {
	var out api.JobListResponse
	if err := c.do(ctx, http.MethodPost, "/api/jobs/retry", api.RetryRequest{IDs: ids}, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

func (c *Client) ClearCompleted(ctx context.Context) (int64, error) {
	var out api.ClearResponse
	if err := c.do(ctx, http.MethodDelete, "/api/jobs/completed", nil, &out); err != nil {
		return 0, err
	}
	return out.Removed, nil
}

func (c *Client) ClearFailed(ctx context.Context) (int64, error) {
	var out api.ClearResponse
	if err := c.do(ctx, http.MethodDelete, "/api/jobs/failed", nil, &out); err != nil {
		return 0, err
	}
	return out.Removed, nil
}

func (c *Client) Profiles(ctx context.Context) ([]api.ProfileView, error) {
	var out api.ProfileListResponse
	if err := c.do(ctx, http.MethodGet, "/api/profiles", nil, &out); err != nil {
		return nil, err
	}
	return out.Profiles, nil
}

func (c *Client) Workflows(ctx context.Context) ([]api.WorkflowView, error) {
	var out api.WorkflowListResponse
	if err := c.do(ctx, http.MethodGet, "/api/workflows", nil, &out); err != nil {
		return nil, err
	}
	return out.Workflows, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return services.Wrap(services.ErrValidation, component, "request", "encode request body", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return services.Wrap(services.ErrValidation, component, "request", "build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, component, "request", "daemon unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrExternalTool, component, "response", "decode response body", err)
	}
	return nil
}

// decodeError maps HTTP error status back onto the service sentinels so
// callers can use errors.Is on either side of the wire.
func (c *Client) decodeError(resp *http.Response) error {
	message := fmt.Sprintf("daemon returned status %d", resp.StatusCode)
	var payload api.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		message = payload.Error
	}

	marker := services.ErrExternalTool
	switch resp.StatusCode {
	case http.StatusBadRequest:
		marker = services.ErrValidation
	case http.StatusNotFound:
		marker = services.ErrNotFound
	}
	return services.Wrap(marker, component, "response", message, nil)
}
