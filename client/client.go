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
	"strings"
	"time"

	"web-dlp/constant"
	"web-dlp/dto"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Code       string
	JobStatus  constant.JobStatus
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("web-dlp: http %d", e.StatusCode)
	}
	return fmt.Sprintf("web-dlp: http %d: %s", e.StatusCode, e.Code)
}

func IsNotReady(err error) bool {
	return hasCode(err, "not_ready")
}

func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func hasCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *Client) Submit(ctx context.Context, videoURL string, format constant.Format) (dto.CreateJobResponse, error) {
	body, err := json.Marshal(dto.CreateJobRequest{URL: videoURL, Format: format})
	if err != nil {
		return dto.CreateJobResponse{}, err
	}

	var out dto.CreateJobResponse
	err = c.doJSON(ctx, http.MethodPost, "/request", bytes.NewReader(body), &out)
	return out, err
}

func (c *Client) Status(ctx context.Context, id string) (dto.JobStatusResponse, error) {
	var out dto.JobStatusResponse
	err := c.doJSON(ctx, http.MethodGet, "/status?id="+url.QueryEscape(id), nil, &out)
	return out, err
}

func (c *Client) Stats(ctx context.Context) (dto.StatsResponse, error) {
	var out dto.StatsResponse
	err := c.doJSON(ctx, http.MethodGet, "/stats", nil, &out)
	return out, err
}

// Result copies the finished artifact into w and returns the number of bytes
// written.
func (c *Client) Result(ctx context.Context, id string, w io.Writer) (int64, error) {
	resp, err := c.do(ctx, http.MethodGet, "/result?id="+url.QueryEscape(id), nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return io.Copy(w, resp.Body)
}

// Wait polls the job every interval until it is finished or failed.
func (c *Client) Wait(ctx context.Context, id string, interval time.Duration) (dto.JobStatusResponse, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last dto.JobStatusResponse
	for {
		status, err := c.Status(ctx, id)
		if err != nil {
			return last, err
		}
		last = status
		if status.Status.IsTerminal() {
			return status, nil
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body io.Reader, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

// do returns the response only for 2xx answers; the caller closes its body.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	apiErr := &APIError{StatusCode: resp.StatusCode}
	var payload dto.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload); err == nil {
		apiErr.Code = payload.Error
		apiErr.JobStatus = payload.Status
	}
	return nil, apiErr
}
