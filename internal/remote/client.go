package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"voxtrace/internal/analysis"
	"voxtrace/internal/config"
	"voxtrace/internal/logging"
	"voxtrace/internal/services"
)

const requestIDHeader = "X-Request-ID"

// Client talks to the analysis backend's REST API.
type Client struct {
	baseURL    string
	userID     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient builds a backend client from application configuration.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    cfg.Service.BaseURL,
		userID:     cfg.Service.UserID,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout()},
		logger:     logging.NewComponentLogger(logger, "remote"),
	}
}

// Submit uploads a recording and returns the backend's analysis identifier.
func (c *Client) Submit(ctx context.Context, filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "remote", "submit", fmt.Sprintf("open %s", filePath), err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "remote", "submit", "build multipart body", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", services.Wrap(services.ErrValidation, "remote", "submit", "read recording", err)
	}
	if err := writer.Close(); err != nil {
		return "", services.Wrap(services.ErrValidation, "remote", "submit", "finalize multipart body", err)
	}

	endpoint := fmt.Sprintf("%s/api/v1/analysis/upload/%s", c.baseURL, c.userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "remote", "submit", "build request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, reqCtx, err := c.do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "remote", "submit", "upload recording", err)
	}
	defer drain(resp)

	if err := c.checkStatus(resp, "submit"); err != nil {
		return "", err
	}

	var payload struct {
		AnalysisID json.Number `json:"analysis_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", services.Wrap(services.ErrProtocol, "remote", "submit", "decode response", err)
	}
	jobID := strings.TrimSpace(payload.AnalysisID.String())
	if jobID == "" {
		return "", services.Wrap(services.ErrProtocol, "remote", "submit", "response missing analysis_id", nil)
	}

	logging.WithContext(reqCtx, c.logger).Info("recording submitted",
		logging.String(logging.FieldJobID, jobID))
	return jobID, nil
}

// FetchStatus retrieves the backend's view of one analysis job.
func (c *Client) FetchStatus(ctx context.Context, jobID string) (analysis.StatusReport, error) {
	endpoint := fmt.Sprintf("%s/api/v1/analysis/results/%s", c.baseURL, jobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return analysis.StatusReport{}, services.Wrap(services.ErrValidation, "remote", "fetch-status", "build request", err)
	}

	resp, reqCtx, err := c.do(req)
	if err != nil {
		return analysis.StatusReport{}, services.Wrap(services.ErrTransient, "remote", "fetch-status", jobID, err)
	}
	defer drain(resp)

	if err := c.checkStatus(resp, "fetch-status"); err != nil {
		return analysis.StatusReport{}, err
	}

	var payload struct {
		Status   string          `json:"status"`
		Message  string          `json:"message"`
		Progress int             `json:"progress"`
		Results  json.RawMessage `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return analysis.StatusReport{}, services.Wrap(services.ErrProtocol, "remote", "fetch-status", jobID, err)
	}

	report := analysis.StatusReport{
		Status:       analysis.NormalizeRemoteStatus(payload.Status),
		Progress:     payload.Progress,
		Results:      payload.Results,
		ErrorMessage: payload.Message,
	}
	logging.WithContext(reqCtx, c.logger).Debug("status fetched",
		logging.String("remote_status", string(report.Status)),
		logging.Int("progress", report.Progress))
	return report, nil
}

// Retry asks the backend to re-run a failed analysis.
func (c *Client) Retry(ctx context.Context, jobID string) error {
	endpoint := fmt.Sprintf("%s/api/v1/analysis/retry/%s", c.baseURL, jobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return services.Wrap(services.ErrValidation, "remote", "retry", "build request", err)
	}

	resp, _, err := c.do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "remote", "retry", jobID, err)
	}
	defer drain(resp)

	return c.checkStatus(resp, "retry")
}

// Delete removes an analysis record from the backend.
func (c *Client) Delete(ctx context.Context, jobID string) error {
	endpoint := fmt.Sprintf("%s/api/v1/analysis/%s", c.baseURL, jobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return services.Wrap(services.ErrValidation, "remote", "delete", "build request", err)
	}

	resp, _, err := c.do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "remote", "delete", jobID, err)
	}
	defer drain(resp)

	return c.checkStatus(resp, "delete")
}

// do stamps the request with a correlation id, reusing one already on the
// context so a caller's id survives into the outgoing header and the logs.
func (c *Client) do(req *http.Request) (*http.Response, context.Context, error) {
	ctx := req.Context()
	requestID, ok := services.RequestIDFromContext(ctx)
	if !ok {
		requestID = uuid.NewString()
		ctx = services.WithRequestID(ctx, requestID)
		req = req.WithContext(ctx)
	}
	req.Header.Set(requestIDHeader, requestID)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ctx, err
	}
	return resp, ctx, nil
}

// checkStatus classifies non-2xx responses. Missing jobs are permanent,
// client errors indicate a request the backend will never accept, and
// everything else is retried with backoff.
func (c *Client) checkStatus(resp *http.Response, operation string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	detail := fmt.Sprintf("%s %s returned %s", resp.Request.Method, resp.Request.URL.Path, resp.Status)
	if msg := readErrorDetail(resp.Body); msg != "" {
		detail = fmt.Sprintf("%s: %s", detail, msg)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return services.Wrap(services.ErrNotFound, "remote", operation, detail, nil)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return services.Wrap(services.ErrValidation, "remote", operation, detail, nil)
	default:
		return services.Wrap(services.ErrTransient, "remote", operation, detail, nil)
	}
}

func readErrorDetail(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 2048))
	if err != nil {
		return ""
	}
	var payload struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Detail != "" {
		return payload.Detail
	}
	return strings.TrimSpace(string(data))
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck
	resp.Body.Close()
}
