package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/foodscan/internal/domain"
)

const (
	predictPath   = "/predict"
	labelsPath    = "/labels"
	feedbackPath  = "/feedback"
	modelInfoPath = "/model-info"
	healthPath    = "/healthz"

	maxErrorBody = 512
)

// Client talks to the classification, label, feedback and model-info endpoints
// that share one base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient validates baseURL and returns a client whose requests never
// outlive timeout.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("backend url %q must use http or https", baseURL)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("backend_client"),
	}, nil
}

type predictResponse struct {
	Items   []domain.DetectionItem `json:"items"`
	ImageID string                 `json:"image_id"`
	SHA256  string                 `json:"sha256"`
}

// Predict uploads the image as multipart field "file". The returned result has
// no ImageID; the caller attaches the locally known file name.
func (c *Client) Predict(ctx context.Context, fileName string, image []byte) (domain.ClassificationResult, error) {
	if fileName == "" {
		fileName = "image.jpg"
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("close multipart writer: %w", err)
	}

	var resp predictResponse
	if err := c.do(ctx, http.MethodPost, predictPath, writer.FormDataContentType(), body, &resp); err != nil {
		return domain.ClassificationResult{}, err
	}

	c.logger.Debug("classification received", zap.Int("items", len(resp.Items)), zap.String("server_image_id", resp.ImageID))
	return domain.ClassificationResult{
		Items:         resp.Items,
		ServerImageID: resp.ImageID,
		SHA256:        resp.SHA256,
	}, nil
}

// Labels fetches the raw correction labels.
func (c *Client) Labels(ctx context.Context) ([]string, error) {
	var resp struct {
		Labels []string `json:"labels"`
	}
	if err := c.do(ctx, http.MethodGet, labelsPath, "", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Labels, nil
}

// ModelInfo fetches the display name of the deployed model.
func (c *Client) ModelInfo(ctx context.Context) (string, error) {
	var resp struct {
		Model string `json:"model"`
	}
	if err := c.do(ctx, http.MethodGet, modelInfoPath, "", nil, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Model) == "" {
		return "", &domain.ServiceError{Endpoint: modelInfoPath, StatusCode: http.StatusOK, Message: "empty model name"}
	}
	return resp.Model, nil
}

// SubmitFeedback posts record to the feedback sink. The sink may answer 200
// with {"status":"error"}, which is reported as a ServiceError.
func (c *Client) SubmitFeedback(ctx context.Context, record domain.FeedbackRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal feedback: %w", err)
	}

	var resp struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, feedbackPath, "application/json", bytes.NewReader(payload), &resp); err != nil {
		return err
	}
	if strings.EqualFold(resp.Status, "error") {
		return &domain.ServiceError{Endpoint: feedbackPath, StatusCode: http.StatusOK, Message: resp.Message}
	}
	return nil
}

// Health checks the backend health endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, healthPath, "", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("request failed", zap.String("path", path), zap.Error(err))
		return &domain.NetworkError{Endpoint: path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.NetworkError{Endpoint: path, Err: fmt.Errorf("read response body: %w", err)}
	}

	c.logger.Debug("request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(started)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &domain.ServiceError{Endpoint: path, StatusCode: resp.StatusCode, Message: truncate(string(data), maxErrorBody)}
	}
	if out == nil {
		return nil
	}
	if err := decodeObject(data, out); err != nil {
		return &domain.ServiceError{Endpoint: path, StatusCode: resp.StatusCode, Err: err}
	}
	return nil
}

func decodeObject(data []byte, out interface{}) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return errors.New("response body is not a JSON object")
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
