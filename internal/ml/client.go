// Package ml is a typed HTTP client for the Plant Scope ML service,
// which classifies plant leaf images and generates treatment advice.
package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Analysis is the ML service's diagnosis for one image.
type Analysis struct {
	Disease    string  `json:"disease"`
	Confidence float64 `json:"confidence"`
	ModelUsed  string  `json:"model_used"`
	Treatment  string  `json:"treatment"`
}

// Health reports which models the ML service has loaded.
type Health struct {
	Status string `json:"status"`
	Models struct {
		VitLoaded           bool `json:"vit_loaded"`
		GeminiVisionEnabled bool `json:"gemini_vision_enabled"`
		GeminiTextEnabled   bool `json:"gemini_text_enabled"`
	} `json:"models"`
}

// Client calls the ML service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a client for the ML service at baseURL.
// A non-positive timeout falls back to the default.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("ml service url is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Analyze uploads an image to /analyze and returns the diagnosis plus
// treatment advice.
func (c *Client) Analyze(ctx context.Context, filename string, data []byte) (Analysis, error) {
	var analysis Analysis
	if err := c.postImage(ctx, "/analyze", filename, data, &analysis); err != nil {
		return Analysis{}, err
	}
	return analysis, nil
}

// Predict uploads an image to /predict and returns the diagnosis only.
func (c *Client) Predict(ctx context.Context, filename string, data []byte) (Analysis, error) {
	var analysis Analysis
	if err := c.postImage(ctx, "/predict", filename, data, &analysis); err != nil {
		return Analysis{}, err
	}
	return analysis, nil
}

// CheckHealth reports the ML service's model status.
func (c *Client) CheckHealth(ctx context.Context) (Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return Health{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Health{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Health{}, fmt.Errorf("ml service health check returned %d", resp.StatusCode)
	}

	var health Health
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return Health{}, err
	}
	return health, nil
}

func (c *Client) postImage(ctx context.Context, path, filename string, data []byte, out any) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a little of the body for the error message without
		// trusting the service to keep it small.
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ml service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
