// Package ocr provides an HTTP client for a self-hosted OCR sidecar.
//
// The sidecar exposes a single endpoint that accepts raw document bytes
// and returns recognized text per page as JSON. Any tesseract-server
// style deployment matching that contract works.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/questanalytics/questa/ai"
)

// Client implements ai.OCRService against an HTTP OCR sidecar.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ ai.OCRService = (*Client)(nil)

// NewClient creates an OCR client for the given sidecar base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: slog.Default().With("component", "ocr-client"),
	}
}

// ocrResponse matches the sidecar's JSON reply.
type ocrResponse struct {
	Pages []string `json:"pages"`
}

// ExtractText sends the document bytes to the sidecar and returns the
// recognized text per page.
func (c *Client) ExtractText(ctx context.Context, filename string, data []byte) ([]string, error) {
	endpoint := c.baseURL + "/ocr?filename=" + url.QueryEscape(filename)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	c.logger.Debug("sending document to OCR sidecar", "filename", filename, "bytes", len(data))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("OCR request failed", "filename", filename, "err", err)
		return nil, fmt.Errorf("ocr request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("ocr sidecar returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding ocr response: %w", err)
	}

	c.logger.Debug("OCR extraction complete", "filename", filename, "pages", len(parsed.Pages))
	return parsed.Pages, nil
}
