// Package report turns recorded documents into invoice PDFs through a
// Gotenberg sidecar.
package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// renderTimeout caps one HTML-to-PDF conversion round trip.
const renderTimeout = 30 * time.Second

// Client talks to a Gotenberg service over HTTP.
type Client struct {
	baseURL string
	hc      *http.Client
}

// NewClient constructs a client for the Gotenberg service at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: renderTimeout},
	}
}

// Ping reports whether the Gotenberg service answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("report: build health request: %w", err)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("report: health check: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("report: gotenberg health status %d", resp.StatusCode)
	}
	return nil
}

// RenderHTML converts one HTML page into a PDF via Gotenberg's Chromium
// route. The page is uploaded as index.html in a multipart form.
func (c *Client) RenderHTML(ctx context.Context, html string) ([]byte, error) {
	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	page, err := mw.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, fmt.Errorf("report: build form: %w", err)
	}
	if _, err := io.WriteString(page, html); err != nil {
		return nil, fmt.Errorf("report: write page: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("report: close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/forms/chromium/convert/html", &form)
	if err != nil {
		return nil, fmt.Errorf("report: build convert request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("report: convert: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("report: convert status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
