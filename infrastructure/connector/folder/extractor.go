package folder

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// maxExtractedBytes bounds the extractor response.
const maxExtractedBytes = 8 << 20

// ExtractorClient calls the external text extraction service, which
// converts binary document formats (PDF, Office) to plain text. The
// service accepts a multipart upload on POST /extract and replies with
// text/plain.
type ExtractorClient struct {
	baseURL string
	client  *http.Client
}

// NewExtractorClient creates a client for the extractor at baseURL. A
// nil client uses a default with a 60 second timeout; extraction of
// large PDFs is slow.
func NewExtractorClient(baseURL string, client *http.Client) *ExtractorClient {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &ExtractorClient{baseURL: baseURL, client: client}
}

// Extract uploads the file at path and returns the extracted text.
func (e *ExtractorClient) Extract(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		part, err := form.CreateFormFile("file", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = form.Close()
		}
		_ = pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/extract", pr)
	if err != nil {
		return "", fmt.Errorf("build extractor request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call extractor: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("extractor returned status %d", resp.StatusCode)
	}

	text, err := io.ReadAll(io.LimitReader(resp.Body, maxExtractedBytes))
	if err != nil {
		return "", fmt.Errorf("read extractor response: %w", err)
	}
	return string(text), nil
}
