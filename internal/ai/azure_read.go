// azure_read.go - Azure Computer Vision Read API client

package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/bosocmputer/ocr_text_extractor/internal/ratelimit"
)

const azureReadService = "azure-read"

// AzureReadClient talks to the asynchronous Read endpoints of a Computer Vision resource
type AzureReadClient struct {
	endpoint   string
	apiKey     string
	apiVersion string
	client     *http.Client
	limiter    *ratelimit.RateLimiter
}

// NewAzureReadClient creates a Read API client.
// limiter may be nil to disable client-side throttling.
func NewAzureReadClient(endpoint, apiKey, apiVersion string, timeout time.Duration, limiter *ratelimit.RateLimiter) *AzureReadClient {
	return &AzureReadClient{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		apiVersion: apiVersion,
		client: &http.Client{
			Timeout: timeout,
		},
		limiter: limiter,
	}
}

// Submit uploads the document and returns the operation ID taken from Operation-Location
func (a *AzureReadClient) Submit(ctx context.Context, data []byte) (string, error) {
	if err := a.wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		fmt.Sprintf("%s/vision/%s/read/analyze", a.endpoint, a.apiVersion),
		bytes.NewReader(data),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Ocp-Apim-Subscription-Key", a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusAccepted {
		return "", newHTTPError(azureReadService, resp, body)
	}

	operationID, err := operationIDFromLocation(resp.Header.Get("Operation-Location"))
	if err != nil {
		return "", err
	}
	return operationID, nil
}

// GetResult fetches the current state of a Read operation
func (a *AzureReadClient) GetResult(ctx context.Context, operationID string) (*ReadOperation, error) {
	if err := a.wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		fmt.Sprintf("%s/vision/%s/read/analyzeResults/%s", a.endpoint, a.apiVersion, url.PathEscape(operationID)),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, newHTTPError(azureReadService, resp, body)
	}

	var operation ReadOperation
	if err := json.Unmarshal(body, &operation); err != nil {
		return nil, fmt.Errorf("failed to parse read result: %w", err)
	}
	if operation.Status == "" {
		return nil, fmt.Errorf("read result for operation %s has no status", operationID)
	}

	return &operation, nil
}

func (a *AzureReadClient) wait(ctx context.Context) error {
	if a.limiter == nil {
		return nil
	}
	return a.limiter.Wait(ctx)
}

// operationIDFromLocation extracts the trailing path segment of an Operation-Location URL
func operationIDFromLocation(location string) (string, error) {
	if location == "" {
		return "", fmt.Errorf("response has no Operation-Location header")
	}

	u, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("invalid Operation-Location %q: %w", location, err)
	}

	id := path.Base(strings.TrimRight(u.Path, "/"))
	if id == "" || id == "." || id == "/" {
		return "", fmt.Errorf("no operation ID in Operation-Location %q", location)
	}
	return id, nil
}
