package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxResponseBytes = 4 << 20

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// doRequest sends req and returns the body of a 2xx response.
func doRequest(ctx context.Context, client *http.Client, req *http.Request, userAgent string) ([]byte, error) {
	req = req.WithContext(ctx)
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}
