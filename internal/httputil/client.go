package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxResponseBytes caps how much of a response body PostJSON will read.
const maxResponseBytes = 1 << 20

// HTTPClient is the part of *http.Client that PostJSON needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// PostJSON sends in as a JSON body to url and decodes the response into out.
// Responses with a 4xx status are still decoded, since the server reports
// validation failures as JSON; the status is returned alongside.
func PostJSON(ctx context.Context, c HTTPClient, url string, in, out any) (int, error) {
	if c == nil {
		c = http.DefaultClient
	}
	body, err := json.Marshal(in)
	if err != nil {
		return 0, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return 0, fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return resp.StatusCode, fmt.Errorf("server returned %s: %s", resp.Status, bytes.TrimSpace(data))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
