// Package remote holds the HTTP plumbing shared by the embedding backends
// that run out of process.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// maxErrorBody caps how much of a failed response ends up in an error.
const maxErrorBody = 4 << 10

// Client talks JSON to one backend. Every failure it returns wraps
// domain.ErrEmbeddingUnavailable and is prefixed with Provider.
type Client struct {
	Provider string
	BaseURL  string
	HTTP     *http.Client
	// Header is added to every request, e.g. Authorization.
	Header http.Header
}

// Unavailable formats a failure that wraps domain.ErrEmbeddingUnavailable.
func (c *Client) Unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", domain.ErrEmbeddingUnavailable, c.Provider, fmt.Sprintf(format, args...))
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	for k, vals := range c.Header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, c.Unavailable("%v", err)
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, c.Unavailable("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

// PostJSON sends in to path and decodes a 2xx reply into out.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: encoding request: %w", c.Provider, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: building request: %w", c.Provider, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return c.Unavailable("decoding response: %v", err)
	}
	return nil
}

// Reachable issues a GET to a cheap endpoint to check reachability and
// credentials without running a model.
func (c *Client) Reachable(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("%s: building request: %w", c.Provider, err)
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// Batches splits texts into consecutive groups of at most size.
// A size below one yields a single group.
func Batches(texts []string, size int) [][]string {
	if size < 1 || len(texts) <= size {
		return [][]string{texts}
	}
	groups := make([][]string, 0, (len(texts)+size-1)/size)
	for start := 0; start < len(texts); start += size {
		groups = append(groups, texts[start:min(start+size, len(texts))])
	}
	return groups
}

// Float32 narrows a JSON-decoded vector.
func Float32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
