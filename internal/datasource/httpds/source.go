package httpds

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrStatus is wrapped by Source errors for non-2xx responses.
var ErrStatus = errors.New("httpds: unexpected status")

// Source reads the export from a URL.
type Source struct {
	Client  *Client
	URL     string
	Headers http.Header
}

// NewSource binds a client to url.
func NewSource(c *Client, url string) *Source {
	return &Source{Client: c, URL: url}
}

// Open issues a GET and returns the response body.
func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := s.Client.Get(ctx, s.URL, s.Headers)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.URL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("get %s: %w %d", s.URL, ErrStatus, resp.StatusCode)
	}
	return resp.Body, nil
}

// Peek fetches at most n leading bytes, asking the server for a byte range.
// The result is capped at n even when the server ignores the Range header.
func (s *Source) Peek(ctx context.Context, n int) ([]byte, error) {
	if n <= 0 {
		return nil, errors.New("httpds: n must be > 0")
	}
	h := make(http.Header, len(s.Headers)+1)
	for k, vs := range s.Headers {
		h[k] = append([]string(nil), vs...)
	}
	h.Set("Range", fmt.Sprintf("bytes=0-%d", n-1))

	resp, err := s.Client.Get(ctx, s.URL, h)
	if err != nil {
		return nil, fmt.Errorf("peek %s: %w", s.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, fmt.Errorf("peek %s: %w %d", s.URL, ErrStatus, resp.StatusCode)
	}

	buf, err := io.ReadAll(io.LimitReader(resp.Body, int64(n)))
	if err != nil {
		return nil, fmt.Errorf("peek %s: %w", s.URL, err)
	}
	return buf, nil
}
