package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/dukerupert/fridgetracker/internal/model"
)

// maxDocumentSize caps how much of a response body is read.
const maxDocumentSize = 8 << 20

// HTTPStore keeps the document behind a plain HTTP endpoint that versions it
// with ETags and honours If-Match / If-None-Match on PUT.
type HTTPStore struct {
	url        string
	token      string
	httpClient *http.Client
}

type HTTPOption func(*HTTPStore)

// WithBearerToken sends an Authorization header on every request.
func WithBearerToken(token string) HTTPOption {
	return func(s *HTTPStore) {
		s.token = token
	}
}

func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPStore) {
		s.httpClient = c
	}
}

func NewHTTPStore(url string, opts ...HTTPOption) *HTTPStore {
	s := &HTTPStore{
		url: url,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HTTPStore) newRequest(ctx context.Context, method string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	return req, nil
}

func (s *HTTPStore) Fetch(ctx context.Context) (Snapshot, error) {
	req, err := s.newRequest(ctx, http.MethodGet, nil)
	if err != nil {
		return Snapshot{}, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch document: %w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Snapshot{}, statusError("fetch document", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return Snapshot{}, fmt.Errorf("read document: %w: %w", ErrUnavailable, err)
	}
	return decodeSnapshot("fetch document", data, resp.Header.Get("ETag"))
}

func (s *HTTPStore) Version(ctx context.Context) (string, error) {
	req, err := s.newRequest(ctx, http.MethodHead, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch version: %w: %w", ErrUnavailable, err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError("fetch version", resp.StatusCode)
	}
	etag := resp.Header.Get("ETag")
	if etag == "" {
		return "", fmt.Errorf("fetch version: response has no ETag: %w", ErrUnavailable)
	}
	return etag, nil
}

func (s *HTTPStore) Write(ctx context.Context, expected string, doc *model.Document) (string, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	req, err := s.newRequest(ctx, http.MethodPut, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if expected == "" {
		req.Header.Set("If-None-Match", "*")
	} else {
		req.Header.Set("If-Match", expected)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("write document: %w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxDocumentSize))

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent {
		return "", statusError("write document", resp.StatusCode, http.StatusConflict, http.StatusPreconditionFailed)
	}
	etag := resp.Header.Get("ETag")
	if etag == "" {
		return "", fmt.Errorf("write document: response has no ETag: %w", ErrUnavailable)
	}
	return etag, nil
}
