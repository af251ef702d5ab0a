package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dukerupert/fridgetracker/internal/model"
)

// CredentialSource supplies the access token for a remote and forgets it
// when the remote rejects it.
type CredentialSource interface {
	Credential(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// StaticCredential is a fixed token. Clearing it is a no-op.
type StaticCredential string

func (c StaticCredential) Credential(context.Context) (string, error) { return string(c), nil }
func (StaticCredential) Clear(context.Context) error                 { return nil }

// GitHubConfig locates the document inside a repository.
type GitHubConfig struct {
	APIURL string
	Owner  string
	Repo   string
	Path   string
	Branch string
}

// GitHubStore keeps the document as a file in a GitHub repository using the
// contents API. The version is the blob sha.
type GitHubStore struct {
	cfg        GitHubConfig
	creds      CredentialSource
	httpClient *http.Client
	now        func() time.Time
}

func NewGitHubStore(cfg GitHubConfig, creds CredentialSource) *GitHubStore {
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.github.com"
	}
	if cfg.Path == "" {
		cfg.Path = "fridge_data.json"
	}
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	return &GitHubStore{
		cfg:   cfg,
		creds: creds,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		now: time.Now,
	}
}

type githubContent struct {
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type githubPutRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch"`
}

type githubPutResponse struct {
	Content githubContent `json:"content"`
}

func (s *GitHubStore) contentsURL() string {
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		strings.TrimRight(s.cfg.APIURL, "/"),
		url.PathEscape(s.cfg.Owner),
		url.PathEscape(s.cfg.Repo),
		strings.TrimLeft(s.cfg.Path, "/"))
}

func (s *GitHubStore) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	token, err := s.creds.Credential(ctx)
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	if token == "" {
		return nil, fmt.Errorf("no github token configured: %w", ErrUnauthorized)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}

func (s *GitHubStore) get(ctx context.Context, op string) (githubContent, error) {
	target := s.contentsURL() + "?ref=" + url.QueryEscape(s.cfg.Branch)
	req, err := s.newRequest(ctx, http.MethodGet, target, nil)
	if err != nil {
		return githubContent{}, fmt.Errorf("%s: %w", op, err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return githubContent{}, fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return githubContent{}, statusError(op, resp.StatusCode)
	}
	var c githubContent
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDocumentSize)).Decode(&c); err != nil {
		return githubContent{}, fmt.Errorf("%s: decode response: %w: %w", op, ErrUnavailable, err)
	}
	return c, nil
}

func (s *GitHubStore) Fetch(ctx context.Context) (Snapshot, error) {
	c, err := s.get(ctx, "fetch document")
	if err != nil {
		return Snapshot{}, err
	}
	if c.Encoding != "" && c.Encoding != "base64" {
		return Snapshot{}, fmt.Errorf("fetch document: unsupported encoding %q: %w", c.Encoding, ErrUnavailable)
	}
	// The API wraps base64 content at 60 columns.
	data, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(c.Content, "\n", ""))
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch document: decode content: %w", err)
	}
	return decodeSnapshot("fetch document", data, c.SHA)
}

func (s *GitHubStore) Version(ctx context.Context) (string, error) {
	c, err := s.get(ctx, "fetch version")
	if err != nil {
		return "", err
	}
	return c.SHA, nil
}

func (s *GitHubStore) Write(ctx context.Context, expected string, doc *model.Document) (string, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	body, err := json.Marshal(githubPutRequest{
		Message: "Update inventory " + s.now().UTC().Format(time.RFC3339),
		Content: base64.StdEncoding.EncodeToString(data),
		SHA:     expected,
		Branch:  s.cfg.Branch,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := s.newRequest(ctx, http.MethodPut, s.contentsURL(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("write document: %w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", statusError("write document", resp.StatusCode,
			http.StatusConflict, http.StatusPreconditionFailed, http.StatusUnprocessableEntity)
	}
	var pr githubPutResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return "", fmt.Errorf("write document: decode response: %w: %w", ErrUnavailable, err)
	}
	if pr.Content.SHA == "" {
		return "", fmt.Errorf("write document: response has no sha: %w", ErrUnavailable)
	}
	return pr.Content.SHA, nil
}
