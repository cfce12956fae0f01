// Package hub publishes anchor/positive datasets to the Hugging Face Hub.
package hub

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the public Hub endpoint.
const DefaultBaseURL = "https://huggingface.co"

var (
	// ErrNoToken means no Hub token was configured.
	ErrNoToken = errors.New("HF_TOKEN not configured")
	// ErrInvalidFilename rejects names that could escape the data directory.
	ErrInvalidFilename = errors.New("invalid filename")
)

// Client talks to the Hub HTTP API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string) (*Client, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}, nil
}

// DatasetURL is the browser URL of a dataset repo.
func (c *Client) DatasetURL(repoID string) string {
	return c.baseURL + "/datasets/" + repoID
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	return c.httpClient.Do(req)
}

func statusError(op string, resp *http.Response) error {
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, string(respBody))
}

// WhoAmI returns the account name the token belongs to.
func (c *Client) WhoAmI(ctx context.Context) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/whoami-v2", "", nil)
	if err != nil {
		return "", fmt.Errorf("whoami: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", statusError("whoami", resp)
	}
	var who struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&who); err != nil {
		return "", fmt.Errorf("decode whoami: %w", err)
	}
	if who.Name == "" {
		return "", errors.New("whoami: empty account name")
	}
	return who.Name, nil
}

// createRepoRequest is the body for POST /api/repos/create.
type createRepoRequest struct {
	Name         string `json:"name"`
	Organization string `json:"organization,omitempty"`
	Type         string `json:"type"`
	Private      bool   `json:"private"`
}

// CreateRepo creates a dataset repo. An existing repo is not an error.
func (c *Client) CreateRepo(ctx context.Context, repoID string, private bool) error {
	req := createRepoRequest{Name: repoID, Type: "dataset", Private: private}
	if org, name, ok := strings.Cut(repoID, "/"); ok {
		req.Organization, req.Name = org, name
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal repo: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/repos/create", "application/json", body)
	if err != nil {
		return fmt.Errorf("create repo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusConflict {
		return nil
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return statusError("create repo "+repoID, resp)
	}
	return nil
}

type commitLine struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type commitHeader struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
}

type commitFile struct {
	Content  string `json:"content"`
	Path     string `json:"path"`
	Encoding string `json:"encoding"`
}

// UploadFile commits content at pathInRepo on the main branch.
func (c *Client) UploadFile(ctx context.Context, repoID, pathInRepo string, content []byte, message string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	lines := []commitLine{
		{Key: "header", Value: commitHeader{Summary: message}},
		{Key: "file", Value: commitFile{
			Content:  base64.StdEncoding.EncodeToString(content),
			Path:     pathInRepo,
			Encoding: "base64",
		}},
	}
	for _, l := range lines {
		if err := enc.Encode(l); err != nil {
			return fmt.Errorf("encode commit: %w", err)
		}
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/datasets/"+repoID+"/commit/main", "application/x-ndjson", buf.Bytes())
	if err != nil {
		return fmt.Errorf("upload %s: %w", pathInRepo, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return statusError("upload "+pathInRepo, resp)
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
