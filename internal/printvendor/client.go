package printvendor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2/clientcredentials"
)

// VendorClient is the outbound surface to the print vendor. It is an injected
// capability; tests substitute a fake instead of stubbing HTTP.
type VendorClient interface {
	CreateJob(ctx context.Context, req createJobRequest) (*Job, error)
	GetJob(ctx context.Context, jobID string) (*Job, error)
}

// Client talks to the vendor's print API. Every call performs a fresh
// client-credentials token exchange: tokens are short-lived and submissions
// are rare, so nothing is cached across calls.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient returns a Client. httpClient may be nil for http.DefaultClient.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{cfg: cfg, httpClient: httpClient}
}

func (c *Client) token(ctx context.Context) (string, error) {
	cc := clientcredentials.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		TokenURL:     c.cfg.TokenURL,
	}
	tok, err := cc.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("vendor token exchange: %w", err)
	}
	return tok.AccessToken, nil
}

// CreateJob submits a print job.
func (c *Client) CreateJob(ctx context.Context, req createJobRequest) (*Job, error) {
	var job Job
	if err := c.do(ctx, http.MethodPost, c.cfg.BaseURL+"/print-jobs/", req, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJob polls a print job's status.
func (c *Client) GetJob(ctx context.Context, jobID string) (*Job, error) {
	var job Job
	if err := c.do(ctx, http.MethodGet, c.cfg.BaseURL+"/print-jobs/"+jobID+"/", nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *Client) do(ctx context.Context, method, url string, reqBody, out interface{}) error {
	accessToken, err := c.token(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vendor %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read vendor response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("vendor %s %s: status %d: %s", method, url, resp.StatusCode, respBody)
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode vendor response: %w", err)
		}
	}
	return nil
}
