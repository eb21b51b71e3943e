package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"supportchat/internal/ports"
)

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 64 << 10
)

const (
	pathCategories  = "system/quick-categories"
	pathFAQs        = "faqs"
	pathSessions    = "chat/sessions"
	pathQA          = "llm/chat/sessions/%s/qa"
	pathMessages    = "chat/sessions/%s/messages"
	pathInquiries   = "inquiries"
	pathCustomers   = "customer/search"
	pathFeedback    = "chat/feedback"
	pathTranscribe  = "speech/transcribe"
	faqPageLimit    = 50
	faqOrderBy      = "id"
	sessionTitle    = "데스크톱 대화"
	sessionModelID  = 1
	recordingName   = "utterance.wav"
	recordingFormat = "audio/wav"
)

// Config controls the support backend client.
type Config struct {
	BaseURL string
	Timeout time.Duration

	// HTTPClient replaces the default client; Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client talks to the support backend REST API.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *zap.Logger
}

var (
	_ ports.Backend     = (*Client)(nil)
	_ ports.Transcriber = (*Client)(nil)
)

func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("backend base URL is not configured")
	}
	base, err := url.Parse(strings.TrimRight(raw, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid backend base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend base URL %q: scheme must be http or https", raw)
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{base: base, http: client, logger: logger}, nil
}

// endpoint resolves an escaped relative path against the base URL.
func (c *Client) endpoint(path string, query url.Values) string {
	ref, err := url.Parse(path)
	if err != nil {
		ref = &url.URL{Path: path}
	}
	if len(query) > 0 {
		ref.RawQuery = query.Encode()
	}
	return c.base.ResolveReference(ref).String()
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, c.endpoint(path, query), nil, "", out)
}

func (c *Client) postJSON(ctx context.Context, path string, in any, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, c.endpoint(path, nil), bytes.NewReader(body), "application/json", out)
}

func (c *Client) do(ctx context.Context, method, target string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("backend request",
		zap.String("method", method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Status: resp.StatusCode, Message: parseError(resp.StatusCode, payload)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", req.URL.Path, err)
	}
	return nil
}
