// Package langfuse is a minimal REST client for the Langfuse public API:
// prompt listing, prompt retrieval by label, and trace ingestion. It covers
// exactly the endpoints the workflow engine needs, nothing more.
package langfuse

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
)

// ErrNotConfigured is returned by the zero-value client; callers treat it
// like any other remote failure and fall back locally.
var ErrNotConfigured = errors.New("langfuse: client not configured")

const requestTimeout = 5 * time.Second

type Client struct {
	baseURL   string
	publicKey string
	secretKey string
	http      *http.Client
}

// New builds a client from a credential pair and host. Any empty argument
// yields a nil client, which every method tolerates.
func New(host, publicKey, secretKey string) *Client {
	if host == "" || publicKey == "" || secretKey == "" {
		return nil
	}
	return &Client{
		baseURL:   strings.TrimRight(host, "/"),
		publicKey: publicKey,
		secretKey: secretKey,
		http:      &http.Client{Timeout: requestTimeout},
	}
}

// Configured reports whether the client can reach a backend at all.
func (c *Client) Configured() bool { return c != nil }

// PromptEntry is one row of the listing endpoint. The same name appears
// once per version, each row carrying its numeric version and labels.
type PromptEntry struct {
	Name    string   `json:"name"`
	Version int      `json:"version"`
	Labels  []string `json:"labels"`
}

type listResponse struct {
	Data []PromptEntry `json:"data"`
}

// ListPrompts fetches the raw prompt listing.
func (c *Client) ListPrompts(ctx context.Context) ([]PromptEntry, error) {
	if c == nil {
		return nil, ErrNotConfigured
	}
	var out listResponse
	if err := c.getJSON(ctx, "/api/public/v2/prompts", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

type promptResponse struct {
	Name   string          `json:"name"`
	Type   string          `json:"type"`
	Prompt json.RawMessage `json:"prompt"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GetPrompt retrieves one template body by name. An empty label asks the
// service for its own current default version.
func (c *Client) GetPrompt(ctx context.Context, name, label string) (string, error) {
	if c == nil {
		return "", ErrNotConfigured
	}
	q := url.Values{}
	if label != "" {
		q.Set("label", label)
	}
	var out promptResponse
	if err := c.getJSON(ctx, "/api/public/v2/prompts/"+url.PathEscape(name), q, &out); err != nil {
		return "", err
	}
	// Text prompts carry a plain string; chat prompts carry a message list.
	var body string
	if err := json.Unmarshal(out.Prompt, &body); err == nil {
		return body, nil
	}
	var msgs []chatMessage
	if err := json.Unmarshal(out.Prompt, &msgs); err == nil {
		parts := make([]string, 0, len(msgs))
		for _, m := range msgs {
			parts = append(parts, m.Content)
		}
		return strings.Join(parts, "\n\n"), nil
	}
	return "", fmt.Errorf("langfuse: unexpected prompt payload for %q", name)
}

// IngestionEvent is one entry of an ingestion batch. Body shape depends on
// Type (trace-create, span-create, span-update, generation-create, ...).
type IngestionEvent struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Body      any    `json:"body"`
}

type ingestionRequest struct {
	Batch []IngestionEvent `json:"batch"`
}

// Ingest posts a batch of observability events. The endpoint answers 207
// for partially accepted batches; anything below 400 counts as delivered.
func (c *Client) Ingest(ctx context.Context, batch []IngestionEvent) error {
	if c == nil {
		return ErrNotConfigured
	}
	if len(batch) == 0 {
		return nil
	}
	payload, err := json.Marshal(ingestionRequest{Batch: batch})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/public/ingestion", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.publicKey, c.secretKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("langfuse: ingestion status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, v any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.publicKey, c.secretKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("langfuse: status %d for %s: %s", resp.StatusCode, path, strings.TrimSpace(string(msg)))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
