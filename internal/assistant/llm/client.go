// Package llm is a thin client for a Gemini-style generateContent API, the
// only outbound network dependency of the assistant pipeline. The upstream
// is treated as unreliable: overloads fall through a fixed model chain,
// everything else fails the request.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ErrUnavailable is the single error surfaced to callers when every model
// attempt failed. Per-model diagnostics are logged, never returned.
var ErrUnavailable = errors.New("assistant service unavailable")

type Blob struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type Part struct {
	Text       string `json:"text,omitempty"`
	InlineData *Blob  `json:"inline_data,omitempty"`
}

// Message is one role-tagged content block; roles are "user" and "model".
type Message struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

type Client struct {
	BaseURL string
	APIKey  string
	// Models is the fallback chain; the first entry is the primary.
	Models     []string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 45 * time.Second}
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

type generateRequest struct {
	SystemInstruction *Message  `json:"systemInstruction,omitempty"`
	Contents          []Message `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// overloaded reports upstream overload, the one condition that falls
// through to the next model in the chain.
func overloaded(status int) bool {
	return status == http.StatusServiceUnavailable || status == http.StatusTooManyRequests
}

// Complete sends the system instruction and messages through the model
// chain and returns the first successful completion's primary text.
// Transport errors and overloads advance the chain; any other upstream
// error aborts it immediately.
func (c *Client) Complete(ctx context.Context, system string, messages []Message) (string, error) {
	if len(c.Models) == 0 {
		return "", fmt.Errorf("%w: no models configured", ErrUnavailable)
	}
	req := generateRequest{Contents: messages}
	if system != "" {
		req.SystemInstruction = &Message{Parts: []Part{{Text: system}}}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	var attemptErrs []error
	for _, model := range c.Models {
		text, err := c.generate(ctx, model, body)
		if err == nil {
			return text, nil
		}
		var oe *overloadError
		switch {
		case errors.As(err, &oe):
			c.logger().Warn("assistant model overloaded, trying fallback", "model", model, "status", oe.status)
			attemptErrs = append(attemptErrs, err)
		case errors.As(err, new(*transportError)):
			c.logger().Warn("assistant model unreachable, trying fallback", "model", model, "error", err)
			attemptErrs = append(attemptErrs, err)
		default:
			// Non-overload upstream errors do not cascade.
			c.logger().Error("assistant request failed", "model", model, "error", err)
			return "", fmt.Errorf("%w: %s", ErrUnavailable, model)
		}
	}
	c.logger().Error("all assistant models failed", "error", errors.Join(attemptErrs...))
	return "", ErrUnavailable
}

type overloadError struct{ status int }

func (e *overloadError) Error() string { return fmt.Sprintf("model overloaded (status %d)", e.status) }

type transportError struct{ err error }

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func (c *Client) generate(ctx context.Context, model string, body []byte) (string, error) {
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.BaseURL, model, c.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return "", &transportError{err: err}
	}
	defer resp.Body.Close()
	if overloaded(resp.StatusCode) {
		io.Copy(io.Discard, resp.Body)
		return "", &overloadError{status: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("model %s: status %d: %s", model, resp.StatusCode, bytes.TrimSpace(data))
	}
	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("model %s: decode response: %w", model, err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("model %s: empty completion", model)
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}
