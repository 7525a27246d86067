// Package relay forwards chat payloads to the hidden webhook backend.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxBackendResponseSize bounds how much of a backend reply is buffered (8MB).
const maxBackendResponseSize = 8 << 20

var (
	// ErrNotConfigured means no backend webhook address is set.
	ErrNotConfigured = errors.New("relay: backend webhook url not configured")
	// ErrBackendUnreachable covers transport failures talking to the backend.
	ErrBackendUnreachable = errors.New("relay: backend unreachable")
	// ErrMalformedResponse means the backend reply was not valid JSON.
	ErrMalformedResponse = errors.New("relay: malformed backend response")
)

// Request is an inbound chat payload.
type Request struct {
	ContentType string
	Body        []byte
}

// Response is the backend reply to mirror back to the caller.
type Response struct {
	Status int
	Body   []byte
}

// Client performs one outbound call per Forward. It holds no per-request
// state and is safe for concurrent use.
type Client struct {
	target string
	http   *http.Client
}

// NewClient creates a relay to target. A zero timeout leaves the outbound
// call bounded only by the caller's context.
func NewClient(target string, timeout time.Duration) *Client {
	return &Client{
		target: strings.TrimSpace(target),
		http:   &http.Client{Timeout: timeout},
	}
}

// NewClientWithHTTP creates a relay using a caller-provided HTTP client.
func NewClientWithHTTP(target string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{target: strings.TrimSpace(target), http: hc}
}

// Configured reports whether a backend address is set.
func (c *Client) Configured() bool {
	return c.target != ""
}

// Forward posts the payload to the backend as JSON and returns its status and
// JSON body. No retry is attempted.
func (c *Client) Forward(ctx context.Context, req Request) (*Response, error) {
	if c.target == "" {
		return nil, ErrNotConfigured
	}

	payload, err := EncodeBody(req)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.target, body)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrBackendUnreachable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackendUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBackendResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrBackendUnreachable, err)
	}
	if len(raw) > maxBackendResponseSize {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", ErrMalformedResponse, maxBackendResponseSize)
	}

	var out bytes.Buffer
	if err := json.Compact(&out, raw); err != nil {
		return nil, fmt.Errorf("%w: status %d: %w", ErrMalformedResponse, resp.StatusCode, err)
	}

	return &Response{Status: resp.StatusCode, Body: out.Bytes()}, nil
}

// EncodeBody re-serializes an inbound payload as JSON. Valid JSON is
// compacted, other text is sent as a JSON string, and an empty body yields
// nil (no outbound body).
func EncodeBody(req Request) ([]byte, error) {
	trimmed := bytes.TrimSpace(req.Body)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if json.Valid(trimmed) {
		var out bytes.Buffer
		if err := json.Compact(&out, trimmed); err != nil {
			return nil, err
		}
		return out.Bytes(), nil
	}
	return json.Marshal(string(trimmed))
}
