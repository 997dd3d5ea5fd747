// Package remote talks to the access-check endpoints and the audit sink over HTTP.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/quizroom/quizroom/internal/access"
)

const maxErrorBody = 4 << 10

// Checker implements access.Checker against the /access/{kind} endpoints.
type Checker struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewChecker constructs a Checker. The token is sent as a bearer credential
// when non-empty.
func NewChecker(baseURL, token string) *Checker {
	return &Checker{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// WithHTTPClient swaps the underlying client.
func (c *Checker) WithHTTPClient(client *http.Client) *Checker {
	c.httpClient = client
	return c
}

type checkBody struct {
	TenantID   string `json:"tenantId"`
	UserID     string `json:"userId"`
	ResourceID string `json:"resourceId"`
	Action     string `json:"action"`
}

type checkResponse struct {
	HasAccess bool `json:"hasAccess"`
}

// Check posts req to the endpoint of req.Kind.
func (c *Checker) Check(ctx context.Context, req access.CheckRequest) (bool, error) {
	payload, err := json.Marshal(checkBody{
		TenantID:   req.TenantID,
		UserID:     req.ActorID,
		ResourceID: req.ResourceID,
		Action:     string(req.Action),
	})
	if err != nil {
		return false, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/access/%s", c.baseURL, req.Kind), bytes.NewReader(payload))
	if err != nil {
		return false, &access.VerificationError{Kind: req.Kind, Err: err}
	}
	httpReq.Header = scopeHeaders(ctx, req)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return false, &access.VerificationError{Kind: req.Kind, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return false, &access.VerificationError{Kind: req.Kind, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	var out checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, &access.VerificationError{Kind: req.Kind, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return out.HasAccess, nil
}

// scopeHeaders uses the session's scope when the call runs on behalf of a
// session and falls back to the request identity otherwise.
func scopeHeaders(ctx context.Context, req access.CheckRequest) http.Header {
	if sess := access.SessionFromContext(ctx); sess != nil {
		return sess.Scope().BuildHeaders(nil)
	}
	h := make(http.Header)
	if req.TenantID != "" {
		h.Set(access.HeaderTenantID, req.TenantID)
	}
	h.Set(access.HeaderUserID, req.ActorID)
	return h
}
