// Package auth talks to the external auth microservice that validates bearer
// tokens and resolves the caller's account id.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrInvalidToken indicates the auth service rejected the token.
	ErrInvalidToken = errors.New("token validation failed")
	// ErrUnavailable indicates the auth service could not be reached.
	ErrUnavailable = errors.New("auth service unavailable")
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the auth service at baseURL
// (e.g. "http://auth:9000").
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	User int64 `json:"user"`
}

// VerifyToken asks the auth service to validate the bearer token and returns
// the resolved account id.
func (c *Client) VerifyToken(ctx context.Context, token string) (int64, error) {
	body, err := json.Marshal(verifyRequest{Token: token})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/auth/verify-token", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, ErrInvalidToken
	}

	var out verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode auth response: %w", err)
	}
	if out.User == 0 {
		return 0, ErrInvalidToken
	}
	return out.User, nil
}
