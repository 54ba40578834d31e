// Package auth provides the token verifiers behind the API's bearer
// authentication: a remote HTTP verification service for production and a
// static token file for development and tests.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fairyhunter13/docqueue/internal/domain"
)

// HTTPVerifier validates bearer tokens against an external verification
// endpoint. The endpoint receives the token in the Authorization header and
// answers with the identity it resolves to.
type HTTPVerifier struct {
	url    string
	client *http.Client
}

// NewHTTPVerifier builds a verifier for the given endpoint URL.
func NewHTTPVerifier(url string, timeout time.Duration) *HTTPVerifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPVerifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type verifyResponse struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Role     string `json:"role"`
}

// Verify implements domain.TokenVerifier.
func (v *HTTPVerifier) Verify(ctx context.Context, token string) (domain.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, nil)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("op=auth.Verify: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := v.client.Do(req)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("op=auth.Verify: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.Identity{}, fmt.Errorf("%w: token rejected", domain.ErrUnauthorized)
	default:
		return domain.Identity{}, fmt.Errorf("op=auth.Verify: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return domain.Identity{}, fmt.Errorf("op=auth.Verify: read body: %w", err)
	}
	var vr verifyResponse
	if err := json.Unmarshal(body, &vr); err != nil {
		return domain.Identity{}, fmt.Errorf("op=auth.Verify: decode body: %w", err)
	}
	if vr.UserID == "" {
		return domain.Identity{}, fmt.Errorf("%w: verification response missing user_id", domain.ErrUnauthorized)
	}
	return domain.Identity{
		UserID:   vr.UserID,
		UserName: vr.UserName,
		Role:     domain.Role(vr.Role),
	}, nil
}
