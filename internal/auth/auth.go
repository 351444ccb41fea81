// Package auth resolves bearer credentials into stable user identifiers.
// Token issuance and session management live in an external identity
// provider; this package only asks it who a token belongs to.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Common errors for credential resolution.
var (
	ErrInvalidToken = errors.New("invalid or expired token")
)

// LocalUserID is the request-locals key under which middleware stores
// the resolved user id for downstream handlers.
const LocalUserID = "userID"

// Verifier resolves a bearer token to a user ID.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// HTTPVerifier asks the identity provider's verification endpoint. The
// provider returns the stable user id for a valid token and a non-2xx
// status otherwise.
type HTTPVerifier struct {
	endpoint string
	client   *http.Client
}

// NewHTTPVerifier creates a verifier that calls the given endpoint.
func NewHTTPVerifier(endpoint string, timeout time.Duration) *HTTPVerifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPVerifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Verify resolves the token via the provider. Provider failures are
// wrapped; rejected tokens map to ErrInvalidToken.
func (v *HTTPVerifier) Verify(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("identity provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", ErrInvalidToken
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("identity provider returned status %d", resp.StatusCode)
	}

	var body struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode verify response: %w", err)
	}
	if body.UserID == "" {
		return "", ErrInvalidToken
	}
	return body.UserID, nil
}

// StaticVerifier maps fixed tokens to user ids. Development and test use
// only.
type StaticVerifier struct {
	tokens map[string]string
}

// NewStaticVerifier creates a verifier over a fixed token map.
func NewStaticVerifier(tokens map[string]string) *StaticVerifier {
	return &StaticVerifier{tokens: tokens}
}

// Verify looks the token up in the static map.
func (v *StaticVerifier) Verify(_ context.Context, token string) (string, error) {
	userID, ok := v.tokens[token]
	if !ok {
		return "", ErrInvalidToken
	}
	return userID, nil
}
