package tradelocker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenPair is the result of a refresh. ExpireAt is nil when the broker omits
// or mangles expireDate; callers treat that as "unknown, keep syncing".
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpireAt     *time.Time
}

// RefreshTokens exchanges the refresh token for a new pair via
// POST /auth/jwt/refresh. Both tokens must be present in the response.
func (c *Client) RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	body, err := c.do(ctx, http.MethodPost, "/auth/jwt/refresh", map[string]string{
		"refreshToken": refreshToken,
	}, Auth{})
	if err != nil {
		return nil, err
	}
	var root map[string]any
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, fmt.Errorf("refresh response not json: %w", err)
	}
	access, _ := root["accessToken"].(string)
	refresh, _ := root["refreshToken"].(string)
	if strings.TrimSpace(access) == "" || strings.TrimSpace(refresh) == "" {
		return nil, fmt.Errorf("refresh response missing tokens")
	}
	pair := &TokenPair{AccessToken: access, RefreshToken: refresh}
	if raw, ok := root["expireDate"].(string); ok {
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(raw)); err == nil {
			u := t.UTC()
			pair.ExpireAt = &u
		}
	}
	return pair, nil
}

// AllAccounts lists the accounts visible to the access token. The response is
// either a bare array or {accounts: [...]}; rows stay untyped because account
// id and number fields vary per broker white-label.
func (c *Client) AllAccounts(ctx context.Context, accessToken string) ([]map[string]any, error) {
	body, err := c.Get(ctx, "/auth/jwt/all-accounts", Auth{AccessToken: accessToken})
	if err != nil {
		return nil, err
	}
	var root any
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, fmt.Errorf("all-accounts response not json: %w", err)
	}
	var rows []any
	switch v := root.(type) {
	case []any:
		rows = v
	case map[string]any:
		if inner, ok := v["accounts"].([]any); ok {
			rows = inner
		}
	}
	out := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		if m, ok := r.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// HostFromAccessToken reads the `host` claim from an access token without
// verifying the signature. The claim only routes requests; authenticity is
// still enforced by the broker on every call.
func HostFromAccessToken(token string) string {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return ""
	}
	host, _ := claims["host"].(string)
	return strings.TrimSpace(host)
}
