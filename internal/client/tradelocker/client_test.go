package tradelocker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetSendsAuthHeaders(t *testing.T) {
	var gotAuth, gotAccNum string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccNum = r.Header.Get("accNum")
		_, _ = w.Write([]byte(`{"s":"ok"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, nil)
	body, err := c.Get(context.Background(), "/trade/config", Auth{AccessToken: "tok", AccNum: "3"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotAccNum != "3" {
		t.Fatalf("accNum = %q", gotAccNum)
	}
	if string(body) != `{"s":"ok"}` {
		t.Fatalf("body = %s", body)
	}
}

func TestGetReturnsAPIErrorWithStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "expired", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, nil)
	_, err := c.Get(context.Background(), "/trade/orders", Auth{AccessToken: "tok"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := StatusOf(err); got != http.StatusUnauthorized {
		t.Fatalf("StatusOf = %d", got)
	}
}

func TestGetRejectsSoftErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"s":"error","errmsg":"Account not found"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, nil)
	_, err := c.Get(context.Background(), "/trade/positions", Auth{AccessToken: "tok"})
	if err == nil {
		t.Fatalf("HTTP 200 with s:error must fail")
	}
	if got := StatusOf(err); got != http.StatusOK {
		t.Fatalf("StatusOf = %d", got)
	}
}

func TestRefreshTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/auth/jwt/refresh" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["refreshToken"] != "old-refresh" {
			t.Errorf("refreshToken = %q", req["refreshToken"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"accessToken":  "new-access",
			"refreshToken": "new-refresh",
			"expireDate":   "2026-09-01T00:00:00Z",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, nil)
	pair, err := c.RefreshTokens(context.Background(), "old-refresh")
	if err != nil {
		t.Fatalf("RefreshTokens: %v", err)
	}
	if pair.AccessToken != "new-access" || pair.RefreshToken != "new-refresh" {
		t.Fatalf("pair mismatch: %+v", pair)
	}
	if pair.ExpireAt == nil || pair.ExpireAt.Year() != 2026 {
		t.Fatalf("expire mismatch: %v", pair.ExpireAt)
	}
}

func TestRefreshTokensMissingFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"accessToken": "only-access"})
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, nil)
	if _, err := c.RefreshTokens(context.Background(), "r"); err == nil {
		t.Fatalf("expected error on partial refresh response")
	}
}

func TestAllAccountsUnwrapsBothShapes(t *testing.T) {
	payloads := []string{
		`[{"accountId":"a1","accNum":1}]`,
		`{"accounts":[{"accountId":"a1","accNum":1}]}`,
	}
	for _, p := range payloads {
		payload := p
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/auth/jwt/all-accounts" {
				t.Errorf("path = %s", r.URL.Path)
			}
			if r.Header.Get("accNum") != "" {
				t.Errorf("auth route must not send accNum header")
			}
			_, _ = w.Write([]byte(payload))
		}))
		c := NewClient(srv.Client(), srv.URL, nil)
		accounts, err := c.AllAccounts(context.Background(), "tok")
		srv.Close()
		if err != nil {
			t.Fatalf("AllAccounts(%s): %v", payload, err)
		}
		if len(accounts) != 1 || accounts[0]["accountId"] != "a1" {
			t.Fatalf("accounts = %v", accounts)
		}
	}
}

func TestHostFromAccessToken(t *testing.T) {
	makeToken := func(claims map[string]any) string {
		header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
		raw, _ := json.Marshal(claims)
		payload := base64.RawURLEncoding.EncodeToString(raw)
		return header + "." + payload + ".sig"
	}

	if got := HostFromAccessToken(makeToken(map[string]any{"host": "bk1.tradelocker.com"})); got != "bk1.tradelocker.com" {
		t.Fatalf("got %q", got)
	}
	if got := HostFromAccessToken(makeToken(map[string]any{"sub": "u1"})); got != "" {
		t.Fatalf("missing claim must yield empty, got %q", got)
	}
	if got := HostFromAccessToken("not-a-jwt"); got != "" {
		t.Fatalf("malformed token must yield empty, got %q", got)
	}
}

func TestResolveBaseURL(t *testing.T) {
	demo := "https://demo.tradelocker.com/backend-api"
	live := "https://live.tradelocker.com/backend-api"
	cases := []struct {
		env, host, want string
	}{
		{"demo", "", demo},
		{"live", "", live},
		{"anything-else", "", demo},
		{"demo", "bk1.tradelocker.com", "https://bk1.tradelocker.com/backend-api"},
	}
	for _, c := range cases {
		if got := ResolveBaseURL(demo, live, c.env, c.host); got != c.want {
			t.Fatalf("ResolveBaseURL(%q,%q) = %q, want %q", c.env, c.host, got, c.want)
		}
	}
}
