package google

import (
	"context"
	"strings"
	"testing"
)

const testOAuthClient = `{"installed":{"client_id":"test","client_secret":"test","redirect_uris":["http://localhost"],"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token"}}`

func TestOAuthConfigInvalidJSON(t *testing.T) {
	_, err := OAuthConfig([]byte("invalid-json"))
	if err == nil || !strings.Contains(err.Error(), "oauth config") {
		t.Fatalf("expected oauth config error, got %v", err)
	}
}

func TestOAuthConfigScopes(t *testing.T) {
	cfg, err := OAuthConfig([]byte(testOAuthClient))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ClientID != "test" {
		t.Errorf("expected client id 'test', got %q", cfg.ClientID)
	}
	if len(cfg.Scopes) != 1 || !strings.Contains(cfg.Scopes[0], "spreadsheets") {
		t.Errorf("unexpected scopes: %v", cfg.Scopes)
	}
}

func TestOAuthTokenSource(t *testing.T) {
	ts, err := OAuthTokenSource(context.Background(), []byte(testOAuthClient), []byte(`{"access_token":"test","token_type":"Bearer","expiry":"2999-01-01T00:00:00Z"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tok, err := ts.Token()
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if tok.AccessToken != "test" {
		t.Errorf("expected access token 'test', got %s", tok.AccessToken)
	}

	if _, err := OAuthTokenSource(context.Background(), []byte(testOAuthClient), []byte("{")); err == nil {
		t.Fatal("expected error for malformed token")
	}
}

func TestNewWithTokenSourceRequiresIdentifiers(t *testing.T) {
	ts, err := OAuthTokenSource(context.Background(), []byte(testOAuthClient), []byte(`{"access_token":"test"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := NewWithTokenSource(context.Background(), "", "History", ts); err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
}
