package google

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/oauth2"
	oauthgoogle "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// OAuthConfig parses an installed-app OAuth client for the Sheets scope.
func OAuthConfig(clientJSON []byte) (*oauth2.Config, error) {
	cfg, err := oauthgoogle.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	return cfg, nil
}

// OAuthTokenSource returns a refreshing token source for a token previously
// saved by tkpay-oauth-init.
func OAuthTokenSource(ctx context.Context, clientJSON, tokenJSON []byte) (oauth2.TokenSource, error) {
	cfg, err := OAuthConfig(clientJSON)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(tokenJSON, &tok); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}
	return cfg.TokenSource(ctx, &tok), nil
}

// NewWithTokenSource creates a ledger client authenticated as a user instead
// of a service account.
func NewWithTokenSource(ctx context.Context, spreadsheetID, sheet string, ts oauth2.TokenSource) (*Client, error) {
	return dial(ctx, spreadsheetID, sheet, goption.WithTokenSource(ts))
}
