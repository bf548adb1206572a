package clients

import (
	"context"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// TokenSource builds an OAuth2 token source from connector credentials.
// client_id/client_secret/token_url select the client credentials flow,
// token a static bearer token. It returns nil when no credentials are set.
func TokenSource(ctx context.Context, creds map[string]string) oauth2.TokenSource {
	if creds["client_id"] != "" && creds["token_url"] != "" {
		cfg := &clientcredentials.Config{
			ClientID:     creds["client_id"],
			ClientSecret: creds["client_secret"],
			TokenURL:     creds["token_url"],
			Scopes:       strings.Fields(strings.ReplaceAll(creds["scopes"], ",", " ")),
		}
		return cfg.TokenSource(ctx)
	}
	if token := creds["token"]; token != "" {
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	}
	return nil
}
