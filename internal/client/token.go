package client

import (
	"golang.org/x/oauth2"

	"github.com/target/promptopt-client/internal/ports"
)

// SessionTokenSource adapts a ports.TokenProvider to oauth2.TokenSource. The token is read
// on every call so a fresh login or teardown is picked up immediately.
type SessionTokenSource struct {
	Provider ports.TokenProvider
}

var _ oauth2.TokenSource = SessionTokenSource{}

// Token returns the current bearer token. An empty AccessToken means anonymous.
func (s SessionTokenSource) Token() (*oauth2.Token, error) {
	tok := &oauth2.Token{TokenType: "Bearer"}
	if s.Provider != nil {
		tok.AccessToken = s.Provider.Token()
	}
	return tok, nil
}
