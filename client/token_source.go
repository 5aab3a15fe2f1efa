package client

import (
	"context"

	"github.com/jrsteele09/deepsight-client/internal/errors"
	"github.com/jrsteele09/deepsight-client/token"
	"golang.org/x/oauth2"
)

type sessionTokenSource struct {
	ctx    context.Context
	client *SessionClient
}

// TokenSource exposes the session as an oauth2.TokenSource, so any HTTP
// client built with oauth2.NewClient sends the same bearer token. Every Token
// call reads the session, so a logout takes effect immediately.
func (c *SessionClient) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &sessionTokenSource{ctx: ctx, client: c}
}

func (ts *sessionTokenSource) Token() (*oauth2.Token, error) {
	accessToken, ok := ts.client.GetAccessToken(ts.ctx)
	if !ok {
		return nil, errors.ErrAuthRequired
	}

	t := &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}
	if exp, err := token.ParseExpiry(accessToken); err == nil {
		t.Expiry = exp
	}
	return t, nil
}
