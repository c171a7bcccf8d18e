package client

import "context"

// TokenProvider supplies the current session access token. An empty string
// with a nil error means there is no session; the request then goes out
// unauthenticated and the server answers 401.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenProvider.
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) AccessToken(ctx context.Context) (string, error) { return f(ctx) }

// StaticToken always returns the same token.
type StaticToken string

func (s StaticToken) AccessToken(context.Context) (string, error) { return string(s), nil }
