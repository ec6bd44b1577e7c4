// Package auth carries request credentials and issues tokens for the
// local backends.
package auth

import "context"

type contextKey string

const credentialsKey contextKey = "credentials"

// Credentials are the ways a request can prove access. Bearer is a
// session token, Capability a per receipt share token.
type Credentials struct {
	Bearer     string
	Capability string
}

// WithCredentials returns ctx carrying c.
func WithCredentials(ctx context.Context, c Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey, c)
}

// FromContext returns the credentials attached to ctx, if any.
func FromContext(ctx context.Context) Credentials {
	c, _ := ctx.Value(credentialsKey).(Credentials)
	return c
}

// WithCapability adds a receipt share token to the credentials in ctx.
func WithCapability(ctx context.Context, token string) context.Context {
	c := FromContext(ctx)
	c.Capability = token
	return WithCredentials(ctx, c)
}
