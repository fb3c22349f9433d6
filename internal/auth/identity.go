package auth

import "context"

type identityKey struct{}

// Identity is the authenticated caller, derived from a verified access token.
type Identity struct {
	UserID    string
	SessionID string
	Username  string
	Email     string
}

// IdentityFromClaims builds an Identity from access token claims.
func IdentityFromClaims(claims *Claims) Identity {
	return Identity{
		UserID:    claims.Subject,
		SessionID: claims.SessionID,
		Username:  claims.Username,
		Email:     claims.Email,
	}
}

// WithIdentity stores the authenticated caller on the context.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the authenticated caller, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	identity, ok := ctx.Value(identityKey{}).(Identity)
	return identity, ok && identity.UserID != ""
}
