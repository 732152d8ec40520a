package netrunauth

import "context"

type contextKey int

const (
	authContextKey contextKey = iota
	clientIPKey
)

// WithAuthContext attaches a validated AuthContext to ctx.
func WithAuthContext(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, ac)
}

// AuthContextFrom retrieves the AuthContext attached by WithAuthContext.
func AuthContextFrom(ctx context.Context) (*AuthContext, bool) {
	ac, ok := ctx.Value(authContextKey).(*AuthContext)
	return ac, ok
}

// WithClientIP records the caller's address for audit events emitted
// during this request.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

func clientIPFrom(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}
