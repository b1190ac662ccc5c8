package auth

import "context"

// Roles carried in access tokens.
const (
	RoleUser    = "user"
	RoleService = "service"
	RoleAdmin   = "admin"
)

// Caller is the verified identity of whoever invoked an operation.
// The zero value is an unauthenticated caller.
type Caller struct {
	UserID string
	Role   string
}

// Authenticated reports whether the caller carries a verified user id.
func (c Caller) Authenticated() bool {
	return c.UserID != ""
}

// Privileged reports whether the caller is an internal service or an admin.
func (c Caller) Privileged() bool {
	return c.Authenticated() && (c.Role == RoleService || c.Role == RoleAdmin)
}

// CanActOn reports whether the caller may operate on a resource owned by ownerID.
func (c Caller) CanActOn(ownerID string) bool {
	if c.Privileged() {
		return true
	}
	return c.Authenticated() && c.UserID == ownerID
}

type callerKey struct{}

// WithCaller stores the caller in ctx.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the caller stored in ctx, or the zero Caller.
func CallerFrom(ctx context.Context) Caller {
	if c, ok := ctx.Value(callerKey{}).(Caller); ok {
		return c
	}
	return Caller{}
}

// Service returns the identity used by in-process background jobs.
func Service(name string) Caller {
	return Caller{UserID: name, Role: RoleService}
}
