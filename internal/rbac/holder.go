package rbac

import (
	"context"
	"sync"
)

// RoleReader exposes the current role.
type RoleReader interface {
	Current() Role
}

// RoleHolder holds the current role and replaces it wholesale.
type RoleHolder interface {
	RoleReader
	Replace(role Role)
}

// Holder is an in-memory RoleHolder safe for concurrent use.
type Holder struct {
	mu   sync.RWMutex
	role Role
}

// NewHolder returns a Holder set to DefaultRole.
func NewHolder() *Holder {
	return &Holder{role: DefaultRole}
}

// NewHolderWith returns a Holder set to role.
func NewHolderWith(role Role) *Holder {
	return &Holder{role: role}
}

// Current implements RoleReader.
func (h *Holder) Current() Role {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.role
}

// Replace implements RoleHolder.
func (h *Holder) Replace(role Role) {
	h.mu.Lock()
	h.role = role
	h.mu.Unlock()
}

// RoleSession is the subset of a session needed to store a role.
type RoleSession interface {
	Role() string
	SetRole(role string)
}

// SessionHolder is a RoleHolder stored in a user session.
type SessionHolder struct {
	sess RoleSession
}

// NewSessionHolder wraps sess.
func NewSessionHolder(sess RoleSession) SessionHolder {
	return SessionHolder{sess: sess}
}

// Current implements RoleReader. Missing or unknown values read as DefaultRole.
func (h SessionHolder) Current() Role {
	if h.sess == nil {
		return DefaultRole
	}
	role, err := ParseRole(h.sess.Role())
	if err != nil {
		return DefaultRole
	}
	return role
}

// Replace implements RoleHolder.
func (h SessionHolder) Replace(role Role) {
	if h.sess == nil {
		return
	}
	h.sess.SetRole(string(role))
}

type holderContextKey struct{}

type principalContextKey struct{}

// Principal is the identity a verified bearer token vouches for.
type Principal struct {
	Subject   string
	SessionID string
	Role      Role
}

// ContextWithPrincipal stores the bearer principal in ctx.
func ContextWithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFromContext returns the bearer principal, if the request carried one.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	principal, ok := ctx.Value(principalContextKey{}).(Principal)
	return principal, ok
}

// ContextWithHolder stores the request's role holder in ctx.
func ContextWithHolder(ctx context.Context, holder RoleHolder) context.Context {
	return context.WithValue(ctx, holderContextKey{}, holder)
}

// HolderFromContext returns the holder in ctx, or a fresh default Holder.
func HolderFromContext(ctx context.Context) RoleHolder {
	if holder, ok := ctx.Value(holderContextKey{}).(RoleHolder); ok && holder != nil {
		return holder
	}
	return NewHolder()
}
