package auth

import (
	"context"
	"fmt"

	"github.com/Younus004/wisdom/internal/apperr"
)

const RoleFrontOffice = "Front Office"

// Principal is the authenticated operator carried by a request.
type Principal struct {
	Login string
	Role  string
}

type contextKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok
}

// RequireFrontOffice fails with apperr.ErrUnauthorized when ctx carries no
// principal and apperr.ErrForbidden when it carries another role.
func RequireFrontOffice(ctx context.Context) error {
	p, ok := PrincipalFrom(ctx)
	if !ok {
		return fmt.Errorf("please log in first: %w", apperr.ErrUnauthorized)
	}
	if p.Role != RoleFrontOffice {
		return fmt.Errorf("role %q: %w", p.Role, apperr.ErrForbidden)
	}
	return nil
}

// FrontOffice returns ctx authorized as the front office operator login.
func FrontOffice(ctx context.Context, login string) context.Context {
	return WithPrincipal(ctx, Principal{Login: login, Role: RoleFrontOffice})
}
