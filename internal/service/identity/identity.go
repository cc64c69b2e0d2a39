// Package identity передаёт идентификатор пользователя явно через context.
package identity

import (
	"context"
	"strings"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type ctxKey struct{}

// WithIdentity возвращает контекст с идентификатором пользователя.
func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, ctxKey{}, strings.TrimSpace(identity))
}

// FromContext извлекает идентификатор пользователя.
func FromContext(ctx context.Context) (string, bool) {
	identity, ok := ctx.Value(ctxKey{}).(string)
	return identity, ok && identity != ""
}

// ContextProvider читает идентификатор, положенный в ctx транспортным слоем.
type ContextProvider struct{}

// CurrentIdentity возвращает ErrNotAuthenticated, если идентификатора в ctx нет.
func (ContextProvider) CurrentIdentity(ctx context.Context) (string, error) {
	identity, ok := FromContext(ctx)
	if !ok {
		return "", domain.ErrNotAuthenticated
	}
	return identity, nil
}

// Static всегда возвращает один и тот же идентификатор (CLI, тесты).
type Static string

// CurrentIdentity возвращает ErrNotAuthenticated для пустого значения.
func (s Static) CurrentIdentity(context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", domain.ErrNotAuthenticated
	}
	return strings.TrimSpace(string(s)), nil
}

var (
	_ domain.IdentityProvider = ContextProvider{}
	_ domain.IdentityProvider = Static("")
)
