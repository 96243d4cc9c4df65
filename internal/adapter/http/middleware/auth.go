package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/plastinin/docgateway/internal/adapter/auth"
	"github.com/plastinin/docgateway/internal/adapter/http/dto"
	"github.com/plastinin/docgateway/internal/domain"
	"go.uber.org/zap"
)

type principalKey struct{}

// NewAuthMiddleware извлекает bearer токен и кладёт Principal в контекст
func NewAuthMiddleware(authenticator auth.Authenticator, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := authenticator.Authenticate(BearerToken(r))
			if err != nil {
				logger.Warn("Request rejected by authenticator",
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(dto.NewErrorResponse("Unauthorized", "unauthorized"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// BearerToken возвращает токен из заголовка Authorization или пустую строку
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// WithPrincipal сохраняет Principal в контексте
func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext достаёт Principal; без middleware возвращается пустой
func PrincipalFromContext(ctx context.Context) domain.Principal {
	p, _ := ctx.Value(principalKey{}).(domain.Principal)
	return p
}
