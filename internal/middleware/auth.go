package middleware

import (
	"strings"

	"living-science-documents/internal/domain"
	"living-science-documents/internal/errors"

	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

type TokenVerifier interface {
	VerifyJWT(token string) (domain.Principal, error)
}

type Auth struct {
	Verifier TokenVerifier
}

func bearer(ctx *gin.Context) string {
	authHeader := ctx.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
}

// AuthMiddleWare rejects requests without a valid token.
func (m *Auth) AuthMiddleWare() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := bearer(ctx)
		if token == "" {
			ctx.Error(errors.Unauthorized("Authorization is not found!", nil))
			ctx.Abort()
			return
		}

		principal, err := m.Verifier.VerifyJWT(token)
		if err != nil {
			ctx.Error(errors.Unauthorized("Invalid token!", err))
			ctx.Abort()
			return
		}

		ctx.Set(principalKey, principal)
		ctx.Set("user_id", principal.UserID)
		ctx.Next()
	}
}

// OptionalAuth lets anonymous requests through. A token, when present, must be valid.
func (m *Auth) OptionalAuth() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if bearer(ctx) == "" {
			ctx.Next()
			return
		}
		m.AuthMiddleWare()(ctx)
	}
}

// CurrentPrincipal returns the authenticated principal, or the anonymous one.
func CurrentPrincipal(ctx *gin.Context) domain.Principal {
	if v, ok := ctx.Get(principalKey); ok {
		if p, ok := v.(domain.Principal); ok {
			return p
		}
	}
	return domain.Principal{}
}

// SetPrincipal is used by tests to fake authentication.
func SetPrincipal(p domain.Principal) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Set(principalKey, p)
		ctx.Next()
	}
}
