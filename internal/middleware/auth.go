package middleware

import (
	"context"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/doorcount/backend/domain"
)

// SessionValidator checks that a session referenced by a token is still live.
// Revoking the session in Redis invalidates otherwise-valid tokens.
type SessionValidator interface {
	ValidateSession(ctx context.Context, sessionID string) (*domain.Session, error)
}

// AdminAuth guards admin-only routes. It verifies the HS256 signature, the
// admin role claim, and that the backing session has not been revoked.
func AdminAuth(secret string, sessions SessionValidator, logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			tokenString := extractToken(ctx)
			if tokenString == "" {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				logger.Warn("invalid jwt token", zap.Error(err))
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				return
			}
			if role, _ := claims["role"].(string); role != domain.RoleAdmin {
				ctx.SetStatusCode(fasthttp.StatusForbidden)
				return
			}

			sessionID, _ := claims["session_id"].(string)
			if sessions != nil {
				if _, err := sessions.ValidateSession(ctx, sessionID); err != nil {
					ctx.SetStatusCode(fasthttp.StatusUnauthorized)
					return
				}
			}

			if userID, ok := claims["user_id"].(string); ok {
				ctx.Request.Header.Set("X-User-ID", userID)
			}
			if sessionID != "" {
				ctx.Request.Header.Set("X-Session-ID", sessionID)
			}

			next(ctx)
		}
	}
}

func extractToken(ctx *fasthttp.RequestCtx) string {
	header := string(ctx.Request.Header.Peek("Authorization"))
	if header == "" {
		return ""
	}
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return header
}
