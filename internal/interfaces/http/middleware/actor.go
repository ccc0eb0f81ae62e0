package middleware

import (
	"net/http"
	"strings"

	"github.com/fieldbridge/backend/internal/infrastructure/auth"
	"github.com/fieldbridge/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Context keys for the authenticated caller
const (
	ActorKey      = "auth_actor"
	ActorRoleKey  = "auth_role"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// ActorAuthConfig holds configuration for the actor auth middleware
type ActorAuthConfig struct {
	JWTService *auth.JWTService
	// Required rejects requests without a valid token. When false a
	// missing token is tolerated and the actor falls back to the
	// X-Actor header, for development setups.
	Required bool
	// SkipPaths are exact paths that never require authentication
	SkipPaths []string
	Logger    *zap.Logger
}

// ActorAuth authenticates the caller and records who is acting, for
// decision and retry attribution.
func ActorAuth(cfg ActorAuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skip := range cfg.SkipPaths {
			if path == skip {
				c.Next()
				return
			}
		}

		authHeader := c.GetHeader(AuthHeaderKey)
		if authHeader == "" {
			if cfg.Required {
				unauthorized(c, "Missing authorization header")
				return
			}
			if actor := c.GetHeader("X-Actor"); actor != "" {
				c.Set(ActorKey, actor)
			}
			c.Next()
			return
		}

		if !strings.HasPrefix(authHeader, BearerPrefix) {
			unauthorized(c, "Invalid authorization header format")
			return
		}
		tokenString := strings.TrimPrefix(authHeader, BearerPrefix)

		claims, err := cfg.JWTService.ValidateToken(tokenString)
		if err != nil {
			if cfg.Logger != nil {
				cfg.Logger.Warn("Token validation failed",
					zap.String("path", path),
					zap.Error(err))
			}
			if err == auth.ErrExpiredToken {
				unauthorized(c, "Token has expired")
				return
			}
			unauthorized(c, "Invalid token")
			return
		}

		c.Set(ActorKey, claims.Actor)
		c.Set(ActorRoleKey, claims.Role)
		c.Next()
	}
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized,
		dto.NewErrorResponse(dto.ErrCodeUnauthorized, message))
}

// GetActor returns the authenticated actor, or "" when anonymous
func GetActor(c *gin.Context) string {
	if actor, exists := c.Get(ActorKey); exists {
		if a, ok := actor.(string); ok {
			return a
		}
	}
	return ""
}
