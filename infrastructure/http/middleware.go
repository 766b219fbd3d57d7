package http

import (
	"log/slog"
	"net/http"
	"time"

	"linkup/auth"
	"linkup/domain"
	"linkup/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

const userKey = "user"

// requireAuth resolves the caller from the jwt cookie or a Bearer header
// and stores it in the gin context.
func requireAuth(log *slog.Logger, authService services.IAuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := authService.Authenticate(c.Request.Context(), auth.TokenFromRequest(c.Request))
		if err != nil {
			abortWithError(c, log, err)
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

func currentUser(c *gin.Context) domain.User {
	return c.MustGet(userKey).(domain.User)
}

// corsPolicy allows credentialed requests from the allow-list only.
// Requests from any other origin are refused with 403.
func corsPolicy(allowedOrigins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return lo.Contains(allowedOrigins, origin)
		},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// bodyLimit caps request bodies. Base64 inflates images by a third, hence the margin.
func bodyLimit(maxImageBytes int64) gin.HandlerFunc {
	limit := maxImageBytes*4/3 + 64*1024
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
