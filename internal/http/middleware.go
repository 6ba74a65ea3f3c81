package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sujalbistaa/payboard/internal/apperr"
	"github.com/sujalbistaa/payboard/internal/auth"
	"github.com/sujalbistaa/payboard/internal/metrics"
)

const identityKey = "payboard.identity"

// AuthMiddleware verifies the bearer token and stores the caller's identity
// on the context. With required unset, requests without a usable token pass
// through anonymously.
func AuthMiddleware(verifier *auth.Verifier, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			if required {
				respondError(c, apperr.Unauthenticated("Missing bearer token"))
				return
			}
			c.Next()
			return
		}
		identity, err := verifier.Verify(raw)
		if err != nil {
			if required {
				respondError(c, apperr.Unauthenticated("Invalid bearer token"))
				return
			}
			c.Next()
			return
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

// RequireModerator rejects callers without an ADMIN or MODERATOR role. It
// must run after a required AuthMiddleware.
func RequireModerator() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := identityFrom(c)
		if identity == nil {
			respondError(c, apperr.Unauthenticated("Missing bearer token"))
			return
		}
		if !identity.IsModerator() {
			respondError(c, apperr.Forbidden("Only ADMIN or MODERATOR can manage reports"))
			return
		}
		c.Next()
	}
}

// identityFrom returns the verified caller, or nil for anonymous requests.
func identityFrom(c *gin.Context) *auth.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	identity, _ := v.(*auth.Identity)
	return identity
}

// SecurityHeadersMiddleware adds basic, sensible security headers.
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Prevents clickjacking
		c.Header("X-Frame-Options", "DENY")
		// Prevents MIME-type sniffing
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "no-referrer")
		// JSON only, nothing to load
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Next()
	}
}

// RequestLogger logs every request and records its latency.
func RequestLogger(logger *slog.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		m.ObserveRequest(c.Request.Method, route, status, elapsed)

		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		attrs := []any{
			"component", "http",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", elapsed,
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
		}
		logger.Log(c.Request.Context(), level, "request", attrs...)
	}
}

// Recovery turns panics into the standard error body.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error(
			"panic serving request",
			"component", "http",
			"path", c.Request.URL.Path,
			"panic", recovered,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
			"code":  apperr.KindInternal,
		})
	})
}
