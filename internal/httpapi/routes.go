package httpapi

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/semanticbrowser/kb/internal/auth"
	"github.com/semanticbrowser/kb/internal/ratelimit"
	"github.com/semanticbrowser/kb/internal/telemetry"
)

const adminRole = "admin"

// DeadlineMiddleware bounds every request to timeout, per spec.md §5's
// "every handler has a per-request deadline; exceeding it cancels
// downstream operations cooperatively" — replacing the request's
// context so coreops' Engine/browser calls observe cancellation.
func DeadlineMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// SetupRoutes registers spec.md §4.13's HTTP surface on router, wiring
// auth, rate limiting, deadlines, and metrics in the order
// jinterlante1206-AleutianLocal's SetupRoutes composes its own
// middleware stack: unauthenticated probes first, then a root ("/")
// group carrying the full stack, with a narrower admin-only group for
// /auth/revoke, /admin/infer_rules and /admin/ml_infer.
func SetupRoutes(router *gin.Engine, s *Server, authenticator *auth.Authenticator, limiter *ratelimit.Limiter, metrics *telemetry.Metrics, requestTimeout time.Duration) {
	router.GET("/health", s.GetHealth)
	router.GET("/metrics", s.GetMetrics())

	v1 := router.Group("/")
	v1.Use(MetricsMiddleware(metrics))
	v1.Use(DeadlineMiddleware(requestTimeout))

	// /auth/token is deliberately outside the auth-required groups:
	// spec.md §4.13 marks it unauthenticated in development.
	v1.POST("/auth/token", RateLimitMiddleware(limiter, metrics), s.PostAuthToken)

	authed := v1.Group("/")
	authed.Use(AuthMiddleware(authenticator, metrics))
	authed.Use(RateLimitMiddleware(limiter, metrics))
	authed.POST("/parse", s.PostParse)
	authed.POST("/query", s.PostQuery)
	authed.POST("/browse", s.PostBrowse)

	admin := authed.Group("/")
	admin.Use(RequireRole(adminRole))
	admin.POST("/auth/revoke", s.PostAuthRevoke)
	admin.POST("/admin/infer_rules", s.PostAdminInferRules)
	admin.POST("/admin/ml_infer", s.PostAdminMLInfer)
}
