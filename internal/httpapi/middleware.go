// Package httpapi wires spec.md §4.13/§6's HTTP JSON API: POST
// /parse, /query, /browse, /auth/token, /auth/revoke, GET /health,
// /metrics. Routing and middleware composition (bearer extraction into
// context, nested route groups, a pre-handler auth gate) follow
// jinterlante1206-AleutianLocal's services/orchestrator/middleware and
// services/orchestrator/routes pattern — that repo is reference for
// idiom only, not the chosen teacher, so neither its license header nor
// its doc-comment density carries over here.
package httpapi

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/semanticbrowser/kb/internal/auth"
	"github.com/semanticbrowser/kb/internal/errs"
	"github.com/semanticbrowser/kb/internal/logging"
	"github.com/semanticbrowser/kb/internal/ratelimit"
	"github.com/semanticbrowser/kb/internal/telemetry"
)

const claimsContextKey = "claims"

// AuthMiddleware validates the Authorization header via a and stores
// the resulting claims in the Gin context for downstream handlers and
// RequireRole to read. Auth-disabled deployments (auth.Authenticator
// with no secret) always succeed as the anonymous principal.
func AuthMiddleware(authenticator *auth.Authenticator, metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := authenticator.Validate(c.GetHeader("Authorization"))
		if err != nil {
			metrics.RecordAuthFailure()
			writeError(c, err)
			c.Abort()
			return
		}
		c.Set(claimsContextKey, claims)
		c.Next()
	}
}

// ClaimsFrom retrieves the claims AuthMiddleware stored on c. Panics if
// called from a route that did not run AuthMiddleware first — a
// programmer error, not a request-time condition.
func ClaimsFrom(c *gin.Context) *auth.Claims {
	return c.MustGet(claimsContextKey).(*auth.Claims)
}

// RequireRole aborts with 403 unless the authenticated principal's role
// matches role exactly, per spec.md §4.13's "admin-role required" on
// POST /auth/revoke.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := ClaimsFrom(c)
		if claims.Role != role {
			writeError(c, errs.New(errs.KindForbidden, "requires role "+role))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RateLimitMiddleware rejects a request once its client key has
// exceeded limiter's window, returning 429 with Retry-After per
// spec.md §7's RateLimited policy.
func RateLimitMiddleware(limiter *ratelimit.Limiter, metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := ratelimit.ClientKey(c.Request)
		allowed, retryAfter := limiter.Allow(key)
		if !allowed {
			metrics.RecordRateLimited()
			c.Header("Retry-After", strconv.FormatInt(retryAfterSeconds(retryAfter), 10))
			writeError(c, errs.New(errs.KindRateLimited, "rate limit exceeded"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func retryAfterSeconds(d time.Duration) int64 {
	secs := int64(d.Seconds())
	if secs < 0 {
		return 0
	}
	return secs
}

// MetricsMiddleware records spec.md §4.14's http_requests_total and
// http_request_duration_seconds for every request that reaches it,
// keyed by the route's registered path (not the raw URL, so path
// parameters don't explode cardinality).
func MetricsMiddleware(metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.RecordHTTPRequest(endpoint, c.Request.Method, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

func httpLog() *logging.Logger { return logging.Get(logging.CategoryHTTP) }
