package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/semanticbrowser/kb/internal/auth"
	"github.com/semanticbrowser/kb/internal/browser"
	"github.com/semanticbrowser/kb/internal/config"
	"github.com/semanticbrowser/kb/internal/coreops"
	"github.com/semanticbrowser/kb/internal/errs"
	"github.com/semanticbrowser/kb/internal/mlinference"
	"github.com/semanticbrowser/kb/internal/telemetry"
)

// Server bundles every dependency the handlers in this file need.
// Pool may be nil (no browser configured); POST /browse then fails
// cleanly with a 503 PoolExhausted-shaped error instead of panicking.
// Predictor may also be nil (no embedding tensors configured); POST
// /admin/ml_infer then fails with a 503 PoolExhausted-kind error.
type Server struct {
	Deps      coreops.Deps
	Auth      *auth.Authenticator
	Pool      *browser.Pool
	Metrics   *telemetry.Metrics
	Predictor *mlinference.Engine
	Inference config.InferenceConfig
	Version   string
}

type parseRequest struct {
	HTML string `json:"html" binding:"required"`
}

type parseResponse struct {
	Title    string   `json:"title,omitempty"`
	Entities []string `json:"entities"`
}

// PostParse implements POST /parse.
func (s *Server) PostParse(c *gin.Context) {
	var req parseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errs.New(errs.KindInputTooLarge, "request body must be JSON with an html field"))
		return
	}

	start := time.Now()
	result, err := coreops.ParseHTML(s.Deps, []byte(req.HTML))
	s.Metrics.RecordKGOperation("parse", time.Since(start))
	if err != nil {
		writeError(c, err)
		return
	}

	resp := parseResponse{Entities: result.Entities}
	if result.HasTitle {
		resp.Title = result.Title
	}
	c.JSON(http.StatusOK, resp)
}

type queryRequest struct {
	Query string `json:"query" binding:"required"`
}

type queryResponse struct {
	Results []string `json:"results"`
}

// PostQuery implements POST /query.
func (s *Server) PostQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errs.New(errs.KindInvalidQuery, "request body must be JSON with a query field"))
		return
	}

	start := time.Now()
	results, err := coreops.QueryKG(s.Deps, req.Query)
	s.Metrics.RecordKGOperation("query", time.Since(start))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, queryResponse{Results: results})
}

type browseRequest struct {
	URL   string `json:"url" binding:"required"`
	Query string `json:"query"`
}

type browseResponse struct {
	Data     string                  `json:"data"`
	Snapshot coreops.BrowseSnapshot `json:"snapshot"`
}

// PostBrowse implements POST /browse.
func (s *Server) PostBrowse(c *gin.Context) {
	var req browseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errs.New(errs.KindInvalidURL, "request body must be JSON with a url field"))
		return
	}
	if s.Pool == nil {
		writeError(c, errs.New(errs.KindPoolExhausted, "no browser pool configured"))
		return
	}

	tab, release, err := s.Pool.Acquire(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	defer release()
	s.Metrics.SetBrowserTabsInUse(s.Pool.InUse())

	start := time.Now()
	result, err := coreops.BrowseURL(s.Deps, tab, req.URL, req.Query)
	s.Metrics.RecordKGOperation("browse", time.Since(start))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, browseResponse{Data: result.Data, Snapshot: result.Snapshot})
}

type tokenRequest struct {
	Username string `json:"username" binding:"required"`
	Role     string `json:"role"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

// PostAuthToken implements POST /auth/token. Per spec.md §4.13 this
// endpoint is unauthenticated in development; a production deployment
// must front it with its own auth, which is out of scope here.
func (s *Server) PostAuthToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errs.New(errs.KindUnauthorized, "request body must be JSON with a username field"))
		return
	}
	token, expiresIn, err := s.Auth.Issue(req.Username, req.Role)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{Token: token, ExpiresIn: expiresIn})
}

type revokeRequest struct {
	Token string `json:"token" binding:"required"`
}

type revokeResponse struct {
	Revoked bool `json:"revoked"`
}

// PostAuthRevoke implements POST /auth/revoke. RequireRole("admin") in
// routes.go gates access before this runs.
func (s *Server) PostAuthRevoke(c *gin.Context) {
	var req revokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errs.New(errs.KindUnauthorized, "request body must be JSON with a token field"))
		return
	}
	revoked, err := s.Auth.Revoke(req.Token)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, revokeResponse{Revoked: revoked})
}

type healthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Version       string `json:"version"`
}

// GetHealth implements GET /health, unauthenticated and unrate-limited.
func (s *Server) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{
		Status:        "ok",
		UptimeSeconds: int64(s.Metrics.Uptime().Seconds()),
		Version:       s.Version,
	})
}

type inferRulesResponse struct {
	Inserted int `json:"inserted"`
	Passes   int `json:"passes"`
}

// PostAdminInferRules implements POST /admin/infer_rules: materialises
// the rdfs:subClassOf/subPropertyOf transitive closure and rdf:type
// propagation to fixpoint, per spec.md §4.4's infer_rules(). Gated
// behind RequireRole("admin") in routes.go, since it rewrites shared
// store state rather than answering a read.
func (s *Server) PostAdminInferRules(c *gin.Context) {
	inserted, passes, err := s.Deps.Engine.InferRules(0)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, inferRulesResponse{Inserted: inserted, Passes: passes})
}

type mlInferResponse struct {
	Inserted int `json:"inserted"`
}

// PostAdminMLInfer implements POST /admin/ml_infer: runs one pass of
// the ML inference engine's link prediction over the store, per
// spec.md §4.4's ml_inference(). Returns 503 if no embedding tensors
// were configured at startup.
func (s *Server) PostAdminMLInfer(c *gin.Context) {
	if s.Predictor == nil {
		writeError(c, errs.New(errs.KindPoolExhausted, "no ML inference tensors configured"))
		return
	}
	inserted, err := s.Deps.Engine.MLInfer(
		s.Predictor,
		s.Inference.SampleSize,
		s.Inference.TopK,
		s.Inference.ConfidenceThreshold,
		s.Inference.MaxInserts,
	)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, mlInferResponse{Inserted: inserted})
}

// GetMetrics implements GET /metrics, scraping the same registry
// s.Metrics was built against, refreshing the uptime and triple-count
// gauges first so a scrape always sees current values rather than
// whatever the last write happened to leave.
func (s *Server) GetMetrics() gin.HandlerFunc {
	handler := promhttp.HandlerFor(s.Metrics.Gatherer(), promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		s.Metrics.RefreshUptime()
		s.Metrics.SetKGTriplesTotal(s.Deps.Engine.Count())
		if s.Pool != nil {
			s.Metrics.SetBrowserTabsInUse(s.Pool.InUse())
		}
		handler.ServeHTTP(c.Writer, c.Request)
	}
}
