package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semanticbrowser/kb/internal/annotator"
	"github.com/semanticbrowser/kb/internal/auth"
	"github.com/semanticbrowser/kb/internal/coreops"
	"github.com/semanticbrowser/kb/internal/htmlparser"
	"github.com/semanticbrowser/kb/internal/kg"
	"github.com/semanticbrowser/kb/internal/ratelimit"
	"github.com/semanticbrowser/kb/internal/telemetry"
	"github.com/semanticbrowser/kb/internal/validator"
)

func init() { gin.SetMode(gin.TestMode) }

type testStack struct {
	router    *gin.Engine
	server    *Server
	auth      *auth.Authenticator
	limiter   *ratelimit.Limiter
	revocation *auth.MapRevocationStore
}

func newTestStack(t *testing.T, authEnabled bool) *testStack {
	t.Helper()
	secret := ""
	if authEnabled {
		secret = "0123456789abcdef0123456789abcdef"
	}
	revocation := auth.NewMapRevocationStore()
	authenticator := auth.New(secret, time.Hour, revocation, false)
	limiter := ratelimit.New(1000, time.Minute)
	metrics := telemetry.New(prometheus.NewRegistry())

	deps := coreops.Deps{
		Engine:     kg.NewEngine(),
		Annotator:  annotator.New(nil),
		Limits:     validator.DefaultLimits(),
		ParserOpts: htmlparser.DefaultOptions(),
	}
	server := &Server{Deps: deps, Auth: authenticator, Pool: nil, Metrics: metrics, Version: "test"}

	router := gin.New()
	SetupRoutes(router, server, authenticator, limiter, metrics, 5*time.Second)

	return &testStack{router: router, server: server, auth: authenticator, limiter: limiter, revocation: revocation}
}

func (ts *testStack) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthIsUnauthenticated(t *testing.T) {
	ts := newTestStack(t, true)
	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestParseWithAuthDisabledSucceedsAnonymously(t *testing.T) {
	ts := newTestStack(t, false)
	rec := ts.do(t, http.MethodPost, "/parse", `{"html":"<html><head><title>T</title></head><body>hi</body></html>"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"title":"T"`)
}

func TestParseWithoutBearerTokenIsUnauthorized(t *testing.T) {
	ts := newTestStack(t, true)
	rec := ts.do(t, http.MethodPost, "/parse", `{"html":"<html></html>"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"Unauthorized"`)
}

func TestTokenIssueThenAuthenticatedQueryRoundTrip(t *testing.T) {
	ts := newTestStack(t, true)

	tokenRec := ts.do(t, http.MethodPost, "/auth/token", `{"username":"alice","role":"user"}`, nil)
	require.Equal(t, http.StatusOK, tokenRec.Code)

	var tok struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(tokenRec.Body.Bytes(), &tok))
	require.NotEmpty(t, tok.Token)

	_, err := ts.server.Deps.Engine.Insert(kg.Triple{
		Subject: kg.IRI("http://ex/a"), Predicate: kg.IRI("http://ex/p"), Object: kg.Literal{Value: "v"},
	})
	require.NoError(t, err)

	queryRec := ts.do(t, http.MethodPost, "/query", `{"query":"ASK { <http://ex/a> <http://ex/p> \"v\" }"}`,
		map[string]string{"Authorization": "Bearer " + tok.Token})
	require.Equal(t, http.StatusOK, queryRec.Code)
	assert.Contains(t, queryRec.Body.String(), "true")
}

func TestRevokeRequiresAdminRole(t *testing.T) {
	ts := newTestStack(t, true)

	userTokenRec := ts.do(t, http.MethodPost, "/auth/token", `{"username":"bob","role":"user"}`, nil)
	var userTok struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(userTokenRec.Body.Bytes(), &userTok))

	rec := ts.do(t, http.MethodPost, "/auth/revoke", `{"token":"`+userTok.Token+`"}`,
		map[string]string{"Authorization": "Bearer " + userTok.Token})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRevokeByAdminThenQueryWithRevokedTokenFails(t *testing.T) {
	ts := newTestStack(t, true)

	victimRec := ts.do(t, http.MethodPost, "/auth/token", `{"username":"carol","role":"user"}`, nil)
	var victim struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(victimRec.Body.Bytes(), &victim))

	adminRec := ts.do(t, http.MethodPost, "/auth/token", `{"username":"root","role":"admin"}`, nil)
	var admin struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(adminRec.Body.Bytes(), &admin))

	revokeRec := ts.do(t, http.MethodPost, "/auth/revoke", `{"token":"`+victim.Token+`"}`,
		map[string]string{"Authorization": "Bearer " + admin.Token})
	require.Equal(t, http.StatusOK, revokeRec.Code)
	assert.Contains(t, revokeRec.Body.String(), `"revoked":true`)

	queryRec := ts.do(t, http.MethodPost, "/query", `{"query":"ASK { <http://ex/a> <http://ex/p> \"v\" }"}`,
		map[string]string{"Authorization": "Bearer " + victim.Token})
	assert.Equal(t, http.StatusUnauthorized, queryRec.Code)
}

func TestBrowseWithoutPoolReturns503(t *testing.T) {
	ts := newTestStack(t, false)
	rec := ts.do(t, http.MethodPost, "/browse", `{"url":"https://example.com"}`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"PoolExhausted"`)
}

func TestRateLimitReturns429AfterLimitExceeded(t *testing.T) {
	ts := newTestStack(t, false)
	for i := 0; i < 1000; i++ {
		rec := ts.do(t, http.MethodPost, "/parse", `{"html":"<html></html>"}`, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := ts.do(t, http.MethodPost, "/parse", `{"html":"<html></html>"}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func adminToken(t *testing.T, ts *testStack) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/auth/token", `{"username":"root","role":"admin"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tok struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))
	return tok.Token
}

func TestAdminInferRulesMaterializesSubClassOfClosure(t *testing.T) {
	ts := newTestStack(t, true)
	token := adminToken(t, ts)

	_, err := ts.server.Deps.Engine.Insert(kg.Triple{
		Subject: kg.IRI("http://ex/C1"), Predicate: kg.RDFSSubClassOf, Object: kg.IRI("http://ex/C2"),
	})
	require.NoError(t, err)
	_, err = ts.server.Deps.Engine.Insert(kg.Triple{
		Subject: kg.IRI("http://ex/C2"), Predicate: kg.RDFSSubClassOf, Object: kg.IRI("http://ex/C3"),
	})
	require.NoError(t, err)

	rec := ts.do(t, http.MethodPost, "/admin/infer_rules", "{}",
		map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.True(t, ts.server.Deps.Engine.Has(kg.Triple{
		Subject: kg.IRI("http://ex/C1"), Predicate: kg.RDFSSubClassOf, Object: kg.IRI("http://ex/C3"),
	}))
}

func TestAdminInferRulesRequiresAdminRole(t *testing.T) {
	ts := newTestStack(t, true)
	tokenRec := ts.do(t, http.MethodPost, "/auth/token", `{"username":"bob","role":"user"}`, nil)
	var tok struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(tokenRec.Body.Bytes(), &tok))

	rec := ts.do(t, http.MethodPost, "/admin/infer_rules", "{}",
		map[string]string{"Authorization": "Bearer " + tok.Token})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminMLInferWithoutPredictorReturns503(t *testing.T) {
	ts := newTestStack(t, true)
	token := adminToken(t, ts)

	rec := ts.do(t, http.MethodPost, "/admin/ml_infer", "{}",
		map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"PoolExhausted"`)
}

func TestMetricsEndpointExposesFixedNames(t *testing.T) {
	ts := newTestStack(t, false)
	rec := ts.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	for _, name := range []string{"kg_triples_total", "browser_tabs_in_use", "uptime_seconds"} {
		assert.Contains(t, body, name)
	}
}
