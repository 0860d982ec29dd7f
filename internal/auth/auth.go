// Package auth issues and validates HS256 JWTs and enforces a
// fail-open-by-default revocation check, per spec.md §4.6. When no
// secret is configured the process runs "auth-disabled": every request
// is treated as authenticated as a synthetic anonymous/none principal.
package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/semanticbrowser/kb/internal/errs"
	"github.com/semanticbrowser/kb/internal/logging"
)

// Claims mirrors spec.md §3's JwtClaims: subject, issued_at, expires_at,
// optional role.
type Claims struct {
	Subject   string `json:"sub"`
	Role      string `json:"role,omitempty"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// AnonymousSubject is used for every request when the service runs
// auth-disabled.
const AnonymousSubject = "anonymous/none"

// Authenticator issues and validates tokens and checks revocation.
type Authenticator struct {
	secret      []byte
	lifetime    time.Duration
	enabled     bool
	revocation  RevocationStore
	revFailOpen bool
}

// RevocationStore is the minimal durable set the auth layer needs:
// membership test and insert-with-TTL. Implementations may be an
// in-process map (default) or a networked store.
type RevocationStore interface {
	IsRevoked(tokenID string) (bool, error)
	Revoke(tokenID string, ttl time.Duration) error
}

// New builds an Authenticator. secret == "" puts the service in
// auth-disabled mode. The caller is responsible for having already
// enforced the ≥32-byte secret rule at config-validation time
// (internal/config.validate).
func New(secret string, lifetime time.Duration, revocation RevocationStore, revocationFailClosed bool) *Authenticator {
	return &Authenticator{
		secret:      []byte(secret),
		lifetime:    lifetime,
		enabled:     secret != "",
		revocation:  revocation,
		revFailOpen: !revocationFailClosed,
	}
}

// Enabled reports whether auth is active.
func (a *Authenticator) Enabled() bool { return a.enabled }

// Issue mints a token for subject/role with the configured lifetime.
// Returns the compact JWS and the lifetime in seconds.
func (a *Authenticator) Issue(subject, role string) (token string, expiresIn int64, err error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(a.lifetime).Unix(),
	}
	if role != "" {
		claims["role"] = role
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(a.secret)
	if err != nil {
		return "", 0, errs.Wrap(errs.KindInternal, "failed to sign token", err)
	}
	return signed, int64(a.lifetime.Seconds()), nil
}

// Validate parses "Authorization: Bearer <token>", verifies signature,
// expiry, and (if a revocation store is configured) revocation status.
// When auth is disabled, always succeeds with the anonymous principal.
func (a *Authenticator) Validate(authHeader string) (*Claims, error) {
	if !a.enabled {
		now := time.Now().Unix()
		return &Claims{Subject: AnonymousSubject, IssuedAt: now, ExpiresAt: now + int64(24*time.Hour/time.Second)}, nil
	}

	raw := strings.TrimPrefix(authHeader, "Bearer ")
	if raw == authHeader || raw == "" {
		return nil, errs.New(errs.KindUnauthorized, "missing bearer token")
	}

	parsed, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errs.New(errs.KindUnauthorized, "unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		logging.Get(logging.CategoryAuth).Warn("token validation failed: %v", err)
		return nil, errs.Wrap(errs.KindUnauthorized, "invalid or expired token", err)
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errs.New(errs.KindUnauthorized, "malformed claims")
	}
	claims, err := claimsFromMap(mapClaims)
	if err != nil {
		return nil, err
	}

	if a.revocation != nil {
		tokenID := tokenIdentifier(raw)
		revoked, err := a.revocation.IsRevoked(tokenID)
		if err != nil {
			if a.revFailOpen {
				logging.Get(logging.CategoryAuth).Error("revocation store unavailable, failing open: %v", err)
			} else {
				return nil, errs.Wrap(errs.KindUnauthorized, "revocation store unavailable", err)
			}
		} else if revoked {
			return nil, errs.New(errs.KindUnauthorized, "token has been revoked")
		}
	}

	return claims, nil
}

// Revoke records raw (as returned by Issue) as revoked until its
// expiry, per spec.md §4.6: "store with TTL = exp − now".
func (a *Authenticator) Revoke(raw string) (bool, error) {
	if a.revocation == nil {
		return false, errs.New(errs.KindInternal, "revocation store not configured")
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return false, errs.Wrap(errs.KindUnauthorized, "cannot parse token to revoke", err)
	}
	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return false, errs.New(errs.KindUnauthorized, "malformed claims")
	}
	claims, err := claimsFromMap(mapClaims)
	if err != nil {
		return false, err
	}
	ttl := time.Until(time.Unix(claims.ExpiresAt, 0))
	if ttl <= 0 {
		return true, nil // already expired; nothing to revoke
	}
	if err := a.revocation.Revoke(tokenIdentifier(raw), ttl); err != nil {
		return false, errs.Wrap(errs.KindInternal, "failed to record revocation", err)
	}
	return true, nil
}

func claimsFromMap(m jwt.MapClaims) (*Claims, error) {
	sub, _ := m["sub"].(string)
	role, _ := m["role"].(string)
	iat, okIat := numberClaim(m["iat"])
	exp, okExp := numberClaim(m["exp"])
	if sub == "" || !okIat || !okExp {
		return nil, errs.New(errs.KindUnauthorized, "missing required claims")
	}
	return &Claims{Subject: sub, Role: role, IssuedAt: iat, ExpiresAt: exp}, nil
}

func numberClaim(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case jwt.NumericDate:
		return n.Unix(), true
	default:
		return 0, false
	}
}

// tokenIdentifier derives a stable revocation key from the raw compact
// JWS without needing a dedicated jti claim: the signature segment is
// unique per issued token.
func tokenIdentifier(raw string) string {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return raw
	}
	return parts[2]
}
