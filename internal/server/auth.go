package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"

	"stageline/internal/domain"
)

type AuthConfig struct {
	JWTSecret string
	// StageAdminRoles may mutate the stage registry.
	StageAdminRoles []string
}

// Principal is the caller identified by a bearer token.
type Principal struct {
	UserID   string
	TenantID string
	Role     string
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// caller returns the tenant and acting user of the request, with the client
// address and user agent as provenance.
func caller(ctx context.Context) (string, domain.Actor, huma.StatusError) {
	p, ok := principalFromContext(ctx)
	if !ok || p.UserID == "" || p.TenantID == "" {
		return "", domain.Actor{}, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
	}
	actor := domain.Actor{UserID: p.UserID, Role: p.Role}
	if req, ok := ctx.Value(requestKey{}).(*http.Request); ok {
		actor.IPAddress = clientIP(req)
		actor.UserAgent = req.UserAgent()
	}
	return p.TenantID, actor, nil
}

func requireRole(actor domain.Actor, roles []string) huma.StatusError {
	if slices.ContainsFunc(roles, func(r string) bool { return strings.EqualFold(r, actor.Role) }) {
		return nil
	}
	return newAPIError(http.StatusForbidden, "forbidden", "role not allowed to manage stages", map[string]any{"role": actor.Role})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type jwtClaims struct {
	jwt.RegisteredClaims
	TenantID string `json:"tenant_id"`
	Role     string `json:"role,omitempty"`
}

// IssueToken signs an HS256 token for p. A zero ttl issues a token without
// expiry.
func IssueToken(secret string, p Principal, ttl time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	if p.UserID == "" || p.TenantID == "" {
		return "", errors.New("user id and tenant id are required")
	}
	now := time.Now()
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  p.UserID,
			IssuedAt: jwt.NewNumericDate(now),
		},
		TenantID: p.TenantID,
		Role:     p.Role,
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func authenticateJWT(token string, secret string) (Principal, error) {
	if strings.TrimSpace(secret) == "" {
		return Principal{}, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwtClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return Principal{}, err
	}
	if !parsed.Valid {
		return Principal{}, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return Principal{}, errors.New("subject claim required")
	}
	if claims.TenantID == "" {
		return Principal{}, errors.New("tenant_id claim required")
	}
	return Principal{
		UserID:   claims.Subject,
		TenantID: claims.TenantID,
		Role:     strings.ToUpper(claims.Role),
	}, nil
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// underBasePath reports whether p is basePath itself or a path below it.
// "/v1foo" is not under "/v1".
func underBasePath(p, basePath string) bool {
	base := strings.TrimSuffix(basePath, "/")
	return p == base || strings.HasPrefix(p, base+"/")
}

func newAuthMiddleware(basePath string, cfg AuthConfig) func(http.Handler) http.Handler {
	healthPath := path.Join(basePath, "health")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			// Only enforce for API base path.
			if !underBasePath(req.URL.Path, basePath) || req.URL.Path == healthPath {
				next.ServeHTTP(w, req)
				return
			}
			if req.URL.Path == path.Join(basePath, "openapi.json") {
				next.ServeHTTP(w, req)
				return
			}
			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			if authz == "" {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil))
				return
			}
			token, ok := bearerToken(authz)
			if !ok {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
				return
			}
			principal, err := authenticateJWT(token, cfg.JWTSecret)
			if err != nil {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
				return
			}
			next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), principal)))
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.GetStatus())
	_ = json.NewEncoder(w).Encode(err)
}
