package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	userIDKey contextKey = "user_id"
	rolesKey  contextKey = "roles"
)

// Roles known to the ticketing API.
const (
	RoleUser     = "USER"
	RoleStaff    = "STAFF"
	RoleSecurity = "SECURITY"
	RoleAdmin    = "ADMIN"
)

type claims struct {
	Sub   string   `json:"sub"`
	Roles []string `json:"roles"`
}

// Middleware authenticates bearer tokens. With an OIDC issuer
// configured it verifies tokens against the provider; otherwise it
// falls back to HS256 with a shared secret, which is what local and
// test deployments run.
func Middleware(oidcIssuer, jwtSecret string) func(http.Handler) http.Handler {
	var verifier *oidc.IDTokenVerifier
	if oidcIssuer != "" {
		provider, err := oidc.NewProvider(context.Background(), oidcIssuer)
		if err != nil {
			panic(fmt.Sprintf("Failed to create OIDC provider: %v", err))
		}
		verifier = provider.Verifier(&oidc.Config{SkipClientIDCheck: true})
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := bearerToken(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			var c claims
			if verifier != nil {
				idToken, err := verifier.Verify(r.Context(), rawToken)
				if err != nil {
					http.Error(w, fmt.Sprintf("invalid token: %v", err), http.StatusUnauthorized)
					return
				}
				if err := idToken.Claims(&c); err != nil {
					http.Error(w, "failed to parse claims", http.StatusUnauthorized)
					return
				}
			} else {
				if err := parseHS256(rawToken, jwtSecret, &c); err != nil {
					http.Error(w, fmt.Sprintf("invalid token: %v", err), http.StatusUnauthorized)
					return
				}
			}
			if c.Sub == "" {
				http.Error(w, "subject claim missing", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, c.Sub)
			ctx = context.WithValue(ctx, rolesKey, c.Roles)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseHS256(rawToken, secret string, c *claims) error {
	token, err := jwt.Parse(rawToken, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return err
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return fmt.Errorf("invalid token claims")
	}
	c.Sub, _ = mapClaims["sub"].(string)
	if raw, ok := mapClaims["roles"].([]interface{}); ok {
		for _, r := range raw {
			if s, ok := r.(string); ok {
				c.Roles = append(c.Roles, s)
			}
		}
	}
	return nil
}

func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("missing Authorization header")
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", fmt.Errorf("invalid Authorization header format")
	}
	return parts[1], nil
}

// RequireRole gates a route to callers holding at least one of the
// given roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, role := range roles {
				if HasRole(r.Context(), role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "insufficient role", http.StatusForbidden)
		})
	}
}

// UserID extracts the authenticated user's id from the context.
func UserID(ctx context.Context) string {
	if uid, ok := ctx.Value(userIDKey).(string); ok {
		return uid
	}
	return ""
}

// HasRole reports whether the context carries the given role.
func HasRole(ctx context.Context, role string) bool {
	roles, ok := ctx.Value(rolesKey).([]string)
	if !ok {
		return false
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsStaff reports whether the caller holds any role with ticket
// override rights.
func IsStaff(ctx context.Context) bool {
	return HasRole(ctx, RoleStaff) || HasRole(ctx, RoleSecurity) || HasRole(ctx, RoleAdmin)
}
