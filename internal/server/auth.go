package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"

	"doandearn/internal/domain"
	"doandearn/internal/engine/auth"
	"doandearn/internal/repo"
)

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

func (c AuthConfig) ttl() time.Duration {
	if c.TokenTTL > 0 {
		return c.TokenTTL
	}
	return 24 * time.Hour
}

// Principal is the authenticated caller. Roles are resolved per request from
// the account store so a role change applies to existing tokens.
type Principal struct {
	Email  string
	Source string
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

func emailFromContext(ctx context.Context) (string, huma.StatusError) {
	if p, ok := principalFromContext(ctx); ok && p.Email != "" {
		return p.Email, nil
	}
	return "", newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
}

// requireRole resolves the caller and checks it holds one of roles.
func (a api) requireRole(ctx context.Context, roles ...string) (string, string, error) {
	email, authErr := emailFromContext(ctx)
	if authErr != nil {
		return "", "", authErr
	}
	role, err := a.roles.RequireRole(ctx, email, roles...)
	if err != nil {
		return "", "", err
	}
	return email, role, nil
}

// requireSelfOrAdmin passes for target itself or an admin.
func (a api) requireSelfOrAdmin(ctx context.Context, target string) (string, string, error) {
	email, authErr := emailFromContext(ctx)
	if authErr != nil {
		return "", "", authErr
	}
	role, err := a.roles.RequireSelfOrAdmin(ctx, email, target)
	if err != nil {
		return "", "", err
	}
	return email, role, nil
}

// caller resolves the caller and its role without restricting it.
func (a api) caller(ctx context.Context) (string, string, error) {
	email, authErr := emailFromContext(ctx)
	if authErr != nil {
		return "", "", authErr
	}
	role, err := a.roles.Role(ctx, email)
	if err != nil {
		return "", "", err
	}
	return email, role, nil
}

func signToken(secret, email string, ttl time.Duration, now time.Time) (string, time.Time, error) {
	if strings.TrimSpace(secret) == "" {
		return "", time.Time{}, errors.New("jwt secret not configured")
	}
	expires := now.Add(ttl)
	claims := jwt.RegisteredClaims{
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	return signed, expires, err
}

func authenticateJWT(token string, secret string) (Principal, error) {
	if strings.TrimSpace(secret) == "" {
		return Principal{}, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwt.RegisteredClaims{}
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
	return Principal{Email: claims.Subject, Source: "jwt"}, nil
}

func authenticateAPIKey(ctx context.Context, r repo.Repo, key string) (Principal, error) {
	if strings.TrimSpace(key) == "" {
		return Principal{}, errors.New("api key required")
	}
	apiKey, err := r.GetAPIKeyByHash(ctx, repo.HashAPIKey(key))
	if err != nil {
		return Principal{}, err
	}
	if apiKey.Email == "" {
		return Principal{}, errors.New("api key missing email")
	}
	return Principal{Email: apiKey.Email, Source: "api_key"}, nil
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// isPublic reports whether route is served without credentials.
func isPublic(basePath, method, route string) bool {
	rel := strings.TrimPrefix(route, basePath)
	switch rel {
	case "/health", "/auth/token", "/best-workers", "/popular-tasks", "/openapi.json", "/docs":
		return true
	case "/users":
		return method == http.MethodPost
	}
	return false
}

func newAuthMiddleware(basePath string, cfg AuthConfig, r repo.Repo, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			// Only enforce for the API base path.
			if basePath != "" && !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			if isPublic(basePath, req.Method, path.Clean(req.URL.Path)) {
				next.ServeHTTP(w, req)
				return
			}

			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			apiKeyHeader := strings.TrimSpace(req.Header.Get("X-Api-Key"))

			if authz != "" {
				token, ok := bearerToken(authz)
				if !ok {
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
					return
				}
				principal, err := authenticateJWT(token, cfg.JWTSecret)
				if err != nil {
					logger.Debug("jwt rejected", "error", err)
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
					return
				}
				next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), principal)))
				return
			}

			if apiKeyHeader != "" {
				principal, err := authenticateAPIKey(req.Context(), r, apiKeyHeader)
				if err != nil {
					logger.Debug("api key rejected", "error", err)
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
					return
				}
				next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), principal)))
				return
			}

			respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil))
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}

type tokenRequest struct {
	Email string `json:"email" format:"email"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	ExpiresAt string `json:"expires_at" format:"date-time"`
}

// registerTokens exposes the token exchange for existing accounts. Identity
// verification happens upstream of this service.
func (a api) registerTokens(humaAPI huma.API) {
	huma.Register(humaAPI, huma.Operation{
		OperationID: "issue-token",
		Method:      http.MethodPost,
		Path:        "/auth/token",
		Summary:     "Exchange an account email for a bearer token",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body tokenRequest `json:"body"`
	}) (*struct {
		Body tokenResponse `json:"body"`
	}, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		u, err := a.engine.GetAccount(ctx, strings.TrimSpace(input.Body.Email))
		if err != nil {
			return nil, handleError(err)
		}
		token, expires, err := signToken(a.auth.JWTSecret, u.Email, a.auth.ttl(), time.Now())
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body tokenResponse `json:"body"`
		}{Body: tokenResponse{
			Token:     token,
			Email:     u.Email,
			Role:      u.Role,
			ExpiresAt: expires.UTC().Format(time.RFC3339),
		}}, nil
	})
}

// requireOwnerOrAdmin passes when the caller is owner or an admin.
func requireOwnerOrAdmin(email, role, owner, ownerRole string) error {
	if email == owner || role == domain.RoleAdmin {
		return nil
	}
	return auth.ForbiddenError{Role: ownerRole + " owner|" + domain.RoleAdmin}
}