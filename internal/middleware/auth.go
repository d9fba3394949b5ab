// Package middleware holds the HTTP middleware shared by every route:
// staff authentication, restaurant scoping, role gates and request logging.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/kiwari-pos/restaurant-ops/internal/auth"
	"github.com/rs/zerolog"
)

type ctxKey int

const (
	claimsKey ctxKey = iota
	restaurantKey
)

var (
	errNoHeader  = errors.New("missing authorization header")
	errBadScheme = errors.New("invalid authorization format")
)

// Authenticate validates the bearer token and stores its claims in the
// request context.
func Authenticate(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				deny(w, http.StatusUnauthorized, err.Error())
				return
			}
			claims, err := auth.ValidateToken(jwtSecret, token)
			if err != nil {
				deny(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errNoHeader
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return "", errBadScheme
	}
	return strings.TrimSpace(token), nil
}

// RequireRestaurant admits a request only when the {rid} path value is a
// restaurant the caller may act on. The restaurant id is stored in the
// context and the request logger is tagged with the caller.
func RequireRestaurant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFromContext(r.Context())
		if claims == nil {
			deny(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		rid, err := uuid.Parse(r.PathValue("rid"))
		if err != nil {
			deny(w, http.StatusBadRequest, "invalid restaurant ID")
			return
		}
		if !claims.CanAccess(rid) {
			deny(w, http.StatusForbidden, "access denied for this restaurant")
			return
		}

		ctx := context.WithValue(r.Context(), restaurantKey, rid)
		logger := zerolog.Ctx(ctx).With().
			Str("restaurant_id", rid.String()).
			Int64("staff_id", claims.StaffID).
			Str("role", claims.Role).
			Logger()
		next.ServeHTTP(w, r.WithContext(logger.WithContext(ctx)))
	})
}

// RequireRole admits callers holding one of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			switch {
			case claims == nil:
				deny(w, http.StatusUnauthorized, "not authenticated")
			case !allowed[claims.Role]:
				deny(w, http.StatusForbidden, "insufficient permissions")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func ClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

// WithClaims stores claims in ctx the way Authenticate does.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// RestaurantFromContext returns the restaurant admitted by RequireRestaurant.
func RestaurantFromContext(ctx context.Context) (uuid.UUID, bool) {
	rid, ok := ctx.Value(restaurantKey).(uuid.UUID)
	return rid, ok
}

func deny(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
