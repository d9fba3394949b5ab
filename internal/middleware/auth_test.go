package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiwari-pos/restaurant-ops/internal/auth"
	"github.com/kiwari-pos/restaurant-ops/internal/enum"
	"github.com/kiwari-pos/restaurant-ops/internal/middleware"
)

const testSecret = "test-secret"

func mustToken(t *testing.T, staffID int64, rid uuid.UUID, role string) string {
	t.Helper()
	token, err := auth.GenerateToken(testSecret, staffID, rid, role, time.Minute)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestAuthenticate(t *testing.T) {
	valid := mustToken(t, 7, uuid.New(), enum.RoleCashier)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid bearer", "Bearer " + valid, http.StatusOK},
		{"scheme is case-insensitive", "bearer " + valid, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"basic scheme", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + func() string {
			tok, _ := auth.GenerateToken("other-secret", 7, uuid.New(), enum.RoleCashier, time.Minute)
			return tok
		}(), http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen *auth.Claims
			h := middleware.Authenticate(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = middleware.ClaimsFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Fatalf("status: got %d, want %d", rr.Code, tt.want)
			}
			if tt.want == http.StatusOK && (seen == nil || seen.StaffID != 7) {
				t.Errorf("claims: got %+v, want staff 7", seen)
			}
		})
	}
}

func TestRequireRestaurant(t *testing.T) {
	home := uuid.New()
	other := uuid.New()

	tests := []struct {
		name string
		role string
		rid  string
		want int
	}{
		{"own restaurant", enum.RoleWaiter, home.String(), http.StatusOK},
		{"other restaurant", enum.RoleWaiter, other.String(), http.StatusForbidden},
		{"owner reaches every restaurant", enum.RoleOwner, other.String(), http.StatusOK},
		{"malformed id", enum.RoleWaiter, "not-a-uuid", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var admitted uuid.UUID
			inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				admitted, _ = middleware.RestaurantFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})
			h := middleware.Authenticate(testSecret)(middleware.RequireRestaurant(inner))

			req := httptest.NewRequest(http.MethodGet, "/restaurants/"+tt.rid+"/orders", nil)
			req.Header.Set("Authorization", "Bearer "+mustToken(t, 1, home, tt.role))
			req.SetPathValue("rid", tt.rid)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Fatalf("status: got %d, want %d", rr.Code, tt.want)
			}
			if tt.want == http.StatusOK && admitted.String() != tt.rid {
				t.Errorf("restaurant in context: got %s, want %s", admitted, tt.rid)
			}
		})
	}
}

func TestRequireRestaurant_WithoutClaims(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetPathValue("rid", uuid.NewString())
	rr := httptest.NewRecorder()
	middleware.RequireRestaurant(ok).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestRequireRole(t *testing.T) {
	cashierOnly := middleware.RequireRole(enum.RoleOwner, enum.RoleManager, enum.RoleCashier)(ok)

	for role, want := range map[string]int{
		enum.RoleCashier: http.StatusOK,
		enum.RoleOwner:   http.StatusOK,
		enum.RoleKitchen: http.StatusForbidden,
		enum.RoleWaiter:  http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req = req.WithContext(middleware.WithClaims(req.Context(), &auth.Claims{StaffID: 1, Role: role}))
		rr := httptest.NewRecorder()
		cashierOnly.ServeHTTP(rr, req)

		if rr.Code != want {
			t.Errorf("%s: got %d, want %d", role, rr.Code, want)
		}
	}

	rr := httptest.NewRecorder()
	cashierOnly.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("no claims: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}
