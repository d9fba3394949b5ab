// Package handler exposes the orchestration façade over HTTP. Handlers are
// mounted under /restaurants/{rid} and only translate between JSON and
// façade calls.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/kiwari-pos/restaurant-ops/internal/apperr"
	"github.com/kiwari-pos/restaurant-ops/internal/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json names in validation details
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode JSON response")
	}
}

// decodeBody decodes the JSON body into dst and validates it. It writes
// the 400 response itself and reports whether the caller may continue.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	if err := validate.Struct(dst); err != nil {
		respondValidationError(w, err)
		return false
	}
	return true
}

func respondValidationError(w http.ResponseWriter, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		details := make([]string, 0, len(validationErrors))
		for _, fieldError := range validationErrors {
			switch fieldError.Tag() {
			case "required":
				details = append(details, fmt.Sprintf("%s is required", fieldError.Namespace()))
			default:
				details = append(details, fmt.Sprintf("%s is invalid", fieldError.Namespace()))
			}
		}
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "validation failed",
			"details": details,
		})
		return
	}
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
}

// writeError maps a façade error to its HTTP status. A follow-up failure
// still carries the committed result, so it is answered with 200 and a
// warning.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var followUp *apperr.FollowUpError
	if errors.As(err, &followUp) {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("step", followUp.Step).Msg("follow-up failed after commit")
		writeJSON(w, http.StatusOK, map[string]any{"result": followUp.Result, "warning": followUp.Error()})
		return
	}

	kind := apperr.KindOf(err)
	body := map[string]any{"error": err.Error(), "kind": kind}
	status := http.StatusInternalServerError
	switch kind {
	case apperr.KindInvalidTransition:
		status = http.StatusConflict
	case apperr.KindInsufficientInput:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindPartialGroupUpdate:
		status = http.StatusConflict
		var partial *apperr.PartialGroupUpdateError
		if errors.As(err, &partial) {
			body["updated"] = partial.Updated
			body["failed"] = partial.Failed
		}
	case apperr.KindInfrastructure:
		status = http.StatusServiceUnavailable
		body["retryable"] = true
	}

	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("kind", string(kind)).Msg("request failed")
		if kind != apperr.KindInfrastructure {
			body["error"] = "internal server error"
		}
	}
	writeJSON(w, status, body)
}

// --- Request parsing ---

// restaurantID prefers the id admitted by middleware.RequireRestaurant.
func restaurantID(r *http.Request) (uuid.UUID, error) {
	if rid, ok := middleware.RestaurantFromContext(r.Context()); ok {
		return rid, nil
	}
	return uuid.Parse(chi.URLParam(r, "rid"))
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// parseAmount parses an optional non-negative money string.
func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, errors.New("must not be negative")
	}
	return d, nil
}

// scope reads {rid} and, when idParam is set, that path id. It writes 400
// on malformed input.
func scope(w http.ResponseWriter, r *http.Request, idParam string) (uuid.UUID, int64, bool) {
	rid, err := restaurantID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return uuid.Nil, 0, false
	}
	if idParam == "" {
		return rid, 0, true
	}
	id, err := pathID(r, idParam)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return uuid.Nil, 0, false
	}
	return rid, id, true
}
