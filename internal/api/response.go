package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/erazemk/evidenca/internal/model"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into target. Unknown fields and
// trailing data are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

// serviceError maps an error from the service or store to a response.
func serviceError(w http.ResponseWriter, r *http.Request, err error, action string) {
	switch {
	case errors.Is(err, model.ErrValidation):
		jsonError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrNotFound):
		jsonError(w, http.StatusNotFound, "not found")
	case errors.Is(err, model.ErrCodeConflict):
		slog.Warn(action+": code conflict", "error", err, "request_id", RequestIDFrom(r.Context()))
		jsonError(w, http.StatusConflict, "code conflict, retry the request")
	case errors.Is(err, model.ErrStorageUnavailable):
		slog.Error(action, "error", err, "request_id", RequestIDFrom(r.Context()))
		jsonError(w, http.StatusServiceUnavailable, "storage unavailable")
	default:
		slog.Error(action, "error", err, "request_id", RequestIDFrom(r.Context()))
		jsonError(w, http.StatusInternalServerError, action)
	}
}

// pathID parses the {id} path value.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", r.PathValue("id"))
	}
	return id, nil
}

// queryInt reads an integer query parameter within [lo, hi].
func queryInt(r *http.Request, key string, def, lo, hi int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%s must be between %d and %d", key, lo, hi)
	}
	return v, nil
}

// actorID returns the authenticated user's id for audit records.
func actorID(r *http.Request) *int64 {
	claims := GetClaims(r.Context())
	if claims == nil {
		return nil
	}
	id := claims.UserID
	return &id
}
