// Package api exposes the settings mirror over a local HTTP API and an MCP
// tool server.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/kalambet/devsettings/internal/mirror"
)

const maxRequestBodySize = 64 << 10 // 64KB

// Toggler is the part of mirror.Controller the API drives.
type Toggler interface {
	SetToggle(ctx context.Context, key, value string) error
	Get(key string) (mirror.State, error)
	List() []mirror.State
}

// BootRestorer runs the boot-time restore on demand.
type BootRestorer interface {
	Restore(ctx context.Context, force bool) (mirror.Report, error)
}

type Deps struct {
	Mirror   Toggler
	Restorer BootRestorer // optional; POST /boot/restore returns 501 without it
	Token    string
	Logger   *zerolog.Logger
}

type SetRequest struct {
	Value json.RawMessage `json:"value"`
}

// NewHandler returns the local control API. /health is unauthenticated.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		nop := zerolog.Nop()
		deps.Logger = &nop
	}

	r := chi.NewRouter()
	r.Use(requestLogger(deps.Logger))
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Get("/settings", handleListSettings(deps))
		r.Get("/settings/{key}", handleGetSetting(deps))
		r.Put("/settings/{key}", handleSetSetting(deps))
		r.Post("/boot/restore", handleBootRestore(deps))
	})
	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleListSettings(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"settings": deps.Mirror.List()})
	}
}

func handleGetSetting(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := deps.Mirror.Get(chi.URLParam(r, "key"))
		if err != nil {
			toggleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func handleSetSetting(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req SetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		value, err := rawValue(req.Value)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		key := chi.URLParam(r, "key")
		if err := deps.Mirror.SetToggle(r.Context(), key, value); err != nil {
			deps.Logger.Info().Err(err).Str("key", key).Msg("toggle rejected")
			toggleError(w, err)
			return
		}
		st, err := deps.Mirror.Get(key)
		if err != nil {
			toggleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func handleBootRestore(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Restorer == nil {
			httpError(w, http.StatusNotImplemented, "api_error", "boot restore is not available")
			return
		}
		force := r.URL.Query().Get("force") == "true"
		report, err := deps.Restorer.Restore(r.Context(), force)
		if err != nil {
			if errors.Is(err, mirror.ErrAlreadyRestored) {
				httpError(w, http.StatusConflict, "conflict_error", "%v", err)
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "boot restore failed: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

// rawValue accepts a JSON string, number or boolean and returns its text.
func rawValue(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", errors.New("value is required")
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("invalid value: %w", err)
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case bool:
		return fmt.Sprintf("%t", t), nil
	case float64:
		return string(raw), nil
	default:
		return "", errors.New("value must be a string, number or boolean")
	}
}

// statusFor maps mirror errors to HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, mirror.ErrUnknownSetting):
		return http.StatusNotFound, "not_found_error"
	case errors.Is(err, mirror.ErrInvalidValue):
		return http.StatusBadRequest, "invalid_request_error"
	case errors.Is(err, mirror.ErrControlDisabled):
		return http.StatusConflict, "control_disabled"
	case errors.Is(err, mirror.ErrProtocolUnavailable):
		return http.StatusServiceUnavailable, "protocol_unavailable"
	case errors.Is(err, mirror.ErrNoSimSlot):
		return http.StatusServiceUnavailable, "no_sim_slot"
	default:
		return http.StatusInternalServerError, "api_error"
	}
}

func toggleError(w http.ResponseWriter, err error) {
	code, errType := statusFor(err)
	httpError(w, code, errType, "%v", err)
}

func requestLogger(log *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Dur("elapsed", time.Since(start)).Msg("request")
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
