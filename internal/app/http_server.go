package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"calsync/internal/domain"
	"calsync/internal/usecase"
)

// HTTPServer returns a configured http.Server exposing the engine's
// invocation surface to the scheduler/manual-trigger side. Call
// ListenAndServe on the returned server in a goroutine and Shutdown it on
// exit.
func (a *App) HTTPServer(addr string) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// /sync?integration=ID&type=full|incremental
	// Type defaults to incremental. Optional timeout override: ?timeout=5m.
	mux.HandleFunc("/sync", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		q := r.URL.Query()

		integrationID, err := strconv.ParseInt(q.Get("integration"), 10, 64)
		if err != nil || integrationID <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"status": "error",
				"error":  "integration must be a positive integer",
			})
			return
		}
		syncType := domain.SyncIncremental
		if t := q.Get("type"); t != "" {
			syncType = domain.SyncType(t)
		}

		ctx := r.Context()
		if tStr := q.Get("timeout"); tStr != "" {
			if d, err := time.ParseDuration(tStr); err == nil && d > 0 {
				var cancel func()
				ctx, cancel = context.WithTimeout(ctx, d)
				defer cancel()
			}
		}

		result, err := a.Sync(ctx, integrationID, syncType)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, usecase.ErrSyncRunning) {
				status = http.StatusConflict
			}
			writeJSON(w, status, map[string]any{
				"status": "error",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"result": result,
		})
	})

	// /integrations lists configured integrations with their last status.
	mux.HandleFunc("/integrations", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		integrations, err := a.Integrations(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"status": "error", "error": err.Error()})
			return
		}
		type view struct {
			ID             int64      `json:"id"`
			Provider       string     `json:"provider"`
			LastSyncAt     *time.Time `json:"last_sync_at,omitempty"`
			LastSyncStatus string     `json:"last_sync_status,omitempty"`
			LastError      string     `json:"last_error,omitempty"`
		}
		out := make([]view, 0, len(integrations))
		for _, integ := range integrations {
			out = append(out, view{
				ID:             integ.ID,
				Provider:       string(integ.Provider),
				LastSyncAt:     integ.LastSyncAt,
				LastSyncStatus: string(integ.LastSyncStatus),
				LastError:      integ.LastError,
			})
		}
		writeJSON(w, http.StatusOK, out)
	})

	// /integrations/test?integration=ID probes provider connectivity.
	mux.HandleFunc("/integrations/test", func(w http.ResponseWriter, r *http.Request) {
		integrationID, err := strconv.ParseInt(r.URL.Query().Get("integration"), 10, 64)
		if err != nil || integrationID <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"status": "error",
				"error":  "integration must be a positive integer",
			})
			return
		}
		test, err := a.TestIntegration(r.Context(), integrationID)
		if err != nil {
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"status": "error",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, test)
	})

	srv := &http.Server{Addr: addr, Handler: loggingMiddleware(a.log, mux)}
	a.log.Info("http trigger server configured", slog.String("addr", addr))
	return srv
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// loggingMiddleware provides basic request logging.
func loggingMiddleware(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote", r.RemoteAddr),
			slog.Duration("dur", time.Since(start)),
		)
	})
}
