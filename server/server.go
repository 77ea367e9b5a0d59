// Package server exposes the medal pipeline over http.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ccollins476ad/halomedals/spartan"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	log "github.com/sirupsen/logrus"
)

const (
	ReadHeaderTimeout = 5 * time.Second
	ShutdownTimeout   = 5 * time.Second
)

// DefaultOrigins are the browser origins allowed when none are configured.
var DefaultOrigins = []string{"http://localhost", "http://localhost:3000"}

// Runner runs the medal pipeline for one player. *spartan.Runner implements
// it.
type Runner interface {
	Run(ctx context.Context, playerID string) (*spartan.Result, error)
}

type SpartanHandler struct {
	Runner Runner
}

// Get runs the pipeline for the player named in the path and responds with
// {"<spartan_id>": [medals sorted by count]}, or {"<spartan_id>": null} if
// the player was not found.
func (h *SpartanHandler) Get(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id := chi.URLParam(r, "spartan_id")

	res, err := h.Runner.Run(r.Context(), id)
	if errors.Is(err, spartan.ErrEmptyPlayerID) {
		http.Error(w, `{"error":"missing spartan id"}`, http.StatusBadRequest)
		return
	}
	if err != nil {
		log.WithError(err).Errorf("spartan run failed: player=%s", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	var medals any
	if res.Found {
		medals = res.Medals
	}
	json.NewEncoder(w).Encode(map[string]any{id: medals})
}

func health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// NewRouter builds the http routes. origins lists the browser origins allowed
// by CORS; DefaultOrigins is used if it is empty.
func NewRouter(runner Runner, origins []string) http.Handler {
	if len(origins) == 0 {
		origins = DefaultOrigins
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	h := &SpartanHandler{Runner: runner}
	r.Get("/health", health)
	r.Get("/spartan/{spartan_id}", h.Get)

	return r
}

// ListenAndServe serves handler on addr until ctx is done, then shuts down
// gracefully.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening: addr=%s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err

	case <-ctx.Done():
		log.Infof("shutting down: addr=%s", addr)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
