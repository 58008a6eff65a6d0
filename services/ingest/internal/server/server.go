package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"promptdeck/internal/usertoken"
	"promptdeck/internal/util"
	"promptdeck/services/ingest/internal/app"
)

// maxBodyBytes bounds request bodies; CSV uploads get a larger cap.
const (
	maxBodyBytes    = 1 << 20
	maxCSVBodyBytes = 8 << 20
)

// ActorVerifier validates an access token and yields the caller identity.
type ActorVerifier interface {
	VerifyActor(token string) (usertoken.Actor, error)
}

// RateLimiter gates inbound requests per client key.
type RateLimiter interface {
	Allow(key string) bool
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	Verifier       ActorVerifier
	Limiter        RateLimiter
	TrustedProxies *util.TrustedProxies
}

// Server exposes HTTP endpoints for the ingestion service.
type Server struct {
	app            *app.App
	verifier       ActorVerifier
	limiter        RateLimiter
	trustedProxies *util.TrustedProxies
	mux            *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:            cfg.App,
		verifier:       cfg.Verifier,
		limiter:        cfg.Limiter,
		trustedProxies: cfg.TrustedProxies,
		mux:            http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler with the shared middleware chain.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(util.WithCORS(util.WithRequestID(util.WithRequestLog("ingest", s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.Handle("/v1/prompts/bulk", s.withActor(s.handleBulk))
	s.mux.Handle("/v1/prompts/bulk/csv", s.withActor(s.handleBulkCSV))
	s.mux.Handle("/v1/prompts/", s.withActor(s.handlePromptThumbnail))
	s.mux.Handle("/v1/batches/", s.withActor(s.handleBatchStatus))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) withActor(next func(http.ResponseWriter, *http.Request, app.Identity)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow(util.ClientIP(r, s.trustedProxies)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		if s.verifier == nil {
			writeError(w, http.StatusInternalServerError, "auth not configured")
			return
		}
		token, ok := usertoken.BearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		actor, err := s.verifier.VerifyActor(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, app.Identity{ID: actor.ID, Role: actor.Role})
	})
}

func (s *Server) handleBulk(w http.ResponseWriter, r *http.Request, actor app.Identity) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req app.BatchRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res, err := s.app.SubmitBatch(r.Context(), actor, req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleBulkCSV(w http.ResponseWriter, r *http.Request, actor app.Identity) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	items, err := parseCSVItems(io.LimitReader(r.Body, maxCSVBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	autoThumbnail := false
	if v := r.URL.Query().Get("autoThumbnail"); v != "" {
		autoThumbnail = v == "true" || v == "1"
	}
	res, err := s.app.SubmitBatch(r.Context(), actor, app.BatchRequest{Items: items, AutoThumbnail: autoThumbnail})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handlePromptThumbnail(w http.ResponseWriter, r *http.Request, actor app.Identity) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/v1/prompts/")
	id, ok := strings.CutSuffix(rest, "/thumbnail")
	if !ok || id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	res, err := s.app.RegenerateThumbnail(r.Context(), id, actor)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleBatchStatus(w http.ResponseWriter, r *http.Request, _ app.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/batches/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	rec, err := s.app.BatchStatus(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrBatchSize):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrPromptNotFound), errors.Is(err, app.ErrBatchNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, app.ErrNoContent):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
