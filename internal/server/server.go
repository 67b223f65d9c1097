// Package server is the HTTP front end: it translates provider webhook
// notifications and admin requests into sync trigger events. It never
// runs a sync itself; everything goes through the event loop.
package server

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kalyan02/blogdkr/internal/config"
	"github.com/kalyan02/blogdkr/internal/eventloop"
	"github.com/kalyan02/blogdkr/internal/remote/dropbox"
)

// Enqueuer accepts trigger events. Satisfied by *eventloop.Loop.
type Enqueuer interface {
	Enqueue(ev eventloop.Event)
	Pending() int
}

// Server serves the public webhook endpoints and the admin API on two
// separate listeners.
type Server struct {
	cfg       config.ServerConfig
	loop      Enqueuer
	auth      *dropbox.Authenticator // nil disables the auth endpoints
	appSecret string
	logger    *zap.Logger
}

// New creates a Server. appSecret, when non-empty, enables webhook
// signature verification.
func New(cfg config.ServerConfig, loop Enqueuer, auth *dropbox.Authenticator, appSecret string, logger *zap.Logger) *Server {
	return &Server{
		cfg:       cfg,
		loop:      loop,
		auth:      auth,
		appSecret: appSecret,
		logger:    logger,
	}
}

// PublicRouter serves the webhook and OAuth callback.
func (s *Server) PublicRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Get(s.cfg.WebhookPath, s.webhookChallenge)
	r.Post(s.cfg.WebhookPath, s.webhookNotification)
	if s.auth != nil {
		r.Get("/auth/callback", s.authCallback)
	}
	return r
}

// AdminRouter serves manual sync triggers, status and metrics. Bind it to
// a non-public address.
func (s *Server) AdminRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Post("/admin/sync", s.forceSync)
	r.Post("/admin/sync/cursor", s.syncFromCursor)
	r.Get("/admin/status", s.status)
	r.Handle("/metrics", promhttp.Handler())
	if s.auth != nil {
		r.Get("/admin/auth", s.startAuth)
	}
	return r
}

// Start runs both listeners until ctx is cancelled, then shuts them down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	public := &http.Server{Addr: s.cfg.ListenAddr, Handler: s.PublicRouter()}
	admin := &http.Server{Addr: s.cfg.AdminListenAddr, Handler: s.AdminRouter()}

	errCh := make(chan error, 2)
	go func() {
		s.logger.Info("public server listening", zap.String("addr", public.Addr))
		errCh <- public.ListenAndServe()
	}()
	go func() {
		s.logger.Info("admin server listening", zap.String("addr", admin.Addr))
		errCh <- admin.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		public.Shutdown(shutdownCtx)
		admin.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// webhookChallenge answers the provider's endpoint verification by echoing
// the challenge parameter.
func (s *Server) webhookChallenge(w http.ResponseWriter, r *http.Request) {
	challenge := r.URL.Query().Get("challenge")
	if challenge == "" {
		http.Error(w, "missing challenge", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	io.WriteString(w, challenge)
}

// webhookNotification verifies the provider signature and enqueues a
// RemoteChanged trigger. The notification body is not inspected beyond the
// signature: which files changed comes from the change feed, not the
// webhook.
func (s *Server) webhookNotification(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	if s.appSecret != "" {
		signature := r.Header.Get("X-Dropbox-Signature")
		if !s.validSignature(body, signature) {
			s.logger.Warn("webhook signature mismatch")
			http.Error(w, "invalid signature", http.StatusForbidden)
			return
		}
	}

	s.loop.Enqueue(eventloop.Event{Type: eventloop.RemoteChanged})
	s.logger.Info("webhook notification accepted")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) validSignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(s.appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (s *Server) forceSync(w http.ResponseWriter, _ *http.Request) {
	s.loop.Enqueue(eventloop.Event{Type: eventloop.ForceFullSync})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (s *Server) syncFromCursor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Cursor string `json:"cursor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Cursor == "" {
		http.Error(w, "cursor is required", http.StatusBadRequest)
		return
	}
	s.loop.Enqueue(eventloop.Event{
		Type:   eventloop.RemoteChangedWithCursor,
		Cursor: req.Cursor,
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"pending_events": s.loop.Pending(),
	})
}

// startAuth returns the URL the user visits to grant access.
func (s *Server) startAuth(w http.ResponseWriter, _ *http.Request) {
	url, state := s.auth.AuthorizeURL()
	writeJSON(w, http.StatusOK, map[string]string{
		"authorize_url": url,
		"state":         state,
	})
}

// authCallback completes the OAuth flow by exchanging the code, then kicks
// off an initial full sync.
func (s *Server) authCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing code", http.StatusBadRequest)
		return
	}
	if err := s.auth.Exchange(r.Context(), code); err != nil {
		s.logger.Error("code exchange failed", zap.Error(err))
		http.Error(w, "exchange failed", http.StatusBadGateway)
		return
	}
	s.loop.Enqueue(eventloop.Event{Type: eventloop.ForceFullSync})
	writeJSON(w, http.StatusOK, map[string]string{"status": "authorized"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
