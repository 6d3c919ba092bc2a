// Package authserver is the stand-alone mock authentication service the portal
// talks to in remote auth mode.
package authserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"portal/api/internal/auth"
	"portal/api/internal/directory"
	"portal/api/internal/httpx"
	"portal/api/internal/metrics"
	"portal/api/internal/rbac"
)

const tokenIssuer = "platform-auth"

type Options struct {
	Directory     *directory.Directory
	Authenticator directory.Authenticator
	JWTSecret     string
	TokenTTL      time.Duration
	Logger        *zap.Logger
	// Limiter and Metrics are optional.
	Limiter *httpx.RateLimiter
	Metrics *metrics.Metrics
}

type Server struct {
	dir     *directory.Directory
	authn   directory.Authenticator
	issuer  *auth.Issuer
	logger  *zap.Logger
	limiter *httpx.RateLimiter
	metrics *metrics.Metrics
}

func New(opts Options) (*Server, error) {
	if opts.Directory == nil || opts.Authenticator == nil {
		return nil, errors.New("authserver: directory and authenticator are required")
	}
	if strings.TrimSpace(opts.JWTSecret) == "" {
		return nil, errors.New("authserver: jwt secret is required")
	}
	ttl := opts.TokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		dir:     opts.Directory,
		authn:   opts.Authenticator,
		issuer:  auth.NewIssuer(opts.JWTSecret, tokenIssuer, ttl),
		logger:  logger,
		limiter: opts.Limiter,
		metrics: opts.Metrics,
	}, nil
}

// Issuer verifies tokens this server signed.
func (s *Server) Issuer() *auth.Issuer { return s.issuer }

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(httpx.Middleware(s.logger, "*"))
	if s.metrics != nil {
		r.Use(s.metrics.Instrument)
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	r.Options("/*", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Post("/api/login", s.handleLogin)
	r.Post("/api/logs", s.handleLogs)
	r.Get("/api/admin/users", s.handleUsers)
	return r
}

type loginResponse struct {
	Success bool            `json:"success"`
	Token   string          `json:"token,omitempty"`
	User    *directory.User `json:"user,omitempty"`
	Message string          `json:"message,omitempty"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil && !s.limiter.Allow(httpx.RemoteHost(r)) {
		s.observeLogin(metrics.LoginLimited)
		w.Header().Set("Retry-After", "1")
		httpx.WriteJSON(w, http.StatusTooManyRequests, loginResponse{Message: "Too many login attempts"})
		return
	}

	var creds directory.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, loginResponse{Message: "Invalid request body"})
		return
	}

	user, err := s.authn.Authenticate(r.Context(), creds)
	switch {
	case errors.Is(err, directory.ErrInvalidCredentials):
		s.observeLogin(metrics.LoginRejected)
		s.logger.Info("login rejected", zap.String("username", creds.Username), zap.String("domain", creds.Domain))
		httpx.WriteJSON(w, http.StatusUnauthorized, loginResponse{Message: "Invalid credentials"})
		return
	case err != nil:
		s.observeLogin(metrics.LoginError)
		s.logger.Error("login failed", zap.Error(err))
		httpx.WriteJSON(w, http.StatusInternalServerError, loginResponse{Message: "Authentication failed"})
		return
	}

	token, _, err := s.issuer.Issue(user.ID, user.Name, string(user.Role), uuid.NewString())
	if err != nil {
		s.observeLogin(metrics.LoginError)
		s.logger.Error("issue token", zap.Error(err))
		httpx.WriteJSON(w, http.StatusInternalServerError, loginResponse{Message: "Authentication failed"})
		return
	}
	s.observeLogin(metrics.LoginSuccess)
	s.logger.Info("login", zap.String("user", user.ID), zap.String("role", string(user.Role)))
	httpx.WriteJSON(w, http.StatusOK, loginResponse{Success: true, Token: token, User: &user})
}

type logEntry struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	UserID    string `json:"userId"`
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	var entry logEntry
	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err == nil {
		err = json.Unmarshal(body, &entry)
	}
	if err != nil {
		http.Error(w, "Invalid log entry", http.StatusBadRequest)
		return
	}
	fields := []zap.Field{
		zap.String("type", entry.Type),
		zap.String("user", entry.UserID),
		zap.String("client_timestamp", entry.Timestamp),
	}
	switch strings.ToLower(entry.Type) {
	case "error":
		s.logger.Error(entry.Message, fields...)
	case "warning":
		s.logger.Warn(entry.Message, fields...)
	default:
		s.logger.Info(entry.Message, fields...)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "Logged")
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	token := httpx.BearerToken(r)
	if token == "" {
		httpx.WriteJSON(w, http.StatusUnauthorized, loginResponse{Message: "Missing bearer token"})
		return
	}
	claims, err := s.issuer.Parse(token)
	if err != nil {
		httpx.WriteJSON(w, http.StatusUnauthorized, loginResponse{Message: "Invalid token"})
		return
	}
	if !rbac.Can(rbac.Role(claims.Role), rbac.ActionAdmin) {
		httpx.WriteJSON(w, http.StatusForbidden, loginResponse{Message: "Admin role required"})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, s.dir.List())
}

func (s *Server) observeLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveLogin(outcome)
	}
}
