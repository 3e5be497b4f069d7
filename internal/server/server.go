package server

import (
	"encoding/json"
	"net/http"
	"net/netip"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/metrics/export/prometheus"
	"github.com/MrEthical07/authcore/middleware"
)

const maxBodyBytes = 64 << 10

// Server exposes an Engine over JSON/HTTP.
type Server struct {
	engine  *authcore.Engine
	logger  *zap.Logger
	proxies []netip.Prefix
}

// New builds a Server. proxies lists the reverse proxies whose
// X-Forwarded-For entries are believed.
func New(engine *authcore.Engine, logger *zap.Logger, proxies []netip.Prefix) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{engine: engine, logger: logger, proxies: proxies}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	guard := middleware.Guard(s.engine)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.Handle("GET /metrics", prometheus.Handler(prometheus.NewCollector(s.engine)))

	mux.HandleFunc("POST /register", s.register)
	mux.HandleFunc("POST /verify-email", s.verifyEmail)
	mux.HandleFunc("POST /verify-email/resend", s.resendVerification)
	mux.HandleFunc("POST /login", s.login)
	mux.HandleFunc("POST /refresh", s.refresh)
	mux.Handle("POST /logout", guard(http.HandlerFunc(s.logout)))
	mux.HandleFunc("POST /password/forgot", s.forgotPassword)
	mux.HandleFunc("POST /password/reset", s.resetPassword)
	mux.Handle("POST /password/change", guard(http.HandlerFunc(s.changePassword)))

	mux.Handle("POST /2fa/setup", guard(http.HandlerFunc(s.startTwoFactor)))
	mux.Handle("POST /2fa/activate", guard(http.HandlerFunc(s.activateTwoFactor)))
	mux.Handle("POST /2fa/disable", guard(http.HandlerFunc(s.disableTwoFactor)))
	mux.Handle("POST /2fa/backup-codes", guard(http.HandlerFunc(s.regenerateBackupCodes)))

	mux.HandleFunc("GET /oauth/{provider}/start", s.beginOAuth)
	mux.HandleFunc("GET /oauth/{provider}/callback", s.completeOAuth)

	mux.Handle("GET /me", guard(http.HandlerFunc(s.me)))

	return middleware.ClientIP(s.proxies)(s.logRequests(mux))
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, authcore.InvalidFormat("body"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	middleware.WriteError(w, middleware.StatusFor(err), err)
}

type tokenResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func tokens(p *authcore.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		TokenType:        "Bearer",
		AccessExpiresAt:  p.AccessExpiresAt,
		RefreshExpiresAt: p.RefreshExpiresAt,
	}
}

// accountID reads the verified claims set by the guard.
func accountID(r *http.Request) int64 {
	c, _ := authcore.ClaimsFromContext(r.Context())
	if c == nil {
		return 0
	}
	return c.AccountID
}
