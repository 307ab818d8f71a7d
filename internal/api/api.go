// Package api provides the HTTP surface of ParkEasy.
//
// It exposes the Meta WhatsApp Cloud webhook (verification and inbound
// messages), a Twilio-compatible webhook, the secret-gated endpoint that
// triggers the daily maintenance tasks, and the static receipt images
// referenced by outbound media messages.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"github.com/parkeasy/parkeasy/internal/models"
)

// MessageHandler consumes inbound WhatsApp messages. Satisfied by
// flow.Engine.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg models.InboundMessage) error
}

// DailyRunner executes the daily maintenance tasks. Satisfied by jobs.Daily.
type DailyRunner interface {
	Run(ctx context.Context) error
}

// Opts holds configuration options for the API server.
type Opts struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string
	// VerifyToken is the token Meta echoes during webhook verification.
	VerifyToken string
	// CronSecret gates the daily-tasks endpoint.
	CronSecret string
	// MediaDir, when set, is served under /receipts/.
	MediaDir string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithVerifyToken sets the webhook verification token.
func WithVerifyToken(token string) Option {
	return func(o *Opts) { o.VerifyToken = token }
}

// WithCronSecret sets the daily-tasks endpoint secret.
func WithCronSecret(secret string) Option {
	return func(o *Opts) { o.CronSecret = secret }
}

// WithMediaDir sets the directory served under /receipts/.
func WithMediaDir(dir string) Option {
	return func(o *Opts) { o.MediaDir = dir }
}

// Server is the ParkEasy HTTP server.
type Server struct {
	handler     MessageHandler
	daily       DailyRunner
	verifyToken string
	cronSecret  string
	router      *mux.Router
	httpServer  *http.Server
}

// NewServer creates the API server. VerifyToken and CronSecret fall back to
// the VERIFY_TOKEN and CRON_SECRET environment variables, the address to
// PORT (default ":8080").
func NewServer(handler MessageHandler, daily DailyRunner, opts ...Option) (*Server, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.VerifyToken == "" {
		cfg.VerifyToken = os.Getenv("VERIFY_TOKEN")
	}
	if cfg.CronSecret == "" {
		cfg.CronSecret = os.Getenv("CRON_SECRET")
	}
	if cfg.Addr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.Addr = ":" + port
		} else {
			cfg.Addr = ":8080"
		}
	}
	if handler == nil {
		return nil, fmt.Errorf("message handler must be provided")
	}

	s := &Server{
		handler:     handler,
		daily:       daily,
		verifyToken: cfg.VerifyToken,
		cronSecret:  cfg.CronSecret,
		router:      mux.NewRouter(),
	}
	s.router.HandleFunc("/webhook", s.verifyWebhook).Methods(http.MethodGet)
	s.router.HandleFunc("/webhook", s.receiveMetaWebhook).Methods(http.MethodPost)
	s.router.HandleFunc("/webhook/twilio", s.receiveTwilioWebhook).Methods(http.MethodPost)
	s.router.HandleFunc("/run-daily-tasks", s.runDailyTasks).Methods(http.MethodPost)
	s.router.HandleFunc("/health", s.health).Methods(http.MethodGet)
	if cfg.MediaDir != "" {
		s.router.PathPrefix("/receipts/").Handler(
			http.StripPrefix("/receipts/", http.FileServer(http.Dir(cfg.MediaDir))))
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	slog.Debug("Server config loaded", "addr", cfg.Addr,
		"verify_token_set", cfg.VerifyToken != "", "cron_secret_set", cfg.CronSecret != "",
		"media_dir", cfg.MediaDir)
	return s, nil
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves HTTP until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	slog.Info("Server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}

// runDailyTasks triggers the daily maintenance run. The work happens in the
// background so the caller's timeout never interrupts it.
func (s *Server) runDailyTasks(w http.ResponseWriter, r *http.Request) {
	if s.cronSecret == "" || r.Header.Get("x-cron-secret") != s.cronSecret {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, "Unauthorized")
		return
	}
	if s.daily != nil {
		go func() {
			if err := s.daily.Run(context.Background()); err != nil {
				slog.Error("Server daily tasks failed", "error", err)
			}
		}()
	}
	w.WriteHeader(http.StatusAccepted)
	fmt.Fprint(w, "Accepted: Daily tasks are running in the background.")
}
