package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"vizintel/api/internal/config"
	"vizintel/api/internal/live"
	"vizintel/api/internal/logging"
	"vizintel/api/internal/metrics"
	"vizintel/api/internal/services"
)

const sessionCookie = "authToken"

type Deps struct {
	Sessions *services.Sessions
	Accounts *services.Accounts
	Records  *services.Records
	Tickets  *services.Tickets
	Traffic  *services.Traffic
	Hub      *live.Hub
	Metrics  *metrics.Metrics
	Log      logging.Logger
}

type Server struct {
	cfg      config.Config
	sessions *services.Sessions
	accounts *services.Accounts
	records  *services.Records
	tickets  *services.Tickets
	traffic  *services.Traffic
	hub      *live.Hub
	metrics  *metrics.Metrics
	log      logging.Logger
	now      func() time.Time
}

func NewServer(cfg config.Config, deps Deps) *Server {
	return &Server{
		cfg:      cfg,
		sessions: deps.Sessions,
		accounts: deps.Accounts,
		records:  deps.Records,
		tickets:  deps.Tickets,
		traffic:  deps.Traffic,
		hub:      deps.Hub,
		metrics:  deps.Metrics,
		log:      deps.Log.With("module", "http"),
		now:      time.Now,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders(s.cfg.Production)...)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{s.cfg.AllowedOrigin},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(s.countTraffic)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("API is running..."))
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", s.metrics.Handler())

	// Sessions
	r.Post("/api/auth/register", s.handleRegister)
	r.Post("/api/auth/login", s.handleLogin)
	r.Post("/api/auth/superadminregister", s.handleRegisterAdmin)
	r.Post("/api/auth/superadminlogin", s.handleAdminLogin)
	r.Post("/auth/google", s.handleGoogleLogin)
	r.Post("/adminAuth/google", s.handleGoogleAdminLogin)
	r.Post("/api/auth/password-reset", s.handlePasswordReset)
	r.Post("/api/auth/logout", s.handleLogout)
	r.With(s.authMiddleware).Get("/api/auth/me", s.handleMe)

	// Profiles and aggregates
	r.With(s.authMiddleware, s.requireAdmin).Get("/api/users", s.handleListUsers)
	r.With(s.authMiddleware, s.requireAdmin).Get("/api/users/count", s.handleCountUsers)
	r.With(s.authMiddleware, s.requireAdmin).Get("/api/datas/count", s.handleCountRecords)
	r.With(s.authMiddleware, s.requireAdmin).Get("/api/user/profile", s.handleSearchProfiles)
	r.With(s.authMiddleware, s.requireAdmin).Put("/api/user/manage", s.handleManageUser)
	r.With(s.authMiddleware, s.requireAdmin).Get("/api/traffic/week", s.handleTrafficWeek)

	// Records
	r.With(s.authMiddleware).Get("/api/data", s.handleListMyRecords)
	r.With(s.authMiddleware, s.requireAdmin).Get("/api/data/all", s.handleListAllRecords)
	r.With(s.authMiddleware).Post("/api/data/upload", s.handleUpload)
	r.With(s.authMiddleware).Post("/api/data/manual", s.handleManualEntry)
	r.With(s.authMiddleware).Get("/api/data/{id}", s.handleListOwnerRecords)
	r.With(s.authMiddleware).Put("/api/data/{id}", s.handleReplaceRecord)
	r.With(s.authMiddleware).Delete("/api/data/{id}", s.handleDeleteRecord)

	// Support tickets. Create and the per-submitter list trust the id in the request.
	r.Post("/api/support", s.handleCreateTicket)
	r.With(s.authMiddleware, s.requireAdmin).Get("/api/support/admin", s.handleListTickets)
	r.Get("/api/support/{id}", s.handleListSubmitterTickets)
	r.With(s.authMiddleware, s.requireAdmin).Put("/api/support/{id}", s.handleSetTicketStatus)
	r.With(s.authMiddleware, s.requireAdmin).Delete("/api/support/{id}", s.handleDeleteTicket)

	r.With(s.authMiddleware).Get("/ws", s.handleLive)

	return r
}
