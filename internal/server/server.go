package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/binpoints/internal/config"
	"github.com/dukerupert/binpoints/internal/database"
	"github.com/dukerupert/binpoints/internal/handler"
	"github.com/dukerupert/binpoints/internal/ledger"
	"github.com/dukerupert/binpoints/internal/middleware"
	"github.com/dukerupert/binpoints/internal/store"
	ws "github.com/dukerupert/binpoints/internal/websocket"
)

type Server struct {
	db          *database.DB
	hub         *ws.Hub
	ledgerH     *handler.LedgerHandler
	rewardH     *handler.RewardHandler
	binH        *handler.BinHandler
	userH       *handler.UserHandler
	rateLimiter *middleware.RateLimiter
	cfg         config.Config
	logger      *slog.Logger
}

func New(db *database.DB, cfg config.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	svc := ledger.NewService(store.NewLedgerStore(db), logger.With("component", "ledger"))
	rewardStore := store.NewRewardStore(db)
	binStore := store.NewBinStore(db)
	userStore := store.NewUserStore(db)

	return &Server{
		db:          db,
		hub:         hub,
		ledgerH:     handler.NewLedgerHandler(svc, hub, logger.With("component", "ledger_handler")),
		rewardH:     handler.NewRewardHandler(rewardStore, hub, logger.With("component", "reward")),
		binH:        handler.NewBinHandler(binStore, svc, logger.With("component", "bin")),
		userH:       handler.NewUserHandler(userStore, logger.With("component", "user")),
		rateLimiter: middleware.NewRateLimiter(),
		cfg:         cfg,
		logger:      logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Hub returns the live feed hub so it can be closed on shutdown.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket"), s.cfg.WSOrigins))
	outerMux.HandleFunc("GET /api/rewards", s.rewardH.List)

	// Protected routes, wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.cfg.JWTSecret)
	outerMux.Handle("/", authMiddleware(protectedMux))

	logged := middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
	return middleware.RequestID(logged)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check failed", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// scanLimited caps scans per authenticated user per minute.
func (s *Server) scanLimited(h http.HandlerFunc) http.Handler {
	return middleware.PerUser(s.rateLimiter, middleware.PerMinute(s.cfg.ScanRateLimit))(h)
}

func admin(h http.HandlerFunc) http.Handler {
	return middleware.RequireAdmin(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Ledger
	mux.Handle("POST /api/qrcodes/scan", s.scanLimited(s.ledgerH.Scan))
	mux.HandleFunc("POST /api/redemptions", s.ledgerH.Redeem)
	mux.HandleFunc("GET /api/redemptions/{user_id}", s.ledgerH.History)
	mux.HandleFunc("GET /api/me", s.userH.Me)

	// Reward administration
	mux.Handle("POST /api/rewards", admin(s.rewardH.Create))
	mux.Handle("PATCH /api/rewards/{id}", admin(s.rewardH.Update))

	// Bin and QR code provisioning
	mux.Handle("POST /api/bins", admin(s.binH.Create))
	mux.Handle("GET /api/bins", admin(s.binH.List))
	mux.Handle("POST /api/bins/{id}/qrcodes", admin(s.binH.IssueQRCodes))
	mux.Handle("GET /api/bins/{id}/qrcodes", admin(s.binH.ListQRCodes))

	mux.Handle("GET /api/admin/stats", admin(s.ledgerH.Stats))
}
