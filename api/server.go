// Package api exposes the back-office HTTP interface: the device-facing
// token and event endpoints, the Mercado Pago linking callback, and the
// seller dashboard API.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/habedi/totempark/account"
	"github.com/habedi/totempark/auth"
	"github.com/habedi/totempark/db"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-limiter"
	"github.com/sethvargo/go-limiter/memorystore"
)

// Deps are the services the handlers call.
type Deps struct {
	Accounts *account.Service
	Sellers  db.SellerRepository
	Totems   db.TotemRepository
	Events   db.EventRepository
	Linker   *auth.Linker
	Issuer   *auth.Issuer
	// Ping reports store health for /healthz.
	Ping func(ctx context.Context) error
}

// Options configures request handling.
type Options struct {
	TotemAPIKey  string
	DashboardURL string
	// LoginRateLimit is the number of login attempts allowed per email per
	// LoginRateWindow.
	LoginRateLimit  int
	LoginRateWindow time.Duration
}

// Server is the back-office HTTP server.
type Server struct {
	Deps
	opts       Options
	loginLimit limiter.Store
	router     *gin.Engine
}

// NewServer wires the routes.
func NewServer(deps Deps, opts Options) (*Server, error) {
	if opts.LoginRateLimit < 1 {
		opts.LoginRateLimit = 10
	}
	if opts.LoginRateWindow <= 0 {
		opts.LoginRateWindow = time.Minute
	}
	if opts.DashboardURL == "" {
		opts.DashboardURL = "/dashboard"
	}

	store, err := memorystore.New(&memorystore.Config{
		Tokens:   uint64(opts.LoginRateLimit),
		Interval: opts.LoginRateWindow,
	})
	if err != nil {
		return nil, err
	}

	s := &Server{Deps: deps, opts: opts, loginLimit: store}

	router := gin.New()
	router.Use(requestLogger(), recovery())
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
	})

	router.GET("/healthz", s.handleHealth)
	router.POST("/token", s.handleLogin)

	mp := router.Group("/mercadopago")
	{
		mp.GET("/connect", s.handleConnect)
		mp.GET("/authorize-url", s.requireSeller, s.handleAuthorizeURL)
		mp.POST("/disconnect", s.requireSeller, s.handleDisconnect)
	}

	sellers := router.Group("/sellers")
	{
		sellers.POST("/", s.handleRegister)
		sellers.GET("/me", s.requireSeller, s.handleMe)
		sellers.PATCH("/me", s.requireSeller, s.handleUpdateMe)
		sellers.GET("/", s.requireSeller, requireAdmin, s.handleListSellers)
		sellers.DELETE("/:id", s.requireSeller, s.handleDeleteSeller)
	}

	totems := router.Group("/totems")
	{
		totems.POST("/", s.requireSeller, s.handleCreateTotem)
		totems.GET("/", s.handleListTotems)
		totems.GET("/:id", s.handleGetTotem)
		totems.PATCH("/:id", s.requireSeller, s.handleUpdateTotem)
		totems.DELETE("/:id", s.requireSeller, s.handleDeleteTotem)
	}

	device := router.Group("/api/v1/totems", s.requireAPIKey)
	{
		device.GET("/token/:external_pos_id", s.handleIssueToken)
		device.POST("/:external_pos_id/payments", s.handlePayment)
		device.POST("/:external_pos_id/parking-events", s.handleParkingEvents)
	}

	s.router = router
	return s, nil
}

// Handler returns the root handler, for tests and custom listeners.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return s.Close(shutdownCtx)
}

// Close releases the login limiter.
func (s *Server) Close(ctx context.Context) error {
	return s.loginLimit.Close(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.Ping != nil {
		if err := s.Ping(c.Request.Context()); err != nil {
			log.Error().Err(err).Msg("Health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
