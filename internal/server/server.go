// Package server assembles the HTTP API from configuration and storage.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"authserver/internal/config"
	"authserver/internal/domain/auth"
	"authserver/internal/metrics"
	"authserver/internal/middleware"
	jwtsvc "authserver/internal/pkg/jwt"
	"authserver/internal/repository"
	"authserver/internal/telemetry"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Server owns the API router and the background sweeper.
type Server struct {
	cfg    *config.Config
	log    zerolog.Logger
	router *gin.Engine
	tokens *repository.RefreshTokenRepository
}

// New wires repositories, the auth service and the gate into a gin engine.
func New(cfg *config.Config, db *gorm.DB, log zerolog.Logger) *Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	userRepo := repository.NewUserRepository(db)
	refreshRepo := repository.NewRefreshTokenRepository(db)
	jwtService := jwtsvc.New(cfg.JWTSecret, cfg.JWTAccessTTL)

	credentials := auth.NewCredentialStore(userRepo, cfg.BcryptCost)
	issuer := auth.NewTokenIssuer(jwtService, refreshRepo, cfg.RefreshTTL)
	authService := auth.NewService(credentials, refreshRepo, issuer, cfg.StoreTimeout, log)
	authHandler := auth.NewHandler(authService, auth.CookieConfig{
		Path:   cfg.CookiePath,
		Secure: cfg.CookieSecure,
	})

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.ErrorLogger(log),
		middleware.Metrics(),
		middleware.SecureHeaders(cfg.CookieSecure),
		middleware.CORS(cfg.AllowedOrigins),
	)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		authHandler.RegisterPublicRoutes(api)

		protected := api.Group("")
		protected.Use(middleware.JWTAuth(jwtService))
		authHandler.RegisterProtectedRoutes(protected)
	}

	return &Server{
		cfg:    cfg,
		log:    log,
		router: r,
		tokens: refreshRepo,
	}
}

// Handler returns the instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	return telemetry.WrapHandler(s.router, "authserver")
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info().Str("addr", s.cfg.HTTPAddr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		s.log.Info().Msg("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if s.cfg.CleanupInterval > 0 {
		g.Go(func() error {
			s.sweep(ctx, s.cfg.CleanupInterval)
			return nil
		})
	}
	return g.Wait()
}

// PurgeExpired deletes expired refresh tokens once.
func (s *Server) PurgeExpired(ctx context.Context) (int64, error) {
	return PurgeExpired(ctx, s.tokens, s.cfg.StoreTimeout)
}

func (s *Server) sweep(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PurgeExpired(ctx)
			if err != nil {
				s.log.Warn().Err(err).Msg("refresh token sweep failed")
				continue
			}
			if n > 0 {
				s.log.Info().Int64("deleted", n).Msg("expired refresh tokens purged")
			}
		}
	}
}

// ExpiredTokenPurger removes refresh tokens that can no longer be used.
type ExpiredTokenPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// PurgeExpired runs one bounded cleanup pass and records it in metrics.
func PurgeExpired(ctx context.Context, purger ExpiredTokenPurger, timeout time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	n, err := purger.DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}
	metrics.ExpiredTokensPurged.Add(float64(n))
	return n, nil
}
