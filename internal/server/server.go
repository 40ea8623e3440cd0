package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/trustid/trustid/internal/config"
	"github.com/trustid/trustid/internal/routes"
)

const sweepInterval = time.Minute

// Server wraps the Fiber application and the wired services.
type Server struct {
	app      *fiber.App
	cfg      config.Config
	services *routes.Services
	logger   *slog.Logger
}

// New builds services on the given backends and mounts all routes. db and
// cache may be nil in development.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) (*Server, error) {
	deps := routes.Deps{Cfg: cfg, DB: db, Cache: cache, Logger: logger}
	services, err := routes.Build(deps)
	if err != nil {
		return nil, err
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		BodyLimit:             1 << 20,
		DisableStartupMessage: !cfg.IsDev(),
		ErrorHandler:          routes.ErrorHandler,
	})
	routes.Setup(app, deps, services)

	return &Server{app: app, cfg: cfg, services: services, logger: logger}, nil
}

// App exposes the Fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Services exposes the wired domain services.
func (s *Server) Services() *routes.Services {
	return s.services
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	s.logger.Info("http server listening", slog.String("addr", s.cfg.Address()))
	return s.app.Listen(s.cfg.Address())
}

// RunSweeper drops expired in-memory recovery sessions until ctx is done.
func (s *Server) RunSweeper(ctx context.Context) error {
	return s.services.Recovery.RunSweeper(ctx, sweepInterval)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
