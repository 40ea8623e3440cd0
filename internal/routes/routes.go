package routes

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/trustid/trustid/internal/auth"
	"github.com/trustid/trustid/internal/config"
	"github.com/trustid/trustid/internal/credential"
	"github.com/trustid/trustid/internal/identity"
	"github.com/trustid/trustid/internal/ledger"
	"github.com/trustid/trustid/internal/middleware"
	"github.com/trustid/trustid/internal/mnemonic"
	"github.com/trustid/trustid/internal/notification"
	"github.com/trustid/trustid/internal/recovery"
	"github.com/trustid/trustid/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes. DB and Cache
// may be nil in development, in which case in-memory backends are used.
// A nil Notifier means the Redis outbox, or the logging stand-in in
// development without Redis.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Logger   *slog.Logger
	Notifier notification.Notifier
	Matcher  recovery.FaceMatcher
}

// Services are the wired domain services.
type Services struct {
	Tokens      *ledger.Service
	Credentials *credential.Service
	Identities  *identity.Service
	Auth        *auth.Service
	Recovery    *recovery.Service
	Wallets     *wallet.Service
}

// Build wires domain services onto Postgres and Redis when present and onto
// in-memory backends otherwise.
func Build(d Deps) (*Services, error) {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	notifier := d.Notifier
	switch {
	case notifier != nil:
	case d.Cache != nil:
		notifier = notification.NewRedisOutboxNotifier(d.Cache)
	case d.Cfg.IsDev():
		notifier = notification.NewLoggerNotifier(d.Logger)
	default:
		return nil, fmt.Errorf("a notifier is required when APP_ENV=%s", d.Cfg.AppEnv)
	}

	var (
		tokenLedger  ledger.Ledger
		identityRepo identity.Repository
		credRepo     credential.Repository
	)
	if d.DB != nil {
		tokenLedger = ledger.NewPostgresLedger(d.DB)
		identityRepo = identity.NewPostgresRepository(d.DB)
		credRepo = credential.NewPostgresRepository(d.DB)
	} else {
		tokenLedger = ledger.NewInMemory()
		identityRepo = identity.NewMemoryRepository()
		credRepo = credential.NewMemoryRepository()
	}

	var (
		tickets     credential.TicketStore
		revocations auth.RevocationList
		sessions    recovery.SessionStore
	)
	if d.Cache != nil {
		tickets = credential.NewRedisTicketStore(d.Cache)
		revocations = auth.NewRedisRevocationList(d.Cache)
		sessions = recovery.NewRedisSessionStore(d.Cache)
	} else {
		tickets = credential.NewMemoryTicketStore()
		revocations = auth.NewMemoryRevocationList()
		sessions = recovery.NewMemorySessionStore()
	}

	tokens := ledger.NewService(tokenLedger, d.Logger)
	creds, err := credential.NewService(credRepo, tickets, notifier, d.Logger, credential.Options{
		BcryptCost: d.Cfg.BcryptCost,
		TicketTTL:  d.Cfg.ResetTicketTTL,
	})
	if err != nil {
		return nil, err
	}
	identities := identity.NewService(identityRepo, tokens, mnemonic.NewGenerator(), creds, d.Logger)
	authSvc := auth.NewService(identities, creds, auth.NewSigner(d.Cfg.JWTSecret, d.Cfg.AppName), revocations, d.Logger, auth.Options{
		SessionTTL: d.Cfg.SessionTTL,
		GrantTTL:   d.Cfg.RecoveryGrantTTL,
	})
	recoverySvc := recovery.NewService(sessions, identities, authSvc, d.Matcher, d.Logger, recovery.Options{
		SessionTTL:     d.Cfg.RecoverySessionTTL,
		MatchThreshold: d.Cfg.FaceMatchThreshold,
	})

	return &Services{
		Tokens:      tokens,
		Credentials: creds,
		Identities:  identities,
		Auth:        authSvc,
		Recovery:    recoverySvc,
		Wallets:     wallet.NewService(identities),
	}, nil
}

// Setup configures middleware and mounts every route onto app.
func Setup(app *fiber.App, d Deps, s *Services) {
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	var (
		idempotency                   middleware.IdempotencyStore
		loginLimiter, recoveryLimiter middleware.Limiter
	)
	if d.Cache != nil {
		idempotency = middleware.NewRedisIdempotencyStore(d.Cache)
		loginLimiter = middleware.NewRedisLimiter(d.Cache, d.Cfg.LoginRateLimit, time.Minute)
		recoveryLimiter = middleware.NewRedisLimiter(d.Cache, d.Cfg.RecoveryRateLimit, time.Minute)
	} else {
		idempotency = middleware.NewMemoryIdempotencyStore()
		loginLimiter = middleware.NewMemoryLimiter(d.Cfg.LoginRateLimit, time.Minute)
		recoveryLimiter = middleware.NewMemoryLimiter(d.Cfg.RecoveryRateLimit, time.Minute)
	}

	api := app.Group("/api/v1")
	session := middleware.RequireSession(s.Auth)

	RegisterIdentityRoutes(api, identity.NewHandler(s.Identities), session,
		middleware.Idempotency(idempotency, d.Cfg.IdempotencyTTL, d.Logger, middleware.RedactFields("recovery_phrase")))
	RegisterAuthRoutes(api, auth.NewHandler(s.Auth), session,
		middleware.RateLimit("login", loginLimiter, middleware.LoginKey, d.Logger))
	RegisterWalletRoutes(api, wallet.NewHandler(s.Wallets), session)
	RegisterRecoveryRoutes(api, recovery.NewHandler(s.Recovery), auth.NewHandler(s.Auth),
		middleware.RateLimit("recovery", recoveryLimiter, middleware.ClientIP, d.Logger))
	RegisterAdminRoutes(api, ledger.NewHandler(s.Tokens), middleware.RequireAdminKey(d.Cfg.AdminAPIKey))
}
