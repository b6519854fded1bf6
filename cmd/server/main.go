package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sessionforge/authgate/modules/auth"
	"github.com/sessionforge/authgate/pkg/config"
	"github.com/sessionforge/authgate/pkg/cookie"
	"github.com/sessionforge/authgate/pkg/csrf"
	"github.com/sessionforge/authgate/pkg/httpserver"
	"github.com/sessionforge/authgate/pkg/identity"
	"github.com/sessionforge/authgate/pkg/logger"
	"github.com/sessionforge/authgate/pkg/mailer"
	"github.com/sessionforge/authgate/pkg/ratelimiter"
	"github.com/sessionforge/authgate/pkg/redis"
	"github.com/sessionforge/authgate/pkg/session"
)

type appConfig struct {
	Log       logger.Config
	HTTP      httpserver.Config
	Redis     redis.Config
	Session   session.Config
	CSRF      csrf.Config
	RateLimit ratelimiter.Config
	Mailer    mailer.Config

	// CookieSecrets signs and encrypts cookies; list newest first to
	// rotate keys without invalidating live sessions.
	CookieSecrets []string `env:"COOKIE_SECRETS,required" envSeparator:","`

	// DatabaseURL switches the identity provider to Postgres when set;
	// otherwise accounts live in process memory.
	DatabaseURL string `env:"DATABASE_URL"`
}

func main() {
	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.New(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	redisClient, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	cookies, err := cookie.New(cfg.CookieSecrets)
	if err != nil {
		return err
	}

	store := session.NewRedisStore(redisClient)
	sessions, err := session.NewManager(store,
		session.WithTransport(session.NewCookieTransport(cookies, cfg.Session.CookieName, cfg.Session.SecureCookies)),
		session.WithConfig(cfg.Session),
		session.WithLogger(log),
	)
	if err != nil {
		return err
	}

	guard := csrf.New(sessions, cookies, cfg.CSRF)

	provider, err := buildProvider(ctx, cfg, log)
	if err != nil {
		return err
	}

	// The reaper consumes keyspace expiry notifications on its own
	// goroutine; it resubscribes on disconnect and stops with the context.
	reaper := session.NewReaper(redisClient, store, session.WithReaperLogger(log))
	go func() {
		if err := reaper.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("expiry reaper stopped", slog.Any("error", err))
		}
	}()

	limiter, err := ratelimiter.New(cfg.RateLimit)
	if err != nil {
		return err
	}
	defer limiter.Stop()

	svc := auth.NewService(sessions, guard, provider, log)

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(ratelimiter.Middleware(limiter, nil))
	r.Get("/healthz", healthz(redis.Healthcheck(redisClient)))
	r.Mount("/", svc.Router())

	return httpserver.New(cfg.HTTP, log).Run(ctx, r)
}

func buildProvider(ctx context.Context, cfg appConfig, log *slog.Logger) (identity.Provider, error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, using in-memory identity provider")
		return identity.NewMemoryProvider(), nil
	}

	var identityCfg identity.Config
	if err := config.Load(&identityCfg); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	mail, err := buildMailer(cfg, log)
	if err != nil {
		return nil, err
	}

	provider := identity.NewPostgresProvider(pool, mail, identityCfg, log)
	if err := provider.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return provider, nil
}

func buildMailer(cfg appConfig, log *slog.Logger) (mailer.Sender, error) {
	if cfg.Mailer.PostmarkServerToken == "" {
		log.Warn("postmark tokens not set, password reset emails go to the log")
		return mailer.NewLogSender(log), nil
	}
	return mailer.NewPostmarkSender(cfg.Mailer)
}

func healthz(checks ...func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, check := range checks {
			if err := check(r.Context()); err != nil {
				http.Error(w, "NOT_READY", http.StatusInternalServerError)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	}
}
