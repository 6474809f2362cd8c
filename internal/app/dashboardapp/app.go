package dashboardapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ivankudzin/ticketadmin/internal/apiclient"
	"github.com/ivankudzin/ticketadmin/internal/config"
	"github.com/ivankudzin/ticketadmin/internal/infra/httpclient"
	redrepo "github.com/ivankudzin/ticketadmin/internal/repo/redis"
	"github.com/ivankudzin/ticketadmin/internal/services/analytics"
	"github.com/ivankudzin/ticketadmin/internal/services/health"
	"github.com/ivankudzin/ticketadmin/internal/services/identity"
	"github.com/ivankudzin/ticketadmin/internal/services/organizations"
	ratesvc "github.com/ivankudzin/ticketadmin/internal/services/rate"
	"github.com/ivankudzin/ticketadmin/internal/services/servicetoken"
	"github.com/ivankudzin/ticketadmin/internal/services/tickets"
	"github.com/ivankudzin/ticketadmin/internal/services/users"
	"github.com/ivankudzin/ticketadmin/internal/session"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	redis      *goredis.Client
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	if err := redrepo.Ping(pingCtx, redisClient); err != nil {
		log.Warn("redis unavailable, mutation rate limiting fails open", zap.Error(err))
	}
	cancel()

	clientCfg := apiclient.Config{
		AuthBaseURL:    cfg.Services.AuthURL,
		TicketsBaseURL: cfg.Services.TicketsURL,
		LocalBaseURL:   cfg.Services.LocalURL,
		Timeout:        cfg.Client.Timeout,
	}
	hc := httpclient.New(cfg.Client.Timeout)

	// Page services act as the signed-in user: the session token rides
	// along as a bearer token and the cookie is forwarded per request.
	pageClient := apiclient.New(clientCfg,
		apiclient.WithHTTPClient(hc),
		apiclient.WithTokenSource(session.ContextTokens{}),
		apiclient.WithLogger(log),
	)
	// Introspection, proxying and health checks carry only explicit credentials
	// and never loop back through the local proxy.
	upstreamClient := apiclient.New(clientCfg,
		apiclient.WithHTTPClient(hc),
		apiclient.WithLogger(log),
		apiclient.WithRules(apiclient.UpstreamRules()...),
	)

	healthService := health.NewService(cfg.Health.CheckTimeout, log,
		health.HTTPDependency("auth", upstreamClient, "/api/auth/ok"),
		health.HTTPDependency("tickets", upstreamClient, "/health"),
		health.Dependency{Name: "redis", Check: func(ctx context.Context) error {
			return redrepo.Ping(ctx, redisClient)
		}},
	)

	RegisterRoutes(r, Dependencies{
		Identity:        identity.NewService(upstreamClient, cfg.Services.AppURL),
		Organizations:   organizations.NewService(pageClient),
		Tickets:         tickets.NewService(pageClient),
		Users:           users.NewService(pageClient),
		Analytics:       analytics.NewService(pageClient),
		Health:          healthService,
		ServiceTokens:   servicetoken.NewManager(cfg.ServiceToken.Secret, cfg.ServiceToken.TTL, cfg.ServiceToken.Issuer),
		MutationLimiter: ratesvc.NewLimiter(redrepo.NewRateRepo(redisClient), cfg.Limits.MutationsPerMinute),
		Logger:          log,
		Config:          cfg,

		ProxyClient:        upstreamClient,
		ProxyOrganizations: organizations.NewService(upstreamClient),
		ProxyTickets:       tickets.NewService(upstreamClient),
		ProxyUsers:         users.NewService(upstreamClient),
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		redis:      redisClient,
		httpRouter: r,
	}, nil
}

func (a *App) Run() error {
	a.logger.Info("dashboard server started",
		zap.String("addr", a.cfg.HTTP.Addr),
		zap.String("env", a.cfg.Env),
	)
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
