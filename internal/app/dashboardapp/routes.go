package dashboardapp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ivankudzin/ticketadmin/internal/apiclient"
	"github.com/ivankudzin/ticketadmin/internal/config"
	"github.com/ivankudzin/ticketadmin/internal/domain/enums"
	"github.com/ivankudzin/ticketadmin/internal/services/analytics"
	"github.com/ivankudzin/ticketadmin/internal/services/health"
	"github.com/ivankudzin/ticketadmin/internal/services/identity"
	"github.com/ivankudzin/ticketadmin/internal/services/organizations"
	ratesvc "github.com/ivankudzin/ticketadmin/internal/services/rate"
	"github.com/ivankudzin/ticketadmin/internal/services/servicetoken"
	"github.com/ivankudzin/ticketadmin/internal/services/tickets"
	"github.com/ivankudzin/ticketadmin/internal/services/users"
	"github.com/ivankudzin/ticketadmin/internal/transport/http/handlers"
)

type Dependencies struct {
	Identity        *identity.Service
	Organizations   *organizations.Service
	Tickets         *tickets.Service
	Users           *users.Service
	Analytics       *analytics.Service
	Health          *health.Service
	ServiceTokens   *servicetoken.Manager
	MutationLimiter *ratesvc.Limiter
	Logger          *zap.Logger
	Config          config.Config

	// The Proxy* dependencies serve /api/admin and must route with
	// apiclient.UpstreamRules.
	ProxyClient        *apiclient.Client
	ProxyOrganizations *organizations.Service
	ProxyTickets       *tickets.Service
	ProxyUsers         *users.Service
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	pagesHandler := handlers.NewPagesHandler(deps.Organizations, deps.Tickets, deps.Users, deps.Analytics, deps.Health, deps.Logger)
	sessionHandler := handlers.NewSessionHandler(deps.Identity, deps.Config.Services.AuthAppURL, deps.Config.Gate.SessionCookieNames, deps.Logger)

	var limiter handlers.MutationLimiter
	if deps.MutationLimiter != nil {
		limiter = deps.MutationLimiter
	}
	var tokens handlers.ServiceTokenIssuer
	if deps.ServiceTokens != nil {
		tokens = deps.ServiceTokens
	}
	proxyHandler := handlers.NewAdminProxyHandler(
		deps.ProxyClient,
		deps.ProxyOrganizations,
		deps.ProxyTickets,
		deps.ProxyUsers,
		tokens,
		limiter,
		deps.Logger,
	)

	unauthorized := http.HandlerFunc(pagesHandler.Unauthorized)
	gateCfg := GateConfig{
		PublicRoutes:       deps.Config.Gate.PublicRoutes,
		SessionCookieNames: deps.Config.Gate.SessionCookieNames,
		AuthAppURL:         deps.Config.Services.AuthAppURL,
		AppURL:             deps.Config.Services.AppURL,
		UnauthorizedPath:   deps.Config.Gate.UnauthorizedPath,
	}

	dashboardCfg := gateCfg
	dashboardCfg.AllowedRoles = deps.Config.AllowedRoles()
	dashboardCfg.Capability = enums.CapDashboardAccess
	dashboardGate := NewGate(dashboardCfg, deps.Identity, unauthorized, deps.Logger)

	portalCfg := gateCfg
	portalCfg.Capability = enums.CapPortalAccess
	portalGate := NewGate(portalCfg, deps.Identity, unauthorized, deps.Logger)

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(corsMiddleware(deps.Config.CORS.AllowedOrigins))
		r.Use(dashboardGate.APIMiddleware)
		proxyHandler.Routes(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(portalGate.Middleware)
		r.Get("/portal", pagesHandler.Portal)
		r.Get("/portal/*", pagesHandler.Portal)
	})

	r.Group(func(r chi.Router) {
		r.Use(dashboardGate.Middleware)

		r.Get("/healthz", pagesHandler.Healthz)
		r.Get("/unauthorized", pagesHandler.Unauthorized)
		r.With(dashboardGate.Hydrate).Post("/logout", sessionHandler.Logout)

		r.Get("/", pagesHandler.Overview)
		r.Get("/organizations", pagesHandler.Organizations)
		r.Get("/organizations/{id}", pagesHandler.Organization)
		r.Get("/tickets", pagesHandler.Tickets)
		r.Get("/tickets/{id}", pagesHandler.Ticket)
		r.Get("/users", pagesHandler.Users)
		r.Get("/analytics", pagesHandler.Analytics)
		r.Get("/health", pagesHandler.Health)
	})

	r.NotFound(dashboardGate.Middleware(http.HandlerFunc(pagesHandler.NotFound)).ServeHTTP)
}
