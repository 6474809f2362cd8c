package dashboardapp

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ivankudzin/ticketadmin/internal/domain/enums"
	"github.com/ivankudzin/ticketadmin/internal/session"
	httperrors "github.com/ivankudzin/ticketadmin/internal/transport/http/errors"
)

type Outcome int

const (
	OutcomeAllow Outcome = iota
	OutcomeRedirectLogin
	OutcomeRedirectUnauthorized
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAllow:
		return "allow"
	case OutcomeRedirectLogin:
		return "redirect_login"
	case OutcomeRedirectUnauthorized:
		return "redirect_unauthorized"
	default:
		return "unknown"
	}
}

type Decision struct {
	Outcome Outcome
	Session session.Session
	// Public is set when the path skipped the session checks entirely.
	Public bool
	// Reason is for logs only.
	Reason string
}

type SessionIntrospector interface {
	GetSession(ctx context.Context, cookieHeader string) (session.Session, error)
}

type GateConfig struct {
	PublicRoutes       []string
	SessionCookieNames []string
	AuthAppURL         string
	AppURL             string

	// AllowedRoles, when set, is the exact role allowlist. Otherwise a role
	// passes if it holds Capability.
	AllowedRoles     []enums.Role
	Capability       enums.Capability
	UnauthorizedPath string
}

// Gate decides, per request, whether the caller may see a protected page.
// It never surfaces an error: every failure resolves to a redirect.
type Gate struct {
	cfg          GateConfig
	sessions     SessionIntrospector
	unauthorized http.Handler
	logger       *zap.Logger
	now          func() time.Time
}

func NewGate(cfg GateConfig, sessions SessionIntrospector, unauthorized http.Handler, logger *zap.Logger) *Gate {
	if cfg.Capability == "" {
		cfg.Capability = enums.CapDashboardAccess
	}
	if strings.TrimSpace(cfg.UnauthorizedPath) == "" {
		cfg.UnauthorizedPath = "/unauthorized"
	}
	cfg.AuthAppURL = strings.TrimRight(cfg.AuthAppURL, "/")
	cfg.AppURL = strings.TrimRight(cfg.AppURL, "/")
	if unauthorized == nil {
		unauthorized = http.NotFoundHandler()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		cfg:          cfg,
		sessions:     sessions,
		unauthorized: unauthorized,
		logger:       logger,
		now:          time.Now,
	}
}

func (g *Gate) Decide(r *http.Request) Decision {
	if isPublicRoute(r.URL.Path, g.cfg.PublicRoutes) {
		return Decision{Outcome: OutcomeAllow, Public: true, Reason: "public_route"}
	}
	return g.decideSession(r)
}

func (g *Gate) decideSession(r *http.Request) Decision {
	if !hasSessionCookie(r, g.cfg.SessionCookieNames) {
		return Decision{Outcome: OutcomeRedirectLogin, Reason: "no_session_cookie"}
	}
	if g.sessions == nil {
		return Decision{Outcome: OutcomeRedirectLogin, Reason: "introspection_unavailable"}
	}

	s, err := g.sessions.GetSession(r.Context(), r.Header.Get("Cookie"))
	if err != nil {
		g.logger.Debug("session introspection failed", zap.String("path", r.URL.Path), zap.Error(err))
		return Decision{Outcome: OutcomeRedirectLogin, Reason: "invalid_session"}
	}
	if s.Expired(g.now()) {
		return Decision{Outcome: OutcomeRedirectLogin, Reason: "session_expired"}
	}
	if s.User.Banned {
		g.logger.Info("banned user rejected", zap.String("user_id", s.User.ID))
		return Decision{Outcome: OutcomeRedirectLogin, Reason: "user_banned"}
	}
	if !g.roleAllowed(s.User.Role) {
		return Decision{Outcome: OutcomeRedirectUnauthorized, Session: s, Reason: "role_not_allowed"}
	}
	return Decision{Outcome: OutcomeAllow, Session: s, Reason: "session_valid"}
}

func (g *Gate) roleAllowed(role enums.Role) bool {
	if !role.Valid() {
		return false
	}
	if len(g.cfg.AllowedRoles) > 0 {
		for _, allowed := range g.cfg.AllowedRoles {
			if role == allowed {
				return true
			}
		}
		return false
	}
	return role.Can(g.cfg.Capability)
}

func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision := g.Decide(r)
		switch decision.Outcome {
		case OutcomeAllow:
			if decision.Public {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, withSession(r, decision.Session))
		case OutcomeRedirectUnauthorized:
			g.logger.Info("gate rewrite to unauthorized",
				zap.String("path", r.URL.Path),
				zap.String("user_id", decision.Session.User.ID),
				zap.String("role", decision.Session.User.Role.String()),
			)
			g.unauthorized.ServeHTTP(w, g.rewrite(withSession(r, decision.Session)))
		default:
			g.logger.Debug("gate redirect to login",
				zap.String("path", r.URL.Path),
				zap.String("reason", decision.Reason),
			)
			http.Redirect(w, r, g.LoginURL(r), http.StatusTemporaryRedirect)
		}
	})
}

// APIMiddleware applies the same session checks to JSON routes, answering
// 401 or 403 instead of redirecting.
func (g *Gate) APIMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision := g.decideSession(r)
		switch decision.Outcome {
		case OutcomeAllow:
			next.ServeHTTP(w, withSession(r, decision.Session))
		case OutcomeRedirectUnauthorized:
			httperrors.WriteError(w, http.StatusForbidden, "FORBIDDEN", "admin role required")
		default:
			httperrors.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		}
	})
}

// Hydrate attaches the caller's session whenever introspection succeeds and
// never blocks the request. Logout sits behind it so it can clear the
// session of callers the gate would turn away.
func (g *Gate) Hydrate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.sessions == nil || !hasSessionCookie(r, g.cfg.SessionCookieNames) {
			next.ServeHTTP(w, r)
			return
		}
		s, err := g.sessions.GetSession(r.Context(), r.Header.Get("Cookie"))
		if err != nil {
			g.logger.Debug("session hydration skipped", zap.String("path", r.URL.Path), zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, withSession(r, s))
	})
}

// LoginURL points at the login app and carries the original public URL so
// the user lands back where they started.
func (g *Gate) LoginURL(r *http.Request) string {
	original := g.cfg.AppURL + r.URL.RequestURI()
	return g.cfg.AuthAppURL + "/login?redirect_to=" + url.QueryEscape(original)
}

func (g *Gate) rewrite(r *http.Request) *http.Request {
	rewritten := r.Clone(r.Context())
	rewritten.URL.Path = g.cfg.UnauthorizedPath
	rewritten.URL.RawPath = ""
	rewritten.RequestURI = ""
	return rewritten
}

func withSession(r *http.Request, s session.Session) *http.Request {
	return r.WithContext(session.WithStore(r.Context(), session.NewStore(&s)))
}

func isPublicRoute(path string, routes []string) bool {
	for _, route := range routes {
		route = strings.TrimRight(strings.TrimSpace(route), "/")
		if route == "" {
			continue
		}
		if path == route || strings.HasPrefix(path, route+"/") {
			return true
		}
	}
	return false
}

func hasSessionCookie(r *http.Request, names []string) bool {
	for _, name := range names {
		if c, err := r.Cookie(name); err == nil && c.Value != "" {
			return true
		}
	}
	return false
}
