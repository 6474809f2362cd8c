package dashboardapp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ivankudzin/ticketadmin/internal/domain/enums"
	"github.com/ivankudzin/ticketadmin/internal/session"
)

type introspectorStub struct {
	session session.Session
	err     error
	calls   int
	cookie  string
}

func (s *introspectorStub) GetSession(_ context.Context, cookieHeader string) (session.Session, error) {
	s.calls++
	s.cookie = cookieHeader
	return s.session, s.err
}

func sessionWithRole(role enums.Role) session.Session {
	return session.Session{
		Info: session.Info{ID: "s1", Token: "tok", ExpiresAt: time.Now().Add(time.Hour)},
		User: session.User{ID: "u1", Email: "u1@example.com", Role: role},
	}
}

func newTestGate(stub *introspectorStub, unauthorized http.Handler) *Gate {
	return NewGate(GateConfig{
		PublicRoutes:       []string{"/unauthorized", "/static"},
		SessionCookieNames: []string{"better-auth.session_token", "__Secure-better-auth.session_token"},
		AuthAppURL:         "https://login.example.com",
		AppURL:             "https://admin.example.com",
		AllowedRoles:       []enums.Role{enums.RoleAdmin},
	}, stub, unauthorized, zap.NewNop())
}

func withCookie(r *http.Request, name string) *http.Request {
	r.AddCookie(&http.Cookie{Name: name, Value: "abc.def"})
	return r
}

func TestDecide(t *testing.T) {
	banned := sessionWithRole(enums.RoleAdmin)
	banned.User.Banned = true
	expired := sessionWithRole(enums.RoleAdmin)
	expired.Info.ExpiresAt = time.Now().Add(-time.Minute)

	cases := []struct {
		name      string
		path      string
		cookie    string
		stub      *introspectorStub
		want      Outcome
		wantCalls int
		public    bool
	}{
		{name: "public exact", path: "/unauthorized", stub: &introspectorStub{}, want: OutcomeAllow, public: true},
		{name: "public nested", path: "/static/app.js", stub: &introspectorStub{}, want: OutcomeAllow, public: true},
		{name: "public prefix needs a segment boundary", path: "/statics", stub: &introspectorStub{}, want: OutcomeRedirectLogin},
		{name: "no cookie", path: "/", stub: &introspectorStub{session: sessionWithRole(enums.RoleAdmin)}, want: OutcomeRedirectLogin},
		{name: "introspection error", path: "/", cookie: "better-auth.session_token", stub: &introspectorStub{err: errors.New("boom")}, want: OutcomeRedirectLogin, wantCalls: 1},
		{name: "banned admin", path: "/", cookie: "better-auth.session_token", stub: &introspectorStub{session: banned}, want: OutcomeRedirectLogin, wantCalls: 1},
		{name: "expired session", path: "/", cookie: "better-auth.session_token", stub: &introspectorStub{session: expired}, want: OutcomeRedirectLogin, wantCalls: 1},
		{name: "non admin", path: "/tickets", cookie: "better-auth.session_token", stub: &introspectorStub{session: sessionWithRole(enums.RoleUser)}, want: OutcomeRedirectUnauthorized, wantCalls: 1},
		{name: "unknown role", path: "/tickets", cookie: "better-auth.session_token", stub: &introspectorStub{session: sessionWithRole(enums.RoleUnknown)}, want: OutcomeRedirectUnauthorized, wantCalls: 1},
		{name: "admin", path: "/tickets", cookie: "better-auth.session_token", stub: &introspectorStub{session: sessionWithRole(enums.RoleAdmin)}, want: OutcomeAllow, wantCalls: 1},
		{name: "secure cookie variant", path: "/", cookie: "__Secure-better-auth.session_token", stub: &introspectorStub{session: sessionWithRole(enums.RoleAdmin)}, want: OutcomeAllow, wantCalls: 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gate := newTestGate(tc.stub, nil)
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.cookie != "" {
				req = withCookie(req, tc.cookie)
			}

			decision := gate.Decide(req)
			if decision.Outcome != tc.want {
				t.Fatalf("outcome = %s (%s), want %s", decision.Outcome, decision.Reason, tc.want)
			}
			if tc.stub.calls != tc.wantCalls {
				t.Fatalf("introspection calls = %d, want %d", tc.stub.calls, tc.wantCalls)
			}
			if decision.Public != tc.public {
				t.Fatalf("public = %v, want %v", decision.Public, tc.public)
			}
		})
	}
}

func TestMiddlewarePublicRouteDoesNotDependOnReasonText(t *testing.T) {
	gate := newTestGate(&introspectorStub{}, nil)
	handler := gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := session.FromContext(r.Context()); ok {
			t.Errorf("public routes carry no session")
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/static/app.js", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
}

func TestHydrateNeverBlocks(t *testing.T) {
	banned := sessionWithRole(enums.RoleUser)
	banned.User.Banned = true

	cases := []struct {
		name     string
		cookie   bool
		stub     *introspectorStub
		wantUser string
	}{
		{name: "no cookie", stub: &introspectorStub{session: banned}},
		{name: "introspection error", cookie: true, stub: &introspectorStub{err: errors.New("boom")}},
		{name: "banned non admin still hydrated", cookie: true, stub: &introspectorStub{session: banned}, wantUser: "u1"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gate := newTestGate(tc.stub, nil)
			var gotUser string
			handler := gate.Hydrate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if s, ok := session.FromContext(r.Context()); ok {
					gotUser = s.User.ID
				}
				w.WriteHeader(http.StatusNoContent)
			}))

			req := httptest.NewRequest(http.MethodPost, "/logout", nil)
			if tc.cookie {
				req = withCookie(req, "better-auth.session_token")
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != http.StatusNoContent {
				t.Fatalf("unexpected status: %d", rr.Code)
			}
			if gotUser != tc.wantUser {
				t.Fatalf("hydrated user = %q, want %q", gotUser, tc.wantUser)
			}
		})
	}
}

func TestMiddlewareRedirectsToLoginWithOriginalURL(t *testing.T) {
	gate := newTestGate(&introspectorStub{}, nil)
	handler := gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "http://127.0.0.1:3000/tickets?status=open&page=2", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTemporaryRedirect {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	location, err := url.Parse(rr.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	if location.Scheme+"://"+location.Host+location.Path != "https://login.example.com/login" {
		t.Fatalf("unexpected login target: %s", location)
	}
	if got := location.Query().Get("redirect_to"); got != "https://admin.example.com/tickets?status=open&page=2" {
		t.Fatalf("unexpected redirect_to: %q", got)
	}
}

func TestMiddlewareRewritesUnauthorizedWithoutRedirect(t *testing.T) {
	var seenPath string
	var seenUser string
	unauthorized := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenPath = r.URL.Path
		if s, ok := session.FromContext(r.Context()); ok {
			seenUser = s.User.ID
		}
		w.WriteHeader(http.StatusOK)
	})
	gate := newTestGate(&introspectorStub{session: sessionWithRole(enums.RoleUser)}, unauthorized)
	handler := gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next must not run")
	}))

	req := withCookie(httptest.NewRequest(http.MethodGet, "/organizations/o1", nil), "better-auth.session_token")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("rewrite must keep a normal page status, got %d", rr.Code)
	}
	if rr.Header().Get("Location") != "" {
		t.Fatalf("rewrite must not redirect")
	}
	if seenPath != "/unauthorized" {
		t.Fatalf("unauthorized handler saw path %q", seenPath)
	}
	if seenUser != "u1" {
		t.Fatalf("unauthorized handler should see the session, got %q", seenUser)
	}
	if req.URL.Path != "/organizations/o1" {
		t.Fatalf("original request must not be mutated, got %q", req.URL.Path)
	}
}

func TestMiddlewareHydratesSessionStore(t *testing.T) {
	stub := &introspectorStub{session: sessionWithRole(enums.RoleAdmin)}
	gate := newTestGate(stub, nil)

	var got session.Session
	handler := gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := session.FromContext(r.Context())
		if !ok {
			t.Fatalf("expected session in context")
		}
		got = s
		w.WriteHeader(http.StatusNoContent)
	}))

	req := withCookie(httptest.NewRequest(http.MethodGet, "/", nil), "better-auth.session_token")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent || got.User.ID != "u1" {
		t.Fatalf("unexpected result: status=%d user=%q", rr.Code, got.User.ID)
	}
	if stub.cookie != "better-auth.session_token=abc.def" {
		t.Fatalf("cookie header must be forwarded verbatim, got %q", stub.cookie)
	}
}

func TestCapabilityGateForPortal(t *testing.T) {
	stub := &introspectorStub{session: sessionWithRole(enums.RoleUser)}
	gate := NewGate(GateConfig{
		SessionCookieNames: []string{"better-auth.session_token"},
		Capability:         enums.CapPortalAccess,
	}, stub, nil, nil)

	req := withCookie(httptest.NewRequest(http.MethodGet, "/portal", nil), "better-auth.session_token")
	if d := gate.Decide(req); d.Outcome != OutcomeAllow {
		t.Fatalf("portal members must be allowed, got %s", d.Outcome)
	}
}

func TestAPIMiddlewareStatuses(t *testing.T) {
	cases := []struct {
		name   string
		cookie bool
		stub   *introspectorStub
		want   int
	}{
		{name: "no cookie", stub: &introspectorStub{}, want: http.StatusUnauthorized},
		{name: "non admin", cookie: true, stub: &introspectorStub{session: sessionWithRole(enums.RoleUser)}, want: http.StatusForbidden},
		{name: "admin", cookie: true, stub: &introspectorStub{session: sessionWithRole(enums.RoleAdmin)}, want: http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := newTestGate(tc.stub, nil).APIMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest(http.MethodGet, "/api/admin/organizations", nil)
			if tc.cookie {
				req = withCookie(req, "better-auth.session_token")
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != tc.want {
				t.Fatalf("status = %d, want %d", rr.Code, tc.want)
			}
		})
	}
}
