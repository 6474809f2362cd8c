package dashboardapp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"

	"github.com/ivankudzin/ticketadmin/internal/config"
)

type upstreamCall struct {
	Method        string
	Path          string
	Authorization string
	Cookie        string
	Body          map[string]any
}

type upstreamRecorder struct {
	mu    sync.Mutex
	calls []upstreamCall
}

func (u *upstreamRecorder) record(r *http.Request) {
	call := upstreamCall{
		Method:        r.Method,
		Path:          r.URL.Path,
		Authorization: r.Header.Get("Authorization"),
		Cookie:        r.Header.Get("Cookie"),
	}
	raw, _ := io.ReadAll(r.Body)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &call.Body)
	}
	u.mu.Lock()
	u.calls = append(u.calls, call)
	u.mu.Unlock()
}

func (u *upstreamRecorder) last() upstreamCall {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.calls) == 0 {
		return upstreamCall{}
	}
	return u.calls[len(u.calls)-1]
}

func (u *upstreamRecorder) paths() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]string, 0, len(u.calls))
	for _, c := range u.calls {
		out = append(out, c.Path)
	}
	return out
}

func newAuthUpstream(t *testing.T, rec *upstreamRecorder) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		switch r.URL.Path {
		case "/api/auth/ok":
			_, _ = w.Write([]byte(`{"ok":true}`))
		case "/api/auth/get-session":
			cookie := r.Header.Get("Cookie")
			switch {
			case strings.Contains(cookie, "admin-token"):
				_, _ = w.Write([]byte(`{"session":{"id":"s1","token":"admin-token"},"user":{"id":"admin-1","email":"ops@example.com","role":"admin"}}`))
			case strings.Contains(cookie, "user-token"):
				_, _ = w.Write([]byte(`{"session":{"id":"s2","token":"user-token"},"user":{"id":"user-1","role":"user","organizationId":"org-1"}}`))
			case strings.Contains(cookie, "odd-token"):
				_, _ = w.Write([]byte(`{"session":{"id":"s3","token":"odd-token"},"user":{"id":"odd-1","role":42}}`))
			default:
				_, _ = w.Write([]byte(`null`))
			}
		case "/api/auth/admin/ban-user":
			_, _ = w.Write([]byte(`{"user":{"id":"user-1","role":"user","banned":true,"banReason":"spam"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newTicketsUpstream(t *testing.T, rec *upstreamRecorder) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)

		switch {
		case r.URL.Path == "/health":
			_, _ = w.Write([]byte(`{"ok":true}`))
		case r.URL.Path == "/admin/organizations":
			_, _ = w.Write([]byte(`{"success":true,"result":{"items":[{"id":"o1","name":"Acme"}],"total":1}}`))
		case strings.HasSuffix(r.URL.Path, "/suspend"):
			_, _ = w.Write([]byte(`{"success":true,"result":{"id":"o1","status":"suspended"}}`))
		case r.URL.Path == "/admin/support-tickets" && r.Method == http.MethodPost:
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"success":true,"result":{"id":"t1","subject":"Printer","status":"open"}}`))
		case r.URL.Path == "/organizations/org-1/support-tickets":
			_, _ = w.Write([]byte(`{"success":true,"result":{"items":[],"total":0}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

type testApp struct {
	server  *httptest.Server
	auth    *upstreamRecorder
	tickets *upstreamRecorder
}

func newTestApp(t *testing.T) testApp {
	t.Helper()

	authRec := &upstreamRecorder{}
	ticketsRec := &upstreamRecorder{}
	auth := newAuthUpstream(t, authRec)
	tickets := newTicketsUpstream(t, ticketsRec)
	mr := miniredis.RunT(t)

	dashboard := httptest.NewUnstartedServer(nil)

	cfg := config.Default()
	cfg.Services.AuthURL = auth.URL
	cfg.Services.TicketsURL = tickets.URL
	cfg.Services.AppURL = "https://admin.example.com"
	cfg.Services.AuthAppURL = "https://login.example.com"
	cfg.Services.LocalURL = "http://" + dashboard.Listener.Addr().String()
	cfg.Redis.Addr = mr.Addr()
	cfg.ServiceToken.Secret = "test-secret"

	app, err := New(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() { _ = app.redis.Close() })

	dashboard.Config.Handler = app.Handler()
	dashboard.Start()
	t.Cleanup(dashboard.Close)

	return testApp{server: dashboard, auth: authRec, tickets: ticketsRec}
}

func doRequest(t *testing.T, method, url, cookie, body string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if cookie != "" {
		req.Header.Set("Cookie", "better-auth.session_token="+cookie)
	}
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestAppRedirectsAnonymousPageRequests(t *testing.T) {
	app := newTestApp(t)

	resp := doRequest(t, http.MethodGet, app.server.URL+"/tickets?status=open", "", "")
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	want := "https://login.example.com/login?redirect_to=" + "https%3A%2F%2Fadmin.example.com%2Ftickets%3Fstatus%3Dopen"
	if got := resp.Header.Get("Location"); got != want {
		t.Fatalf("unexpected location:\n got %s\nwant %s", got, want)
	}
}

func TestAppPublicRoutesSkipTheGate(t *testing.T) {
	app := newTestApp(t)

	if resp := doRequest(t, http.MethodGet, app.server.URL+"/healthz", "", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: unexpected status %d", resp.StatusCode)
	}
	if resp := doRequest(t, http.MethodGet, app.server.URL+"/unauthorized", "", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("unauthorized page: unexpected status %d", resp.StatusCode)
	}
}

func TestAppRewritesNonAdminToUnauthorized(t *testing.T) {
	app := newTestApp(t)

	for _, token := range []string{"user-token", "odd-token"} {
		resp := doRequest(t, http.MethodGet, app.server.URL+"/organizations", token, "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: unexpected status: %d", token, resp.StatusCode)
		}
		if view := decodeJSON(t, resp); view["page"] != "unauthorized" {
			t.Fatalf("%s: expected unauthorized page, got %v", token, view["page"])
		}
	}
}

func TestAppAdminPageLoopsThroughLocalProxy(t *testing.T) {
	app := newTestApp(t)

	resp := doRequest(t, http.MethodGet, app.server.URL+"/organizations", "admin-token", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	view := decodeJSON(t, resp)
	if view["page"] != "organizations" {
		t.Fatalf("unexpected page: %v", view["page"])
	}
	data, _ := view["data"].(map[string]any)
	if data["total"] != float64(1) {
		t.Fatalf("unexpected data: %v", data)
	}

	call := app.tickets.last()
	if call.Path != "/admin/organizations" {
		t.Fatalf("tickets service saw %s", call.Path)
	}
	if call.Authorization != "Bearer admin-token" {
		t.Fatalf("session token must be forwarded, got %q", call.Authorization)
	}
	if call.Cookie != "" {
		t.Fatalf("the auth session cookie must not reach the tickets service, got %q", call.Cookie)
	}
}

func TestAppProxyMintsServiceTokenAndStampsAudit(t *testing.T) {
	app := newTestApp(t)

	resp := doRequest(t, http.MethodPost, app.server.URL+"/api/admin/organizations/o1/suspend", "admin-token", `{"reason":"unpaid"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	call := app.tickets.last()
	if !strings.HasPrefix(call.Authorization, "Bearer eyJ") {
		t.Fatalf("expected a minted JWT, got %q", call.Authorization)
	}
	if call.Body["reason"] != "unpaid" || call.Body["suspendedBy"] != "admin-1" || call.Body["performedByEmail"] != "ops@example.com" {
		t.Fatalf("unexpected body: %v", call.Body)
	}
	if call.Cookie != "" {
		t.Fatalf("the auth session cookie must not reach the tickets service, got %q", call.Cookie)
	}
}

func TestAppProxyCreatesTicket(t *testing.T) {
	app := newTestApp(t)

	resp := doRequest(t, http.MethodPost, app.server.URL+"/api/admin/support-tickets", "admin-token", `{"organizationId":"org-1","subject":"Printer"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	body := decodeJSON(t, resp)
	result, _ := body["result"].(map[string]any)
	if body["success"] != true || result["id"] != "t1" {
		t.Fatalf("unexpected response: %v", body)
	}

	call := app.tickets.last()
	if call.Method != http.MethodPost || call.Path != "/admin/support-tickets" {
		t.Fatalf("unexpected upstream call: %s %s", call.Method, call.Path)
	}
	if call.Body["createdBy"] != "admin-1" || call.Body["priority"] != "normal" {
		t.Fatalf("unexpected body: %v", call.Body)
	}
}

func TestAppProxyBansUserThroughAuthService(t *testing.T) {
	app := newTestApp(t)

	resp := doRequest(t, http.MethodPost, app.server.URL+"/api/admin/users/user-1/ban", "admin-token", `{"banReason":"spam","banExpiresIn":86400}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	body := decodeJSON(t, resp)
	result, _ := body["result"].(map[string]any)
	if result["banned"] != true {
		t.Fatalf("unexpected response: %v", body)
	}

	call := app.auth.last()
	if call.Path != "/api/auth/admin/ban-user" {
		t.Fatalf("auth service saw %s", call.Path)
	}
	if call.Cookie != "better-auth.session_token=admin-token" {
		t.Fatalf("the admin session must authorize the ban, got %q", call.Cookie)
	}
	if call.Body["userId"] != "user-1" || call.Body["banExpiresIn"] != float64(86400) || call.Body["bannedBy"] != "admin-1" {
		t.Fatalf("unexpected body: %v", call.Body)
	}
}

func TestAppProxyUserRoutesRequireAdmin(t *testing.T) {
	app := newTestApp(t)

	resp := doRequest(t, http.MethodPost, app.server.URL+"/api/admin/users/user-2/role", "user-token", `{"role":"admin"}`)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	for _, path := range app.auth.paths() {
		if path == "/api/auth/admin/set-role" {
			t.Fatalf("a non admin must not reach set-role")
		}
	}
}

func TestAppProxyRejectsWithoutSession(t *testing.T) {
	app := newTestApp(t)

	if resp := doRequest(t, http.MethodGet, app.server.URL+"/api/admin/organizations", "", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if resp := doRequest(t, http.MethodGet, app.server.URL+"/api/admin/organizations", "user-token", ""); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestAppPortalAllowsMembers(t *testing.T) {
	app := newTestApp(t)

	resp := doRequest(t, http.MethodGet, app.server.URL+"/portal", "user-token", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if view := decodeJSON(t, resp); view["page"] != "portal" {
		t.Fatalf("unexpected page: %v", view["page"])
	}
	call := app.tickets.last()
	if call.Path != "/organizations/org-1/support-tickets" {
		t.Fatalf("unexpected tickets call: %s", call.Path)
	}
	if call.Authorization != "Bearer user-token" || call.Cookie != "" {
		t.Fatalf("portal must send the session bearer only, got auth=%q cookie=%q", call.Authorization, call.Cookie)
	}
}

func TestAppLogoutHydratesThenSignsOut(t *testing.T) {
	app := newTestApp(t)

	resp := doRequest(t, http.MethodPost, app.server.URL+"/logout", "admin-token", "")
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Location"); got != "https://login.example.com/login" {
		t.Fatalf("unexpected location: %q", got)
	}

	paths := app.auth.paths()
	if len(paths) < 2 || paths[len(paths)-2] != "/api/auth/get-session" || paths[len(paths)-1] != "/api/auth/sign-out" {
		t.Fatalf("expected session lookup then sign-out, got %v", paths)
	}
}

func TestAppLogoutWithoutSessionStillRedirects(t *testing.T) {
	app := newTestApp(t)

	resp := doRequest(t, http.MethodPost, app.server.URL+"/logout", "", "")
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if len(app.auth.paths()) != 0 {
		t.Fatalf("no upstream call expected without a cookie, got %v", app.auth.paths())
	}
}
