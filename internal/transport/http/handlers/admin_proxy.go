package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ivankudzin/ticketadmin/internal/apiclient"
	"github.com/ivankudzin/ticketadmin/internal/audit"
	"github.com/ivankudzin/ticketadmin/internal/domain/enums"
	"github.com/ivankudzin/ticketadmin/internal/services/organizations"
	"github.com/ivankudzin/ticketadmin/internal/services/tickets"
	"github.com/ivankudzin/ticketadmin/internal/services/users"
	"github.com/ivankudzin/ticketadmin/internal/session"
	httperrors "github.com/ivankudzin/ticketadmin/internal/transport/http/errors"
)

const (
	localProxyPrefix = "/api"
	maxProxyBody     = 1 << 20
)

type ServiceTokenIssuer interface {
	Configured() bool
	Issue(actorID, email string, role enums.Role) (string, time.Time, error)
}

type MutationLimiter interface {
	AllowMutation(ctx context.Context, adminID string) (int64, bool, error)
}

// AdminProxyHandler serves /api/admin/*. Named mutations go through the
// domain services; everything else is forwarded to the tickets service.
// The client and services must route with apiclient.UpstreamRules so
// admin paths are not looped back here.
type AdminProxyHandler struct {
	client        *apiclient.Client
	organizations *organizations.Service
	tickets       *tickets.Service
	users         *users.Service
	tokens        ServiceTokenIssuer
	limiter       MutationLimiter
	logger        *zap.Logger
}

func NewAdminProxyHandler(
	client *apiclient.Client,
	orgs *organizations.Service,
	ticketsSvc *tickets.Service,
	usersSvc *users.Service,
	tokens ServiceTokenIssuer,
	limiter MutationLimiter,
	logger *zap.Logger,
) *AdminProxyHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminProxyHandler{
		client:        client,
		organizations: orgs,
		tickets:       ticketsSvc,
		users:         usersSvc,
		tokens:        tokens,
		limiter:       limiter,
		logger:        logger,
	}
}

// Routes registers the named routes and the catch-all forward relative to
// the /api/admin mount point.
func (h *AdminProxyHandler) Routes(r chi.Router) {
	r.Post("/organizations/{id}/suspend", h.SuspendOrganization)
	r.Post("/organizations/{id}/reactivate", h.ReactivateOrganization)
	r.Get("/support-tickets", h.Forward)
	r.Post("/support-tickets", h.CreateTicket)
	r.Get("/support-tickets/{id}", h.Forward)
	r.Patch("/support-tickets/{id}", h.UpdateTicket)
	r.Delete("/support-tickets/{id}", h.DeleteTicket)
	r.Post("/users/{id}/ban", h.BanUser)
	r.Post("/users/{id}/unban", h.UnbanUser)
	r.Post("/users/{id}/role", h.SetUserRole)
	r.HandleFunc("/*", h.Forward)
}

type suspendRequest struct {
	Reason string `json:"reason"`
}

type banRequest struct {
	BanReason string `json:"banReason"`
	// BanExpiresIn is in seconds; zero bans indefinitely.
	BanExpiresIn int64 `json:"banExpiresIn"`
}

type setRoleRequest struct {
	Role string `json:"role"`
}

func (h *AdminProxyHandler) SuspendOrganization(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.beginMutation(w, r, h.organizations != nil)
	if !ok {
		return
	}
	var req suspendRequest
	if !decodeBody(w, r, &req) {
		return
	}
	org, err := h.organizations.Suspend(h.ticketsContext(r, actor), chi.URLParam(r, "id"), req.Reason)
	h.finishMutation(w, r, actor, http.StatusOK, org, err)
}

func (h *AdminProxyHandler) ReactivateOrganization(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.beginMutation(w, r, h.organizations != nil)
	if !ok {
		return
	}
	org, err := h.organizations.Reactivate(h.ticketsContext(r, actor), chi.URLParam(r, "id"))
	h.finishMutation(w, r, actor, http.StatusOK, org, err)
}

func (h *AdminProxyHandler) CreateTicket(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.beginMutation(w, r, h.tickets != nil)
	if !ok {
		return
	}
	var in tickets.CreateInput
	if !decodeBody(w, r, &in) {
		return
	}
	ticket, err := h.tickets.Create(h.ticketsContext(r, actor), in)
	h.finishMutation(w, r, actor, http.StatusCreated, ticket, err)
}

func (h *AdminProxyHandler) UpdateTicket(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.beginMutation(w, r, h.tickets != nil)
	if !ok {
		return
	}
	var in tickets.UpdateInput
	if !decodeBody(w, r, &in) {
		return
	}
	ticket, err := h.tickets.Update(h.ticketsContext(r, actor), chi.URLParam(r, "id"), in)
	h.finishMutation(w, r, actor, http.StatusOK, ticket, err)
}

func (h *AdminProxyHandler) DeleteTicket(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.beginMutation(w, r, h.tickets != nil)
	if !ok {
		return
	}
	err := h.tickets.Delete(h.ticketsContext(r, actor), chi.URLParam(r, "id"))
	h.finishMutation(w, r, actor, http.StatusOK, nil, err)
}

func (h *AdminProxyHandler) BanUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.beginMutation(w, r, h.users != nil)
	if !ok {
		return
	}
	var req banRequest
	if !decodeBody(w, r, &req) {
		return
	}
	duration := time.Duration(req.BanExpiresIn) * time.Second
	user, err := h.users.Ban(authContext(r), chi.URLParam(r, "id"), req.BanReason, duration)
	h.finishMutation(w, r, actor, http.StatusOK, user, err)
}

func (h *AdminProxyHandler) UnbanUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.beginMutation(w, r, h.users != nil)
	if !ok {
		return
	}
	user, err := h.users.Unban(authContext(r), chi.URLParam(r, "id"))
	h.finishMutation(w, r, actor, http.StatusOK, user, err)
}

func (h *AdminProxyHandler) SetUserRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.beginMutation(w, r, h.users != nil)
	if !ok {
		return
	}
	var req setRoleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	user, err := h.users.SetRole(authContext(r), chi.URLParam(r, "id"), enums.ParseRole(req.Role))
	h.finishMutation(w, r, actor, http.StatusOK, user, err)
}

// Forward relays any other /api/admin request to the tickets service.
// Mutation bodies are stamped with the acting admin.
func (h *AdminProxyHandler) Forward(w http.ResponseWriter, r *http.Request) {
	actor, ok := session.FromContext(r.Context())
	if !ok {
		httperrors.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.client == nil {
		writeProxyUnavailable(w)
		return
	}

	mutation := isMutation(r.Method)
	if mutation && !h.allowMutation(w, r, actor.User) {
		return
	}

	var body any
	if mutation {
		stamped, err := stampBody(r.Body, actor.User)
		if err != nil {
			writeBadRequest(w, "VALIDATION_ERROR", "request body must be JSON")
			return
		}
		body = stamped
	}

	target := upstreamPath(r)
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	result, err := h.client.Fetch(h.ticketsContext(r, actor.User), target, apiclient.Options{
		Method: r.Method,
		Body:   body,
	})
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	if mutation {
		h.logMutation(r, actor.User)
	}
	if len(result) == 0 {
		httperrors.WriteSuccess(w, http.StatusOK, nil)
		return
	}
	httperrors.WriteSuccess(w, http.StatusOK, result)
}

// beginMutation checks the session, the backing service and the rate
// limit. It reports false once a response has been written.
func (h *AdminProxyHandler) beginMutation(w http.ResponseWriter, r *http.Request, available bool) (session.User, bool) {
	actor, ok := session.FromContext(r.Context())
	if !ok {
		httperrors.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return session.User{}, false
	}
	if !available {
		writeProxyUnavailable(w)
		return session.User{}, false
	}
	if !h.allowMutation(w, r, actor.User) {
		return session.User{}, false
	}
	return actor.User, true
}

func (h *AdminProxyHandler) finishMutation(w http.ResponseWriter, r *http.Request, actor session.User, status int, result any, err error) {
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.logMutation(r, actor)
	httperrors.WriteSuccess(w, status, result)
}

// allowMutation fails open when the limiter itself errors.
func (h *AdminProxyHandler) allowMutation(w http.ResponseWriter, r *http.Request, actor session.User) bool {
	if h.limiter == nil {
		return true
	}
	retryAfter, allowed, err := h.limiter.AllowMutation(r.Context(), actor.ID)
	if err != nil {
		h.logger.Warn("mutation rate limiter unavailable", zap.String("user_id", actor.ID), zap.Error(err))
		return true
	}
	if !allowed {
		httperrors.WriteRateLimited(w, retryAfter)
		return false
	}
	return true
}

func (h *AdminProxyHandler) logMutation(r *http.Request, actor session.User) {
	h.logger.Info("admin mutation proxied",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("user_id", actor.ID),
	)
}

// ticketsContext carries the one credential the tickets service gets: the
// caller's Authorization header, else a minted service token. The session
// cookie belongs to the auth service and stays behind.
func (h *AdminProxyHandler) ticketsContext(r *http.Request, actor session.User) context.Context {
	header := http.Header{}
	if v := r.Header.Get("Authorization"); v != "" {
		header.Set("Authorization", v)
	} else if token := h.serviceToken(actor); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	return apiclient.WithForwardedHeaders(r.Context(), header)
}

// authContext forwards the caller's own session: the auth service admin
// endpoints authorize the acting admin themselves.
func authContext(r *http.Request) context.Context {
	return apiclient.WithForwardedHeaders(r.Context(), r.Header)
}

func (h *AdminProxyHandler) serviceToken(user session.User) string {
	if h.tokens == nil || !h.tokens.Configured() {
		return ""
	}
	token, _, err := h.tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		h.logger.Warn("issue service token failed", zap.String("user_id", user.ID), zap.Error(err))
		return ""
	}
	return token
}

// upstreamPath maps /api/admin/x to /admin/x, keeping escapes intact.
func upstreamPath(r *http.Request) string {
	path := r.URL.EscapedPath()
	if strings.HasPrefix(path, localProxyPrefix+"/") {
		return strings.TrimPrefix(path, localProxyPrefix)
	}
	return path
}

// stampBody merges the audit fields into a JSON object body. Non-object
// JSON is forwarded as is; an empty body becomes an object holding only the
// audit fields.
func stampBody(src io.Reader, actor session.User) (any, error) {
	raw, err := io.ReadAll(io.LimitReader(src, maxProxyBody))
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)

	fields := map[string]any{}
	if len(raw) > 0 {
		if !json.Valid(raw) {
			return nil, errInvalidJSON
		}
		if raw[0] != '{' {
			return json.RawMessage(raw), nil
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&fields); err != nil {
			return nil, err
		}
	}
	return audit.StampUser(fields, actor, ""), nil
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}
