package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ivankudzin/ticketadmin/internal/apiclient"
	"github.com/ivankudzin/ticketadmin/internal/domain/enums"
	"github.com/ivankudzin/ticketadmin/internal/services/analytics"
	"github.com/ivankudzin/ticketadmin/internal/services/health"
	"github.com/ivankudzin/ticketadmin/internal/services/organizations"
	"github.com/ivankudzin/ticketadmin/internal/services/tickets"
	"github.com/ivankudzin/ticketadmin/internal/services/users"
	"github.com/ivankudzin/ticketadmin/internal/session"
	httperrors "github.com/ivankudzin/ticketadmin/internal/transport/http/errors"
)

// PageView is what every dashboard page returns; the front-end bundle
// renders it.
type PageView struct {
	Page   string                `json:"page"`
	User   *PageUser             `json:"user,omitempty"`
	Data   any                   `json:"data"`
	Errors []httperrors.APIError `json:"errors,omitempty"`
}

type PageUser struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	Name           string     `json:"name"`
	Role           enums.Role `json:"role"`
	OrganizationID string     `json:"organizationId,omitempty"`
}

type PagesHandler struct {
	organizations *organizations.Service
	tickets       *tickets.Service
	users         *users.Service
	analytics     *analytics.Service
	health        *health.Service
	logger        *zap.Logger
}

func NewPagesHandler(
	orgs *organizations.Service,
	ticketsSvc *tickets.Service,
	usersSvc *users.Service,
	analyticsSvc *analytics.Service,
	healthSvc *health.Service,
	logger *zap.Logger,
) *PagesHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PagesHandler{
		organizations: orgs,
		tickets:       ticketsSvc,
		users:         usersSvc,
		analytics:     analyticsSvc,
		health:        healthSvc,
		logger:        logger,
	}
}

func (h *PagesHandler) Overview(w http.ResponseWriter, r *http.Request) {
	ctx := apiclient.WithForwardedHeaders(r.Context(), r.Header)

	var (
		overview analytics.Overview
		report   health.Report
		fetchErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		overview, err = h.analytics.Overview(gctx, analytics.DefaultPeriod)
		if err != nil {
			fetchErr = err
		}
		return nil
	})
	g.Go(func() error {
		report = h.health.Check(gctx)
		return nil
	})
	_ = g.Wait()

	view := PageView{
		Page: "overview",
		Data: map[string]any{
			"analytics": overview,
			"health":    report,
		},
	}
	if fetchErr != nil {
		h.logger.Warn("overview analytics unavailable", zap.Error(fetchErr))
		view.Errors = append(view.Errors, viewError(fetchErr))
	}
	h.render(w, r, http.StatusOK, view)
}

func (h *PagesHandler) Organizations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, okPage := optionalInt(q.Get("page"))
	limit, okLimit := optionalInt(q.Get("limit"))
	if !okPage || !okLimit {
		writeBadRequest(w, "VALIDATION_ERROR", "page and limit must be positive integers")
		return
	}
	params := organizations.ListParams{Search: q.Get("search"), Page: page, Limit: limit}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status := organizations.Status(strings.ToLower(raw))
		params.Status = &status
	}

	ctx := apiclient.WithForwardedHeaders(r.Context(), r.Header)
	result, err := h.organizations.List(ctx, params)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	h.render(w, r, http.StatusOK, PageView{Page: "organizations", Data: result})
}

func (h *PagesHandler) Organization(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := apiclient.WithForwardedHeaders(r.Context(), r.Header)

	var (
		org     organizations.Organization
		related tickets.Page
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		org, err = h.organizations.Get(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		related, err = h.tickets.ListForOrganization(gctx, id, tickets.ListParams{})
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, organizations.ErrInvalidInput) || errors.Is(err, tickets.ErrInvalidInput) {
			writeBadRequest(w, "VALIDATION_ERROR", "invalid organization id")
			return
		}
		writeUpstreamError(w, err)
		return
	}

	h.render(w, r, http.StatusOK, PageView{
		Page: "organization",
		Data: map[string]any{
			"organization": org,
			"tickets":      related,
		},
	})
}

func (h *PagesHandler) Tickets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, okPage := optionalInt(q.Get("page"))
	limit, okLimit := optionalInt(q.Get("limit"))
	if !okPage || !okLimit {
		writeBadRequest(w, "VALIDATION_ERROR", "page and limit must be positive integers")
		return
	}

	params := tickets.ListParams{
		OrganizationID: optionalString(q.Get("organizationId")),
		AssigneeID:     optionalString(q.Get("assigneeId")),
		Page:           page,
		Limit:          limit,
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status := tickets.Status(strings.ToLower(raw))
		if !status.Valid() {
			writeBadRequest(w, "VALIDATION_ERROR", "unknown ticket status")
			return
		}
		params.Status = &status
	}
	if raw := strings.TrimSpace(q.Get("priority")); raw != "" {
		priority := tickets.Priority(strings.ToLower(raw))
		if !priority.Valid() {
			writeBadRequest(w, "VALIDATION_ERROR", "unknown ticket priority")
			return
		}
		params.Priority = &priority
	}

	ctx := apiclient.WithForwardedHeaders(r.Context(), r.Header)
	result, err := h.tickets.List(ctx, params)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	h.render(w, r, http.StatusOK, PageView{Page: "tickets", Data: result})
}

func (h *PagesHandler) Ticket(w http.ResponseWriter, r *http.Request) {
	ctx := apiclient.WithForwardedHeaders(r.Context(), r.Header)
	ticket, err := h.tickets.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, tickets.ErrInvalidInput) {
			writeBadRequest(w, "VALIDATION_ERROR", "invalid ticket id")
			return
		}
		writeUpstreamError(w, err)
		return
	}
	h.render(w, r, http.StatusOK, PageView{Page: "ticket", Data: ticket})
}

func (h *PagesHandler) Users(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, okLimit := optionalInt(q.Get("limit"))
	offset, okOffset := optionalNonNegativeInt(q.Get("offset"))
	if !okLimit || !okOffset {
		writeBadRequest(w, "VALIDATION_ERROR", "limit and offset must be integers")
		return
	}

	params := users.ListParams{Search: q.Get("search"), Offset: offset}
	if limit != nil {
		params.Limit = *limit
	}
	if raw := strings.TrimSpace(q.Get("role")); raw != "" {
		role := enums.ParseRole(raw)
		if !role.Valid() {
			writeBadRequest(w, "VALIDATION_ERROR", "unknown role")
			return
		}
		params.Role = &role
	}

	ctx := apiclient.WithForwardedHeaders(r.Context(), r.Header)
	result, err := h.users.List(ctx, params)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	h.render(w, r, http.StatusOK, PageView{Page: "users", Data: result})
}

func (h *PagesHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	period, err := analytics.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "period must be one of 24h, 7d, 30d, 90d")
		return
	}

	ctx := apiclient.WithForwardedHeaders(r.Context(), r.Header)
	overview, err := h.analytics.Overview(ctx, period)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	h.render(w, r, http.StatusOK, PageView{Page: "analytics", Data: overview})
}

func (h *PagesHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, PageView{Page: "health", Data: h.health.Check(r.Context())})
}

// Unauthorized is served both directly and as the gate's internal rewrite
// target, so it answers 200 like any page.
func (h *PagesHandler) Unauthorized(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, PageView{
		Page: "unauthorized",
		Data: map[string]any{
			"title":   "Access denied",
			"message": "Your account does not have access to this page.",
		},
	})
}

// Portal lists the tickets of the signed-in member's organization.
func (h *PagesHandler) Portal(w http.ResponseWriter, r *http.Request) {
	current, ok := session.FromContext(r.Context())
	if !ok {
		httperrors.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}

	orgID := strings.TrimSpace(current.User.OrganizationID)
	if orgID == "" {
		h.render(w, r, http.StatusOK, PageView{
			Page: "portal",
			Data: map[string]any{"organizationId": "", "tickets": tickets.Page{Items: []tickets.Ticket{}}},
		})
		return
	}

	// Direct to the tickets service, so the auth cookie stays behind.
	ctx := apiclient.WithForwardedHeaders(r.Context(), http.Header{"Authorization": r.Header.Values("Authorization")})
	result, err := h.tickets.ListOwn(ctx, orgID, tickets.ListParams{})
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	h.render(w, r, http.StatusOK, PageView{
		Page: "portal",
		Data: map[string]any{"organizationId": orgID, "tickets": result},
	})
}

func (h *PagesHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusNotFound, PageView{
		Page: "not_found",
		Data: map[string]any{"path": r.URL.Path},
	})
}

func (h *PagesHandler) Healthz(w http.ResponseWriter, _ *http.Request) {
	httperrors.Write(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *PagesHandler) render(w http.ResponseWriter, r *http.Request, status int, view PageView) {
	if current, ok := session.FromContext(r.Context()); ok {
		view.User = &PageUser{
			ID:             current.User.ID,
			Email:          current.User.Email,
			Name:           current.User.Name,
			Role:           current.User.Role,
			OrganizationID: current.User.OrganizationID,
		}
	}
	httperrors.Write(w, status, view)
}

func viewError(err error) httperrors.APIError {
	if apiErr, ok := apiclient.AsAPIError(err); ok {
		return httperrors.APIError{Code: apiErr.Code, Message: apiErr.Message}
	}
	return httperrors.APIError{Code: "UPSTREAM_ERROR", Message: err.Error()}
}

func optionalString(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func optionalInt(raw string) (*int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return nil, false
	}
	return &v, true
}

func optionalNonNegativeInt(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
