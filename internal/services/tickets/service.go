package tickets

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ivankudzin/ticketadmin/internal/apiclient"
	"github.com/ivankudzin/ticketadmin/internal/audit"
)

const basePath = "/admin/support-tickets"

var ErrInvalidInput = errors.New("invalid input")

type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusClosed:
		return true
	default:
		return false
	}
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

type Ticket struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Subject        string    `json:"subject"`
	Description    string    `json:"description"`
	Status         Status    `json:"status"`
	Priority       Priority  `json:"priority"`
	AssigneeID     string    `json:"assigneeId,omitempty"`
	CreatedBy      string    `json:"createdBy,omitempty"`
	UpdatedBy      string    `json:"updatedBy,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type ListParams struct {
	OrganizationID *string
	Status         *Status
	Priority       *Priority
	AssigneeID     *string
	Page           *int
	Limit          *int
}

type Page struct {
	Items []Ticket `json:"items"`
	Total int      `json:"total"`
	Page  int      `json:"page"`
	Limit int      `json:"limit"`
}

type CreateInput struct {
	OrganizationID string   `json:"organizationId"`
	Subject        string   `json:"subject"`
	Description    string   `json:"description"`
	Priority       Priority `json:"priority,omitempty"`
}

// UpdateInput is a partial update; nil fields are left untouched upstream.
type UpdateInput struct {
	Subject     *string   `json:"subject,omitempty"`
	Description *string   `json:"description,omitempty"`
	Status      *Status   `json:"status,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
	AssigneeID  *string   `json:"assigneeId,omitempty"`
}

func (in UpdateInput) empty() bool {
	return in.Subject == nil && in.Description == nil && in.Status == nil && in.Priority == nil && in.AssigneeID == nil
}

func (in CreateInput) body() map[string]any {
	return map[string]any{
		"organizationId": in.OrganizationID,
		"subject":        in.Subject,
		"description":    in.Description,
		"priority":       string(in.Priority),
	}
}

func (in UpdateInput) body() map[string]any {
	out := map[string]any{}
	if in.Subject != nil {
		out["subject"] = *in.Subject
	}
	if in.Description != nil {
		out["description"] = *in.Description
	}
	if in.Status != nil {
		out["status"] = string(*in.Status)
	}
	if in.Priority != nil {
		out["priority"] = string(*in.Priority)
	}
	if in.AssigneeID != nil {
		out["assigneeId"] = *in.AssigneeID
	}
	return out
}

type Service struct {
	client *apiclient.Client
}

func NewService(client *apiclient.Client) *Service {
	return &Service{client: client}
}

func (s *Service) List(ctx context.Context, params ListParams) (Page, error) {
	query := apiclient.BuildQueryString(apiclient.Params{
		apiclient.P("organizationId", params.OrganizationID),
		apiclient.P("status", params.Status),
		apiclient.P("priority", params.Priority),
		apiclient.P("assigneeId", params.AssigneeID),
		apiclient.P("page", params.Page),
		apiclient.P("limit", params.Limit),
	})
	return apiclient.Do[Page](ctx, s.client, basePath+query, apiclient.Options{})
}

func (s *Service) ListForOrganization(ctx context.Context, organizationID string, params ListParams) (Page, error) {
	organizationID = strings.TrimSpace(organizationID)
	if organizationID == "" {
		return Page{}, ErrInvalidInput
	}
	params.OrganizationID = &organizationID
	return s.List(ctx, params)
}

// ListOwn reads an organization's tickets straight from the tickets service
// under the caller's own credentials. The portal uses it: portal members
// cannot pass the admin proxy.
func (s *Service) ListOwn(ctx context.Context, organizationID string, params ListParams) (Page, error) {
	organizationID = strings.TrimSpace(organizationID)
	if organizationID == "" {
		return Page{}, ErrInvalidInput
	}
	query := apiclient.BuildQueryString(apiclient.Params{
		apiclient.P("status", params.Status),
		apiclient.P("priority", params.Priority),
		apiclient.P("page", params.Page),
		apiclient.P("limit", params.Limit),
	})
	path := "/organizations/" + url.PathEscape(organizationID) + "/support-tickets" + query
	return apiclient.Do[Page](ctx, s.client, path, apiclient.Options{})
}

func (s *Service) Get(ctx context.Context, id string) (Ticket, error) {
	path, err := itemPath(id)
	if err != nil {
		return Ticket{}, err
	}
	return apiclient.Do[Ticket](ctx, s.client, path, apiclient.Options{})
}

// Create, Update and Delete stamp the acting admin of ctx into the request.
func (s *Service) Create(ctx context.Context, in CreateInput) (Ticket, error) {
	in.OrganizationID = strings.TrimSpace(in.OrganizationID)
	in.Subject = strings.TrimSpace(in.Subject)
	if in.OrganizationID == "" || in.Subject == "" {
		return Ticket{}, ErrInvalidInput
	}
	if in.Priority == "" {
		in.Priority = PriorityNormal
	}
	if !in.Priority.Valid() {
		return Ticket{}, ErrInvalidInput
	}
	return apiclient.Do[Ticket](ctx, s.client, basePath, apiclient.Options{
		Method: http.MethodPost,
		Body:   audit.Stamp(ctx, in.body(), audit.CreatedBy),
	})
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Ticket, error) {
	path, err := itemPath(id)
	if err != nil {
		return Ticket{}, err
	}
	if in.empty() {
		return Ticket{}, ErrInvalidInput
	}
	if in.Status != nil && !in.Status.Valid() {
		return Ticket{}, ErrInvalidInput
	}
	if in.Priority != nil && !in.Priority.Valid() {
		return Ticket{}, ErrInvalidInput
	}
	return apiclient.Do[Ticket](ctx, s.client, path, apiclient.Options{
		Method: http.MethodPatch,
		Body:   audit.Stamp(ctx, in.body(), audit.UpdatedBy),
	})
}

func (s *Service) Delete(ctx context.Context, id string) error {
	path, err := itemPath(id)
	if err != nil {
		return err
	}
	opts := apiclient.Options{Method: http.MethodDelete}
	if stamp := audit.Stamp(ctx, nil, ""); stamp != nil {
		opts.Body = stamp
	}
	_, err = s.client.Fetch(ctx, path, opts)
	return err
}

func itemPath(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrInvalidInput
	}
	return basePath + "/" + url.PathEscape(id), nil
}
