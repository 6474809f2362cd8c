package organizations

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

const basePath = "/admin/organizations"

var ErrInvalidInput = errors.New("invalid input")

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

type Organization struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Slug             string     `json:"slug"`
	Status           Status     `json:"status"`
	MemberCount      int        `json:"memberCount"`
	OpenTickets      int        `json:"openTickets"`
	SuspendedAt      *time.Time `json:"suspendedAt,omitempty"`
	SuspensionReason string     `json:"suspensionReason,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

type ListParams struct {
	Search string
	Status *Status
	Page   *int
	Limit  *int
}

type Page struct {
	Items []Organization `json:"items"`
	Total int            `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

type Service struct {
	client *apiclient.Client
}

func NewService(client *apiclient.Client) *Service {
	return &Service{client: client}
}

func (s *Service) List(ctx context.Context, params ListParams) (Page, error) {
	var search *string
	if trimmed := strings.TrimSpace(params.Search); trimmed != "" {
		search = &trimmed
	}
	query := apiclient.BuildQueryString(apiclient.Params{
		apiclient.P("search", search),
		apiclient.P("status", params.Status),
		apiclient.P("page", params.Page),
		apiclient.P("limit", params.Limit),
	})
	return apiclient.Do[Page](ctx, s.client, basePath+query, apiclient.Options{})
}

func (s *Service) Get(ctx context.Context, id string) (Organization, error) {
	path, err := itemPath(id)
	if err != nil {
		return Organization{}, err
	}
	return apiclient.Do[Organization](ctx, s.client, path, apiclient.Options{})
}

// Suspend and Reactivate stamp the acting admin of ctx into the request.
func (s *Service) Suspend(ctx context.Context, id, reason string) (Organization, error) {
	path, err := itemPath(id)
	if err != nil {
		return Organization{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Organization{}, ErrInvalidInput
	}
	return apiclient.Do[Organization](ctx, s.client, path+"/suspend", apiclient.Options{
		Method: http.MethodPost,
		Body:   audit.Stamp(ctx, map[string]any{"reason": reason}, audit.SuspendedBy),
	})
}

func (s *Service) Reactivate(ctx context.Context, id string) (Organization, error) {
	path, err := itemPath(id)
	if err != nil {
		return Organization{}, err
	}
	return apiclient.Do[Organization](ctx, s.client, path+"/reactivate", apiclient.Options{
		Method: http.MethodPost,
		Body:   audit.Stamp(ctx, map[string]any{}, audit.ReactivatedBy),
	})
}

func itemPath(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrInvalidInput
	}
	return basePath + "/" + url.PathEscape(id), nil
}
