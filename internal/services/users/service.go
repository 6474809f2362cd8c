package users

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ivankudzin/ticketadmin/internal/apiclient"
	"github.com/ivankudzin/ticketadmin/internal/audit"
	"github.com/ivankudzin/ticketadmin/internal/domain/enums"
	"github.com/ivankudzin/ticketadmin/internal/session"
)

const (
	listUsersPath = "/api/auth/admin/list-users"
	banUserPath   = "/api/auth/admin/ban-user"
	unbanUserPath = "/api/auth/admin/unban-user"
	setRolePath   = "/api/auth/admin/set-role"

	defaultLimit = 50
	maxLimit     = 200
)

var ErrInvalidInput = errors.New("invalid input")

type ListParams struct {
	Search string
	Role   *enums.Role
	Limit  int
	Offset int
}

type Page struct {
	Users  []session.User `json:"users"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

type userBody struct {
	User session.User `json:"user"`
}

// Service administers accounts through the auth service admin endpoints.
// Those endpoints authorize by the caller's own session cookie.
type Service struct {
	client *apiclient.Client
}

func NewService(client *apiclient.Client) *Service {
	return &Service{client: client}
}

func (s *Service) List(ctx context.Context, params ListParams) (Page, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	query := apiclient.Params{
		apiclient.P("limit", limit),
		apiclient.P("offset", offset),
	}
	if search := strings.TrimSpace(params.Search); search != "" {
		query = append(query,
			apiclient.P("searchField", "email"),
			apiclient.P("searchOperator", "contains"),
			apiclient.P("searchValue", search),
		)
	}
	if params.Role != nil && params.Role.Valid() {
		query = append(query,
			apiclient.P("filterField", "role"),
			apiclient.P("filterOperator", "eq"),
			apiclient.P("filterValue", string(*params.Role)),
		)
	}

	page, err := apiclient.Do[Page](ctx, s.client, listUsersPath+apiclient.BuildQueryString(query), apiclient.Options{})
	if err != nil {
		return Page{}, err
	}
	if page.Limit == 0 {
		page.Limit = limit
	}
	page.Offset = offset
	return page, nil
}

// Ban bans a user. A zero duration bans indefinitely.
func (s *Service) Ban(ctx context.Context, userID, reason string, duration time.Duration) (session.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || duration < 0 {
		return session.User{}, ErrInvalidInput
	}
	body := map[string]any{"userId": userID}
	if reason = strings.TrimSpace(reason); reason != "" {
		body["banReason"] = reason
	}
	if duration > 0 {
		body["banExpiresIn"] = int64(duration / time.Second)
	}
	return s.mutate(ctx, banUserPath, body, audit.BannedBy)
}

func (s *Service) Unban(ctx context.Context, userID string) (session.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return session.User{}, ErrInvalidInput
	}
	return s.mutate(ctx, unbanUserPath, map[string]any{"userId": userID}, audit.UnbannedBy)
}

func (s *Service) SetRole(ctx context.Context, userID string, role enums.Role) (session.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || !role.Valid() {
		return session.User{}, ErrInvalidInput
	}
	return s.mutate(ctx, setRolePath, map[string]any{"userId": userID, "role": string(role)}, audit.RoleChangedBy)
}

func (s *Service) mutate(ctx context.Context, path string, body map[string]any, actorField string) (session.User, error) {
	resp, err := apiclient.Do[userBody](ctx, s.client, path, apiclient.Options{
		Method: http.MethodPost,
		Body:   audit.Stamp(ctx, body, actorField),
	})
	if err != nil {
		return session.User{}, err
	}
	return resp.User, nil
}
