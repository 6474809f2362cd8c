package session

import (
	"time"

	"github.com/ivankudzin/ticketadmin/internal/domain/enums"
)

// User is the read-only projection of the upstream principal.
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	Role          enums.Role `json:"role"`
	Banned        bool       `json:"banned"`
	BanReason     string     `json:"banReason,omitempty"`
	BanExpires    *time.Time `json:"banExpires,omitempty"`
	EmailVerified bool       `json:"emailVerified"`

	// OrganizationID is set for organization members using the portal.
	OrganizationID string `json:"organizationId,omitempty"`
}

type Info struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
	IPAddress string    `json:"ipAddress,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
}

// Session mirrors the body of the auth service's get-session endpoint.
type Session struct {
	Info Info `json:"session"`
	User User `json:"user"`
}

func (s Session) Expired(now time.Time) bool {
	return !s.Info.ExpiresAt.IsZero() && now.After(s.Info.ExpiresAt)
}
