package audit

import (
	"context"

	"github.com/ivankudzin/ticketadmin/internal/session"
)

const (
	PerformedBy      = "performedBy"
	PerformedByEmail = "performedByEmail"

	SuspendedBy   = "suspendedBy"
	ReactivatedBy = "reactivatedBy"
	CreatedBy     = "createdBy"
	UpdatedBy     = "updatedBy"
	BannedBy      = "bannedBy"
	UnbannedBy    = "unbannedBy"
	RoleChangedBy = "roleChangedBy"
)

// Stamp merges the acting user of ctx into a mutation body. Without a
// session in ctx the body is returned as is.
func Stamp(ctx context.Context, body map[string]any, field string) map[string]any {
	s, ok := session.FromContext(ctx)
	if !ok {
		return body
	}
	return StampUser(body, s.User, field)
}

// StampUser writes the audit keys for actor, overwriting whatever the
// caller put there. field names the operation's own actor key and may be
// empty.
func StampUser(body map[string]any, actor session.User, field string) map[string]any {
	if body == nil {
		body = map[string]any{}
	}
	body[PerformedBy] = actor.ID
	body[PerformedByEmail] = actor.Email
	if field != "" {
		body[field] = actor.ID
	}
	return body
}
