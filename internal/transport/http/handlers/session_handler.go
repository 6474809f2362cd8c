package handlers

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ivankudzin/ticketadmin/internal/session"
)

type SignOuter interface {
	SignOut(ctx context.Context, cookieHeader string) error
}

type SessionHandler struct {
	identity    SignOuter
	authAppURL  string
	cookieNames []string
	logger      *zap.Logger
}

func NewSessionHandler(identity SignOuter, authAppURL string, cookieNames []string, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{
		identity:    identity,
		authAppURL:  strings.TrimRight(authAppURL, "/"),
		cookieNames: cookieNames,
		logger:      logger,
	}
}

// Logout revokes the session upstream and always ends on the login page,
// even if the upstream call failed.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie := r.Header.Get("Cookie"); cookie != "" && h.identity != nil {
		if err := h.identity.SignOut(r.Context(), cookie); err != nil {
			h.logger.Warn("upstream sign-out failed", zap.Error(err))
		}
	}
	if store, ok := session.StoreFromContext(r.Context()); ok {
		if s, ok := store.Current(); ok {
			h.logger.Info("user signed out", zap.String("user_id", s.User.ID))
		}
		store.Clear()
	}

	for _, name := range h.cookieNames {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   strings.HasPrefix(name, "__Secure-"),
			SameSite: http.SameSiteLaxMode,
		})
	}
	http.Redirect(w, r, h.authAppURL+"/login", http.StatusSeeOther)
}
