package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ivankudzin/ticketadmin/internal/apiclient"
	"github.com/ivankudzin/ticketadmin/internal/session"
)

const (
	getSessionPath = "/api/auth/get-session"
	signOutPath    = "/api/auth/sign-out"
)

var (
	ErrNoSession    = errors.New("no session")
	ErrInvalidInput = errors.New("invalid input")
)

type Service struct {
	client *apiclient.Client
	origin string
}

// NewService builds the introspection client. The apiclient must not carry
// an ambient TokenSource: get-session authenticates by cookie alone.
func NewService(client *apiclient.Client, origin string) *Service {
	return &Service{
		client: client,
		origin: strings.TrimRight(strings.TrimSpace(origin), "/"),
	}
}

type sessionBody struct {
	Session *session.Info `json:"session"`
	User    *session.User `json:"user"`
}

// GetSession asks the auth service who owns cookieHeader. Every way of not
// getting a usable session (transport failure, non-2xx, null body, missing
// session or user) is reported as an error wrapping ErrNoSession.
func (s *Service) GetSession(ctx context.Context, cookieHeader string) (session.Session, error) {
	if s == nil || s.client == nil {
		return session.Session{}, fmt.Errorf("%w: identity service is not initialized", ErrNoSession)
	}
	if strings.TrimSpace(cookieHeader) == "" {
		return session.Session{}, fmt.Errorf("%w: %w", ErrNoSession, ErrInvalidInput)
	}

	raw, err := s.client.Fetch(ctx, getSessionPath, apiclient.Options{
		Method:  http.MethodGet,
		Headers: s.headers(cookieHeader),
	})
	if err != nil {
		return session.Session{}, fmt.Errorf("%w: get session: %w", ErrNoSession, err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return session.Session{}, ErrNoSession
	}

	var body sessionBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return session.Session{}, fmt.Errorf("%w: decode session: %w", ErrNoSession, err)
	}
	if body.Session == nil || body.User == nil {
		return session.Session{}, fmt.Errorf("%w: incomplete session body", ErrNoSession)
	}

	return session.Session{Info: *body.Session, User: *body.User}, nil
}

// SignOut revokes the session behind cookieHeader upstream.
func (s *Service) SignOut(ctx context.Context, cookieHeader string) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("identity service is not initialized")
	}
	if strings.TrimSpace(cookieHeader) == "" {
		return ErrInvalidInput
	}
	_, err := s.client.Fetch(ctx, signOutPath, apiclient.Options{
		Method:  http.MethodPost,
		Body:    map[string]any{},
		Headers: s.headers(cookieHeader),
	})
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

func (s *Service) headers(cookieHeader string) http.Header {
	h := http.Header{}
	h.Set("Cookie", cookieHeader)
	if s.origin != "" {
		h.Set("Origin", s.origin)
	}
	return h
}
