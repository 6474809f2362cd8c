package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ivankudzin/ticketadmin/internal/infra/httpclient"
)

const maxResponseBytes = 4 * 1024 * 1024

// TokenSource supplies the ambient bearer token for a call, "" for none.
type TokenSource interface {
	Token(ctx context.Context) string
}

type Config struct {
	AuthBaseURL    string
	TicketsBaseURL string
	// LocalBaseURL is prepended to relative (local proxy) results.
	LocalBaseURL string
	Timeout      time.Duration
}

type Client struct {
	router     *Router
	localBase  string
	httpClient *http.Client
	tokens     TokenSource
	logger     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.logger = log
		}
	}
}

func WithRules(rules ...Rule) Option {
	return func(c *Client) { c.router.rules = rules }
}

func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		router:     NewRouter(cfg.AuthBaseURL, cfg.TicketsBaseURL),
		localBase:  strings.TrimRight(strings.TrimSpace(cfg.LocalBaseURL), "/"),
		httpClient: httpclient.New(cfg.Timeout),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type Options struct {
	Method string
	// Body is JSON-encoded unless it is an io.Reader, []byte or url.Values.
	Body any
	// Token overrides both a forwarded Authorization header and the
	// ambient TokenSource.
	Token   string
	Headers http.Header
}

type envelope struct {
	Success *bool           `json:"success"`
	Result  json.RawMessage `json:"result"`
	Errors  []envelopeError `json:"errors"`
}

type envelopeError struct {
	Message string          `json:"message"`
	Code    json.RawMessage `json:"code"`
}

// Fetch performs one request and returns the unwrapped payload: the result
// of a success envelope, or the body unchanged when it is not enveloped.
// A 2xx response without a body yields nil.
func (c *Client) Fetch(ctx context.Context, path string, opts Options) (json.RawMessage, error) {
	if c == nil || c.httpClient == nil {
		return nil, errors.New("api client is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	method := strings.ToUpper(strings.TrimSpace(opts.Method))
	if method == "" {
		method = http.MethodGet
	}

	target, resolved := c.router.Route(path)
	fullURL := resolved
	if target == TargetLocal {
		fullURL = c.localBase + ensureLeadingSlash(resolved)
	}

	bodyReader, contentType, err := encodeBody(opts.Body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create %s %s request: %w", method, path, err)
	}
	for key, values := range forwardedHeaders(ctx) {
		req.Header[key] = append([]string(nil), values...)
	}
	for key, values := range opts.Headers {
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := c.bearerToken(ctx, opts, req.Header); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", requestID(ctx))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("upstream request failed",
			zap.String("method", method),
			zap.String("target", target.String()),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &APIError{
			Status:  resp.StatusCode,
			Code:    fmt.Sprint(resp.StatusCode),
			Message: fmt.Sprintf("Request failed: %d", resp.StatusCode),
			Err:     fmt.Errorf("read response body: %w", err),
		}
	}

	c.logger.Debug("upstream request",
		zap.String("method", method),
		zap.String("target", target.String()),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeFailure(resp.StatusCode, raw)
	}

	return unwrap(resp.StatusCode, raw)
}

// Do fetches path and decodes the unwrapped payload into T.
func Do[T any](ctx context.Context, c *Client, path string, opts Options) (T, error) {
	var out T
	raw, err := c.Fetch(ctx, path, opts)
	if err != nil {
		return out, err
	}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s response: %w", path, err)
	}
	return out, nil
}

func (c *Client) bearerToken(ctx context.Context, opts Options, outgoing http.Header) string {
	if token := strings.TrimSpace(opts.Token); token != "" {
		return token
	}
	if outgoing.Get("Authorization") != "" {
		return ""
	}
	if c.tokens == nil {
		return ""
	}
	return strings.TrimSpace(c.tokens.Token(ctx))
}

func encodeBody(body any) (io.Reader, string, error) {
	switch typed := body.(type) {
	case nil:
		return nil, "", nil
	case json.RawMessage:
		return bytes.NewReader(typed), "application/json", nil
	case url.Values:
		return strings.NewReader(typed.Encode()), "application/x-www-form-urlencoded", nil
	case []byte:
		return bytes.NewReader(typed), "", nil
	case io.Reader:
		return typed, "", nil
	default:
		payload, err := json.Marshal(typed)
		if err != nil {
			return nil, "", fmt.Errorf("marshal request body: %w", err)
		}
		return bytes.NewReader(payload), "application/json", nil
	}
}

func decodeFailure(status int, raw []byte) error {
	var body any
	if err := json.Unmarshal(raw, &body); err != nil {
		return requestFailed(status, nil)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || len(env.Errors) == 0 {
		return requestFailed(status, body)
	}
	return fromEnvelopeError(status, env.Errors[0], body)
}

func unwrap(status int, raw []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("decode response body: invalid JSON (status %d)", status)
	}
	if trimmed[0] != '{' {
		return json.RawMessage(trimmed), nil
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return json.RawMessage(trimmed), nil
	}
	switch {
	case env.Success == nil:
		return json.RawMessage(trimmed), nil
	case *env.Success && env.Result != nil:
		return env.Result, nil
	case !*env.Success:
		var body any
		_ = json.Unmarshal(trimmed, &body)
		if len(env.Errors) == 0 {
			return nil, requestFailed(status, body)
		}
		return nil, fromEnvelopeError(status, env.Errors[0], body)
	default:
		return json.RawMessage(trimmed), nil
	}
}

func fromEnvelopeError(status int, first envelopeError, body any) *APIError {
	apiErr := requestFailed(status, body)
	if msg := strings.TrimSpace(first.Message); msg != "" {
		apiErr.Message = msg
	}
	if code := decodeCode(first.Code); code != "" {
		apiErr.Code = code
	}
	return apiErr
}

// decodeCode accepts both string and numeric application codes.
func decodeCode(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err == nil {
		return n.String()
	}
	return string(trimmed)
}

func requestID(ctx context.Context) string {
	if id := chimiddleware.GetReqID(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}
