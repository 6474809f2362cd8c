package apiclient

import (
	"context"
	"net/http"
)

type forwardedKey struct{}

// forwardable lists the caller headers a page handler may hand down to
// upstream calls.
var forwardable = []string{"Cookie", "Authorization"}

// WithForwardedHeaders stores the caller's credentials so that every Fetch
// made with the returned context carries them. Explicit Options.Headers win.
func WithForwardedHeaders(ctx context.Context, src http.Header) context.Context {
	h := http.Header{}
	for _, key := range forwardable {
		if v := src.Get(key); v != "" {
			h.Set(key, v)
		}
	}
	if len(h) == 0 {
		return ctx
	}
	return context.WithValue(ctx, forwardedKey{}, h)
}

func forwardedHeaders(ctx context.Context) http.Header {
	h, _ := ctx.Value(forwardedKey{}).(http.Header)
	return h
}
