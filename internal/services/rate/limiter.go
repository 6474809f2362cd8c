package rate

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const mutationWindow = time.Minute

type WindowStore interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Limiter caps how many mutating admin proxy calls one admin can make per
// minute. A zero limit disables it.
type Limiter struct {
	store     WindowStore
	perMinute int
}

func NewLimiter(store WindowStore, perMinute int) *Limiter {
	if perMinute < 0 {
		perMinute = 0
	}
	return &Limiter{store: store, perMinute: perMinute}
}

func (l *Limiter) Enabled() bool {
	return l != nil && l.store != nil && l.perMinute > 0
}

func (l *Limiter) AllowMutation(ctx context.Context, adminID string) (int64, bool, error) {
	if !l.Enabled() {
		return 0, true, nil
	}
	adminID = strings.TrimSpace(adminID)
	if adminID == "" {
		return 0, false, fmt.Errorf("invalid admin id")
	}

	count, ttl, err := l.store.IncrementWindow(ctx, mutationKey(adminID), mutationWindow)
	if err != nil {
		return 0, false, err
	}
	if count > int64(l.perMinute) {
		return ceilSeconds(ttl), false, nil
	}
	return 0, true, nil
}

func mutationKey(adminID string) string {
	return "rate:admin:mutations:" + adminID
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 1
	}
	sec := int64(d / time.Second)
	if d%time.Second != 0 {
		sec++
	}
	return sec
}
