package ratelimit

import (
	"context"
	"fmt"

	"github.com/cotravel/cotravel/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyChallenge  = "ratelimit:auth:challenge:%s"
	keyContribute = "ratelimit:invoice:contribute:%s"
	keySubmitLock = "lock:invoice:submit:%s:%s"
)

// RequestLimiter throttles the challenge and contribute endpoints and
// hands out submit locks. A nil receiver (redis not configured) allows
// everything.
type RequestLimiter struct {
	bucket *TokenBucket
	locker *Locker
	log    *zap.Logger
	cfg    config.RateLimitConfig
}

func NewRequestLimiter(cfg config.Config, log *zap.Logger) *RequestLimiter {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	return &RequestLimiter{
		bucket: NewTokenBucket(client),
		locker: NewLocker(client),
		log:    log.Named("ratelimit"),
		cfg:    cfg.RateLimit,
	}
}

func (r *RequestLimiter) Enabled() bool { return r != nil }

// AllowChallenge throttles challenge issuance per client address.
// Limiter failures fail open: an unreachable redis must not take down
// login.
func (r *RequestLimiter) AllowChallenge(ctx context.Context, clientAddr string) *Result {
	return r.allow(ctx, fmt.Sprintf(keyChallenge, clientAddr), r.cfg.ChallengeRate, r.cfg.ChallengeBurst)
}

// AllowContribute throttles contributions per user.
func (r *RequestLimiter) AllowContribute(ctx context.Context, userID string) *Result {
	return r.allow(ctx, fmt.Sprintf(keyContribute, userID), r.cfg.ContributeRate, r.cfg.ContributeBurst)
}

func (r *RequestLimiter) allow(ctx context.Context, key string, rate float64, burst int) *Result {
	if r == nil {
		return &Result{Allowed: true}
	}
	res, err := r.bucket.Allow(ctx, key, rate, burst)
	if err != nil {
		r.log.Warn("rate limit check failed, allowing request", zap.String("key", key), zap.Error(err))
		return &Result{Allowed: true}
	}
	return res
}

// AcquireSubmitLock takes a short lock keyed by (invoice, user) around
// a ledger submission. The returned release func is nil-safe.
func (r *RequestLimiter) AcquireSubmitLock(ctx context.Context, invoiceID, userID string) (func(), bool) {
	if r == nil {
		return func() {}, true
	}
	key := fmt.Sprintf(keySubmitLock, invoiceID, userID)
	token, ok, err := r.locker.TryLock(ctx, key, r.cfg.SubmitLockTTL)
	if err != nil {
		r.log.Warn("submit lock unavailable, proceeding", zap.String("key", key), zap.Error(err))
		return func() {}, true
	}
	if !ok {
		return func() {}, false
	}
	return func() {
		if err := r.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			r.log.Warn("submit lock release failed", zap.String("key", key), zap.Error(err))
		}
	}, true
}
