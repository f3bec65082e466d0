package quota

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for quota tracking.
var (
	quotaRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pexels_quota_remaining",
		Help: "Requests remaining in the current Pexels quota window",
	})

	quotaLimit = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pexels_quota_limit",
		Help: "Requests allowed per Pexels quota window",
	})

	quotaLowTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pexels_quota_low_total",
		Help: "Responses observed while the quota was below the low watermark",
	})
)

// Tracker records Pexels quota headers in Redis.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewTracker creates a new quota tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
	}
}

// State retrieves the last recorded quota from Redis.
// Returns a zero State (Known() == false) if nothing has been recorded yet.
func (t *Tracker) State(ctx context.Context) (*State, error) {
	lastUpdate, err := t.redis.Get(ctx, RedisKeyLastUpdate).Int64()
	if errors.Is(err, redis.Nil) {
		t.logger.Debug().Msg("No quota state in Redis")
		return &State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get last update: %w", err)
	}

	limit, err := t.redis.Get(ctx, RedisKeyLimit).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get limit: %w", err)
	}

	remaining, err := t.redis.Get(ctx, RedisKeyRemaining).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get remaining: %w", err)
	}

	reset, err := t.redis.Get(ctx, RedisKeyReset).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get reset timestamp: %w", err)
	}

	return &State{
		Limit:      limit,
		Remaining:  remaining,
		ResetAt:    time.Unix(reset, 0),
		LastUpdate: time.Unix(0, lastUpdate),
	}, nil
}

// ParseHeaders extracts quota state from response headers.
// ok is false when the response carries no quota headers at all.
func ParseHeaders(headers http.Header, now time.Time) (state *State, ok bool, err error) {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil, false, nil
	}

	remaining, err := strconv.Atoi(remainStr)
	if err != nil {
		return nil, false, fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	state = &State{Remaining: remaining, LastUpdate: now}

	if limitStr := headers.Get(HeaderLimit); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, false, fmt.Errorf("parse %s header: %w", HeaderLimit, err)
		}
		state.Limit = limit
	}

	if resetStr := headers.Get(HeaderReset); resetStr != "" {
		reset, err := strconv.ParseInt(resetStr, 10, 64)
		if err != nil {
			return nil, false, fmt.Errorf("parse %s header: %w", HeaderReset, err)
		}
		state.ResetAt = time.Unix(reset, 0)
	}

	return state, true, nil
}

// Record parses quota headers and stores them in Redis.
// Responses without quota headers are ignored.
func (t *Tracker) Record(ctx context.Context, headers http.Header) error {
	state, ok, err := ParseHeaders(headers, time.Now())
	if err != nil || !ok {
		return err
	}

	pipe := t.redis.Pipeline()
	pipe.Set(ctx, RedisKeyLimit, state.Limit, 0)
	pipe.Set(ctx, RedisKeyRemaining, state.Remaining, 0)
	pipe.Set(ctx, RedisKeyReset, state.ResetAt.Unix(), 0)
	pipe.Set(ctx, RedisKeyLastUpdate, state.LastUpdate.UnixNano(), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store quota state in redis: %w", err)
	}

	quotaRemaining.Set(float64(state.Remaining))
	quotaLimit.Set(float64(state.Limit))

	if state.IsLow() {
		quotaLowTotal.Inc()
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Int("limit", state.Limit).
			Time("reset_at", state.ResetAt).
			Msg("Pexels quota running low")
		return nil
	}

	t.logger.Debug().
		Int("remaining", state.Remaining).
		Int("limit", state.Limit).
		Msg("Pexels quota state updated")

	return nil
}
