package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/feedback-api/internal/dto"
	"github.com/noah-isme/feedback-api/internal/observability"
)

// SummaryCache stores computed form summaries in Redis. A nil cache or client disables caching.
//
// Entries are keyed by a per-form generation counter. Invalidate bumps the
// generation, so a summary computed from rows read before the bump is written
// under a key no reader will ask for again.
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewSummaryCache constructs the cache; ttl <= 0 falls back to five minutes.
func NewSummaryCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *SummaryCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SummaryCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "summary_cache").Logger(),
	}
}

func summaryGenerationKey(formID string) string {
	return fmt.Sprintf("feedback:summary:gen:%s", formID)
}

func summaryCacheKey(formID string, generation int64) string {
	return fmt.Sprintf("feedback:summary:v2:%s:%d", formID, generation)
}

func (c *SummaryCache) enabled() bool {
	return c != nil && c.client != nil
}

// Generation returns the current generation for formID. It must be read before
// the rows the summary is built from. ok is false when the cache is unusable.
func (c *SummaryCache) Generation(ctx context.Context, formID string) (int64, bool) {
	if !c.enabled() {
		return 0, false
	}

	generation, err := c.client.Get(ctx, summaryGenerationKey(formID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, true
		}
		c.logger.Warn().Err(err).Str("form_id", formID).Msg("failed to read summary generation")
		return 0, false
	}
	return generation, true
}

// Get returns the summary cached for formID at generation, if any.
func (c *SummaryCache) Get(ctx context.Context, formID string, generation int64) (dto.FeedbackSummaryResponse, bool) {
	if !c.enabled() {
		return dto.FeedbackSummaryResponse{}, false
	}

	cached, err := c.client.Get(ctx, summaryCacheKey(formID, generation)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Str("form_id", formID).Msg("failed to read summary cache")
		}
		observability.SummaryCacheRequests().WithLabelValues("miss").Inc()
		return dto.FeedbackSummaryResponse{}, false
	}

	var summary dto.FeedbackSummaryResponse
	if err := json.Unmarshal([]byte(cached), &summary); err != nil {
		c.logger.Warn().Err(err).Str("form_id", formID).Msg("discarding corrupt summary cache entry")
		observability.SummaryCacheRequests().WithLabelValues("miss").Inc()
		return dto.FeedbackSummaryResponse{}, false
	}

	observability.SummaryCacheRequests().WithLabelValues("hit").Inc()
	return summary, true
}

// Set stores the summary for formID under generation.
func (c *SummaryCache) Set(ctx context.Context, formID string, generation int64, summary dto.FeedbackSummaryResponse) {
	if !c.enabled() {
		return
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, summaryCacheKey(formID, generation), payload, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("form_id", formID).Msg("failed to store summary cache")
	}
}

// Invalidate moves formID to a new generation and drops the entry of the old one.
func (c *SummaryCache) Invalidate(ctx context.Context, formID string) {
	if !c.enabled() {
		return
	}

	next, err := c.client.Incr(ctx, summaryGenerationKey(formID)).Result()
	if err != nil {
		c.logger.Warn().Err(err).Str("form_id", formID).Msg("failed to invalidate summary cache")
		return
	}
	if err := c.client.Del(ctx, summaryCacheKey(formID, next-1)).Err(); err != nil {
		c.logger.Debug().Err(err).Str("form_id", formID).Msg("failed to drop stale summary entry")
	}
}
