package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const turnKeyPrefix = "chat_transcript:"

// Store mirrors session transcripts into Redis so a reconnecting widget can
// replay history. The in-memory Session remains authoritative; all methods are
// nil-safe so the mirror is optional.
type Store struct {
	redis    *redis.Client
	tracer   trace.Tracer
	maxTurns int64
	ttl      time.Duration
}

// NewStore creates a transcript mirror. Returns nil when no Redis client is
// configured, which disables mirroring.
func NewStore(redisClient *redis.Client, ttl time.Duration) *Store {
	if redisClient == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{
		redis:    redisClient,
		tracer:   otel.Tracer("leadchat.internal.transcript"),
		maxTurns: 250,
		ttl:      ttl,
	}
}

// Append records a turn at the end of the session's mirrored transcript.
func (s *Store) Append(ctx context.Context, sessionID string, turn ChatTurn) error {
	if s == nil || s.redis == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if sessionID == "" {
		return errors.New("transcript: sessionID required")
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("transcript: marshal turn: %w", err)
	}

	ctx, span := s.tracer.Start(ctx, "transcript.append")
	defer span.End()

	key := turnKey(sessionID)
	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, s.ttl)
	if s.maxTurns > 0 {
		pipe.LTrim(ctx, key, -s.maxTurns, -1)
	}
	if _, err = pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("transcript: append turn: %w", err)
	}
	return nil
}

// List returns the last limit turns in order; limit <= 0 returns everything.
func (s *Store) List(ctx context.Context, sessionID string, limit int64) ([]ChatTurn, error) {
	if s == nil || s.redis == nil {
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if sessionID == "" {
		return nil, errors.New("transcript: sessionID required")
	}

	ctx, span := s.tracer.Start(ctx, "transcript.list")
	defer span.End()

	start := int64(0)
	if limit > 0 {
		start = -limit
	}

	raw, err := s.redis.LRange(ctx, turnKey(sessionID), start, -1).Result()
	if err != nil {
		span.RecordError(err)
		if err == redis.Nil {
			return []ChatTurn{}, nil
		}
		return nil, fmt.Errorf("transcript: list turns: %w", err)
	}

	out := make([]ChatTurn, 0, len(raw))
	for _, item := range raw {
		var turn ChatTurn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			span.RecordError(err)
			continue
		}
		out = append(out, turn)
	}
	return out, nil
}

// Reset drops the mirrored transcript for a session.
func (s *Store) Reset(ctx context.Context, sessionID string) error {
	if s == nil || s.redis == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if sessionID == "" {
		return errors.New("transcript: sessionID required")
	}

	ctx, span := s.tracer.Start(ctx, "transcript.reset")
	defer span.End()

	if err := s.redis.Del(ctx, turnKey(sessionID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("transcript: reset: %w", err)
	}
	return nil
}

func turnKey(sessionID string) string {
	return turnKeyPrefix + sessionID
}
