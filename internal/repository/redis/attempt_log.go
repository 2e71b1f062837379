package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/arklim/practicum-auth/internal/core/domain"
	"github.com/arklim/practicum-auth/internal/core/port"
	"github.com/arklim/practicum-auth/internal/infra/security"
)

// AttemptLogConfig configures storage keys for the attempt log.
type AttemptLogConfig struct {
	// LogKey is the single list key holding the capped attempt log.
	LogKey string
	// LockoutPrefix prefixes the advisory per-identifier lockout keys.
	LockoutPrefix string
	// Cap bounds the log length; zero falls back to DefaultAttemptLogCap.
	Cap int
}

// DefaultAttemptLogCap matches the log cap the security monitor assumes.
const DefaultAttemptLogCap = 50

// AttemptLogRepository persists login attempts as a capped Redis list,
// newest first. Writers race benignly: a concurrent rewrite may drop another
// writer's entry, which is acceptable for a heuristic log.
type AttemptLogRepository struct {
	client *redis.Client
	cfg    AttemptLogConfig
	logger *zap.Logger
}

// NewAttemptLogRepository constructs the repository over the provided client.
func NewAttemptLogRepository(client *redis.Client, cfg AttemptLogConfig, logger *zap.Logger) *AttemptLogRepository {
	if cfg.LogKey == "" {
		cfg.LogKey = "auth:login-attempts"
	}
	if cfg.LockoutPrefix == "" {
		cfg.LockoutPrefix = "auth:lockout"
	}
	if cfg.Cap <= 0 {
		cfg.Cap = DefaultAttemptLogCap
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttemptLogRepository{client: client, cfg: cfg, logger: logger}
}

// Append prepends the attempt and truncates the log to its cap.
func (r *AttemptLogRepository) Append(ctx context.Context, attempt domain.LoginAttempt) error {
	payload, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("marshal login attempt: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, r.cfg.LogKey, payload)
	pipe.LTrim(ctx, r.cfg.LogKey, 0, int64(r.cfg.Cap-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append login attempt: %w", err)
	}

	return nil
}

// List returns the full log, newest first. Entries that fail to decode are
// skipped rather than failing the read.
func (r *AttemptLogRepository) List(ctx context.Context) ([]domain.LoginAttempt, error) {
	values, err := r.client.LRange(ctx, r.cfg.LogKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read login attempts: %w", err)
	}

	attempts := make([]domain.LoginAttempt, 0, len(values))
	for _, value := range values {
		var attempt domain.LoginAttempt
		if err := json.Unmarshal([]byte(value), &attempt); err != nil {
			r.logger.Warn("skipping undecodable login attempt entry", zap.Error(err))
			continue
		}
		attempts = append(attempts, attempt)
	}

	return attempts, nil
}

// ClearFailures rewrites the log without the identifier's failed entries.
// Read-modify-write; an interleaved append may be lost, which is acceptable
// for a heuristic log.
func (r *AttemptLogRepository) ClearFailures(ctx context.Context, identifier string) error {
	attempts, err := r.List(ctx)
	if err != nil {
		return err
	}

	kept := make([]interface{}, 0, len(attempts))
	for _, attempt := range attempts {
		if attempt.Identifier == identifier && !attempt.Succeeded {
			continue
		}
		payload, err := json.Marshal(attempt)
		if err != nil {
			return fmt.Errorf("marshal login attempt: %w", err)
		}
		kept = append(kept, payload)
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.cfg.LogKey)
	if len(kept) > 0 {
		// RPush in list order keeps the log newest-first.
		pipe.RPush(ctx, r.cfg.LogKey, kept...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rewrite login attempts: %w", err)
	}

	return nil
}

// CacheLockout records an advisory lockout marker that expires with the
// lockout itself. Never read back for decisions; lockout state is always
// recomputed from the log.
func (r *AttemptLogRepository) CacheLockout(ctx context.Context, identifier string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}

	key := fmt.Sprintf("%s:%s", r.cfg.LockoutPrefix, security.HashToken(identifier))
	if err := r.client.Set(ctx, key, until.UTC().Format(time.RFC3339), ttl).Err(); err != nil {
		return fmt.Errorf("cache lockout marker: %w", err)
	}

	return nil
}

var _ port.AttemptStore = (*AttemptLogRepository)(nil)
