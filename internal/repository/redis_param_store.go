package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	domrepo "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/repository"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/cache"
)

const (
	paramLatestKey  = "params:latest"
	paramGenKeyFmt  = "params:gen:%d"
	appliedKeyFmt   = "applied:%s"
	paramGenHistory = 90 * 24 * time.Hour
)

// RedisParamStore persists parameter generations in Redis. The latest
// generation lives under a fixed key; each generation is also kept under its
// own key for audit. Replay ids use SETNX with a TTL.
type RedisParamStore struct {
	cache cache.Service
}

var _ domrepo.ParamStore = (*RedisParamStore)(nil)

func NewRedisParamStore(c cache.Service) *RedisParamStore {
	return &RedisParamStore{cache: c}
}

func (r *RedisParamStore) SaveGeneration(ctx context.Context, p *models.Parameters) error {
	genKey := fmt.Sprintf(paramGenKeyFmt, p.Generation)
	if err := r.cache.Set(ctx, genKey, p, paramGenHistory); err != nil {
		return fmt.Errorf("save generation %d: %w", p.Generation, err)
	}
	if err := r.cache.Set(ctx, paramLatestKey, p, 0); err != nil {
		return fmt.Errorf("save latest generation: %w", err)
	}
	return nil
}

// LoadLatest returns nil when no generation has ever been saved.
func (r *RedisParamStore) LoadLatest(ctx context.Context) (*models.Parameters, error) {
	var p models.Parameters
	err := r.cache.Get(ctx, paramLatestKey, &p)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load latest generation: %w", err)
	}
	return &p, nil
}

// MarkApplied records a directive id; first is true exactly once per id
// within the TTL window.
func (r *RedisParamStore) MarkApplied(ctx context.Context, directiveID string, ttl time.Duration) (bool, error) {
	first, err := r.cache.TryLock(ctx, fmt.Sprintf(appliedKeyFmt, directiveID), ttl)
	if err != nil {
		return false, fmt.Errorf("mark applied %s: %w", directiveID, err)
	}
	return first, nil
}
