package redis

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/outreach-engine/internal/domain"
	"github.com/kursadbilgin/outreach-engine/internal/repository"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const suppressionSetKey = "suppressions"

var _ repository.SuppressionRepository = (*SuppressionCache)(nil)

// SuppressionCache is a read-through Redis set in front of the suppression
// store. Only positive results are cached; entries never expire.
type SuppressionCache struct {
	client *goredis.Client
	store  repository.SuppressionRepository
	key    string
	logger *zap.Logger
}

func NewSuppressionCache(
	client *goredis.Client,
	store repository.SuppressionRepository,
	logger *zap.Logger,
) (*SuppressionCache, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if store == nil {
		return nil, fmt.Errorf("suppression store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SuppressionCache{
		client: client,
		store:  store,
		key:    suppressionSetKey,
		logger: logger,
	}, nil
}

func (c *SuppressionCache) IsSuppressed(ctx context.Context, address string) (bool, error) {
	normalized := domain.NormalizeAddress(address)
	if normalized == "" {
		return false, nil
	}

	cached, err := c.client.SIsMember(ctx, c.key, normalized).Result()
	if err == nil && cached {
		return true, nil
	}
	if err != nil {
		c.logger.Warn("suppression cache read failed, falling back to store", zap.Error(err))
	}

	suppressed, err := c.store.IsSuppressed(ctx, normalized)
	if err != nil {
		return false, err
	}
	if suppressed {
		c.remember(ctx, normalized)
	}
	return suppressed, nil
}

func (c *SuppressionCache) Suppress(ctx context.Context, address string, reason string) error {
	if err := c.store.Suppress(ctx, address, reason); err != nil {
		return err
	}
	c.remember(ctx, domain.NormalizeAddress(address))
	return nil
}

func (c *SuppressionCache) remember(ctx context.Context, address string) {
	if err := c.client.SAdd(ctx, c.key, address).Err(); err != nil {
		c.logger.Warn("suppression cache write failed", zap.Error(err))
	}
}
