package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/platewise/backoffice/internal/config"
)

const (
	recipeCostKeyPrefix  = "recipe:cost"
	defaultRecipeCostTTL = time.Minute
)

// RecipeCosting is the cacheable derived view of one recipe's economics.
type RecipeCosting struct {
	Cost   decimal.Decimal `json:"cost"`
	Margin decimal.Decimal `json:"margin"`
}

// RecipeCostCache is an explicit optimization over the always-recompute
// rule: entries are invalidated whenever a price-history entry is written,
// never implicitly.
type RecipeCostCache interface {
	Get(ctx context.Context, recipeID int64) (*RecipeCosting, bool, error)
	Set(ctx context.Context, recipeID int64, costing RecipeCosting) error
	InvalidateAll(ctx context.Context) error
}

type redisRecipeCostCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopRecipeCostCache struct{}

func NewRecipeCostCache(cfg config.CacheConfig) (RecipeCostCache, error) {
	if !cfg.Enabled {
		return &noopRecipeCostCache{}, nil
	}

	client, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	ttl := time.Duration(cfg.RecipeCostTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = defaultRecipeCostTTL
	}

	return &redisRecipeCostCache{client: client, ttl: ttl}, nil
}

func NewNoopRecipeCostCache() RecipeCostCache {
	return &noopRecipeCostCache{}
}

func (c *redisRecipeCostCache) Get(ctx context.Context, recipeID int64) (*RecipeCosting, bool, error) {
	payload, err := c.client.Get(ctx, recipeCostKey(recipeID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var costing RecipeCosting
	if err := json.Unmarshal(payload, &costing); err != nil {
		return nil, false, fmt.Errorf("decode recipe cost cache: %w", err)
	}
	return &costing, true, nil
}

func (c *redisRecipeCostCache) Set(ctx context.Context, recipeID int64, costing RecipeCosting) error {
	payload, err := json.Marshal(costing)
	if err != nil {
		return fmt.Errorf("encode recipe cost cache: %w", err)
	}
	if err := c.client.Set(ctx, recipeCostKey(recipeID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisRecipeCostCache) InvalidateAll(ctx context.Context) error {
	return deleteKeysWithPrefix(ctx, c.client, recipeCostKeyPrefix)
}

func recipeCostKey(recipeID int64) string {
	return fmt.Sprintf("%s:%d", recipeCostKeyPrefix, recipeID)
}

func (*noopRecipeCostCache) Get(context.Context, int64) (*RecipeCosting, bool, error) {
	return nil, false, nil
}

func (*noopRecipeCostCache) Set(context.Context, int64, RecipeCosting) error { return nil }

func (*noopRecipeCostCache) InvalidateAll(context.Context) error { return nil }
