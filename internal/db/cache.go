package rewards

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	config "github.com/glkeru/loyalty/rewards/internal/config"
	model "github.com/glkeru/loyalty/rewards/internal/models"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// Кэш балансов в Redis
type CacheService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCacheService(ctx context.Context, cfg config.Cache) (serv *CacheService, err error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("env POINTS_CACHE_URL is not set")
	}
	db := redis.NewClient(&redis.Options{
		Addr:        cfg.URL,
		Password:    cfg.Password,
		Username:    cfg.User,
		DB:          0,
		MaxRetries:  5,
		DialTimeout: 10 * time.Second,
	})
	err = db.Ping(ctx).Err()
	if err != nil {
		return nil, err
	}
	return NewCacheServiceWithClient(db, cfg.TTL), nil
}

func NewCacheServiceWithClient(client *redis.Client, ttl time.Duration) *CacheService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CacheService{client, ttl}
}

func balanceKey(brandID string, userID string) string {
	return "rewards:balance:" + brandID + ":" + userID
}

// значение: "баланс|оборот"
func encodeBalance(summary model.BalanceSummary) string {
	return summary.Net().String() + "|" + summary.Volume().String()
}

func decodeBalance(val string) (balance decimal.Decimal, volume decimal.Decimal, err error) {
	net, vol, ok := strings.Cut(val, "|")
	if !ok {
		return decimal.Zero, decimal.Zero, fmt.Errorf("cache value %q is not correct", val)
	}
	if balance, err = decimal.NewFromString(net); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if volume, err = decimal.NewFromString(vol); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return balance, volume, nil
}

func (c *CacheService) GetBalance(ctx context.Context, brandID string, userID string) (decimal.Decimal, error) {
	val, err := c.client.Get(ctx, balanceKey(brandID, userID)).Result()
	if err == redis.Nil {
		return decimal.Zero, model.ErrCacheMiss
	} else if err != nil {
		return decimal.Zero, err
	}
	balance, _, err := decodeBalance(val)
	return balance, err
}

const cacheSetRetries = 5

// Запись после коммита или чтения из базы. Оборот счета только растет,
// поэтому значение с меньшим оборотом устарело и не записывается
func (c *CacheService) SetBalance(ctx context.Context, brandID string, userID string, summary model.BalanceSummary) error {
	key := balanceKey(brandID, userID)
	volume := summary.Volume()
	set := func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		if err == nil {
			if _, cached, derr := decodeBalance(val); derr == nil && cached.GreaterThan(volume) {
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encodeBalance(summary), c.ttl)
			return nil
		})
		return err
	}
	for i := 0; i < cacheSetRetries; i++ {
		err := c.client.Watch(ctx, set, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return redis.TxFailedErr
}

func (c *CacheService) InvalidateBalance(ctx context.Context, brandID string, userID string) error {
	return c.client.Del(ctx, balanceKey(brandID, userID)).Err()
}

func (c *CacheService) Close() error {
	return c.client.Close()
}
