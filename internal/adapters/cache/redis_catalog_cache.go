package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"shipment-risk-service/internal/domain"
	"shipment-risk-service/internal/platform/logging"
	"shipment-risk-service/internal/platform/obs"
	"shipment-risk-service/internal/ports"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "catalog:"

// RedisCatalogCache is a read-through cache in front of a catalog. Redis
// failures are logged and the backing catalog is used directly; only the
// backing catalog decides whether an id exists.
type RedisCatalogCache struct {
	next ports.Catalog
	rdb  redis.UniversalClient
	ttl  time.Duration
	log  logging.Logger
}

func NewRedisCatalogCache(next ports.Catalog, rdb redis.UniversalClient, ttl time.Duration, log logging.Logger) *RedisCatalogCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if log == nil {
		log = logging.Noop()
	}
	return &RedisCatalogCache{next: next, rdb: rdb, ttl: ttl, log: log}
}

func (c *RedisCatalogCache) GetRoute(ctx context.Context, id string) (_ domain.Route, err error) {
	defer obs.Time(ctx, "catalog.cache.GetRoute")(&err)

	var r domain.Route
	if c.lookup(ctx, "route:"+id, &r) {
		return r.Normalized(), nil
	}
	r, err = c.next.GetRoute(ctx, id)
	if err != nil {
		return domain.Route{}, err
	}
	r = r.Normalized()
	c.store(ctx, "route:"+id, r)
	return r, nil
}

func (c *RedisCatalogCache) GetVehicleType(ctx context.Context, id string) (_ domain.VehicleType, err error) {
	defer obs.Time(ctx, "catalog.cache.GetVehicleType")(&err)

	var v domain.VehicleType
	if c.lookup(ctx, "vehicle:"+id, &v) {
		return v, nil
	}
	v, err = c.next.GetVehicleType(ctx, id)
	if err != nil {
		return domain.VehicleType{}, err
	}
	c.store(ctx, "vehicle:"+id, v)
	return v, nil
}

func (c *RedisCatalogCache) GetInsurancePlan(ctx context.Context, tier domain.PlanTier) (_ domain.InsurancePlan, err error) {
	defer obs.Time(ctx, "catalog.cache.GetInsurancePlan")(&err)

	var p domain.InsurancePlan
	key := "plan:" + string(tier)
	if c.lookup(ctx, key, &p) {
		return p, nil
	}
	p, err = c.next.GetInsurancePlan(ctx, tier)
	if err != nil {
		return domain.InsurancePlan{}, err
	}
	c.store(ctx, key, p)
	return p, nil
}

// Listing is not cached; it goes straight to the backing catalog when that
// catalog can enumerate.
func (c *RedisCatalogCache) ListRoutes(ctx context.Context) ([]domain.Route, error) {
	l, err := c.lister()
	if err != nil {
		return nil, err
	}
	return l.ListRoutes(ctx)
}

func (c *RedisCatalogCache) ListVehicleTypes(ctx context.Context) ([]domain.VehicleType, error) {
	l, err := c.lister()
	if err != nil {
		return nil, err
	}
	return l.ListVehicleTypes(ctx)
}

func (c *RedisCatalogCache) ListInsurancePlans(ctx context.Context) ([]domain.InsurancePlan, error) {
	l, err := c.lister()
	if err != nil {
		return nil, err
	}
	return l.ListInsurancePlans(ctx)
}

// Invalidate drops every cached catalog entry.
func (c *RedisCatalogCache) Invalidate(ctx context.Context) error {
	iter := c.rdb.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("invalidate catalog cache: scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate catalog cache: del: %w", err)
	}
	return nil
}

func (c *RedisCatalogCache) lister() (ports.CatalogLister, error) {
	l, ok := c.next.(ports.CatalogLister)
	if !ok {
		return nil, errors.New("catalog cache: backing catalog cannot list entries")
	}
	return l, nil
}

// lookup reports whether key was found and decoded into out.
func (c *RedisCatalogCache) lookup(ctx context.Context, key string, out any) bool {
	raw, err := c.rdb.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		c.log.Warn(ctx, "catalog cache get failed", logging.String("key", key), logging.Err(err))
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.log.Warn(ctx, "catalog cache entry unreadable", logging.String("key", key), logging.Err(err))
		return false
	}
	return true
}

func (c *RedisCatalogCache) store(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.log.Warn(ctx, "catalog cache encode failed", logging.String("key", key), logging.Err(err))
		return
	}
	if err := c.rdb.Set(ctx, keyPrefix+key, raw, c.ttl).Err(); err != nil {
		c.log.Warn(ctx, "catalog cache set failed", logging.String("key", key), logging.Err(err))
	}
}
