package mapping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/pkg/platform/sentinel"
)

// KV is the slice of a key-value cache the mapping cache needs. Get returns
// sentinel.ErrNotFound on a miss.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	DelPattern(ctx context.Context, pattern string) error
}

// CachedStore decorates a Store with a read-through cache on the two point
// lookups. Intended for the high-volume kinds where migration reconciliation
// hammers GetByNomisID. Cache failures are logged and treated as misses;
// the backing store stays the source of truth. A lookup racing a delete can
// re-fill the cache with the just-deleted record; such a stale entry lasts at
// most one TTL, which the consumers of this cache tolerate.
type CachedStore[D comparable, N comparable] struct {
	Store[D, N]
	kind   string
	kv     KV
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedStore[D comparable, N comparable](
	kind string,
	store Store[D, N],
	kv KV,
	ttl time.Duration,
	logger *slog.Logger,
) *CachedStore[D, N] {
	return &CachedStore[D, N]{Store: store, kind: kind, kv: kv, ttl: ttl, logger: logger}
}

func (c *CachedStore[D, N]) GetByDPSID(ctx context.Context, id D) (Record[D, N], error) {
	if rec, ok := c.lookup(ctx, c.dpsKey(id)); ok {
		return rec, nil
	}
	rec, err := c.Store.GetByDPSID(ctx, id)
	if err == nil {
		c.fill(ctx, rec)
	}
	return rec, err
}

func (c *CachedStore[D, N]) GetByNomisID(ctx context.Context, id N) (Record[D, N], error) {
	if rec, ok := c.lookup(ctx, c.nomisKey(id)); ok {
		return rec, nil
	}
	rec, err := c.Store.GetByNomisID(ctx, id)
	if err == nil {
		c.fill(ctx, rec)
	}
	return rec, err
}

func (c *CachedStore[D, N]) DeleteByDPSID(ctx context.Context, id D) error {
	// Fetch first so the NOMIS-side cache entry can be invalidated too.
	if rec, err := c.Store.GetByDPSID(ctx, id); err == nil {
		c.invalidate(ctx, rec)
	}
	return c.Store.DeleteByDPSID(ctx, id)
}

func (c *CachedStore[D, N]) DeleteByNomisID(ctx context.Context, id N) error {
	if rec, err := c.Store.GetByNomisID(ctx, id); err == nil {
		c.invalidate(ctx, rec)
	}
	return c.Store.DeleteByNomisID(ctx, id)
}

func (c *CachedStore[D, N]) DeleteAll(ctx context.Context, onlyMigrated bool) error {
	if err := c.Store.DeleteAll(ctx, onlyMigrated); err != nil {
		return err
	}
	if err := c.kv.DelPattern(ctx, c.prefix()+"*"); err != nil {
		c.warn(ctx, "cache flush failed after bulk delete", err)
	}
	return nil
}

func (c *CachedStore[D, N]) ReassignSubject(ctx context.Context, oldRef, newRef string) ([]Record[D, N], error) {
	updated, err := c.Store.ReassignSubject(ctx, oldRef, newRef)
	for _, rec := range updated {
		c.invalidate(ctx, rec)
	}
	return updated, err
}

func (c *CachedStore[D, N]) ReassignSubjectByGroup(ctx context.Context, groupKey int64, newRef string) ([]Record[D, N], error) {
	updated, err := c.Store.ReassignSubjectByGroup(ctx, groupKey, newRef)
	for _, rec := range updated {
		c.invalidate(ctx, rec)
	}
	return updated, err
}

func (c *CachedStore[D, N]) lookup(ctx context.Context, key string) (Record[D, N], bool) {
	var zero Record[D, N]
	raw, err := c.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			c.warn(ctx, "cache read failed", err)
		}
		return zero, false
	}
	var rec Record[D, N]
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		c.warn(ctx, "cache entry corrupt", err)
		_ = c.kv.Del(ctx, key)
		return zero, false
	}
	return rec, true
}

func (c *CachedStore[D, N]) fill(ctx context.Context, rec Record[D, N]) {
	raw, err := json.Marshal(rec)
	if err != nil {
		c.warn(ctx, "cache encode failed", err)
		return
	}
	for _, key := range []string{c.dpsKey(rec.DPSID), c.nomisKey(rec.NomisID)} {
		if err := c.kv.Set(ctx, key, string(raw), c.ttl); err != nil {
			c.warn(ctx, "cache write failed", err)
			return
		}
	}
}

func (c *CachedStore[D, N]) invalidate(ctx context.Context, rec Record[D, N]) {
	if err := c.kv.Del(ctx, c.dpsKey(rec.DPSID), c.nomisKey(rec.NomisID)); err != nil {
		c.warn(ctx, "cache invalidation failed", err)
	}
}

func (c *CachedStore[D, N]) warn(ctx context.Context, msg string, err error) {
	c.logger.WarnContext(ctx, msg, "kind", c.kind, "error", err)
}

func (c *CachedStore[D, N]) prefix() string {
	return "mapping:" + c.kind + ":"
}

func (c *CachedStore[D, N]) dpsKey(id D) string {
	return fmt.Sprintf("%sdps:%v", c.prefix(), id)
}

func (c *CachedStore[D, N]) nomisKey(id N) string {
	return fmt.Sprintf("%snomis:%v", c.prefix(), id)
}
