package store

import (
	"context"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/stationcargo/cargostow/internal/apperr"
	"github.com/stationcargo/cargostow/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RedisStore is the Redis-backed implementation of Store (spec §4.8).
// Per-container write ordering is enforced by an in-process keyed mutex
// (spec §5: single-process engine, serialized mutations). Writes go through
// a Redis MULTI pipeline inside a WATCH/backoff wrapper, but every caller
// passes no watch keys, so no key is watched and writes from a second
// process sharing the keyspace are not detected.
type RedisStore struct {
	rdb   *redis.Client
	log   *zap.Logger
	locks *keyedMutex
}

// NewRedisStore constructs a Redis-backed store.
func NewRedisStore(addr string, db int, log *zap.Logger) *RedisStore {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("store")
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
	})
	return &RedisStore{rdb: rdb, log: log, locks: newKeyedMutex()}
}

func (s *RedisStore) Begin(ctx context.Context) (Tx, error) {
	return &redisTx{store: s}, nil
}

// redisTx tracks compensating actions for Rollback. Each write is already
// durable in Redis by the time it returns (no multi-statement Redis
// transaction spans repo calls), so Commit is a no-op and Rollback replays
// recorded compensations best-effort — mirroring the teacher's own
// per-call TxPipeline writes (internal/repo/channel.go) rather than
// inventing cross-call Redis transactions Redis itself doesn't offer.
type redisTx struct {
	store *RedisStore
	undo  []func(context.Context) error
}

func (tx *redisTx) recordUndo(fn func(context.Context) error) { tx.undo = append(tx.undo, fn) }

func (tx *redisTx) Containers() ContainerRepo { return &containerRepo{tx: tx} }
func (tx *redisTx) Items() ItemRepo           { return &itemRepo{tx: tx} }
func (tx *redisTx) Logs() LogRepo             { return &logRepo{tx: tx} }

func (tx *redisTx) Commit(ctx context.Context) error {
	tx.undo = nil
	return nil
}

func (tx *redisTx) Rollback(ctx context.Context) error {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		if err := tx.undo[i](ctx); err != nil {
			tx.store.log.Warn("rollback compensation failed", zap.Error(err))
		}
	}
	tx.undo = nil
	return nil
}

func wrapInternal(err error) error {
	if err == nil {
		return nil
	}
	return apperr.Wrap(apperr.Internal, errors.Wrap(err, "store"))
}

// runSerialized acquires the in-process container locks, then runs fn
// inside a Redis WATCH/MULTI transaction on watchKeys with bounded backoff,
// surfacing apperr.Conflict if a watched key changed on every attempt
// (spec §7 Conflict). With no watch keys the transaction cannot fail this
// way, and the retry and Conflict path is not taken.
func (s *RedisStore) runSerialized(ctx context.Context, containerIDs []string, watchKeys []string, fn func(pipe redis.Pipeliner) error) error {
	unlock := s.locks.LockAll(containerIDs...)
	defer unlock()

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5)
	op := func() error {
		err := s.rdb.Watch(ctx, func(rtx *redis.Tx) error {
			_, pErr := rtx.TxPipelined(ctx, fn)
			return pErr
		}, watchKeys...)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			return err // retryable
		}
		return backoff.Permanent(err)
	}

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return apperr.Newf(apperr.Conflict, "container write could not be serialized after retries")
		}
		return wrapInternal(err)
	}
	return nil
}

// --- containers ---

type containerRepo struct{ tx *redisTx }

func (r *containerRepo) Get(ctx context.Context, id string) (*domain.Container, error) {
	raw, err := r.tx.store.rdb.Get(ctx, containerKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperr.Newf(apperr.NotFound, "container %q not found", id)
		}
		return nil, wrapInternal(err)
	}
	var c domain.Container
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, wrapInternal(err)
	}
	return &c, nil
}

func (r *containerRepo) List(ctx context.Context) ([]*domain.Container, error) {
	ids, err := r.tx.store.rdb.SMembers(ctx, keyContainerSet).Result()
	if err != nil {
		return nil, wrapInternal(err)
	}
	out := make([]*domain.Container, 0, len(ids))
	for _, id := range ids {
		c, err := r.Get(ctx, id)
		if err != nil {
			if apperr.Is(err, apperr.NotFound) {
				continue // index drift; skip
			}
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *containerRepo) Create(ctx context.Context, c *domain.Container) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return wrapInternal(err)
	}
	err = r.tx.store.runSerialized(ctx, []string{c.ID}, nil, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, containerKey(c.ID), payload, 0)
		pipe.SAdd(ctx, keyContainerSet, c.ID)
		return nil
	})
	if err != nil {
		return err
	}
	id := c.ID
	r.tx.recordUndo(func(ctx context.Context) error {
		return r.tx.store.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, containerKey(id))
			pipe.SRem(ctx, keyContainerSet, id)
			return nil
		}).Err()
	})
	return nil
}

func (r *containerRepo) Delete(ctx context.Context, id string) error {
	items, err := (&itemRepo{tx: r.tx}).ListByContainer(ctx, id)
	if err != nil {
		return err
	}
	if len(items) > 0 {
		return apperr.Newf(apperr.PreconditionFailed, "container %q still holds %d item(s)", id, len(items))
	}
	prev, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	err = r.tx.store.runSerialized(ctx, []string{id}, nil, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, containerKey(id))
		pipe.SRem(ctx, keyContainerSet, id)
		return nil
	})
	if err != nil {
		return err
	}
	r.tx.recordUndo(func(ctx context.Context) error {
		payload, _ := json.Marshal(prev)
		return r.tx.store.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, containerKey(id), payload, 0)
			pipe.SAdd(ctx, keyContainerSet, id)
			return nil
		}).Err()
	})
	return nil
}

// --- items ---

type itemRepo struct{ tx *redisTx }

func (r *itemRepo) Get(ctx context.Context, id string) (*domain.Item, error) {
	raw, err := r.tx.store.rdb.Get(ctx, itemKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperr.Newf(apperr.NotFound, "item %q not found", id)
		}
		return nil, wrapInternal(err)
	}
	var it domain.Item
	if err := json.Unmarshal(raw, &it); err != nil {
		return nil, wrapInternal(err)
	}
	return &it, nil
}

func (r *itemRepo) GetByName(ctx context.Context, name string) ([]*domain.Item, error) {
	ids, err := r.tx.store.rdb.SMembers(ctx, itemByNameKey(name)).Result()
	if err != nil {
		return nil, wrapInternal(err)
	}
	return r.getMany(ctx, ids)
}

func (r *itemRepo) List(ctx context.Context) ([]*domain.Item, error) {
	ids, err := r.tx.store.rdb.SMembers(ctx, keyItemSet).Result()
	if err != nil {
		return nil, wrapInternal(err)
	}
	return r.getMany(ctx, ids)
}

func (r *itemRepo) ListByContainer(ctx context.Context, containerID string) ([]*domain.Item, error) {
	ids, err := r.tx.store.rdb.SMembers(ctx, itemByCtnrKey(containerID)).Result()
	if err != nil {
		return nil, wrapInternal(err)
	}
	return r.getMany(ctx, ids)
}

func (r *itemRepo) ListWaste(ctx context.Context) ([]*domain.Item, error) {
	ids, err := r.tx.store.rdb.SMembers(ctx, keyItemWasteSet).Result()
	if err != nil {
		return nil, wrapInternal(err)
	}
	return r.getMany(ctx, ids)
}

func (r *itemRepo) ListExpiring(ctx context.Context, before time.Time) ([]*domain.Item, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Item, 0)
	for _, it := range all {
		if it.ExpiryAt != nil && !it.ExpiryAt.After(before) {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r *itemRepo) getMany(ctx context.Context, ids []string) ([]*domain.Item, error) {
	out := make([]*domain.Item, 0, len(ids))
	for _, id := range ids {
		it, err := r.Get(ctx, id)
		if err != nil {
			if apperr.Is(err, apperr.NotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

func (r *itemRepo) Create(ctx context.Context, it *domain.Item) error {
	if it.ID == "" {
		id, err := r.tx.store.rdb.Incr(ctx, "stow:items:seq").Result()
		if err != nil {
			return wrapInternal(err)
		}
		it.ID = "item-" + strconv.FormatInt(id, 10)
	}
	payload, err := json.Marshal(it)
	if err != nil {
		return wrapInternal(err)
	}
	containerIDs := []string{}
	if it.Placement != nil {
		containerIDs = append(containerIDs, it.Placement.ContainerID)
	}
	err = r.tx.store.runSerialized(ctx, containerIDs, nil, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, itemKey(it.ID), payload, 0)
		pipe.SAdd(ctx, keyItemSet, it.ID)
		if it.Name != "" {
			pipe.SAdd(ctx, itemByNameKey(it.Name), it.ID)
		}
		if it.Placement != nil {
			pipe.SAdd(ctx, itemByCtnrKey(it.Placement.ContainerID), it.ID)
		}
		if it.Waste {
			pipe.SAdd(ctx, keyItemWasteSet, it.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	id := it.ID
	r.tx.recordUndo(func(ctx context.Context) error {
		return r.tx.store.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, itemKey(id))
			pipe.SRem(ctx, keyItemSet, id)
			return nil
		}).Err()
	})
	return nil
}

func (r *itemRepo) Update(ctx context.Context, it *domain.Item) error {
	prev, err := r.Get(ctx, it.ID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(it)
	if err != nil {
		return wrapInternal(err)
	}

	var lockIDs []string
	if prev.Placement != nil {
		lockIDs = append(lockIDs, prev.Placement.ContainerID)
	}
	if it.Placement != nil {
		lockIDs = append(lockIDs, it.Placement.ContainerID)
	}

	err = r.tx.store.runSerialized(ctx, lockIDs, nil, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, itemKey(it.ID), payload, 0)

		if prev.Name != it.Name {
			if prev.Name != "" {
				pipe.SRem(ctx, itemByNameKey(prev.Name), it.ID)
			}
			if it.Name != "" {
				pipe.SAdd(ctx, itemByNameKey(it.Name), it.ID)
			}
		}

		prevCid := ""
		if prev.Placement != nil {
			prevCid = prev.Placement.ContainerID
		}
		newCid := ""
		if it.Placement != nil {
			newCid = it.Placement.ContainerID
		}
		if prevCid != newCid {
			if prevCid != "" {
				pipe.SRem(ctx, itemByCtnrKey(prevCid), it.ID)
			}
			if newCid != "" {
				pipe.SAdd(ctx, itemByCtnrKey(newCid), it.ID)
			}
		}

		if prev.Waste != it.Waste {
			if it.Waste {
				pipe.SAdd(ctx, keyItemWasteSet, it.ID)
			} else {
				pipe.SRem(ctx, keyItemWasteSet, it.ID)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	prevCopy := prev
	r.tx.recordUndo(func(ctx context.Context) error {
		restorePayload, _ := json.Marshal(prevCopy)
		return r.tx.store.rdb.Set(ctx, itemKey(prevCopy.ID), restorePayload, 0).Err()
	})
	return nil
}

func (r *itemRepo) Delete(ctx context.Context, id string) error {
	prev, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	var lockIDs []string
	if prev.Placement != nil {
		lockIDs = append(lockIDs, prev.Placement.ContainerID)
	}
	err = r.tx.store.runSerialized(ctx, lockIDs, nil, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, itemKey(id))
		pipe.SRem(ctx, keyItemSet, id)
		if prev.Name != "" {
			pipe.SRem(ctx, itemByNameKey(prev.Name), id)
		}
		if prev.Placement != nil {
			pipe.SRem(ctx, itemByCtnrKey(prev.Placement.ContainerID), id)
		}
		pipe.SRem(ctx, keyItemWasteSet, id)
		return nil
	})
	if err != nil {
		return err
	}
	r.tx.recordUndo(func(ctx context.Context) error {
		payload, _ := json.Marshal(prev)
		return r.tx.store.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, itemKey(id), payload, 0)
			pipe.SAdd(ctx, keyItemSet, id)
			return nil
		}).Err()
	})
	return nil
}

// --- logs ---

type logRepo struct{ tx *redisTx }

func (r *logRepo) Append(ctx context.Context, rec *domain.LogRecord) error {
	seq, err := r.tx.store.rdb.Incr(ctx, keyLogSeq).Result()
	if err != nil {
		return wrapInternal(err)
	}
	if rec.ID == "" {
		rec.ID = logID(seq)
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return wrapInternal(err)
	}
	payload = encodeLogPayload(payload)
	err = r.tx.store.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, logKey(rec.ID), payload, 0)
		pipe.ZAdd(ctx, keyLogZSet, redis.Z{Score: float64(rec.Timestamp.UnixNano()), Member: rec.ID})
		return nil
	}).Err()
	if err != nil {
		return wrapInternal(err)
	}
	id := rec.ID
	r.tx.recordUndo(func(ctx context.Context) error {
		return r.tx.store.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, logKey(id))
			pipe.ZRem(ctx, keyLogZSet, id)
			return nil
		}).Err()
	})
	return nil
}

func (r *logRepo) Query(ctx context.Context, start, end time.Time, filter LogFilter) ([]*domain.LogRecord, error) {
	ids, err := r.tx.store.rdb.ZRangeByScore(ctx, keyLogZSet, &redis.ZRangeBy{
		Min: strconv.FormatInt(start.UnixNano(), 10),
		Max: strconv.FormatInt(end.UnixNano(), 10),
	}).Result()
	if err != nil {
		return nil, wrapInternal(err)
	}
	out := make([]*domain.LogRecord, 0, len(ids))
	for _, id := range ids {
		raw, err := r.tx.store.rdb.Get(ctx, logKey(id)).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, wrapInternal(err)
		}
		raw, err = decodeLogPayload(raw)
		if err != nil {
			return nil, wrapInternal(err)
		}
		var rec domain.LogRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, wrapInternal(err)
		}
		if filter.ItemID != "" && rec.ItemID != filter.ItemID {
			continue
		}
		if filter.ContainerID != "" && rec.FromCtnr != filter.ContainerID && rec.ToCtnr != filter.ContainerID {
			continue
		}
		if filter.Action != "" && rec.Action != filter.Action {
			continue
		}
		out = append(out, &rec)
	}
	return out, nil
}

func (r *logRepo) Latest(ctx context.Context) (time.Time, bool, error) {
	ids, err := r.tx.store.rdb.ZRevRangeWithScores(ctx, keyLogZSet, 0, 0).Result()
	if err != nil {
		return time.Time{}, false, wrapInternal(err)
	}
	if len(ids) == 0 {
		return time.Time{}, false, nil
	}
	return time.Unix(0, int64(ids[0].Score)), true, nil
}
