package redisx

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-order-lifecycle/internal/reclaim"
)

// ReclaimJournal keeps pending reclamations in a sorted set scored by due time.
type ReclaimJournal struct {
	rdb redis.Cmdable
	key string
}

func NewReclaimJournal(rdb redis.Cmdable) *ReclaimJournal {
	return &ReclaimJournal{rdb: rdb, key: KeyReclaimJournal}
}

func (j *ReclaimJournal) Add(ctx context.Context, e reclaim.Entry) error {
	return j.rdb.ZAdd(ctx, j.key, redis.Z{Score: float64(e.DueAt.UnixMilli()), Member: e.OrderID}).Err()
}

func (j *ReclaimJournal) Remove(ctx context.Context, orderID string) error {
	return j.rdb.ZRem(ctx, j.key, orderID).Err()
}

func (j *ReclaimJournal) Load(ctx context.Context) ([]reclaim.Entry, error) {
	zs, err := j.rdb.ZRangeWithScores(ctx, j.key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]reclaim.Entry, 0, len(zs))
	for _, z := range zs {
		id, ok := z.Member.(string)
		if !ok {
			continue
		}
		out = append(out, reclaim.Entry{OrderID: id, DueAt: time.UnixMilli(int64(z.Score)).UTC()})
	}
	return out, nil
}
