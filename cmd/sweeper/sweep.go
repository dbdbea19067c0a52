package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/medride/internal/models"
)

// ExpiryIndex is the small subset of operations the sweeper needs, kept as
// an interface so tests can run without Redis.
type ExpiryIndex interface {
	Add(ctx context.Context, rideID int64, expiresAt time.Time) error
	Remove(ctx context.Context, rideID int64) error
	Due(ctx context.Context, now time.Time) ([]int64, error)
}

// redisIndex keeps ride deadlines in a sorted set scored by expiry time.
type redisIndex struct {
	c   *redis.Client
	key string
}

func (r *redisIndex) Add(ctx context.Context, rideID int64, expiresAt time.Time) error {
	return r.c.ZAdd(ctx, r.key, redis.Z{Score: float64(expiresAt.Unix()), Member: strconv.FormatInt(rideID, 10)}).Err()
}

func (r *redisIndex) Remove(ctx context.Context, rideID int64) error {
	return r.c.ZRem(ctx, r.key, strconv.FormatInt(rideID, 10)).Err()
}

func (r *redisIndex) Due(ctx context.Context, now time.Time) ([]int64, error) {
	members, err := r.c.ZRangeByScore(ctx, r.key, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(members))
	for _, m := range members {
		if id, err := strconv.ParseInt(m, 10, 64); err == nil {
			out = append(out, id)
		}
	}
	return out, nil
}

// Canceller cancels a ride through the public API so the lifecycle machine
// stays the single owner of the transition.
type Canceller interface {
	CancelExpired(ctx context.Context, rideID int64) error
}

type apiCanceller struct {
	base   string
	client *http.Client
}

func (a *apiCanceller) CancelExpired(ctx context.Context, rideID int64) error {
	url := fmt.Sprintf("%s/api/v1/rides/%d", a.base, rideID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, cancelBody())
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	// 409 means the ride progressed past cancellation between the index
	// read and this call; treat it as settled and drop the entry.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusConflict {
		return fmt.Errorf("cancel ride %d: status %d", rideID, resp.StatusCode)
	}
	return nil
}

func cancelBody() io.Reader { return strings.NewReader(`{"reason":"expired"}`) }

// applyEvent folds one ride event into the expiry index. Only open urgent
// rides carry deadlines; any event that closes bidding clears the entry.
func applyEvent(ctx context.Context, idx ExpiryIndex, ev models.RideEvent) error {
	switch ev.Kind {
	case "created":
		if ev.IsUrgent && !ev.ExpiresAt.IsZero() {
			return idx.Add(ctx, ev.RideID, ev.ExpiresAt)
		}
	case "bid_accepted":
		return idx.Remove(ctx, ev.RideID)
	case "transition":
		if !ev.To.OpenForBidding() {
			return idx.Remove(ctx, ev.RideID)
		}
		// an urgent ride back in an open state (edit flow) needs its
		// deadline restored; Add is an upsert so repeats are harmless
		if ev.IsUrgent && !ev.ExpiresAt.IsZero() {
			return idx.Add(ctx, ev.RideID, ev.ExpiresAt)
		}
	}
	return nil
}

// applyEventWithRetry retries transient index failures with backoff.
func applyEventWithRetry(ctx context.Context, idx ExpiryIndex, ev models.RideEvent, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = applyEvent(ctx, idx, ev); err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return err
}

// sweep cancels every due ride and clears its index entry. A failed cancel
// keeps the entry so the next tick retries it.
func sweep(ctx context.Context, idx ExpiryIndex, c Canceller, now time.Time) (int, error) {
	due, err := idx.Due(ctx, now)
	if err != nil {
		return 0, err
	}
	cancelled := 0
	for _, id := range due {
		if err := c.CancelExpired(ctx, id); err != nil {
			return cancelled, err
		}
		if err := idx.Remove(ctx, id); err != nil {
			return cancelled, err
		}
		cancelled++
	}
	return cancelled, nil
}
