package storage

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/medride/internal/models"
)

func TestMemoryStoreRideRoundTrip(t *testing.T) {
	s := NewMemoryStore()

	r := &models.Ride{Reference: "ref-1", RiderID: 1, Status: models.StatusRequested}
	if err := s.CreateRide(r); err != nil {
		t.Fatal(err)
	}
	if r.ID == 0 {
		t.Fatal("create did not assign an id")
	}

	got, err := s.GetRide(r.ID)
	if err != nil {
		t.Fatal(err)
	}
	// reads return copies; mutating one must not leak into the store
	got.Status = models.StatusCancelled
	again, err := s.GetRide(r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if again.Status != models.StatusRequested {
		t.Fatalf("read aliasing: status = %s", again.Status)
	}

	got.Status = models.StatusBidding
	if err := s.UpdateRide(got); err != nil {
		t.Fatal(err)
	}
	again, _ = s.GetRide(r.ID)
	if again.Status != models.StatusBidding {
		t.Fatalf("update not applied: status = %s", again.Status)
	}

	if _, err := s.GetRide(999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := s.UpdateRide(&models.Ride{ID: 999}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreListBidsOrdered(t *testing.T) {
	s := NewMemoryStore()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, offset := range []time.Duration{2 * time.Minute, 0, time.Minute} {
		b := &models.Bid{RideID: 1, DriverID: int64(i + 1), Amount: 50, CreatedAt: base.Add(offset)}
		if err := s.CreateBid(b); err != nil {
			t.Fatal(err)
		}
	}
	// a bid on another ride stays out of the listing
	if err := s.CreateBid(&models.Bid{RideID: 2, DriverID: 9, Amount: 50, CreatedAt: base}); err != nil {
		t.Fatal(err)
	}

	out, err := s.ListBidsByRide(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 {
		t.Fatalf("len = %d, want 3", len(out))
	}
	for i := 1; i < len(out); i++ {
		if out[i].CreatedAt.Before(out[i-1].CreatedAt) {
			t.Fatalf("bids out of order: %v then %v", out[i-1].CreatedAt, out[i].CreatedAt)
		}
	}
}

func TestMemoryStoreListExpiredRides(t *testing.T) {
	s := NewMemoryStore()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mk := func(status models.RideStatus, expires time.Time) int64 {
		r := &models.Ride{Status: status, ExpiresAt: expires}
		if err := s.CreateRide(r); err != nil {
			t.Fatal(err)
		}
		return r.ID
	}

	expiredID := mk(models.StatusBidding, now.Add(-time.Minute))
	mk(models.StatusBidding, now.Add(time.Hour))      // still in the future
	mk(models.StatusScheduled, now.Add(-time.Minute)) // matched rides never expire
	mk(models.StatusRequested, time.Time{})           // no deadline

	out, err := s.ListExpiredRides(now)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].ID != expiredID {
		t.Fatalf("expired = %v, want just ride %d", out, expiredID)
	}
}

func TestRideLocksSerializePerRide(t *testing.T) {
	locks := NewRideLocks()
	var counter int

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(1)
			defer unlock()
			counter++
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Fatalf("counter = %d, want 50", counter)
	}
}
