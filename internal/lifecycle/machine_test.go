package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/example/medride/internal/models"
	"github.com/example/medride/internal/storage"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestMachine() (*Machine, *storage.MemoryStore) {
	store := storage.NewMemoryStore()
	m := NewMachine(store, storage.NewRideLocks(), nil)
	m.Now = func() time.Time { return testNow }
	return m, store
}

func seedRide(t *testing.T, store *storage.MemoryStore, status models.RideStatus, mutate func(*models.Ride)) *models.Ride {
	t.Helper()
	r := &models.Ride{
		Reference:     "ref-1",
		RiderID:       1,
		Pickup:        models.Coord{Lat: 40.7, Lng: -74.0},
		Dropoff:       models.Coord{Lat: 40.8, Lng: -73.9},
		ScheduledTime: testNow.Add(48 * time.Hour),
		VehicleType:   models.VehicleStandard,
		PickupStairs:  models.StairsNone,
		DropoffStairs: models.StairsNone,
		RiderBid:      60,
		Status:        status,
		CreatedAt:     testNow,
		UpdatedAt:     testNow,
	}
	if mutate != nil {
		mutate(r)
	}
	if err := store.CreateRide(r); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestDriverProgressIsStrictlySequential(t *testing.T) {
	m, store := newTestMachine()
	r := seedRide(t, store, models.StatusPaid, nil)

	// skipping arrived is rejected
	if _, err := m.Transition(r.ID, models.StatusInProgress, "driver"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	got, _ := store.GetRide(r.ID)
	if got.Status != models.StatusPaid {
		t.Fatalf("status mutated to %s on rejected transition", got.Status)
	}

	for _, next := range []models.RideStatus{models.StatusEnRoute, models.StatusArrived, models.StatusInProgress, models.StatusCompleted} {
		updated, err := m.Transition(r.ID, next, "driver")
		if err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
		if updated.Status != next {
			t.Fatalf("status = %s, want %s", updated.Status, next)
		}
	}

	// completed is terminal
	if _, err := m.Transition(r.ID, models.StatusCancelled, "admin"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition from completed", err)
	}
}

func TestReapplyingCurrentStatusIsNoOp(t *testing.T) {
	m, store := newTestMachine()
	r := seedRide(t, store, models.StatusEnRoute, nil)

	updated, err := m.Transition(r.ID, models.StatusEnRoute, "driver")
	if err != nil {
		t.Fatalf("idempotent re-apply errored: %v", err)
	}
	if updated.Status != models.StatusEnRoute {
		t.Fatalf("status = %s, want en_route", updated.Status)
	}
}

func TestTransitionEdges(t *testing.T) {
	cases := []struct {
		from, to models.RideStatus
		allowed  bool
	}{
		{models.StatusRequested, models.StatusBidding, true},
		{models.StatusRequested, models.StatusScheduled, true},
		{models.StatusRequested, models.StatusEditPending, true},
		{models.StatusBidding, models.StatusScheduled, true},
		{models.StatusEditPending, models.StatusBidding, true},
		{models.StatusScheduled, models.StatusPaymentPending, true},
		{models.StatusPaymentPending, models.StatusPaid, true},
		{models.StatusEnRoute, models.StatusCancelled, true},

		{models.StatusRequested, models.StatusPaid, false},
		{models.StatusBidding, models.StatusEnRoute, false},
		{models.StatusScheduled, models.StatusPaid, false},
		{models.StatusArrived, models.StatusCancelled, false},
		{models.StatusInProgress, models.StatusCancelled, false},
		{models.StatusCancelled, models.StatusRequested, false},
		{models.StatusCompleted, models.StatusInProgress, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.allowed {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.allowed)
		}
	}
}

func TestCancellationFeeTiers(t *testing.T) {
	cases := []struct {
		name    string
		lead    time.Duration
		status  models.RideStatus
		final   float64
		urgent  bool
		wantFee float64
	}{
		{"well ahead", 48 * time.Hour, models.StatusScheduled, 200, false, 0},
		{"exactly 24h falls into half tier", 24 * time.Hour, models.StatusScheduled, 200, false, 100},
		{"three hours before", 3 * time.Hour, models.StatusScheduled, 200, false, 100},
		{"exactly 2h falls into full tier", 2 * time.Hour, models.StatusPaid, 200, false, 200},
		{"last minute", 30 * time.Minute, models.StatusEnRoute, 200, false, 200},
		{"urgent fee stacks", 3 * time.Hour, models.StatusScheduled, 200, true, 125},
		{"no fee before a driver is bound", time.Hour, models.StatusBidding, 0, false, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := &models.Ride{
				Status:        c.status,
				ScheduledTime: testNow.Add(c.lead),
				FinalPrice:    c.final,
				RiderBid:      50,
			}
			if c.urgent {
				r.IsUrgent = true
				r.UrgentCancellationFee = UrgentFlatFee
			}
			if got := CancellationFee(r, testNow); got != c.wantFee {
				t.Fatalf("fee = %v, want %v", got, c.wantFee)
			}
		})
	}
}

func TestCancellationFeeFallsBackToRiderBid(t *testing.T) {
	r := &models.Ride{
		Status:        models.StatusScheduled,
		ScheduledTime: testNow.Add(3 * time.Hour),
		RiderBid:      80,
	}
	if got := CancellationFee(r, testNow); got != 40 {
		t.Fatalf("fee = %v, want 40 (50%% of rider bid)", got)
	}
}

func TestCancelRecordsReasonAndFee(t *testing.T) {
	m, store := newTestMachine()
	r := seedRide(t, store, models.StatusScheduled, func(r *models.Ride) {
		r.FinalPrice = 200
		r.ScheduledTime = testNow.Add(3 * time.Hour)
	})

	updated, err := m.Cancel(r.ID, "plans changed")
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != models.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", updated.Status)
	}
	if updated.CancellationFee != 100 {
		t.Fatalf("fee = %v, want 100", updated.CancellationFee)
	}
	if updated.CancellationReason != "plans changed" {
		t.Fatalf("reason = %q", updated.CancellationReason)
	}

	// cancelling again is a no-op, and the original fee survives
	again, err := m.Cancel(r.ID, "duplicate delivery")
	if err != nil {
		t.Fatal(err)
	}
	if again.CancellationFee != 100 || again.CancellationReason != "plans changed" {
		t.Fatalf("duplicate cancel mutated ride: fee=%v reason=%q", again.CancellationFee, again.CancellationReason)
	}
}

func TestCancelRejectedMidTrip(t *testing.T) {
	m, store := newTestMachine()
	r := seedRide(t, store, models.StatusInProgress, nil)
	if _, err := m.Cancel(r.ID, "too late"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestFlagUrgency(t *testing.T) {
	m, _ := newTestMachine()

	soon := &models.Ride{ScheduledTime: testNow.Add(6 * time.Hour)}
	m.FlagUrgency(soon)
	if !soon.IsUrgent {
		t.Fatal("ride within 24h should be urgent")
	}
	if soon.UrgentCancellationFee != UrgentFlatFee {
		t.Fatalf("urgent fee = %v, want %v", soon.UrgentCancellationFee, UrgentFlatFee)
	}
	if !soon.ExpiresAt.Equal(testNow.Add(UrgentWindow)) {
		t.Fatalf("expires_at = %v, want %v", soon.ExpiresAt, testNow.Add(UrgentWindow))
	}

	later := &models.Ride{ScheduledTime: testNow.Add(72 * time.Hour)}
	m.FlagUrgency(later)
	if later.IsUrgent || !later.ExpiresAt.IsZero() {
		t.Fatal("ride beyond 24h should not be urgent")
	}
}

func TestExpiredPredicate(t *testing.T) {
	deadline := testNow.Add(-time.Minute)
	open := &models.Ride{Status: models.StatusBidding, ExpiresAt: deadline}
	if !Expired(open, testNow) {
		t.Fatal("open ride past deadline should be expired")
	}
	scheduled := &models.Ride{Status: models.StatusScheduled, ExpiresAt: deadline}
	if Expired(scheduled, testNow) {
		t.Fatal("matched ride never expires")
	}
	noDeadline := &models.Ride{Status: models.StatusRequested}
	if Expired(noDeadline, testNow) {
		t.Fatal("ride without a deadline never expires")
	}
}

func TestExpireOverdue(t *testing.T) {
	m, store := newTestMachine()

	overdue := seedRide(t, store, models.StatusBidding, func(r *models.Ride) {
		r.IsUrgent = true
		r.ExpiresAt = testNow.Add(-time.Minute)
	})
	fresh := seedRide(t, store, models.StatusBidding, func(r *models.Ride) {
		r.IsUrgent = true
		r.ExpiresAt = testNow.Add(time.Hour)
	})
	matched := seedRide(t, store, models.StatusScheduled, func(r *models.Ride) {
		r.ExpiresAt = testNow.Add(-time.Minute)
	})

	n, err := m.ExpireOverdue(testNow)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expired = %d, want 1", n)
	}

	got, _ := store.GetRide(overdue.ID)
	if got.Status != models.StatusCancelled {
		t.Fatalf("overdue ride status = %s, want cancelled", got.Status)
	}
	if got.CancellationReason != "expired" {
		t.Fatalf("reason = %q", got.CancellationReason)
	}
	for _, id := range []int64{fresh.ID, matched.ID} {
		r, _ := store.GetRide(id)
		if r.Status == models.StatusCancelled {
			t.Fatalf("ride %d cancelled but was not overdue", id)
		}
	}

	// the next pass finds nothing left to do
	n, err = m.ExpireOverdue(testNow)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("second pass expired = %d, want 0", n)
	}
}

func TestRecordPaymentOutcome(t *testing.T) {
	m, store := newTestMachine()
	r := seedRide(t, store, models.StatusPaymentPending, nil)

	updated, err := m.RecordPaymentOutcome(r.ID, false, "card declined")
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != models.StatusPaymentPending {
		t.Fatalf("status = %s, want payment_pending retained for retry", updated.Status)
	}
	if updated.StatusNote == "" {
		t.Fatal("failure reason not recorded")
	}

	updated, err = m.RecordPaymentOutcome(r.ID, true, "")
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != models.StatusPaid {
		t.Fatalf("status = %s, want paid", updated.Status)
	}
}
