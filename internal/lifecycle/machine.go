package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/medride/internal/models"
	"github.com/example/medride/internal/observability"
	"github.com/example/medride/internal/storage"
)

// transitions encodes the ride status graph. Driver progress after payment
// is strictly sequential; cancellation is reachable from every state up to
// and including en_route.
var transitions = map[models.RideStatus][]models.RideStatus{
	models.StatusRequested:      {models.StatusBidding, models.StatusEditPending, models.StatusScheduled, models.StatusCancelled},
	models.StatusBidding:        {models.StatusEditPending, models.StatusScheduled, models.StatusCancelled},
	models.StatusEditPending:    {models.StatusRequested, models.StatusBidding, models.StatusCancelled},
	models.StatusScheduled:      {models.StatusPaymentPending, models.StatusCancelled},
	models.StatusPaymentPending: {models.StatusPaid, models.StatusCancelled},
	models.StatusPaid:           {models.StatusEnRoute, models.StatusCancelled},
	models.StatusEnRoute:        {models.StatusArrived, models.StatusCancelled},
	models.StatusArrived:        {models.StatusInProgress},
	models.StatusInProgress:     {models.StatusCompleted},
	models.StatusCompleted:      {},
	models.StatusCancelled:      {},
}

// CanTransition reports whether the edge from -> to exists in the graph.
func CanTransition(from, to models.RideStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Cancellation fee policy.
const (
	FreeCancelLead = 24 * time.Hour // more than this before pickup: no fee
	LateCancelLead = 2 * time.Hour  // this close or closer: full fee
	HalfFeeRate    = 0.5

	UrgentWindow  = 24 * time.Hour // scheduled within this of booking => urgent
	UrgentFlatFee = 25.0
)

var ErrInvalidTransition = errors.New("invalid status transition")

// Publisher pushes lifecycle events to the event stream. Best-effort; a
// down broker never blocks a transition.
type Publisher interface {
	PublishRideEvent(ev models.RideEvent) error
}

// Machine owns ride status transitions, cancellation fees, and urgency
// flagging. All mutations run under the per-ride lock.
type Machine struct {
	Store  storage.Store
	Locks  *storage.RideLocks
	Events Publisher
	Now    func() time.Time
}

func NewMachine(store storage.Store, locks *storage.RideLocks, events Publisher) *Machine {
	return &Machine{Store: store, Locks: locks, Events: events, Now: time.Now}
}

// FlagUrgency marks a freshly created ride urgent when its pickup is within
// the urgent window, and stamps its auto-expiry deadline.
func (m *Machine) FlagUrgency(r *models.Ride) {
	now := m.Now()
	if r.ScheduledTime.Sub(now) <= UrgentWindow {
		r.IsUrgent = true
		r.UrgentCancellationFee = UrgentFlatFee
		r.ExpiresAt = now.Add(UrgentWindow)
	}
}

// Expired is the predicate the sweep scheduler evaluates: an unmatched ride
// past its deadline should be auto-cancelled.
func Expired(r *models.Ride, now time.Time) bool {
	return r.Status.OpenForBidding() && !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// Transition moves a ride along the lifecycle graph. Re-applying the current
// status is a no-op so polling clients can retry safely; any other
// off-graph move is rejected and leaves the ride untouched.
func (m *Machine) Transition(rideID int64, to models.RideStatus, actor string) (*models.Ride, error) {
	unlock := m.Locks.Lock(rideID)
	defer unlock()
	return m.transitionLocked(rideID, to, actor)
}

// TransitionLocked is for callers already inside the ride's critical
// section (bid acceptance).
func (m *Machine) TransitionLocked(rideID int64, to models.RideStatus, actor string) (*models.Ride, error) {
	return m.transitionLocked(rideID, to, actor)
}

func (m *Machine) transitionLocked(rideID int64, to models.RideStatus, actor string) (*models.Ride, error) {
	r, err := m.Store.GetRide(rideID)
	if err != nil {
		return nil, err
	}
	if r.Status == to {
		return r, nil // idempotent re-delivery
	}
	if !CanTransition(r.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, to)
	}
	from := r.Status
	r.Status = to
	r.UpdatedAt = m.Now()
	if err := m.Store.UpdateRide(r); err != nil {
		return nil, err
	}
	m.publish(r, from, to, "transition")
	observability.TransitionsTotal.WithLabelValues(string(to)).Inc()
	return r, nil
}

// Cancel cancels a ride and computes the fee owed. Cancelling an already
// cancelled ride is a no-op. The ride keeps the reason and fee so pollers
// see both on the next read.
func (m *Machine) Cancel(rideID int64, reason string) (*models.Ride, error) {
	unlock := m.Locks.Lock(rideID)
	defer unlock()

	r, err := m.Store.GetRide(rideID)
	if err != nil {
		return nil, err
	}
	if r.Status == models.StatusCancelled {
		return r, nil
	}
	if !CanTransition(r.Status, models.StatusCancelled) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, models.StatusCancelled)
	}
	from := r.Status
	r.CancellationFee = CancellationFee(r, m.Now())
	r.CancellationReason = reason
	r.Status = models.StatusCancelled
	r.UpdatedAt = m.Now()
	if err := m.Store.UpdateRide(r); err != nil {
		return nil, err
	}
	m.publish(r, from, models.StatusCancelled, "transition")
	observability.CancellationsTotal.Inc()
	return r, nil
}

// RecordPaymentOutcome applies the payment processor's callback. Success
// moves payment_pending -> paid; failure records the reason against the
// ride and leaves it in payment_pending for the caller's retry policy.
func (m *Machine) RecordPaymentOutcome(rideID int64, success bool, reason string) (*models.Ride, error) {
	if success {
		return m.Transition(rideID, models.StatusPaid, "payments")
	}
	unlock := m.Locks.Lock(rideID)
	defer unlock()
	r, err := m.Store.GetRide(rideID)
	if err != nil {
		return nil, err
	}
	r.StatusNote = "payment failed: " + reason
	r.UpdatedAt = m.Now()
	if err := m.Store.UpdateRide(r); err != nil {
		return nil, err
	}
	observability.PaymentFailuresTotal.Inc()
	return r, nil
}

// ExpireOverdue cancels every unmatched ride whose deadline has passed,
// straight from the store. It backstops the event-driven sweeper: if the
// broker or index drops an event, the next pass here still catches the ride.
func (m *Machine) ExpireOverdue(now time.Time) (int, error) {
	rides, err := m.Store.ListExpiredRides(now)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range rides {
		if _, err := m.Cancel(r.ID, "expired"); err != nil {
			// raced past cancellation since the listing; leave it be
			if errors.Is(err, ErrInvalidTransition) {
				continue
			}
			return n, err
		}
		n++
	}
	return n, nil
}

// CancellationFee computes the fee owed for cancelling now. Only rides that
// already bound a driver (scheduled, paid, en_route) carry a fee. The time
// tier and the flat urgent fee are distinct mechanisms and stack additively.
func CancellationFee(r *models.Ride, now time.Time) float64 {
	switch r.Status {
	case models.StatusScheduled, models.StatusPaid, models.StatusEnRoute:
	default:
		return 0
	}
	base := r.FinalPrice
	if base == 0 {
		base = r.RiderBid
	}
	lead := r.ScheduledTime.Sub(now)
	var fee float64
	switch {
	case lead > FreeCancelLead:
		fee = 0
	case lead > LateCancelLead:
		fee = HalfFeeRate * base
	default:
		fee = base
	}
	if r.IsUrgent {
		fee += r.UrgentCancellationFee
	}
	return fee
}

func (m *Machine) publish(r *models.Ride, from, to models.RideStatus, kind string) {
	if m.Events == nil {
		return
	}
	_ = m.Events.PublishRideEvent(models.RideEvent{
		RideID:    r.ID,
		Reference: r.Reference,
		Kind:      kind,
		From:      from,
		To:        to,
		IsUrgent:  r.IsUrgent,
		ExpiresAt: r.ExpiresAt,
		At:        m.Now(),
	})
}
