package bids

import (
	"errors"
	"time"

	"github.com/example/medride/internal/lifecycle"
	"github.com/example/medride/internal/models"
	"github.com/example/medride/internal/observability"
	"github.com/example/medride/internal/storage"
)

// Negotiation limits. Bounds are relative to the platform's suggested price:
// drivers may undercut by up to 30%, riders may accept up to 30% above.
const (
	MinBidAmount     = 10.0
	LowerBoundRatio  = 0.7
	UpperBoundRatio  = 1.3
	MaxCounterRounds = 3
)

var (
	// Validation errors.
	ErrBidTooLow          = errors.New("bid must be at least $10")
	ErrBidOutOfRange      = errors.New("bid outside the allowed range of the suggested price")
	ErrDriverNotOnboarded = errors.New("driver documents incomplete")

	// State-conflict errors.
	ErrRideClosed = errors.New("ride is no longer accepting bids")
	ErrBidClosed  = errors.New("bid is not open for negotiation")

	// Capacity error, distinct from state conflicts so the UI can say
	// "maximum negotiation rounds reached".
	ErrMaxCounterOffers = errors.New("maximum 3 bids reached")
)

// Dispatcher pushes bid updates to a connected rider. Optional accelerant;
// pollers see the same state on their next read.
type Dispatcher interface {
	BidUpdate(riderID int64, b *models.Bid) error
}

// Ledger enforces the negotiation rules between a rider's opening bid and
// drivers' counter-bids. Every mutation runs inside the ride's critical
// section so concurrent accept/counter requests cannot race.
type Ledger struct {
	Store    storage.Store
	Locks    *storage.RideLocks
	Machine  *lifecycle.Machine
	Events   lifecycle.Publisher
	Dispatch Dispatcher
	Now      func() time.Time
}

func NewLedger(store storage.Store, locks *storage.RideLocks, machine *lifecycle.Machine, events lifecycle.Publisher, dispatch Dispatcher) *Ledger {
	return &Ledger{Store: store, Locks: locks, Machine: machine, Events: events, Dispatch: dispatch, Now: time.Now}
}

// PlaceBid records a driver's opening offer. The first bid on a ride moves
// it from requested to bidding.
func (l *Ledger) PlaceBid(rideID, driverID int64, amount float64, notes string) (*models.Bid, *models.Ride, error) {
	if amount < MinBidAmount {
		return nil, nil, ErrBidTooLow
	}
	d, err := l.Store.GetDriver(driverID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, ErrDriverNotOnboarded
		}
		return nil, nil, err
	}
	if !d.DocumentsComplete {
		return nil, nil, ErrDriverNotOnboarded
	}

	unlock := l.Locks.Lock(rideID)
	defer unlock()

	r, err := l.Store.GetRide(rideID)
	if err != nil {
		return nil, nil, err
	}
	if !r.Status.OpenForBidding() {
		return nil, nil, ErrRideClosed
	}
	if !withinBounds(amount, r.SuggestedPrice) {
		return nil, nil, ErrBidOutOfRange
	}

	now := l.Now()
	b := &models.Bid{
		RideID:    rideID,
		DriverID:  driverID,
		Amount:    amount,
		Status:    models.BidPending,
		Notes:     notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := l.Store.CreateBid(b); err != nil {
		return nil, nil, err
	}
	if r.Status == models.StatusRequested {
		r, err = l.Machine.TransitionLocked(rideID, models.StatusBidding, "driver")
		if err != nil {
			return nil, nil, err
		}
	}
	l.publish(r, b, "bid_placed")
	l.notify(r.RiderID, b)
	observability.BidsPlacedTotal.Inc()
	return b, r, nil
}

// CounterOffer revises a bid's amount, by either party. Rounds are capped;
// the fourth attempt fails with a capacity error and changes nothing.
func (l *Ledger) CounterOffer(bidID int64, newAmount float64, byParty string) (*models.Bid, error) {
	if newAmount < MinBidAmount {
		return nil, ErrBidTooLow
	}
	b, err := l.Store.GetBid(bidID)
	if err != nil {
		return nil, err
	}

	unlock := l.Locks.Lock(b.RideID)
	defer unlock()

	// re-read inside the critical section
	b, err = l.Store.GetBid(bidID)
	if err != nil {
		return nil, err
	}
	r, err := l.Store.GetRide(b.RideID)
	if err != nil {
		return nil, err
	}
	if !r.Status.OpenForBidding() {
		return nil, ErrRideClosed
	}
	if b.Status != models.BidPending && b.Status != models.BidCountered {
		return nil, ErrBidClosed
	}
	if b.BidCount >= MaxCounterRounds {
		return nil, ErrMaxCounterOffers
	}
	if !withinBounds(newAmount, r.SuggestedPrice) {
		return nil, ErrBidOutOfRange
	}

	b.Amount = newAmount
	b.BidCount++
	b.Status = models.BidCountered
	b.UpdatedAt = l.Now()
	if err := l.Store.UpdateBid(b); err != nil {
		return nil, err
	}
	l.publish(r, b, "bid_countered")
	l.notify(r.RiderID, b)
	observability.CounterOffersTotal.Inc()
	return b, nil
}

// AcceptBid is the single atomic operation that closes negotiation: the bid
// becomes accepted, every sibling is rejected, the ride takes the bid's
// amount as its final price and moves to scheduled. Runs entirely under the
// ride lock so a partially applied acceptance cannot be observed.
func (l *Ledger) AcceptBid(bidID int64) (*models.Bid, *models.Ride, error) {
	b, err := l.Store.GetBid(bidID)
	if err != nil {
		return nil, nil, err
	}

	unlock := l.Locks.Lock(b.RideID)
	defer unlock()

	b, err = l.Store.GetBid(bidID)
	if err != nil {
		return nil, nil, err
	}
	r, err := l.Store.GetRide(b.RideID)
	if err != nil {
		return nil, nil, err
	}
	if !r.Status.OpenForBidding() {
		return nil, nil, ErrRideClosed
	}
	if b.Status != models.BidPending {
		return nil, nil, ErrBidClosed
	}

	now := l.Now()
	siblings, err := l.Store.ListBidsByRide(b.RideID)
	if err != nil {
		return nil, nil, err
	}
	for _, sib := range siblings {
		if sib.ID == b.ID || sib.Status == models.BidRejected {
			continue
		}
		sib.Status = models.BidRejected
		sib.UpdatedAt = now
		if err := l.Store.UpdateBid(sib); err != nil {
			return nil, nil, err
		}
	}
	b.Status = models.BidAccepted
	b.UpdatedAt = now
	if err := l.Store.UpdateBid(b); err != nil {
		return nil, nil, err
	}

	r.FinalPrice = b.Amount
	r.DriverID = b.DriverID
	r.UpdatedAt = now
	if err := l.Store.UpdateRide(r); err != nil {
		return nil, nil, err
	}
	r, err = l.Machine.TransitionLocked(r.ID, models.StatusScheduled, "rider")
	if err != nil {
		return nil, nil, err
	}
	l.publish(r, b, "bid_accepted")
	l.notify(r.RiderID, b)
	observability.BidsAcceptedTotal.Inc()
	return b, r, nil
}

// ListBidsForRide returns all bids on a ride ordered by creation time.
func (l *Ledger) ListBidsForRide(rideID int64) ([]*models.Bid, error) {
	return l.Store.ListBidsByRide(rideID)
}

// BestOffer is the lowest pending amount, or nil when nothing is pending.
func (l *Ledger) BestOffer(rideID int64) (*models.Bid, error) {
	all, err := l.Store.ListBidsByRide(rideID)
	if err != nil {
		return nil, err
	}
	var best *models.Bid
	for _, b := range all {
		if b.Status != models.BidPending {
			continue
		}
		if best == nil || b.Amount < best.Amount {
			best = b
		}
	}
	return best, nil
}

// withinBounds checks the negotiation corridor. A ride quoted without a
// suggested price (degraded route data) only enforces the floor.
func withinBounds(amount, suggested float64) bool {
	if suggested <= 0 {
		return true
	}
	return amount >= LowerBoundRatio*suggested && amount <= UpperBoundRatio*suggested
}

func (l *Ledger) publish(r *models.Ride, b *models.Bid, kind string) {
	if l.Events == nil {
		return
	}
	_ = l.Events.PublishRideEvent(models.RideEvent{
		RideID:    r.ID,
		Reference: r.Reference,
		Kind:      kind,
		BidID:     b.ID,
		Amount:    b.Amount,
		IsUrgent:  r.IsUrgent,
		ExpiresAt: r.ExpiresAt,
		At:        l.Now(),
	})
}

func (l *Ledger) notify(riderID int64, b *models.Bid) {
	if l.Dispatch == nil {
		return
	}
	_ = l.Dispatch.BidUpdate(riderID, b) // best-effort push
}
