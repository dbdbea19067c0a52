package storage

import (
	"errors"
	"sync"
	"time"

	"github.com/example/medride/internal/models"
)

var ErrNotFound = errors.New("not found")

// Store defines persistence for rides, bids, and driver onboarding flags.
type Store interface {
	CreateRide(r *models.Ride) error
	GetRide(id int64) (*models.Ride, error)
	UpdateRide(r *models.Ride) error

	CreateBid(b *models.Bid) error
	GetBid(id int64) (*models.Bid, error)
	UpdateBid(b *models.Bid) error
	ListBidsByRide(rideID int64) ([]*models.Bid, error)

	GetDriver(id int64) (*models.Driver, error)
	UpsertDriver(d *models.Driver) error

	// ListExpiredRides returns unmatched rides whose expiry deadline has
	// passed, for the sweep to cancel.
	ListExpiredRides(now time.Time) ([]*models.Ride, error)
}

// RideLocks serializes all mutations against a single ride. Cross-ride
// operations proceed in parallel; within one ride, bid placement, counter
// offers, acceptance, and status transitions never interleave.
type RideLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewRideLocks() *RideLocks {
	return &RideLocks{locks: make(map[int64]*sync.Mutex)}
}

// Lock acquires the ride's mutex and returns its unlock function.
func (l *RideLocks) Lock(rideID int64) func() {
	l.mu.Lock()
	m, ok := l.locks[rideID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[rideID] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}
