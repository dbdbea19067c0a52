package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/example/medride/internal/models"
)

// MemoryStore keeps everything in process memory. Used in tests and for
// local runs without a PG_DSN.
type MemoryStore struct {
	mu      sync.RWMutex
	rides   map[int64]models.Ride
	bids    map[int64]models.Bid
	drivers map[int64]models.Driver

	nextRideID int64
	nextBidID  int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rides:   make(map[int64]models.Ride),
		bids:    make(map[int64]models.Bid),
		drivers: make(map[int64]models.Driver),
	}
}

func (m *MemoryStore) CreateRide(r *models.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextRideID++
	r.ID = m.nextRideID
	m.rides[r.ID] = *r
	return nil
}

func (m *MemoryStore) GetRide(id int64) (*models.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rides[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *MemoryStore) UpdateRide(r *models.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rides[r.ID]; !ok {
		return ErrNotFound
	}
	m.rides[r.ID] = *r
	return nil
}

func (m *MemoryStore) CreateBid(b *models.Bid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextBidID++
	b.ID = m.nextBidID
	m.bids[b.ID] = *b
	return nil
}

func (m *MemoryStore) GetBid(id int64) (*models.Bid, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bids[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (m *MemoryStore) UpdateBid(b *models.Bid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bids[b.ID]; !ok {
		return ErrNotFound
	}
	m.bids[b.ID] = *b
	return nil
}

func (m *MemoryStore) ListBidsByRide(rideID int64) ([]*models.Bid, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Bid, 0)
	for id := range m.bids {
		b := m.bids[id]
		if b.RideID == rideID {
			out = append(out, &b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) GetDriver(id int64) (*models.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drivers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (m *MemoryStore) UpsertDriver(d *models.Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[d.ID] = *d
	return nil
}

func (m *MemoryStore) ListExpiredRides(now time.Time) ([]*models.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Ride, 0)
	for id := range m.rides {
		r := m.rides[id]
		if r.Status.OpenForBidding() && !r.ExpiresAt.IsZero() && r.ExpiresAt.Before(now) {
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
