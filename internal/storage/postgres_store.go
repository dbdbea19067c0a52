package storage

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/medride/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

const rideColumns = `id, reference, rider_id, driver_id,
	pickup_location, dropoff_location, pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
	scheduled_time, return_trip,
	vehicle_type, pickup_stairs, dropoff_stairs,
	needs_ramp, needs_companion, needs_stair_chair, needs_wait_time, wait_time_minutes,
	rider_bid, suggested_price, final_price, promo_code, discounted_price,
	status, status_note, is_urgent, urgent_cancellation_fee, expires_at,
	cancellation_reason, cancellation_fee, payment_intent_id, created_at, updated_at`

func (p *PostgresStore) CreateRide(r *models.Ride) error {
	ret, err := marshalReturnTrip(r.ReturnTrip)
	if err != nil {
		return err
	}
	return p.db.QueryRow(`INSERT INTO rides(
		reference, rider_id, driver_id,
		pickup_location, dropoff_location, pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
		scheduled_time, return_trip,
		vehicle_type, pickup_stairs, dropoff_stairs,
		needs_ramp, needs_companion, needs_stair_chair, needs_wait_time, wait_time_minutes,
		rider_bid, suggested_price, final_price, promo_code, discounted_price,
		status, status_note, is_urgent, urgent_cancellation_fee, expires_at,
		cancellation_reason, cancellation_fee, payment_intent_id, created_at, updated_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32,$33,$34)
	RETURNING id`,
		r.Reference, r.RiderID, nullID(r.DriverID),
		r.PickupLocation, r.DropoffLocation, r.Pickup.Lat, r.Pickup.Lng, r.Dropoff.Lat, r.Dropoff.Lng,
		r.ScheduledTime, ret,
		string(r.VehicleType), string(r.PickupStairs), string(r.DropoffStairs),
		r.NeedsRamp, r.NeedsCompanion, r.NeedsStairChair, r.NeedsWaitTime, r.WaitTimeMinutes,
		r.RiderBid, r.SuggestedPrice, r.FinalPrice, r.PromoCode, r.DiscountedPrice,
		string(r.Status), r.StatusNote, r.IsUrgent, r.UrgentCancellationFee, nullTime(r.ExpiresAt),
		r.CancellationReason, r.CancellationFee, r.PaymentIntentID, r.CreatedAt, r.UpdatedAt,
	).Scan(&r.ID)
}

func (p *PostgresStore) GetRide(id int64) (*models.Ride, error) {
	row := p.db.QueryRow(`SELECT `+rideColumns+` FROM rides WHERE id=$1`, id)
	return scanRide(row)
}

func (p *PostgresStore) UpdateRide(r *models.Ride) error {
	ret, err := marshalReturnTrip(r.ReturnTrip)
	if err != nil {
		return err
	}
	res, err := p.db.Exec(`UPDATE rides SET
		driver_id=$1, scheduled_time=$2, return_trip=$3,
		final_price=$4, promo_code=$5, discounted_price=$6,
		status=$7, status_note=$8, expires_at=$9,
		cancellation_reason=$10, cancellation_fee=$11, payment_intent_id=$12, updated_at=$13
		WHERE id=$14`,
		nullID(r.DriverID), r.ScheduledTime, ret,
		r.FinalPrice, r.PromoCode, r.DiscountedPrice,
		string(r.Status), r.StatusNote, nullTime(r.ExpiresAt),
		r.CancellationReason, r.CancellationFee, r.PaymentIntentID, time.Now(),
		r.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) CreateBid(b *models.Bid) error {
	return p.db.QueryRow(`INSERT INTO bids(ride_id, driver_id, amount, status, bid_count, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		b.RideID, b.DriverID, b.Amount, string(b.Status), b.BidCount, b.Notes, b.CreatedAt, b.UpdatedAt,
	).Scan(&b.ID)
}

func (p *PostgresStore) GetBid(id int64) (*models.Bid, error) {
	row := p.db.QueryRow(`SELECT id, ride_id, driver_id, amount, status, bid_count, notes, created_at, updated_at FROM bids WHERE id=$1`, id)
	return scanBid(row)
}

func (p *PostgresStore) UpdateBid(b *models.Bid) error {
	res, err := p.db.Exec(`UPDATE bids SET amount=$1, status=$2, bid_count=$3, updated_at=$4 WHERE id=$5`,
		b.Amount, string(b.Status), b.BidCount, time.Now(), b.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) ListBidsByRide(rideID int64) ([]*models.Bid, error) {
	rows, err := p.db.Query(`SELECT id, ride_id, driver_id, amount, status, bid_count, notes, created_at, updated_at
		FROM bids WHERE ride_id=$1 ORDER BY created_at, id`, rideID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*models.Bid, 0)
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (p *PostgresStore) GetDriver(id int64) (*models.Driver, error) {
	var d models.Driver
	err := p.db.QueryRow(`SELECT id, name, documents_complete, created_at FROM drivers WHERE id=$1`, id).
		Scan(&d.ID, &d.Name, &d.DocumentsComplete, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (p *PostgresStore) UpsertDriver(d *models.Driver) error {
	_, err := p.db.Exec(`INSERT INTO drivers(id, name, documents_complete, created_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, documents_complete=EXCLUDED.documents_complete`,
		d.ID, d.Name, d.DocumentsComplete, d.CreatedAt)
	return err
}

func (p *PostgresStore) ListExpiredRides(now time.Time) ([]*models.Ride, error) {
	rows, err := p.db.Query(`SELECT `+rideColumns+` FROM rides
		WHERE status IN ('requested','bidding') AND expires_at IS NOT NULL AND expires_at < $1
		ORDER BY id`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*models.Ride, 0)
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(row rowScanner) (*models.Ride, error) {
	var r models.Ride
	var driverID sql.NullInt64
	var expiresAt sql.NullTime
	var ret []byte
	var vt, ps, ds, st string
	err := row.Scan(
		&r.ID, &r.Reference, &r.RiderID, &driverID,
		&r.PickupLocation, &r.DropoffLocation, &r.Pickup.Lat, &r.Pickup.Lng, &r.Dropoff.Lat, &r.Dropoff.Lng,
		&r.ScheduledTime, &ret,
		&vt, &ps, &ds,
		&r.NeedsRamp, &r.NeedsCompanion, &r.NeedsStairChair, &r.NeedsWaitTime, &r.WaitTimeMinutes,
		&r.RiderBid, &r.SuggestedPrice, &r.FinalPrice, &r.PromoCode, &r.DiscountedPrice,
		&st, &r.StatusNote, &r.IsUrgent, &r.UrgentCancellationFee, &expiresAt,
		&r.CancellationReason, &r.CancellationFee, &r.PaymentIntentID, &r.CreatedAt, &r.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.VehicleType = models.VehicleType(vt)
	r.PickupStairs = models.StairsTier(ps)
	r.DropoffStairs = models.StairsTier(ds)
	r.Status = models.RideStatus(st)
	if driverID.Valid {
		r.DriverID = driverID.Int64
	}
	if expiresAt.Valid {
		r.ExpiresAt = expiresAt.Time
	}
	if len(ret) > 0 {
		var it models.Itinerary
		if err := json.Unmarshal(ret, &it); err == nil {
			r.ReturnTrip = &it
		}
	}
	return &r, nil
}

func scanBid(row rowScanner) (*models.Bid, error) {
	var b models.Bid
	var st string
	err := row.Scan(&b.ID, &b.RideID, &b.DriverID, &b.Amount, &st, &b.BidCount, &b.Notes, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	b.Status = models.BidStatus(st)
	return &b, nil
}

func marshalReturnTrip(it *models.Itinerary) ([]byte, error) {
	if it == nil {
		return nil, nil
	}
	return json.Marshal(it)
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
