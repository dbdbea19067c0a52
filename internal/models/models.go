package models

import "time"

// VehicleType selects the base fare schedule for a ride.
type VehicleType string

const (
	VehicleStandard   VehicleType = "standard"
	VehicleWheelchair VehicleType = "wheelchair"
	VehicleStretcher  VehicleType = "stretcher"
)

func (v VehicleType) Valid() bool {
	switch v {
	case VehicleStandard, VehicleWheelchair, VehicleStretcher:
		return true
	}
	return false
}

// StairsTier describes how many stairs the driver must handle at one end
// of the trip.
type StairsTier string

const (
	StairsNone       StairsTier = "none"
	StairsFew        StairsTier = "1-3"
	StairsSome       StairsTier = "4-10"
	StairsMany       StairsTier = "11+"
	StairsFullFlight StairsTier = "full_flight"
)

func (s StairsTier) Valid() bool {
	switch s {
	case StairsNone, StairsFew, StairsSome, StairsMany, StairsFullFlight:
		return true
	}
	return false
}

type RideStatus string

const (
	StatusRequested      RideStatus = "requested"
	StatusBidding        RideStatus = "bidding"
	StatusEditPending    RideStatus = "edit_pending"
	StatusScheduled      RideStatus = "scheduled"
	StatusPaymentPending RideStatus = "payment_pending"
	StatusPaid           RideStatus = "paid"
	StatusEnRoute        RideStatus = "en_route"
	StatusArrived        RideStatus = "arrived"
	StatusInProgress     RideStatus = "in_progress"
	StatusCompleted      RideStatus = "completed"
	StatusCancelled      RideStatus = "cancelled"
)

// OpenForBidding reports whether drivers may still place bids.
func (s RideStatus) OpenForBidding() bool {
	return s == StatusRequested || s == StatusBidding
}

// Terminal reports whether no further transitions are possible.
func (s RideStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type BidStatus string

const (
	BidPending   BidStatus = "pending"
	BidAccepted  BidStatus = "accepted"
	BidSelected  BidStatus = "selected"
	BidCountered BidStatus = "countered"
	BidRejected  BidStatus = "rejected"
)

type Coord struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid rejects out-of-range coordinates and the {0,0}/{1,1} placeholder
// sentinels autocomplete widgets emit when geocoding falls through.
func (c Coord) Valid() bool {
	if c.Lat < -90 || c.Lat > 90 || c.Lng < -180 || c.Lng > 180 {
		return false
	}
	if c.Lat == 0 && c.Lng == 0 {
		return false
	}
	if c.Lat == 1 && c.Lng == 1 {
		return false
	}
	return true
}

// Itinerary is one leg of a trip. Round trips carry a second, mirrored leg.
type Itinerary struct {
	PickupLocation  string    `json:"pickup_location"`
	DropoffLocation string    `json:"dropoff_location"`
	Pickup          Coord     `json:"pickup_coordinates"`
	Dropoff         Coord     `json:"dropoff_coordinates"`
	ScheduledTime   time.Time `json:"scheduled_time"`
}

// Ride is one non-emergency medical transportation request.
type Ride struct {
	ID        int64  `json:"id"`
	Reference string `json:"reference"`
	RiderID   int64  `json:"rider_id"`
	DriverID  int64  `json:"driver_id,omitempty"` // bound once scheduled

	PickupLocation  string     `json:"pickup_location"`
	DropoffLocation string     `json:"dropoff_location"`
	Pickup          Coord      `json:"pickup_coordinates"`
	Dropoff         Coord      `json:"dropoff_coordinates"`
	ScheduledTime   time.Time  `json:"scheduled_time"`
	ReturnTrip      *Itinerary `json:"return_trip,omitempty"`

	VehicleType     VehicleType `json:"vehicle_type"`
	PickupStairs    StairsTier  `json:"pickup_stairs"`
	DropoffStairs   StairsTier  `json:"dropoff_stairs"`
	NeedsRamp       bool        `json:"needs_ramp"`
	NeedsCompanion  bool        `json:"needs_companion"`
	NeedsStairChair bool        `json:"needs_stair_chair"`
	NeedsWaitTime   bool        `json:"needs_wait_time"`
	WaitTimeMinutes int         `json:"wait_time_minutes"`

	RiderBid        float64 `json:"rider_bid"`
	SuggestedPrice  float64 `json:"suggested_price"`
	FinalPrice      float64 `json:"final_price,omitempty"`
	PromoCode       string  `json:"promo_code,omitempty"`
	DiscountedPrice float64 `json:"discounted_price,omitempty"`

	Status     RideStatus `json:"status"`
	StatusNote string     `json:"status_note,omitempty"` // last external failure reason, if any

	IsUrgent              bool      `json:"is_urgent"`
	UrgentCancellationFee float64   `json:"urgent_cancellation_fee,omitempty"`
	ExpiresAt             time.Time `json:"expires_at,omitempty"`

	CancellationReason string  `json:"cancellation_reason,omitempty"`
	CancellationFee    float64 `json:"cancellation_fee,omitempty"`

	PaymentIntentID string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Bid is one driver's price offer against an open ride.
type Bid struct {
	ID       int64     `json:"id"`
	RideID   int64     `json:"ride_id"`
	DriverID int64     `json:"driver_id"`
	Amount   float64   `json:"amount"`
	Status   BidStatus `json:"status"`
	BidCount int       `json:"bid_count"` // counter-offer rounds so far, capped at 3
	Notes    string    `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Driver carries the onboarding signal the marketplace gates bidding on.
// Document contents live in external storage; only completeness matters here.
type Driver struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	DocumentsComplete bool      `json:"documents_complete"`
	CreatedAt         time.Time `json:"created_at"`
}

// RideEvent is published to the event stream on every lifecycle transition
// and bid mutation so downstream consumers (sweeper, analytics) can react.
type RideEvent struct {
	RideID    int64      `json:"ride_id"`
	Reference string     `json:"reference"`
	Kind      string     `json:"kind"` // "transition", "bid_placed", "bid_countered", "bid_accepted"
	From      RideStatus `json:"from,omitempty"`
	To        RideStatus `json:"to,omitempty"`
	BidID     int64      `json:"bid_id,omitempty"`
	Amount    float64    `json:"amount,omitempty"`
	IsUrgent  bool       `json:"is_urgent"`
	ExpiresAt time.Time  `json:"expires_at,omitempty"`
	At        time.Time  `json:"at"`
}
