package fare

import (
	"errors"
	"fmt"
	"math"

	"github.com/example/medride/internal/models"
)

// Canonical fare schedule, in dollars. The booking flow historically carried
// two divergent constant tables; this one is authoritative and every call
// site quotes through Calculate.
const (
	BaseStandard   = 50.0
	BaseWheelchair = 70.0
	BaseStretcher  = 90.0

	RampFee       = 10.0
	CompanionFee  = 15.0
	StairChairFee = 20.0

	WaitFlatFee     = 15.0
	WaitPerMinute   = 0.25
	PerMile         = 2.0
	PerDurationMin  = 0.5
	RoundTripFactor = 0.8 // second leg costs 80% of the first
	PlatformFeeRate = 0.05
	TaxRate         = 0.08
)

var stairsFees = map[models.StairsTier]float64{
	models.StairsNone:       0,
	models.StairsFew:        5,
	models.StairsSome:       10,
	models.StairsMany:       15,
	models.StairsFullFlight: 20,
}

var (
	ErrVehicleType = errors.New("unknown vehicle type")
	ErrStairsTier  = errors.New("unknown stairs tier")
	ErrWaitTime    = errors.New("wait time minutes must be >= 0")
)

// Input is everything the calculator needs about an itinerary. It is a plain
// value so quotes stay deterministic and unit-testable.
type Input struct {
	VehicleType     models.VehicleType
	PickupStairs    models.StairsTier
	DropoffStairs   models.StairsTier
	NeedsRamp       bool
	NeedsCompanion  bool
	NeedsStairChair bool
	NeedsWaitTime   bool
	WaitTimeMinutes int
	RoundTrip       bool
}

// RouteInfo carries the mapping provider's human-readable route metrics,
// e.g. Distance "5.2 mi", Duration "1 hour 22 mins". Either may be absent
// or unparsable; those legs of the fare then contribute zero.
type RouteInfo struct {
	Distance string
	Duration string
}

// Quote is the itemized fare breakdown. Amounts are carried at full
// precision; round to cents at the presentation boundary.
type Quote struct {
	BaseFare     float64  `json:"base_fare"`
	StairsFee    float64  `json:"stairs_fee"`
	AddOnFees    float64  `json:"add_on_fees"`
	WaitTimeFee  float64  `json:"wait_time_fee"`
	DistanceFee  float64  `json:"distance_fee"`
	DurationFee  float64  `json:"duration_fee"`
	RoundTripFee float64  `json:"round_trip_fee"`
	Subtotal     float64  `json:"subtotal"`
	PlatformFee  float64  `json:"platform_fee"`
	Tax          float64  `json:"tax"`
	Total        float64  `json:"total"`
	Warnings     []string `json:"warnings,omitempty"`
}

// Calculate produces the suggested price for an itinerary. Enumeration
// violations fail hard; missing route metrics degrade to zero contribution
// with a warning so a partial quote never blocks booking.
func Calculate(in Input, route *RouteInfo) (Quote, error) {
	var q Quote

	switch in.VehicleType {
	case models.VehicleStandard:
		q.BaseFare = BaseStandard
	case models.VehicleWheelchair:
		q.BaseFare = BaseWheelchair
	case models.VehicleStretcher:
		q.BaseFare = BaseStretcher
	default:
		return Quote{}, fmt.Errorf("%w: %q", ErrVehicleType, in.VehicleType)
	}

	for _, tier := range []models.StairsTier{in.PickupStairs, in.DropoffStairs} {
		fee, ok := stairsFees[tier]
		if !ok {
			return Quote{}, fmt.Errorf("%w: %q", ErrStairsTier, tier)
		}
		q.StairsFee += fee
	}

	if in.NeedsRamp {
		q.AddOnFees += RampFee
	}
	if in.NeedsCompanion {
		q.AddOnFees += CompanionFee
	}
	if in.NeedsStairChair {
		q.AddOnFees += StairChairFee
	}

	if in.NeedsWaitTime {
		if in.WaitTimeMinutes < 0 {
			return Quote{}, ErrWaitTime
		}
		q.WaitTimeFee = WaitFlatFee + WaitPerMinute*float64(in.WaitTimeMinutes)
	}

	if route != nil {
		if miles, ok := ParseDistanceMiles(route.Distance); ok {
			q.DistanceFee = PerMile * miles
		} else if route.Distance != "" {
			q.Warnings = append(q.Warnings, "distance unavailable; quoted without mileage")
		}
		if mins, ok := ParseDurationMinutes(route.Duration); ok {
			q.DurationFee = PerDurationMin * mins
		} else if route.Duration != "" {
			q.Warnings = append(q.Warnings, "duration unavailable; quoted without time charge")
		}
	}

	oneWay := q.BaseFare + q.StairsFee + q.AddOnFees + q.WaitTimeFee + q.DistanceFee + q.DurationFee
	if in.RoundTrip {
		q.RoundTripFee = RoundTripFactor * oneWay
	}
	q.Subtotal = oneWay + q.RoundTripFee
	q.PlatformFee = PlatformFeeRate * q.Subtotal
	q.Tax = TaxRate * (q.Subtotal + q.PlatformFee)
	q.Total = q.Subtotal + q.PlatformFee + q.Tax
	return q, nil
}

// Round2 rounds to whole cents for display and for amounts sent to the
// payment processor.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
