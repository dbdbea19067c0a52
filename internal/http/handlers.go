package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/example/medride/internal/fare"
	"github.com/example/medride/internal/models"
	"github.com/example/medride/internal/observability"
	"github.com/example/medride/internal/promo"
)

type quoteRequest struct {
	VehicleType     models.VehicleType `json:"vehicle_type"`
	PickupStairs    models.StairsTier  `json:"pickup_stairs"`
	DropoffStairs   models.StairsTier  `json:"dropoff_stairs"`
	NeedsRamp       bool               `json:"needs_ramp"`
	NeedsCompanion  bool               `json:"needs_companion"`
	NeedsStairChair bool               `json:"needs_stair_chair"`
	NeedsWaitTime   bool               `json:"needs_wait_time"`
	WaitTimeMinutes int                `json:"wait_time_minutes"`
	RoundTrip       bool               `json:"round_trip"`

	RouteDistance string `json:"route_distance,omitempty"`
	RouteDuration string `json:"route_duration,omitempty"`

	Pickup  *models.Coord `json:"pickup_coordinates,omitempty"`
	Dropoff *models.Coord `json:"dropoff_coordinates,omitempty"`

	PromoCode string `json:"promo_code,omitempty"`
}

func (q quoteRequest) fareInput() fare.Input {
	return fare.Input{
		VehicleType:     q.VehicleType,
		PickupStairs:    q.PickupStairs,
		DropoffStairs:   q.DropoffStairs,
		NeedsRamp:       q.NeedsRamp,
		NeedsCompanion:  q.NeedsCompanion,
		NeedsStairChair: q.NeedsStairChair,
		NeedsWaitTime:   q.NeedsWaitTime,
		WaitTimeMinutes: q.WaitTimeMinutes,
		RoundTrip:       q.RoundTrip,
	}
}

// quoteFor runs the calculator, filling route metrics from the route
// provider when the client did not supply any. Provider failures degrade
// to a partial quote with a warning.
func (s *Server) quoteFor(q quoteRequest) (fare.Quote, error) {
	route := &fare.RouteInfo{Distance: q.RouteDistance, Duration: q.RouteDuration}
	if route.Distance == "" && route.Duration == "" && s.Routes != nil &&
		q.Pickup != nil && q.Dropoff != nil && q.Pickup.Valid() && q.Dropoff.Valid() {
		if ri, err := s.Routes.Lookup(*q.Pickup, *q.Dropoff); err == nil {
			route = &ri
		}
	}
	quote, err := fare.Calculate(q.fareInput(), route)
	if err != nil {
		return fare.Quote{}, err
	}
	if len(quote.Warnings) > 0 {
		observability.QuoteWarningsTotal.Inc()
	}
	return quote, nil
}

// applyPromo resolves a promo code against an amount. Unresolvable codes
// degrade to no discount plus a warning; they never block the caller.
func (s *Server) applyPromo(code string, amount float64) (float64, string) {
	if code == "" || s.Promo == nil {
		return 0, ""
	}
	d, err := s.Promo.Validate(code, amount)
	if err != nil {
		s.logger.Warn("promo lookup failed", "code", code, "error", err)
		observability.QuoteWarningsTotal.Inc()
		return 0, "promo code could not be verified; full price shown"
	}
	if !d.Valid {
		return 0, "promo code is not valid"
	}
	return promo.Apply(amount, d), ""
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid json")
		return
	}
	quote, err := s.quoteFor(req)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}
	resp := map[string]any{"quote": quote, "total": fare.Round2(quote.Total)}
	if discounted, warn := s.applyPromo(req.PromoCode, quote.Total); warn != "" {
		resp["warning"] = warn
	} else if discounted > 0 {
		resp["discounted_total"] = fare.Round2(discounted)
	}
	writeJSON(w, http.StatusOK, resp)
}

type createRideRequest struct {
	quoteRequest
	RiderID         int64             `json:"rider_id"`
	PickupLocation  string            `json:"pickup_location"`
	DropoffLocation string            `json:"dropoff_location"`
	ScheduledTime   time.Time         `json:"scheduled_time"`
	ReturnTrip      *models.Itinerary `json:"return_trip,omitempty"`
	RiderBid        float64           `json:"rider_bid"`
}

func (s *Server) handleCreateRide(w http.ResponseWriter, r *http.Request) {
	var req createRideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid json")
		return
	}
	if req.RiderID == 0 {
		writeError(w, http.StatusBadRequest, codeValidation, "rider_id is required")
		return
	}
	if req.Pickup == nil || req.Dropoff == nil || !req.Pickup.Valid() || !req.Dropoff.Valid() {
		writeError(w, http.StatusBadRequest, codeValidation, "pickup and dropoff coordinates must be valid")
		return
	}
	if req.ReturnTrip != nil && (!req.ReturnTrip.Pickup.Valid() || !req.ReturnTrip.Dropoff.Valid()) {
		writeError(w, http.StatusBadRequest, codeValidation, "return trip coordinates must be valid")
		return
	}
	now := time.Now()
	if !req.ScheduledTime.After(now) {
		writeError(w, http.StatusBadRequest, codeValidation, "scheduled_time must be in the future")
		return
	}
	if req.RiderBid < 10 {
		writeError(w, http.StatusBadRequest, codeValidation, "bid must be at least $10")
		return
	}
	req.RoundTrip = req.RoundTrip || req.ReturnTrip != nil

	quote, err := s.quoteFor(req.quoteRequest)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}

	ride := &models.Ride{
		Reference:       uuid.NewString(),
		RiderID:         req.RiderID,
		PickupLocation:  req.PickupLocation,
		DropoffLocation: req.DropoffLocation,
		Pickup:          *req.Pickup,
		Dropoff:         *req.Dropoff,
		ScheduledTime:   req.ScheduledTime,
		ReturnTrip:      req.ReturnTrip,
		VehicleType:     req.VehicleType,
		PickupStairs:    req.PickupStairs,
		DropoffStairs:   req.DropoffStairs,
		NeedsRamp:       req.NeedsRamp,
		NeedsCompanion:  req.NeedsCompanion,
		NeedsStairChair: req.NeedsStairChair,
		NeedsWaitTime:   req.NeedsWaitTime,
		WaitTimeMinutes: req.WaitTimeMinutes,
		RiderBid:        req.RiderBid,
		SuggestedPrice:  quote.Total,
		PromoCode:       req.PromoCode,
		Status:          models.StatusRequested,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.Machine.FlagUrgency(ride)
	discounted, promoWarn := s.applyPromo(req.PromoCode, quote.Total)
	if discounted > 0 {
		ride.DiscountedPrice = discounted
	}
	if err := s.Store.CreateRide(ride); err != nil {
		s.writeCoreError(w, err)
		return
	}
	if s.Kafka != nil {
		_ = s.Kafka.PublishRideEvent(models.RideEvent{
			RideID:    ride.ID,
			Reference: ride.Reference,
			Kind:      "created",
			To:        ride.Status,
			IsUrgent:  ride.IsUrgent,
			ExpiresAt: ride.ExpiresAt,
			At:        now,
		})
	}
	observability.RidesCreatedTotal.Inc()
	s.logger.Info("ride created", "ride_id", ride.ID, "urgent", ride.IsUrgent, "suggested", fare.Round2(quote.Total))
	resp := map[string]any{"ride": ride, "quote": quote}
	if promoWarn != "" {
		resp["warning"] = promoWarn
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetRide(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ride, err := s.Store.GetRide(id)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}
	rideBids, err := s.Ledger.ListBidsForRide(id)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ride": ride, "bids": rideBids})
}

func (s *Server) handleCancelRide(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Reason == "" {
		body.Reason = "rider_cancelled"
	}
	ride, err := s.Machine.Cancel(id, body.Reason)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}
	// release any payment hold; failures are recorded, retry belongs to ops
	if ride.PaymentIntentID != "" && s.Payments != nil {
		if err := s.Payments.Cancel(r.Context(), ride.PaymentIntentID); err != nil {
			s.logger.Error("payment hold release failed", "ride_id", ride.ID, "error", err)
		}
	}
	s.logger.Info("ride cancelled", "ride_id", ride.ID, "reason", body.Reason, "fee", ride.CancellationFee)
	writeJSON(w, http.StatusOK, map[string]any{"ride": ride})
}

func (s *Server) handleRideStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Status models.RideStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid json")
		return
	}
	switch body.Status {
	case models.StatusEditPending, models.StatusEnRoute, models.StatusArrived,
		models.StatusInProgress, models.StatusCompleted:
	case models.StatusCancelled:
		writeError(w, http.StatusBadRequest, codeValidation, "use DELETE /api/v1/rides/{id} to cancel")
		return
	default:
		writeError(w, http.StatusBadRequest, codeValidation, "unknown or non-reportable status")
		return
	}
	ride, err := s.Machine.Transition(id, body.Status, "driver")
	if err != nil {
		s.writeCoreError(w, err)
		return
	}
	if body.Status == models.StatusCompleted && ride.PaymentIntentID != "" && s.Payments != nil {
		if err := s.Payments.Capture(r.Context(), ride.PaymentIntentID); err != nil {
			s.logger.Error("payment capture failed", "ride_id", ride.ID, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ride": ride})
}

func (s *Server) handlePayRide(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ride, err := s.Machine.Transition(id, models.StatusPaymentPending, "rider")
	if err != nil {
		s.writeCoreError(w, err)
		return
	}
	discounted, promoWarn := s.applyPromo(ride.PromoCode, ride.FinalPrice)
	if discounted > 0 {
		ride.DiscountedPrice = discounted
		if err := s.Store.UpdateRide(ride); err != nil {
			s.writeCoreError(w, err)
			return
		}
	}
	if s.Payments != nil {
		piID, err := s.Payments.ChargeRide(r.Context(), ride)
		if err != nil {
			// recorded against the ride; the caller decides when to retry
			if _, rerr := s.Machine.RecordPaymentOutcome(ride.ID, false, err.Error()); rerr != nil {
				s.writeCoreError(w, rerr)
				return
			}
			writeError(w, http.StatusBadGateway, codeExternal, "payment processor unavailable")
			return
		}
		ride.PaymentIntentID = piID
		if err := s.Store.UpdateRide(ride); err != nil {
			s.writeCoreError(w, err)
			return
		}
	}
	resp := map[string]any{"ride": ride}
	if promoWarn != "" {
		resp["warning"] = promoWarn
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePaymentCallback(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RideID  int64  `json:"ride_id"`
		Success bool   `json:"success"`
		Reason  string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid json")
		return
	}
	ride, err := s.Machine.RecordPaymentOutcome(body.RideID, body.Success, body.Reason)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ride": ride})
}

func (s *Server) handlePlaceBid(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RideID   int64   `json:"ride_id"`
		DriverID int64   `json:"driver_id"`
		Amount   float64 `json:"amount"`
		Notes    string  `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid json")
		return
	}
	bid, ride, err := s.Ledger.PlaceBid(body.RideID, body.DriverID, body.Amount, body.Notes)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"bid": bid, "ride": ride})
}

func (s *Server) handleAcceptBid(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	bid, ride, err := s.Ledger.AcceptBid(id)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}
	s.logger.Info("bid accepted", "ride_id", ride.ID, "bid_id", bid.ID, "final_price", bid.Amount)
	writeJSON(w, http.StatusOK, map[string]any{"bid": bid, "ride": ride})
}

func (s *Server) handleCounterOffer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Amount  float64 `json:"amount"`
		ByParty string  `json:"by_party"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid json")
		return
	}
	bid, err := s.Ledger.CounterOffer(id, body.Amount, body.ByParty)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bid": bid})
}

func (s *Server) handleListBids(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	rideBids, err := s.Ledger.ListBidsForRide(id)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}
	best, err := s.Ledger.BestOffer(id)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bids": rideBids, "best_offer": best})
}

func (s *Server) handleDriverDocuments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Name              string `json:"name"`
		DocumentsComplete bool   `json:"documents_complete"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid json")
		return
	}
	d := &models.Driver{ID: id, Name: body.Name, DocumentsComplete: body.DocumentsComplete, CreatedAt: time.Now()}
	if err := s.Store.UpsertDriver(d); err != nil {
		s.writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"driver": d})
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	riderID, err := strconv.ParseInt(vars["rider_id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid rider id")
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.WSReg.Add(riderID, conn)
}

func pathID(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[key], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid id")
		return 0, false
	}
	return id, true
}
