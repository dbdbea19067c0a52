package payments

import (
	"context"
	"os"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"

	"github.com/example/medride/internal/fare"
	"github.com/example/medride/internal/models"
)

// Processor is the narrow contract the lifecycle layer charges through.
type Processor interface {
	ChargeRide(ctx context.Context, r *models.Ride) (string, error)
	Capture(ctx context.Context, paymentIntentID string) error
	Cancel(ctx context.Context, paymentIntentID string) error
}

// StripeClient wraps stripe-go PaymentIntent hold/capture/cancel flows.
type StripeClient struct{}

// NewStripeClient initializes the stripe client with the STRIPE_API_KEY env var.
func NewStripeClient() *StripeClient {
	stripe.Key = os.Getenv("STRIPE_API_KEY")
	return &StripeClient{}
}

// ChargeRide opens a manual-capture PaymentIntent for the ride's negotiated
// price (the promo-discounted price when one applied). Returns the
// PaymentIntent ID to record against the ride.
func (s *StripeClient) ChargeRide(ctx context.Context, r *models.Ride) (string, error) {
	amount := r.FinalPrice
	if r.DiscountedPrice > 0 {
		amount = r.DiscountedPrice
	}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(int64(fare.Round2(amount) * 100)),
		Currency: stripe.String(string(stripe.CurrencyUSD)),
	}
	params.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
	params.AddMetadata("ride_id", r.Reference)
	pi, err := paymentintent.New(params)
	if err != nil {
		return "", err
	}
	return pi.ID, nil
}

// Capture finalizes a previously-held PaymentIntent.
func (s *StripeClient) Capture(ctx context.Context, paymentIntentID string) error {
	_, err := paymentintent.Capture(paymentIntentID, nil)
	return err
}

// Cancel releases the hold on a PaymentIntent.
func (s *StripeClient) Cancel(ctx context.Context, paymentIntentID string) error {
	_, err := paymentintent.Cancel(paymentIntentID, nil)
	return err
}
