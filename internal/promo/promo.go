package promo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type DiscountType string

const (
	FixedAmount DiscountType = "fixed_amount"
	Percentage  DiscountType = "percentage"
	SetPrice    DiscountType = "set_price"
)

// Discount is the promo service's verdict on a code.
type Discount struct {
	Valid bool         `json:"valid"`
	Type  DiscountType `json:"discount_type"`
	Value float64      `json:"discount_value"`
}

// Client validates promo codes against the external promo service.
type Client interface {
	Validate(code string, rideAmount float64) (Discount, error)
}

// HTTPClient is the production promo service client.
type HTTPClient struct {
	Endpoint string
	Client   *http.Client
}

func NewHTTPClient(endpoint string) *HTTPClient {
	return &HTTPClient{Endpoint: endpoint, Client: &http.Client{Timeout: 2 * time.Second}}
}

func (c *HTTPClient) Validate(code string, rideAmount float64) (Discount, error) {
	body, _ := json.Marshal(map[string]any{"code": code, "ride_amount": rideAmount})
	resp, err := c.Client.Post(c.Endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return Discount{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Discount{}, fmt.Errorf("promo service status %d", resp.StatusCode)
	}
	var d Discount
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return Discount{}, err
	}
	return d, nil
}

// Apply computes the discounted total. Invalid discounts pass the total
// through unchanged; results never go below zero.
func Apply(total float64, d Discount) float64 {
	if !d.Valid {
		return total
	}
	var out float64
	switch d.Type {
	case FixedAmount:
		out = total - d.Value
	case Percentage:
		out = total * (1 - d.Value/100)
	case SetPrice:
		out = d.Value
	default:
		return total
	}
	if out < 0 {
		return 0
	}
	return out
}
