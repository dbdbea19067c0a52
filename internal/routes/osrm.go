package routes

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/example/medride/internal/fare"
	"github.com/example/medride/internal/models"
)

// Client resolves route metrics between two points. The quote layer treats
// failures as a derived-data gap, never a hard error.
type Client interface {
	Lookup(from, to models.Coord) (fare.RouteInfo, error)
}

// OSRMClient performs route lookups against an OSRM HTTP server and renders
// the result in the provider string format the calculator parses.
type OSRMClient struct {
	Endpoint string
	Client   *http.Client
}

func NewOSRMClient(endpoint string) *OSRMClient {
	return &OSRMClient{Endpoint: endpoint, Client: &http.Client{Timeout: 2 * time.Second}}
}

const metersPerMile = 1609.344

// Lookup queries OSRM /route between points.
func (o *OSRMClient) Lookup(from, to models.Coord) (fare.RouteInfo, error) {
	// OSRM route query: /route/v1/driving/{lng1},{lat1};{lng2},{lat2}?overview=false
	url := fmt.Sprintf("%s/route/v1/driving/%.6f,%.6f;%.6f,%.6f?overview=false", o.Endpoint, from.Lng, from.Lat, to.Lng, to.Lat)
	resp, err := o.Client.Get(url)
	if err != nil {
		return fare.RouteInfo{}, err
	}
	defer resp.Body.Close()
	var out struct {
		Routes []struct {
			Duration float64 `json:"duration"` // seconds
			Distance float64 `json:"distance"` // meters
		} `json:"routes"`
		Code string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fare.RouteInfo{}, err
	}
	if out.Code != "Ok" || len(out.Routes) == 0 {
		return fare.RouteInfo{}, fmt.Errorf("osrm no route: %v", out.Code)
	}
	r := out.Routes[0]
	return fare.RouteInfo{
		Distance: fmt.Sprintf("%.1f mi", r.Distance/metersPerMile),
		Duration: formatDuration(r.Duration / 60),
	}, nil
}

func formatDuration(minutes float64) string {
	mins := int(math.Round(minutes))
	if mins >= 60 {
		h := mins / 60
		m := mins % 60
		if h == 1 {
			return fmt.Sprintf("1 hour %d mins", m)
		}
		return fmt.Sprintf("%d hours %d mins", h, m)
	}
	return fmt.Sprintf("%d mins", mins)
}
