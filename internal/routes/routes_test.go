package routes

import (
	"errors"
	"testing"
	"time"

	"github.com/example/medride/internal/fare"
	"github.com/example/medride/internal/models"
)

var (
	pointA = models.Coord{Lat: 40.7, Lng: -74.0}
	pointB = models.Coord{Lat: 40.7, Lng: -73.9}
)

type stubClient struct {
	info  fare.RouteInfo
	err   error
	calls int
}

func (s *stubClient) Lookup(from, to models.Coord) (fare.RouteInfo, error) {
	s.calls++
	return s.info, s.err
}

func TestEstimatorProducesParseableMetrics(t *testing.T) {
	ri, err := Estimator{}.Lookup(pointA, pointB)
	if err != nil {
		t.Fatal(err)
	}
	miles, ok := fare.ParseDistanceMiles(ri.Distance)
	if !ok {
		t.Fatalf("unparseable distance %q", ri.Distance)
	}
	// 0.1 degrees of longitude at this latitude is ~5.2 crow-flight miles
	if miles < 6 || miles > 8 {
		t.Fatalf("estimated miles = %v, want road-adjusted ~6.8", miles)
	}
	mins, ok := fare.ParseDurationMinutes(ri.Duration)
	if !ok {
		t.Fatalf("unparseable duration %q", ri.Duration)
	}
	if mins <= 0 {
		t.Fatalf("estimated minutes = %v", mins)
	}
}

func TestEstimatorZeroDistance(t *testing.T) {
	ri, err := Estimator{}.Lookup(pointA, pointA)
	if err != nil {
		t.Fatal(err)
	}
	miles, ok := fare.ParseDistanceMiles(ri.Distance)
	if !ok || miles != 0 {
		t.Fatalf("distance = %q, want 0.0 mi", ri.Distance)
	}
}

func TestFallbackClient(t *testing.T) {
	primary := &stubClient{err: errors.New("provider down")}
	fallback := &stubClient{info: fare.RouteInfo{Distance: "5.0 mi", Duration: "12 mins"}}
	fc := &FallbackClient{Primary: primary, Fallback: fallback}

	ri, err := fc.Lookup(pointA, pointB)
	if err != nil {
		t.Fatal(err)
	}
	if ri.Distance != "5.0 mi" {
		t.Fatalf("distance = %q, want fallback value", ri.Distance)
	}

	primary.err = nil
	primary.info = fare.RouteInfo{Distance: "6.2 mi", Duration: "15 mins"}
	ri, err = fc.Lookup(pointA, pointB)
	if err != nil {
		t.Fatal(err)
	}
	if ri.Distance != "6.2 mi" {
		t.Fatalf("distance = %q, want primary value", ri.Distance)
	}
}

func TestCachedClientServesFromCache(t *testing.T) {
	inner := &stubClient{info: fare.RouteInfo{Distance: "5.0 mi", Duration: "12 mins"}}
	cc := &CachedClient{Inner: inner, Cache: NewCache(time.Minute)}

	for i := 0; i < 3; i++ {
		if _, err := cc.Lookup(pointA, pointB); err != nil {
			t.Fatal(err)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("inner calls = %d, want 1", inner.calls)
	}

	// reverse direction is a different route
	if _, err := cc.Lookup(pointB, pointA); err != nil {
		t.Fatal(err)
	}
	if inner.calls != 2 {
		t.Fatalf("inner calls = %d, want 2", inner.calls)
	}
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache(time.Millisecond)
	c.Set(pointA, pointB, fare.RouteInfo{Distance: "5.0 mi"})
	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get(pointA, pointB); ok {
		t.Fatal("expired entry served")
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		mins float64
		want string
	}{
		{12, "12 mins"},
		{60, "1 hour 0 mins"},
		{82, "1 hour 22 mins"},
		{130, "2 hours 10 mins"},
	}
	for _, c := range cases {
		if got := formatDuration(c.mins); got != c.want {
			t.Errorf("formatDuration(%v) = %q, want %q", c.mins, got, c.want)
		}
	}
}
