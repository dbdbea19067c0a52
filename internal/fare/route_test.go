package fare

import "testing"

func TestParseDistanceMiles(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"5.2 mi", 5.2, true},
		{"12 miles", 12, true},
		{"  0.8 mi", 0.8, true},
		{"unknown", 0, false},
		{"", 0, false},
		{"mi 5.2", 0, false},
	}
	for _, c := range cases {
		got, ok := ParseDistanceMiles(c.in)
		if got != c.want || ok != c.ok {
			t.Errorf("ParseDistanceMiles(%q) = %v,%v want %v,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestParseDurationMinutes(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"22 mins", 22, true},
		{"1 hour 22 mins", 82, true},
		{"2 hours", 120, true},
		{"1 min", 1, true},
		{"shortly", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, ok := ParseDurationMinutes(c.in)
		if got != c.want || ok != c.ok {
			t.Errorf("ParseDurationMinutes(%q) = %v,%v want %v,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}
