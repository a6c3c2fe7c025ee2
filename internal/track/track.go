// Package track holds the fixed world layout: snack stations and the
// start/finish zone, plus lap completion tracking.
package track

import "math"

// Point is a world position.
type Point struct {
	X float64
	Y float64
}

// Dist is the euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Station is a snack stop. Delivered is reset once per lap.
type Station struct {
	ID        string
	Pos       Point
	Radius    float64
	Delivered bool
}

// InRange reports whether p lies within the trigger radius.
func (s *Station) InRange(p Point) bool {
	return s.Pos.Dist(p) <= s.Radius
}

// Zone is the start/finish area.
type Zone struct {
	Pos    Point
	Radius float64
}

func (z Zone) Contains(p Point) bool {
	return z.Pos.Dist(p) <= z.Radius
}

type Track struct {
	Stations []*Station
	Start    Zone
}

// AllDelivered reports whether every station has been served this lap.
func (t *Track) AllDelivered() bool {
	for _, s := range t.Stations {
		if !s.Delivered {
			return false
		}
	}
	return true
}

// ResetDeliveries clears every station's delivered flag.
func (t *Track) ResetDeliveries() {
	for _, s := range t.Stations {
		s.Delivered = false
	}
}

// Station returns the station with the given id.
func (t *Track) Station(id string) (*Station, bool) {
	for _, s := range t.Stations {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}

// Default is the oval used by the terminal client: start zone at the origin and
// three stations spread around the loop.
func Default() *Track {
	return &Track{
		Start: Zone{Pos: Point{X: 0, Y: 0}, Radius: 6},
		Stations: []*Station{
			{ID: "bakery", Pos: Point{X: 40, Y: 10}, Radius: 4},
			{ID: "fruit", Pos: Point{X: 60, Y: 50}, Radius: 4},
			{ID: "soda", Pos: Point{X: 10, Y: 60}, Radius: 4},
		},
	}
}
