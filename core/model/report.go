package model

import (
	"time"

	"github.com/kilianp07/porttrack/core/geo"
)

// Report is a raw position report. Optional numeric fields are pointers so
// that an absent value can be told apart from zero.
type Report struct {
	ID          string   `json:"id"`
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	Speed       *float64 `json:"speed,omitempty"`
	Heading     *float64 `json:"heading,omitempty"`
	Name        string   `json:"name,omitempty"`
	Type        string   `json:"type,omitempty"`
	Flag        string   `json:"flag,omitempty"`
	Destination string   `json:"destination,omitempty"`
}

// Valid reports whether the report carries an identifier.
func (r Report) Valid() bool { return r.ID != "" }

// Sample is a report with every default applied.
type Sample struct {
	ID          string
	Point       geo.Point
	Speed       float64
	Heading     float64
	Name        string
	Type        string
	Flag        string
	Destination string
	Time        time.Time
}

// Normalize fills absent fields from the prior record, falling back to zero
// for numeric values. prior may be nil for a vessel seen for the first time.
func (r Report) Normalize(prior *VesselRecord, now time.Time) Sample {
	s := Sample{
		ID:          r.ID,
		Point:       geo.Point{Lat: r.Lat, Lng: r.Lng},
		Name:        r.Name,
		Type:        r.Type,
		Flag:        r.Flag,
		Destination: r.Destination,
		Time:        now,
	}
	if r.Speed != nil {
		s.Speed = *r.Speed
	} else if prior != nil {
		s.Speed = prior.Speed
	}
	if r.Heading != nil {
		s.Heading = *r.Heading
	} else if prior != nil {
		s.Heading = prior.Heading
	}
	if prior != nil {
		s.Name = firstNonEmpty(s.Name, prior.Name)
		s.Type = firstNonEmpty(s.Type, prior.Type)
		s.Flag = firstNonEmpty(s.Flag, prior.Flag)
		s.Destination = firstNonEmpty(s.Destination, prior.Destination)
	}
	return s
}

func firstNonEmpty(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

// Float returns a pointer to f, handy for building reports.
func Float(f float64) *float64 { return &f }
