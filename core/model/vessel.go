package model

import (
	"time"

	"github.com/kilianp07/porttrack/core/geo"
)

// AnnotationExtendedStay marks a vessel docked for longer than the unloading window.
const AnnotationExtendedStay = "extended-stay"

// Position is one entry of a vessel's track.
type Position struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Speed     float64   `json:"speed"`
	Heading   float64   `json:"heading"`
	Timestamp time.Time `json:"timestamp"`
}

// VesselRecord is the persisted state of a tracked vessel.
type VesselRecord struct {
	ID               string     `json:"id"`
	Name             string     `json:"name,omitempty"`
	Type             string     `json:"type,omitempty"`
	Flag             string     `json:"flag,omitempty"`
	Lat              float64    `json:"lat"`
	Lng              float64    `json:"lng"`
	Speed            float64    `json:"speed"`
	Heading          float64    `json:"heading"`
	Destination      string     `json:"destination,omitempty"`
	Status           Status     `json:"status"`
	Terminal         *string    `json:"terminal"`
	Annotation       string     `json:"annotation,omitempty"`
	FirstSeen        time.Time  `json:"firstSeen"`
	LastSeen         time.Time  `json:"lastSeen"`
	DockedAt         *time.Time `json:"dockedAt"`
	UnloadingStarted *time.Time `json:"unloadingStarted"`
	Positions        []Position `json:"positions"`
}

// Point returns the last known coordinate.
func (v VesselRecord) Point() geo.Point { return geo.Point{Lat: v.Lat, Lng: v.Lng} }

// TerminalName returns the current terminal or the empty string.
func (v VesselRecord) TerminalName() string {
	if v.Terminal == nil {
		return ""
	}
	return *v.Terminal
}

// Clone returns a deep copy so callers cannot alias store internals.
func (v VesselRecord) Clone() VesselRecord {
	c := v
	if v.Terminal != nil {
		t := *v.Terminal
		c.Terminal = &t
	}
	if v.DockedAt != nil {
		t := *v.DockedAt
		c.DockedAt = &t
	}
	if v.UnloadingStarted != nil {
		t := *v.UnloadingStarted
		c.UnloadingStarted = &t
	}
	if v.Positions != nil {
		c.Positions = append([]Position(nil), v.Positions...)
	}
	return c
}

// TransitionEvent records a status change. Events are never mutated.
type TransitionEvent struct {
	ID        string    `json:"id,omitempty"`
	VesselID  string    `json:"vesselId"`
	Name      string    `json:"name,omitempty"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	Terminal  *string   `json:"terminal"`
	Timestamp time.Time `json:"timestamp"`
}

// TerminalZone is a circular geofence around a cargo terminal.
type TerminalZone struct {
	Name     string    `json:"name"`
	Center   geo.Point `json:"center"`
	RadiusNM float64   `json:"radius_nm"`
}

// Contains reports whether p lies within the zone radius.
func (z TerminalZone) Contains(p geo.Point) bool {
	return geo.PlanarNM(z.Center, p) <= z.RadiusNM
}
