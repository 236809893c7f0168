package tracker

import (
	"fmt"
	"time"

	"github.com/kilianp07/porttrack/core/geo"
	"github.com/kilianp07/porttrack/core/model"
)

// ClassifierConfig holds the thresholds of the status rules. The defaults are
// tuned for the Houston ship channel.
type ClassifierConfig struct {
	DockedMaxSpeed        float64         `json:"docked_max_speed"`
	DockingMaxSpeed       float64         `json:"docking_max_speed"`
	UnloadingAfterMinutes float64         `json:"unloading_after_minutes"`
	ExtendedStayHours     float64         `json:"extended_stay_hours"`
	ApproachArea          geo.BoundingBox `json:"approach_area"`
	DepartingWestOf       float64         `json:"departing_west_of"`
	OpenWaterSouthOf      float64         `json:"open_water_south_of"`
	// Headings strictly above SeawardHeadingFrom or strictly below
	// SeawardHeadingTo count as inbound in open water.
	SeawardHeadingFrom float64 `json:"seaward_heading_from"`
	SeawardHeadingTo   float64 `json:"seaward_heading_to"`
}

// Config defines tracker behaviour and retention.
type Config struct {
	Terminals       []model.TerminalZone `json:"terminals"`
	Classifier      ClassifierConfig     `json:"classifier"`
	MaxEvents       int                  `json:"max_events"`
	MaxPositions    int                  `json:"max_positions"`
	StaleAfterHours float64              `json:"stale_after_hours"`
}

// DefaultTerminals is the terminal table of the Port of Houston.
func DefaultTerminals() []model.TerminalZone {
	return []model.TerminalZone{
		{Name: "Barbours Cut", Center: geo.Point{Lat: 29.7200, Lng: -95.0000}, RadiusNM: 1.5},
		{Name: "Bayport", Center: geo.Point{Lat: 29.6130, Lng: -95.0160}, RadiusNM: 1.5},
		{Name: "Jacinto Port", Center: geo.Point{Lat: 29.7530, Lng: -95.0930}, RadiusNM: 1.0},
		{Name: "Turning Basin", Center: geo.Point{Lat: 29.7500, Lng: -95.2900}, RadiusNM: 1.0},
		{Name: "Texas City", Center: geo.Point{Lat: 29.3700, Lng: -94.8900}, RadiusNM: 1.5},
	}
}

// SetDefaults fills unset values.
func (c *ClassifierConfig) SetDefaults() {
	if c.DockedMaxSpeed == 0 {
		c.DockedMaxSpeed = 0.5
	}
	if c.DockingMaxSpeed == 0 {
		c.DockingMaxSpeed = 3
	}
	if c.UnloadingAfterMinutes == 0 {
		c.UnloadingAfterMinutes = 30
	}
	if c.ExtendedStayHours == 0 {
		c.ExtendedStayHours = 24
	}
	if c.ApproachArea == (geo.BoundingBox{}) {
		c.ApproachArea = geo.BoundingBox{MinLat: 29.3, MaxLat: 29.8, MinLng: -95.3, MaxLng: -94.7}
	}
	if c.DepartingWestOf == 0 {
		c.DepartingWestOf = -95.1
	}
	if c.OpenWaterSouthOf == 0 {
		c.OpenWaterSouthOf = 29.3
	}
	if c.SeawardHeadingFrom == 0 && c.SeawardHeadingTo == 0 {
		c.SeawardHeadingFrom = 270
		c.SeawardHeadingTo = 90
	}
}

// Validate checks the thresholds are consistent.
func (c ClassifierConfig) Validate() error {
	if c.DockedMaxSpeed <= 0 || c.DockingMaxSpeed < c.DockedMaxSpeed {
		return fmt.Errorf("docking_max_speed must be >= docked_max_speed > 0")
	}
	if c.ExtendedStayHours*60 <= c.UnloadingAfterMinutes {
		return fmt.Errorf("extended_stay_hours must exceed unloading_after_minutes")
	}
	a := c.ApproachArea
	if a.MinLat > a.MaxLat || a.MinLng > a.MaxLng {
		return fmt.Errorf("approach_area is inverted")
	}
	return nil
}

// SetDefaults fills unset values.
func (c *Config) SetDefaults() {
	if len(c.Terminals) == 0 {
		c.Terminals = DefaultTerminals()
	}
	if c.MaxEvents <= 0 {
		c.MaxEvents = 500
	}
	if c.MaxPositions <= 0 {
		c.MaxPositions = 50
	}
	if c.StaleAfterHours <= 0 {
		c.StaleAfterHours = 48
	}
	c.Classifier.SetDefaults()
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	for _, z := range c.Terminals {
		if z.Name == "" {
			return fmt.Errorf("terminal name is required")
		}
		if z.RadiusNM <= 0 {
			return fmt.Errorf("terminal %s: radius_nm must be positive", z.Name)
		}
		if !z.Center.Valid() {
			return fmt.Errorf("terminal %s: invalid center", z.Name)
		}
	}
	return c.Classifier.Validate()
}

// StaleAfter returns the default sweep horizon.
func (c Config) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterHours * float64(time.Hour))
}
