package forecast

import (
	"fmt"

	"github.com/kilianp07/porttrack/core/geo"
)

// Config holds the port reference point and the capacity model.
type Config struct {
	Port          geo.Point `json:"port"`
	DailyCapacity float64   `json:"daily_capacity"`
	DefaultSpeed  float64   `json:"default_speed"`
}

// SetDefaults applies the Port of Houston values.
func (c *Config) SetDefaults() {
	if c.Port == (geo.Point{}) {
		c.Port = geo.Point{Lat: 29.7604, Lng: -95.0077}
	}
	if c.DailyCapacity <= 0 {
		c.DailyCapacity = 8
	}
	if c.DefaultSpeed <= 0 {
		c.DefaultSpeed = 10
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if !c.Port.Valid() {
		return fmt.Errorf("port reference point out of range")
	}
	if c.DailyCapacity <= 0 {
		return fmt.Errorf("daily_capacity must be positive")
	}
	return nil
}
