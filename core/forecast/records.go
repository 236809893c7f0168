package forecast

import "github.com/kilianp07/porttrack/core/model"

// Arriving reports whether a vessel in status st is still heading to port.
func Arriving(st model.Status) bool {
	switch st {
	case model.StatusInbound, model.StatusApproaching, model.StatusDocking:
		return true
	}
	return false
}

// FromRecords converts tracked vessels that are still arriving into forecast
// snapshots. A recorded speed of zero becomes an absent speed.
func FromRecords(records []model.VesselRecord) []Vessel {
	out := make([]Vessel, 0, len(records))
	for _, r := range records {
		if !Arriving(r.Status) {
			continue
		}
		v := Vessel{ID: r.ID, Name: r.Name, Lat: r.Lat, Lng: r.Lng}
		if r.Speed > 0 {
			speed := r.Speed
			v.Speed = &speed
		}
		out = append(out, v)
	}
	return out
}
