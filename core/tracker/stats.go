package tracker

import (
	"time"

	"github.com/kilianp07/porttrack/core/model"
)

// computeStats derives the statistics snapshot. departedToday counts the
// departure transitions since UTC midnight of now.
func computeStats(doc model.Document, now time.Time) model.Stats {
	st := model.Stats{
		TotalTracked: len(doc.Vessels),
		ByStatus:     map[model.Status]int{},
		ByTerminal:   map[string]int{},
	}
	for _, v := range doc.Vessels {
		st.ByStatus[v.Status]++
		if name := v.TerminalName(); name != "" {
			st.ByTerminal[name]++
		}
		switch v.Status {
		case model.StatusDocked:
			st.CurrentlyDocked++
		case model.StatusUnloading:
			st.UnloadingNow++
		case model.StatusInbound, model.StatusApproaching:
			st.Inbound++
		case model.StatusDeparting:
			st.Departing++
		}
	}
	utc := now.UTC()
	midnight := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
	for _, ev := range doc.History {
		if ev.Timestamp.Before(midnight) {
			continue
		}
		if ev.To == model.StatusDeparting || ev.To == model.StatusOutbound {
			st.DepartedToday++
		}
	}
	ts := now
	st.LastUpdated = &ts
	return st
}
