package model

import "time"

// Stats summarises the tracking store by status category.
type Stats struct {
	TotalTracked    int            `json:"totalTracked"`
	CurrentlyDocked int            `json:"currentlyDocked"`
	UnloadingNow    int            `json:"unloadingNow"`
	Inbound         int            `json:"inbound"`
	Departing       int            `json:"departing"`
	DepartedToday   int            `json:"departedToday"`
	LastUpdated     *time.Time     `json:"lastUpdated"`
	ByStatus        map[Status]int `json:"byStatus,omitempty"`
	ByTerminal      map[string]int `json:"byTerminal,omitempty"`
}

// Document is the serialised tracking store.
type Document struct {
	Vessels map[string]VesselRecord `json:"vessels"`
	History []TransitionEvent       `json:"history"`
	Stats   Stats                   `json:"stats"`
	// LastSeq is the sequence number of the last applied report batch.
	LastSeq uint64 `json:"lastSeq,omitempty"`
}

// EmptyDocument returns a store with no vessels and no history.
func EmptyDocument() Document {
	return Document{Vessels: map[string]VesselRecord{}, History: []TransitionEvent{}}
}

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
	c := Document{
		Vessels: make(map[string]VesselRecord, len(d.Vessels)),
		History: append([]TransitionEvent(nil), d.History...),
		Stats:   d.Stats,
		LastSeq: d.LastSeq,
	}
	if c.History == nil {
		c.History = []TransitionEvent{}
	}
	for id, v := range d.Vessels {
		c.Vessels[id] = v.Clone()
	}
	if d.Stats.ByStatus != nil {
		c.Stats.ByStatus = make(map[Status]int, len(d.Stats.ByStatus))
		for k, v := range d.Stats.ByStatus {
			c.Stats.ByStatus[k] = v
		}
	}
	if d.Stats.ByTerminal != nil {
		c.Stats.ByTerminal = make(map[string]int, len(d.Stats.ByTerminal))
		for k, v := range d.Stats.ByTerminal {
			c.Stats.ByTerminal[k] = v
		}
	}
	if d.Stats.LastUpdated != nil {
		t := *d.Stats.LastUpdated
		c.Stats.LastUpdated = &t
	}
	return c
}
