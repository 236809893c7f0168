package model

import "fmt"

// Status is the operational state of a vessel near the port.
type Status string

const (
	StatusInbound     Status = "inbound"
	StatusApproaching Status = "approaching"
	StatusDocking     Status = "docking"
	StatusDocked      Status = "docked"
	StatusUnloading   Status = "unloading"
	StatusDeparting   Status = "departing"
	StatusOutbound    Status = "outbound"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusInbound,
	StatusApproaching,
	StatusDocking,
	StatusDocked,
	StatusUnloading,
	StatusDeparting,
	StatusOutbound,
}

// ParseStatus converts s into a Status.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// AtBerth reports whether the vessel is moored at a terminal.
func (s Status) AtBerth() bool {
	return s == StatusDocked || s == StatusUnloading
}

func (s Status) String() string { return string(s) }
