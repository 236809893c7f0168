// Package forecast estimates vessel arrivals at the port and turns them into
// congestion windows. Every function is pure: it reads a caller supplied
// snapshot, never mutates it and keeps no state between calls.
package forecast
