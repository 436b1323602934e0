// Package timeutil pins domain timestamps to UTC. Order and token rows
// carry timestamps that get compared against webhook events delivered from
// other regions, so everything the service persists goes through Now rather
// than time.Now. Duration measurements (latency timers) keep using time.Now
// directly; only wall-clock values that are stored or compared need this.
package timeutil

import "time"

// Now returns the current time in UTC
func Now() time.Time {
	return time.Now().UTC()
}
