package model

import (
	"time"

	"github.com/paulmach/orb"
)

// Direction of a transfer relative to the client.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// ParseDirection maps the wire value to a Direction. ok is false for anything else.
func ParseDirection(s string) (Direction, bool) {
	switch Direction(s) {
	case DirectionIn, DirectionOut:
		return Direction(s), true
	default:
		return "", false
	}
}

// Hop is a waypoint on an event's network path.
type Hop struct {
	Position orb.Point     `json:"position"`
	Duration time.Duration `json:"duration"`
}

// Transfer is a normalized byte movement with its frame.
type Transfer struct {
	Direction Direction `json:"direction"`
	Bytes     int64     `json:"bytes"`
	Timestamp time.Time `json:"timestamp"`
	Frame     int       `json:"frame"`
}

// Event is one normalized network exchange. Events are immutable once built;
// frame-dependent state lives in the playhead view.
type Event struct {
	ID             string     `json:"id"`
	Host           string     `json:"host"`
	Country        string     `json:"country"`
	City           string     `json:"city"`
	ClientAddress  string     `json:"client_address"`
	Position       orb.Point  `json:"position"`
	ClientPosition orb.Point  `json:"client_position"`
	Hops           []Hop      `json:"hops"`
	Transfers      []Transfer `json:"transfers"`
	Timestamp      time.Time  `json:"timestamp"`
	StartFrame     int        `json:"start_frame"`
	EndFrame       int        `json:"end_frame"`
	ClosedFrame    int        `json:"closed_frame"`
	DistanceKm     float64    `json:"distance_km"`
}

// TotalBytes sums all transfers of dir regardless of frame.
func (e *Event) TotalBytes(dir Direction) int64 {
	var total int64
	for _, t := range e.Transfers {
		if t.Direction == dir {
			total += t.Bytes
		}
	}
	return total
}
