// Package interpolate animates transfers along an event's hop path.
//
// Every transfer walks the path on its own, starting at the transfer's frame. Inbound walks
// go client, hop 1 to hop n, then the remote position; outbound walks go the opposite way. A leg
// that arrives at a hop lasts that hop's observed duration and the leg that arrives at the
// walk's destination lasts the trailing display window.
package interpolate

import (
	"math/rand/v2"

	"Go2NetReplay/internal/engine/timebase"
	"Go2NetReplay/internal/model"

	"github.com/paulmach/orb"
)

// Phase of a walk relative to a frame.
type Phase string

const (
	PhaseBefore Phase = "before"
	PhaseMoving Phase = "moving"
	PhaseAfter  Phase = "after"
)

// Segment is one leg of a walk, spanning [Start, End] frames.
type Segment struct {
	From  orb.Point
	To    orb.Point
	Start int
	End   int
}

// Progress returns the linear fraction of the segment covered at frame.
// Instantaneous segments are always complete.
func (s Segment) Progress(frame int) float64 {
	if s.End <= s.Start {
		return 1
	}
	p := float64(frame-s.Start) / float64(s.End-s.Start)
	return min(max(p, 0), 1)
}

// PositionAt linearly interpolates between From and To.
func (s Segment) PositionAt(frame int) orb.Point {
	p := s.Progress(frame)
	return orb.Point{
		s.From[0] + p*(s.To[0]-s.From[0]),
		s.From[1] + p*(s.To[1]-s.From[1]),
	}
}

// Path is the walk of one transfer.
type Path struct {
	Direction model.Direction
	Frame     int
	Seed      int64
	Segments  []Segment
}

// Position is a Path sampled at a frame.
type Position struct {
	Phase        Phase
	Segment      int
	SegmentStart orb.Point
	SegmentEnd   orb.Point
	Progress     float64
	Point        orb.Point
}

// BuildPath lays out the walk of t over ev's hops.
func BuildPath(cfg timebase.Config, ev *model.Event, t model.Transfer) Path {
	hops := ev.Hops
	if len(hops) == 0 {
		hops = []model.Hop{{Position: ev.Position, Duration: cfg.TrailingDisplay}}
	}

	type leg struct {
		to     orb.Point
		frames int
	}
	legs := make([]leg, 0, len(hops)+1)
	from := ev.ClientPosition
	if t.Direction == model.DirectionOut {
		from = ev.Position
		for i := len(hops) - 1; i >= 0; i-- {
			legs = append(legs, leg{to: hops[i].Position, frames: cfg.Frames(hops[i].Duration)})
		}
		legs = append(legs, leg{to: ev.ClientPosition, frames: cfg.Frames(cfg.TrailingDisplay)})
	} else {
		for _, h := range hops {
			legs = append(legs, leg{to: h.Position, frames: cfg.Frames(h.Duration)})
		}
		legs = append(legs, leg{to: ev.Position, frames: cfg.Frames(cfg.TrailingDisplay)})
	}

	p := Path{
		Direction: t.Direction,
		Frame:     t.Frame,
		Seed:      t.Timestamp.UnixMilli(),
		Segments:  make([]Segment, 0, len(legs)),
	}
	start := t.Frame
	for _, l := range legs {
		p.Segments = append(p.Segments, Segment{From: from, To: l.to, Start: start, End: start + l.frames})
		from = l.to
		start += l.frames
	}
	return p
}

// Start is the first frame of the walk.
func (p Path) Start() int {
	return p.Segments[0].Start
}

// End is the last frame of the walk.
func (p Path) End() int {
	return p.Segments[len(p.Segments)-1].End
}

// At samples the walk. Frames before the walk clamp to its origin and frames after it
// clamp to its destination.
func (p Path) At(frame int) Position {
	for i, s := range p.Segments {
		if frame >= s.Start && frame <= s.End {
			return Position{
				Phase:        PhaseMoving,
				Segment:      i,
				SegmentStart: s.From,
				SegmentEnd:   s.To,
				Progress:     s.Progress(frame),
				Point:        s.PositionAt(frame),
			}
		}
	}
	if frame < p.Start() {
		first := p.Segments[0]
		return Position{Phase: PhaseBefore, SegmentStart: first.From, SegmentEnd: first.To, Point: first.From}
	}
	lastIdx := len(p.Segments) - 1
	last := p.Segments[lastIdx]
	return Position{Phase: PhaseAfter, Segment: lastIdx, SegmentStart: last.From, SegmentEnd: last.To, Progress: 1, Point: last.To}
}

// Walks returns one path per transfer of ev. An event without transfers gets a single
// inbound walk from its start frame.
func Walks(cfg timebase.Config, ev *model.Event) []Path {
	if len(ev.Transfers) == 0 {
		return []Path{BuildPath(cfg, ev, model.Transfer{
			Direction: model.DirectionIn,
			Timestamp: ev.Timestamp,
			Frame:     ev.StartFrame,
		})}
	}
	paths := make([]Path, len(ev.Transfers))
	for i, t := range ev.Transfers {
		paths[i] = BuildPath(cfg, ev, t)
	}
	return paths
}

// Tilt returns the cosmetic arc tilt of a walk, in [0, maxTilt) for inbound walks and
// (-maxTilt, 0] for outbound ones. The same seed always yields the same tilt.
func Tilt(seed int64, dir model.Direction, maxTilt float64) float64 {
	r := rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>32))
	tilt := r.Float64() * maxTilt
	if dir == model.DirectionOut {
		return -tilt
	}
	return tilt
}

// Sample is the render state of one transfer walk at a frame.
type Sample struct {
	Transfer     int             `json:"transfer"`
	Direction    model.Direction `json:"direction"`
	Phase        Phase           `json:"phase"`
	Segment      int             `json:"segment"`
	SegmentStart orb.Point       `json:"segment_start"`
	SegmentEnd   orb.Point       `json:"segment_end"`
	Progress     float64         `json:"progress"`
	Position     orb.Point       `json:"position"`
	Tilt         float64         `json:"tilt"`
	DistanceKm   float64         `json:"distance_km"`
}

// Interpolate samples every walk of ev at frame. Selected events are drawn flat.
func Interpolate(cfg timebase.Config, ev *model.Event, frame int, selected bool) []Sample {
	walks := Walks(cfg, ev)
	samples := make([]Sample, len(walks))
	for i, w := range walks {
		pos := w.At(frame)
		var tilt float64
		if !selected {
			tilt = Tilt(w.Seed, w.Direction, cfg.MaxTilt)
		}
		samples[i] = Sample{
			Transfer:     i,
			Direction:    w.Direction,
			Phase:        pos.Phase,
			Segment:      pos.Segment,
			SegmentStart: pos.SegmentStart,
			SegmentEnd:   pos.SegmentEnd,
			Progress:     pos.Progress,
			Position:     pos.Point,
			Tilt:         tilt,
			DistanceKm:   ev.DistanceKm,
		}
	}
	return samples
}

// FollowTarget returns the point a camera following ev should head for at frame: the end
// of the leg that the most recently started walk occupies half a second ahead.
func FollowTarget(cfg timebase.Config, ev *model.Event, frame int) orb.Point {
	ahead := frame + cfg.FPS/2
	walks := Walks(cfg, ev)
	current := walks[0]
	for _, w := range walks[1:] {
		if w.Start() <= ahead && w.Start() >= current.Start() {
			current = w
		}
	}
	pos := current.At(ahead)
	if pos.Phase == PhaseBefore {
		return pos.SegmentStart
	}
	return pos.SegmentEnd
}
