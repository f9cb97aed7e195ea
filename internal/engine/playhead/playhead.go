// Package playhead derives the set of events visible at a given frame.
//
// Everything here is a pure function of (events, frame, options): events are never mutated
// and each call returns fresh views, so results may be cached or compared freely. Frames may
// arrive in any order, including backwards seeks.
package playhead

import (
	"Go2NetReplay/internal/engine/timebase"
	"Go2NetReplay/internal/model"
)

// Options narrows the view.
type Options struct {
	// OnlyActive keeps only events whose active window contains the frame.
	OnlyActive bool
	// Clients keeps only events of these client addresses. Empty means all.
	Clients []string
	// Hosts keeps only events whose host is listed, typically the union of the selected
	// tags' domains. Empty means all.
	Hosts []string
	// Selected marks the event with this id.
	Selected string
	// OnlySelected narrows the view to the selected event.
	OnlySelected bool
}

// EventView is an event decorated with its frame-dependent state.
type EventView struct {
	*model.Event
	Active        bool  `json:"active"`
	Selected      bool  `json:"selected"`
	IncomingBytes int64 `json:"incoming_bytes"`
	OutgoingBytes int64 `json:"outgoing_bytes"`
}

// TotalBytes is the sum of bytes moved so far in both directions.
func (v EventView) TotalBytes() int64 {
	return v.IncomingBytes + v.OutgoingBytes
}

// IsActive reports whether ev is between its start and its close plus grace at frame.
func IsActive(cfg timebase.Config, ev *model.Event, frame int) bool {
	grace := cfg.Frames(cfg.ActiveGrace)
	return ev.StartFrame <= frame && ev.ClosedFrame+grace >= frame
}

// BytesAt sums the bytes moved by ev up to and including frame.
func BytesAt(ev *model.Event, frame int) (incoming, outgoing int64) {
	for _, t := range ev.Transfers {
		if t.Frame > frame {
			continue
		}
		switch t.Direction {
		case model.DirectionIn:
			incoming += t.Bytes
		case model.DirectionOut:
			outgoing += t.Bytes
		}
	}
	return incoming, outgoing
}

// Filter returns the views of events visible at frame, in input order.
func Filter(cfg timebase.Config, events []*model.Event, frame int, opts Options) []EventView {
	clients := toSet(opts.Clients)
	hosts := toSet(opts.Hosts)

	views := make([]EventView, 0, len(events))
	for _, ev := range events {
		active := IsActive(cfg, ev, frame)
		if opts.OnlyActive {
			if !active {
				continue
			}
		} else if ev.StartFrame > frame {
			continue
		}
		if len(clients) > 0 {
			if _, ok := clients[ev.ClientAddress]; !ok {
				continue
			}
		}
		if len(hosts) > 0 {
			if _, ok := hosts[ev.Host]; !ok {
				continue
			}
		}
		selected := opts.Selected != "" && ev.ID == opts.Selected
		if opts.OnlySelected && !selected {
			continue
		}

		in, out := BytesAt(ev, frame)
		views = append(views, EventView{
			Event:         ev,
			Active:        active,
			Selected:      selected,
			IncomingBytes: in,
			OutgoingBytes: out,
		})
	}
	return views
}

// Events strips the decoration from views.
func Events(views []EventView) []*model.Event {
	events := make([]*model.Event, len(views))
	for i := range views {
		events[i] = views[i].Event
	}
	return events
}

// Find returns the view of the event with id.
func Find(views []EventView, id string) (EventView, bool) {
	for _, v := range views {
		if v.ID == id {
			return v, true
		}
	}
	return EventView{}, false
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
