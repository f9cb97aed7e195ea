// Package store holds the normalized events of one session.
package store

import (
	"errors"
	"sync"
	"time"

	"Go2NetReplay/internal/engine/normalizer"
	"Go2NetReplay/internal/model"
)

// ErrUnknownEvent is returned when an id is not in the store.
var ErrUnknownEvent = errors.New("store: unknown event")

// UpsertResult describes the effect of one Upsert.
type UpsertResult struct {
	Added        int              `json:"added"`
	Replaced     int              `json:"replaced"`
	Stale        int              `json:"stale"`
	Renormalized bool             `json:"renormalized"`
	Stats        normalizer.Stats `json:"stats"`
}

// Store is an append-only, id-keyed event store. Re-inserting an id replaces the event in
// place; an unusable update of a stored id leaves the previous event in place and is counted
// as stale. The raw records are retained so that every event can be rebuilt when the frame
// origin moves backwards.
type Store struct {
	mu         sync.RWMutex
	normalizer *normalizer.Normalizer
	session    model.SessionInfo

	records []model.RawRecord
	events  []*model.Event
	index   map[string]int
	minDate time.Time
}

// New creates an empty store for session.
func New(n *normalizer.Normalizer, session model.SessionInfo) *Store {
	return &Store{
		normalizer: n,
		session:    session,
		index:      make(map[string]int),
	}
}

// Upsert normalizes records and merges them into the store.
//
// The frame origin only moves backwards. When a batch contains a record older than the
// current origin, every stored event is rebuilt against the new origin so that frames of
// old and new events stay comparable; otherwise only the batch is normalized.
func (s *Store) Upsert(records []model.RawRecord) UpsertResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	origin := s.minDate
	batchMin, ok := normalizer.MinDate(records)
	if ok && (origin.IsZero() || batchMin.Before(origin)) {
		origin = batchMin
	}
	moved := !s.minDate.IsZero() && origin.Before(s.minDate)

	res := s.normalizer.Normalize(s.session, records, &origin)
	out := UpsertResult{Stats: res.Stats}

	for i := range records {
		if !normalizer.Usable(&records[i]) {
			if _, exists := s.index[records[i].ID]; exists {
				out.Stale++
			}
			continue
		}
		if j, exists := s.index[records[i].ID]; exists {
			s.records[j] = records[i]
		} else {
			s.index[records[i].ID] = len(s.records)
			s.records = append(s.records, records[i])
			s.events = append(s.events, nil)
		}
	}
	// Replacements are counted per distinct id, in case the batch repeats one.
	counted := make(map[string]struct{}, len(res.Events))
	for _, ev := range res.Events {
		j := s.index[ev.ID]
		if _, seen := counted[ev.ID]; !seen {
			if s.events[j] == nil {
				out.Added++
			} else {
				out.Replaced++
			}
			counted[ev.ID] = struct{}{}
		}
		s.events[j] = ev
	}
	if !origin.IsZero() {
		s.minDate = origin
	}

	if moved {
		s.rebuild()
		out.Renormalized = true
	}
	return out
}

// rebuild renormalizes every retained record against the current origin.
func (s *Store) rebuild() {
	origin := s.minDate
	res := s.normalizer.Normalize(s.session, s.records, &origin)
	for _, ev := range res.Events {
		s.events[s.index[ev.ID]] = ev
	}
}

// SetSession replaces the session context and rebuilds the events, since the client
// position of every event depends on it.
func (s *Store) SetSession(session model.SessionInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
	if len(s.records) > 0 {
		s.rebuild()
	}
}

// Session returns the session context.
func (s *Store) Session() model.SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Events returns the events in insertion order. Events are shared and must not be modified.
func (s *Store) Events() []*model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Event, len(s.events))
	copy(out, s.events)
	return out
}

// Records returns a copy of the retained raw records in insertion order.
func (s *Store) Records() []model.RawRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.RawRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Get returns the event with id.
func (s *Store) Get(id string) (*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return nil, ErrUnknownEvent
	}
	return s.events[i], nil
}

// MinDate returns the frame origin. ok is false while the store is empty.
func (s *Store) MinDate() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.minDate, !s.minDate.IsZero()
}

// EndFrames returns the end frame of every event.
func (s *Store) EndFrames() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	frames := make([]int, len(s.events))
	for i, ev := range s.events {
		frames[i] = ev.EndFrame
	}
	return frames
}

// Len returns the number of events.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Reset empties the store and forgets the frame origin.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.events = nil
	s.index = make(map[string]int)
	s.minDate = time.Time{}
}
