// Package normalizer turns raw captured records into frame-annotated events.
package normalizer

import (
	"math"
	"sort"
	"time"

	"Go2NetReplay/internal/engine/timebase"
	"Go2NetReplay/internal/model"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/sirupsen/logrus"
)

// DefaultClientPosition is used when neither the session nor the configuration knows
// where the client is. [lon, lat]
var DefaultClientPosition = orb.Point{11.91737, 57.69226}

// Drop reasons.
const (
	ReasonID        = "id"
	ReasonPosition  = "position"
	ReasonTimestamp = "timestamp"
	ReasonBytes     = "bytes"
	ReasonDirection = "direction"
)

// Stats counts what a Normalize call kept and dropped.
type Stats struct {
	Records          int            `json:"records"`
	Events           int            `json:"events"`
	DroppedRecords   map[string]int `json:"dropped_records"`
	DroppedTransfers map[string]int `json:"dropped_transfers"`
}

// Dropped returns the total number of records dropped.
func (s Stats) Dropped() int {
	n := 0
	for _, c := range s.DroppedRecords {
		n += c
	}
	return n
}

// Result of a Normalize call.
type Result struct {
	Events  []*model.Event
	Stats   Stats
	MinDate time.Time
}

// Normalizer converts raw records into events using a fixed timing configuration.
type Normalizer struct {
	timing        timebase.Config
	defaultClient orb.Point
	logger        logrus.FieldLogger
}

// New creates a Normalizer. A nil logger falls back to the logrus standard logger and an
// empty defaultClient to DefaultClientPosition.
func New(timing timebase.Config, defaultClient orb.Point, logger logrus.FieldLogger) *Normalizer {
	if defaultClient == (orb.Point{}) {
		defaultClient = DefaultClientPosition
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Normalizer{
		timing:        timing.WithDefaults(),
		defaultClient: defaultClient,
		logger:        logger,
	}
}

// Normalize runs a default Normalizer.
func Normalize(timing timebase.Config, session model.SessionInfo, records []model.RawRecord, minDate *time.Time) Result {
	return New(timing, orb.Point{}, nil).Normalize(session, records, minDate)
}

// ClientPosition resolves the client position of a session.
func (n *Normalizer) ClientPosition(session model.SessionInfo) orb.Point {
	if session.Lat != nil && session.Lon != nil && *session.Lat != 0 && *session.Lon != 0 {
		return orb.Point{*session.Lon, *session.Lat}
	}
	return n.defaultClient
}

// Normalize converts records into events.
//
// minDate is the frame origin. When nil the earliest timestamp of the batch is used; callers
// appending to an existing store must pass the store's origin so frames stay comparable.
// Records without a usable position or timestamp are dropped and counted, never returned
// as errors. The output preserves input order.
func (n *Normalizer) Normalize(session model.SessionInfo, records []model.RawRecord, minDate *time.Time) Result {
	res := Result{
		Stats: Stats{
			Records:          len(records),
			DroppedRecords:   make(map[string]int),
			DroppedTransfers: make(map[string]int),
		},
	}

	if minDate != nil {
		res.MinDate = *minDate
	} else if md, ok := MinDate(records); ok {
		res.MinDate = md
	}

	client := n.ClientPosition(session)
	res.Events = make([]*model.Event, 0, len(records))
	for i := range records {
		ev, reason := n.event(&records[i], client, res.MinDate, &res.Stats)
		if reason != "" {
			res.Stats.DroppedRecords[reason]++
			n.logger.WithFields(logrus.Fields{
				"id":     records[i].ID,
				"host":   records[i].Host,
				"reason": reason,
			}).Debug("Dropping record")
			continue
		}
		res.Events = append(res.Events, ev)
	}
	res.Stats.Events = len(res.Events)

	if dropped := res.Stats.Dropped(); dropped > 0 {
		n.logger.WithFields(logrus.Fields{
			"records": res.Stats.Records,
			"dropped": dropped,
			"reasons": res.Stats.DroppedRecords,
		}).Info("Normalized batch with dropped records")
	}
	return res
}

func (n *Normalizer) event(rec *model.RawRecord, client orb.Point, minDate time.Time, stats *Stats) (*model.Event, string) {
	if rec.ID == "" {
		return nil, ReasonID
	}
	if !validPosition(rec.Lat, rec.Lon) {
		return nil, ReasonPosition
	}

	transfers := make([]model.Transfer, 0, len(rec.Data))
	for _, raw := range rec.Data {
		dir, ok := model.ParseDirection(raw.Dir)
		switch {
		case !ok:
			stats.DroppedTransfers[ReasonDirection]++
			continue
		case !raw.Bytes.Valid:
			stats.DroppedTransfers[ReasonBytes]++
			continue
		case raw.TS.IsZero():
			stats.DroppedTransfers[ReasonTimestamp]++
			continue
		}
		transfers = append(transfers, model.Transfer{
			Direction: dir,
			Bytes:     raw.Bytes.Value,
			Timestamp: raw.TS.Time,
			Frame:     n.timing.FrameForTimestamp(minDate, raw.TS.Time),
		})
	}
	sort.SliceStable(transfers, func(i, j int) bool {
		return transfers[i].Timestamp.Before(transfers[j].Timestamp)
	})

	var first, last time.Time
	if len(transfers) > 0 {
		first = transfers[0].Timestamp
		last = transfers[len(transfers)-1].Timestamp
	} else {
		first = rec.Created.Time
		last = first
	}
	if first.IsZero() {
		return nil, ReasonTimestamp
	}

	position := orb.Point{rec.Lon, rec.Lat}
	trailing := n.timing.Frames(n.timing.TrailingDisplay)
	ev := &model.Event{
		ID:             rec.ID,
		Host:           rec.Host,
		Country:        rec.Country,
		City:           rec.City,
		ClientAddress:  rec.ClientIP,
		Position:       position,
		ClientPosition: client,
		Hops:           n.hops(rec.Hops, position),
		Transfers:      transfers,
		Timestamp:      first,
		StartFrame:     n.timing.FrameForTimestamp(minDate, first),
		EndFrame:       n.timing.FrameForTimestamp(minDate, last) + trailing,
		ClosedFrame:    timebase.NeverClosed,
		DistanceKm:     geo.DistanceHaversine(position, client) / 1000,
	}
	if !rec.Closed.IsZero() {
		ev.ClosedFrame = n.timing.FrameForTimestamp(minDate, rec.Closed.Time)
	}
	return ev, ""
}

// hops reduces traceroute hops to waypoints. Hops without coordinates are skipped; when
// none remain a single synthetic hop at the remote position is used.
func (n *Normalizer) hops(raw []model.RawHop, position orb.Point) []model.Hop {
	hops := make([]model.Hop, 0, len(raw))
	for _, h := range raw {
		if !validPosition(h.Latitude, h.Longitude) {
			continue
		}
		hops = append(hops, model.Hop{
			Position: orb.Point{h.Longitude, h.Latitude},
			Duration: meanDuration(h.Timings),
		})
	}
	if len(hops) == 0 {
		hops = append(hops, model.Hop{Position: position, Duration: n.timing.TrailingDisplay})
	}
	return hops
}

func meanDuration(timings []float64) time.Duration {
	var sum float64
	var count int
	for _, ms := range timings {
		if math.IsNaN(ms) || math.IsInf(ms, 0) || ms < 0 {
			continue
		}
		sum += ms
		count++
	}
	if count == 0 {
		return 0
	}
	return time.Duration(sum / float64(count) * float64(time.Millisecond))
}

func validPosition(lat, lon float64) bool {
	if lat == 0 || lon == 0 {
		return false
	}
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// Start returns the timestamp a record begins at: its earliest valid transfer, else its
// creation time. ok is false when the record has neither.
func Start(rec *model.RawRecord) (time.Time, bool) {
	var start time.Time
	for _, raw := range rec.Data {
		if _, ok := model.ParseDirection(raw.Dir); !ok || !raw.Bytes.Valid || raw.TS.IsZero() {
			continue
		}
		if start.IsZero() || raw.TS.Time.Before(start) {
			start = raw.TS.Time
		}
	}
	if start.IsZero() {
		start = rec.Created.Time
	}
	return start, !start.IsZero()
}

// Usable reports whether rec survives normalization.
func Usable(rec *model.RawRecord) bool {
	if rec.ID == "" || !validPosition(rec.Lat, rec.Lon) {
		return false
	}
	_, ok := Start(rec)
	return ok
}

// MinDate returns the earliest start of the records that would survive normalization.
func MinDate(records []model.RawRecord) (time.Time, bool) {
	var earliest time.Time
	for i := range records {
		rec := &records[i]
		if !Usable(rec) {
			continue
		}
		start, _ := Start(rec)
		if earliest.IsZero() || start.Before(earliest) {
			earliest = start
		}
	}
	return earliest, !earliest.IsZero()
}
