// Package session owns the event store of one replay session and answers frame queries
// against it.
package session

import (
	"errors"
	"sync"
	"time"

	"Go2NetReplay/internal/engine/aggregate"
	"Go2NetReplay/internal/engine/interpolate"
	"Go2NetReplay/internal/engine/playhead"
	"Go2NetReplay/internal/engine/timebase"
	"Go2NetReplay/internal/metrics"
	"Go2NetReplay/internal/model"
	"Go2NetReplay/internal/store"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
)

// ErrNoEvents is returned by Snapshot while the store is empty.
var ErrNoEvents = errors.New("session: no events")

// Query selects and decorates the events of a frame.
type Query struct {
	OnlyActive   bool     `json:"only_active"`
	Clients      []string `json:"clients"`
	Tags         []string `json:"tags"`
	Category     string   `json:"category"`
	Selected     string   `json:"selected"`
	OnlySelected bool     `json:"only_selected"`
}

// Timeline describes the playback range and the wall-clock time of a frame.
type Timeline struct {
	Frame       int       `json:"frame"`
	TotalFrames int       `json:"total_frames"`
	FPS         int       `json:"fps"`
	Live        bool      `json:"live"`
	MinDate     time.Time `json:"min_date"`
	Clock       time.Time `json:"clock"`
}

// Overview bundles every aggregate of a frame.
type Overview struct {
	Timeline      Timeline              `json:"timeline"`
	Summary       aggregate.Summary     `json:"summary"`
	Hosts         []aggregate.HostTotal `json:"hosts"`
	Tags          []aggregate.TagSlice  `json:"tags"`
	Buckets       []aggregate.Bucket    `json:"buckets"`
	Clients       []aggregate.Client    `json:"clients"`
	HostFrequency []aggregate.HostCount `json:"host_frequency"`
}

// Controller is the entry point for one session.
type Controller struct {
	timing  timebase.Config
	store   *store.Store
	player  *Player
	metrics *metrics.Collector
	logger  logrus.FieldLogger
	now     func() time.Time

	mu   sync.RWMutex
	tags []model.Tag
}

// NewController creates a controller over st. collector may be nil.
func NewController(timing timebase.Config, st *store.Store, tags []model.Tag, collector *metrics.Collector, logger logrus.FieldLogger) *Controller {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	c := &Controller{
		timing:  timing.WithDefaults(),
		store:   st,
		metrics: collector,
		logger:  logger,
		now:     time.Now,
		tags:    tags,
	}
	c.player = NewPlayer(c.timing, c.TotalFrames)
	return c
}

// Timing returns the timing configuration.
func (c *Controller) Timing() timebase.Config {
	return c.timing
}

// Player returns the session playhead.
func (c *Controller) Player() *Player {
	return c.player
}

// Ingest merges records into the store.
func (c *Controller) Ingest(records []model.RawRecord) store.UpsertResult {
	res := c.store.Upsert(records)
	size := c.store.Len()
	c.metrics.ObserveIngest(metrics.IngestResult{
		Records:          len(records),
		DroppedRecords:   res.Stats.DroppedRecords,
		DroppedTransfers: res.Stats.DroppedTransfers,
		Renormalized:     res.Renormalized,
		StoreSize:        size,
	})
	c.metrics.SetTotalFrames(c.TotalFrames())
	c.logger.WithFields(logrus.Fields{
		"records":      len(records),
		"added":        res.Added,
		"replaced":     res.Replaced,
		"stale":        res.Stale,
		"renormalized": res.Renormalized,
		"events":       size,
	}).Debug("Ingested batch")
	return res
}

// Reset clears the store and rewinds the player.
func (c *Controller) Reset() {
	c.store.Reset()
	c.player.Pause()
	c.player.Seek(0)
	c.metrics.StoreSize(0)
	c.logger.Info("Session reset")
}

// SetSession replaces the session context.
func (c *Controller) SetSession(info model.SessionInfo) {
	c.store.SetSession(info)
}

// Session returns the session context.
func (c *Controller) Session() model.SessionInfo {
	return c.store.Session()
}

// SetTags replaces the tag taxonomy.
func (c *Controller) SetTags(tags []model.Tag) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tags = tags
}

// Tags returns the tag taxonomy.
func (c *Controller) Tags() []model.Tag {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tags
}

// Events returns every stored event.
func (c *Controller) Events() []*model.Event {
	return c.store.Events()
}

// TotalFrames returns the length of the timeline.
func (c *Controller) TotalFrames() int {
	minDate, _ := c.store.MinDate()
	return c.timing.TotalFrames(c.store.EndFrames(), minDate, c.store.Session().Active, c.now())
}

// Timeline describes frame.
func (c *Controller) Timeline(frame int) Timeline {
	minDate, _ := c.store.MinDate()
	t := Timeline{
		Frame:       frame,
		TotalFrames: c.TotalFrames(),
		FPS:         c.timing.FPS,
		Live:        c.store.Session().Active,
		MinDate:     minDate,
	}
	if !minDate.IsZero() {
		t.Clock = c.timing.TimestampForFrame(minDate, frame)
	}
	return t
}

func (c *Controller) options(q Query) playhead.Options {
	return playhead.Options{
		OnlyActive:   q.OnlyActive,
		Clients:      q.Clients,
		Hosts:        aggregate.TagHosts(c.Tags(), q.Tags),
		Selected:     q.Selected,
		OnlySelected: q.OnlySelected,
	}
}

// View returns the events visible at frame.
func (c *Controller) View(frame int, q Query) []playhead.EventView {
	defer c.metrics.ObserveDerivation("view", time.Now())
	return playhead.Filter(c.timing, c.store.Events(), frame, c.options(q))
}

// Overview computes every aggregate at frame. The time buckets always cover the whole
// session.
func (c *Controller) Overview(frame int, q Query) Overview {
	defer c.metrics.ObserveDerivation("overview", time.Now())
	events := c.store.Events()
	views := playhead.Filter(c.timing, events, frame, c.options(q))
	return Overview{
		Timeline:      c.Timeline(frame),
		Summary:       aggregate.Summarize(views),
		Hosts:         aggregate.ByHost(views, c.timing.MaxChartBars),
		Tags:          aggregate.ByTag(views, c.Tags(), q.Category),
		Buckets:       aggregate.ByTimeBucket(events, c.timing.BucketWidth),
		Clients:       aggregate.Clients(events),
		HostFrequency: aggregate.HostFrequency(views),
	}
}

// Interpolate samples the walks of event id at frame.
func (c *Controller) Interpolate(id string, frame int, selected bool) ([]interpolate.Sample, error) {
	ev, err := c.store.Get(id)
	if err != nil {
		return nil, err
	}
	return interpolate.Interpolate(c.timing, ev, frame, selected), nil
}

// Follow returns the camera target for event id at frame.
func (c *Controller) Follow(id string, frame int) (orb.Point, error) {
	ev, err := c.store.Get(id)
	if err != nil {
		return orb.Point{}, err
	}
	return interpolate.FollowTarget(c.timing, ev, frame), nil
}

// Snapshot is the overview at the player's sampled frame, for periodic export.
type Snapshot struct {
	SessionID string    `json:"session_id"`
	TakenAt   time.Time `json:"taken_at"`
	Overview  Overview  `json:"overview"`
}

// Snapshot captures the overview at the current playhead.
func (c *Controller) Snapshot() (Snapshot, error) {
	if c.store.Len() == 0 {
		return Snapshot{}, ErrNoEvents
	}
	return Snapshot{
		SessionID: c.store.Session().ID,
		TakenAt:   c.now().UTC(),
		Overview:  c.Overview(c.player.SampledFrame(), Query{}),
	}, nil
}
