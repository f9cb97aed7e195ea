package store

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"Go2NetReplay/internal/engine/normalizer"
	"Go2NetReplay/internal/engine/timebase"
	"Go2NetReplay/internal/model"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newStore() *Store {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return New(normalizer.New(timebase.Default(), orb.Point{}, logger), model.SessionInfo{ID: "s1"})
}

func rec(id, host string, at time.Duration, bytes int64) model.RawRecord {
	return model.RawRecord{
		ID:       id,
		Host:     host,
		ClientIP: "10.0.0.1",
		Lat:      59.33,
		Lon:      18.06,
		Created:  model.At(t0.Add(at)),
		Data: []model.RawTransfer{
			{Dir: "in", Bytes: model.Bytes(bytes), TS: model.At(t0.Add(at))},
		},
	}
}

func ids(events []*model.Event) []string {
	var out []string
	for _, ev := range events {
		out = append(out, ev.ID)
	}
	return out
}

func TestStore_UpsertAppendsAndReplaces(t *testing.T) {
	s := newStore()

	res := s.Upsert([]model.RawRecord{rec("a", "a.com", 0, 10), rec("b", "b.com", time.Second, 20)})
	assert.Equal(t, 2, res.Added)
	assert.False(t, res.Renormalized)

	res = s.Upsert([]model.RawRecord{rec("c", "c.com", 2*time.Second, 5), rec("a", "a.com", 0, 99)})
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, res.Replaced)

	assert.Equal(t, []string{"a", "b", "c"}, ids(s.Events()))
	a, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, int64(99), a.TotalBytes(model.DirectionIn))
	assert.Equal(t, 3, s.Len())
	assert.Len(t, s.Records(), 3)

	c, err := s.Get("c")
	require.NoError(t, err)
	assert.Equal(t, 60, c.StartFrame, "frames are relative to the stored origin")

	_, err = s.Get("missing")
	assert.True(t, errors.Is(err, ErrUnknownEvent))
}

func TestStore_OriginMovesBackwards(t *testing.T) {
	s := newStore()
	s.Upsert([]model.RawRecord{rec("a", "a.com", 10*time.Second, 1)})

	md, ok := s.MinDate()
	require.True(t, ok)
	assert.Equal(t, t0.Add(10*time.Second), md)
	a, _ := s.Get("a")
	assert.Equal(t, 0, a.StartFrame)

	res := s.Upsert([]model.RawRecord{rec("early", "e.com", 0, 1)})
	assert.True(t, res.Renormalized)

	md, _ = s.MinDate()
	assert.Equal(t, t0, md)
	a, _ = s.Get("a")
	assert.Equal(t, 300, a.StartFrame)
	assert.Equal(t, 300, a.Transfers[0].Frame)
	early, _ := s.Get("early")
	assert.Equal(t, 0, early.StartFrame)

	// A later batch never moves the origin forwards.
	res = s.Upsert([]model.RawRecord{rec("late", "l.com", time.Minute, 1)})
	assert.False(t, res.Renormalized)
	md, _ = s.MinDate()
	assert.Equal(t, t0, md)
	assert.Equal(t, []int{420, 120, 1920}, s.EndFrames())
}

func TestStore_DropsAndDuplicates(t *testing.T) {
	s := newStore()
	bad := rec("bad", "x.com", 0, 1)
	bad.Lat = 0
	valid := rec("dup", "d.com", 0, 1)
	invalidUpdate := rec("dup", "d.com", 0, 1)
	invalidUpdate.Lon = 0

	res := s.Upsert([]model.RawRecord{bad, valid})
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, res.Stats.Dropped())
	assert.Equal(t, []string{"dup"}, ids(s.Events()))

	res = s.Upsert([]model.RawRecord{bad})
	assert.Zero(t, res.Added)
	assert.Zero(t, res.Stale)
	assert.Equal(t, 1, s.Len())

	// An unusable later version in the same batch does not replace the usable one.
	res = s.Upsert([]model.RawRecord{valid, invalidUpdate})
	assert.Equal(t, 1, res.Replaced)
	assert.Equal(t, 1, res.Stale)
	assert.Equal(t, 18.06, s.Records()[0].Lon)
}

func TestStore_UnusableUpdateKeepsEvent(t *testing.T) {
	s := newStore()
	s.Upsert([]model.RawRecord{
		rec("a", "a.com", 0, 1),
		rec("b", "b.com", time.Second, 2),
	})

	update := rec("b", "b.com", time.Second, 20)
	update.Lat = 0
	res := s.Upsert([]model.RawRecord{update})
	assert.Equal(t, 1, res.Stale)
	assert.Zero(t, res.Added+res.Replaced)
	assert.Equal(t, []string{"a", "b"}, ids(s.Events()))

	ev, err := s.Get("b")
	require.NoError(t, err)
	assert.Equal(t, orb.Point{18.06, 59.33}, ev.Position)
	assert.Equal(t, int64(2), ev.TotalBytes(model.DirectionIn))
	assert.Equal(t, 59.33, s.Records()[1].Lat)

	// Unusable records of unknown ids are not stale, just dropped.
	bad := rec("c", "c.com", 0, 1)
	bad.Lon = 0
	res = s.Upsert([]model.RawRecord{bad})
	assert.Zero(t, res.Stale)
	assert.Equal(t, 1, res.Stats.Dropped())
	assert.Equal(t, 2, s.Len())
}

func TestStore_SetSessionAndReset(t *testing.T) {
	s := newStore()
	s.Upsert([]model.RawRecord{rec("a", "a.com", 0, 1)})
	ev, _ := s.Get("a")
	assert.Equal(t, normalizer.DefaultClientPosition, ev.ClientPosition)

	lat, lon := 40.0, -3.0
	s.SetSession(model.SessionInfo{ID: "s1", Lat: &lat, Lon: &lon})
	ev, _ = s.Get("a")
	assert.Equal(t, orb.Point{-3, 40}, ev.ClientPosition)
	assert.Equal(t, 40.0, *s.Session().Lat)

	s.Reset()
	assert.Zero(t, s.Len())
	assert.Empty(t, s.Events())
	_, ok := s.MinDate()
	assert.False(t, ok)

	s.Upsert([]model.RawRecord{rec("b", "b.com", time.Hour, 1)})
	ev, _ = s.Get("b")
	assert.Equal(t, 0, ev.StartFrame)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := newStore()
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id := string(rune('a'+w)) + string(rune('0'+i%10))
				s.Upsert([]model.RawRecord{rec(id, "h.com", time.Duration(i)*time.Second, 1)})
				_ = s.Events()
				_ = s.EndFrames()
			}
		}(w)
	}
	wg.Wait()
	assert.Equal(t, 40, s.Len())
}
