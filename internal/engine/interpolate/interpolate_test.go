package interpolate

import (
	"testing"
	"time"

	"Go2NetReplay/internal/engine/timebase"
	"Go2NetReplay/internal/model"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	client = orb.Point{10, 50}
	hop    = orb.Point{20, 50}
	remote = orb.Point{30, 60}
	t0     = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

func singleHopEvent(transfers ...model.Transfer) *model.Event {
	return &model.Event{
		ID:             "e1",
		ClientPosition: client,
		Position:       remote,
		Hops:           []model.Hop{{Position: hop, Duration: time.Second}},
		Transfers:      transfers,
		DistanceKm:     1234,
	}
}

func TestBuildPath_Inbound(t *testing.T) {
	cfg := timebase.Default()
	p := BuildPath(cfg, singleHopEvent(), model.Transfer{Direction: model.DirectionIn, Frame: 0, Timestamp: t0})

	require.Len(t, p.Segments, 2)
	assert.Equal(t, Segment{From: client, To: hop, Start: 0, End: 30}, p.Segments[0])
	assert.Equal(t, Segment{From: hop, To: remote, Start: 30, End: 150}, p.Segments[1])

	pos := p.At(15)
	if pos.Progress != 0.5 {
		t.Fatalf("progress at frame 15 = %v, want 0.5", pos.Progress)
	}
	assert.Equal(t, PhaseMoving, pos.Phase)
	assert.Equal(t, 0, pos.Segment)
	assert.Equal(t, orb.Point{15, 50}, pos.Point)

	// A shared boundary belongs to the earlier segment.
	boundary := p.At(30)
	assert.Equal(t, 0, boundary.Segment)
	assert.Equal(t, 1.0, boundary.Progress)
	assert.Equal(t, hop, boundary.Point)
}

func TestBuildPath_Outbound(t *testing.T) {
	cfg := timebase.Default()
	ev := singleHopEvent()
	ev.Hops = append(ev.Hops, model.Hop{Position: orb.Point{25, 55}, Duration: 2 * time.Second})

	p := BuildPath(cfg, ev, model.Transfer{Direction: model.DirectionOut, Frame: 100, Timestamp: t0})
	require.Len(t, p.Segments, 3)
	assert.Equal(t, Segment{From: remote, To: orb.Point{25, 55}, Start: 100, End: 160}, p.Segments[0])
	assert.Equal(t, Segment{From: orb.Point{25, 55}, To: hop, Start: 160, End: 190}, p.Segments[1])
	assert.Equal(t, Segment{From: hop, To: client, Start: 190, End: 310}, p.Segments[2])
	assert.Equal(t, 100, p.Start())
	assert.Equal(t, 310, p.End())
}

func TestPath_Clamping(t *testing.T) {
	cfg := timebase.Default()
	p := BuildPath(cfg, singleHopEvent(), model.Transfer{Direction: model.DirectionIn, Frame: 60, Timestamp: t0})

	before := p.At(10)
	assert.Equal(t, PhaseBefore, before.Phase)
	assert.Equal(t, client, before.Point)

	after := p.At(1000)
	assert.Equal(t, PhaseAfter, after.Phase)
	assert.Equal(t, remote, after.Point)
	assert.Equal(t, 1.0, after.Progress)
}

func TestPath_ZeroDurationHops(t *testing.T) {
	cfg := timebase.Default()
	ev := singleHopEvent()
	ev.Hops = []model.Hop{{Position: hop}, {Position: orb.Point{25, 55}}}

	p := BuildPath(cfg, ev, model.Transfer{Direction: model.DirectionIn, Frame: 5, Timestamp: t0})
	pos := p.At(5)
	assert.Equal(t, 0, pos.Segment)
	assert.Equal(t, 1.0, pos.Progress)
	assert.Equal(t, hop, pos.Point)

	assert.Equal(t, 1.0, Segment{Start: 3, End: 3}.Progress(3))
}

func TestBuildPath_NoHops(t *testing.T) {
	cfg := timebase.Default()
	ev := singleHopEvent()
	ev.Hops = nil
	p := BuildPath(cfg, ev, model.Transfer{Direction: model.DirectionIn})
	require.Len(t, p.Segments, 2)
	assert.Equal(t, remote, p.At(p.End()).Point)
}

func TestTilt(t *testing.T) {
	seed := t0.UnixMilli()
	a := Tilt(seed, model.DirectionIn, 30)
	b := Tilt(seed, model.DirectionIn, 30)
	assert.Equal(t, a, b)
	assert.GreaterOrEqual(t, a, 0.0)
	assert.Less(t, a, 30.0)
	assert.Equal(t, -a, Tilt(seed, model.DirectionOut, 30))
	assert.NotEqual(t, a, Tilt(seed+1, model.DirectionIn, 30))
}

func TestInterpolate(t *testing.T) {
	cfg := timebase.Default()
	ev := singleHopEvent(
		model.Transfer{Direction: model.DirectionIn, Frame: 0, Timestamp: t0},
		model.Transfer{Direction: model.DirectionOut, Frame: 30, Timestamp: t0.Add(time.Second)},
	)

	samples := Interpolate(cfg, ev, 15, false)
	require.Len(t, samples, 2)
	assert.Equal(t, PhaseMoving, samples[0].Phase)
	assert.Equal(t, 0.5, samples[0].Progress)
	assert.Greater(t, samples[0].Tilt, 0.0)
	assert.Equal(t, 1234.0, samples[0].DistanceKm)
	assert.Equal(t, PhaseBefore, samples[1].Phase)
	assert.Equal(t, remote, samples[1].Position)
	assert.Less(t, samples[1].Tilt, 0.0)

	flat := Interpolate(cfg, ev, 15, true)
	for _, s := range flat {
		assert.Zero(t, s.Tilt)
	}
	assert.Equal(t, samples, Interpolate(cfg, ev, 15, false))
}

func TestWalks_WithoutTransfers(t *testing.T) {
	cfg := timebase.Default()
	ev := singleHopEvent()
	ev.StartFrame = 42
	walks := Walks(cfg, ev)
	require.Len(t, walks, 1)
	assert.Equal(t, model.DirectionIn, walks[0].Direction)
	assert.Equal(t, 42, walks[0].Start())
}

func TestFollowTarget(t *testing.T) {
	cfg := timebase.Default()
	ev := singleHopEvent(
		model.Transfer{Direction: model.DirectionIn, Frame: 0, Timestamp: t0},
		model.Transfer{Direction: model.DirectionOut, Frame: 300, Timestamp: t0.Add(10 * time.Second)},
	)

	// Half a second ahead of frame 0 the inbound walk is on its first leg.
	assert.Equal(t, hop, FollowTarget(cfg, ev, 0))
	// Then on its final leg towards the remote.
	assert.Equal(t, remote, FollowTarget(cfg, ev, 40))
	// Half a second ahead of 290 the outbound walk has started.
	assert.Equal(t, hop, FollowTarget(cfg, ev, 290))
	// Long after everything the camera rests at the last walk's destination.
	assert.Equal(t, client, FollowTarget(cfg, ev, 5000))
}
