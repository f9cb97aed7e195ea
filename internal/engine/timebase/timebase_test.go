package timebase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var origin = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestFrameForTimestamp(t *testing.T) {
	cfg := Default()
	tests := []struct {
		name   string
		offset time.Duration
		want   int
	}{
		{"origin", 0, 0},
		{"inside first frame", 20 * time.Millisecond, 0},
		{"second frame", 34 * time.Millisecond, 1},
		{"one second", time.Second, 30},
		{"before origin", -10 * time.Millisecond, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cfg.FrameForTimestamp(origin, origin.Add(tt.offset))
			if got != tt.want {
				t.Errorf("FrameForTimestamp(+%v) = %d, want %d", tt.offset, got, tt.want)
			}
		})
	}
}

func TestTimestampForFrame(t *testing.T) {
	cfg := Default()
	assert.Equal(t, origin, cfg.TimestampForFrame(origin, 0))
	assert.Equal(t, origin.Add(time.Second), cfg.TimestampForFrame(origin, 30))
	assert.Equal(t, origin.Add(500*time.Millisecond), cfg.TimestampForFrame(origin, 15))

	for f := 0; f < 300; f += 7 {
		ts := cfg.TimestampForFrame(origin, f)
		// Rounding of 1/30 s may land just below the frame boundary.
		got := cfg.FrameForTimestamp(origin, ts.Add(time.Millisecond))
		assert.Equal(t, f, got, "round trip of frame %d", f)
	}
}

func TestTotalFrames(t *testing.T) {
	cfg := Default()

	if got := cfg.TotalFrames(nil, origin, false, origin); got != cfg.FPS {
		t.Fatalf("empty session: got %d frames, want %d", got, cfg.FPS)
	}
	if got := cfg.TotalFrames(nil, origin, true, origin.Add(time.Hour)); got != cfg.FPS {
		t.Fatalf("empty live session: got %d frames, want %d", got, cfg.FPS)
	}

	assert.Equal(t, 240, cfg.TotalFrames([]int{120, 240, 60}, origin, false, origin))
	assert.Equal(t, 1, cfg.TotalFrames([]int{0}, origin, false, origin))

	// Live: 10 s elapsed plus the 5 s trailing window.
	assert.Equal(t, 450, cfg.TotalFrames([]int{10}, origin, true, origin.Add(10*time.Second)))
	// A clock behind the origin never shrinks below the trailing window.
	assert.Equal(t, 150, cfg.TotalFrames([]int{10}, origin, true, origin.Add(-time.Minute)))
}

func TestFramesAndSampling(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 120, cfg.Frames(cfg.TrailingDisplay))
	assert.Equal(t, 90, cfg.Frames(cfg.ActiveGrace))
	assert.Equal(t, 30, cfg.Frames(time.Second))
	assert.InDelta(t, 33.333, cfg.FrameDuration(), 0.001)

	assert.Equal(t, 0, cfg.SampleFrame(4))
	assert.Equal(t, 5, cfg.SampleFrame(9))
	assert.Equal(t, 10, cfg.SampleFrame(10))
	assert.Equal(t, -5, cfg.SampleFrame(-1))

	cfg.SampleStride = 1
	assert.Equal(t, 9, cfg.SampleFrame(9))
}

func TestWithDefaults(t *testing.T) {
	cfg := Config{FPS: 60, TrailingDisplay: -1, ActiveGrace: -1, LiveTrailing: -1, MaxTilt: -1}.WithDefaults()
	assert.Equal(t, 60, cfg.FPS)
	assert.Equal(t, DefaultTrailingDisplay, cfg.TrailingDisplay)
	assert.Equal(t, DefaultActiveGrace, cfg.ActiveGrace)
	assert.Equal(t, DefaultLiveTrailing, cfg.LiveTrailing)
	assert.Equal(t, DefaultMaxTilt, cfg.MaxTilt)
	assert.Equal(t, DefaultMaxChartBars, cfg.MaxChartBars)
	assert.Equal(t, Default(), Config{}.WithDefaults())
}

func TestWithDefaults_ZeroWindows(t *testing.T) {
	cfg := Default()
	cfg.ActiveGrace = 0
	cfg.TrailingDisplay = 0
	cfg.MaxTilt = 0
	cfg = cfg.WithDefaults()
	assert.Zero(t, cfg.ActiveGrace)
	assert.Zero(t, cfg.TrailingDisplay)
	assert.Zero(t, cfg.MaxTilt)
	assert.Equal(t, DefaultLiveTrailing, cfg.LiveTrailing)
}
