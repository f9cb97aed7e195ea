// Package timebase converts between wall-clock timestamps and playback frames.
//
// All frame arithmetic is relative to a session origin (minDate) and a fixed frame rate.
// The rate and the display windows travel together in a Config value so that every
// component derives frames the same way.
package timebase

import (
	"math"
	"time"
)

// NeverClosed is the closed frame of an event whose connection has not closed.
// It is finite so that adding grace windows cannot overflow.
const NeverClosed = math.MaxInt32

// Reference timing values.
const (
	DefaultFPS             = 30
	DefaultTrailingDisplay = 4 * time.Second
	DefaultActiveGrace     = 3 * time.Second
	DefaultLiveTrailing    = 5 * time.Second
	DefaultMaxChartBars    = 40
	DefaultBucketWidth     = 10 * time.Second
	DefaultSampleStride    = 5
	DefaultMaxTilt         = 30.0
)

// Config is the timing configuration shared by every derivation.
type Config struct {
	FPS             int
	TrailingDisplay time.Duration // kept visible after the last transfer
	ActiveGrace     time.Duration // still active after close
	LiveTrailing    time.Duration // live playback extends past "now"
	MaxChartBars    int
	BucketWidth     time.Duration
	SampleStride    int     // playhead coarsening factor
	MaxTilt         float64 // upper bound of the cosmetic arc tilt
}

// Default returns the reference configuration.
func Default() Config {
	return Config{
		FPS:             DefaultFPS,
		TrailingDisplay: DefaultTrailingDisplay,
		ActiveGrace:     DefaultActiveGrace,
		LiveTrailing:    DefaultLiveTrailing,
		MaxChartBars:    DefaultMaxChartBars,
		BucketWidth:     DefaultBucketWidth,
		SampleStride:    DefaultSampleStride,
		MaxTilt:         DefaultMaxTilt,
	}
}

// WithDefaults fills unset fields from Default. The zero Config is the reference
// configuration. Otherwise the display windows and the tilt may be zero and are only
// replaced when negative, while the rate, chart, bucket and stride settings must be positive.
func (c Config) WithDefaults() Config {
	d := Default()
	if c == (Config{}) {
		return d
	}
	if c.FPS <= 0 {
		c.FPS = d.FPS
	}
	if c.TrailingDisplay < 0 {
		c.TrailingDisplay = d.TrailingDisplay
	}
	if c.ActiveGrace < 0 {
		c.ActiveGrace = d.ActiveGrace
	}
	if c.LiveTrailing < 0 {
		c.LiveTrailing = d.LiveTrailing
	}
	if c.MaxChartBars <= 0 {
		c.MaxChartBars = d.MaxChartBars
	}
	if c.BucketWidth <= 0 {
		c.BucketWidth = d.BucketWidth
	}
	if c.SampleStride <= 0 {
		c.SampleStride = d.SampleStride
	}
	if c.MaxTilt < 0 {
		c.MaxTilt = d.MaxTilt
	}
	return c
}

// FrameDuration is the wall-clock length of one frame in milliseconds.
func (c Config) FrameDuration() float64 {
	return 1000 / float64(c.FPS)
}

// Frames converts a duration into a whole number of frames.
func (c Config) Frames(d time.Duration) int {
	return int(math.Round(d.Seconds() * float64(c.FPS)))
}

// FrameForTimestamp returns floor((ts - minDate) / frameDuration).
func (c Config) FrameForTimestamp(minDate, ts time.Time) int {
	frames := float64(ts.Sub(minDate)) * float64(c.FPS) / float64(time.Second)
	return int(math.Floor(frames))
}

// TimestampForFrame is the inverse of FrameForTimestamp: minDate + frame/FPS seconds.
func (c Config) TimestampForFrame(minDate time.Time, frame int) time.Time {
	offset := time.Duration(float64(frame) / float64(c.FPS) * float64(time.Second))
	return minDate.Add(offset)
}

// SampleFrame snaps frame down to the coarsened sampling grid used for derivations.
func (c Config) SampleFrame(frame int) int {
	if c.SampleStride <= 1 {
		return frame
	}
	if frame < 0 {
		return -((-frame + c.SampleStride - 1) / c.SampleStride * c.SampleStride)
	}
	return frame - frame%c.SampleStride
}

// TotalFrames returns the playback length in frames.
//
// Finished sessions run to the latest end frame. Live sessions always extend the live
// trailing window past now so playback can catch up with real time. An empty session
// lasts one second.
func (c Config) TotalFrames(endFrames []int, minDate time.Time, live bool, now time.Time) int {
	if len(endFrames) == 0 {
		return c.FPS
	}
	if live {
		trailing := c.Frames(c.LiveTrailing)
		elapsed := c.FrameForTimestamp(minDate, now)
		return max(elapsed+trailing, trailing)
	}
	total := 1
	for _, f := range endFrames {
		total = max(total, f)
	}
	return total
}
