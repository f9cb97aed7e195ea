package session

import (
	"errors"
	"math"
	"sync"
	"time"

	"Go2NetReplay/internal/engine/timebase"
)

// ErrInvalidRate is returned for a non-positive or non-finite playback rate.
var ErrInvalidRate = errors.New("session: playback rate must be positive")

// Player is the playhead of a session. It tolerates arbitrary seeks in both directions.
type Player struct {
	mu      sync.Mutex
	timing  timebase.Config
	total   func() int
	frame   float64
	rate    float64
	playing bool
}

// NewPlayer creates a paused player at frame 0. total reports the current timeline length.
func NewPlayer(timing timebase.Config, total func() int) *Player {
	return &Player{timing: timing, total: total, rate: 1}
}

// Play starts playback.
func (p *Player) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = true
}

// Pause stops playback.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
}

// Playing reports whether the player advances on Advance.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// SetRate sets the playback speed multiplier.
func (p *Player) SetRate(rate float64) error {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return ErrInvalidRate
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rate = rate
	return nil
}

// Rate returns the playback speed multiplier.
func (p *Player) Rate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate
}

// Seek moves the playhead to frame, clamped to the timeline, and returns the new frame.
func (p *Player) Seek(frame int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frame = float64(p.clamp(frame))
	return int(p.frame)
}

// Skip moves the playhead by d, backwards when negative.
func (p *Player) Skip(d time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frame = float64(p.clamp(int(p.frame) + p.timing.Frames(d)))
	return int(p.frame)
}

// Advance moves a playing playhead by elapsed wall time scaled by the rate. Playback pauses
// at the end of the timeline.
func (p *Player) Advance(elapsed time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing || elapsed <= 0 {
		return int(p.frame)
	}
	total := p.total()
	p.frame += elapsed.Seconds() * p.rate * float64(p.timing.FPS)
	if p.frame >= float64(total) {
		p.frame = float64(total)
		p.playing = false
	}
	return int(p.frame)
}

// Frame returns the current frame.
func (p *Player) Frame() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int(p.frame)
}

// SampledFrame returns the current frame snapped to the derivation stride.
func (p *Player) SampledFrame() int {
	return p.timing.SampleFrame(p.Frame())
}

func (p *Player) clamp(frame int) int {
	return min(max(frame, 0), p.total())
}
