package reel

import (
	"math"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// Playhead tracks the current frame of a preview. While playing it advances
// at FPS and wraps within [In, Out]. ScrubTo glides to a frame over time
// with an easing curve instead of jumping.
type Playhead struct {
	FPS     float64
	In, Out int64
	Loop    bool

	pos     float64 // frames, fractional
	playing bool
	scrub   *gween.Tween
}

// NewPlayhead returns a paused, looping playhead over comp's work area.
func NewPlayhead(comp *Composition) *Playhead {
	in, out := comp.WorkAreaIn, comp.WorkAreaOut
	if out < in {
		in, out = out, in
	}
	return &Playhead{FPS: comp.FPS, In: in, Out: out, Loop: true, pos: float64(in)}
}

// Frame returns the current whole frame.
func (p *Playhead) Frame() int64 { return int64(math.Floor(p.pos)) }

// Playing reports whether the playhead advances on Update.
func (p *Playhead) Playing() bool { return p.playing }

// Play starts playback and cancels any scrub in progress.
func (p *Playhead) Play() {
	p.scrub = nil
	p.playing = true
}

// Pause stops playback.
func (p *Playhead) Pause() { p.playing = false }

// Toggle flips between playing and paused.
func (p *Playhead) Toggle() {
	if p.playing {
		p.Pause()
	} else {
		p.Play()
	}
}

// SeekFrame jumps to frame, clamped to the range.
func (p *Playhead) SeekFrame(frame int64) {
	p.scrub = nil
	p.pos = float64(p.clamp(frame))
}

// ScrubTo pauses and moves to frame over seconds, shaped by e. A
// non-positive duration seeks immediately.
func (p *Playhead) ScrubTo(frame int64, seconds float64, e Easing) {
	if seconds <= 0 {
		p.SeekFrame(frame)
		p.playing = false
		return
	}
	p.playing = false
	p.scrub = gween.New(float32(p.pos), float32(p.clamp(frame)), float32(seconds), e.tweenFunc())
}

// Scrubbing reports whether a ScrubTo is still running.
func (p *Playhead) Scrubbing() bool { return p.scrub != nil }

// Update advances by dt seconds and reports whether the frame changed.
func (p *Playhead) Update(dt float64) bool {
	before := p.Frame()
	switch {
	case p.scrub != nil:
		v, done := p.scrub.Update(float32(dt))
		p.pos = float64(v)
		if done {
			p.scrub = nil
		}
	case p.playing && p.FPS > 0:
		p.pos += dt * p.FPS
		span := float64(p.Out - p.In + 1)
		if p.pos >= float64(p.Out+1) {
			if p.Loop && span > 0 {
				p.pos = float64(p.In) + math.Mod(p.pos-float64(p.In), span)
			} else {
				p.pos = float64(p.Out)
				p.playing = false
			}
		}
	}
	return p.Frame() != before
}

func (p *Playhead) clamp(frame int64) int64 {
	return min(max(frame, p.In), p.Out)
}

// tweenFunc adapts e to gween's (time, begin, change, duration) signature.
func (e Easing) tweenFunc() ease.TweenFunc {
	return func(t, b, c, d float32) float32 {
		if d <= 0 {
			return b + c
		}
		return b + c*float32(e.Apply(float64(t/d)))
	}
}
