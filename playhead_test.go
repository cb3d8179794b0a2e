package reel

import "testing"

// 30 fps for 2 seconds: work area [0, 60].
func testPlayhead() *Playhead {
	return NewPlayhead(NewComposition("c", 64, 32, 30, 2))
}

func TestPlayheadStartsPausedAtIn(t *testing.T) {
	p := testPlayhead()
	if p.Playing() || p.Frame() != 0 {
		t.Errorf("playing=%v frame=%d, want paused at 0", p.Playing(), p.Frame())
	}
	if p.In != 0 || p.Out != 60 {
		t.Errorf("range = [%d, %d], want [0, 60]", p.In, p.Out)
	}
	if p.Update(1) {
		t.Error("paused playhead moved")
	}
}

func TestPlayheadPlays(t *testing.T) {
	p := testPlayhead()
	p.Play()
	if !p.Update(0.5) {
		t.Error("Update reported no change")
	}
	if p.Frame() != 15 {
		t.Errorf("frame = %d, want 15", p.Frame())
	}
}

func TestPlayheadLoops(t *testing.T) {
	p := testPlayhead()
	p.SeekFrame(59)
	p.Play()
	p.Update(0.1) // 3 frames: 59 -> 62, wrapping past 60
	if p.Frame() != 1 {
		t.Errorf("frame = %d, want 1", p.Frame())
	}
}

func TestPlayheadStopsWithoutLoop(t *testing.T) {
	p := testPlayhead()
	p.Loop = false
	p.SeekFrame(59)
	p.Play()
	p.Update(1)
	if p.Frame() != 60 || p.Playing() {
		t.Errorf("frame=%d playing=%v, want stopped at 60", p.Frame(), p.Playing())
	}
}

func TestPlayheadSeekClamps(t *testing.T) {
	p := testPlayhead()
	p.SeekFrame(1000)
	if p.Frame() != 60 {
		t.Errorf("frame = %d, want 60", p.Frame())
	}
	p.SeekFrame(-5)
	if p.Frame() != 0 {
		t.Errorf("frame = %d, want 0", p.Frame())
	}
}

func TestPlayheadScrub(t *testing.T) {
	p := testPlayhead()
	p.Play()
	p.ScrubTo(30, 1, Linear)
	if p.Playing() || !p.Scrubbing() {
		t.Fatalf("playing=%v scrubbing=%v, want a paused scrub", p.Playing(), p.Scrubbing())
	}
	p.Update(0.5)
	if p.Frame() != 15 {
		t.Errorf("halfway frame = %d, want 15", p.Frame())
	}
	p.Update(0.5)
	if p.Frame() != 30 || p.Scrubbing() {
		t.Errorf("frame=%d scrubbing=%v, want 30 and done", p.Frame(), p.Scrubbing())
	}
}

func TestPlayheadScrubEased(t *testing.T) {
	p := testPlayhead()
	p.ScrubTo(60, 1, Ease(EaseInQuad))
	p.Update(0.5)
	// In-quad covers a quarter of the distance by half time.
	if p.Frame() != 15 {
		t.Errorf("frame = %d, want 15", p.Frame())
	}
}

func TestPlayheadScrubZeroDurationSeeks(t *testing.T) {
	p := testPlayhead()
	p.ScrubTo(42, 0, Linear)
	if p.Frame() != 42 || p.Scrubbing() {
		t.Errorf("frame=%d scrubbing=%v, want 42 immediately", p.Frame(), p.Scrubbing())
	}
}

func TestPlayheadPlayCancelsScrub(t *testing.T) {
	p := testPlayhead()
	p.ScrubTo(60, 2, Linear)
	p.Toggle()
	if p.Scrubbing() || !p.Playing() {
		t.Errorf("scrubbing=%v playing=%v", p.Scrubbing(), p.Playing())
	}
}
