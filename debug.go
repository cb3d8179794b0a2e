package reel

import (
	"sync/atomic"
	"time"
)

// debugStats holds per-request timings. Only populated when
// ServerConfig.Debug is set.
type debugStats struct {
	drainTime    time.Duration
	evaluateTime time.Duration
	renderTime   time.Duration
	drained      int
	cached       bool
	resized      bool
}

// debugLog reports one request's timings at debug level.
func (s *RenderServer) debugLog(stats debugStats) {
	if !s.cfg.Debug {
		return
	}
	total := stats.drainTime + stats.evaluateTime + stats.renderTime
	logger().Debug("reel: render request",
		"drain", stats.drainTime,
		"evaluate", stats.evaluateTime,
		"render", stats.renderTime,
		"total", total,
		"superseded", stats.drained,
		"cached", stats.cached,
		"resized", stats.resized,
		"cache_len", s.cache.len(),
	)
}

// ServerStats counts what a render server has done since it started.
type ServerStats struct {
	Requests   int64 // requests received, including superseded ones
	Superseded int64 // render requests replaced by a newer one before running
	Rendered   int64 // renderer calls that succeeded
	CacheHits  int64
	Dropped    int64 // failed evaluations or renders
	Resizes    int64
}

type serverCounters struct {
	requests, superseded, rendered, cacheHits, dropped, resizes atomic.Int64
}

func (c *serverCounters) snapshot() ServerStats {
	return ServerStats{
		Requests:   c.requests.Load(),
		Superseded: c.superseded.Load(),
		Rendered:   c.rendered.Load(),
		CacheHits:  c.cacheHits.Load(),
		Dropped:    c.dropped.Load(),
		Resizes:    c.resizes.Load(),
	}
}
