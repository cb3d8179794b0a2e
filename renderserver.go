package reel

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrServerClosed is returned by Submit after the server has shut down.
var ErrServerClosed = errors.New("reel: render server closed")

// Engine produces frames for RenderComposition requests. *FrameEvaluator
// implements it.
type Engine interface {
	Evaluate(p *Project, compositionID uuid.UUID, frame int64, renderScale float64, region *Region) (*FrameInfo, error)
}

// Request is one of RenderFrame, RenderComposition, SetSharingContext or
// Shutdown.
type Request interface {
	isRequest()
}

// RenderFrame asks for an already evaluated frame to be drawn.
type RenderFrame struct {
	Frame *FrameInfo
}

// RenderComposition asks for a composition frame to be evaluated and
// drawn. Project should be a snapshot (Project.Clone) that the caller no
// longer mutates.
type RenderComposition struct {
	Project       *Project
	CompositionID uuid.UUID
	Frame         int64
	RenderScale   float64
	Region        *Region
}

// SetSharingContext attaches the renderer to a host GPU context.
type SetSharingContext struct {
	Context SharingContext
}

// Shutdown stops the server. Requests still queued are discarded.
type Shutdown struct{}

func (RenderFrame) isRequest()       {}
func (RenderComposition) isRequest() {}
func (SetSharingContext) isRequest() {}
func (Shutdown) isRequest()          {}

func isRender(r Request) bool {
	switch r.(type) {
	case RenderFrame, RenderComposition:
		return true
	}
	return false
}

// Result is a finished render.
type Result struct {
	Frame  *FrameInfo
	Output RenderOutput
	// Cached reports that Output came from the frame cache without a
	// renderer call.
	Cached bool
}

// RenderServer renders frames on a single worker goroutine. Requests that
// arrive while the worker is busy are collapsed so that only the newest
// render runs. Results arrive on Results; failed requests produce no
// result and are logged.
type RenderServer struct {
	cfg     ServerConfig
	engine  Engine
	factory RendererFactory

	requests chan Request
	results  chan Result
	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
	counters serverCounters

	// Owned by the worker.
	renderer Renderer
	width    int
	height   int
	bg       Color
	cache    *frameCache
}

// NewRenderServer creates the initial renderer from cfg and starts the
// worker. engine may be nil if only RenderFrame requests will be sent.
func NewRenderServer(cfg ServerConfig, engine Engine, factory RendererFactory) (*RenderServer, error) {
	s, err := newRenderServer(cfg, engine, factory)
	if err != nil {
		return nil, err
	}
	go s.run()
	return s, nil
}

func newRenderServer(cfg ServerConfig, engine Engine, factory RendererFactory) (*RenderServer, error) {
	if factory == nil {
		panic("reel: NewRenderServer requires a renderer factory")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	r, err := factory(cfg.InitialWidth, cfg.InitialHeight, cfg.Background, nil)
	if err != nil {
		return nil, &RenderError{Op: "create renderer", Err: err}
	}
	return &RenderServer{
		cfg:      cfg,
		engine:   engine,
		factory:  factory,
		requests: make(chan Request, cfg.RequestBuffer),
		results:  make(chan Result, cfg.ResultBuffer),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		renderer: r,
		width:    cfg.InitialWidth,
		height:   cfg.InitialHeight,
		bg:       cfg.Background,
		cache:    newFrameCache(cfg.CacheSize),
	}, nil
}

// Submit queues a request. It blocks while the request buffer is full and
// returns ErrServerClosed once the worker has stopped.
func (s *RenderServer) Submit(req Request) error {
	select {
	case <-s.done:
		return ErrServerClosed
	case <-s.quit:
		return ErrServerClosed
	default:
	}
	select {
	case s.requests <- req:
		return nil
	case <-s.done:
		return ErrServerClosed
	case <-s.quit:
		return ErrServerClosed
	}
}

// Results delivers finished renders. It is closed when the worker stops.
func (s *RenderServer) Results() <-chan Result { return s.results }

// TryResult returns a finished render if one is ready.
func (s *RenderServer) TryResult() (Result, bool) {
	select {
	case r, ok := <-s.results:
		return r, ok
	default:
		return Result{}, false
	}
}

// Done is closed when the worker has stopped.
func (s *RenderServer) Done() <-chan struct{} { return s.done }

// Stats returns the server's counters.
func (s *RenderServer) Stats() ServerStats { return s.counters.snapshot() }

// Close stops the worker without waiting for queued requests and waits
// for it to exit. Buffered results stay readable from Results.
func (s *RenderServer) Close() error {
	s.quitOnce.Do(func() { close(s.quit) })
	<-s.done
	return nil
}

func (s *RenderServer) run() {
	defer func() {
		close(s.results)
		close(s.done)
	}()
	for {
		var req Request
		select {
		case r, ok := <-s.requests:
			if !ok {
				return
			}
			req = r
		case <-s.quit:
			return
		}
		s.counters.requests.Add(1)

		start := time.Now()
		req, drained, stop := s.drain(req)
		if stop {
			return
		}
		stats := debugStats{drainTime: time.Since(start), drained: drained}

		switch r := req.(type) {
		case Shutdown:
			return
		case SetSharingContext:
			s.renderer.SetSharingContext(r.Context)
		case RenderFrame, RenderComposition:
			s.render(r, &stats)
			s.debugLog(stats)
		}
	}
}

// drain collapses everything already queued behind pending. Shutdown or a
// closed channel wins outright. A sharing context is applied as soon as it
// is seen; a newer render replaces an older one.
func (s *RenderServer) drain(pending Request) (req Request, superseded int, stop bool) {
	if _, ok := pending.(Shutdown); ok {
		return pending, 0, true
	}
	for {
		select {
		case next, ok := <-s.requests:
			if !ok {
				return nil, superseded, true
			}
			s.counters.requests.Add(1)
			switch n := next.(type) {
			case Shutdown:
				return nil, superseded, true
			case SetSharingContext:
				s.renderer.SetSharingContext(n.Context)
				if _, ok := pending.(SetSharingContext); ok {
					// The older context must not be re-applied over this one.
					pending = n
				}
			default:
				if sc, ok := pending.(SetSharingContext); ok {
					s.renderer.SetSharingContext(sc.Context)
				} else if isRender(pending) {
					superseded++
					s.counters.superseded.Add(1)
				}
				pending = next
			}
		default:
			return pending, superseded, false
		}
	}
}

func (s *RenderServer) render(req Request, stats *debugStats) {
	frame, err := s.frameFor(req, stats)
	if err != nil {
		s.counters.dropped.Add(1)
		logger().Warn("reel: dropping render request", "err", err)
		return
	}

	key := frame.Key()
	if out, ok := s.cache.get(key); ok {
		stats.cached = true
		s.counters.cacheHits.Add(1)
		s.send(Result{Frame: frame, Output: out, Cached: true})
		return
	}

	start := time.Now()
	w, h := frame.TargetSize()
	if w != s.width || h != s.height || frame.BackgroundColor != s.bg {
		if err := s.resize(w, h, frame.BackgroundColor); err != nil {
			s.counters.dropped.Add(1)
			logger().Warn("reel: dropping render request", "err", err)
			return
		}
		stats.resized = true
	}

	out, err := s.renderer.RenderFrame(frame)
	stats.renderTime = time.Since(start)
	if err != nil {
		s.counters.dropped.Add(1)
		logger().Error("reel: failed to render frame", "err", &RenderError{Op: "render frame", Err: err})
		return
	}
	s.counters.rendered.Add(1)
	if img, ok := out.(*ImageOutput); ok {
		s.cache.add(key, img)
	}
	s.send(Result{Frame: frame, Output: out})
}

func (s *RenderServer) frameFor(req Request, stats *debugStats) (*FrameInfo, error) {
	switch r := req.(type) {
	case RenderFrame:
		if r.Frame == nil {
			return nil, fmt.Errorf("reel: render request has no frame")
		}
		return r.Frame, nil
	case RenderComposition:
		if s.engine == nil {
			return nil, fmt.Errorf("reel: composition %s requested but the server has no engine", r.CompositionID)
		}
		if r.Project == nil {
			return nil, fmt.Errorf("reel: composition %s requested without a project", r.CompositionID)
		}
		start := time.Now()
		f, err := s.engine.Evaluate(r.Project, r.CompositionID, r.Frame, r.RenderScale, r.Region)
		stats.evaluateTime = time.Since(start)
		if err == nil && f == nil {
			err = fmt.Errorf("reel: engine returned no frame for composition %s", r.CompositionID)
		}
		return f, err
	}
	return nil, fmt.Errorf("reel: unexpected request %T", req)
}

// resize replaces the renderer, carrying its sharing context over. The old
// renderer is disposed if it supports it.
func (s *RenderServer) resize(w, h int, bg Color) error {
	ctx := s.renderer.TakeContext()
	r, err := s.factory(w, h, bg, ctx)
	if err != nil {
		s.renderer.SetSharingContext(ctx)
		return &RenderError{Op: "resize renderer", Err: err}
	}
	if d, ok := s.renderer.(interface{ Dispose() }); ok {
		d.Dispose()
	}
	s.renderer = r
	s.width, s.height, s.bg = w, h, bg
	s.counters.resizes.Add(1)
	return nil
}

func (s *RenderServer) send(r Result) {
	select {
	case s.results <- r:
	case <-s.quit:
	}
}
