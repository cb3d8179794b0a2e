package reel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/cpu"
	"golang.org/x/sync/errgroup"
)

// DefaultParallelism is the worker count used for exports and preloads: the
// number of logical CPUs the OS reports, or runtime.NumCPU when it cannot be
// queried.
func DefaultParallelism() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		return max(1, runtime.NumCPU())
	}
	return n
}

// FrameWriter receives each exported frame. It is called from several
// goroutines at once and in no particular frame order.
type FrameWriter func(frame int64, img *ImageOutput) error

// PNGFrameWriter writes frames into dir, naming each file with pattern
// formatted with the frame number (for example "frame_%05d.png"). dir is
// created if needed.
func PNGFrameWriter(dir, pattern string) (FrameWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("reel: create output dir: %w", err)
	}
	return func(frame int64, img *ImageOutput) error {
		return img.WritePNG(filepath.Join(dir, fmt.Sprintf(pattern, frame)))
	}, nil
}

// ExportOptions tunes ExportRange.
type ExportOptions struct {
	RenderScale float64 // <= 0 means 1
	Region      *Region
	Parallelism int // <= 0 means DefaultParallelism
}

// FrameRange returns the frames first through last inclusive.
func FrameRange(first, last int64) []int64 {
	if last < first {
		return nil
	}
	out := make([]int64, 0, last-first+1)
	for f := first; f <= last; f++ {
		out = append(out, f)
	}
	return out
}

// ExportRange renders frames of one composition concurrently and hands each
// to write. Every worker owns a renderer made by factory; renderers that
// return textures are rejected. The first error cancels the rest and is
// returned. p must not change while the export runs.
func ExportRange(ctx context.Context, engine *FrameEvaluator, p *Project, compID uuid.UUID, frames []int64, factory RendererFactory, write FrameWriter, opts ExportOptions) error {
	comp, ok := p.Composition(compID)
	if !ok {
		return projectErrorf("export", "Composition %s not found", compID)
	}
	scale := opts.RenderScale
	if scale <= 0 {
		scale = 1
	}
	workers := opts.Parallelism
	if workers <= 0 {
		workers = DefaultParallelism()
	}
	workers = min(workers, len(frames))
	if workers == 0 {
		return nil
	}

	// Every frame of the export shares one target size.
	target := FrameInfo{Width: comp.Width, Height: comp.Height, RenderScale: scale, Region: opts.Region}
	w, h := target.TargetSize()

	g, ctx := errgroup.WithContext(ctx)
	queue := make(chan int64)
	g.Go(func() error {
		defer close(queue)
		for _, f := range frames {
			select {
			case queue <- f:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	for range workers {
		g.Go(func() error {
			r, err := factory(w, h, comp.BackgroundColor, nil)
			if err != nil {
				return &RenderError{Op: "create renderer", Err: err}
			}
			if d, ok := r.(interface{ Dispose() }); ok {
				defer d.Dispose()
			}
			for f := range queue {
				if err := exportFrame(engine, p, compID, f, scale, opts.Region, r, write); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func exportFrame(engine *FrameEvaluator, p *Project, compID uuid.UUID, frame int64, scale float64, region *Region, r Renderer, write FrameWriter) error {
	info, err := engine.Evaluate(p, compID, frame, scale, region)
	if err != nil {
		return err
	}
	out, err := r.RenderFrame(info)
	if err != nil {
		return &RenderError{Op: fmt.Sprintf("render frame %d", frame), Err: err}
	}
	img, ok := out.(*ImageOutput)
	if !ok {
		return &RenderError{Op: "export", Err: fmt.Errorf("renderer returned %T, want *ImageOutput", out)}
	}
	if err := write(frame, img); err != nil {
		return fmt.Errorf("reel: write frame %d: %w", frame, err)
	}
	logger().Debug("reel: exported frame", "frame", frame)
	return nil
}
