package reel

import (
	"math"

	"github.com/google/uuid"
)

// FrameEvaluator assembles a FrameInfo from a project at one frame. It holds
// no per-call state, so one evaluator can serve concurrent calls on
// unchanging projects.
type FrameEvaluator struct {
	Converters *ConverterRegistry
	Evaluators *EvaluatorRegistry

	// Measurer and Assets are handed to converters for Bounds. Both are
	// optional.
	Measurer TextMeasurer
	Assets   AssetCache
}

// NewFrameEvaluator returns an evaluator using the given registries. It
// panics if either is nil.
func NewFrameEvaluator(converters *ConverterRegistry, evaluators *EvaluatorRegistry) *FrameEvaluator {
	if converters == nil || evaluators == nil {
		panic("reel: NewFrameEvaluator requires converter and evaluator registries")
	}
	return &FrameEvaluator{Converters: converters, Evaluators: evaluators}
}

// NewDefaultFrameEvaluator returns an evaluator with the built-in
// converters and evaluators.
func NewDefaultFrameEvaluator() *FrameEvaluator {
	return NewFrameEvaluator(NewDefaultConverterRegistry(), NewDefaultEvaluatorRegistry())
}

// Evaluate builds the frame of composition compID at frame. Clips that fail
// to convert are logged and left out; the error is reserved for a missing
// or unplayable composition.
func (e *FrameEvaluator) Evaluate(p *Project, compID uuid.UUID, frame int64, renderScale float64, region *Region) (*FrameInfo, error) {
	const op = "evaluate frame"
	comp, ok := p.Composition(compID)
	if !ok {
		return nil, projectErrorf(op, "Composition %s not found", compID)
	}
	if comp.FPS <= 0 {
		return nil, projectErrorf(op, "Composition %s has non-positive fps %g", compID, comp.FPS)
	}

	info := &FrameInfo{
		Width:           comp.Width,
		Height:          comp.Height,
		BackgroundColor: comp.BackgroundColor,
		ColorProfile:    comp.ColorProfile,
		RenderScale:     renderScale,
		NowTime:         float64(frame) / comp.FPS,
		Region:          region,
	}
	w := frameWalk{
		eval:    e,
		project: p,
		info:    info,
		stack:   []uuid.UUID{comp.ID},
	}
	w.composition(comp, frame, layerState{blend: BlendNormal, opacity: 1})
	return info, nil
}

// Bounds returns the canvas-space bounds of one clip at frame, as drawn in
// its own composition.
func (e *FrameEvaluator) Bounds(p *Project, compID, clipID uuid.UUID, frame int64) (Rect, bool) {
	comp, ok := p.Composition(compID)
	if !ok {
		return Rect{}, false
	}
	clip, ok := comp.Clip(clipID)
	if !ok {
		return Rect{}, false
	}
	return e.Converters.Bounds(e.context(comp), clip, frame)
}

func (e *FrameEvaluator) context(comp *Composition) *ConvertContext {
	return &ConvertContext{
		Composition: comp,
		Evaluators:  e.Evaluators,
		Measurer:    e.Measurer,
		Assets:      e.Assets,
	}
}

// layerState is what enclosing tracks and composition clips pass down.
type layerState struct {
	parents []Transform
	blend   BlendMode
	opacity float64
}

type frameWalk struct {
	eval    *FrameEvaluator
	project *Project
	info    *FrameInfo
	stack   []uuid.UUID // compositions being walked, for cycle detection
}

func (w *frameWalk) composition(comp *Composition, frame int64, st layerState) {
	ctx := w.eval.context(comp)
	root, ok := comp.Track(comp.RootTrackID)
	if !ok {
		logger().Warn("reel: composition has no root track", "composition", comp.ID)
		return
	}
	w.track(ctx, root, frame, st)
}

func (w *frameWalk) track(ctx *ConvertContext, tr *Track, frame int64, st layerState) {
	if !tr.Visible {
		return
	}
	if tr.BlendMode != BlendNormal {
		st.blend = tr.BlendMode
	}
	st.opacity *= tr.Opacity
	for _, id := range tr.ChildIDs {
		switch n := ctx.Composition.Nodes[id].(type) {
		case *Track:
			w.track(ctx, n, frame, st)
		case *Clip:
			if n.ActiveAt(frame) {
				w.clip(ctx, n, frame, st)
			}
		}
	}
}

func (w *frameWalk) clip(ctx *ConvertContext, clip *Clip, frame int64, st layerState) {
	if clip.Kind == ClipComposition {
		w.nested(ctx, clip, frame, st)
		return
	}
	obj, ok := w.eval.Converters.Convert(ctx, clip, frame)
	if !ok {
		return
	}
	obj.ClipID = clip.ID
	obj.Parents = st.parents
	obj.BlendMode = st.blend
	obj.Opacity = st.opacity
	obj.Properties = clip.Properties.Clone()
	w.info.Objects = append(w.info.Objects, obj)
}

// nested draws the composition referenced by a composition clip, placed by
// the clip's transform and timed from the clip's local time.
func (w *frameWalk) nested(ctx *ConvertContext, clip *Clip, frame int64, st layerState) {
	if clip.ReferenceID == nil {
		logger().Warn("reel: composition clip has no reference, dropping", "clip", clip.ID)
		return
	}
	ref, ok := w.project.Composition(*clip.ReferenceID)
	if !ok {
		logger().Warn("reel: composition clip references a missing composition, dropping",
			"clip", clip.ID, "reference", *clip.ReferenceID)
		return
	}
	for _, id := range w.stack {
		if id == ref.ID {
			logger().Warn("reel: composition reference cycle, dropping clip",
				"clip", clip.ID, "reference", ref.ID)
			return
		}
	}
	if ref.FPS <= 0 {
		logger().Warn("reel: referenced composition has non-positive fps, dropping clip",
			"clip", clip.ID, "reference", ref.ID)
		return
	}

	t := ctx.LocalTime(clip, frame)
	refFrame := int64(math.Round(t * ref.FPS))

	parents := make([]Transform, len(st.parents), len(st.parents)+1)
	copy(parents, st.parents)
	st.parents = append(parents, ctx.Transform(clip, t))

	w.stack = append(w.stack, ref.ID)
	w.composition(ref, refFrame, st)
	w.stack = w.stack[:len(w.stack)-1]
}
