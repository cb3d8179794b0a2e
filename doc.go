// Package reel is the core of a motion-graphics editor: an animatable
// project model, a frame evaluator that turns it into flat draw lists, and
// a render server that draws those lists off the caller's goroutine with
// [Ebitengine].
//
// # Project model
//
// A [Project] holds [Composition] values. Each composition owns a tree of
// [Track] and [Clip] nodes rooted at [Composition.RootTrack], plus graph
// nodes ([GraphNode]) wired together with [Connection] values between
// named pins.
//
//	p := reel.NewProject("intro")
//	comp := reel.NewComposition("main", 1920, 1080, 30, 5)
//	p.AddComposition(comp)
//
//	title := reel.NewClip(reel.ClipText, 0, 90)
//	title.SetConstant("text", reel.StringValue("Hello"))
//	title.Set("opacity", reel.Keyframes(
//		reel.Keyframe{Time: 0, Value: reel.NumberValue(0), Easing: reel.Ease(reel.EaseOutCubic)},
//		reel.Keyframe{Time: 1, Value: reel.NumberValue(1)},
//	))
//	comp.AddNode(comp.RootTrackID, title)
//
// Properties are constant, keyframed or expression driven. Expressions are
// Go snippets run by [yaegi] with the clip-local time bound to t.
//
// # Evaluation
//
// [FrameEvaluator.Evaluate] walks the tree for one frame, evaluates every
// property through the [EvaluatorRegistry], converts active clips with the
// [ConverterRegistry] and returns a [FrameInfo]: a background color and an
// ordered list of [FrameObject] values carrying text, shape, image, video
// or shader content.
//
// # Rendering
//
// A [RenderServer] owns a single [Renderer] on its own goroutine. Submit
// [RenderComposition] or [RenderFrame] requests; while the worker is busy
// older renders are dropped in favor of the newest. Finished image frames
// are kept in an LRU keyed by frame content, and the renderer is only
// recreated when the target size or background changes.
//
//	engine := reel.NewDefaultFrameEvaluator()
//	srv, err := reel.NewRenderServer(reel.DefaultServerConfig(), engine,
//		reel.NewEbitenRendererFactory(reel.EbitenOptions{}))
//	...
//	srv.Submit(reel.RenderComposition{Project: p.Clone(), CompositionID: comp.ID, Frame: 12, RenderScale: 1})
//	res := <-srv.Results()
//
// [EbitenRenderer] draws with ebiten's vector and text packages and Kage
// shaders. Attach a [TextureRegistry] as the sharing context to receive
// [TextureOutput] handles instead of pixel read-backs.
//
// # Export and persistence
//
// [ExportRange] renders a frame range across a pool of renderers and hands
// each image to a [FrameWriter] such as [PNGFrameWriter]. Projects are
// saved and loaded as YAML or JSON with [SaveProject] and [LoadProject].
//
// [Ebitengine]: https://ebitengine.org
// [yaegi]: https://github.com/traefik/yaegi
package reel
