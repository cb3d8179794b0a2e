package reel

import (
	"fmt"
	"sync"
)

// EvalContext is what an evaluator may read besides the property itself.
type EvalContext struct {
	// Properties is the owning property map, for evaluators that reference
	// sibling properties.
	Properties *PropertyMap
	// FPS is the composition frame rate.
	FPS float64
}

// PropertyEvaluator turns a property into a value at local time t (seconds).
// Evaluators never fail: they resolve to a default and log instead.
type PropertyEvaluator interface {
	Evaluate(p Property, t float64, ctx EvalContext) Value
}

// EvaluatorFunc adapts a plain function to PropertyEvaluator.
type EvaluatorFunc func(p Property, t float64, ctx EvalContext) Value

func (f EvaluatorFunc) Evaluate(p Property, t float64, ctx EvalContext) Value { return f(p, t, ctx) }

// EvaluatorRegistry maps evaluator keys to evaluators. It is normally
// populated once at startup and then read concurrently.
type EvaluatorRegistry struct {
	mu         sync.RWMutex
	evaluators map[string]PropertyEvaluator
}

// NewEvaluatorRegistry returns an empty registry.
func NewEvaluatorRegistry() *EvaluatorRegistry {
	return &EvaluatorRegistry{evaluators: make(map[string]PropertyEvaluator)}
}

// NewDefaultEvaluatorRegistry returns a registry with the constant, keyframe
// and expression evaluators installed.
func NewDefaultEvaluatorRegistry() *EvaluatorRegistry {
	r := NewEvaluatorRegistry()
	r.Register(EvaluatorConstant, ConstantEvaluator{})
	r.Register(EvaluatorKeyframe, KeyframeEvaluator{})
	r.Register(EvaluatorExpression, NewExpressionEvaluator(DefaultExpressionTimeout))
	return r
}

// Register installs e under key, replacing any previous evaluator.
func (r *EvaluatorRegistry) Register(key string, e PropertyEvaluator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evaluators[key] = e
}

// Lookup returns the evaluator registered under key.
func (r *EvaluatorRegistry) Lookup(key string) (PropertyEvaluator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.evaluators[key]
	return e, ok
}

// Evaluate dispatches p to the evaluator for its key. A nil property or an
// unregistered key yields Number(0) and a warning.
func (r *EvaluatorRegistry) Evaluate(p Property, t float64, ctx EvalContext) Value {
	if p == nil {
		return NumberValue(0)
	}
	e, ok := r.Lookup(p.EvaluatorKey())
	if !ok {
		logger().Warn("reel: no evaluator registered", "evaluator", p.EvaluatorKey(),
			"err", fmt.Errorf("evaluator %q: %w", p.EvaluatorKey(), ErrPlugin))
		return NumberValue(0)
	}
	return e.Evaluate(p, t, ctx)
}

// EvaluateNamed looks up name in pm and evaluates it. ok is false when the
// property is missing.
func (r *EvaluatorRegistry) EvaluateNamed(pm *PropertyMap, name string, t float64, fps float64) (Value, bool) {
	p, ok := pm.Get(name)
	if !ok {
		return Value{}, false
	}
	return r.Evaluate(p, t, EvalContext{Properties: pm, FPS: fps}), true
}

// ConstantEvaluator returns a constant property's value.
type ConstantEvaluator struct{}

func (ConstantEvaluator) Evaluate(p Property, _ float64, _ EvalContext) Value {
	cp, ok := p.(*ConstantProperty)
	if !ok {
		logger().Warn("reel: constant evaluator given another property kind", "evaluator", p.EvaluatorKey())
		return NumberValue(0)
	}
	return cp.Value
}
