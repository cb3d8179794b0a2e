package reel

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// DefaultExpressionTimeout bounds a single expression evaluation.
const DefaultExpressionTimeout = 50 * time.Millisecond

var errExpressionTimeout = errors.New("expression timed out")

// ExpressionEvaluator runs *ExpressionProperty sources in a Go interpreter.
// The script sees only the math package and the clip-local time t (seconds,
// float64). Expression easings reuse the same sandbox with t bound to the
// segment's normalized progress instead. A source without a return
// statement is treated as a single expression; otherwise it is a function
// body returning the result.
//
// Compile errors, runtime panics, timeouts and results that do not convert
// to a Value all evaluate to Number(0) and are logged.
type ExpressionEvaluator struct {
	timeout time.Duration

	mu       sync.Mutex
	programs map[string]*exprProgram
}

// exprProgram holds idle compiled instances of one source. yaegi functions
// are not safe for concurrent calls, so each call takes an instance of its
// own and returns it when done. An instance whose call timed out or
// panicked is dropped instead.
type exprProgram struct {
	src string
	err error // compile error, fixed for the source

	mu   sync.Mutex
	idle []func(float64) any
}

// NewExpressionEvaluator returns an evaluator whose calls give up after
// timeout. A non-positive timeout uses DefaultExpressionTimeout.
func NewExpressionEvaluator(timeout time.Duration) *ExpressionEvaluator {
	if timeout <= 0 {
		timeout = DefaultExpressionTimeout
	}
	return &ExpressionEvaluator{timeout: timeout, programs: make(map[string]*exprProgram)}
}

func (e *ExpressionEvaluator) Evaluate(p Property, t float64, _ EvalContext) Value {
	ep, ok := p.(*ExpressionProperty)
	if !ok {
		logger().Warn("reel: expression evaluator given another property kind", "evaluator", p.EvaluatorKey())
		return NumberValue(0)
	}
	v, err := e.Eval(ep.Source, t)
	if err != nil {
		logger().Warn("reel: expression failed", "source", ep.Source, "t", t, "err", err)
		return NumberValue(0)
	}
	return v
}

// Eval compiles src (once per concurrent caller) and runs it at time t.
// Only the script's own run time counts against the timeout.
func (e *ExpressionEvaluator) Eval(src string, t float64) (Value, error) {
	prog := e.program(src)
	fn, err := prog.get()
	if err != nil {
		return NumberValue(0), err
	}

	type result struct {
		v   any
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("expression panicked: %v", r)}
			}
		}()
		done <- result{v: fn(t)}
	}()

	timer := time.NewTimer(e.timeout)
	defer timer.Stop()
	select {
	case r := <-done:
		if r.err != nil {
			return NumberValue(0), r.err
		}
		prog.put(fn)
		v, ok := ValueOf(r.v)
		if !ok {
			return NumberValue(0), fmt.Errorf("expression returned unsupported %T", r.v)
		}
		return v, nil
	case <-timer.C:
		// The runaway call keeps fn; later calls compile a fresh instance.
		return NumberValue(0), errExpressionTimeout
	}
}

func (e *ExpressionEvaluator) program(src string) *exprProgram {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.programs[src]; ok {
		return p
	}
	p := &exprProgram{src: src}
	fn, err := compileExpression(src)
	if err != nil {
		logger().Warn("reel: expression does not compile", "source", src, "err", err)
		p.err = err
	} else {
		p.idle = append(p.idle, fn)
	}
	e.programs[src] = p
	return p
}

// get takes an idle instance or compiles a new one.
func (p *exprProgram) get() (func(float64) any, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.mu.Lock()
	if n := len(p.idle); n > 0 {
		fn := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return fn, nil
	}
	p.mu.Unlock()
	return compileExpression(p.src)
}

func (p *exprProgram) put(fn func(float64) any) {
	p.mu.Lock()
	p.idle = append(p.idle, fn)
	p.mu.Unlock()
}

func (p *exprProgram) idleLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

func compileExpression(src string) (func(float64) any, error) {
	in := interp.New(interp.Options{})
	if err := in.Use(interp.Exports{"math/math": stdlib.Symbols["math/math"]}); err != nil {
		return nil, err
	}

	body := strings.TrimSpace(src)
	if body == "" {
		return nil, errors.New("empty expression")
	}
	if !strings.Contains(body, "return") {
		body = "return " + body
	}
	code := "import \"math\"\n\nvar _ = math.Pi\n\nfunc reelExpr(t float64) interface{} {\n" + body + "\n}\n"
	if _, err := in.Eval(code); err != nil {
		return nil, err
	}
	v, err := in.Eval("reelExpr")
	if err != nil {
		return nil, err
	}
	fn, ok := v.Interface().(func(float64) interface{})
	if !ok {
		return nil, fmt.Errorf("expression compiled to %s", v.Type())
	}
	return fn, nil
}
