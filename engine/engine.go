// Package engine provides a uniform facade over the three execution
// strategies: direct tree-walk interpretation, the bytecode VM, and
// the native JIT.
package engine

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/jitcalc/compiler"
	"github.com/chazu/jitcalc/pkg/bytecode"
	"github.com/chazu/jitcalc/pkg/jit"
	"github.com/chazu/jitcalc/store"
)

var log = commonlog.GetLogger("jitcalc.engine")

// Kind names an execution strategy.
type Kind string

const (
	Tree Kind = "tree"
	VM   Kind = "vm"
	JIT  Kind = "jit"
)

// Default returns the preferred engine for this process: the JIT where
// native execution is possible, the bytecode VM otherwise.
func Default() Kind {
	if jit.Supported {
		return JIT
	}
	return VM
}

// ParseKind validates an engine name.
func ParseKind(name string) (Kind, error) {
	switch Kind(name) {
	case Tree, VM, JIT:
		return Kind(name), nil
	default:
		return "", fmt.Errorf("unknown engine %q (want tree, vm or jit)", name)
	}
}

// Engine evaluates expression strings with one strategy.
type Engine struct {
	kind  Kind
	vm    *bytecode.VM
	cache *store.Cache // optional compiled-program cache
}

// New creates an engine of the given kind. cache may be nil to disable
// program caching.
func New(kind Kind, cache *store.Cache) (*Engine, error) {
	if kind == JIT && !jit.Supported {
		return nil, jit.ErrUnsupported
	}
	return &Engine{kind: kind, vm: bytecode.NewVM(), cache: cache}, nil
}

// Kind returns the engine's strategy.
func (e *Engine) Kind() Kind {
	return e.kind
}

// Compile parses an expression and compiles it to bytecode, consulting
// the program cache when one is configured.
func (e *Engine) Compile(expr string) (*bytecode.Program, error) {
	if e.cache != nil {
		if p, ok := e.cache.Load(expr); ok {
			log.Debugf("cache hit for %q", expr)
			return p, nil
		}
	}

	n, err := compiler.Parse(expr)
	if err != nil {
		return nil, err
	}
	p := bytecode.Compile(n)

	if e.cache != nil {
		if err := e.cache.Store(expr, p); err != nil {
			log.Warningf("caching program: %v", err)
		}
	}
	return p, nil
}

// Eval evaluates an expression with this engine's strategy.
func (e *Engine) Eval(expr string) (float64, error) {
	switch e.kind {
	case Tree:
		n, err := compiler.Parse(expr)
		if err != nil {
			return 0, err
		}
		return n.Eval(), nil

	case VM:
		p, err := e.Compile(expr)
		if err != nil {
			return 0, err
		}
		return e.vm.Run(p)

	case JIT:
		p, err := e.Compile(expr)
		if err != nil {
			return 0, err
		}
		fn, err := jit.Compile(p)
		if err != nil {
			return 0, err
		}
		defer fn.Close()
		return fn.Call(), nil
	}

	return 0, fmt.Errorf("unknown engine %q", e.kind)
}
