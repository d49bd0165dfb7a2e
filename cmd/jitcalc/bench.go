package main

import (
	"fmt"
	"time"

	"github.com/chazu/jitcalc/compiler"
	"github.com/chazu/jitcalc/manifest"
	"github.com/chazu/jitcalc/pkg/bytecode"
	"github.com/chazu/jitcalc/pkg/jit"
	"github.com/chazu/jitcalc/store"
)

// runBenchmark evaluates the configured expression in each of the
// three modes and prints the sum and elapsed milliseconds per mode.
// All modes must report the same sum; the JIT is expected to beat the
// VM, which in turn beats the tree walker.
func runBenchmark(cfg *manifest.Manifest, history *store.History) {
	expr := cfg.Bench.Expression
	iters := cfg.Bench.Iterations

	n, err := compiler.Parse(expr)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	p := bytecode.Compile(n)

	fmt.Printf("benchmark: %d iterations\n", iters)

	report := func(mode string, sum float64, elapsed time.Duration) {
		fmt.Printf("%-4s  sum=%s  %dms\n", mode, formatResult(sum), elapsed.Milliseconds())
		if history != nil {
			if err := history.RecordBenchmark(expr, mode, iters, sum, elapsed); err != nil {
				log.Warningf("recording benchmark: %v", err)
			}
		}
	}

	// Tree walker
	start := time.Now()
	sum := 0.0
	for i := 0; i < iters; i++ {
		sum += n.Eval()
	}
	report("tree", sum, time.Since(start))

	// Bytecode VM
	vm := bytecode.NewVM()
	start = time.Now()
	sum = 0.0
	for i := 0; i < iters; i++ {
		v, err := vm.Run(p)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		sum += v
	}
	report("vm", sum, time.Since(start))

	// Native JIT
	if !jit.Supported {
		fmt.Println("jit   skipped (native execution requires a 386 build)")
		return
	}
	fn, err := jit.Compile(p)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	defer fn.Close()
	start = time.Now()
	sum = 0.0
	for i := 0; i < iters; i++ {
		sum += fn.Call()
	}
	report("jit", sum, time.Since(start))
}
