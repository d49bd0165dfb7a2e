// jitcalc CLI - interactive arithmetic evaluator with a tree walker, a
// bytecode VM and a native x86 JIT.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/jitcalc/engine"
	"github.com/chazu/jitcalc/manifest"
	"github.com/chazu/jitcalc/pkg/jit"
	"github.com/chazu/jitcalc/server"
	"github.com/chazu/jitcalc/store"
)

var log = commonlog.GetLogger("jitcalc")

func main() {
	verbosity := flag.Int("v", 0, "Log verbosity (0 = quiet)")
	engineName := flag.String("engine", "", "Execution engine: tree, vm or jit (default from config)")
	serveMode := flag.Bool("serve", false, "Start the evaluation service instead of the REPL")
	servePort := flag.Int("port", 0, "Evaluation service port (used with --serve)")
	noHistory := flag.Bool("no-history", false, "Skip the evaluation history database")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: jitcalc [options] [expression]\n\n")
		fmt.Fprintf(os.Stderr, "Without an expression, starts an interactive REPL.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  jitcalc                     # Start REPL\n")
		fmt.Fprintf(os.Stderr, "  jitcalc '2 * (3 + 1/2)'     # Evaluate once and exit\n")
		fmt.Fprintf(os.Stderr, "  jitcalc -engine vm          # Force the bytecode VM\n")
		fmt.Fprintf(os.Stderr, "  jitcalc --serve --port 8080 # Start the evaluation service\n")
	}
	flag.Parse()

	commonlog.Configure(*verbosity, nil)

	cfg, err := manifest.FindAndLoad(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	kind, err := chooseEngine(*engineName, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var cache *store.Cache
	if cfg.Eval.CacheDir != "" {
		cache, err = store.NewCache(cfg.Eval.CacheDir)
		if err != nil {
			log.Warningf("disabling program cache: %v", err)
			cache = nil
		}
	}

	var history *store.History
	if !*noHistory {
		history, err = store.OpenHistory(historyPath(cfg))
		if err != nil {
			log.Warningf("disabling history: %v", err)
			history = nil
		} else {
			defer history.Close()
		}
	}

	// Start the evaluation service if requested.
	if *serveMode {
		addr := cfg.Server.Addr
		if *servePort != 0 {
			addr = fmt.Sprintf(":%d", *servePort)
		}
		srv := server.New(
			server.WithDefaultEngine(kind),
			server.WithCache(cache),
			server.WithHistory(history),
		)
		defer srv.Stop()
		if err := srv.ListenAndServe(addr); err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Evaluate a single expression from the command line.
	if args := flag.Args(); len(args) > 0 {
		e, err := engine.New(kind, cache)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		expr := strings.Join(args, " ")
		v, err := e.Eval(expr)
		if history != nil {
			history.RecordEval(expr, string(kind), v, err)
		}
		if err != nil {
			fmt.Printf("error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(formatResult(v))
		return
	}

	runREPL(cfg, kind, cache, history)
}

// chooseEngine resolves the engine from the flag, the config, and what
// this build can actually execute.
func chooseEngine(flagName string, cfg *manifest.Manifest) (engine.Kind, error) {
	name := flagName
	if name == "" {
		name = cfg.Eval.Engine
	}
	if name == "" {
		return engine.Default(), nil
	}

	kind, err := engine.ParseKind(name)
	if err != nil {
		return "", err
	}
	if kind == engine.JIT && !jit.Supported {
		log.Noticef("native execution unavailable, falling back to the bytecode VM")
		return engine.VM, nil
	}
	return kind, nil
}

// historyPath resolves the history database location: the configured
// path, or ~/.jitcalc/history.db.
func historyPath(cfg *manifest.Manifest) string {
	if cfg.REPL.History != "" {
		return cfg.REPL.History
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".jitcalc", "history.db")
	}
	return filepath.Join(home, ".jitcalc", "history.db")
}
