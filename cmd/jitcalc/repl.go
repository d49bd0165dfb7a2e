package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/chazu/jitcalc/engine"
	"github.com/chazu/jitcalc/manifest"
	"github.com/chazu/jitcalc/store"
)

// runREPL starts the interactive read-eval-print loop.
func runREPL(cfg *manifest.Manifest, kind engine.Kind, cache *store.Cache, history *store.History) {
	e, err := engine.New(kind, cache)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(cfg.REPL.Prompt)

		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue

		case line == "exit":
			return

		case line == "cls":
			clearTerminal()
			continue

		case line == "test":
			runBenchmark(cfg, history)
			continue

		case line == "history":
			showHistory(history)
			continue

		case strings.HasPrefix(line, "engine"):
			e = switchEngine(e, strings.TrimSpace(strings.TrimPrefix(line, "engine")), cache)
			continue

		case strings.HasPrefix(line, "dis "):
			disassemble(e, strings.TrimSpace(strings.TrimPrefix(line, "dis ")))
			continue
		}

		v, err := e.Eval(line)
		if history != nil {
			history.RecordEval(line, string(e.Kind()), v, err)
		}
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		fmt.Println(formatResult(v))
	}
}

// formatResult prints with ~16 significant decimal digits.
func formatResult(v float64) string {
	return strconv.FormatFloat(v, 'g', 16, 64)
}

// clearTerminal clears the screen with ANSI escapes.
func clearTerminal() {
	fmt.Print("\x1b[2J\x1b[H")
}

// switchEngine handles the `engine [name]` command.
func switchEngine(current *engine.Engine, name string, cache *store.Cache) *engine.Engine {
	if name == "" {
		fmt.Printf("engine: %s\n", current.Kind())
		return current
	}

	kind, err := engine.ParseKind(name)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return current
	}
	e, err := engine.New(kind, cache)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return current
	}
	fmt.Printf("engine: %s\n", kind)
	return e
}

// disassemble handles the `dis <expr>` command.
func disassemble(e *engine.Engine, expr string) {
	p, err := e.Compile(expr)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Print(p.Disassemble())
}

// showHistory handles the `history` command.
func showHistory(history *store.History) {
	if history == nil {
		fmt.Println("history is disabled")
		return
	}

	evals, err := history.Recent(10)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	for i := len(evals) - 1; i >= 0; i-- {
		e := evals[i]
		if e.Error != "" {
			fmt.Printf("%4d  [%s] %s  => error: %s\n", e.ID, e.Engine, e.Expr, e.Error)
		} else {
			fmt.Printf("%4d  [%s] %s  => %s\n", e.ID, e.Engine, e.Expr, formatResult(e.Result))
		}
	}
}
