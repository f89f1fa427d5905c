// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command mettatron is the program entry point described in spec.md §6:
// it accepts a source file argument, a --repl flag, and configuration
// flags for parallelism, compiling and running the program through the
// Hybrid Executor and printing every !-directive's output in program
// order.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/luxfi/mettatron/codec"
	"github.com/luxfi/mettatron/config"
	"github.com/luxfi/mettatron/exec"
	"github.com/luxfi/mettatron/host"
	"github.com/luxfi/mettatron/interp"
	"github.com/luxfi/mettatron/internal/logging"
	"github.com/luxfi/mettatron/store"
	"github.com/luxfi/mettatron/utils/formatting"
	"github.com/luxfi/mettatron/utils/version"
	"github.com/luxfi/mettatron/utils/wrappers"
	"github.com/luxfi/mettatron/value"
	"github.com/luxfi/mettatron/vm"
)

// appVersion identifies this binary for the --version flag and for any
// future host-bridge handshake that wants to report it.
var appVersion = version.Application{
	Name:    "mettatron",
	Version: version.Semantic{Major: 0, Minor: 1, Patch: 0},
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("mettatron", flag.ContinueOnError)
	fs.SetOutput(stderr)

	repl := fs.Bool("repl", false, "read and evaluate forms from stdin interactively")
	preset := fs.String("preset", "default", fmt.Sprintf("thread-pool preset: %v", config.PresetNames()))
	dumpBytecode := fs.Bool("dump-bytecode", false, "print each directive's compiled bytecode as hex before running it")
	dumpSnapshot := fs.Bool("dump-snapshot-hex", false, "print the final environment snapshot as hex on exit")
	jsonOutput := fs.Bool("json", false, "print the final runtime state as a host-bridge JSON document instead of plain outputs")
	metricsAddr := fs.String("metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")
	showVersion := fs.Bool("version", false, "print version information and exit")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Fprintln(stdout, appVersion.String())
		return 0
	}

	if dsn := os.Getenv("METTATRON_SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: dsn}); err != nil {
			fmt.Fprintf(stderr, "mettatron: sentry init failed: %v\n", err)
		}
		defer sentry.Flush(0)
		defer func() {
			if r := recover(); r != nil {
				sentry.CurrentHub().Recover(r)
				sentry.Flush(0)
				panic(r)
			}
		}()
	}

	cfg, err := config.Preset(*preset)
	if err != nil {
		fmt.Fprintf(stderr, "mettatron: %v\n", err)
		return 2
	}

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go http.ListenAndServe(*metricsAddr, mux)
	}

	logger := logging.NewComponent(logging.NewNoOp(), "cli")
	interner := value.NewInterner()
	in := interp.New(interner)
	ex := exec.New(in, cfg)
	ex.SetTierObserver(func(chunk *vm.Chunk, kind, from, to string) {
		logger.Debug("tier transition", "chunk", chunk.DebugName, "kind", kind, "from", from, "to", to)
	})

	cli := &cliRunner{
		ex:           ex,
		interner:     interner,
		stdout:       stdout,
		stderr:       stderr,
		dumpBytecode: *dumpBytecode,
		quiet:        *jsonOutput,
	}

	state := exec.RuntimeState{Env: store.New()}

	if *repl {
		state = cli.repl(state, stdin)
	} else {
		rest := fs.Args()
		if len(rest) != 1 {
			fmt.Fprintln(stderr, "usage: mettatron [flags] <source-file>")
			return 2
		}
		src, err := os.ReadFile(rest[0])
		if err != nil {
			fmt.Fprintf(stderr, "mettatron: %v\n", err)
			return 1
		}
		var errs wrappers.Errs
		state, errs = cli.runSource(state, string(src))
		if errs.Errored() {
			fmt.Fprintf(stderr, "mettatron: %v\n", errs.Err())
			return 1
		}
	}

	if *dumpSnapshot {
		hex, err := formatting.Encode(formatting.HexNC, store.Snapshot(state.Env))
		if err == nil {
			fmt.Fprintf(stdout, "snapshot: %s\n", hex)
		}
	}

	if *jsonOutput {
		if err := writeJSON(stdout, interner, state); err != nil {
			fmt.Fprintf(stderr, "mettatron: %v\n", err)
			return 1
		}
	}

	if len(state.Outputs) > 0 && allErrors(state.Outputs) {
		return 1
	}
	return 0
}

// cliRunner threads a single Executor and interner across one process
// invocation, whether running a file once or serving a REPL loop.
type cliRunner struct {
	ex           *exec.Executor
	interner     *value.Interner
	stdout       io.Writer
	stderr       io.Writer
	dumpBytecode bool
	// quiet suppresses the plain-text per-directive output, used when the
	// caller instead wants a single JSON document via --json.
	quiet bool
}

// runSource compiles and runs source against accumulated, printing each
// new output as it is published and aggregating runtime/system errors
// into errs for the caller's exit-code decision (spec.md §6: "runtime
// errors appear in outputs as Error values and do not affect exit code
// unless all directives erred").
func (c *cliRunner) runSource(accumulated exec.RuntimeState, source string) (exec.RuntimeState, wrappers.Errs) {
	var errs wrappers.Errs
	compiled, err := exec.Compile(c.interner, source)
	if err != nil {
		errs.Add(err)
		return accumulated, errs
	}

	if c.dumpBytecode {
		c.dumpChunks(compiled.Pending)
	}

	next, err := exec.RunState(c.ex, accumulated, compiled)
	if err != nil {
		errs.Add(err)
		return accumulated, errs
	}

	if !c.quiet {
		for _, v := range next.Outputs[len(accumulated.Outputs):] {
			fmt.Fprintln(c.stdout, v.String())
		}
	}
	return next, errs
}

// writeJSON converts state to a host-bridge structpb.Struct (host.Bridge)
// and marshals it with the teacher's codec.Codec, giving callers that
// want machine-readable output a document built on the same byte-
// faithful conversion the host-integration path uses, rather than a
// second ad hoc serialization.
func writeJSON(w io.Writer, interner *value.Interner, state exec.RuntimeState) error {
	bridge := host.New(interner)
	hostValue, err := bridge.StateToHostValue(state)
	if err != nil {
		return err
	}
	data, err := codec.Codec.Marshal(codec.CurrentVersion, hostValue)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// dumpChunks best-effort compiles each pending directive to bytecode and
// prints it as hex; forms the VM compiler refuses (Tier 0-only forms) are
// silently skipped, since they never produce a vm.Chunk. Bare top-level
// forms (rule defs, fact/type assertions) have no `!` wrapper and are
// skipped too — only directives ever reach the VM.
func (c *cliRunner) dumpChunks(pending []value.V) {
	for _, form := range pending {
		inner, ok := stripDirective(form)
		if !ok {
			continue
		}
		chunk, err := vm.Compile(inner, "dump")
		if err != nil {
			continue
		}
		hex, err := formatting.Encode(formatting.HexNC, chunk.Code)
		if err != nil {
			continue
		}
		fmt.Fprintf(c.stderr, "bytecode[%s]: %s\n", chunk.DebugName, hex)
	}
}

// stripDirective reports whether form is a `!expr` wrapper and, if so,
// returns its inner expression — the same shape exec's isDirective
// checks for, duplicated here since that helper is unexported.
func stripDirective(form value.V) (value.V, bool) {
	if form.Kind() != value.KindSExpr {
		return value.V{}, false
	}
	items := form.Items()
	if len(items) != 2 || items[0].Kind() != value.KindAtom {
		return value.V{}, false
	}
	if items[0].AsString() != "!" {
		return value.V{}, false
	}
	return items[1], true
}

// repl reads one form (or more) per line from stdin and threads
// RuntimeState across lines, printing each line's new outputs
// immediately — the "REPL shell" collaborator spec.md §1 scopes as an
// external interface built on compile/run_state, not a separate engine.
func (c *cliRunner) repl(state exec.RuntimeState, stdin io.Reader) exec.RuntimeState {
	scanner := bufio.NewScanner(stdin)
	fmt.Fprint(c.stdout, "mettatron> ")
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			fmt.Fprint(c.stdout, "mettatron> ")
			continue
		}
		next, errs := c.runSource(state, line)
		if errs.Errored() {
			fmt.Fprintf(c.stderr, "error: %v\n", errs.Err())
		} else {
			state = next
		}
		fmt.Fprint(c.stdout, "mettatron> ")
	}
	return state
}

func allErrors(outputs []value.V) bool {
	for _, v := range outputs {
		if !v.IsError() {
			return false
		}
	}
	return true
}
