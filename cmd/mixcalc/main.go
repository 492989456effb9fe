package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/banshee-data/mixcalc/internal/version"
)

const defaultDBPath = "mixcalc.db"

// errUsage marks a bad invocation; the handler has already printed why.
var errUsage = errors.New("usage error")

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	command, rest := args[0], args[1:]
	var err error
	switch command {
	case "serve":
		err = handleServe(rest, stderr)
	case "solve":
		err = handleSolve(rest, stdin, stdout, stderr)
	case "predict":
		err = handlePredict(rest, stdout, stderr)
	case "import":
		err = handleImport(rest, stdin, stdout, stderr)
	case "migrate":
		err = handleMigrate(rest, stdout, stderr)
	case "plot":
		err = handlePlot(rest, stdout, stderr)
	case "version":
		fmt.Fprintln(stdout, version.Get().String())
	case "help", "-h", "--help":
		printUsage(stdout)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", command)
		printUsage(stderr)
		return 1
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, errUsage):
		return 2
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, `mixcalc - ethanol/sugar mixture calculator

Usage: mixcalc <command> [options]

Commands:
  serve      Serve the solver API, charts and admin routes over HTTP
  solve      Solve one request given as JSON or key=value pairs
  predict    Predict every property at a known composition
  import     Load a measurement CSV into the database
  migrate    Manage database schema migrations
  plot       Save property-vs-SBM curves as a PNG
  version    Show mixcalc version
  help       Show this help message

Common Flags:
  -db <file>       SQLite database path (default: mixcalc.db)
  -config <file>   Solver configuration JSON (default: built-in)

Examples:
  # Load a table, then serve it
  mixcalc import -db mix.db mix_data.csv
  mixcalc serve -db mix.db -listen :8080

  # Invert refractometer and hydrometer readings
  mixcalc solve -db mix.db mode=brix_density brix=14.2 brix_t=20 density=1.0312 density_t=20

  # Same request against a running server
  echo '{"mode":"abv_brix","abv":13.3,"abv_T":20,"brix":23.5,"brix_T":20}' | mixcalc solve -remote http://localhost:8080

  # Brix curves at 20°C for three alcohol levels
  mixcalc plot -db mix.db -property BrixATC -abm 0,10,20 -out brix.png`)
}

// newFlagSet returns a flag set that reports errors to stderr instead of
// exiting, so handlers stay testable.
func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}
