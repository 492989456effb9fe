package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/banshee-data/mixcalc/internal/api"
	"github.com/banshee-data/mixcalc/internal/config"
	"github.com/banshee-data/mixcalc/internal/httputil"
	"github.com/banshee-data/mixcalc/internal/mix"
	"github.com/banshee-data/mixcalc/internal/mixdb"
	"github.com/banshee-data/mixcalc/internal/mixplot"
	"github.com/banshee-data/mixcalc/internal/monitoring"
	"github.com/banshee-data/mixcalc/internal/table"
)

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return errUsage
	}
	return nil
}

func isSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func loadConfig(path string) (*config.SolverConfig, error) {
	if path == "" {
		return config.DefaultSolverConfig(), nil
	}
	return config.LoadSolverConfig(path)
}

// openEngine opens (and migrates) the database and builds an engine over
// its table. The caller closes the returned DB.
func openEngine(ctx context.Context, dbPath, cfgPath string) (*mix.Engine, *mixdb.DB, error) {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	db, err := mixdb.NewDB(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	rows, err := db.LoadRows(ctx)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return mix.NewEngine(mix.NewGrid(rows), cfg), db, nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func handleServe(args []string, stderr io.Writer) error {
	fs := newFlagSet("serve", stderr)
	dbPath := fs.String("db", defaultDBPath, "SQLite database path")
	cfgPath := fs.String("config", "", "Solver configuration JSON")
	listen := fs.String("listen", ":8080", "Listen address")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, db, err := openEngine(ctx, *dbPath, *cfgPath)
	if err != nil {
		return err
	}
	defer db.Close()

	mux := api.NewServer(engine).ServeMux()
	if err := db.AttachAdminRoutes(mux); err != nil {
		return err
	}

	server := &http.Server{
		Addr:              *listen,
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		monitoring.Logf("mixcalc: listening on %s", *listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}
	monitoring.Logf("mixcalc: server stopped")
	return nil
}

// parsePairs reads key=value arguments into a raw request map. Values stay
// strings; NormalizeRequest reads numbers out of them.
func parsePairs(args []string) (map[string]any, error) {
	raw := make(map[string]any, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("expected key=value, got %q", a)
		}
		raw[k] = v
	}
	return raw, nil
}

// readRequest takes key=value pairs when given, else a JSON object from in.
func readRequest(pairs []string, in io.Reader) (map[string]any, error) {
	if len(pairs) > 0 {
		return parsePairs(pairs)
	}
	var raw map[string]any
	if err := json.NewDecoder(in).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to read JSON request: %w", err)
	}
	if raw == nil {
		return nil, errors.New("request must be a JSON object")
	}
	return raw, nil
}

func handleSolve(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := newFlagSet("solve", stderr)
	dbPath := fs.String("db", defaultDBPath, "SQLite database path")
	cfgPath := fs.String("config", "", "Solver configuration JSON")
	remote := fs.String("remote", "", "Base URL of a running mixcalc server")
	timeout := fs.Duration("timeout", 10*time.Second, "Remote request timeout")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	raw, err := readRequest(fs.Args(), stdin)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if *remote != "" {
		ctx, cancel := context.WithTimeout(ctx, *timeout)
		defer cancel()
		endpoint, err := url.JoinPath(*remote, "/api/solve")
		if err != nil {
			return fmt.Errorf("invalid remote URL: %w", err)
		}
		var res map[string]any
		status, err := httputil.PostJSON(ctx, http.DefaultClient, endpoint, raw, &res)
		if err != nil {
			return err
		}
		if err := writeJSON(stdout, res); err != nil {
			return err
		}
		if status != http.StatusOK {
			return fmt.Errorf("server returned status %d", status)
		}
		return nil
	}

	engine, db, err := openEngine(ctx, *dbPath, *cfgPath)
	if err != nil {
		return err
	}
	defer db.Close()

	res := engine.Solve(api.NormalizeRequest(raw))
	if err := writeJSON(stdout, res); err != nil {
		return err
	}
	if res.Outcome == mix.OutcomeInvalid {
		return fmt.Errorf("%s: %s", res.Where, res.Error)
	}
	return nil
}

func handlePredict(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("predict", stderr)
	dbPath := fs.String("db", defaultDBPath, "SQLite database path")
	cfgPath := fs.String("config", "", "Solver configuration JSON")
	abm := fs.Float64("abm", 0, "Alcohol by mass, % (required)")
	sbm := fs.Float64("sbm", 0, "Sugar by mass, % (required)")
	t := fs.Float64("t", 0, "Report temperature in °C (default: configured report temperature)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if !isSet(fs, "abm") || !isSet(fs, "sbm") {
		fmt.Fprintln(stderr, "Error: -abm and -sbm are required")
		fs.Usage()
		return errUsage
	}

	engine, db, err := openEngine(context.Background(), *dbPath, *cfgPath)
	if err != nil {
		return err
	}
	defer db.Close()

	temp := *t
	if !isSet(fs, "t") {
		temp = engine.ReportTemp()
	}
	return writeJSON(stdout, engine.PredictAll(*abm, *sbm, temp))
}

func handleImport(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := newFlagSet("import", stderr)
	dbPath := fs.String("db", defaultDBPath, "SQLite database path")
	dryRun := fs.Bool("dry-run", false, "Validate and count rows without writing")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Error: import takes exactly one CSV path (use - for stdin)")
		fs.Usage()
		return errUsage
	}

	in := stdin
	if name := fs.Arg(0); name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return fmt.Errorf("failed to open CSV: %w", err)
		}
		defer f.Close()
		in = f
	}

	db, err := mixdb.NewDB(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	stats, err := db.ImportCSV(context.Background(), in, *dryRun)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, stats.String())
	for _, s := range stats.ErrorSamples {
		fmt.Fprintln(stdout, "  "+s)
	}
	return nil
}

func handleMigrate(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("migrate", stderr)
	dbPath := fs.String("db", defaultDBPath, "SQLite database path")
	fs.Usage = func() { mixdb.PrintMigrateHelp(stderr) }
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	return mixdb.RunMigrateCommand(fs.Args(), *dbPath, stdout)
}

// parseFloatList reads "0,10,20" style lists.
func parseFloatList(s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", part)
		}
		out = append(out, v)
	}
	return out, nil
}

func handlePlot(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("plot", stderr)
	dbPath := fs.String("db", defaultDBPath, "SQLite database path")
	cfgPath := fs.String("config", "", "Solver configuration JSON")
	propName := fs.String("property", string(table.BrixATC), "Property to plot")
	t := fs.Float64("t", 0, "Temperature in °C (default: configured report temperature)")
	abmList := fs.String("abm", "", "Comma-separated ABM levels (default: first, middle and last axis point)")
	out := fs.String("out", "curves.png", "Output PNG path")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	prop, ok := table.ParseProperty(*propName)
	if !ok {
		fmt.Fprintf(stderr, "Error: unknown property %q\n", *propName)
		return errUsage
	}
	abms, err := parseFloatList(*abmList)
	if err != nil {
		fmt.Fprintf(stderr, "Error: -abm: %v\n", err)
		return errUsage
	}

	engine, db, err := openEngine(context.Background(), *dbPath, *cfgPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if len(abms) == 0 {
		abms = axisSample(engine.Grid().Axis(mix.DimABM))
	}
	temp := *t
	if !isSet(fs, "t") {
		temp = engine.ReportTemp()
	}
	if err := mixplot.SaveCurves(engine, prop, temp, abms, *out); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Wrote %s\n", *out)
	return nil
}

func axisSample(axis []float64) []float64 {
	if len(axis) <= 2 {
		return axis
	}
	return []float64{axis[0], axis[len(axis)/2], axis[len(axis)-1]}
}
