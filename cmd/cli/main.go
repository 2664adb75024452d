package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"incuba/adapters/api"
	"incuba/adapters/linelist"
	"incuba/adapters/plotting"
	"incuba/adapters/postgres"
	"incuba/adapters/postgres/migrations"
	"incuba/adapters/render"
	"incuba/app"
	"incuba/domain/core"
	"incuba/domain/dist"
	"incuba/domain/results"
	"incuba/internal/config"
	"incuba/internal/likelihood"
	"incuba/internal/testkit"
	"incuba/ports"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "incuba",
		Short: "Estimate incubation period distributions from doubly interval-censored line lists",
	}

	rootCmd.AddCommand(
		newFitCmd(),
		newSynthCmd(),
		newServeCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type fitOptions struct {
	family         string
	method         string
	replicates     int
	workers        int
	maxFailureFrac float64
	seed           int64
	quantiles      string
	mcmcIterations int
	mcmcBurnIn     float64
	epoch          string
	filter         string
	localRegion    string
	exactDates     bool
	sensitivity    bool
	format         string
	outFile        string
	plotDir        string
}

func newFitCmd() *cobra.Command {
	var opts fitOptions

	cmd := &cobra.Command{
		Use:   "fit [linelist-file]",
		Short: "Fit incubation period distributions to a line list",
		Long: `Fit parametric incubation period distributions to a doubly interval-censored
line list (CSV or XLSX) and report parameter estimates, quantiles and the mean,
each with a 95% uncertainty interval.

Erlang is fitted by MCMC over its posterior; the continuous families are fitted
by direct likelihood maximization with parallel bootstrap confidence intervals.
The auto method picks per family.

Example: incuba fit linelist.csv --family gamma --replicates 2000 --seed 7`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFit(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.family, "family", "all", "Distribution family: all|log-normal|gamma|weibull|erlang")
	cmd.Flags().StringVar(&opts.method, "method", "auto", "Estimation method: auto|optim|mcmc")
	cmd.Flags().IntVar(&opts.replicates, "replicates", 1000, "Bootstrap replicates for confidence intervals")
	cmd.Flags().IntVar(&opts.workers, "workers", 4, "Bootstrap worker count")
	cmd.Flags().Float64Var(&opts.maxFailureFrac, "max-failure-frac", 0.10, "Abort a bootstrap when this fraction of replicates fails")
	cmd.Flags().Int64Var(&opts.seed, "seed", 42, "Random seed for deterministic operations")
	cmd.Flags().StringVar(&opts.quantiles, "quantiles", config.DefaultQuantiles, "Comma-separated quantile probabilities to report")
	cmd.Flags().IntVar(&opts.mcmcIterations, "mcmc-iterations", 20000, "MCMC iterations for the Erlang posterior")
	cmd.Flags().Float64Var(&opts.mcmcBurnIn, "mcmc-burnin", 0.2, "Fraction of MCMC iterations discarded as burn-in")
	cmd.Flags().StringVar(&opts.epoch, "epoch", core.DefaultEpochDate, "Reference epoch (YYYY-MM-DD) anchoring elapsed-day bounds")
	cmd.Flags().StringVar(&opts.filter, "filter", "none", "Cohort filter: none|fever|travel|epoch-1y")
	cmd.Flags().StringVar(&opts.localRegion, "local-region", "wuhan", "Local region the travel filter excludes")
	cmd.Flags().BoolVar(&opts.exactDates, "exact-dates", false, "Treat single-day date ranges as exact observations")
	cmd.Flags().BoolVar(&opts.sensitivity, "sensitivity", false, "Fit every sensitivity cohort side by side (overrides --filter)")
	cmd.Flags().StringVar(&opts.format, "format", "text", "Report format: text|markdown|html|csv")
	cmd.Flags().StringVar(&opts.outFile, "out", "", "Write the report to a file instead of stdout")
	cmd.Flags().StringVar(&opts.plotDir, "plot-dir", "", "Write CDF plots (PNG) into this directory")

	return cmd
}

func runFit(ctx context.Context, path string, opts fitOptions) error {
	epoch, err := core.ParseEpoch(opts.epoch)
	if err != nil {
		return fmt.Errorf("invalid epoch %q (use YYYY-MM-DD): %w", opts.epoch, err)
	}

	outFormat, err := render.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	quantiles, err := config.ParseQuantiles(opts.quantiles)
	if err != nil {
		return fmt.Errorf("invalid quantiles: %w", err)
	}

	var families []dist.Family
	if opts.family != "" && opts.family != "all" {
		family, err := dist.ParseFamily(opts.family)
		if err != nil {
			return err
		}
		families = []dist.Family{family}
	}

	var method results.Method
	if opts.method != "" && opts.method != "auto" {
		method, err = results.ParseMethod(opts.method)
		if err != nil {
			return err
		}
	}

	list, err := linelist.NewReader(path).Read()
	if err != nil {
		return fmt.Errorf("failed to read line list: %w", err)
	}

	analysisCfg := config.AnalysisConfig{
		Replicates:         opts.replicates,
		Workers:            opts.workers,
		MaxFailureFrac:     opts.maxFailureFrac,
		Seed:               opts.seed,
		Quantiles:          quantiles,
		MCMCIterations:     opts.mcmcIterations,
		MCMCBurnInFraction: opts.mcmcBurnIn,
	}
	listOpts := linelist.Options{Epoch: epoch, ExactDates: opts.exactDates}

	kit := testkit.NewTestKit()
	service := app.NewAnalysisService(likelihood.NewEngine(), kit.RNGAdapter(), nil)

	out, closeOut, err := openOutput(opts.outFile)
	if err != nil {
		return err
	}
	defer closeOut()

	if opts.sensitivity {
		return runSensitivityFit(ctx, service, list, listOpts, opts.localRegion,
			families, method, analysisCfg, outFormat, out)
	}

	filterName, err := linelist.ParseFilter(opts.filter)
	if err != nil {
		return err
	}
	subset, subOpts, err := linelist.Apply(filterName, list, listOpts, opts.localRegion)
	if err != nil {
		return err
	}
	cohort, summary, err := linelist.BuildCohort(subset, subOpts)
	if err != nil {
		return err
	}

	fmt.Printf("📋 %s (filter %s): %d rows, %d accepted, %d rejected, %d with defaulted bounds\n",
		filepath.Base(path), filterName, summary.Total, summary.Accepted, summary.RejectedCount(), summary.Defaulted)

	report, err := service.RunAnalysis(ctx, app.AnalysisRequest{
		Cohort:   cohort,
		Families: families,
		Method:   method,
		Config:   analysisCfg,
		Epoch:    subOpts.Epoch,
	})
	if err != nil {
		return err
	}

	for family, msg := range report.Failures {
		fmt.Fprintf(os.Stderr, "⚠️  %s: %s\n", family, msg)
	}

	if err := render.Render(out, report, outFormat); err != nil {
		return err
	}
	if opts.outFile != "" {
		fmt.Printf("💾 Report written to %s\n", opts.outFile)
	}

	if opts.plotDir != "" {
		files, err := plotting.WriteAll(report, cohort, opts.plotDir)
		if err != nil {
			return fmt.Errorf("plotting failed: %w", err)
		}
		fmt.Printf("📈 Wrote %d plots to %s\n", len(files), opts.plotDir)
	}

	return nil
}

// runSensitivityFit fits the same families to every sensitivity cohort and
// renders the reports one after another. A cohort whose every family fails is
// reported inline rather than aborting the remaining cohorts.
func runSensitivityFit(ctx context.Context, service *app.AnalysisService,
	list *linelist.LineList, listOpts linelist.Options, localRegion string,
	families []dist.Family, method results.Method, analysisCfg config.AnalysisConfig,
	outFormat render.Format, out io.Writer) error {

	set, err := linelist.SensitivitySet(list, listOpts, localRegion)
	if err != nil {
		return err
	}

	for i, named := range set {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "=== Cohort %s (n=%d) ===\n\n", named.Name, named.Cohort.Size())

		report, err := service.RunAnalysis(ctx, app.AnalysisRequest{
			Cohort:   named.Cohort,
			Families: families,
			Method:   method,
			Config:   analysisCfg,
			Epoch:    named.Epoch,
		})
		if err != nil {
			fmt.Fprintf(out, "fit failed: %v\n", err)
			continue
		}
		for family, msg := range report.Failures {
			fmt.Fprintf(os.Stderr, "⚠️  [%s] %s: %s\n", named.Name, family, msg)
		}
		if err := render.Render(out, report, outFormat); err != nil {
			return err
		}
	}
	return nil
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, func() { f.Close() }, nil
}

func newSynthCmd() *cobra.Command {
	var (
		caseCount int
		seed      int64
		meanLog   float64
		sdLog     float64
		exactFrac float64
		feverRate float64
		epochStr  string
	)

	cmd := &cobra.Command{
		Use:   "synth [out.csv]",
		Short: "Generate a synthetic line list from a known log-normal",
		Long: `Generate a synthetic doubly interval-censored line list whose true incubation
distribution is a known log-normal, for exercising the fitting pipeline end to
end and checking parameter recovery.

Example: incuba synth cases.csv --cases 500 --meanlog 1.6 --sdlog 0.5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSynth(args[0], caseCount, seed, meanLog, sdLog, exactFrac, feverRate, epochStr)
		},
	}

	defaults := testkit.DefaultLinelistConfig()
	cmd.Flags().IntVar(&caseCount, "cases", defaults.Cases, "Number of cases to generate")
	cmd.Flags().Int64Var(&seed, "seed", defaults.Seed, "Random seed for deterministic operations")
	cmd.Flags().Float64Var(&meanLog, "meanlog", defaults.MeanLog, "True log-normal meanlog")
	cmd.Flags().Float64Var(&sdLog, "sdlog", defaults.SdLog, "True log-normal sdlog")
	cmd.Flags().Float64Var(&exactFrac, "exact-frac", defaults.ExactFrac, "Fraction of cases with exactly known dates")
	cmd.Flags().Float64Var(&feverRate, "fever-rate", defaults.FeverRate, "Fraction of cases with a recorded fever")
	cmd.Flags().StringVar(&epochStr, "epoch", core.DefaultEpochDate, "Reference epoch (YYYY-MM-DD) for generated dates")

	return cmd
}

func runSynth(path string, caseCount int, seed int64, meanLog, sdLog, exactFrac, feverRate float64, epochStr string) error {
	epoch, err := core.ParseEpoch(epochStr)
	if err != nil {
		return fmt.Errorf("invalid epoch %q (use YYYY-MM-DD): %w", epochStr, err)
	}

	gen := testkit.NewLinelistGenerator(testkit.LinelistGeneratorConfig{
		Cases:     caseCount,
		MeanLog:   meanLog,
		SdLog:     sdLog,
		ExactFrac: exactFrac,
		FeverRate: feverRate,
		Seed:      seed,
		Epoch:     epoch,
	})

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := gen.WriteCSV(f); err != nil {
		return fmt.Errorf("failed to write line list: %w", err)
	}

	fmt.Printf("✅ Wrote %d synthetic cases to %s (meanlog=%.2f sdlog=%.2f seed=%d)\n",
		caseCount, path, meanLog, sdLog, seed)
	return nil
}

func newServeCmd() *cobra.Command {
	var (
		port        string
		databaseURL string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the estimation pipeline over HTTP",
		Long: `Start the HTTP API server. Configuration comes from the environment (and a
.env file when present); flags override PORT and DATABASE_URL. Without a
database URL runs are kept in memory and lost on restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port, databaseURL)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "Listen port (overrides PORT)")
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL URL (overrides DATABASE_URL)")

	return cmd
}

func runServe(port, databaseURL string) error {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if port != "" {
		cfg.Server.Port = port
	}
	if databaseURL != "" {
		cfg.Database.URL = databaseURL
	}

	store, closeStore, err := openRunStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	kit := testkit.NewTestKit()
	service := app.NewAnalysisService(likelihood.NewEngine(), kit.RNGAdapter(), store)
	server := api.NewServer(service, store, cfg)

	return server.Start(":" + cfg.Server.Port)
}

// openRunStore picks the run store: PostgreSQL (with migrations applied) when
// a database URL is configured, the in-memory store otherwise.
func openRunStore(cfg *config.Config) (ports.RunStore, func(), error) {
	if cfg.Database.URL == "" {
		log.Println("No DATABASE_URL configured, using in-memory run store")
		return testkit.NewInMemoryRunStore(), func() {}, nil
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := migrations.NewMigrator(db).Up(context.Background()); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("database migration failed: %w", err)
	}

	log.Println("Using PostgreSQL run store")
	return postgres.NewRunRepository(db), func() { db.Close() }, nil
}
