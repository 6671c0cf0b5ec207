package cmd

import (
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/tribunal/internal/capture"
	"github.com/joescharf/tribunal/internal/engine"
	"github.com/joescharf/tribunal/internal/knowledge"
	"github.com/joescharf/tribunal/internal/models"
	"github.com/joescharf/tribunal/internal/report"
	"github.com/joescharf/tribunal/internal/reviewer"
)

var (
	runDoc           string
	runPhase         string
	runMode          string
	runDomain        string
	runTimeout       time.Duration
	runBudgetUSD     float64
	runSkipKnowledge bool
	runSkipConsensus bool
	runTertiary      bool
	runMinimum       int
	runJSON          bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a multi-reviewer assessment of a document",
	Long: `Run a multi-reviewer assessment. The default mode sends the document to
every active reviewer for independent review plus a skeptic pass,
cross-scores the proposed improvements, and merges them into a
classified consensus report.

Exit codes: 0 ok, 1 configuration error, 2 knowledge retrieval failed,
3 no usable reviews, 4 deadline exceeded, 5 budget exceeded, 6 degraded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRun(cmd)
	},
}

func init() {
	runCmd.Flags().StringVar(&runDoc, "doc", "", "Path to the document to review (required)")
	runCmd.Flags().StringVar(&runPhase, "phase", "", "Document phase: prd, sdd, sprint, beads, spec (required)")
	runCmd.Flags().StringVar(&runMode, "mode", string(models.ModeReview), "Run mode: review, red-team, inquiry")
	runCmd.Flags().StringVar(&runDomain, "domain", "", "Domain label recorded on the report (default from config)")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Cumulative wall-clock deadline (0 = none)")
	runCmd.Flags().Float64Var(&runBudgetUSD, "budget", 0, "Per-run spend ceiling in USD (0 = config default)")
	runCmd.Flags().BoolVar(&runSkipKnowledge, "skip-knowledge", false, "Skip the knowledge retrieval phase")
	runCmd.Flags().BoolVar(&runSkipConsensus, "skip-consensus", false, "Stop after independent reviews")
	runCmd.Flags().BoolVar(&runTertiary, "tertiary", false, "Include the tertiary reviewer (triangular quorum)")
	runCmd.Flags().IntVar(&runMinimum, "min", 0, "Required review successes (0 = derive from roster size)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Emit the report as JSON")
	_ = runCmd.MarkFlagRequired("doc")
	_ = runCmd.MarkFlagRequired("phase")
	rootCmd.AddCommand(runCmd)
}

// newEngine assembles the engine for one run over the given document.
func newEngine(doc string) (*engine.Engine, error) {
	r, err := loadRoster()
	if err != nil {
		return nil, err
	}

	captures := capture.NewWriter(viper.GetString("capture_dir"))
	direct := reviewer.NewAnthropicBackend(viper.GetString("anthropic.api_key"))
	inv := reviewer.NewInvoker(r, direct, captures, doc)

	e := engine.New(r, inv, engine.Options{
		Stagger:            time.Duration(viper.GetInt("run.stagger_ms")) * time.Millisecond,
		CallTimeout:        time.Duration(viper.GetInt("run.call_timeout_s")) * time.Second,
		Threshold:          viper.GetInt("run.score_threshold"),
		Phase1Minimum:      runMinimum,
		IncludeTertiary:    runTertiary || viper.GetBool("run.tertiary"),
		PhaseEstimateCents: viper.GetInt("budget.phase_estimate_cents"),
		DailyCeilingCents:  viper.GetInt("budget.daily_ceiling_cents"),
	})

	if kdir := viper.GetString("knowledge_dir"); kdir != "" {
		e = e.WithKnowledge(knowledge.FileRetriever{Dir: kdir})
	}

	if argv := viper.GetStringSlice("redteam.command"); len(argv) > 0 {
		e = e.WithRedTeam(engine.NewCommandPipeline(argv))
	}

	// The ledger store is best-effort: runs proceed unmetered if the
	// database cannot be opened.
	if s, err := getStore(); err == nil {
		e = e.WithStore(s)
	} else {
		ui.Warning("cost ledger unavailable: %v", err)
	}

	return e, nil
}

func runRun(cmd *cobra.Command) error {
	budgetCents := viper.GetInt("budget.default_cents")
	if runBudgetUSD > 0 {
		budgetCents = int(math.Round(runBudgetUSD * 100))
	}

	domain := runDomain
	if domain == "" {
		domain = viper.GetString("run.domain")
	}

	cfg := models.RunConfig{
		Mode:          models.Mode(runMode),
		DocPath:       runDoc,
		Domain:        domain,
		DocPhase:      models.DocPhase(runPhase),
		Timeout:       runTimeout,
		BudgetCents:   budgetCents,
		SkipKnowledge: runSkipKnowledge,
		SkipConsensus: runSkipConsensus,
	}

	e, err := newEngine(runDoc)
	if err != nil {
		ui.Error("%v", err)
		return &exitError{code: int(models.StatusConfigError)}
	}

	rep := e.Run(cmd.Context(), cfg)

	if runJSON {
		out, err := rep.JSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(ui.Out, out)
	} else {
		report.Render(ui, rep)
	}

	if rep.Status != models.StatusOK {
		return &exitError{code: int(rep.Status)}
	}
	return nil
}
