package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/card-purpose/internal/cli"
	"github.com/Veraticus/card-purpose/internal/common"
	"github.com/Veraticus/card-purpose/internal/engine"
	"github.com/Veraticus/card-purpose/internal/ingest"
	"github.com/Veraticus/card-purpose/internal/llm"
	"github.com/Veraticus/card-purpose/internal/matcher"
	"github.com/Veraticus/card-purpose/internal/metrics"
	"github.com/Veraticus/card-purpose/internal/model"
	"github.com/Veraticus/card-purpose/internal/refdb"
	"github.com/Veraticus/card-purpose/internal/review"
	"github.com/Veraticus/card-purpose/internal/rules"
	"github.com/Veraticus/card-purpose/internal/storage"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a card export",
		Long: `Assign a spending purpose to every transaction in a card export and
decide which results can be auto-confirmed.

The output CSV has one row per input row with the category, confidence, label
source, review state and rationale. Fill in the 확정용도 column for rows you
correct and pass the file to "purpose feedback".

Examples:
  purpose classify --input 법인카드_8월.csv
  purpose classify --input tx.csv --output out.csv --workers 8
  purpose classify --input tx.csv --no-ai            # reference data and rules only
  purpose classify --input tx.csv --metrics-addr :9090`,
		RunE: runClassify,
	}

	cmd.Flags().StringP("input", "i", "", "card export CSV (required)")
	cmd.Flags().StringP("output", "o", "", "result CSV (default: <input>_classified.csv)")
	cmd.Flags().IntP("workers", "w", 0, "parallel workers (default from config)")
	cmd.Flags().Bool("no-ai", false, "skip AI prediction and AI second opinions")
	cmd.Flags().Bool("no-review", false, "decide review states without second opinions")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address while running")
	_ = cmd.MarkFlagRequired("input")

	_ = viper.BindPFlag("engine.parallel_workers", cmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("metrics.addr", cmd.Flags().Lookup("metrics-addr"))

	return cmd
}

func runClassify(cmd *cobra.Command, _ []string) error {
	inputPath, _ := cmd.Flags().GetString("input")
	outputPath, _ := cmd.Flags().GetString("output")
	noAI, _ := cmd.Flags().GetBool("no-ai")
	noReview, _ := cmd.Flags().GetBool("no-review")
	if outputPath == "" {
		outputPath = strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + "_classified.csv"
	}

	txns, err := readTransactions(inputPath)
	if err != nil {
		return err
	}
	if len(txns) == 0 {
		return common.NewUserError(inputPath+" has no transaction rows", common.ErrNoTransactions)
	}
	slog.Info("Loaded transactions", "input", inputPath, "count", len(txns))

	interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx := interrupts.HandleInterrupts(cmd.Context(), "Completed rows are kept; the rest are written as Pending")

	m, err := metrics.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	var server *http.Server
	if addr := appCfg.Metrics.Addr; addr != "" {
		mux := http.NewServeMux()
		m.RegisterHandlers(mux)
		server = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			slog.Info("Serving metrics", "addr", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer func() {
			if server != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = server.Shutdown(shutdownCtx)
			}
		}()
		return classifyFile(gctx, cmd, m, txns, inputPath, outputPath, noAI, noReview)
	})

	return g.Wait()
}

func readTransactions(path string) ([]model.Transaction, error) {
	f, err := os.Open(path) //nolint:gosec // path is supplied by the user
	if err != nil {
		return nil, common.NewUserError("could not open "+path, err)
	}
	defer func() { _ = f.Close() }()

	txns, err := ingest.ReadTransactions(f)
	if err != nil {
		return nil, common.NewUserError("could not read "+path, err)
	}
	return txns, nil
}

// pipeline holds everything a classify run builds.
type pipeline struct {
	engine    *engine.Engine
	reviewer  *review.Reviewer
	predictor *llm.Predictor
}

func buildPipeline(ctx context.Context, refs *refdb.Database, m *metrics.Metrics, noAI, noReview bool) (*pipeline, error) {
	rs, err := loadRuleset("")
	if err != nil {
		return nil, err
	}
	tax := rs.Taxonomy()
	ruleEngine := rules.New(rs, appCfg.RulesConfig(), slog.Default())

	fuzzy, err := matcher.NewFuzzy(appCfg.FuzzyConfig())
	if err != nil {
		return nil, fmt.Errorf("invalid fuzzy matcher settings: %w", err)
	}
	stages := []engine.Stage{matcher.NewExact(), fuzzy}

	p := &pipeline{}
	var client llm.Client
	llmCfg := appCfg.LLMConfig()
	switch {
	case noAI:
		slog.Info("AI prediction disabled")
	case llmCfg.APIKey == "":
		slog.Warn("No API key configured, AI prediction disabled", "provider", llmCfg.Provider)
	default:
		client, err = llm.NewClient(ctx, llmCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
		p.predictor, err = llm.NewPredictor(client, tax, llmCfg, llm.WithMetrics(m))
		if err != nil {
			return nil, err
		}
		stages = append(stages, engine.NewAIStage(p.predictor, llmCfg.FewShotCount, llm.Strategy(llmCfg.FewShotStrategy)))
	}

	p.engine = engine.New(refs, stages, ruleEngine, appCfg.EngineConfig(), engine.WithMetrics(m))

	var proposers []review.Proposer
	if !noReview {
		proposers = append(proposers, review.NewRuleProposer(ruleEngine))
		if appCfg.Review.Bayes {
			if bayes, err := review.NewBayesProposer(refs.Snapshot()); err != nil {
				slog.Info("Bayesian second opinion unavailable", "reason", err)
			} else {
				proposers = append(proposers, bayes)
			}
		}
		if appCfg.Review.SecondOpinion && client != nil {
			proposers = append(proposers, review.NewLLMProposer(client, tax, llmCfg))
		}
	}
	p.reviewer = review.NewReviewer(tax, appCfg.Thresholds(), proposers, review.WithMetrics(m))
	return p, nil
}

func classifyFile(ctx context.Context, cmd *cobra.Command, m *metrics.Metrics, txns []model.Transaction,
	inputPath, outputPath string, noAI, noReview bool,
) error {
	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer closeQuietly("database", store)

	refs, err := openReferences(ctx, store)
	if err != nil {
		return err
	}

	p, err := buildPipeline(ctx, refs, m, noAI, noReview)
	if err != nil {
		return err
	}
	if p.predictor != nil {
		defer closeQuietly("predictor", p.predictor)
	}

	run := storage.RunRecord{ID: uuid.NewString(), StartedAt: time.Now(), InputPath: inputPath}

	progress := cli.NewProgress(cmd.ErrOrStderr(), len(txns), "Classifying transactions...")
	outcome, err := p.engine.ClassifyBatch(ctx, txns, progress.Update)
	if err != nil {
		return err
	}

	results := make([]model.ClassificationResult, len(outcome.Results))
	reviewed := make([]model.Transaction, len(outcome.Results))
	for i, item := range outcome.Results {
		results[i] = item.Result
		reviewed[i] = item.Transaction
	}
	// After an interrupt the reviewer still decides, without second opinions.
	decisions := p.reviewer.Review(ctx, results, reviewed)

	states := make(map[model.ReviewState]int)
	rows := make(map[string]*ingest.ResultRow, len(txns))
	for i, d := range decisions {
		rows[reviewed[i].ID] = ingest.NewResultRow(reviewed[i], d)
		states[d.State]++
	}
	for _, txn := range outcome.Pending {
		rows[txn.ID] = ingest.NewPendingRow(txn)
		states[model.ReviewPending]++
	}
	ordered := make([]*ingest.ResultRow, 0, len(txns))
	for _, txn := range txns {
		if row, ok := rows[txn.ID]; ok {
			ordered = append(ordered, row)
		}
	}

	if err := writeResults(outputPath, ordered); err != nil {
		return err
	}

	run.FinishedAt = time.Now()
	run.Total = len(txns)
	run.AutoConfirmed = states[model.ReviewAutoConfirmed]
	run.AIRevised = states[model.ReviewAIRevised]
	run.ManualReview = states[model.ReviewManualRequired]
	run.Unclassified = outcome.Summary.Unclassified
	run.Canceled = outcome.Canceled
	if err := store.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		slog.Warn("Failed to record run", "run_id", run.ID, "error", err)
	} else {
		common.LogInfo("Run recorded", common.Fields{
			"run_id":         run.ID,
			"auto_confirmed": run.AutoConfirmed,
			"ai_revised":     run.AIRevised,
			"manual_review":  run.ManualReview,
			"canceled":       run.Canceled,
		})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, cli.RenderClassifySummary(outcome.Summary, states))
	if p.predictor != nil {
		if stats := cli.RenderAPIStats(p.predictor.Stats()); stats != "" {
			fmt.Fprintln(out, stats)
		}
	}
	fmt.Fprintln(out, cli.FormatSuccess("Results written to "+outputPath))
	if n := states[model.ReviewManualRequired]; n > 0 {
		fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("%d rows need review: fill in 확정용도 and run purpose feedback --input %s", n, outputPath)))
	}
	if outcome.Canceled {
		fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf("Run interrupted: %d rows left Pending", len(outcome.Pending))))
	}
	return nil
}

func writeResults(path string, rows []*ingest.ResultRow) error {
	f, err := os.Create(path) //nolint:gosec // path is supplied by the user
	if err != nil {
		return common.NewUserError("could not create "+path, err)
	}

	// Spreadsheet tools need the BOM to detect UTF-8.
	if _, err := io.WriteString(f, "\ufeff"); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := ingest.WriteResults(f, rows); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
