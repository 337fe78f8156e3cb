// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/priorart-engine/internal/agent"
	"github.com/pdiddy/priorart-engine/internal/archive"
	"github.com/pdiddy/priorart-engine/internal/execute"
	"github.com/pdiddy/priorart-engine/internal/llm"
	"github.com/pdiddy/priorart-engine/internal/metrics"
	"github.com/pdiddy/priorart-engine/internal/patentdb"
	"github.com/pdiddy/priorart-engine/internal/planner"
	"github.com/pdiddy/priorart-engine/internal/review"
	"github.com/pdiddy/priorart-engine/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run a prior-art search session for one case",
	Long: `Search reads a case file (the patent's dates and its technical report, in
YAML or JSON), runs the tiered search loop and writes the search report.

The report lists the cited references with their category (X, Y, A, E), the
search log of every executed query, and a narrative in the style of an
examination opinion. Unless --no-archive is set the report is also stored in
the local archive.`,
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	casePath, _ := cmd.Flags().GetString("case")
	if casePath == "" {
		return fmt.Errorf("--case is required")
	}
	c, err := agent.ReadCase(casePath)
	if err != nil {
		return err
	}

	criticalDate, _ := cmd.Flags().GetString("critical-date")
	if criticalDate != "" {
		criticalDate, err = types.NormalizeDate(criticalDate)
	} else {
		criticalDate, err = c.CriticalDate()
	}
	if err != nil {
		return err
	}
	if criticalDate == "" {
		return fmt.Errorf("case has no priority or filing date; pass --critical-date")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetInt("max-iterations"); v > 0 {
		cfg.Agent.MaxIterations = v
	}
	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		cfg.Metrics.Addr = addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr, m)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	orch, release, err := buildOrchestrator(cfg, c, m)
	if err != nil {
		return err
	}
	defer release()

	report, runErr := orch.Run(ctx, criticalDate, c.Report.TechnicalMeans)
	if report == nil {
		return runErr
	}
	report.PublicationNumber = c.PublicationNumber

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = filepath.Join("reports", report.SessionID+".yaml")
	}
	if err := agent.WriteReport(out, report); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Report written to %s\n", out)

	if noArchive, _ := cmd.Flags().GetBool("no-archive"); !noArchive {
		if err := archiveReport(report, cfg.Archive); err != nil {
			slog.Warn("archiving report failed", "session", report.SessionID, "err", err)
		}
	}

	fmt.Printf("Outcome: %s\n\n%s\n", report.Outcome, report.Narrative)
	if errors.Is(runErr, context.Canceled) {
		fmt.Fprintln(os.Stderr, "Search interrupted; the report covers the rounds completed.")
	}
	return runErr
}

// buildOrchestrator wires the backends, the language model and the agent
// for one case. The returned func releases the worker pool.
func buildOrchestrator(cfg types.PipelineConfig, c types.Case, m *metrics.Metrics) (*agent.Orchestrator, func(), error) {
	registry, err := buildRegistry(cfg.PatentDB)
	if err != nil {
		return nil, nil, err
	}

	client, err := llm.New(cfg.AI)
	if err != nil {
		return nil, nil, err
	}
	client = llm.WithObserver(client, m.ObserveLLM)

	fast := client
	if cfg.AI.FastModel != "" && cfg.AI.FastModel != cfg.AI.Model {
		fastCfg := cfg.AI
		fastCfg.Model = cfg.AI.FastModel
		fc, err := llm.New(fastCfg)
		if err != nil {
			return nil, nil, err
		}
		fast = llm.WithObserver(fc, m.ObserveLLM)
	}

	p := planner.New(client, c.Report, planner.Options{
		Primary:  registry.Primary(),
		Scholar:  registry.Has(patentdb.ScholarName),
		Attempts: cfg.AI.MaxRetries,
	})

	engine, err := execute.New(registry, cfg.Agent,
		execute.WithLLM(fast, cfg.AI.MaxRetries),
		execute.WithMetrics(m))
	if err != nil {
		return nil, nil, err
	}

	scorer := review.NewEvidenceScorer(client, registry, c.Report.TargetFeatures(), cfg.AI.MaxRetries)
	reviewer := review.NewReviewer(scorer, cfg.Agent.ReviewBatch, cfg.Agent.SecondaryCandidates)

	return agent.New(p, engine, reviewer, cfg.Agent, agent.WithMetrics(m)), engine.Release, nil
}

// buildRegistry registers the primary backend first, then every other
// backend that has credentials.
func buildRegistry(cfg types.PatentDBConfig) (*patentdb.Registry, error) {
	var clients []patentdb.Client
	add := func(name string) {
		switch name {
		case patentdb.PatSnapName:
			clients = append(clients, patentdb.NewPatSnap(cfg))
		case patentdb.PatentsViewName:
			clients = append(clients, patentdb.NewPatentsView(cfg))
		}
	}

	switch cfg.Primary {
	case "", patentdb.PatSnapName:
		add(patentdb.PatSnapName)
		if cfg.PatentsViewAPIKey != "" {
			add(patentdb.PatentsViewName)
		}
	case patentdb.PatentsViewName:
		add(patentdb.PatentsViewName)
		if cfg.Username != "" {
			add(patentdb.PatSnapName)
		}
	default:
		return nil, fmt.Errorf("unknown primary backend %q: use patsnap or patentsview", cfg.Primary)
	}
	if cfg.EnableScholar {
		clients = append(clients, patentdb.NewScholar(cfg))
	}
	return patentdb.NewRegistry(clients...), nil
}

func serveMetrics(addr string, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server stopped", "addr", addr, "err", err)
		}
	}()
	slog.Info("serving metrics", "addr", addr)
	return srv
}

func archiveReport(r *types.SearchReport, cfg types.ArchiveConfig) error {
	store, err := archive.NewStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Save(context.Background(), r)
}

func init() {
	searchCmd.Flags().String("case", "", "case file with dates and technical report (YAML or JSON)")
	searchCmd.Flags().String("critical-date", "", "override the case's critical date (YYYY-MM-DD or YYYYMMDD)")
	searchCmd.Flags().String("out", "", "report path; .json writes JSON, anything else YAML (default reports/<session>.yaml)")
	searchCmd.Flags().Int("max-iterations", 0, "maximum search rounds (0 = use config)")
	searchCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address during the session")
	searchCmd.Flags().Bool("no-archive", false, "do not store the report in the archive")

	rootCmd.AddCommand(searchCmd)
}
