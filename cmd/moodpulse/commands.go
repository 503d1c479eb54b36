package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/moodpulse/api"
	"github.com/seenimoa/moodpulse/internal/config"
	"github.com/seenimoa/moodpulse/internal/feed"
	"github.com/seenimoa/moodpulse/internal/llm"
	"github.com/seenimoa/moodpulse/internal/logger"
	"github.com/seenimoa/moodpulse/internal/normalize"
	"github.com/seenimoa/moodpulse/internal/pipeline"
	"github.com/seenimoa/moodpulse/internal/report"
	"github.com/seenimoa/moodpulse/internal/store"
	"github.com/seenimoa/moodpulse/pkg/models"
	"github.com/seenimoa/moodpulse/pkg/utils"
)

// --- Run Command ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once for the current slot",
	Long: `Fetch, analyze and persist every tracked entity once, then exit.

Exit status is 0 when every entity updated, 1 when any entity failed
and 2 on a configuration error (nothing is fetched in that case).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		orch, mirror, err := buildOrchestrator(ctx, cfg)
		if err != nil {
			return err
		}
		if mirror != nil {
			defer mirror.Close()
		}

		report, err := orch.Run(ctx)
		if err != nil {
			return err
		}
		printReport(report)
		if report.Failed() > 0 {
			return fmt.Errorf("%w: %d of %d", errEntitiesFailed, report.Failed(), len(report.Results))
		}
		return nil
	},
}

// --- Serve Command (scheduler + API server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pipeline at every slot boundary and serve the API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		orch, mirror, err := buildOrchestrator(ctx, cfg)
		if err != nil {
			return err
		}
		if mirror != nil {
			defer mirror.Close()
		}

		noAPI, _ := cmd.Flags().GetBool("no-api")
		runNow, _ := cmd.Flags().GetBool("run-now")

		opts := []pipeline.SchedulerOption{
			pipeline.WithRunOnStart(runNow || cfg.Pipeline.RunOnStart),
			pipeline.WithListener(func(r *models.RunReport) {
				logger.Log.WithField("slot", r.Slot).Infof("run finished: %d updated, %d failed", r.Updated(), r.Failed())
			}),
		}

		g, ctx := errgroup.WithContext(ctx)
		if !noAPI {
			srv := api.NewServer(cfg, store.NewFileStore(cfg.Output.Dir))
			opts = append(opts, pipeline.WithListener(srv.NotifyRun))
			g.Go(func() error { return srv.ListenAndServe(ctx) })
		}

		sched := pipeline.NewScheduler(orch, scheduleHours(cfg), opts...)
		logger.Log.WithField("next", sched.Next().Label).Infof("scheduler started for %d entities", len(orch.Entities()))
		g.Go(func() error { return sched.Run(ctx) })

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().Bool("no-api", false, "run the scheduler without the HTTP API")
	serveCmd.Flags().Bool("run-now", false, "run once immediately before waiting for the next slot")
}

// --- Slot Command ---

var slotCmd = &cobra.Command{
	Use:   "slot",
	Short: "Print the current and next schedule slots",
	RunE: func(cmd *cobra.Command, args []string) error {
		now := utils.NowKST()
		hours := scheduleHours(cfg)
		cur := utils.AlignSlot(now, hours)
		next := utils.NextSlot(now, hours)
		fmt.Printf("  Now (KST):  %s\n", utils.FormatDateTimeKST(now))
		fmt.Printf("  Current:    %s  (%s)\n", cur.Label, cur.Timestamp)
		fmt.Printf("  Next:       %s  (%s, in %s)\n", next.Label, next.Timestamp, next.Time.Sub(now).Round(time.Second))
		return nil
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration, credentials and the last run",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  moodpulse — System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Printf("  Time (KST):    %s\n", utils.FormatDateTimeKST(utils.NowKST()))
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    Model:         %s\n", cfg.LLM.Model)
		fmt.Printf("    Entities file: %s\n", cfg.Pipeline.EntitiesFile)
		fmt.Printf("    Output dir:    %s\n", cfg.Output.Dir)
		fmt.Printf("    Schedule:      %v KST\n", scheduleHours(cfg))
		fmt.Printf("    Pacing:        %s\n", cfg.Pipeline.Pacing)
		fmt.Printf("    API Server:    %s:%d\n", cfg.API.Host, cfg.API.Port)
		if entities, err := config.LoadEntities(cfg.Pipeline.EntitiesFile); err != nil {
			fmt.Printf("    Entities:      ❌ %v\n", err)
		} else {
			fmt.Printf("    Entities:      %d\n", len(entities))
		}
		fmt.Println()

		fmt.Println("  API Keys:")
		for _, c := range config.Credentials(cfg) {
			mark, status := "➖", "not set"
			if c.IsSet {
				mark, status = "✅", fmt.Sprintf("set (%s: %s)", c.Source, c.Masked)
			}
			if c.Problem != "" {
				mark, status = "⚠️", status+", "+c.Problem
				if c.Required && !c.IsSet {
					mark = "❌"
				}
			}
			fmt.Printf("    %-25s %s %s\n", c.Name+":", mark, status)
		}

		if ping, _ := cmd.Flags().GetBool("ping"); ping {
			fmt.Println()
			fmt.Printf("  Gemini:        %s\n", pingGemini(cmd.Context(), cfg))
		}
		fmt.Println()

		report, err := store.NewFileStore(cfg.Output.Dir).LoadReport()
		switch {
		case errors.Is(err, store.ErrNotFound):
			fmt.Println("  Last run:      none")
		case err != nil:
			fmt.Printf("  Last run:      ❌ %v\n", err)
		default:
			fmt.Println("  Last run:")
			printReport(report)
		}
		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("ping", false, "check the Gemini API key with a models lookup")
}

// --- Report Command ---

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the mood digest, or write it as HTML",
	RunE: func(cmd *cobra.Command, args []string) error {
		files := store.NewFileStore(cfg.Output.Dir)
		st, err := files.Load()
		if err != nil {
			logger.Log.WithError(err).Warn("combined store unreadable, rebuilding from latest records")
			if st, err = files.Rebuild(); err != nil {
				return err
			}
		}
		run, err := files.LoadReport()
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}

		rcfg := report.DefaultConfig()
		if lang, _ := cmd.Flags().GetString("lang"); lang != "" {
			rcfg.Lang = lang
		}

		out, _ := cmd.Flags().GetString("html")
		if out == "" {
			fmt.Print(report.GenerateText(st, run, rcfg))
			return nil
		}
		page, err := report.GenerateHTML(st, run, rcfg)
		if err != nil {
			return err
		}
		if err := os.WriteFile(out, []byte(page), 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Printf("📄 Digest written to %s\n", out)
		return nil
	},
}

func init() {
	reportCmd.Flags().String("lang", "en", "translation to show (en, ko, ja, zh)")
	reportCmd.Flags().String("html", "", "write an HTML digest to this path instead of printing text")
}

// ── Wiring ──

// buildOrchestrator loads the entity list and wires every pipeline
// component. Configuration problems are reported before any network use.
func buildOrchestrator(ctx context.Context, cfg *config.Config) (*pipeline.Orchestrator, *store.Mirror, error) {
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, nil, err
	}
	entities, err := config.LoadEntities(cfg.Pipeline.EntitiesFile)
	if err != nil {
		return nil, nil, err
	}

	gemini, err := newGemini(cfg)
	if err != nil {
		return nil, nil, &config.ConfigError{Field: "llm", Err: err}
	}
	pacer := pipeline.NewPacer(cfg.Pipeline.Pacing)
	client := llm.NewClient(gemini,
		llm.WithRetryPacer(pacer),
		llm.WithRetryPolicy(llm.RetryPolicy{
			MaxAttempts:       cfg.LLM.MaxAttempts,
			RetryDelay:        cfg.LLM.RetryDelay,
			RateLimitMargin:   cfg.LLM.RateLimitMargin,
			RateLimitCooldown: cfg.LLM.RateLimitCooldown,
		}),
		llm.WithTemperature(cfg.LLM.Temperature),
	)

	fetcher := feed.NewFetcher(
		feed.WithMaxHeadlines(cfg.Feed.MaxHeadlines),
		feed.WithUserAgent(cfg.Feed.UserAgent),
		feed.WithHTTPClient(&http.Client{Timeout: cfg.Feed.Timeout}),
	)

	pcfg := pipeline.Config{
		Entities:      entities,
		Fetcher:       fetcher,
		Analyzer:      client,
		Normalize:     normalize.Normalize,
		Store:         store.NewFileStore(cfg.Output.Dir),
		ScheduleHours: scheduleHours(cfg),
		Pacing:        cfg.Pipeline.Pacing,
		Pacer:         pacer,
	}

	var mirror *store.Mirror
	if cfg.Store.RedisURL != "" {
		mirror, err = store.NewMirror(ctx, cfg.Store.RedisURL, cfg.Store.RedisPrefix)
		if err != nil {
			// The mirror is optional; files stay the source of truth.
			logger.Log.WithError(err).Warn("redis mirror disabled")
		} else {
			pcfg.Mirror = mirror
		}
	}

	orch, err := pipeline.NewOrchestrator(pcfg)
	if err != nil {
		if mirror != nil {
			mirror.Close()
		}
		return nil, nil, err
	}
	return orch, mirror, nil
}

func newGemini(cfg *config.Config) (*llm.GeminiProvider, error) {
	return llm.NewGeminiProvider(cfg.LLM.APIKey,
		llm.WithGeminiModel(cfg.LLM.Model),
		llm.WithGeminiBaseURL(cfg.LLM.BaseURL),
		llm.WithGeminiHTTPClient(&http.Client{Timeout: cfg.LLM.Timeout}),
	)
}

func pingGemini(ctx context.Context, cfg *config.Config) string {
	if err := cfg.RequireAPIKey(); err != nil {
		return "❌ " + err.Error()
	}
	gemini, err := newGemini(cfg)
	if err != nil {
		return "❌ " + err.Error()
	}
	if err := gemini.Ping(ctx); err != nil {
		return "❌ " + err.Error()
	}
	return "✅ reachable (" + gemini.Model() + ")"
}

func scheduleHours(cfg *config.Config) []int {
	if len(cfg.Pipeline.ScheduleHours) == 0 {
		return utils.DefaultScheduleHours
	}
	return cfg.Pipeline.ScheduleHours
}

func printReport(r *models.RunReport) {
	fmt.Printf("    Slot:          %s\n", r.Slot)
	fmt.Printf("    Duration:      %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	fmt.Printf("    Updated:       %d / %d\n", r.Updated(), len(r.Results))
	for _, res := range r.Results {
		if res.Status == models.StatusFailed {
			fmt.Printf("    ❌ %-12s %s: %s\n", res.EntityID, res.Stage, res.Error)
		} else {
			fmt.Printf("    ✅ %-12s %d headlines\n", res.EntityID, res.Headlines)
		}
	}
}
