/*
main.go - CLI entry point for the workforce simulation engine (§6).

STARTUP SEQUENCE (simulate/batch):
  1. Parse flags via cobra
  2. Load and validate the scenario descriptor(s) (config.Load)
  3. Open the SQLite event/accumulator/checkpoint store
  4. Optionally start the read-only progress HTTP server
  5. Run the orchestrator (or batch runner) to completion
  6. Map the terminal error, if any, to an exit code and return it

EXIT CODES (§6):
  0 success, 1 other, 2 validation error, 3 config error,
  4 checkpoint incompatibility.

SEE ALSO:
  - config/scenario.go: YAML scenario descriptor loader
  - pipeline/orchestrator.go: per-year stage sequencing
  - batch/runner.go: bounded-concurrency multi-scenario runner
  - internal/progress: read-only SSE progress server
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/warp/workforce-engine/batch"
	"github.com/warp/workforce-engine/config"
	"github.com/warp/workforce-engine/engine"
	"github.com/warp/workforce-engine/internal/progress"
	"github.com/warp/workforce-engine/pipeline"
	"github.com/warp/workforce-engine/store/sqlite"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := newRootCommand()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		return exitCodeFor(err)
	}
	return 0
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "engine",
		Short:         "Deterministic workforce and DC-plan simulation engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newSimulateCommand())
	root.AddCommand(newBatchCommand())
	root.AddCommand(newCheckpointsCommand())
	root.AddCommand(newValidateCommand())
	return root
}

func newSimulateCommand() *cobra.Command {
	var scenarioPath, censusPath, dbPath, progressAddr string
	var resume bool

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run one scenario from its descriptor through every configured year",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, runCfg, err := config.Load(scenarioPath)
			if err != nil {
				return err
			}

			store, err := sqlite.New(dbPath)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer store.Close()

			hub := progress.NewHub()
			stopProgress := maybeServeProgress(progressAddr, hub)
			defer stopProgress()

			census, err := config.LoadCensus(censusPath)
			if err != nil {
				return err
			}

			var orch *pipeline.Orchestrator
			if resume {
				orch, err = resumeOrchestrator(cmd.Context(), store, runCfg, census, hub.Emit)
				if err != nil {
					return err
				}
			} else {
				orch = pipeline.NewOrchestrator(runCfg, census, hub.Emit)
			}
			results, err := orch.Run(cmd.Context())
			if err != nil {
				return err
			}

			configHash := sqlite.ComputeConfigHash(runCfg.Scenario, runCfg.Plan)
			for _, yr := range results {
				if !yr.Sealed {
					continue
				}
				if err := persistYear(cmd.Context(), store, runCfg, yr, configHash); err != nil {
					return err
				}
				log.Printf("[simulate] scenario=%s year=%d sealed, events=%d", runCfg.Scenario.ID, yr.Year, len(yr.Events))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&scenarioPath, "scenario", "", "path to the scenario YAML descriptor")
	cmd.Flags().StringVar(&censusPath, "census", "", "path to the year Y0-1 census staging CSV")
	cmd.Flags().StringVar(&dbPath, "db", "engine.db", "SQLite database path (':memory:' allowed)")
	cmd.Flags().StringVar(&progressAddr, "progress-addr", "", "if set, serve GET /status and GET /events on this address")
	cmd.Flags().BoolVar(&resume, "resume", false, "resume from the latest compatible checkpoint instead of starting at year_start")
	cmd.MarkFlagRequired("scenario")
	cmd.MarkFlagRequired("census")
	return cmd
}

// resumeOrchestrator restores the foundation for the year after the
// latest compatible checkpoint: accumulator state from the checkpoint
// itself, plus the census baselines of employees hired inside the
// already-sealed years, replayed from the event log.
func resumeOrchestrator(ctx context.Context, store *sqlite.Store, runCfg pipeline.RunConfig, census []engine.Employee, emit pipeline.Emitter) (*pipeline.Orchestrator, error) {
	cp, err := store.LatestCheckpoint(ctx, runCfg.Scenario.ID, runCfg.Scenario.PlanDesignID)
	if err != nil {
		return nil, err
	}
	if cp == nil {
		return nil, fmt.Errorf("no checkpoint found for scenario=%s plan=%s", runCfg.Scenario.ID, runCfg.Scenario.PlanDesignID)
	}
	currentHash := sqlite.ComputeConfigHash(runCfg.Scenario, runCfg.Plan)
	if err := sqlite.CheckCompatible(cp, currentHash); err != nil {
		return nil, err
	}

	sealedEvents, err := store.LoadEventsRange(ctx, runCfg.Scenario.ID, runCfg.Scenario.PlanDesignID, runCfg.Scenario.YearStart, cp.Year)
	if err != nil {
		return nil, err
	}
	fullCensus := append(append([]engine.Employee{}, census...), engine.CensusFromHireEvents(sealedEvents)...)

	log.Printf("[simulate] resuming scenario=%s from checkpoint %s (year %d)", runCfg.Scenario.ID, cp.CheckpointID, cp.Year)
	state := pipeline.RestoredState{
		SealedYear: cp.Year,
		Workforce:  cp.Workforce,
		Enrollment: cp.Enrollment,
		Vesting:    cp.Vesting,
		Escalation: cp.Escalation,
		Balances:   cp.Balances,
	}
	return pipeline.NewOrchestratorFromState(runCfg, fullCensus, state, emit), nil
}

func newBatchCommand() *cobra.Command {
	var scenarioPaths []string
	var censusPaths []string
	var dbPath, progressAddr string
	var concurrency int

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run many scenarios concurrently and print a cross-scenario comparison",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := sqlite.New(dbPath)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer store.Close()

			hub := progress.NewHub()
			stopProgress := maybeServeProgress(progressAddr, hub)
			defer stopProgress()

			if len(censusPaths) != len(scenarioPaths) {
				return fmt.Errorf("--census must supply one path per --scenarios entry (got %d scenarios, %d census files)", len(scenarioPaths), len(censusPaths))
			}
			inputs := make([]batch.ScenarioInput, 0, len(scenarioPaths))
			for i, p := range scenarioPaths {
				_, runCfg, err := config.Load(p)
				if err != nil {
					return err
				}
				census, err := config.LoadCensus(censusPaths[i])
				if err != nil {
					return err
				}
				inputs = append(inputs, batch.ScenarioInput{Config: runCfg, Census: census})
			}

			runner := batch.NewRunner(store, concurrency)
			runner.Emit = hub.Emit
			records, cmp, err := runner.RunAll(cmd.Context(), inputs)
			if err != nil {
				return err
			}

			for _, rec := range records {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (years_sealed=%d final_headcount=%d)\n",
					rec.ScenarioID, rec.Status, rec.YearsSealed, rec.FinalHeadcount)
			}
			if len(cmp.Failed) > 0 {
				return failedScenariosError{scenarios: cmp.Failed, records: records}
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&scenarioPaths, "scenarios", nil, "comma-separated scenario YAML paths")
	cmd.Flags().StringSliceVar(&censusPaths, "census", nil, "comma-separated census CSV paths, one per --scenarios entry")
	cmd.Flags().StringVar(&dbPath, "db", "engine.db", "SQLite database path")
	cmd.Flags().StringVar(&progressAddr, "progress-addr", "", "if set, serve GET /status and GET /events on this address")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "maximum scenarios run at once")
	cmd.MarkFlagRequired("scenarios")
	cmd.MarkFlagRequired("census")
	return cmd
}

func newCheckpointsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoints",
		Short: "Inspect and manage checkpoints",
	}
	cmd.AddCommand(newCheckpointsListCommand())
	cmd.AddCommand(newCheckpointsRestoreCommand())
	cmd.AddCommand(newCheckpointsCleanupCommand())
	return cmd
}

func newCheckpointsListCommand() *cobra.Command {
	var dbPath, scenarioID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every checkpoint saved for a scenario, newest year first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := sqlite.New(dbPath)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer store.Close()

			metas, err := store.ListCheckpoints(cmd.Context(), engine.ScenarioID(scenarioID))
			if err != nil {
				return err
			}
			for _, m := range metas {
				fmt.Fprintf(cmd.OutOrStdout(), "%s year=%d plan=%s config_hash=%s created=%s\n",
					m.CheckpointID, m.Year, m.PlanDesignID, m.ConfigHash, m.CreatedAt.Format("2006-01-02T15:04:05Z"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "engine.db", "SQLite database path")
	cmd.Flags().StringVar(&scenarioID, "scenario", "", "scenario id")
	cmd.MarkFlagRequired("scenario")
	return cmd
}

func newCheckpointsRestoreCommand() *cobra.Command {
	var dbPath, scenarioID, planID, scenarioPath string
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Check the latest checkpoint for a scenario/plan against a scenario descriptor's current config hash",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := sqlite.New(dbPath)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer store.Close()

			cp, err := store.LatestCheckpoint(cmd.Context(), engine.ScenarioID(scenarioID), engine.PlanDesignID(planID))
			if err != nil {
				return err
			}
			if cp == nil {
				return fmt.Errorf("no checkpoint found for scenario=%s plan=%s", scenarioID, planID)
			}

			_, runCfg, err := config.Load(scenarioPath)
			if err != nil {
				return err
			}
			currentHash := sqlite.ComputeConfigHash(runCfg.Scenario, runCfg.Plan)
			if err := sqlite.CheckCompatible(cp, currentHash); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "checkpoint %s (year=%d) is compatible, resume from year %d\n",
				cp.CheckpointID, cp.Year, cp.Year+1)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "engine.db", "SQLite database path")
	cmd.Flags().StringVar(&scenarioID, "scenario", "", "scenario id")
	cmd.Flags().StringVar(&planID, "plan", "", "plan design id")
	cmd.Flags().StringVar(&scenarioPath, "config", "", "scenario YAML descriptor to check compatibility against")
	cmd.MarkFlagRequired("scenario")
	cmd.MarkFlagRequired("plan")
	cmd.MarkFlagRequired("config")
	return cmd
}

func newCheckpointsCleanupCommand() *cobra.Command {
	var dbPath, scenarioID, planID string
	var keep int
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete all but the keep most recent-year checkpoints for a scenario/plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := sqlite.New(dbPath)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer store.Close()

			n, err := store.CleanupCheckpoints(cmd.Context(), engine.ScenarioID(scenarioID), engine.PlanDesignID(planID), keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d checkpoint(s)\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "engine.db", "SQLite database path")
	cmd.Flags().StringVar(&scenarioID, "scenario", "", "scenario id")
	cmd.Flags().StringVar(&planID, "plan", "", "plan design id")
	cmd.Flags().IntVar(&keep, "keep", 3, "number of most recent checkpoints to retain")
	cmd.MarkFlagRequired("scenario")
	cmd.MarkFlagRequired("plan")
	return cmd
}

func newValidateCommand() *cobra.Command {
	var scenarioPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Parse and validate a scenario descriptor without running it",
		RunE: func(cmd *cobra.Command, args []string) error {
			scenario, _, err := config.Load(scenarioPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scenario %s is valid (years %d-%d)\n", scenario.ID, scenario.YearStart, scenario.YearEnd)
			return nil
		},
	}
	cmd.Flags().StringVar(&scenarioPath, "config", "", "path to the scenario YAML descriptor")
	cmd.MarkFlagRequired("config")
	return cmd
}

func persistYear(ctx context.Context, store *sqlite.Store, cfg pipeline.RunConfig, yr pipeline.YearResult, configHash string) error {
	scenarioID, planID := cfg.Scenario.ID, cfg.Scenario.PlanDesignID
	if err := store.AppendEvents(ctx, yr.Events); err != nil {
		return fmt.Errorf("append events: %w", err)
	}
	if err := store.SaveWorkforceAccumulators(ctx, scenarioID, planID, yr.Year, yr.Workforce); err != nil {
		return fmt.Errorf("save workforce accumulators: %w", err)
	}
	if err := store.SaveEnrollmentAccumulators(ctx, scenarioID, planID, yr.Year, yr.Enrollment); err != nil {
		return fmt.Errorf("save enrollment accumulators: %w", err)
	}
	if err := store.SaveVestingAccumulators(ctx, scenarioID, planID, yr.Year, yr.Vesting); err != nil {
		return fmt.Errorf("save vesting accumulators: %w", err)
	}
	if err := store.SaveEscalationAccumulators(ctx, scenarioID, planID, yr.Year, yr.Escalation); err != nil {
		return fmt.Errorf("save escalation accumulators: %w", err)
	}
	if err := store.SaveBalanceAccumulators(ctx, scenarioID, planID, yr.Year, yr.Balances); err != nil {
		return fmt.Errorf("save balance accumulators: %w", err)
	}
	lastEventID := ""
	if len(yr.Events) > 0 {
		lastEventID = yr.Events[len(yr.Events)-1].EventID
	}
	cp := sqlite.Checkpoint{
		ScenarioID: scenarioID, PlanDesignID: planID, Year: yr.Year,
		ConfigHash: configHash, Seed: cfg.Scenario.Seed, LastEventID: lastEventID,
		Workforce: yr.Workforce, Enrollment: yr.Enrollment, Vesting: yr.Vesting, Escalation: yr.Escalation,
		Balances: yr.Balances,
	}
	_, err := store.SaveCheckpoint(ctx, cp)
	return err
}

// maybeServeProgress starts the read-only progress HTTP server on addr
// if addr is non-empty, returning a stop func that is always safe to
// call (a no-op when no server was started).
func maybeServeProgress(addr string, hub *progress.Hub) func() {
	if addr == "" {
		return func() {}
	}
	srv := &http.Server{Addr: addr, Handler: progress.NewRouter(hub)}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[progress] server error: %v", err)
		}
	}()
	return func() { srv.Shutdown(context.Background()) }
}

// failedScenariosError reports a batch run where some scenarios
// failed; it maps to exit code 1 ("other") since a batch's partial
// failures are not a single ConfigError/ValidationError/checkpoint
// mismatch but a mixed outcome the operator must inspect per-scenario.
type failedScenariosError struct {
	scenarios []engine.ScenarioID
	records   []batch.RunRecord
}

func (e failedScenariosError) Error() string {
	return fmt.Sprintf("%d scenario(s) failed: %v", len(e.scenarios), e.scenarios)
}

// exitCodeFor maps a terminal error to the §6 exit code contract.
func exitCodeFor(err error) int {
	var configErr *engine.ConfigError
	var validationErr *engine.ValidationError
	var checkpointErr *engine.CheckpointIncompatibleError

	switch {
	case errors.As(err, &checkpointErr), errors.Is(err, engine.ErrCheckpointIncompatible):
		fmt.Fprintln(os.Stderr, err)
		return 4
	case errors.As(err, &configErr), errors.Is(err, engine.ErrConfig):
		fmt.Fprintln(os.Stderr, err)
		return 3
	case errors.As(err, &validationErr), errors.Is(err, engine.ErrValidation):
		fmt.Fprintln(os.Stderr, err)
		return 2
	default:
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
}
