package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"stressvision/internal/classifier"
	"stressvision/internal/config"
	"stressvision/internal/database"
	"stressvision/internal/logger"
	"stressvision/internal/training"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configPath string
	modelPath  string
	scenes     int
	trees      int
	seed       uint64
	record     bool

	historyLimit int
)

var rootCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the crop stress classifier on synthetic scenes",
	Long: `Generates labelled synthetic six-band scenes, fits a random forest on a
stratified 80/20 split, prints the hold-out classification report and saves the
model artifact to the configured store.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTrain,
}

var historyCmd = &cobra.Command{
	Use:           "history",
	Short:         "List recorded training runs, newest first",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runHistory,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CONFIG_PATH"), "path to config.yaml")
	rootCmd.Flags().StringVarP(&modelPath, "out", "o", "", "write the artifact to this file instead of the configured store")
	rootCmd.Flags().IntVar(&scenes, "scenes", 0, "number of synthetic scenes (overrides config)")
	rootCmd.Flags().IntVar(&trees, "trees", 0, "number of trees (overrides config)")
	rootCmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (overrides config)")
	rootCmd.Flags().BoolVar(&record, "record", false, "record the run in MySQL")

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "number of runs to list")
	rootCmd.AddCommand(historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Training failed")
		os.Exit(1)
	}
}

func runTrain(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Pretty); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tc := trainingConfig(cfg.Training)
	if cmd.Flags().Changed("scenes") {
		tc.Scenes = scenes
	}
	if cmd.Flags().Changed("trees") {
		tc.Forest.Trees = trees
	}
	if cmd.Flags().Changed("seed") {
		tc.Seed = seed
		tc.Forest.Seed = seed
	}

	startedAt := time.Now()
	out, err := training.Run(ctx, tc)
	if err != nil {
		return err
	}
	fmt.Println(out.Report.String())

	blob, err := classifier.Encode(out.Forest)
	if err != nil {
		return err
	}

	modelCfg := cfg.Model
	if modelPath != "" {
		modelCfg = config.ModelConfig{Store: "file", Path: modelPath}
	}
	store, closeStore, err := classifier.OpenStore(modelCfg, config.GetRedisConfig())
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.Save(ctx, blob); err != nil {
		return err
	}
	log.Info().Str("store", store.String()).Int("bytes", len(blob)).Dur("took", out.Elapsed).Msg("✓ Model saved")

	if record || cfg.Training.RecordRuns {
		if err := recordRun(ctx, startedAt, tc, out, store.String(), len(blob)); err != nil {
			// the artifact is already saved; a missing run record is not fatal
			log.Error().Err(err).Msg("Failed to record training run")
		}
	}
	return nil
}

func trainingConfig(tc config.TrainingConfig) training.Config {
	forest := classifier.DefaultForestConfig()
	forest.Trees = tc.Trees
	forest.MaxDepth = tc.MaxDepth
	forest.MinSamplesSplit = tc.MinSamplesSplit
	forest.MaxSamples = tc.MaxSamples
	forest.Seed = tc.Seed

	return training.Config{
		Scenes:       tc.Scenes,
		Height:       tc.Height,
		Width:        tc.Width,
		Seed:         tc.Seed,
		TestFraction: tc.TestFraction,
		Forest:       forest,
	}
}

func recordRun(ctx context.Context, startedAt time.Time, tc training.Config, out *training.Outcome, location string, size int) error {
	db, err := database.NewDB(ctx, config.GetDatabaseDSN())
	if err != nil {
		return err
	}
	defer db.Close()

	run := database.NewTrainingRun(startedAt)
	run.Duration = out.Elapsed
	run.Scenes = tc.Scenes
	run.SceneHeight = tc.Height
	run.SceneWidth = tc.Width
	run.Seed = tc.Seed
	run.Trees = len(out.Forest.Trees)
	run.TrainRows = out.TrainRows
	run.TestRows = out.TestRows
	run.Accuracy = out.Report.Accuracy
	stressed := out.Report.Classes[1]
	run.StressedPrecision = stressed.Precision
	run.StressedRecall = stressed.Recall
	run.StressedF1 = stressed.F1
	run.ArtifactLocation = location
	run.ArtifactBytes = size

	return db.StoreTrainingRun(ctx, run)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	if historyLimit < 1 {
		return fmt.Errorf("--limit must be at least 1, got %d", historyLimit)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Pretty); err != nil {
		return err
	}

	db, err := database.NewDB(cmd.Context(), config.GetDatabaseDSN())
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.GetTrainingRuns(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	return printRuns(cmd.OutOrStdout(), runs)
}

func printRuns(out io.Writer, runs []database.TrainingRun) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(out, "no training runs recorded")
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tSCENES\tTREES\tACCURACY\tSTRESSED F1\tTOOK\tARTIFACT")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.3f\t%.3f\t%s\t%s\n",
			r.ID, r.StartedAt.Format(time.RFC3339), r.Scenes, r.Trees, r.Accuracy, r.StressedF1,
			r.Duration.Round(time.Millisecond), r.ArtifactLocation)
	}
	return w.Flush()
}
