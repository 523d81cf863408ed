package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/assessment-recommender/internal/eval"
	"github.com/spigell/assessment-recommender/internal/history"
	"github.com/spigell/assessment-recommender/internal/output"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Compute Mean Recall@K and MAP@K over a labeled case file",
	Run: func(cmd *cobra.Command, _ []string) {
		evaluate(cmd)
	},
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().String("cases", "", "labeled case file, yaml or csv (overrides evaluation.cases)")
	evaluateCmd.Flags().Int("k", 0, "cut-off rank (overrides evaluation.k)")
	evaluateCmd.Flags().Bool("record", false, "store the run in the history database")
	evaluateCmd.Flags().StringP("output", "o", "table", "output format: table or json")

	viper.BindPFlag("evaluation.cases", evaluateCmd.Flags().Lookup("cases"))
	viper.BindPFlag("evaluation.k", evaluateCmd.Flags().Lookup("k"))
}

func evaluate(cmd *cobra.Command) {
	ctx := context.Background()
	logger := newLogger()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	format, err := output.ParseFormat(cmd.Flag("output").Value.String())
	if err != nil {
		logger.Fatal("parsing flags", zap.Error(err))
	}

	e, err := newEngine(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the engine", zap.Error(err))
	}

	cases, err := eval.LoadCases(config.Evaluation.Cases)
	if err != nil {
		logger.Fatal("loading evaluation cases", zap.Error(err))
	}
	cases = eval.ResolveCases(cases, e.Snapshot())

	ranker := eval.RankerFunc(e.RankIDs)
	if config.Evaluation.ApplyFilters {
		ranker = e.RecommendIDs
	}

	harness := &eval.Harness{
		Ranker:  ranker,
		Workers: config.Evaluation.Workers,
		Logger:  logger,
	}

	report, err := harness.Evaluate(ctx, cases, config.Evaluation.K)
	if err != nil {
		logger.Fatal("evaluation failed", zap.Error(err))
	}

	if err := output.Write(os.Stdout, format, report); err != nil {
		logger.Fatal("printing the report", zap.Error(err))
	}

	if record, _ := cmd.Flags().GetBool("record"); !record {
		return
	}

	store, err := history.Open(config.Evaluation.HistoryDB)
	if err != nil {
		logger.Fatal("opening the history database", zap.Error(err))
	}
	defer store.Close()

	model := ""
	if config.Scoring.Strategy != "lexical" {
		model = config.Embedding.Provider
		if config.Embedding.Model != "" {
			model += "/" + config.Embedding.Model
		}
	}

	run, err := store.Record(ctx, history.Meta{
		Strategy:    e.Strategy(),
		Model:       model,
		CaseFile:    config.Evaluation.Cases,
		CatalogSize: e.Snapshot().Len(),
	}, report)
	if err != nil {
		logger.Fatal("recording the run", zap.Error(err))
	}
	logger.Info("evaluation run recorded", zap.String("id", run.ID), zap.String("db", config.Evaluation.HistoryDB))
}
