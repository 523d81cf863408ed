package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/assessment-recommender/internal/history"
	"github.com/spigell/assessment-recommender/internal/output"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded evaluation runs",
	Run: func(cmd *cobra.Command, _ []string) {
		listHistory(cmd)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntP("limit", "n", 20, "number of runs to show, 0 for all")
	historyCmd.Flags().StringP("output", "o", "table", "output format: table or json")
}

func listHistory(cmd *cobra.Command) {
	logger := newLogger()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	format, err := output.ParseFormat(cmd.Flag("output").Value.String())
	if err != nil {
		logger.Fatal("parsing flags", zap.Error(err))
	}
	limit, _ := cmd.Flags().GetInt("limit")

	store, err := history.Open(config.Evaluation.HistoryDB)
	if err != nil {
		logger.Fatal("opening the history database", zap.Error(err))
	}
	defer store.Close()

	runs, err := store.ListRuns(context.Background(), limit)
	if err != nil {
		logger.Fatal("listing runs", zap.Error(err))
	}

	if err := output.Write(os.Stdout, format, runs); err != nil {
		logger.Fatal("printing runs", zap.Error(err))
	}
}
