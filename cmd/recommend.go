package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/assessment-recommender/internal/engine"
	"github.com/spigell/assessment-recommender/internal/output"
	"github.com/spigell/assessment-recommender/internal/query"
	"github.com/spigell/assessment-recommender/internal/rank"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend [query...]",
	Short: "Rank the catalog against a query or job description",
	Long: `Rank the catalog against a query or job description.

The query is taken from the arguments, from stdin when the only argument is "-",
or read in a loop with --interactive.`,
	Run: func(cmd *cobra.Command, args []string) {
		recommend(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(recommendCmd)

	recommendCmd.Flags().BoolP("interactive", "i", false, "read queries in a loop")
	recommendCmd.Flags().StringP("output", "o", "table", "output format: table or json")
	recommendCmd.Flags().IntP("limit", "n", 0, "number of recommendations (overrides ranking.limit)")
	recommendCmd.Flags().Bool("no-filters", false, "rank without the constraint filters")

	viper.BindPFlag("ranking.limit", recommendCmd.Flags().Lookup("limit"))
}

func recommend(cmd *cobra.Command, args []string) {
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

	interactive, _ := cmd.Flags().GetBool("interactive")
	noFilters, _ := cmd.Flags().GetBool("no-filters")

	e, err := newEngine(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the engine", zap.Error(err))
	}

	run := func(text string) error {
		res, err := rankText(ctx, e, text, config.Ranking.Limit, noFilters)
		if err != nil {
			return err
		}
		return output.Write(os.Stdout, format, res)
	}

	if !interactive {
		text, err := queryText(args, os.Stdin)
		if err != nil {
			logger.Fatal("reading the query", zap.Error(err))
		}
		if err := run(text); err != nil {
			logger.Fatal("ranking failed", zap.Error(err))
		}
		return
	}

	prompt := promptui.Prompt{
		Label: "Query (empty to exit)",
	}
	for {
		text, err := prompt.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return
			}
			logger.Fatal("reading the query", zap.Error(err))
		}
		if strings.TrimSpace(text) == "" {
			logger.Info("exiting", zap.String("reason", "empty query"))
			return
		}
		if err := run(text); err != nil {
			if errors.Is(err, query.ErrEmptyQuery) {
				logger.Warn("skipping query", zap.Error(err))
				continue
			}
			logger.Fatal("ranking failed", zap.Error(err))
		}
	}
}

func rankText(ctx context.Context, e *engine.Engine, text string, limit int, noFilters bool) (*rank.Result, error) {
	if noFilters {
		return e.Rank(ctx, text, limit)
	}
	return e.Recommend(ctx, text, limit)
}

// queryText joins the arguments, or reads stdin for a single "-".
func queryText(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	if len(args) == 0 {
		return "", errors.New("a query is required (pass it as arguments, \"-\" for stdin, or use --interactive)")
	}
	return strings.Join(args, " "), nil
}
