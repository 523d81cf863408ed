package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/spigell/assessment-recommender/internal/catalog"
	"github.com/spigell/assessment-recommender/internal/eval"
	"github.com/spigell/assessment-recommender/internal/history"
	"github.com/spigell/assessment-recommender/internal/rank"
)

func resultTable(w io.Writer, res *rank.Result) error {
	if res.Len() == 0 {
		fmt.Fprintln(w, "No assessments found matching the criteria.")
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.Header("#", "Assessment", "Score", "Duration", "Remote", "Adaptive", "Test types", "URL")
	for _, c := range res.Items {
		r := c.Record
		duration := "-"
		if r.HasDuration() {
			duration = fmt.Sprintf("%d min", r.Duration)
		}
		if err := table.Append(
			strconv.Itoa(c.Rank),
			truncate(r.Name, 40),
			fmt.Sprintf("%.4f", c.Score),
			duration,
			catalog.YesNo(r.RemoteSupport),
			catalog.YesNo(r.AdaptiveSupport),
			strings.Join(r.TestTypes, ", "),
			r.ID,
		); err != nil {
			return err
		}
	}
	return table.Render()
}

func reportTable(w io.Writer, report *eval.Report) error {
	table := tablewriter.NewWriter(w)
	table.Header("#", "Query", fmt.Sprintf("Recall@%d", report.K), fmt.Sprintf("AP@%d", report.K), "Note")
	for i, c := range report.Cases {
		note := ""
		switch {
		case c.Excluded:
			note = "excluded: no relevant items"
		case c.Error != "":
			note = c.Error
		}
		if err := table.Append(
			strconv.Itoa(i+1),
			truncate(c.Query, 60),
			fmt.Sprintf("%.4f", c.Recall),
			fmt.Sprintf("%.4f", c.AP),
			note,
		); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Mean Recall@%d: %.4f\n", report.K, report.MeanRecall)
	fmt.Fprintf(w, "MAP@%d:         %.4f\n", report.K, report.MAP)
	fmt.Fprintf(w, "Cases:          %d included, %d excluded, %d failed\n", report.Included, report.Excluded, report.Failed)
	return nil
}

func runsTable(w io.Writer, runs []history.Run) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No evaluation runs recorded.")
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.Header("ID", "Created", "Strategy", "Model", "K", "Cases", "Mean recall", "MAP")
	for _, r := range runs {
		if err := table.Append(
			shortID(r.ID),
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.Strategy,
			r.Model,
			strconv.Itoa(r.K),
			strconv.Itoa(r.Included),
			fmt.Sprintf("%.4f", r.MeanRecall),
			fmt.Sprintf("%.4f", r.MAP),
		); err != nil {
			return err
		}
	}
	return table.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
