package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"quizload/internal/report"
	"quizload/internal/storage"
	"quizload/internal/tui/styles"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		recs, err := store.List(historyLimit)
		if err != nil {
			return fmt.Errorf("list runs: %w", err)
		}
		if len(recs) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "no runs stored in %s\n", store.Path())
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), historyTable(recs))
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Render the report of a stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		rec, err := store.Get(args[0])
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		printRecord(w, rec)
		return report.Render(w, rec.Results, rec.Config.ConcurrencyStep, rec.Config.ErrorRateThreshold)
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"delete"},
	Short:   "Delete a stored run",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Delete(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to list (0 for all)")
	historyCmd.AddCommand(historyShowCmd, historyDeleteCmd)
}

func openHistory() (*storage.Store, error) {
	path := viper.GetString("historyPath")
	if path == "" {
		var err error
		if path, err = storage.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return storage.Open(path)
}

func historyTable(recs []storage.Record) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(styles.ColorBorder)).
		Headers("ID", "Started", "Target", "Levels", "Peak users", "Peak req/s", "Stopped").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.Active.Padding(0, 1)
			}
			return styles.Text.Padding(0, 1)
		})

	for _, rec := range recs {
		a := report.Analyze(rec.Results, rec.Config.ConcurrencyStep, rec.Config.ErrorRateThreshold)
		peakUsers, peakTPS := "-", "-"
		if a.Peak.Found() {
			peakUsers = strconv.Itoa(a.Peak.Concurrency)
			peakTPS = strconv.FormatFloat(a.Peak.Value, 'f', 2, 64)
		}
		stopped := rec.StopReason
		if stopped == "" {
			stopped = "completed"
		}
		t.Row(rec.ID, rec.Timestamp.Format("2006-01-02 15:04:05"), rec.Config.BaseURL,
			strconv.Itoa(len(rec.Results)), peakUsers, peakTPS, stopped)
	}
	return t.Render()
}

func printRecord(w io.Writer, rec storage.Record) {
	fmt.Fprintf(w, "Run %s\n", rec.ID)
	fmt.Fprintf(w, "Started    : %s\n", rec.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Service    : %s (plan %d)\n", rec.Config.BaseURL, rec.Config.PlanID)
	if rec.StopReason != "" {
		fmt.Fprintf(w, "Stopped    : %s\n", rec.StopReason)
	}
	fmt.Fprintln(w)
}
