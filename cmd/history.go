package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/sampler/core/runlog"
	"github.com/kilianp07/sampler/pkg/export"
)

var (
	historySince time.Duration
	historyLimit int
	historyFmt   string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List completed sampling runs from the run log",
	RunE:  history,
}

func init() {
	historyCmd.Flags().DurationVar(&historySince, "since", 0, "only runs finished within this duration")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of runs, most recent last")
	historyCmd.Flags().StringVarP(&historyFmt, "format", "o", "table", "output format: table, json or csv")
	rootCmd.AddCommand(historyCmd)
}

func history(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := cfg.RunLog.Open()
	if err != nil {
		return err
	}
	defer st.Close()

	q := runlog.Query{Limit: historyLimit}
	if historySince > 0 {
		q.Start = time.Now().Add(-historySince)
	}
	recs, err := st.Query(cmd.Context(), q)
	if err != nil {
		return err
	}
	return printRecords(cmd, recs)
}

func printRecords(cmd *cobra.Command, recs []runlog.Record) error {
	out := cmd.OutOrStdout()
	switch historyFmt {
	case "json":
		return export.WriteJSON(out, recs)
	case "csv":
		return export.WriteCSV(out, recs)
	case "table":
	default:
		return fmt.Errorf("unknown format %q", historyFmt)
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FINISHED\tJOB\tCOMMAND\tPUBLISHED\tSKIPPED\tDROPPED\tMEAN\tMIN\tMAX\tDURATION")
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%.3f\t%.3f\t%.3f\t%s\n",
			r.Finished.Format(time.RFC3339), r.JobID, r.Command, r.Published, r.Skipped, r.Dropped,
			r.Summary.Mean, r.Summary.Min, r.Summary.Max, r.Finished.Sub(r.Started).Round(time.Millisecond))
	}
	return w.Flush()
}
