package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/konstrukt-sim/konstrukt/sim/trace"
)

var traceDBPath string // SQLite trace store

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Inspect job traces saved by `run --trace-level jobs --trace-db ...`",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		rootCmd.PersistentPreRun(cmd, args)
		if traceDBPath == "" {
			traceDBPath = envString(envTraceDB, "")
		}
		if traceDBPath == "" {
			return fmt.Errorf("no trace store: pass --db or set %s", envTraceDB)
		}
		return nil
	},
}

var traceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := trace.OpenStore(traceDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.ListRuns(cmd.Context())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN ID\tLEVEL\tSTARTED\tRECORDS")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", r.RunID, r.Level, r.Started.Format(time.RFC3339), r.Records)
		}
		return tw.Flush()
	},
}

var traceShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print the summary of a stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := trace.OpenStore(traceDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		jt, err := store.LoadTrace(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return trace.Summarize(jt).WriteReport(cmd.OutOrStdout())
	},
}

func init() {
	traceCmd.PersistentFlags().StringVar(&traceDBPath, "db", "", "SQLite trace store (default $KONSTRUKT_TRACE_DB)")
	traceCmd.AddCommand(traceListCmd)
	traceCmd.AddCommand(traceShowCmd)
}
