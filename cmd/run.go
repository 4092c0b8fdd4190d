package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/pricewatch/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/monitor"
)

func newRunCommand() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the monitoring scheduler",
		Long: `Run schedules a monitoring cycle every interval until interrupted.
With --once a single cycle runs and its outcome summary is printed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !once {
				return bootstrap.Run(cmd.Context(), configPath())
			}

			report, err := bootstrap.RunOnce(cmd.Context(), configPath())
			if err != nil {
				return err
			}
			renderReport(report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single cycle and exit")
	return cmd
}

func renderReport(report *monitor.CycleReport) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("Cycle %s (%s)", report.CycleID, report.Duration.Round(time.Millisecond)))
	t.AppendHeader(table.Row{"Outcome", "Products"})
	for _, outcome := range []monitor.Outcome{
		monitor.OutcomeAdjusted,
		monitor.OutcomeSourcingRecorded,
		monitor.OutcomeUnchanged,
		monitor.OutcomePartial,
		monitor.OutcomeFetchFailed,
		monitor.OutcomeConflict,
		monitor.OutcomeInactive,
		monitor.OutcomeError,
	} {
		if n := report.Outcomes[outcome]; n > 0 {
			t.AppendRow(table.Row{outcome, n})
		}
	}
	t.AppendFooter(table.Row{"Total", report.Products})
	t.Render()

	if report.Interrupted {
		fmt.Fprintln(os.Stderr, "cycle interrupted before all products were processed")
	}
}
