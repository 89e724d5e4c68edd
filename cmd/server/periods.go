package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/warp/agency-billing/billing"
)

var periodsCmd = &cobra.Command{
	Use:   "periods",
	Short: "Print the expected billing calendar",
	Long: `Print the periods a service with the given start date and cadence is
expected to generate up to the horizon. Nothing is read from or written to
the store.`,
	Example: `  server periods --start 2024-12-04 --cadence monthly --horizon 2025-03-01
  server periods --start 2024-03-15 --cadence yearly --horizon 2025-03-01`,
	RunE: runPeriods,
}

func init() {
	rootCmd.AddCommand(periodsCmd)

	periodsCmd.Flags().String("start", "", "Service start date (YYYY-MM-DD, required)")
	periodsCmd.Flags().String("cadence", string(billing.CadenceMonthly), "one_time, monthly, quarterly or yearly")
	periodsCmd.Flags().String("horizon", "", "Last date a period may start on (default: one month from today)")
	_ = periodsCmd.MarkFlagRequired("start")
}

func runPeriods(cmd *cobra.Command, args []string) error {
	startStr, _ := cmd.Flags().GetString("start")
	cadenceStr, _ := cmd.Flags().GetString("cadence")
	horizonStr, _ := cmd.Flags().GetString("horizon")

	start, err := billing.ParseDate(startStr)
	if err != nil {
		return fmt.Errorf("invalid start date, use YYYY-MM-DD: %w", err)
	}
	cadence := billing.Cadence(cadenceStr)
	if !cadence.Valid() {
		return fmt.Errorf("unknown cadence %q", cadenceStr)
	}
	horizon := billing.Today().AddMonths(1)
	if horizonStr != "" {
		if horizon, err = billing.ParseDate(horizonStr); err != nil {
			return fmt.Errorf("invalid horizon date, use YYYY-MM-DD: %w", err)
		}
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tFROM\tTO\tDAYS\tINVOICE")
	for i, p := range billing.Generate(start, cadence, horizon) {
		invoice := "-"
		if p.IsInvoicePeriod {
			invoice = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", i+1, p.DateFrom, p.DateTo, billing.DaysBetween(p.DateFrom, p.DateTo)+1, invoice)
	}
	return tw.Flush()
}
