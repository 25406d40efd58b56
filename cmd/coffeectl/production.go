package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/jogardn/roastery-orders/internal/client"
	"github.com/jogardn/roastery-orders/internal/production"
	"github.com/spf13/cobra"
)

var (
	productionStart    string
	productionEnd      string
	productionStatus   string
	productionArchived bool
)

var productionCmd = &cobra.Command{
	Use:   "production",
	Short: "Print the production schedule for a date range",
	Long: `Print how much of each product has to be produced for the orders
placed between --start and --end (YYYY-MM-DD, both inclusive). Without
dates the storefront reports today.`,
	RunE: runProduction,
}

func init() {
	productionCmd.Flags().StringVar(&productionStart, "start", "", "first day (YYYY-MM-DD)")
	productionCmd.Flags().StringVar(&productionEnd, "end", "", "last day (YYYY-MM-DD)")
	productionCmd.Flags().StringVar(&productionStatus, "status", production.StatusFilterAll, "only orders in this status")
	productionCmd.Flags().BoolVar(&productionArchived, "include-archived", false, "include archived orders")
}

func runProduction(cmd *cobra.Command, args []string) error {
	c, err := login(cmd)
	if err != nil {
		return err
	}
	schedule, err := c.Production(cmd.Context(), client.ProductionQuery{
		Start:           productionStart,
		End:             productionEnd,
		Status:          productionStatus,
		IncludeArchived: productionArchived,
	})
	if err != nil {
		return err
	}
	return printSchedule(cmd.OutOrStdout(), schedule)
}

func printSchedule(out io.Writer, schedule *production.Schedule) error {
	fmt.Fprintf(out, "%s to %s: %d orders, %d line items\n\n",
		schedule.DateRange.Start.Format("2006-01-02"), schedule.DateRange.End.Format("2006-01-02"),
		schedule.TotalOrders, schedule.TotalItems)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tCATEGORY\tQTY\tWEIGHT\tORDERS")
	for _, item := range schedule.ProductionItems {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s %s\t%d\n",
			item.ProductName, item.Category, item.TotalQuantity,
			production.FormatWeight(item.TotalProductionWeight), item.ProductionUnit, item.OrderCount)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%d products, %d units\n", schedule.Summary.TotalProducts, schedule.Summary.TotalQuantity)
	return nil
}
