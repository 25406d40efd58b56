package main

import (
	"fmt"
	"time"

	"github.com/jogardn/roastery-orders/internal/ordernum"
	"github.com/spf13/cobra"
)

var (
	orderSequence     int64
	orderCreatedAt    string
	orderCustomerCode int
	orderTimezone     string
)

var orderNumberCmd = &cobra.Command{
	Use:   "order-number",
	Short: "Format an order number from its parts",
	Example: `  coffeectl order-number --sequence 42 --created-at 2024-03-05T14:00:00Z --customer-code 7
  0007-240305-0042`,
	RunE: runOrderNumber,
}

func init() {
	orderNumberCmd.Flags().Int64Var(&orderSequence, "sequence", 0, "order sequence number")
	orderNumberCmd.Flags().StringVar(&orderCreatedAt, "created-at", "", "creation time (RFC 3339)")
	orderNumberCmd.Flags().IntVar(&orderCustomerCode, "customer-code", -1, "customer code; omit for none")
	orderNumberCmd.Flags().StringVar(&orderTimezone, "tz", "Local", "timezone the date is taken in")
	_ = orderNumberCmd.MarkFlagRequired("sequence")
	_ = orderNumberCmd.MarkFlagRequired("created-at")
}

func runOrderNumber(cmd *cobra.Command, args []string) error {
	loc, err := time.LoadLocation(orderTimezone)
	if err != nil {
		return err
	}
	var code *int
	if orderCustomerCode >= 0 {
		code = &orderCustomerCode
	}
	number, err := ordernum.FormatISO(orderSequence, orderCreatedAt, code, loc)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), number)
	return nil
}
