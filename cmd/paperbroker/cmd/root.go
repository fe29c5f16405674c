package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "paperbroker",
	Short: "A paper-trading order and risk management engine",
	Long: `Paperbroker simulates order fills against a quote feed and maintains
positions, cash balance, daily P&L and a risk kill switch for one account.

It provides:
  - An order engine with market, limit, stop-loss and stop-limit orders
  - A position ledger with weighted-average entries and realized P&L
  - A daily-loss kill switch that blocks new buy orders once breached
  - Order and equity journaling to SQLite or CSV
  - A REST and WebSocket API for dashboard front ends`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
