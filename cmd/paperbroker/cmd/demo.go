package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"paperbroker/broker"
	"paperbroker/engine"
	"paperbroker/journal"
	"paperbroker/market"
	"paperbroker/risk"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a scripted kill-switch scenario",
	Long: `Run a short scripted session against the in-memory engine:

  1. Buy 10 X at 100 (cash 100000 -> 99000)
  2. Price drops to 50; sell 10 X (realized loss 500, daily loss hits the cap)
  3. The kill switch fires and the next buy order is rejected`,
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

func runDemo(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	feed := market.NewFixedFeed()
	feed.Set("X", 100)

	rm, err := risk.NewManager(risk.Settings{
		MaxDailyLoss:     500,
		RiskPerTrade:     1,
		KillSwitchActive: true,
	})
	if err != nil {
		return err
	}

	eng, err := engine.New(engine.Options{
		AccountID: "DEMO-001",
		Currency:  "USD",
		Balance:   100000,
	}, feed, rm, journal.Nop{})
	if err != nil {
		return err
	}

	fmt.Println("Account: DEMO-001, balance $100000.00, max daily loss $500.00")
	fmt.Println()

	buy, err := eng.SubmitOrder(ctx, broker.OrderRequest{
		Symbol: "X", Side: broker.Buy, Type: broker.Market, Quantity: 10,
	})
	if err != nil {
		return err
	}
	printOrder(buy)
	printAccount(ctx, eng)

	fmt.Println("\nPrice drops to 50.00")
	feed.Set("X", 50)

	sell, err := eng.SubmitOrder(ctx, broker.OrderRequest{
		Symbol: "X", Side: broker.Sell, Type: broker.Market, Quantity: 10,
	})
	if err != nil {
		return err
	}
	printOrder(sell)
	printAccount(ctx, eng)

	rs := rm.Snapshot()
	fmt.Printf("\nDaily loss: $%.2f / $%.2f, kill switch triggered: %v\n",
		rs.CurrentDailyLoss, rs.MaxDailyLoss, rs.KillSwitchTriggered)

	blocked, err := eng.SubmitOrder(ctx, broker.OrderRequest{
		Symbol: "AAPL", Side: broker.Buy, Type: broker.Market, Quantity: 1,
	})
	fmt.Println()
	printOrder(blocked)
	if err != nil {
		fmt.Printf("  -> %v\n", err)
	}

	return nil
}

func printOrder(o broker.Order) {
	fmt.Printf("%-4s %-6s %-10s qty %-6.0f status %-9s", o.Side, o.Symbol, o.Type, o.Quantity, o.Status)
	if o.Status == broker.StatusFilled {
		fmt.Printf(" filled @ %.2f", o.FillPrice)
	}
	if o.Reason != "" {
		fmt.Printf(" reason %s", o.Reason)
	}
	fmt.Println()
}

func printAccount(ctx context.Context, eng *engine.Engine) {
	acct, err := eng.GetAccountInfo(ctx)
	if err != nil {
		return
	}
	fmt.Printf("  balance $%.2f  equity $%.2f  buying power $%.2f\n",
		acct.Balance, acct.Equity, acct.BuyingPower)
}
