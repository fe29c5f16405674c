package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

type CSV struct {
	orders *csv.Writer
	equity *csv.Writer
	of, ef *os.File
}

func NewCSV(ordersPath, equityPath string) (*CSV, error) {
	of, err := os.Create(ordersPath)
	if err != nil {
		return nil, err
	}
	ef, err := os.Create(equityPath)
	if err != nil {
		of.Close()
		return nil, err
	}

	ow := csv.NewWriter(of)
	ew := csv.NewWriter(ef)

	if err := ow.Write([]string{"order_id", "symbol", "side", "type", "status", "quantity", "filled_quantity", "fill_price", "realized_pl", "reason", "created_at", "updated_at"}); err != nil {
		return nil, err
	}
	if err := ew.Write([]string{"time", "balance", "equity", "margin_used", "margin_available", "daily_loss"}); err != nil {
		return nil, err
	}

	ow.Flush()
	if err := ow.Error(); err != nil {
		return nil, err
	}
	ew.Flush()
	if err := ew.Error(); err != nil {
		return nil, err
	}

	return &CSV{orders: ow, equity: ew, of: of, ef: ef}, nil
}

func (j *CSV) RecordOrder(r OrderRecord) error {
	err := j.orders.Write([]string{
		r.OrderID,
		r.Symbol,
		r.Side,
		r.Type,
		r.Status,
		f(r.Quantity),
		f(r.FilledQuantity),
		f(r.FillPrice),
		f(r.RealizedPL),
		r.Reason,
		r.CreatedAt.Format(time.RFC3339),
		r.UpdatedAt.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	j.orders.Flush()
	return j.orders.Error()
}

func (j *CSV) RecordEquity(e EquitySnapshot) error {
	err := j.equity.Write([]string{
		e.Time.Format(time.RFC3339),
		f(e.Balance),
		f(e.Equity),
		f(e.MarginUsed),
		f(e.MarginAvailable),
		f(e.DailyLoss),
	})
	if err != nil {
		return err
	}
	j.equity.Flush()
	return j.equity.Error()
}

func (j *CSV) Close() error {
	j.orders.Flush()
	j.equity.Flush()
	if err := j.of.Close(); err != nil {
		j.ef.Close()
		return err
	}
	return j.ef.Close()
}

func f(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
