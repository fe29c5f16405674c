package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestCSV(t *testing.T) (*CSV, string, string) {
	t.Helper()

	dir := t.TempDir()
	ordersPath := filepath.Join(dir, "orders.csv")
	equityPath := filepath.Join(dir, "equity.csv")

	j, err := NewCSV(ordersPath, equityPath)
	assert.NoError(t, err)

	return j, ordersPath, equityPath
}

func readAll(t *testing.T, path string) [][]string {
	t.Helper()

	f, err := os.Open(path)
	assert.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	assert.NoError(t, err)
	return rows
}

func TestCSVHeadersWritten(t *testing.T) {
	t.Parallel()

	j, ordersPath, equityPath := newTestCSV(t)
	assert.NoError(t, j.Close())

	orders := readAll(t, ordersPath)
	assert.Len(t, orders, 1)
	assert.Equal(t, "order_id", orders[0][0])

	equity := readAll(t, equityPath)
	assert.Len(t, equity, 1)
	assert.Equal(t, "time", equity[0][0])
}

func TestCSVRecordOrder(t *testing.T) {
	t.Parallel()

	j, ordersPath, _ := newTestCSV(t)

	rec := OrderRecord{
		OrderID:        "O1",
		Symbol:         "TSLA",
		Side:           "sell",
		Type:           "market",
		Status:         "filled",
		Quantity:       5,
		FilledQuantity: 5,
		FillPrice:      248.3,
		RealizedPL:     -12.5,
		CreatedAt:      time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedAt:      time.Date(2024, 1, 2, 3, 4, 6, 0, time.UTC),
	}
	assert.NoError(t, j.RecordOrder(rec))
	assert.NoError(t, j.Close())

	rows := readAll(t, ordersPath)
	assert.Len(t, rows, 2)
	assert.Equal(t, "O1", rows[1][0])
	assert.Equal(t, "TSLA", rows[1][1])
	assert.Equal(t, "sell", rows[1][2])
	assert.Equal(t, "248.3", rows[1][7])
	assert.Equal(t, "-12.5", rows[1][8])
}

func TestCSVRecordEquity(t *testing.T) {
	t.Parallel()

	j, _, equityPath := newTestCSV(t)

	assert.NoError(t, j.RecordEquity(EquitySnapshot{
		Time:            time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Balance:         99500,
		Equity:          99500,
		DailyLoss:       500,
	}))
	assert.NoError(t, j.Close())

	rows := readAll(t, equityPath)
	assert.Len(t, rows, 2)
	assert.Equal(t, "99500", rows[1][1])
	assert.Equal(t, "500", rows[1][5])
}
