package display

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"ForecastBacktester/internal/operations/backtest"
)

// WriteJSON writes v as indented JSON
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var tradeHeader = []string{
	"side", "entry_index", "exit_index", "entry_price", "exit_price",
	"pnl", "pnl_pct", "size_fraction", "duration", "exit_reason",
}

// WriteTradesCSV writes the ledger with a header row
func WriteTradesCSV(w io.Writer, trades []backtest.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tradeHeader); err != nil {
		return err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	for _, t := range trades {
		err := cw.Write([]string{
			t.Side.String(),
			strconv.Itoa(t.EntryIndex),
			strconv.Itoa(t.ExitIndex),
			f(t.EntryPrice),
			f(t.ExitPrice),
			f(t.PnL),
			f(t.PnLPct),
			f(t.SizeFraction),
			strconv.Itoa(t.Duration),
			string(t.ExitReason),
		})
		if err != nil {
			return fmt.Errorf("write trade: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
