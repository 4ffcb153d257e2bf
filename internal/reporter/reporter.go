// Package reporter renders the end-of-session performance summary.
package reporter

import (
	"io"

	"spot-trade-bot-go/internal/models"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shopspring/decimal"
)

// InstanceSummary is one instance's session row.
type InstanceSummary struct {
	InstanceID     string
	Symbol         string
	TradeCount     int
	WinCount       int
	RealizedPnL    decimal.Decimal
	MaxDrawdownPct decimal.Decimal
	PositionSize   decimal.Decimal
	ReserveNormal  decimal.Decimal
	ReserveRescue  decimal.Decimal
	ReserveChase   decimal.Decimal
	Paused         bool
	PauseReason    string
}

// Summarize derives a summary row from an instance's final state.
func Summarize(cfg *models.StrategyConfig, state *models.StrategyState) InstanceSummary {
	return InstanceSummary{
		InstanceID:     cfg.InstanceID,
		Symbol:         cfg.Symbol,
		TradeCount:     state.TradeCount,
		WinCount:       state.WinCount,
		RealizedPnL:    state.RealizedPnL,
		MaxDrawdownPct: state.MaxDrawdownPct,
		PositionSize:   state.PositionSize,
		ReserveNormal:  state.Reserve.Normal.Balance,
		ReserveRescue:  state.Reserve.Rescue.Balance,
		ReserveChase:   state.Reserve.Chase.Balance,
		Paused:         state.Paused,
		PauseReason:    state.PauseReason,
	}
}

// Render writes the session table for all instances.
func Render(w io.Writer, summaries []InstanceSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Session Summary")
	t.AppendHeader(table.Row{
		"Instance", "Symbol", "Trades", "Win Rate", "Realized PnL",
		"Max DD %", "Open Base", "Normal", "Rescue", "Chase", "Status",
	})

	totalPnL := decimal.Zero
	for _, s := range summaries {
		status := "running"
		if s.Paused {
			status = "paused: " + s.PauseReason
		}
		t.AppendRow(table.Row{
			s.InstanceID,
			s.Symbol,
			s.TradeCount,
			winRate(s),
			s.RealizedPnL.Round(4).String(),
			s.MaxDrawdownPct.Round(2).String(),
			s.PositionSize.Round(6).String(),
			s.ReserveNormal.Round(2).String(),
			s.ReserveRescue.Round(2).String(),
			s.ReserveChase.Round(2).String(),
			status,
		})
		totalPnL = totalPnL.Add(s.RealizedPnL)
	}
	t.AppendFooter(table.Row{"total", "", "", "", totalPnL.Round(4).String(), "", "", "", "", "", ""})
	t.SetStyle(table.StyleLight)
	t.Render()
}

func winRate(s InstanceSummary) string {
	if s.TradeCount == 0 {
		return "-"
	}
	rate := decimal.NewFromInt(int64(s.WinCount)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(s.TradeCount)))
	return rate.Round(1).String() + "%"
}
