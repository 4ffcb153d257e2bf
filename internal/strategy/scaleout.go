package strategy

import (
	"time"

	"spot-trade-bot-go/internal/models"
	"spot-trade-bot-go/internal/numeric"

	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// ScaleOutManager drives the exit ladder state machine:
// NO_POSITION -> OPEN -> {SCALE_OUT_ACTIVE | EXTENDED} -> CLOSED.
// It only decides; fills are applied back through ApplyFill.
type ScaleOutManager struct {
	cfg *models.StrategyConfig
}

// NewScaleOutManager builds the manager for one instance.
func NewScaleOutManager(cfg *models.StrategyConfig) *ScaleOutManager {
	return &ScaleOutManager{cfg: cfg}
}

// ExitDecision is the manager's verdict on one price update.
type ExitDecision struct {
	Sell       bool
	SizeBase   decimal.Decimal
	LevelIndex int // -1 for a full exit
	Extend     bool
	Reason     string
}

// OpenPosition transitions to OPEN after a BUY fill and builds the ladder.
// A non-empty custom schedule wins over scaleOutSteps; otherwise N levels are
// spaced evenly across scaleOutRangePct above entry with 100% split equally,
// the last level absorbing the rounding remainder.
func (m *ScaleOutManager) OpenPosition(entryPrice, sizeBase decimal.Decimal, now time.Time) *models.PositionState {
	pos := &models.PositionState{
		Status:        models.PositionOpen,
		EntryPrice:    entryPrice,
		InitialSize:   sizeBase,
		RemainingSize: sizeBase,
		Extension:     models.ExtensionNone,
		OpenedAt:      now,
	}
	if m.cfg.ExitMode != models.ExitModeScaleOut {
		return pos
	}

	if len(m.cfg.ScaleOutLevels) > 0 {
		for i, l := range m.cfg.ScaleOutLevels {
			pos.Levels = append(pos.Levels, models.ScaleOutLevel{
				Index:        i,
				TriggerPrice: numeric.PriceAbovePct(entryPrice, l.TriggerPct),
				ExitPct:      l.ExitPct,
			})
		}
		return pos
	}

	steps := m.cfg.ScaleOutSteps
	stepCount := decimal.NewFromInt(int64(steps))
	perStep := oneHundred.Div(stepCount).RoundDown(4)
	for i := 1; i <= steps; i++ {
		pct := m.cfg.ScaleOutRangePct.Mul(decimal.NewFromInt(int64(i))).Div(stepCount)
		exitPct := perStep
		if i == steps {
			exitPct = oneHundred.Sub(perStep.Mul(decimal.NewFromInt(int64(steps - 1))))
		}
		pos.Levels = append(pos.Levels, models.ScaleOutLevel{
			Index:        i - 1,
			TriggerPrice: numeric.PriceAbovePct(entryPrice, pct),
			ExitPct:      exitPct,
		})
	}
	return pos
}

// Evaluate inspects the current price against the ladder and returns at most
// one exit decision. A level never fires twice.
func (m *ScaleOutManager) Evaluate(pos *models.PositionState, price decimal.Decimal) *ExitDecision {
	if pos == nil || pos.Status == models.PositionClosed || pos.RemainingSize.LessThanOrEqual(decimal.Zero) {
		return &ExitDecision{Reason: "no open position"}
	}

	if m.cfg.ExitMode == models.ExitModeFull {
		target := numeric.PriceAbovePct(pos.EntryPrice, m.cfg.SellRisePct)
		if price.GreaterThanOrEqual(target) {
			return &ExitDecision{
				Sell:       true,
				SizeBase:   pos.RemainingSize,
				LevelIndex: -1,
				Reason:     "full exit target reached",
			}
		}
		return &ExitDecision{Reason: "below exit target"}
	}

	for i := range pos.Levels {
		level := &pos.Levels[i]
		if level.Triggered || price.LessThan(level.TriggerPrice) {
			continue
		}

		// Price ran past the final rung without a pullback: extend the
		// ladder once instead of dumping the remainder here.
		if m.isFinalUntriggered(pos, i) && pos.Extension == models.ExtensionNone && m.priceBeyondLadder(pos, price) {
			return &ExitDecision{Extend: true, Reason: "price beyond ladder, extending"}
		}

		size := numeric.ApplyPct(pos.InitialSize, level.ExitPct)
		if size.GreaterThan(pos.RemainingSize) {
			size = pos.RemainingSize
		}
		return &ExitDecision{
			Sell:       true,
			SizeBase:   size,
			LevelIndex: i,
			Reason:     "scale-out level reached",
		}
	}
	return &ExitDecision{Reason: "no level triggered"}
}

// Extend appends one rung one spacing above the last, carrying the final
// rung's unsold share. The cumulative exit percentage is unchanged, so it
// still never exceeds 100. Extension happens at most once per position.
func (m *ScaleOutManager) Extend(pos *models.PositionState) {
	if pos.Extension != models.ExtensionNone || len(pos.Levels) == 0 {
		return
	}
	last := &pos.Levels[len(pos.Levels)-1]

	spacing := m.levelSpacing(pos)
	newLevel := models.ScaleOutLevel{
		Index:        last.Index + 1,
		TriggerPrice: last.TriggerPrice.Add(spacing),
		ExitPct:      last.ExitPct,
	}
	last.ExitPct = decimal.Zero
	last.Triggered = true
	pos.Levels = append(pos.Levels, newLevel)
	pos.Extension = models.ExtensionExtended
	pos.Status = models.PositionExtended
}

// ApplyFill records an executed (possibly partial) exit fill against the
// position and advances the state machine. A full exit closes the position
// only once nothing remains: a partial fill leaves it open so the next cycle
// retries the remainder.
func (m *ScaleOutManager) ApplyFill(pos *models.PositionState, levelIndex int, filledBase decimal.Decimal) {
	if levelIndex >= 0 && levelIndex < len(pos.Levels) {
		pos.Levels[levelIndex].Triggered = true
	}
	pos.RemainingSize = pos.RemainingSize.Sub(filledBase)
	if pos.RemainingSize.IsNegative() {
		pos.RemainingSize = decimal.Zero
	}

	switch {
	case pos.RemainingSize.IsZero(), pos.AllLevelsTriggered():
		pos.Status = models.PositionClosed
		if pos.Extension == models.ExtensionExtended {
			pos.Extension = models.ExtensionExited
		}
	case levelIndex >= 0 && pos.Status == models.PositionOpen:
		pos.Status = models.PositionScaleOutActive
	}
}

func (m *ScaleOutManager) isFinalUntriggered(pos *models.PositionState, index int) bool {
	for i := range pos.Levels {
		if i != index && !pos.Levels[i].Triggered {
			return false
		}
	}
	return true
}

// priceBeyondLadder reports whether price has run a full spacing past the
// last rung, the "kept moving without retracement" condition.
func (m *ScaleOutManager) priceBeyondLadder(pos *models.PositionState, price decimal.Decimal) bool {
	last := pos.Levels[len(pos.Levels)-1]
	return price.GreaterThanOrEqual(last.TriggerPrice.Add(m.levelSpacing(pos)))
}

func (m *ScaleOutManager) levelSpacing(pos *models.PositionState) decimal.Decimal {
	if len(pos.Levels) > 1 {
		return pos.Levels[1].TriggerPrice.Sub(pos.Levels[0].TriggerPrice)
	}
	return pos.Levels[0].TriggerPrice.Sub(pos.EntryPrice)
}
