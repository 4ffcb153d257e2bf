// Package allocator enforces the shared-wallet guardrail. Every instance's
// buy plans pass through one WalletLedger, whose check-and-commit is atomic:
// two plans that each fit individually can never both pass when together
// they would breach the reserve.
package allocator

import (
	"fmt"
	"sync"

	"spot-trade-bot-go/internal/models"

	"github.com/shopspring/decimal"
)

// WalletLedger tracks capital committed by in-flight trade plans against the
// wallet balance minus the untouchable reserve.
type WalletLedger struct {
	mu         sync.Mutex
	balance    decimal.Decimal
	minReserve decimal.Decimal
	committed  map[string]decimal.Decimal // instanceID -> committed notional
}

// NewWalletLedger builds a ledger for one wallet.
func NewWalletLedger(cfg models.WalletConfig) *WalletLedger {
	return &WalletLedger{
		balance:    cfg.Balance,
		minReserve: cfg.MinReserve,
		committed:  make(map[string]decimal.Decimal),
	}
}

// Check evaluates a trade plan and, when it fits, commits its notional in the
// same critical section. Sells never consume headroom; they release capital.
func (l *WalletLedger) Check(plan *models.TradePlan) *models.WalletGuardrailResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	if plan.Side == models.Sell {
		return &models.WalletGuardrailResult{
			Allowed:   true,
			Committed: l.totalLocked(),
			Headroom:  l.headroomLocked(),
		}
	}

	headroom := l.headroomLocked()
	if plan.Notional.GreaterThan(headroom) {
		return &models.WalletGuardrailResult{
			Allowed:  false,
			Reason:   fmt.Sprintf("plan notional %s exceeds headroom %s", plan.Notional, headroom),
			Headroom: headroom,
		}
	}

	l.committed[plan.InstanceID] = l.committed[plan.InstanceID].Add(plan.Notional)
	return &models.WalletGuardrailResult{
		Allowed:   true,
		Committed: l.totalLocked(),
		Headroom:  l.headroomLocked(),
	}
}

// Release returns committed capital after the plan's trade settles or fails.
// Releasing more than an instance committed clamps to zero.
func (l *WalletLedger) Release(instanceID string, notional decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	remaining := l.committed[instanceID].Sub(notional)
	if remaining.LessThanOrEqual(decimal.Zero) {
		delete(l.committed, instanceID)
		return
	}
	l.committed[instanceID] = remaining
}

// SetBalance refreshes the wallet balance from a venue snapshot.
func (l *WalletLedger) SetBalance(balance decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balance = balance
}

// Committed returns the total capital currently committed across instances.
func (l *WalletLedger) Committed() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalLocked()
}

func (l *WalletLedger) totalLocked() decimal.Decimal {
	total := decimal.Zero
	for _, c := range l.committed {
		total = total.Add(c)
	}
	return total
}

func (l *WalletLedger) headroomLocked() decimal.Decimal {
	headroom := l.balance.Sub(l.minReserve).Sub(l.totalLocked())
	if headroom.IsNegative() {
		return decimal.Zero
	}
	return headroom
}
