package state

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Ledger tracks cash committed to pending buy orders, per instrument.
// It is safe for concurrent use.
type Ledger struct {
	mu       sync.Mutex
	reserved map[string]decimal.Decimal
}

// NewLedger creates an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{
		mu:       sync.Mutex{},
		reserved: make(map[string]decimal.Decimal),
	}
}

// Reserve adds amount to the reservation of id.
func (l *Ledger) Reserve(id string, amount decimal.Decimal) {
	if !amount.IsPositive() {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.reserved[id] = l.reserved[id].Add(amount)
}

// Release drops the reservation of id and returns what was held.
func (l *Ledger) Release(id string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	amount, ok := l.reserved[id]
	if !ok {
		return decimal.Zero
	}

	delete(l.reserved, id)

	return amount
}

// Reserved returns the reservation of id.
func (l *Ledger) Reserved(id string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.reserved[id]
}

// Total returns the sum of all reservations.
func (l *Ledger) Total() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := decimal.Zero
	for _, amount := range l.reserved {
		total = total.Add(amount)
	}

	return total
}

// Entries copies the reservations, keyed by instrument id.
func (l *Ledger) Entries() map[string]decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]decimal.Decimal, len(l.reserved))
	for id, amount := range l.reserved {
		out[id] = amount
	}

	return out
}
