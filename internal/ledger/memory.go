package ledger

import (
	"context"
	"sync"
)

// Memory is an in-process Ledger with the same all-or-nothing semantics as
// the store-backed one. Engine tests run against it.
type Memory struct {
	mu       sync.Mutex
	balances map[string]int64
	escrow   int64
}

func NewMemory() *Memory {
	return &Memory{balances: map[string]int64{}}
}

// Deposit funds a holder outside any settlement. Test setup only.
func (m *Memory) Deposit(holder string, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[holder] += amount
}

func (m *Memory) TransferIn(_ context.Context, payer string, amount int64, _, _, _ string) error {
	if amount <= 0 {
		return ErrNonPositiveAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	bal, ok := m.balances[payer]
	if !ok {
		return ErrUnknownHolder
	}
	if bal < amount {
		return ErrInsufficientFunds
	}
	m.balances[payer] = bal - amount
	m.escrow += amount
	return nil
}

func (m *Memory) TransferOut(_ context.Context, payee string, amount int64, _, _, _ string) error {
	if amount <= 0 {
		return ErrNonPositiveAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.escrow < amount {
		return ErrInsufficientFunds
	}
	m.escrow -= amount
	m.balances[payee] += amount
	return nil
}

func (m *Memory) BalanceOf(_ context.Context, holder string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bal, ok := m.balances[holder]
	if !ok {
		return 0, ErrUnknownHolder
	}
	return bal, nil
}

// Escrowed reports funds currently held by the engine. Conservation tests
// assert it returns to zero after every settlement.
func (m *Memory) Escrowed() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.escrow
}
