package memory

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"gasshop/backend/internal/domain"
)

// snapshotLocked copies every collection into the persisted state layout.
// Callers must hold at least a read lock.
func (s *Store) snapshotLocked() domain.LedgerSnapshot {
	snap := domain.LedgerSnapshot{
		TakenAt:     time.Now().UTC(),
		Products:    make([]domain.Product, len(s.products)),
		Stock:       make(map[string]int, len(s.stock)),
		Sales:       make([]domain.SaleRecord, len(s.sales)),
		CashLedger:  make([]domain.CashEntry, len(s.cashLedger)),
		MomoLedger:  make([]domain.MomoEntry, len(s.momoLedger)),
		Withdrawals: make([]domain.WithdrawalRecord, len(s.withdrawals)),
		Customers:   make([]string, len(s.customers)),
	}
	copy(snap.Products, s.products)
	for id, qty := range s.stock {
		snap.Stock[id] = qty
	}
	copy(snap.Sales, s.sales)
	copy(snap.CashLedger, s.cashLedger)
	copy(snap.MomoLedger, s.momoLedger)
	copy(snap.Withdrawals, s.withdrawals)
	copy(snap.Customers, s.customers)
	return snap
}

func (s *Store) applySnapshot(snap *domain.LedgerSnapshot) {
	s.products = snap.Products
	s.stock = snap.Stock
	if s.stock == nil {
		s.stock = map[string]int{}
	}
	s.sales = snap.Sales
	s.cashLedger = snap.CashLedger
	s.momoLedger = snap.MomoLedger
	s.withdrawals = snap.Withdrawals
	s.customers = snap.Customers
}

// persistLocked writes the full snapshot after a mutation. The write is
// best effort: a failure is logged and the in-memory state stays committed.
// The temp-file rename keeps a crash mid-write from truncating the last
// good snapshot.
func (s *Store) persistLocked() {
	if s.snapshotPath == "" {
		return
	}

	snap := s.snapshotLocked()
	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		log.Printf("[memory-store] WARN: snapshot marshal failed: %v", err)
		return
	}

	tmp := s.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		log.Printf("[memory-store] WARN: snapshot write failed: %v", err)
		return
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		log.Printf("[memory-store] WARN: snapshot rename failed: %v", err)
	}
}

func readSnapshot(path string) (*domain.LedgerSnapshot, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if mkErr := os.MkdirAll(filepath.Dir(path), 0o700); mkErr != nil {
				return nil, mkErr
			}
			return nil, nil
		}
		return nil, err
	}

	var snap domain.LedgerSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
