package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"gasshop/backend/internal/domain"
	"gasshop/backend/internal/store"
	"gasshop/backend/internal/xid"
)

type Store struct {
	mu           sync.RWMutex
	products     []domain.Product
	stock        map[string]int
	sales        []domain.SaleRecord
	cashLedger   []domain.CashEntry
	momoLedger   []domain.MomoEntry
	withdrawals  []domain.WithdrawalRecord
	customers    []string
	auditLogs    []domain.AuditLog
	usersByName  map[string]domain.UserAccount
	snapshotPath string
}

// seedUsers builds the initial in-memory accounts for dev/demo mode.
// Credentials come from SEED_OWNER_PASSWORD and SEED_CLERK_PASSWORD; if
// unset, hardcoded dev defaults are used with a warning. A PostgreSQL
// deployment manages its accounts in the users table instead.
func seedUsers() map[string]domain.UserAccount {
	ownerPwd := envOr("SEED_OWNER_PASSWORD", "owner123")
	clerkPwd := envOr("SEED_CLERK_PASSWORD", "clerk123")
	if os.Getenv("SEED_OWNER_PASSWORD") == "" || os.Getenv("SEED_CLERK_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_OWNER_PASSWORD and SEED_CLERK_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"owner", ownerPwd, domain.RoleOwner},
		{"clerk", clerkPwd, domain.RoleClerk},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	products := []domain.Product{
		{ID: "cylinder-standard", Name: "Standard Cylinder", UnitPriceCents: 2500, StartingStock: 200},
		{ID: "cylinder-heavy", Name: "Heavy Cylinder", UnitPriceCents: 4800, StartingStock: 100},
	}

	stock := make(map[string]int, len(products))
	for _, p := range products {
		stock[p.ID] = p.StartingStock
	}

	return &Store{
		products:    products,
		stock:       stock,
		sales:       make([]domain.SaleRecord, 0, 64),
		cashLedger:  make([]domain.CashEntry, 0, 64),
		momoLedger:  make([]domain.MomoEntry, 0, 64),
		withdrawals: make([]domain.WithdrawalRecord, 0, 32),
		customers:   make([]string, 0, 16),
		auditLogs:   make([]domain.AuditLog, 0, 128),
		usersByName: seedUsers(),
	}
}

// NewPersistent restores the ledger from the JSON snapshot at path, seeding
// a fresh store when the file does not exist yet. Every later mutation
// rewrites the snapshot.
func NewPersistent(path string) (*Store, error) {
	snap, err := readSnapshot(path)
	if err != nil {
		return nil, err
	}
	s := NewSeeded()
	if snap != nil {
		s.applySnapshot(snap)
	}
	s.snapshotPath = path
	return s, nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, len(s.products))
	copy(products, s.products)
	return products, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" || product.Name == "" || product.UnitPriceCents < 0 || product.StartingStock < 0 {
		return nil, store.ErrInvalidInput
	}
	if s.findProductLocked(product.ID) != nil {
		return nil, store.ErrInvalidInput
	}

	s.products = append(s.products, product)
	s.stock[product.ID] += product.StartingStock
	s.persistLocked()

	created := product
	return &created, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product := s.findProductLocked(id)
	if product == nil {
		return nil, store.ErrNotFound
	}
	copyProduct := *product
	return &copyProduct, nil
}

func (s *Store) StockLevels(_ context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	levels := make(map[string]int, len(s.stock))
	for id, qty := range s.stock {
		levels[id] = qty
	}
	return levels, nil
}

func (s *Store) CurrentStock(_ context.Context, productID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.findProductLocked(productID) == nil {
		return 0, store.ErrNotFound
	}
	return s.stock[productID], nil
}

func (s *Store) IncreaseStock(_ context.Context, productID string, qty int) (int, error) {
	if qty < 1 {
		return 0, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findProductLocked(productID) == nil {
		return 0, store.ErrNotFound
	}
	s.stock[productID] += qty
	s.persistLocked()
	return s.stock[productID], nil
}

// CreateSale atomically decrements stock, appends the sale, and appends
// exactly one mirror entry in the payment ledger the sale's method selects.
// All checks run before the first mutation.
func (s *Store) CreateSale(_ context.Context, sale domain.SaleRecord) (*domain.SaleRecord, error) {
	if sale.Quantity < 1 || sale.UnitPriceCents < 1 {
		return nil, store.ErrInvalidInput
	}
	if sale.PaymentMethod != domain.PaymentCash && sale.PaymentMethod != domain.PaymentMomo {
		return nil, store.ErrInvalidInput
	}
	if sale.PaymentMethod == domain.PaymentMomo && strings.TrimSpace(sale.MomoRef) == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product := s.findProductLocked(sale.ProductID)
	if product == nil {
		return nil, store.ErrNotFound
	}
	if s.stock[sale.ProductID] < sale.Quantity {
		return nil, store.ErrInsufficientStock
	}

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.RecordedAt.IsZero() {
		sale.RecordedAt = time.Now().UTC()
	}
	if sale.PaymentMethod != domain.PaymentMomo {
		sale.MomoRef = ""
	}
	sale.TotalCents = int64(sale.Quantity) * sale.UnitPriceCents

	s.stock[sale.ProductID] -= sale.Quantity
	s.sales = append(s.sales, sale)
	s.appendMirrorLocked(sale, product.Name)
	s.persistLocked()

	created := sale
	return &created, nil
}

// UpdateSale reconciles stock with the edited fields and regenerates the
// mirror entry from scratch, even when the payment method did not change.
func (s *Store) UpdateSale(_ context.Context, sale domain.SaleRecord) (*domain.SaleRecord, error) {
	if sale.Quantity < 1 || sale.UnitPriceCents < 1 {
		return nil, store.ErrInvalidInput
	}
	if sale.PaymentMethod != domain.PaymentCash && sale.PaymentMethod != domain.PaymentMomo {
		return nil, store.ErrInvalidInput
	}
	if sale.PaymentMethod == domain.PaymentMomo && strings.TrimSpace(sale.MomoRef) == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.sales, func(e domain.SaleRecord) bool { return e.ID == sale.ID })
	if idx == -1 {
		return nil, store.ErrNotFound
	}
	old := s.sales[idx]

	product := s.findProductLocked(sale.ProductID)
	if product == nil {
		return nil, store.ErrNotFound
	}

	// Stock reconciliation, checked before any mutation so a rejection
	// leaves every collection untouched.
	if sale.ProductID == old.ProductID {
		diff := sale.Quantity - old.Quantity
		if diff > 0 && s.stock[sale.ProductID] < diff {
			return nil, store.ErrInsufficientStock
		}
		s.stock[sale.ProductID] -= diff
	} else {
		if s.stock[sale.ProductID] < sale.Quantity {
			return nil, store.ErrInsufficientStock
		}
		s.stock[old.ProductID] += old.Quantity
		s.stock[sale.ProductID] -= sale.Quantity
	}

	sale.RecordedAt = old.RecordedAt
	if sale.PaymentMethod != domain.PaymentMomo {
		sale.MomoRef = ""
	}
	sale.TotalCents = int64(sale.Quantity) * sale.UnitPriceCents
	s.sales[idx] = sale

	s.removeMirrorLocked(sale.ID)
	s.appendMirrorLocked(sale, product.Name)
	s.persistLocked()

	updated := sale
	return &updated, nil
}

// DeleteSale restores the sold quantity to stock and removes both the sale
// and its mirror entry.
func (s *Store) DeleteSale(_ context.Context, id string) (*domain.SaleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.sales, func(e domain.SaleRecord) bool { return e.ID == id })
	if idx == -1 {
		return nil, store.ErrNotFound
	}

	sale := s.sales[idx]
	s.stock[sale.ProductID] += sale.Quantity
	s.sales = slices.Delete(s.sales, idx, idx+1)
	s.removeMirrorLocked(id)
	s.persistLocked()

	deleted := sale
	return &deleted, nil
}

func (s *Store) GetSaleByID(_ context.Context, id string) (*domain.SaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sale := range s.sales {
		if sale.ID == id {
			copySale := sale
			return &copySale, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListSales(_ context.Context) ([]domain.SaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.SaleRecord, len(s.sales))
	copy(sales, s.sales)
	return sales, nil
}

func (s *Store) ListCashEntries(_ context.Context) ([]domain.CashEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.CashEntry, len(s.cashLedger))
	copy(entries, s.cashLedger)
	return entries, nil
}

func (s *Store) ListMomoEntries(_ context.Context) ([]domain.MomoEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.MomoEntry, len(s.momoLedger))
	copy(entries, s.momoLedger)
	return entries, nil
}

func (s *Store) CreateWithdrawal(_ context.Context, withdrawal domain.WithdrawalRecord) (*domain.WithdrawalRecord, error) {
	if withdrawal.AmountCents < 1 || strings.TrimSpace(withdrawal.Category) == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if withdrawal.ID == "" {
		withdrawal.ID = xid.New("wd")
	}
	if withdrawal.RecordedAt.IsZero() {
		withdrawal.RecordedAt = time.Now().UTC()
	}
	s.withdrawals = append(s.withdrawals, withdrawal)
	s.persistLocked()

	created := withdrawal
	return &created, nil
}

func (s *Store) UpdateWithdrawal(_ context.Context, withdrawal domain.WithdrawalRecord) (*domain.WithdrawalRecord, error) {
	if withdrawal.AmountCents < 1 || strings.TrimSpace(withdrawal.Category) == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.withdrawals, func(e domain.WithdrawalRecord) bool { return e.ID == withdrawal.ID })
	if idx == -1 {
		return nil, store.ErrNotFound
	}

	withdrawal.RecordedAt = s.withdrawals[idx].RecordedAt
	s.withdrawals[idx] = withdrawal
	s.persistLocked()

	updated := withdrawal
	return &updated, nil
}

func (s *Store) DeleteWithdrawal(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.withdrawals, func(e domain.WithdrawalRecord) bool { return e.ID == id })
	if idx == -1 {
		return store.ErrNotFound
	}
	s.withdrawals = slices.Delete(s.withdrawals, idx, idx+1)
	s.persistLocked()
	return nil
}

func (s *Store) ListWithdrawals(_ context.Context) ([]domain.WithdrawalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	withdrawals := make([]domain.WithdrawalRecord, len(s.withdrawals))
	copy(withdrawals, s.withdrawals)
	return withdrawals, nil
}

func (s *Store) AddCustomer(_ context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if slices.Contains(s.customers, name) {
		return store.ErrInvalidInput
	}
	s.customers = append(s.customers, name)
	s.persistLocked()
	return nil
}

func (s *Store) ListCustomers(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]string, len(s.customers))
	copy(customers, s.customers)
	return customers, nil
}

// DeleteCustomer removes the name from the directory only; past sales keep
// whatever customer name they were recorded with.
func (s *Store) DeleteCustomer(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.Index(s.customers, name)
	if idx == -1 {
		return store.ErrNotFound
	}
	s.customers = slices.Delete(s.customers, idx, idx+1)
	s.persistLocked()
	return nil
}

func (s *Store) ComputeSummary(_ context.Context) (domain.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var summary domain.Summary
	for _, sale := range s.sales {
		summary.TotalSalesCents += sale.TotalCents
	}
	for _, entry := range s.cashLedger {
		summary.TotalCashCents += entry.AmountCents
	}
	for _, entry := range s.momoLedger {
		summary.TotalMomoCents += entry.AmountCents
	}
	for _, withdrawal := range s.withdrawals {
		summary.TotalWithdrawalsCents += withdrawal.AmountCents
	}
	for _, product := range s.products {
		summary.StockValueCents += int64(s.stock[product.ID]) * product.UnitPriceCents
	}
	return summary, nil
}

func (s *Store) Snapshot(_ context.Context) (*domain.LedgerSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.snapshotLocked()
	return &snap, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 || limit > len(s.auditLogs) {
		limit = len(s.auditLogs)
	}
	result := make([]domain.AuditLog, 0, limit)
	for i := len(s.auditLogs) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, s.auditLogs[i])
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Username == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByName[user.Username]; exists {
		return store.ErrInvalidInput
	}
	s.usersByName[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByName))
	for _, user := range s.usersByName {
		users = append(users, user)
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByName[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByName[username] = user
	return nil
}

func (s *Store) findProductLocked(id string) *domain.Product {
	for i := range s.products {
		if s.products[i].ID == id {
			return &s.products[i]
		}
	}
	return nil
}

func (s *Store) appendMirrorLocked(sale domain.SaleRecord, productName string) {
	note := fmt.Sprintf("Sale of %s", productName)
	switch sale.PaymentMethod {
	case domain.PaymentCash:
		s.cashLedger = append(s.cashLedger, domain.CashEntry{
			ID:          sale.ID,
			RecordedAt:  sale.RecordedAt,
			AmountCents: sale.TotalCents,
			Customer:    sale.Customer,
			Note:        note,
		})
	case domain.PaymentMomo:
		s.momoLedger = append(s.momoLedger, domain.MomoEntry{
			ID:          sale.ID,
			RecordedAt:  sale.RecordedAt,
			AmountCents: sale.TotalCents,
			MomoRef:     sale.MomoRef,
			Customer:    sale.Customer,
			Note:        note,
		})
	}
}

// removeMirrorLocked looks the sale id up in both payment ledgers; a sale
// has at most one mirror entry at any time.
func (s *Store) removeMirrorLocked(id string) {
	if idx := slices.IndexFunc(s.cashLedger, func(e domain.CashEntry) bool { return e.ID == id }); idx != -1 {
		s.cashLedger = slices.Delete(s.cashLedger, idx, idx+1)
		return
	}
	if idx := slices.IndexFunc(s.momoLedger, func(e domain.MomoEntry) bool { return e.ID == id }); idx != -1 {
		s.momoLedger = slices.Delete(s.momoLedger, idx, idx+1)
	}
}
