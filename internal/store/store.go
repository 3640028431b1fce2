package store

import (
	"context"
	"errors"

	"gasshop/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidInput      = errors.New("invalid input")
)

// Repository owns the four ledger collections and enforces the consistency
// rules between them. Every sale mutation is atomic: on any rejection no
// collection changes.
type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)

	StockLevels(ctx context.Context) (map[string]int, error)
	CurrentStock(ctx context.Context, productID string) (int, error)
	IncreaseStock(ctx context.Context, productID string, qty int) (int, error)

	CreateSale(ctx context.Context, sale domain.SaleRecord) (*domain.SaleRecord, error)
	UpdateSale(ctx context.Context, sale domain.SaleRecord) (*domain.SaleRecord, error)
	DeleteSale(ctx context.Context, id string) (*domain.SaleRecord, error)
	GetSaleByID(ctx context.Context, id string) (*domain.SaleRecord, error)
	ListSales(ctx context.Context) ([]domain.SaleRecord, error)
	ListCashEntries(ctx context.Context) ([]domain.CashEntry, error)
	ListMomoEntries(ctx context.Context) ([]domain.MomoEntry, error)

	CreateWithdrawal(ctx context.Context, withdrawal domain.WithdrawalRecord) (*domain.WithdrawalRecord, error)
	UpdateWithdrawal(ctx context.Context, withdrawal domain.WithdrawalRecord) (*domain.WithdrawalRecord, error)
	DeleteWithdrawal(ctx context.Context, id string) error
	ListWithdrawals(ctx context.Context) ([]domain.WithdrawalRecord, error)

	AddCustomer(ctx context.Context, name string) error
	ListCustomers(ctx context.Context) ([]string, error)
	DeleteCustomer(ctx context.Context, name string) error

	ComputeSummary(ctx context.Context) (domain.Summary, error)
	Snapshot(ctx context.Context) (*domain.LedgerSnapshot, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
