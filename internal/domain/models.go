package domain

import "time"

const (
	PaymentCash = "cash"
	PaymentMomo = "momo"
)

// Withdrawal categories are free-form tags; these are the ones the shop
// front end offers by default.
const (
	WithdrawalBank     = "bank"
	WithdrawalPersonal = "personal"
	WithdrawalExpense  = "expense"
)

type Product struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents,omitempty"`
	StartingStock  int    `json:"starting_stock"`
}

type ProductCreateRequest struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents,omitempty"`
	StartingStock  int    `json:"starting_stock"`
}

type SaleRecord struct {
	ID             string    `json:"id"`
	RecordedAt     time.Time `json:"recorded_at"`
	ProductID      string    `json:"product_id"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	TotalCents     int64     `json:"total_cents"`
	PaymentMethod  string    `json:"payment_method"`
	MomoRef        string    `json:"momo_ref,omitempty"`
	Customer       string    `json:"customer,omitempty"`
}

type SaleCreateRequest struct {
	ProductID      string `json:"product_id"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	PaymentMethod  string `json:"payment_method"`
	MomoRef        string `json:"momo_ref,omitempty"`
	Customer       string `json:"customer,omitempty"`
}

type SaleUpdateRequest struct {
	ProductID      string `json:"product_id"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	PaymentMethod  string `json:"payment_method"`
	MomoRef        string `json:"momo_ref,omitempty"`
	Customer       string `json:"customer,omitempty"`
}

// CashEntry mirrors a cash sale in the cash ledger. It always carries the
// identifier of the sale that produced it.
type CashEntry struct {
	ID          string    `json:"id"`
	RecordedAt  time.Time `json:"recorded_at"`
	AmountCents int64     `json:"amount_cents"`
	Customer    string    `json:"customer,omitempty"`
	Note        string    `json:"note,omitempty"`
}

// MomoEntry mirrors a mobile-money sale in the momo ledger, including the
// payment reference the provider issued.
type MomoEntry struct {
	ID          string    `json:"id"`
	RecordedAt  time.Time `json:"recorded_at"`
	AmountCents int64     `json:"amount_cents"`
	MomoRef     string    `json:"momo_ref"`
	Customer    string    `json:"customer,omitempty"`
	Note        string    `json:"note,omitempty"`
}

type WithdrawalRecord struct {
	ID          string    `json:"id"`
	RecordedAt  time.Time `json:"recorded_at"`
	Category    string    `json:"category"`
	AmountCents int64     `json:"amount_cents"`
	Note        string    `json:"note,omitempty"`
}

type WithdrawalCreateRequest struct {
	Category    string `json:"category"`
	AmountCents int64  `json:"amount_cents"`
	Note        string `json:"note,omitempty"`
}

type WithdrawalUpdateRequest struct {
	Category    string `json:"category"`
	AmountCents int64  `json:"amount_cents"`
	Note        string `json:"note,omitempty"`
}

type StockIntakeRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type StockIntakeResponse struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type CustomerCreateRequest struct {
	Name string `json:"name"`
}

type Summary struct {
	TotalSalesCents       int64 `json:"total_sales_cents"`
	TotalCashCents        int64 `json:"total_cash_cents"`
	TotalMomoCents        int64 `json:"total_momo_cents"`
	TotalWithdrawalsCents int64 `json:"total_withdrawals_cents"`
	StockValueCents       int64 `json:"stock_value_cents"`
}

// LedgerSnapshot is the full persisted state: one field per logical
// collection, serialized as a single JSON document.
type LedgerSnapshot struct {
	TakenAt     time.Time          `json:"taken_at"`
	Products    []Product          `json:"products"`
	Stock       map[string]int     `json:"stock"`
	Sales       []SaleRecord       `json:"sales"`
	CashLedger  []CashEntry        `json:"cash_ledger"`
	MomoLedger  []MomoEntry        `json:"momo_ledger"`
	Withdrawals []WithdrawalRecord `json:"withdrawals"`
	Customers   []string           `json:"customers"`
}

type LedgerEvent struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	EntityID    string    `json:"entity_id"`
	AmountCents int64     `json:"amount_cents,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

const (
	EventSaleRecorded       = "sale_recorded"
	EventSaleEdited         = "sale_edited"
	EventSaleDeleted        = "sale_deleted"
	EventStockIntake        = "stock_intake"
	EventWithdrawalRecorded = "withdrawal_recorded"
	EventWithdrawalEdited   = "withdrawal_edited"
	EventWithdrawalDeleted  = "withdrawal_deleted"
)

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

const (
	RoleOwner = "owner"
	RoleClerk = "clerk"
)
