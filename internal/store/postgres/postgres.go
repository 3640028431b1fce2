package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"gasshop/backend/internal/domain"
	"gasshop/backend/internal/store"
	"gasshop/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, unit_price_cents, starting_stock
		FROM products
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 16)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.UnitPriceCents, &p.StartingStock); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" || product.UnitPriceCents < 0 || product.StartingStock < 0 {
		return nil, store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO products (id, name, unit_price_cents, starting_stock, created_at)
		VALUES ($1,$2,$3,$4,now())
	`, product.ID, product.Name, product.UnitPriceCents, product.StartingStock)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO stock_levels (product_id, qty, updated_at)
		VALUES ($1,$2,now())
	`, product.ID, product.StartingStock)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	var product domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, unit_price_cents, starting_stock
		FROM products
		WHERE id = $1
	`, id).Scan(&product.ID, &product.Name, &product.UnitPriceCents, &product.StartingStock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) StockLevels(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT product_id, qty FROM stock_levels`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	levels := make(map[string]int, 16)
	for rows.Next() {
		var productID string
		var qty int
		if err := rows.Scan(&productID, &qty); err != nil {
			return nil, err
		}
		levels[productID] = qty
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return levels, nil
}

func (s *Store) CurrentStock(ctx context.Context, productID string) (int, error) {
	var qty int
	err := s.db.QueryRowContext(ctx, `
		SELECT qty FROM stock_levels WHERE product_id = $1
	`, productID).Scan(&qty)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, store.ErrNotFound
		}
		return 0, err
	}
	return qty, nil
}

func (s *Store) IncreaseStock(ctx context.Context, productID string, qty int) (int, error) {
	if productID == "" || qty < 1 {
		return 0, store.ErrInvalidInput
	}

	var level int
	err := s.db.QueryRowContext(ctx, `
		UPDATE stock_levels
		SET qty = qty + $2, updated_at = now()
		WHERE product_id = $1
		RETURNING qty
	`, productID, qty).Scan(&level)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, store.ErrNotFound
		}
		return 0, err
	}
	return level, nil
}

// CreateSale runs the whole sale as one serializable transaction: the stock
// row is locked, checked, decremented, then the sale and its mirror entry
// are inserted. Any failure rolls the whole thing back.
func (s *Store) CreateSale(ctx context.Context, sale domain.SaleRecord) (*domain.SaleRecord, error) {
	if err := validateSale(sale); err != nil {
		return nil, err
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.RecordedAt.IsZero() {
		sale.RecordedAt = time.Now().UTC()
	}
	sale.TotalCents = int64(sale.Quantity) * sale.UnitPriceCents

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	productName, err := lockProductStock(ctx, tx, sale.ProductID, sale.Quantity)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE stock_levels
		SET qty = qty - $2, updated_at = now()
		WHERE product_id = $1
	`, sale.ProductID, sale.Quantity)
	if err != nil {
		return nil, err
	}

	if err := insertSale(ctx, tx, sale); err != nil {
		return nil, err
	}
	if err := insertMirror(ctx, tx, sale, productName); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := sale
	return &created, nil
}

// UpdateSale reconciles stock with the edited fields inside one
// transaction. Same-product edits apply the signed quantity difference;
// product changes restore the old quantity and deduct the new one. The
// mirror entry is deleted from whichever ledger holds it and regenerated
// from the new sale fields.
func (s *Store) UpdateSale(ctx context.Context, sale domain.SaleRecord) (*domain.SaleRecord, error) {
	if sale.ID == "" {
		return nil, store.ErrInvalidInput
	}
	if err := validateSale(sale); err != nil {
		return nil, err
	}
	sale.TotalCents = int64(sale.Quantity) * sale.UnitPriceCents

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var prev domain.SaleRecord
	err = tx.QueryRowContext(ctx, `
		SELECT id, recorded_at, product_id, quantity, unit_price_cents, total_cents, payment_method, momo_ref, customer
		FROM sales_ledger
		WHERE id = $1
		FOR UPDATE
	`, sale.ID).Scan(&prev.ID, &prev.RecordedAt, &prev.ProductID, &prev.Quantity, &prev.UnitPriceCents,
		&prev.TotalCents, &prev.PaymentMethod, &prev.MomoRef, &prev.Customer)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	sale.RecordedAt = prev.RecordedAt.UTC()

	var productName string
	if sale.ProductID == prev.ProductID {
		diff := sale.Quantity - prev.Quantity
		productName, err = lockProductStock(ctx, tx, sale.ProductID, diff)
		if err != nil {
			return nil, err
		}
		if diff != 0 {
			_, err = tx.ExecContext(ctx, `
				UPDATE stock_levels
				SET qty = qty - $2, updated_at = now()
				WHERE product_id = $1
			`, sale.ProductID, diff)
			if err != nil {
				return nil, err
			}
		}
	} else {
		// Restore the old product first, then deduct from the new one.
		// Rollback of the transaction undoes the restore if the new
		// product has insufficient stock.
		if _, err = lockProductStock(ctx, tx, prev.ProductID, 0); err != nil {
			return nil, err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE stock_levels
			SET qty = qty + $2, updated_at = now()
			WHERE product_id = $1
		`, prev.ProductID, prev.Quantity)
		if err != nil {
			return nil, err
		}

		productName, err = lockProductStock(ctx, tx, sale.ProductID, sale.Quantity)
		if err != nil {
			return nil, err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE stock_levels
			SET qty = qty - $2, updated_at = now()
			WHERE product_id = $1
		`, sale.ProductID, sale.Quantity)
		if err != nil {
			return nil, err
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE sales_ledger
		SET product_id = $2, quantity = $3, unit_price_cents = $4, total_cents = $5,
		    payment_method = $6, momo_ref = $7, customer = $8
		WHERE id = $1
	`, sale.ID, sale.ProductID, sale.Quantity, sale.UnitPriceCents, sale.TotalCents,
		sale.PaymentMethod, sale.MomoRef, sale.Customer)
	if err != nil {
		return nil, err
	}

	if err := deleteMirror(ctx, tx, sale.ID); err != nil {
		return nil, err
	}
	if err := insertMirror(ctx, tx, sale, productName); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	updated := sale
	return &updated, nil
}

func (s *Store) DeleteSale(ctx context.Context, id string) (*domain.SaleRecord, error) {
	if id == "" {
		return nil, store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var sale domain.SaleRecord
	err = tx.QueryRowContext(ctx, `
		DELETE FROM sales_ledger
		WHERE id = $1
		RETURNING id, recorded_at, product_id, quantity, unit_price_cents, total_cents, payment_method, momo_ref, customer
	`, id).Scan(&sale.ID, &sale.RecordedAt, &sale.ProductID, &sale.Quantity, &sale.UnitPriceCents,
		&sale.TotalCents, &sale.PaymentMethod, &sale.MomoRef, &sale.Customer)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE stock_levels
		SET qty = qty + $2, updated_at = now()
		WHERE product_id = $1
	`, sale.ProductID, sale.Quantity)
	if err != nil {
		return nil, err
	}

	if err := deleteMirror(ctx, tx, sale.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	sale.RecordedAt = sale.RecordedAt.UTC()
	return &sale, nil
}

func (s *Store) GetSaleByID(ctx context.Context, id string) (*domain.SaleRecord, error) {
	var sale domain.SaleRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT id, recorded_at, product_id, quantity, unit_price_cents, total_cents, payment_method, momo_ref, customer
		FROM sales_ledger
		WHERE id = $1
	`, id).Scan(&sale.ID, &sale.RecordedAt, &sale.ProductID, &sale.Quantity, &sale.UnitPriceCents,
		&sale.TotalCents, &sale.PaymentMethod, &sale.MomoRef, &sale.Customer)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	sale.RecordedAt = sale.RecordedAt.UTC()
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context) ([]domain.SaleRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, recorded_at, product_id, quantity, unit_price_cents, total_cents, payment_method, momo_ref, customer
		FROM sales_ledger
		ORDER BY recorded_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.SaleRecord, 0, 64)
	for rows.Next() {
		var sale domain.SaleRecord
		if err := rows.Scan(&sale.ID, &sale.RecordedAt, &sale.ProductID, &sale.Quantity, &sale.UnitPriceCents,
			&sale.TotalCents, &sale.PaymentMethod, &sale.MomoRef, &sale.Customer); err != nil {
			return nil, err
		}
		sale.RecordedAt = sale.RecordedAt.UTC()
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sales, nil
}

func (s *Store) ListCashEntries(ctx context.Context) ([]domain.CashEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, recorded_at, amount_cents, customer, note
		FROM cash_ledger
		ORDER BY recorded_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.CashEntry, 0, 64)
	for rows.Next() {
		var entry domain.CashEntry
		if err := rows.Scan(&entry.ID, &entry.RecordedAt, &entry.AmountCents, &entry.Customer, &entry.Note); err != nil {
			return nil, err
		}
		entry.RecordedAt = entry.RecordedAt.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

func (s *Store) ListMomoEntries(ctx context.Context) ([]domain.MomoEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, recorded_at, amount_cents, momo_ref, customer, note
		FROM momo_ledger
		ORDER BY recorded_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.MomoEntry, 0, 64)
	for rows.Next() {
		var entry domain.MomoEntry
		if err := rows.Scan(&entry.ID, &entry.RecordedAt, &entry.AmountCents, &entry.MomoRef, &entry.Customer, &entry.Note); err != nil {
			return nil, err
		}
		entry.RecordedAt = entry.RecordedAt.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

func (s *Store) CreateWithdrawal(ctx context.Context, withdrawal domain.WithdrawalRecord) (*domain.WithdrawalRecord, error) {
	if withdrawal.Category == "" || withdrawal.AmountCents < 1 {
		return nil, store.ErrInvalidInput
	}
	if withdrawal.ID == "" {
		withdrawal.ID = xid.New("wd")
	}
	if withdrawal.RecordedAt.IsZero() {
		withdrawal.RecordedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO withdraw_ledger (id, recorded_at, category, amount_cents, note)
		VALUES ($1,$2,$3,$4,$5)
	`, withdrawal.ID, withdrawal.RecordedAt, withdrawal.Category, withdrawal.AmountCents, withdrawal.Note)
	if err != nil {
		return nil, err
	}

	created := withdrawal
	return &created, nil
}

func (s *Store) UpdateWithdrawal(ctx context.Context, withdrawal domain.WithdrawalRecord) (*domain.WithdrawalRecord, error) {
	if withdrawal.ID == "" || withdrawal.Category == "" || withdrawal.AmountCents < 1 {
		return nil, store.ErrInvalidInput
	}

	var recordedAt time.Time
	err := s.db.QueryRowContext(ctx, `
		UPDATE withdraw_ledger
		SET category = $2, amount_cents = $3, note = $4
		WHERE id = $1
		RETURNING recorded_at
	`, withdrawal.ID, withdrawal.Category, withdrawal.AmountCents, withdrawal.Note).Scan(&recordedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	updated := withdrawal
	updated.RecordedAt = recordedAt.UTC()
	return &updated, nil
}

func (s *Store) DeleteWithdrawal(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM withdraw_ledger WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListWithdrawals(ctx context.Context) ([]domain.WithdrawalRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, recorded_at, category, amount_cents, note
		FROM withdraw_ledger
		ORDER BY recorded_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	withdrawals := make([]domain.WithdrawalRecord, 0, 32)
	for rows.Next() {
		var wd domain.WithdrawalRecord
		if err := rows.Scan(&wd.ID, &wd.RecordedAt, &wd.Category, &wd.AmountCents, &wd.Note); err != nil {
			return nil, err
		}
		wd.RecordedAt = wd.RecordedAt.UTC()
		withdrawals = append(withdrawals, wd)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return withdrawals, nil
}

func (s *Store) AddCustomer(ctx context.Context, name string) error {
	if name == "" {
		return store.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (name, created_at) VALUES ($1, now())
	`, name)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidInput
		}
		return err
	}
	return nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM customers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]string, 0, 32)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		customers = append(customers, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return customers, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE name = $1`, name)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ComputeSummary(ctx context.Context) (domain.Summary, error) {
	var summary domain.Summary
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE((SELECT SUM(total_cents) FROM sales_ledger), 0),
			COALESCE((SELECT SUM(amount_cents) FROM cash_ledger), 0),
			COALESCE((SELECT SUM(amount_cents) FROM momo_ledger), 0),
			COALESCE((SELECT SUM(amount_cents) FROM withdraw_ledger), 0),
			COALESCE((SELECT SUM(sl.qty * p.unit_price_cents)
				FROM stock_levels sl JOIN products p ON p.id = sl.product_id), 0)
	`).Scan(&summary.TotalSalesCents, &summary.TotalCashCents, &summary.TotalMomoCents,
		&summary.TotalWithdrawalsCents, &summary.StockValueCents)
	if err != nil {
		return domain.Summary{}, err
	}
	return summary, nil
}

func (s *Store) Snapshot(ctx context.Context) (*domain.LedgerSnapshot, error) {
	snapshot := &domain.LedgerSnapshot{TakenAt: time.Now().UTC()}

	var err error
	if snapshot.Products, err = s.ListProducts(ctx); err != nil {
		return nil, err
	}
	if snapshot.Stock, err = s.StockLevels(ctx); err != nil {
		return nil, err
	}
	if snapshot.Sales, err = s.ListSales(ctx); err != nil {
		return nil, err
	}
	if snapshot.CashLedger, err = s.ListCashEntries(ctx); err != nil {
		return nil, err
	}
	if snapshot.MomoLedger, err = s.ListMomoEntries(ctx); err != nil {
		return nil, err
	}
	if snapshot.Withdrawals, err = s.ListWithdrawals(ctx); err != nil {
		return nil, err
	}
	if snapshot.Customers, err = s.ListCustomers(ctx); err != nil {
		return nil, err
	}

	return snapshot, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action,
			&entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" || user.Role == "" {
		return store.ErrInvalidInput
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (username) DO NOTHING
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	if username == "" || password == "" {
		return store.ErrInvalidInput
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// lockProductStock takes the row lock for a product's stock level and
// verifies it can absorb a deduction of need units. need may be zero or
// negative when the caller only returns stock.
func lockProductStock(ctx context.Context, tx *sql.Tx, productID string, need int) (string, error) {
	var name string
	var qty int
	err := tx.QueryRowContext(ctx, `
		SELECT p.name, sl.qty
		FROM stock_levels sl JOIN products p ON p.id = sl.product_id
		WHERE sl.product_id = $1
		FOR UPDATE OF sl
	`, productID).Scan(&name, &qty)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", store.ErrNotFound
		}
		return "", err
	}
	if need > 0 && qty < need {
		return "", fmt.Errorf("%w: product %s has %d, need %d", store.ErrInsufficientStock, productID, qty, need)
	}
	return name, nil
}

func insertSale(ctx context.Context, tx *sql.Tx, sale domain.SaleRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sales_ledger (id, recorded_at, product_id, quantity, unit_price_cents, total_cents, payment_method, momo_ref, customer)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, sale.ID, sale.RecordedAt, sale.ProductID, sale.Quantity, sale.UnitPriceCents,
		sale.TotalCents, sale.PaymentMethod, sale.MomoRef, sale.Customer)
	return err
}

func insertMirror(ctx context.Context, tx *sql.Tx, sale domain.SaleRecord, productName string) error {
	note := fmt.Sprintf("Sale of %s", productName)
	switch sale.PaymentMethod {
	case domain.PaymentCash:
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cash_ledger (id, recorded_at, amount_cents, customer, note)
			VALUES ($1,$2,$3,$4,$5)
		`, sale.ID, sale.RecordedAt, sale.TotalCents, sale.Customer, note)
		return err
	case domain.PaymentMomo:
		_, err := tx.ExecContext(ctx, `
			INSERT INTO momo_ledger (id, recorded_at, amount_cents, momo_ref, customer, note)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, sale.ID, sale.RecordedAt, sale.TotalCents, sale.MomoRef, sale.Customer, note)
		return err
	default:
		return store.ErrInvalidInput
	}
}

func deleteMirror(ctx context.Context, tx *sql.Tx, saleID string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM cash_ledger WHERE id = $1`, saleID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM momo_ledger WHERE id = $1`, saleID); err != nil {
		return err
	}
	return nil
}

func validateSale(sale domain.SaleRecord) error {
	if sale.ProductID == "" || sale.Quantity < 1 || sale.UnitPriceCents < 1 {
		return store.ErrInvalidInput
	}
	switch sale.PaymentMethod {
	case domain.PaymentCash:
	case domain.PaymentMomo:
		if sale.MomoRef == "" {
			return store.ErrInvalidInput
		}
	default:
		return store.ErrInvalidInput
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
