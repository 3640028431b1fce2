package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"gasshop/backend/internal/cache"
	"gasshop/backend/internal/domain"
	"gasshop/backend/internal/events"
	"gasshop/backend/internal/store"
	"gasshop/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo      store.Repository
	summaries cache.SummaryCache
	journal   events.Publisher
}

func New(repo store.Repository, summaries cache.SummaryCache, journal events.Publisher) *Service {
	if summaries == nil {
		summaries = cache.NoopSummaryCache{}
	}
	if journal == nil {
		journal = events.NoopPublisher{}
	}
	return &Service{
		repo:      repo,
		summaries: summaries,
		journal:   journal,
	}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleOwner {
		return domain.Product{}, fmt.Errorf("owner role required")
	}

	req.ID = strings.ToLower(strings.TrimSpace(req.ID))
	req.Name = strings.TrimSpace(req.Name)
	if req.ID == "" || req.Name == "" {
		return domain.Product{}, store.ErrInvalidInput
	}
	if req.UnitPriceCents < 0 || req.StartingStock < 0 {
		return domain.Product{}, store.ErrInvalidInput
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		ID:             req.ID,
		Name:           req.Name,
		UnitPriceCents: req.UnitPriceCents,
		StartingStock:  req.StartingStock,
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateSummary(ctx)
	s.logAudit(ctx, "product_create", "product", created.ID, fmt.Sprintf("name=%s,price=%d,stock=%d", created.Name, created.UnitPriceCents, created.StartingStock))
	return *created, nil
}

func (s *Service) StockLevels(ctx context.Context) (map[string]int, error) {
	return s.repo.StockLevels(ctx)
}

func (s *Service) CurrentStock(ctx context.Context, productID string) (int, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return 0, store.ErrInvalidInput
	}
	return s.repo.CurrentStock(ctx, productID)
}

// AddStock is intake only: negative adjustment happens solely as a side
// effect of sales.
func (s *Service) AddStock(ctx context.Context, req domain.StockIntakeRequest) (domain.StockIntakeResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleOwner {
		return domain.StockIntakeResponse{}, fmt.Errorf("owner role required")
	}

	req.ProductID = strings.TrimSpace(req.ProductID)
	if req.ProductID == "" || req.Quantity < 1 {
		return domain.StockIntakeResponse{}, store.ErrInvalidInput
	}

	level, err := s.repo.IncreaseStock(ctx, req.ProductID, req.Quantity)
	if err != nil {
		return domain.StockIntakeResponse{}, err
	}

	s.invalidateSummary(ctx)
	s.publish(ctx, domain.EventStockIntake, req.ProductID, 0, fmt.Sprintf("qty=%d,level=%d", req.Quantity, level))
	s.logAudit(ctx, "stock_intake", "stock", req.ProductID, fmt.Sprintf("qty=%d,level=%d", req.Quantity, level))

	return domain.StockIntakeResponse{ProductID: req.ProductID, Quantity: level}, nil
}

// RecordSale validates the request, then hands the store one atomic
// operation: decrement stock, append the sale, append its mirror entry.
func (s *Service) RecordSale(ctx context.Context, req domain.SaleCreateRequest) (domain.SaleRecord, error) {
	sale, err := saleFromRequest(req.ProductID, req.Quantity, req.UnitPriceCents, req.PaymentMethod, req.MomoRef, req.Customer)
	if err != nil {
		return domain.SaleRecord{}, err
	}
	sale.ID = xid.New("sale")
	sale.RecordedAt = time.Now().UTC()

	created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		return domain.SaleRecord{}, err
	}

	s.invalidateSummary(ctx)
	s.publish(ctx, domain.EventSaleRecorded, created.ID, created.TotalCents, fmt.Sprintf("product=%s,qty=%d,method=%s", created.ProductID, created.Quantity, created.PaymentMethod))
	s.logAudit(ctx, "sale_record", "sale", created.ID, fmt.Sprintf("product=%s,qty=%d,total=%d,method=%s", created.ProductID, created.Quantity, created.TotalCents, created.PaymentMethod))

	return *created, nil
}

// EditSale reconciles stock with the changed fields and regenerates the
// mirror entry from the new sale, whatever the old payment method was.
func (s *Service) EditSale(ctx context.Context, id string, req domain.SaleUpdateRequest) (domain.SaleRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.SaleRecord{}, store.ErrInvalidInput
	}

	sale, err := saleFromRequest(req.ProductID, req.Quantity, req.UnitPriceCents, req.PaymentMethod, req.MomoRef, req.Customer)
	if err != nil {
		return domain.SaleRecord{}, err
	}
	sale.ID = id

	updated, err := s.repo.UpdateSale(ctx, sale)
	if err != nil {
		return domain.SaleRecord{}, err
	}

	s.invalidateSummary(ctx)
	s.publish(ctx, domain.EventSaleEdited, updated.ID, updated.TotalCents, fmt.Sprintf("product=%s,qty=%d,method=%s", updated.ProductID, updated.Quantity, updated.PaymentMethod))
	s.logAudit(ctx, "sale_edit", "sale", updated.ID, fmt.Sprintf("product=%s,qty=%d,total=%d,method=%s", updated.ProductID, updated.Quantity, updated.TotalCents, updated.PaymentMethod))

	return *updated, nil
}

func (s *Service) DeleteSale(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return store.ErrInvalidInput
	}

	deleted, err := s.repo.DeleteSale(ctx, id)
	if err != nil {
		return err
	}

	s.invalidateSummary(ctx)
	s.publish(ctx, domain.EventSaleDeleted, deleted.ID, deleted.TotalCents, fmt.Sprintf("product=%s,qty=%d", deleted.ProductID, deleted.Quantity))
	s.logAudit(ctx, "sale_delete", "sale", deleted.ID, fmt.Sprintf("product=%s,qty=%d,total=%d", deleted.ProductID, deleted.Quantity, deleted.TotalCents))

	return nil
}

func (s *Service) ListSales(ctx context.Context) ([]domain.SaleRecord, error) {
	return s.repo.ListSales(ctx)
}

func (s *Service) ListCashEntries(ctx context.Context) ([]domain.CashEntry, error) {
	return s.repo.ListCashEntries(ctx)
}

func (s *Service) ListMomoEntries(ctx context.Context) ([]domain.MomoEntry, error) {
	return s.repo.ListMomoEntries(ctx)
}

func (s *Service) RecordWithdrawal(ctx context.Context, req domain.WithdrawalCreateRequest) (domain.WithdrawalRecord, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleOwner {
		return domain.WithdrawalRecord{}, fmt.Errorf("owner role required")
	}

	req.Category = strings.ToLower(strings.TrimSpace(req.Category))
	if req.Category == "" || req.AmountCents < 1 {
		return domain.WithdrawalRecord{}, store.ErrInvalidInput
	}

	created, err := s.repo.CreateWithdrawal(ctx, domain.WithdrawalRecord{
		ID:          xid.New("wd"),
		RecordedAt:  time.Now().UTC(),
		Category:    req.Category,
		AmountCents: req.AmountCents,
		Note:        strings.TrimSpace(req.Note),
	})
	if err != nil {
		return domain.WithdrawalRecord{}, err
	}

	s.invalidateSummary(ctx)
	s.publish(ctx, domain.EventWithdrawalRecorded, created.ID, created.AmountCents, "category="+created.Category)
	s.logAudit(ctx, "withdrawal_record", "withdrawal", created.ID, fmt.Sprintf("category=%s,amount=%d", created.Category, created.AmountCents))

	return *created, nil
}

func (s *Service) EditWithdrawal(ctx context.Context, id string, req domain.WithdrawalUpdateRequest) (domain.WithdrawalRecord, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleOwner {
		return domain.WithdrawalRecord{}, fmt.Errorf("owner role required")
	}

	id = strings.TrimSpace(id)
	req.Category = strings.ToLower(strings.TrimSpace(req.Category))
	if id == "" || req.Category == "" || req.AmountCents < 1 {
		return domain.WithdrawalRecord{}, store.ErrInvalidInput
	}

	updated, err := s.repo.UpdateWithdrawal(ctx, domain.WithdrawalRecord{
		ID:          id,
		Category:    req.Category,
		AmountCents: req.AmountCents,
		Note:        strings.TrimSpace(req.Note),
	})
	if err != nil {
		return domain.WithdrawalRecord{}, err
	}

	s.invalidateSummary(ctx)
	s.publish(ctx, domain.EventWithdrawalEdited, updated.ID, updated.AmountCents, "category="+updated.Category)
	s.logAudit(ctx, "withdrawal_edit", "withdrawal", updated.ID, fmt.Sprintf("category=%s,amount=%d", updated.Category, updated.AmountCents))

	return *updated, nil
}

func (s *Service) DeleteWithdrawal(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleOwner {
		return fmt.Errorf("owner role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return store.ErrInvalidInput
	}

	if err := s.repo.DeleteWithdrawal(ctx, id); err != nil {
		return err
	}

	s.invalidateSummary(ctx)
	s.publish(ctx, domain.EventWithdrawalDeleted, id, 0, "")
	s.logAudit(ctx, "withdrawal_delete", "withdrawal", id, "")

	return nil
}

func (s *Service) ListWithdrawals(ctx context.Context) ([]domain.WithdrawalRecord, error) {
	return s.repo.ListWithdrawals(ctx)
}

func (s *Service) AddCustomer(ctx context.Context, req domain.CustomerCreateRequest) error {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return store.ErrInvalidInput
	}

	if err := s.repo.AddCustomer(ctx, name); err != nil {
		return err
	}
	s.logAudit(ctx, "customer_add", "customer", name, "")
	return nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]string, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) RemoveCustomer(ctx context.Context, name string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleOwner {
		return fmt.Errorf("owner role required")
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return store.ErrInvalidInput
	}

	if err := s.repo.DeleteCustomer(ctx, name); err != nil {
		return err
	}
	s.logAudit(ctx, "customer_remove", "customer", name, "")
	return nil
}

// Summary serves from the cache when possible; every mutating operation
// invalidates the cache first, so a hit always reflects the current state.
func (s *Service) Summary(ctx context.Context) (domain.Summary, error) {
	if cached, ok, err := s.summaries.Get(ctx); err == nil && ok {
		return *cached, nil
	} else if err != nil {
		log.Printf("[service] WARN: summary cache read failed: %v", err)
	}

	summary, err := s.repo.ComputeSummary(ctx)
	if err != nil {
		return domain.Summary{}, err
	}
	if err := s.summaries.Set(ctx, &summary); err != nil {
		log.Printf("[service] WARN: summary cache write failed: %v", err)
	}
	return summary, nil
}

func (s *Service) ExportSnapshot(ctx context.Context) (*domain.LedgerSnapshot, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleOwner {
		return nil, fmt.Errorf("owner role required")
	}
	return s.repo.Snapshot(ctx)
}

func (s *Service) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleOwner {
		return nil, fmt.Errorf("owner role required")
	}
	if limit < 1 {
		limit = 100
	}
	return s.repo.ListAuditLogs(ctx, limit)
}

func saleFromRequest(productID string, quantity int, unitPriceCents int64, method string, momoRef string, customer string) (domain.SaleRecord, error) {
	productID = strings.TrimSpace(productID)
	method = strings.ToLower(strings.TrimSpace(method))
	momoRef = strings.TrimSpace(momoRef)

	if productID == "" || quantity < 1 || unitPriceCents < 1 {
		return domain.SaleRecord{}, store.ErrInvalidInput
	}
	if method != domain.PaymentCash && method != domain.PaymentMomo {
		return domain.SaleRecord{}, store.ErrInvalidInput
	}
	if method == domain.PaymentMomo && momoRef == "" {
		return domain.SaleRecord{}, fmt.Errorf("%w: momo payments require a payment reference", store.ErrInvalidInput)
	}
	if method != domain.PaymentMomo {
		momoRef = ""
	}

	return domain.SaleRecord{
		ProductID:      productID,
		Quantity:       quantity,
		UnitPriceCents: unitPriceCents,
		TotalCents:     int64(quantity) * unitPriceCents,
		PaymentMethod:  method,
		MomoRef:        momoRef,
		Customer:       strings.TrimSpace(customer),
	}, nil
}

func (s *Service) invalidateSummary(ctx context.Context) {
	if err := s.summaries.Invalidate(ctx); err != nil {
		log.Printf("[service] WARN: summary cache invalidation failed: %v", err)
	}
}

func (s *Service) publish(ctx context.Context, kind string, entityID string, amountCents int64, detail string) {
	err := s.journal.Publish(ctx, domain.LedgerEvent{
		ID:          xid.New("evt"),
		Kind:        kind,
		EntityID:    entityID,
		AmountCents: amountCents,
		Detail:      detail,
		OccurredAt:  time.Now().UTC(),
	})
	if err != nil {
		log.Printf("[service] WARN: failed to publish %s event for %s: %v", kind, entityID, err)
	}
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, _ := ActorFromContext(ctx)
	err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		log.Printf("[service] WARN: failed to write audit log action=%s entity=%s: %v", action, entityID, err)
	}
}
