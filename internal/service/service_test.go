package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"gasshop/backend/internal/domain"
	"gasshop/backend/internal/store"
	"gasshop/backend/internal/store/memory"
)

type recordingCache struct {
	mu          sync.Mutex
	summary     *domain.Summary
	invalidated int
}

func (c *recordingCache) Get(_ context.Context) (*domain.Summary, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.summary == nil {
		return nil, false, nil
	}
	copySummary := *c.summary
	return &copySummary, true, nil
}

func (c *recordingCache) Set(_ context.Context, summary *domain.Summary) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	copySummary := *summary
	c.summary = &copySummary
	return nil
}

func (c *recordingCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summary = nil
	c.invalidated++
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.LedgerEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, event := range p.events {
		out = append(out, event.Kind)
	}
	return out
}

func ownerCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "owner", Role: domain.RoleOwner})
}

func clerkCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "clerk", Role: domain.RoleClerk})
}

func newTestService() (*Service, *recordingCache, *recordingPublisher) {
	cacheStub := &recordingCache{}
	publisher := &recordingPublisher{}
	svc := New(memory.NewSeeded(), cacheStub, publisher)
	return svc, cacheStub, publisher
}

func TestSaleLifecycleRestoresStock(t *testing.T) {
	svc, _, publisher := newTestService()
	ctx := ownerCtx()

	product, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{
		ID: "cylinder-mini", Name: "Mini Cylinder", UnitPriceCents: 1200, StartingStock: 10,
	})
	if err != nil {
		t.Fatalf("create product failed: %v", err)
	}

	sale, err := svc.RecordSale(ctx, domain.SaleCreateRequest{
		ProductID: product.ID, Quantity: 3, UnitPriceCents: 1200, PaymentMethod: domain.PaymentCash,
	})
	if err != nil {
		t.Fatalf("record sale failed: %v", err)
	}
	if qty, _ := svc.CurrentStock(ctx, product.ID); qty != 7 {
		t.Fatalf("expected stock 7 after selling 3 of 10, got %d", qty)
	}

	if _, err := svc.EditSale(ctx, sale.ID, domain.SaleUpdateRequest{
		ProductID: product.ID, Quantity: 5, UnitPriceCents: 1200, PaymentMethod: domain.PaymentCash,
	}); err != nil {
		t.Fatalf("edit sale failed: %v", err)
	}
	if qty, _ := svc.CurrentStock(ctx, product.ID); qty != 5 {
		t.Fatalf("expected stock 5 after raising quantity to 5, got %d", qty)
	}

	if err := svc.DeleteSale(ctx, sale.ID); err != nil {
		t.Fatalf("delete sale failed: %v", err)
	}
	if qty, _ := svc.CurrentStock(ctx, product.ID); qty != 10 {
		t.Fatalf("expected stock restored to 10, got %d", qty)
	}

	cash, _ := svc.ListCashEntries(ctx)
	if len(cash) != 0 {
		t.Fatalf("expected empty cash ledger after delete, got %d entries", len(cash))
	}

	wantKinds := []string{domain.EventSaleRecorded, domain.EventSaleEdited, domain.EventSaleDeleted}
	gotKinds := publisher.kinds()
	if len(gotKinds) != len(wantKinds) {
		t.Fatalf("expected %d journal events, got %v", len(wantKinds), gotKinds)
	}
	for i, want := range wantKinds {
		if gotKinds[i] != want {
			t.Fatalf("event %d: expected %s, got %s", i, want, gotKinds[i])
		}
	}
}

func TestRecordSaleRejectsBadInput(t *testing.T) {
	svc, _, publisher := newTestService()
	ctx := clerkCtx()

	cases := []domain.SaleCreateRequest{
		{ProductID: "cylinder-standard", Quantity: 0, UnitPriceCents: 2500, PaymentMethod: domain.PaymentCash},
		{ProductID: "cylinder-standard", Quantity: 1, UnitPriceCents: 0, PaymentMethod: domain.PaymentCash},
		{ProductID: "cylinder-standard", Quantity: 1, UnitPriceCents: 2500, PaymentMethod: "card"},
		{ProductID: "cylinder-standard", Quantity: 1, UnitPriceCents: 2500, PaymentMethod: domain.PaymentMomo},
	}
	for i, req := range cases {
		if _, err := svc.RecordSale(ctx, req); !errors.Is(err, store.ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}

	if len(publisher.kinds()) != 0 {
		t.Fatalf("rejected sales must not publish events, got %v", publisher.kinds())
	}
}

func TestSummaryCacheInvalidatedOnMutation(t *testing.T) {
	svc, cacheStub, _ := newTestService()
	ctx := clerkCtx()

	first, err := svc.Summary(ctx)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if cacheStub.summary == nil {
		t.Fatalf("expected summary to be cached after first read")
	}

	if _, err := svc.RecordSale(ctx, domain.SaleCreateRequest{
		ProductID: "cylinder-standard", Quantity: 2, UnitPriceCents: 2500, PaymentMethod: domain.PaymentCash,
	}); err != nil {
		t.Fatalf("record sale failed: %v", err)
	}
	if cacheStub.invalidated == 0 {
		t.Fatalf("expected cache invalidation after mutation")
	}

	second, err := svc.Summary(ctx)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if second.TotalSalesCents != first.TotalSalesCents+5000 {
		t.Fatalf("expected fresh summary after mutation, got %+v", second)
	}
	if second.TotalCashCents+second.TotalMomoCents != second.TotalSalesCents {
		t.Fatalf("cash + momo must equal sales: %+v", second)
	}
}

func TestOwnerOnlyOperationsRejectClerk(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := clerkCtx()

	if _, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{ID: "x", Name: "X", UnitPriceCents: 1}); err == nil {
		t.Fatalf("expected clerk product creation to be rejected")
	}
	if _, err := svc.AddStock(ctx, domain.StockIntakeRequest{ProductID: "cylinder-standard", Quantity: 5}); err == nil {
		t.Fatalf("expected clerk stock intake to be rejected")
	}
	if _, err := svc.RecordWithdrawal(ctx, domain.WithdrawalCreateRequest{Category: "bank", AmountCents: 100}); err == nil {
		t.Fatalf("expected clerk withdrawal to be rejected")
	}
	if _, err := svc.ExportSnapshot(ctx); err == nil {
		t.Fatalf("expected clerk snapshot export to be rejected")
	}
	if _, err := svc.ListAuditLogs(ctx, 10); err == nil {
		t.Fatalf("expected clerk audit log access to be rejected")
	}
}

func TestWithdrawalLifecycle(t *testing.T) {
	svc, _, publisher := newTestService()
	ctx := ownerCtx()

	created, err := svc.RecordWithdrawal(ctx, domain.WithdrawalCreateRequest{
		Category: "Bank", AmountCents: 5000, Note: "weekly deposit",
	})
	if err != nil {
		t.Fatalf("record withdrawal failed: %v", err)
	}
	if created.Category != "bank" {
		t.Fatalf("expected normalized category bank, got %q", created.Category)
	}

	updated, err := svc.EditWithdrawal(ctx, created.ID, domain.WithdrawalUpdateRequest{
		Category: "personal", AmountCents: 4500,
	})
	if err != nil {
		t.Fatalf("edit withdrawal failed: %v", err)
	}
	if !updated.RecordedAt.Equal(created.RecordedAt) {
		t.Fatalf("edit must preserve the original timestamp")
	}

	if err := svc.DeleteWithdrawal(ctx, created.ID); err != nil {
		t.Fatalf("delete withdrawal failed: %v", err)
	}
	withdrawals, _ := svc.ListWithdrawals(ctx)
	if len(withdrawals) != 0 {
		t.Fatalf("expected no withdrawals after delete, got %d", len(withdrawals))
	}

	wantKinds := []string{domain.EventWithdrawalRecorded, domain.EventWithdrawalEdited, domain.EventWithdrawalDeleted}
	gotKinds := publisher.kinds()
	if len(gotKinds) != len(wantKinds) {
		t.Fatalf("expected %d events, got %v", len(wantKinds), gotKinds)
	}
}

func TestAuditTrailRecordsMutations(t *testing.T) {
	svc, _, _ := newTestService()

	if _, err := svc.RecordSale(clerkCtx(), domain.SaleCreateRequest{
		ProductID: "cylinder-standard", Quantity: 1, UnitPriceCents: 2500, PaymentMethod: domain.PaymentCash,
	}); err != nil {
		t.Fatalf("record sale failed: %v", err)
	}

	logs, err := svc.ListAuditLogs(ownerCtx(), 10)
	if err != nil {
		t.Fatalf("list audit logs failed: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(logs))
	}
	if logs[0].Action != "sale_record" || logs[0].ActorUsername != "clerk" {
		t.Fatalf("unexpected audit entry %+v", logs[0])
	}
}
