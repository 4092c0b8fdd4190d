package pricing_test

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/jonesrussell/north-cloud/pricewatch/internal/domain"
	"github.com/jonesrussell/north-cloud/pricewatch/internal/pricing"
)

// memoryStore is a transactional in-memory product store. Writes are staged
// and only become visible when the transaction function returns nil.
type memoryStore struct {
	mu          sync.Mutex
	products    map[int64]domain.Product
	adjustments []domain.PriceAdjustmentRecord
	failInsert  error
}

func newMemoryStore(products ...domain.Product) *memoryStore {
	s := &memoryStore{products: make(map[int64]domain.Product)}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *memoryStore) product(id int64) domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id]
}

func (s *memoryStore) WithProductTx(ctx context.Context, fn func(context.Context, pricing.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{store: s, staged: make(map[int64]domain.Product)}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	for id, p := range tx.staged {
		s.products[id] = p
	}
	s.adjustments = append(s.adjustments, tx.adjustments...)
	return nil
}

type memoryTx struct {
	store       *memoryStore
	staged      map[int64]domain.Product
	adjustments []domain.PriceAdjustmentRecord
}

func (tx *memoryTx) current(id int64) (domain.Product, bool) {
	if p, ok := tx.staged[id]; ok {
		return p, true
	}
	p, ok := tx.store.products[id]
	return p, ok
}

func (tx *memoryTx) LockProduct(_ context.Context, id int64) (*domain.Product, error) {
	p, ok := tx.current(id)
	if !ok {
		return nil, pricing.ErrProductNotFound
	}
	return &p, nil
}

func (tx *memoryTx) UpdateSourcingPrice(_ context.Context, id, version int64, sourcing decimal.Decimal) error {
	p, _ := tx.current(id)
	if p.Version != version {
		return pricing.ErrVersionConflict
	}
	p.SourcingPrice = decimal.NewNullDecimal(sourcing)
	p.Version++
	tx.staged[id] = p
	return nil
}

func (tx *memoryTx) UpdatePricing(_ context.Context, u pricing.PriceUpdate) error {
	p, _ := tx.current(u.ProductID)
	if p.Version != u.ExpectedVersion {
		return pricing.ErrVersionConflict
	}
	p.SourcingPrice = decimal.NewNullDecimal(u.SourcingPrice)
	p.SellingPrice = u.SellingPrice
	p.IsActive = u.IsActive
	p.Version++
	tx.staged[u.ProductID] = p
	return nil
}

func (tx *memoryTx) InsertPriceAdjustment(_ context.Context, rec *domain.PriceAdjustmentRecord) error {
	if tx.store.failInsert != nil {
		return tx.store.failInsert
	}
	tx.adjustments = append(tx.adjustments, *rec)
	return nil
}
