package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"shoporders/internal/models"
)

type ShopRepo struct {
	db *sql.DB
}

func NewShopRepo(db *sql.DB) *ShopRepo {
	return &ShopRepo{db: db}
}

// IsMember reports whether userID owns shopID.
func (r *ShopRepo) IsMember(ctx context.Context, shopID, userID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM shops WHERE id = $1 AND owner_id = $2)`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, shopID, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("check shop membership: %w", err)
	}
	return ok, nil
}

func (r *ShopRepo) FindByID(ctx context.Context, id int64) (models.Shop, bool, error) {
	const query = `SELECT id, name, owner_id, created_at FROM shops WHERE id = $1`

	var s models.Shop
	err := r.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.Name, &s.OwnerID, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Shop{}, false, nil
	}
	if err != nil {
		return models.Shop{}, false, fmt.Errorf("find shop %d: %w", id, err)
	}
	return s, true, nil
}

// MemoryShopRepo is the in-process counterpart of ShopRepo.
type MemoryShopRepo struct {
	mu    sync.RWMutex
	shops map[int64]models.Shop
}

func NewMemoryShopRepo(shops ...models.Shop) *MemoryShopRepo {
	r := &MemoryShopRepo{shops: make(map[int64]models.Shop)}
	for _, s := range shops {
		r.shops[s.ID] = s
	}
	return r
}

func (r *MemoryShopRepo) Put(s models.Shop) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shops[s.ID] = s
}

func (r *MemoryShopRepo) IsMember(_ context.Context, shopID, userID int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.shops[shopID]
	return ok && s.OwnerID == userID, nil
}

func (r *MemoryShopRepo) FindByID(_ context.Context, id int64) (models.Shop, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.shops[id]
	return s, ok, nil
}
