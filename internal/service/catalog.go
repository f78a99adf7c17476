package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/safar/order-engine/internal/apperr"
	"github.com/safar/order-engine/internal/database"
	"github.com/safar/order-engine/internal/models"
	"github.com/safar/order-engine/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ProductInput struct {
	Name  string
	Price decimal.Decimal
	Stock int
}

// CatalogService handles direct catalog edits. These bypass the ledger and
// are not constrained by outstanding carts or orders.
type CatalogService struct {
	deps Deps
}

func NewCatalogService(deps Deps) *CatalogService {
	return &CatalogService{deps: deps.withDefaults()}
}

func (s *CatalogService) List(ctx context.Context, filter store.ProductFilter) ([]models.Product, error) {
	return store.ListProducts(ctx, s.deps.DB, filter)
}

func (s *CatalogService) Get(ctx context.Context, id int64) (*models.Product, error) {
	return s.deps.Cache.GetProduct(ctx, id, func(ctx context.Context) (*models.Product, error) {
		return store.GetProduct(ctx, s.deps.DB, id)
	})
}

func (s *CatalogService) Create(ctx context.Context, in ProductInput) (*models.Product, error) {
	p, err := models.NewProduct(in.Name, in.Price, in.Stock)
	if err != nil {
		return nil, err
	}

	product, err := store.CreateProduct(ctx, s.deps.DB, p)
	if err != nil {
		return nil, database.TranslateError(err)
	}

	s.deps.Cache.Invalidate(ctx, product.ID)
	s.deps.Logger.Info("product created", zap.Int64("product_id", product.ID))
	return product, nil
}

func (s *CatalogService) Update(ctx context.Context, id int64, in ProductInput) (*models.Product, error) {
	p, err := models.NewProduct(in.Name, in.Price, in.Stock)
	if err != nil {
		return nil, err
	}

	product, err := store.UpdateProduct(ctx, s.deps.DB, id, p)
	if err != nil {
		return nil, database.TranslateError(err)
	}

	s.deps.Cache.Invalidate(ctx, id)
	s.deps.Logger.Info("product updated", zap.Int64("product_id", id), zap.Int("stock", product.Stock))
	return product, nil
}

// Delete refuses to remove a product still referenced by order items.
func (s *CatalogService) Delete(ctx context.Context, id int64) error {
	err := database.TranslateError(store.DeleteProduct(ctx, s.deps.DB, id))
	if errors.Is(err, apperr.ErrConflict) {
		return &apperr.Error{
			Kind:    apperr.KindConflict,
			Message: fmt.Sprintf("product %d is referenced by existing orders", id),
			Details: apperr.Details{Entity: "product", ID: id},
			Err:     err,
		}
	}
	if err != nil {
		return err
	}

	s.deps.Cache.Invalidate(ctx, id)
	s.deps.Logger.Info("product deleted", zap.Int64("product_id", id))
	return nil
}
