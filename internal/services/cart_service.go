package services

import (
	"context"

	"checkout-service/internal/domain"
	"checkout-service/internal/repository"

	"github.com/shopspring/decimal"
)

type CartService struct {
	carts    repository.CartRepository
	products repository.ProductRepository
}

func NewCartService(carts repository.CartRepository, products repository.ProductRepository) *CartService {
	return &CartService{carts: carts, products: products}
}

// GetCart returns the user's lines with their product snapshots and the
// running total priced at effective unit prices.
func (s *CartService) GetCart(ctx context.Context, userID uint64) ([]domain.CartItem, decimal.Decimal, error) {
	items, err := s.carts.FindByUser(ctx, userID)
	if err != nil {
		return nil, decimal.Zero, err
	}

	total := decimal.Zero
	for i := range items {
		total = total.Add(items[i].Product.EffectivePrice().Mul(decimal.NewFromInt(items[i].Quantity)))
	}
	return items, total, nil
}

// AddItem adds a product to the cart, merging into an existing line.
// The stock check covers the merged quantity, not just the increment.
func (s *CartService) AddItem(ctx context.Context, userID, productID uint64, quantity int64) (*domain.CartItem, error) {
	if quantity < 1 {
		quantity = 1
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrProductNotFound
	}
	if !product.IsActive {
		return nil, &domain.ProductUnavailableError{Name: product.Name}
	}

	item, err := s.carts.FindItem(ctx, userID, productID)
	if err != nil {
		return nil, err
	}

	newQuantity := quantity
	if item != nil {
		newQuantity += item.Quantity
	}
	if product.StockQuantity < newQuantity {
		return nil, &domain.InsufficientStockError{Name: product.Name}
	}

	if item == nil {
		item = &domain.CartItem{
			UserID:    userID,
			ProductID: productID,
		}
	}
	item.Quantity = newQuantity

	if err := s.carts.Save(ctx, item); err != nil {
		return nil, err
	}
	item.Product = *product
	return item, nil
}
