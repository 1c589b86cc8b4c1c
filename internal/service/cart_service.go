package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/cartstore"
	"storefront/internal/models"
	"storefront/internal/pricing"
	"storefront/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductLookup resolves cart product ids against the catalog.
type ProductLookup interface {
	ProductsByIDs(ctx context.Context, ids []string) (map[string]*models.Product, error)
}

// CartView is a cart joined with the catalog. Lines whose product no longer
// exists keep a nil Product and are left out of the totals.
type CartView struct {
	Items     []models.CartItem `json:"items"`
	ItemCount int               `json:"itemCount"`
	Subtotal  decimal.Decimal   `json:"subtotal"`
	Shipping  decimal.Decimal   `json:"shipping"`
}

// Empty reports whether the cart has no purchasable lines.
func (v *CartView) Empty() bool {
	return v.ItemCount == 0
}

// HasUnavailable reports whether any line lost its product.
func (v *CartView) HasUnavailable() bool {
	for _, item := range v.Items {
		if item.Product == nil {
			return true
		}
	}
	return false
}

// PricedLines returns pricing lines for the available items, in cart order.
func (v *CartView) PricedLines() []pricing.Line {
	lines := make([]pricing.Line, 0, len(v.Items))
	for _, item := range v.Items {
		if item.Product == nil {
			continue
		}
		lines = append(lines, pricing.Line{
			UnitPrice: item.Product.PriceFor(item.Weight),
			Quantity:  item.Quantity,
		})
	}
	return lines
}

// AddToCartRequest is the body of POST /api/cart.
type AddToCartRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Weight    string `json:"weight"`
}

// CartService manages the session cart.
type CartService struct {
	cart    cartstore.Store
	catalog ProductLookup
	logger  *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(cart cartstore.Store, catalog ProductLookup) *CartService {
	return &CartService{
		cart:    cart,
		catalog: catalog,
		logger:  util.GetLogger(),
	}
}

// View returns the session cart joined with current catalog prices.
func (s *CartService) View(ctx context.Context, sessionID string) (*CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.View")
	defer span.End()

	items, err := s.cart.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	products := map[string]*models.Product{}
	if len(ids) > 0 {
		products, err = s.catalog.ProductsByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("load cart products: %w", err)
		}
	}

	view := &CartView{Items: make([]models.CartItem, 0, len(items))}
	for _, item := range items {
		item.Product = products[item.ProductID]
		if item.Product == nil {
			s.logger.Warn("Cart line references missing product",
				zap.String("session_id", sessionID),
				zap.String("product_id", item.ProductID))
		}
		view.Items = append(view.Items, item)
	}

	view.Subtotal, view.ItemCount = pricing.Subtotal(view.PricedLines())
	view.Subtotal = view.Subtotal.Round(2)
	view.Shipping = pricing.ShippingFor(view.ItemCount)
	return view, nil
}

// Add puts a product in the cart, merging with an existing line of the same weight.
func (s *CartService) Add(ctx context.Context, sessionID string, req AddToCartRequest) (*models.CartItem, error) {
	ctx, span := util.StartSpan(ctx, "CartService.Add")
	defer span.End()

	req.ProductID = strings.TrimSpace(req.ProductID)
	req.Weight = strings.TrimSpace(req.Weight)
	if req.ProductID == "" {
		return nil, validationError("productId is required")
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 {
		return nil, validationError("quantity must be positive")
	}
	if req.Weight != "" && !validWeight(req.Weight) {
		return nil, validationError("unknown weight %q", req.Weight)
	}

	products, err := s.catalog.ProductsByIDs(ctx, []string{req.ProductID})
	if err != nil {
		return nil, fmt.Errorf("load product: %w", err)
	}
	product, ok := products[req.ProductID]
	if !ok {
		return nil, fmt.Errorf("%w: product %s", ErrNotFound, req.ProductID)
	}

	item, err := s.cart.Add(ctx, models.CartItem{
		SessionID: sessionID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Weight:    req.Weight,
	})
	if err != nil {
		return nil, fmt.Errorf("add to cart: %w", err)
	}
	util.CartMutationsTotal.WithLabelValues("add").Inc()

	item.Product = product
	return item, nil
}

// Update sets a line quantity; zero or less removes the line.
func (s *CartService) Update(ctx context.Context, sessionID string, id int64, qty int) (*models.CartItem, error) {
	item, err := s.cart.Update(ctx, sessionID, id, qty)
	if errors.Is(err, cartstore.ErrNotFound) {
		return nil, fmt.Errorf("%w: cart item %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("update cart: %w", err)
	}
	util.CartMutationsTotal.WithLabelValues("update").Inc()

	if item != nil {
		products, err := s.catalog.ProductsByIDs(ctx, []string{item.ProductID})
		if err == nil {
			item.Product = products[item.ProductID]
		}
	}
	return item, nil
}

// Remove deletes a line.
func (s *CartService) Remove(ctx context.Context, sessionID string, id int64) error {
	err := s.cart.Remove(ctx, sessionID, id)
	if errors.Is(err, cartstore.ErrNotFound) {
		return fmt.Errorf("%w: cart item %d", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("remove from cart: %w", err)
	}
	util.CartMutationsTotal.WithLabelValues("remove").Inc()
	return nil
}

// Clear empties the cart.
func (s *CartService) Clear(ctx context.Context, sessionID string) error {
	if err := s.cart.Clear(ctx, sessionID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	util.CartMutationsTotal.WithLabelValues("clear").Inc()
	return nil
}

func validWeight(w string) bool {
	for _, tier := range models.WeightTiers {
		if tier == w {
			return true
		}
	}
	return false
}
