package commerce

import (
	"context"
	"errors"

	"github.com/harborline/storefront/internal/catalog"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartLineView is a cart line joined with current catalog display data.
type CartLineView struct {
	ProductID string          `json:"product_id"`
	Product   catalog.Product `json:"product"`
	Quantity  int             `json:"quantity"`
	Subtotal  float64         `json:"subtotal"`
}

// CartView is the materialized cart for one user. The total is recomputed
// from current rows on every read; nothing derived is persisted.
type CartView struct {
	Lines []CartLineView `json:"lines"`
	Total float64        `json:"total"`
}

// AddLine adds qty of a product to the user's cart. An existing line for the
// same product has its quantity incremented instead, via a single
// constraint-backed upsert so concurrent adds cannot lose updates.
func (s *Service) AddLine(ctx context.Context, userID, productID string, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if _, err := s.lookupProduct(ctx, productID); err != nil {
		return err
	}

	line := CartLine{UserID: userID, ProductID: productID, Quantity: qty}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   gorm.Expr("quantity + ?", qty),
			"updated_at": s.clock().UTC(),
		}),
	}).Create(&line).Error
}

// SetQuantity pins the line to an exact quantity. A non-positive quantity
// removes the line; that is the defined behavior, not an error.
func (s *Service) SetQuantity(ctx context.Context, userID, productID string, qty int) error {
	if qty <= 0 {
		return s.RemoveLine(ctx, userID, productID)
	}

	line := CartLine{UserID: userID, ProductID: productID, Quantity: qty}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   qty,
			"updated_at": s.clock().UTC(),
		}),
	}).Create(&line).Error
}

// RemoveLine deletes the line for (user, product). Removing an absent line is
// success.
func (s *Service) RemoveLine(ctx context.Context, userID, productID string) error {
	return s.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&CartLine{}).Error
}

// Clear deletes every cart line belonging to the user.
func (s *Service) Clear(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&CartLine{}).Error
}

// Cart returns the user's lines joined with current catalog data. A line
// whose product has vanished from the catalog is dropped from the result, not
// surfaced as an error.
func (s *Service) Cart(ctx context.Context, userID string) (CartView, error) {
	var lines []CartLine
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&lines).Error
	if err != nil {
		return CartView{}, err
	}

	view := CartView{Lines: make([]CartLineView, 0, len(lines))}
	for _, line := range lines {
		product, err := s.catalog.Product(ctx, line.ProductID)
		if errors.Is(err, catalog.ErrProductNotFound) {
			s.logger.Debug("dropping cart line for vanished product",
				zap.String("user_id", userID),
				zap.String("product_id", line.ProductID))
			continue
		}
		if err != nil {
			return CartView{}, err
		}
		subtotal := product.Price * float64(line.Quantity)
		view.Lines = append(view.Lines, CartLineView{
			ProductID: line.ProductID,
			Product:   product,
			Quantity:  line.Quantity,
			Subtotal:  subtotal,
		})
		view.Total += subtotal
	}
	return view, nil
}
