package commerce

import (
	"context"
	"errors"

	"github.com/harborline/storefront/internal/catalog"
	"go.uber.org/zap"
	"gorm.io/gorm/clause"
)

// AddFavorite marks the product as favorited. Adding an existing favorite is
// a silent success; the unique index plus DO NOTHING keeps it to one row even
// under concurrent adds.
func (s *Service) AddFavorite(ctx context.Context, userID, productID string) error {
	if _, err := s.lookupProduct(ctx, productID); err != nil {
		return err
	}

	favorite := Favorite{UserID: userID, ProductID: productID}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
		DoNothing: true,
	}).Create(&favorite).Error
}

// RemoveFavorite unmarks the product. Removing an absent favorite is success.
func (s *Service) RemoveFavorite(ctx context.Context, userID, productID string) error {
	return s.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&Favorite{}).Error
}

// ToggleFavorite flips the favorite state and reports the resulting state.
func (s *Service) ToggleFavorite(ctx context.Context, userID, productID string) (bool, error) {
	if _, err := s.lookupProduct(ctx, productID); err != nil {
		return false, err
	}

	favorite := Favorite{UserID: userID, ProductID: productID}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
		DoNothing: true,
	}).Create(&favorite)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil
	}
	return false, s.RemoveFavorite(ctx, userID, productID)
}

// Favorites returns the favorited product set joined with current catalog
// data, dropping products that no longer exist.
func (s *Service) Favorites(ctx context.Context, userID string) ([]catalog.Product, error) {
	var favorites []Favorite
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&favorites).Error
	if err != nil {
		return nil, err
	}

	products := make([]catalog.Product, 0, len(favorites))
	for _, favorite := range favorites {
		product, err := s.catalog.Product(ctx, favorite.ProductID)
		if errors.Is(err, catalog.ErrProductNotFound) {
			s.logger.Debug("dropping favorite for vanished product",
				zap.String("user_id", userID),
				zap.String("product_id", favorite.ProductID))
			continue
		}
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, nil
}
