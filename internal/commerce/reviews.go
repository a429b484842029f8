package commerce

import (
	"context"
	"errors"
	"math"

	"gorm.io/gorm"
)

var (
	// ErrDuplicateReview indicates the user already reviewed the product.
	// The original review stays untouched; edits go through UpdateReview.
	ErrDuplicateReview = errors.New("commerce: review already exists for product")
	// ErrReviewNotFound indicates the review does not exist.
	ErrReviewNotFound = errors.New("commerce: review not found")
	// ErrNotReviewOwner indicates the review belongs to another user.
	ErrNotReviewOwner = errors.New("commerce: review owned by another user")
	// ErrInvalidReview indicates an out-of-range rating or oversized text.
	ErrInvalidReview = errors.New("commerce: invalid review")
)

const (
	maxReviewTitleLength   = 120
	maxReviewCommentLength = 2000
)

// ReviewInput carries the writable review fields.
type ReviewInput struct {
	Rating   int
	Title    string
	Comment  string
	IsPublic bool
}

func (in ReviewInput) validate() error {
	if in.Rating < 1 || in.Rating > 5 {
		return ErrInvalidReview
	}
	if len(in.Title) > maxReviewTitleLength {
		return ErrInvalidReview
	}
	if in.Comment == "" || len(in.Comment) > maxReviewCommentLength {
		return ErrInvalidReview
	}
	return nil
}

// RatingSummary is the derived, non-persisted aggregate for one product.
type RatingSummary struct {
	Average float64 `json:"average"`
	Count   int64   `json:"count"`
}

// CreateReview stores the user's review of a product. A second submission for
// the same (user, product) fails with ErrDuplicateReview: the unique index
// rejects it, so two simultaneous submissions cannot both land.
func (s *Service) CreateReview(ctx context.Context, userID, productID string, in ReviewInput) (Review, error) {
	if err := in.validate(); err != nil {
		return Review{}, err
	}
	if _, err := s.lookupProduct(ctx, productID); err != nil {
		return Review{}, err
	}

	review := Review{
		UserID:    userID,
		ProductID: productID,
		Rating:    in.Rating,
		Title:     in.Title,
		Comment:   in.Comment,
		IsPublic:  in.IsPublic,
	}
	err := s.db.WithContext(ctx).Create(&review).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return Review{}, ErrDuplicateReview
	}
	if err != nil {
		return Review{}, err
	}
	return review, nil
}

// UpdateReview rewrites an owned review in place.
func (s *Service) UpdateReview(ctx context.Context, userID string, reviewID uint, in ReviewInput) (Review, error) {
	if err := in.validate(); err != nil {
		return Review{}, err
	}

	var updated Review
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		review, err := ownedReview(tx, userID, reviewID)
		if err != nil {
			return err
		}
		review.Rating = in.Rating
		review.Title = in.Title
		review.Comment = in.Comment
		review.IsPublic = in.IsPublic
		review.UpdatedAt = s.clock().UTC()
		updated = review
		return tx.Save(&updated).Error
	})
	if err != nil {
		return Review{}, err
	}
	return updated, nil
}

// DeleteReview removes an owned review. Absence fails loud: a delete of
// someone's explicit intent should never silently no-op.
func (s *Service) DeleteReview(ctx context.Context, userID string, reviewID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		review, err := ownedReview(tx, userID, reviewID)
		if err != nil {
			return err
		}
		return tx.Delete(&Review{}, "id = ?", review.ID).Error
	})
}

// PublicReviews lists the reviews rendered on a product page. Only public
// reviews appear here; private ones still count toward the aggregate.
func (s *Service) PublicReviews(ctx context.Context, productID string) ([]Review, error) {
	var reviews []Review
	err := s.db.WithContext(ctx).
		Where("product_id = ? AND is_public = ?", productID, true).
		Order("created_at DESC").
		Find(&reviews).Error
	if err != nil {
		return nil, err
	}
	return reviews, nil
}

// ReviewByUser returns the user's own review of a product, if any.
func (s *Service) ReviewByUser(ctx context.Context, userID, productID string) (Review, error) {
	var review Review
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Take(&review).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Review{}, ErrReviewNotFound
	}
	if err != nil {
		return Review{}, err
	}
	return review, nil
}

// ProductRating computes the aggregate rating for a product from current
// review rows: arithmetic mean of all ratings, public and private, rounded to
// one decimal, plus a count. Zero reviews yields 0 and 0.
func (s *Service) ProductRating(ctx context.Context, productID string) (RatingSummary, error) {
	var row struct {
		Average *float64
		Count   int64
	}
	err := s.db.WithContext(ctx).Model(&Review{}).
		Select("AVG(rating) AS average, COUNT(*) AS count").
		Where("product_id = ?", productID).
		Scan(&row).Error
	if err != nil {
		return RatingSummary{}, err
	}
	if row.Average == nil || row.Count == 0 {
		return RatingSummary{}, nil
	}
	return RatingSummary{
		Average: math.Round(*row.Average*10) / 10,
		Count:   row.Count,
	}, nil
}

func ownedReview(tx *gorm.DB, userID string, reviewID uint) (Review, error) {
	var review Review
	err := tx.Where("id = ?", reviewID).Take(&review).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Review{}, ErrReviewNotFound
	}
	if err != nil {
		return Review{}, err
	}
	if review.UserID != userID {
		return Review{}, ErrNotReviewOwner
	}
	return review, nil
}
