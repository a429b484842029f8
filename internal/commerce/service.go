package commerce

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/harborline/storefront/internal/catalog"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrInvalidQuantity indicates a non-positive quantity where a positive
	// one is required.
	ErrInvalidQuantity = errors.New("commerce: quantity must be positive")
	// ErrProductNotFound indicates the referenced catalog product is absent.
	ErrProductNotFound = errors.New("commerce: product not found")

	errMissingDatabase = errors.New("commerce: database handle is required")
	errMissingCatalog  = errors.New("commerce: catalog client is required")
	noOpLogger         = zap.NewNop()
)

// ServiceConfig describes the dependencies of the commerce-state service.
type ServiceConfig struct {
	Database *gorm.DB
	Catalog  catalog.Client
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service maintains per-user commerce state: cart lines, favorites, reviews
// and wishlists. Operations take an explicit resolved user id; no ambient
// session state is consulted below the handler layer.
type Service struct {
	db      *gorm.DB
	catalog catalog.Client
	clock   func() time.Time
	logger  *zap.Logger
}

// NewService constructs the commerce-state service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.Catalog == nil {
		return nil, errMissingCatalog
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:      cfg.Database,
		catalog: cfg.Catalog,
		clock:   clock,
		logger:  logger,
	}, nil
}

// SeedDefaultWishlist creates the default wishlist container inside the
// transaction that creates a canonical user. Wired as the identity
// reconciler's creation hook.
func (s *Service) SeedDefaultWishlist(tx *gorm.DB, userID string) error {
	return tx.Create(&Wishlist{
		ID:     uuid.NewString(),
		UserID: userID,
		Name:   DefaultWishlistName,
	}).Error
}

// Wishlists lists the user's wishlist containers.
func (s *Service) Wishlists(ctx context.Context, userID string) ([]Wishlist, error) {
	var wishlists []Wishlist
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&wishlists).Error
	if err != nil {
		return nil, err
	}
	return wishlists, nil
}

// lookupProduct maps the catalog collaborator's not-found outcome onto the
// commerce-level sentinel.
func (s *Service) lookupProduct(ctx context.Context, productID string) (catalog.Product, error) {
	product, err := s.catalog.Product(ctx, productID)
	if errors.Is(err, catalog.ErrProductNotFound) {
		return catalog.Product{}, ErrProductNotFound
	}
	if err != nil {
		return catalog.Product{}, err
	}
	return product, nil
}
