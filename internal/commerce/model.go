package commerce

import (
	"time"

	"github.com/harborline/storefront/internal/identity"
)

// CartLine is one product in a user's cart. A second add for the same product
// increments the existing line; the composite unique index keeps it to one row.
type CartLine struct {
	ID        uint           `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    string         `gorm:"column:user_id;size:36;not null;uniqueIndex:idx_cart_user_product"`
	User      *identity.User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	ProductID string         `gorm:"column:product_id;size:64;not null;uniqueIndex:idx_cart_user_product"`
	Quantity  int            `gorm:"column:quantity;not null;check:quantity > 0"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (CartLine) TableName() string {
	return "cart_lines"
}

// Favorite marks a product as favorited. Existence is the whole payload.
type Favorite struct {
	ID        uint           `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    string         `gorm:"column:user_id;size:36;not null;uniqueIndex:idx_favorite_user_product"`
	User      *identity.User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	ProductID string         `gorm:"column:product_id;size:64;not null;uniqueIndex:idx_favorite_user_product"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (Favorite) TableName() string {
	return "favorites"
}

// Review holds exactly one rating per (user, product). A second submission is
// rejected through the unique index, never merged.
type Review struct {
	ID        uint           `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    string         `gorm:"column:user_id;size:36;not null;uniqueIndex:idx_review_user_product"`
	User      *identity.User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	ProductID string         `gorm:"column:product_id;size:64;not null;uniqueIndex:idx_review_user_product"`
	Rating    int            `gorm:"column:rating;not null;check:rating >= 1 AND rating <= 5"`
	Title     string         `gorm:"column:title;size:120"`
	Comment   string         `gorm:"column:comment;size:2000;not null"`
	IsPublic  bool           `gorm:"column:is_public;not null;default:true"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (Review) TableName() string {
	return "reviews"
}

// Wishlist is the named container seeded on first user creation.
type Wishlist struct {
	ID        string         `gorm:"column:id;primaryKey;size:36"`
	UserID    string         `gorm:"column:user_id;size:36;not null;index"`
	User      *identity.User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Name      string         `gorm:"column:name;size:120;not null"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (Wishlist) TableName() string {
	return "wishlists"
}

// DefaultWishlistName is given to the wishlist seeded at account creation.
const DefaultWishlistName = "My wishlist"
