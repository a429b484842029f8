package commerce

import (
	"context"
	"testing"

	"github.com/harborline/storefront/internal/identity"
)

// Removing a user must take every piece of commerce state with it; nothing
// orphaned survives under a recycled email.
func TestUserDeletionCascadesCommerceState(t *testing.T) {
	db := openTestDB(t)
	service := mustCommerce(t, db, fixtureCatalog())
	userID := seedUser(t, db, "cascade@example.com")

	if err := service.SeedDefaultWishlist(db, userID); err != nil {
		t.Fatalf("wishlist seed failed: %v", err)
	}
	if err := service.AddLine(context.Background(), userID, "lamp", 2); err != nil {
		t.Fatalf("cart add failed: %v", err)
	}
	if err := service.AddFavorite(context.Background(), userID, "mug"); err != nil {
		t.Fatalf("favorite add failed: %v", err)
	}
	if _, err := service.CreateReview(context.Background(), userID, "rug", validReview(3)); err != nil {
		t.Fatalf("review create failed: %v", err)
	}

	if err := db.Where("id = ?", userID).Delete(&identity.User{}).Error; err != nil {
		t.Fatalf("user delete failed: %v", err)
	}

	for _, model := range []interface{}{&CartLine{}, &Favorite{}, &Review{}, &Wishlist{}} {
		if got := countRows(t, db, model); got != 0 {
			t.Fatalf("expected %T rows to cascade away, got %d", model, got)
		}
	}
}
