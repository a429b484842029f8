package commerce

import (
	"fmt"
	"strings"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/harborline/storefront/internal/catalog"
	"github.com/harborline/storefront/internal/identity"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}
	if err := db.AutoMigrate(&identity.User{}, &identity.Profile{}, &Wishlist{}, &CartLine{}, &Favorite{}, &Review{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

func fixtureCatalog() *catalog.FixtureClient {
	return catalog.NewFixtureClient(
		catalog.Product{ID: "lamp", Name: "Harbor Lamp", Price: 39.50, Category: "lighting"},
		catalog.Product{ID: "rug", Name: "Deck Rug", Price: 120.00, Category: "textiles"},
		catalog.Product{ID: "mug", Name: "Enamel Mug", Price: 14.25, Category: "kitchen"},
	)
}

func mustCommerce(t *testing.T, db *gorm.DB, fixtures catalog.Client) *Service {
	t.Helper()
	service, err := NewService(ServiceConfig{Database: db, Catalog: fixtures})
	if err != nil {
		t.Fatalf("failed to create commerce service: %v", err)
	}
	return service
}

func seedUser(t *testing.T, db *gorm.DB, email string) string {
	t.Helper()
	user := identity.User{ID: uuid.NewString(), Email: email}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user.ID
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var count int64
	if err := db.Model(model).Count(&count).Error; err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	return count
}
