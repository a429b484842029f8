package identity

import (
	"context"
	"testing"

	"gorm.io/gorm"
)

func TestReconcileCreatesUserWithProfile(t *testing.T) {
	db := openTestDB(t)
	service := mustService(t, db)

	user, err := service.Reconcile(context.Background(), Event{
		Origin:     OriginWebhook,
		ExternalID: "ext-1",
		Email:      "Shopper@Example.com",
		GivenName:  "Avery",
		FamilyName: "Quinn",
		AvatarURL:  "https://img.example.com/a.png",
	})
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if user.Email != "shopper@example.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	if user.ExternalID == nil || *user.ExternalID != "ext-1" {
		t.Fatalf("expected external id to be linked, got %#v", user.ExternalID)
	}

	var profile Profile
	if err := db.Where("user_id = ?", user.ID).Take(&profile).Error; err != nil {
		t.Fatalf("expected default profile to exist: %v", err)
	}
	if profile.NewsletterOptIn || profile.PromotionalOptIn {
		t.Fatalf("expected opt-ins to default to false")
	}
}

func TestReconcileSameExternalIDYieldsOneUser(t *testing.T) {
	db := openTestDB(t)
	service := mustService(t, db)

	first := Event{Origin: OriginWebhook, ExternalID: "ext-9", Email: "a@example.com", GivenName: "First"}
	second := Event{Origin: OriginWebhook, ExternalID: "ext-9", Email: "a@example.com", GivenName: "Second", AvatarURL: "https://img/x.png"}

	if _, err := service.Reconcile(context.Background(), first); err != nil {
		t.Fatalf("first reconcile failed: %v", err)
	}
	user, err := service.Reconcile(context.Background(), second)
	if err != nil {
		t.Fatalf("second reconcile failed: %v", err)
	}

	if got := countUsers(t, db); got != 1 {
		t.Fatalf("expected exactly one user row, got %d", got)
	}
	if user.FirstName != "Second" {
		t.Fatalf("expected mutable fields to reflect latest event, got %q", user.FirstName)
	}
	if user.AvatarURL != "https://img/x.png" {
		t.Fatalf("expected avatar to update, got %q", user.AvatarURL)
	}
}

func TestReconcileLinksExternalIDByEmail(t *testing.T) {
	db := openTestDB(t)
	service := mustService(t, db)

	// Credentials-origin account first, no external id.
	created, err := service.Reconcile(context.Background(), Event{Origin: OriginCredentials, Email: "link@example.com"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	linked, err := service.Reconcile(context.Background(), Event{
		Origin:     OriginOAuth,
		ExternalID: "oauth-77",
		Email:      "link@example.com",
		GivenName:  "Linked",
	})
	if err != nil {
		t.Fatalf("link failed: %v", err)
	}

	if linked.ID != created.ID {
		t.Fatalf("expected the existing user to be linked, got new id %q", linked.ID)
	}
	if linked.ExternalID == nil || *linked.ExternalID != "oauth-77" {
		t.Fatalf("expected external id to link on first write, got %#v", linked.ExternalID)
	}
	if got := countUsers(t, db); got != 1 {
		t.Fatalf("expected exactly one user row, got %d", got)
	}
}

func TestReconcileKeepsFirstLinkedExternalID(t *testing.T) {
	db := openTestDB(t)
	service := mustService(t, db)

	if _, err := service.Reconcile(context.Background(), Event{Origin: OriginOAuth, ExternalID: "winner", Email: "race@example.com"}); err != nil {
		t.Fatalf("first link failed: %v", err)
	}
	user, err := service.Reconcile(context.Background(), Event{Origin: OriginWebhook, ExternalID: "loser", Email: "race@example.com"})
	if err != nil {
		t.Fatalf("second reconcile failed: %v", err)
	}
	if user.ExternalID == nil || *user.ExternalID != "winner" {
		t.Fatalf("expected first writer to keep the link, got %#v", user.ExternalID)
	}
}

func TestLinkExternalIDGuardsAgainstStaleReads(t *testing.T) {
	db := openTestDB(t)
	service := mustService(t, db)

	created, err := service.Reconcile(context.Background(), Event{Origin: OriginCredentials, Email: "stale@example.com"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Another transaction commits its link after our snapshot read the column
	// as unlinked but before our write lands.
	if err := db.Model(&User{}).Where("id = ?", created.ID).Update("external_id", "winner").Error; err != nil {
		t.Fatalf("failed to simulate interleaved link: %v", err)
	}

	stale := created
	if stale.ExternalID != nil {
		t.Fatalf("precondition: snapshot must still read as unlinked")
	}
	if err := service.linkExternalID(db, &stale, "loser"); err != nil {
		t.Fatalf("guarded link failed: %v", err)
	}
	if stale.ExternalID == nil || *stale.ExternalID != "winner" {
		t.Fatalf("expected the established link to survive and surface, got %#v", stale.ExternalID)
	}

	var stored User
	if err := db.Where("id = ?", created.ID).Take(&stored).Error; err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if stored.ExternalID == nil || *stored.ExternalID != "winner" {
		t.Fatalf("expected first writer to keep the stored link, got %#v", stored.ExternalID)
	}
}

func TestReconcileNeverTouchesEmailOnUpdate(t *testing.T) {
	db := openTestDB(t)
	service := mustService(t, db)

	if _, err := service.Reconcile(context.Background(), Event{Origin: OriginWebhook, ExternalID: "ext-m", Email: "original@example.com"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	user, err := service.Reconcile(context.Background(), Event{Origin: OriginWebhook, ExternalID: "ext-m", Email: "changed@example.com", GivenName: "New"})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if user.Email != "original@example.com" {
		t.Fatalf("expected email to stay untouched on update, got %q", user.Email)
	}
	if user.FirstName != "New" {
		t.Fatalf("expected mutable field update, got %q", user.FirstName)
	}
}

func TestReconcileRejectsUnusableEmail(t *testing.T) {
	db := openTestDB(t)
	service := mustService(t, db)

	if _, err := service.Reconcile(context.Background(), Event{Origin: OriginWebhook, ExternalID: "x", Email: "not-an-email"}); err != ErrInvalidEvent {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
}

func TestReconcileRunsCreationHookOnce(t *testing.T) {
	db := openTestDB(t)

	var hookRuns int
	service, err := NewService(ServiceConfig{
		Database: db,
		OnCreate: func(tx *gorm.DB, user *User) error {
			hookRuns++
			return nil
		},
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	event := Event{Origin: OriginWebhook, ExternalID: "hooked", Email: "hook@example.com"}
	if _, err := service.Reconcile(context.Background(), event); err != nil {
		t.Fatalf("first reconcile failed: %v", err)
	}
	if _, err := service.Reconcile(context.Background(), event); err != nil {
		t.Fatalf("second reconcile failed: %v", err)
	}
	if hookRuns != 1 {
		t.Fatalf("expected creation hook to run exactly once, ran %d times", hookRuns)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	service := mustService(t, db)

	if _, err := service.Reconcile(context.Background(), Event{Origin: OriginWebhook, ExternalID: "gone", Email: "gone@example.com"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := service.Remove(context.Background(), "gone"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if err := service.Remove(context.Background(), "gone"); err != nil {
		t.Fatalf("second remove should be success, got %v", err)
	}
	if err := service.Remove(context.Background(), "never-existed"); err != nil {
		t.Fatalf("removing an unknown id should be success, got %v", err)
	}
	if got := countUsers(t, db); got != 0 {
		t.Fatalf("expected no users after removal, got %d", got)
	}
}

func TestDeleteThenRedeliveredCreateMakesFreshUser(t *testing.T) {
	db := openTestDB(t)
	service := mustService(t, db)

	event := Event{Origin: OriginWebhook, ExternalID: "cycle", Email: "cycle@example.com"}
	original, err := service.Reconcile(context.Background(), event)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := service.Remove(context.Background(), "cycle"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	recreated, err := service.Reconcile(context.Background(), event)
	if err != nil {
		t.Fatalf("redelivered create failed: %v", err)
	}
	if recreated.ID == original.ID {
		t.Fatalf("deletion must be terminal; expected a fresh internal id")
	}
}
