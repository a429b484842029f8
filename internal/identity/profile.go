package identity

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileUpdate carries the profile fields being written. Nil fields are left
// untouched.
type ProfileUpdate struct {
	Phone            *string
	DateOfBirth      *time.Time
	Bio              *string
	NewsletterOptIn  *bool
	PromotionalOptIn *bool
}

// ProfileFor returns the user's profile, reading a missing row as all
// defaults rather than an error.
func (s *Service) ProfileFor(ctx context.Context, userID string) (Profile, error) {
	var profile Profile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Profile{UserID: userID}, nil
	}
	if err != nil {
		return Profile{}, err
	}
	return profile, nil
}

// UpdateProfile writes the provided fields, creating the profile row lazily on
// first write. The upsert is a single ON CONFLICT statement keyed by user_id.
func (s *Service) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (Profile, error) {
	assignments := map[string]interface{}{}
	profile := Profile{UserID: userID}
	if update.Phone != nil {
		profile.Phone = normalize(*update.Phone)
		assignments["phone"] = profile.Phone
	}
	if update.DateOfBirth != nil {
		profile.DateOfBirth = update.DateOfBirth
		assignments["date_of_birth"] = *update.DateOfBirth
	}
	if update.Bio != nil {
		profile.Bio = *update.Bio
		assignments["bio"] = profile.Bio
	}
	if update.NewsletterOptIn != nil {
		profile.NewsletterOptIn = *update.NewsletterOptIn
		assignments["newsletter_opt_in"] = profile.NewsletterOptIn
	}
	if update.PromotionalOptIn != nil {
		profile.PromotionalOptIn = *update.PromotionalOptIn
		assignments["promotional_opt_in"] = profile.PromotionalOptIn
	}
	if len(assignments) == 0 {
		return s.ProfileFor(ctx, userID)
	}
	assignments["updated_at"] = s.clock().UTC()

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(&profile).Error
	if err != nil {
		return Profile{}, err
	}
	return s.ProfileFor(ctx, userID)
}
