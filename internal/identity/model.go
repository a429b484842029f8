package identity

import (
	"strings"
	"time"
)

// User is the canonical identity record. Every identity origin reconciles into
// this table; email is the join key when no external provider id is present.
type User struct {
	ID                  string     `gorm:"column:id;primaryKey;size:36"`
	ExternalID          *string    `gorm:"column:external_id;size:190;uniqueIndex"`
	Email               string     `gorm:"column:email;size:320;uniqueIndex;not null"`
	FirstName           string     `gorm:"column:first_name;size:190"`
	LastName            string     `gorm:"column:last_name;size:190"`
	AvatarURL           string     `gorm:"column:avatar_url;size:512"`
	PasswordHash        *string    `gorm:"column:password_hash;size:120"`
	MagicToken          *string    `gorm:"column:magic_token;size:128;index"`
	MagicTokenExpiresAt *time.Time `gorm:"column:magic_token_expires_at"`
	CreatedAt           time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing canonical users.
func (User) TableName() string {
	return "users"
}

// Profile extends User with mutable preference and contact fields. A missing
// row is a valid state and reads as all defaults.
type Profile struct {
	UserID            string     `gorm:"column:user_id;primaryKey;size:36"`
	User              *User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Phone             string     `gorm:"column:phone;size:32"`
	DateOfBirth       *time.Time `gorm:"column:date_of_birth"`
	Bio               string     `gorm:"column:bio;size:1000"`
	NewsletterOptIn   bool       `gorm:"column:newsletter_opt_in;not null;default:false"`
	PromotionalOptIn  bool       `gorm:"column:promotional_opt_in;not null;default:false"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Profile) TableName() string {
	return "profiles"
}

// AddressType distinguishes shipping from billing addresses.
type AddressType string

const (
	AddressTypeShipping AddressType = "shipping"
	AddressTypeBilling  AddressType = "billing"
)

// Address belongs to a User. At most one default per (user, type) holds at any
// time, enforced by a demote-then-promote write sequence.
type Address struct {
	ID         string      `gorm:"column:id;primaryKey;size:36"`
	UserID     string      `gorm:"column:user_id;size:36;not null;index"`
	User       *User       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Type       AddressType `gorm:"column:type;size:16;not null"`
	Line1      string      `gorm:"column:line1;size:255;not null"`
	Line2      string      `gorm:"column:line2;size:255"`
	City       string      `gorm:"column:city;size:120"`
	Region     string      `gorm:"column:region;size:120"`
	PostalCode string      `gorm:"column:postal_code;size:32"`
	Country    string      `gorm:"column:country;size:120"`
	IsDefault  bool        `gorm:"column:is_default;not null;default:false"`
	CreatedAt  time.Time   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time   `gorm:"column:updated_at;autoUpdateTime"`
}

func (Address) TableName() string {
	return "addresses"
}

// NormalizeEmail lowercases and trims an email so the unique index is
// case-insensitive regardless of the backing store's collation.
func NormalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}
