package model

import (
	"time"

	"github.com/iliyamo/library-seat-reservation/internal/engine"
)

// Administrative roles.  A user without one is an ordinary patron.
const (
	AdminRoleAdmin     = "admin"
	AdminRoleAssistant = "assistant"
)

// JWTRole is the role claim carried in access tokens.  Admins and
// assistants are identified by their admin role, patrons by their booking
// role.
func (u User) JWTRole() string {
	if u.AdminRole != nil && *u.AdminRole != "" {
		return *u.AdminRole
	}
	return string(u.UserRole)
}

// User represents a row of the `users` table.
//
// Fields:
//
//	ID           – users.id (uuid).
//	Email        – unique, lower-cased.
//	PasswordHash – bcrypt hash.
//	Name, Phone  – contact details, optional.
//	IDCard       – library card number used at the front desk, unique when set.
//	UserRole     – student or outsider, selects the advance-booking limit.
//	AdminRole    – admin or assistant, nil for patrons.
//	Points       – accumulated violation points.
//	BannedUntil  – reservations are refused until this instant.
//	BanReason    – why the ban was issued.
//	IsActive     – soft delete switch.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         *string
	Phone        *string
	IDCard       *string
	UserRole     engine.Role
	AdminRole    *string
	Points       int
	BannedUntil  *time.Time
	BanReason    *string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin reports whether the user holds any administrative role.
func (u User) IsAdmin() bool { return u.AdminRole != nil && *u.AdminRole != "" }

// IsBanned reports whether the user is banned at now.
func (u User) IsBanned(now time.Time) bool {
	return u.BannedUntil != nil && now.Before(*u.BannedUntil)
}

// Summary strips credentials for API responses.
func (u User) Summary() UserSummary {
	return UserSummary{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Phone:       u.Phone,
		IDCard:      u.IDCard,
		UserRole:    string(u.UserRole),
		AdminRole:   u.AdminRole,
		Points:      u.Points,
		BannedUntil: u.BannedUntil,
		BanReason:   u.BanReason,
	}
}

// UserSummary is the public view of a user.
type UserSummary struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Name        *string    `json:"name,omitempty"`
	Phone       *string    `json:"phone,omitempty"`
	IDCard      *string    `json:"id_card,omitempty"`
	UserRole    string     `json:"user_role"`
	AdminRole   *string    `json:"admin_role,omitempty"`
	Points      int        `json:"points"`
	BannedUntil *time.Time `json:"banned_until,omitempty"`
	BanReason   *string    `json:"ban_reason,omitempty"`
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of the token is stored.
type RefreshToken struct {
	ID        uint64
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// ValidAdminRole reports whether role can be granted.
func ValidAdminRole(role string) bool {
	return role == AdminRoleAdmin || role == AdminRoleAssistant
}

// UserFilter narrows the staff user listing.  Query matches a substring of
// the email, name or library card; zero values mean "no constraint".
type UserFilter struct {
	Query    string
	UserRole string
	Limit    int
	Offset   int
}

// UserListing is a user as staff see it in the listing.  IsIn is true while
// the user is checked in to a running reservation and not on leave.
type UserListing struct {
	UserSummary
	IsIn bool `json:"is_in"`
}
