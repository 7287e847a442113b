package models

import (
	"encoding/base64"
	"fmt"
	"slices"
	"strings"
	"time"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"

	StatusActive   = "active"
	StatusDisabled = "disabled"

	ProviderBasic  = "basic"
	ProviderGoogle = "google"
)

// RatingKey derives the stable key a user's ratings are stored under: the unpadded base64url encoding of id, or
// "user" when that is empty.
func RatingKey(id string) string {
	if key := base64.RawURLEncoding.EncodeToString([]byte(id)); key != "" {
		return key
	}
	return "user"
}

// User is someone who rates catalog entries, identified by an email or username.
type User struct {
	id           string
	sequence     int
	email        string
	role         string
	status       string
	authProvider string
	ratingKey    string
	createdAt    time.Time
	updatedAt    time.Time
	lastSeenAt   *time.Time
}

// NewUser creates an active user with the default role. Google users are addressed by email, so their id doubles as
// the email.
func NewUser(id, authProvider string) *User {
	now := time.Now()
	u := &User{
		id:           strings.TrimSpace(id),
		role:         RoleUser,
		status:       StatusActive,
		authProvider: authProvider,
		createdAt:    now,
		updatedAt:    now,
	}
	if u.authProvider == "" {
		u.authProvider = ProviderBasic
	}
	if u.authProvider == ProviderGoogle || strings.Contains(u.id, "@") {
		u.email = u.id
	}
	u.ratingKey = RatingKey(u.id)
	return u
}

func (u *User) ID() string { return u.id }
func (u *User) Sequence() int { return u.sequence }
func (u *User) Email() string { return u.email }
func (u *User) Role() string { return u.role }
func (u *User) Status() string { return u.status }
func (u *User) AuthProvider() string { return u.authProvider }
func (u *User) RatingKey() string { return u.ratingKey }
func (u *User) CreatedAt() time.Time { return u.createdAt }
func (u *User) UpdatedAt() time.Time { return u.updatedAt }
func (u *User) LastSeenAt() *time.Time { return u.lastSeenAt }
func (u *User) IsAdmin() bool { return u.role == RoleAdmin }
func (u *User) IsActive() bool { return u.status == StatusActive }

func (u *User) SetSequence(seq int) { u.sequence = seq }
func (u *User) SetEmail(email string) { u.email = email }
func (u *User) SetRole(role string) { u.role = role }
func (u *User) SetStatus(status string) { u.status = status }
func (u *User) SetAuthProvider(p string) { u.authProvider = p }
func (u *User) SetCreatedAt(t time.Time) { u.createdAt = t }
func (u *User) SetUpdatedAt(t time.Time) { u.updatedAt = t }
func (u *User) SetLastSeenAt(t *time.Time) { u.lastSeenAt = t }

// SetRatingKey keeps a previously assigned key. Keys never change once ratings reference them.
func (u *User) SetRatingKey(key string) {
	if key != "" {
		u.ratingKey = key
	}
}

// Validate checks the enumerated fields.
func (u *User) Validate() error {
	if u.id == "" {
		return fmt.Errorf("user id is required")
	}
	if !slices.Contains([]string{RoleAdmin, RoleUser}, u.role) {
		return fmt.Errorf("invalid role %q", u.role)
	}
	if !slices.Contains([]string{StatusActive, StatusDisabled}, u.status) {
		return fmt.Errorf("invalid status %q", u.status)
	}
	if !slices.Contains([]string{ProviderBasic, ProviderGoogle}, u.authProvider) {
		return fmt.Errorf("invalid auth provider %q", u.authProvider)
	}
	return nil
}

// IsProtected reports whether u may not be deleted by caller: the configured admin, any admin, and the caller
// themselves are protected.
func (u *User) IsProtected(adminID, callerID string) bool {
	return u.IsAdmin() || (adminID != "" && u.id == adminID) || (callerID != "" && u.id == callerID)
}
