// Package model defines the data structures used throughout the application.
package model

import "time"

// Provider tags the identity source an account was created with, or most
// recently linked to.
type Provider string

const (
	ProviderEmail  Provider = "email"
	ProviderGoogle Provider = "google"
	ProviderApple  Provider = "apple"
)

// Valid reports whether p is one of the known providers.
func (p Provider) Valid() bool {
	switch p {
	case ProviderEmail, ProviderGoogle, ProviderApple:
		return true
	}
	return false
}

// Weight units accepted for User.WeightUnit.
const (
	WeightUnitKg  = "kg"
	WeightUnitLbs = "lbs"
)

// User is a local account.
//
// Email, PasswordHash and ProviderID are optional: an empty string is stored
// as NULL so the UNIQUE constraints on email and (provider, provider_id)
// only apply to accounts that actually carry a value. PasswordHash is empty
// for social-only accounts and is never serialized.
//
// The profile and goal fields are pointers because "unset" and zero are
// different answers for a nutrition target.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email,omitempty"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Provider     Provider  `json:"provider"`
	ProviderID   string    `json:"-"`
	BodyWeight   *float64  `json:"body_weight"`
	WeightUnit   string    `json:"weight_unit"`
	GoalCal      *int      `json:"goal_cal"`
	GoalProtein  *float64  `json:"goal_protein"`
	GoalCarbs    *float64  `json:"goal_carbs"`
	GoalFat      *float64  `json:"goal_fat"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasPassword reports whether the account can sign in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// ProfileUpdate is a partial update of the profile fields. Nil means
// "leave unchanged".
type ProfileUpdate struct {
	DisplayName *string
	BodyWeight  *float64
	WeightUnit  *string
	GoalCal     *int
	GoalProtein *float64
	GoalCarbs   *float64
	GoalFat     *float64
}

// Apply copies every non-nil field onto u.
func (p ProfileUpdate) Apply(u *User) {
	if p.DisplayName != nil {
		u.DisplayName = *p.DisplayName
	}
	if p.BodyWeight != nil {
		u.BodyWeight = p.BodyWeight
	}
	if p.WeightUnit != nil {
		u.WeightUnit = *p.WeightUnit
	}
	if p.GoalCal != nil {
		u.GoalCal = p.GoalCal
	}
	if p.GoalProtein != nil {
		u.GoalProtein = p.GoalProtein
	}
	if p.GoalCarbs != nil {
		u.GoalCarbs = p.GoalCarbs
	}
	if p.GoalFat != nil {
		u.GoalFat = p.GoalFat
	}
}
