package model

import "time"

// PasswordResetToken is a single-use credential bound to one email.
// ExpiresAt is always stored and compared in UTC.
type PasswordResetToken struct {
	Token     string
	Email     string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// Usable reports whether the token can still be redeemed at now.
func (t *PasswordResetToken) Usable(now time.Time) bool {
	return !t.Used && now.UTC().Before(t.ExpiresAt.UTC())
}
