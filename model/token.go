package model

import "time"

// ApiToken status values. Don't use 0 as a meaningful value; it's the zero
// value gorm assigns to unset int columns.
const (
	TokenStatusEnabled  = 1
	TokenStatusDisabled = 2
	TokenStatusExpired  = 3
)

// ApiToken is a client credential (§3). QuotaLimit of 0 means unlimited.
// Admission checks the invariant `used_quota <= quota_limit` when QuotaLimit
// is set; once exceeded, Status transitions to TokenStatusDisabled on the
// next admission check performed by the management plane — this repo only
// reads the column and rejects with QuotaExceeded when it observes the
// invariant already violated.
type ApiToken struct {
	ID          int       `json:"id" gorm:"primaryKey"`
	Token       string    `json:"token" gorm:"type:char(48);uniqueIndex"`
	UserID      int       `json:"user_id" gorm:"index"`
	Status      int       `json:"status" gorm:"default:1"`
	QuotaLimit  int64     `json:"quota_limit" gorm:"bigint;default:0"`
	UsedQuota   int64     `json:"used_quota" gorm:"bigint;default:0"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (ApiToken) TableName() string { return "api_tokens" }

// QuotaExceeded reports whether t has a quota limit and has already consumed it.
func (t ApiToken) QuotaExceeded() bool {
	return t.QuotaLimit > 0 && t.UsedQuota >= t.QuotaLimit
}

// Enabled reports whether t may currently admit requests.
func (t ApiToken) Enabled() bool {
	return t.Status == TokenStatusEnabled && !t.QuotaExceeded()
}
