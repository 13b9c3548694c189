package accounts

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Account is the authenticated identity that owns a set of applications.
type Account struct {
	ID                string                      `gorm:"column:id;primaryKey;size:64;not null" json:"id"`
	Name              string                      `gorm:"column:name;size:320;not null" json:"name"`
	Email             string                      `gorm:"column:email;size:320;not null;uniqueIndex" json:"email"`
	PasswordHash      string                      `gorm:"column:password_hash;size:128;not null" json:"-"`
	SuggestedEmails   datatypes.JSONSlice[string] `gorm:"column:suggested_emails;type:text;not null" json:"suggestedEmails"`
	CreatedAt         time.Time                   `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	PasswordUpdatedAt time.Time                   `gorm:"column:password_updated_at;not null" json:"passwordUpdatedAt"`
	UpdatedAt         time.Time                   `gorm:"column:updated_at;autoUpdateTime" json:"-"`
}

// TableName exposes the table backing accounts.
func (Account) TableName() string {
	return "accounts"
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// withSuggestedEmail appends email unless it is already present.
func withSuggestedEmail(existing []string, email string) ([]string, bool) {
	for _, candidate := range existing {
		if candidate == email {
			return existing, false
		}
	}
	return append(append([]string(nil), existing...), email), true
}
