package models

import "time"

// AccountStatus is the single lifecycle state of a crab account.
type AccountStatus string

const (
	StatusActive  AccountStatus = "active"
	StatusDeleted AccountStatus = "deleted"
	StatusBanned  AccountStatus = "banned"
)

// Valid reports whether s is one of the known states.
func (s AccountStatus) Valid() bool {
	switch s {
	case StatusActive, StatusDeleted, StatusBanned:
		return true
	}
	return false
}

// Preference keys understood by the settings endpoint.
const (
	PrefSpookyMode    = "spooky_mode"
	PrefLightMode     = "light_mode"
	PrefDyslexicMode  = "dyslexic_mode"
	PrefComicSansMode = "comicsans_mode"
)

// KnownPreferences lists the preference keys a crab may set.
var KnownPreferences = []string{PrefSpookyMode, PrefLightMode, PrefDyslexicMode, PrefComicSansMode}

// Crab is a user account.
type Crab struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Username     string          `gorm:"size:32;uniqueIndex;not null" json:"username"`
	DisplayName  string          `gorm:"size:64;not null" json:"display_name"`
	Email        string          `gorm:"size:255;uniqueIndex;not null" json:"-"`
	PasswordHash string          `gorm:"not null" json:"-"`
	Description  string          `gorm:"type:text" json:"description"`
	Location     string          `gorm:"size:64" json:"location,omitempty"`
	Avatar       string          `json:"avatar,omitempty"`
	Verified     bool            `gorm:"not null;default:false" json:"verified"`
	Status       AccountStatus   `gorm:"type:varchar(16);not null;default:'active';index" json:"-"`
	Preferences  map[string]bool `gorm:"serializer:json;type:text" json:"-"`
	CreatedAt    time.Time       `gorm:"index" json:"register_time"`
	UpdatedAt    time.Time       `json:"-"`

	FollowerCount  int `gorm:"->;-:migration" json:"follower_count"`
	FollowingCount int `gorm:"->;-:migration" json:"following_count"`
}

// TableName specifies the table name for GORM.
func (Crab) TableName() string {
	return "crabs"
}

// Active reports whether the account is neither deleted nor banned.
func (c *Crab) Active() bool {
	return c.Status == StatusActive
}

// Preference returns the stored value for key, or fallback when unset.
func (c *Crab) Preference(key string, fallback bool) bool {
	if v, ok := c.Preferences[key]; ok {
		return v
	}
	return fallback
}
