package models

import "time"

// DeveloperKey identifies a third-party application owned by a crab.
type DeveloperKey struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CrabID    uint      `gorm:"not null;index" json:"crab_id"`
	Key       string    `gorm:"size:64;uniqueIndex;not null" json:"key"`
	Deleted   bool      `gorm:"not null;default:false" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (DeveloperKey) TableName() string {
	return "developer_keys"
}

// AccessToken authenticates API calls on behalf of its owner.
type AccessToken struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CrabID    uint      `gorm:"not null;index" json:"crab_id"`
	Key       string    `gorm:"size:64;uniqueIndex;not null" json:"key"`
	Deleted   bool      `gorm:"not null;default:false" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (AccessToken) TableName() string {
	return "access_tokens"
}
