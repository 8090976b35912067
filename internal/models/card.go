package models

import "time"

// DefaultCardImage is used when a page exposes neither an og:image nor an icon.
const DefaultCardImage = "/static/img/avatar.jpg"

// Card is a link preview filled in out of band by the card fetch worker.
type Card struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	URL         string     `gorm:"size:2048;uniqueIndex;not null" json:"url"`
	Title       string     `gorm:"type:text" json:"title,omitempty"`
	Description string     `gorm:"type:text" json:"description,omitempty"`
	Image       string     `gorm:"type:text" json:"image,omitempty"`
	Ready       bool       `gorm:"not null;default:false;index:idx_card_state" json:"ready"`
	Failed      bool       `gorm:"not null;default:false;index:idx_card_state" json:"failed"`
	FetchedAt   *time.Time `json:"fetched_at,omitempty"`
	CreatedAt   time.Time  `json:"-"`
	UpdatedAt   time.Time  `json:"-"`
}

// TableName specifies the table name for GORM.
func (Card) TableName() string {
	return "cards"
}

// Pending reports whether the card still awaits its single fetch attempt.
func (c *Card) Pending() bool {
	return !c.Ready && !c.Failed
}
