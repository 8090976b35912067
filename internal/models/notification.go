package models

import "time"

// NotificationType enumerates the events that notify a crab.
type NotificationType string

const (
	NotificationReply   NotificationType = "reply"
	NotificationLike    NotificationType = "like"
	NotificationFollow  NotificationType = "follow"
	NotificationMention NotificationType = "mention"
)

// Notification tells RecipientID that ActorID did something. SourceKey
// identifies the triggering event so each event notifies at most once.
type Notification struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	RecipientID uint             `gorm:"not null;uniqueIndex:idx_notification_source;index:idx_notification_inbox" json:"recipient_id"`
	Type        NotificationType `gorm:"type:varchar(16);not null;uniqueIndex:idx_notification_source" json:"type"`
	SourceKey   string           `gorm:"size:64;not null;uniqueIndex:idx_notification_source" json:"-"`
	ActorID     uint             `gorm:"not null;index" json:"actor_id"`
	MoltID      *uint            `gorm:"index" json:"molt_id,omitempty"`
	Read        bool             `gorm:"not null;default:false;index:idx_notification_inbox" json:"read"`
	CreatedAt   time.Time        `gorm:"index" json:"timestamp"`

	Actor *Crab `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
	Molt  *Molt `gorm:"foreignKey:MoltID" json:"molt,omitempty"`
}

// TableName specifies the table name for GORM.
func (Notification) TableName() string {
	return "notifications"
}
