package models

import "time"

// Like records that a crab liked a molt. One row per pair.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CrabID    uint      `gorm:"not null;uniqueIndex:idx_like_pair" json:"crab_id"`
	MoltID    uint      `gorm:"not null;uniqueIndex:idx_like_pair;index" json:"molt_id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for GORM.
func (Like) TableName() string {
	return "likes"
}

// Follow is a directed follower -> followee edge.
type Follow struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	FollowerID uint      `gorm:"not null;uniqueIndex:idx_follow_pair" json:"follower_id"`
	FolloweeID uint      `gorm:"not null;uniqueIndex:idx_follow_pair;index" json:"followee_id"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for GORM.
func (Follow) TableName() string {
	return "follows"
}

// Block is directed in storage but symmetric in effect.
type Block struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BlockerID uint      `gorm:"not null;uniqueIndex:idx_block_pair" json:"blocker_id"`
	BlockedID uint      `gorm:"not null;uniqueIndex:idx_block_pair;index" json:"blocked_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (Block) TableName() string {
	return "blocks"
}

// Bookmark is a private saved molt.
type Bookmark struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CrabID    uint      `gorm:"not null;uniqueIndex:idx_bookmark_pair" json:"crab_id"`
	MoltID    uint      `gorm:"not null;uniqueIndex:idx_bookmark_pair;index" json:"molt_id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for GORM.
func (Bookmark) TableName() string {
	return "bookmarks"
}
