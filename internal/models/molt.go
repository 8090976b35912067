package models

import "time"

// Molt is a post. A molt with ParentID is a reply, with QuotedID a quote
// and with RemoltOfID a repost of another molt.
type Molt struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	AuthorID   uint      `gorm:"not null;index" json:"author_id"`
	Content    string    `gorm:"type:text;not null;default:''" json:"content"`
	ParentID   *uint     `gorm:"index" json:"parent_id,omitempty"`
	QuotedID   *uint     `gorm:"index" json:"quoted_id,omitempty"`
	RemoltOfID *uint     `gorm:"index" json:"remolt_of_id,omitempty"`
	ImageURL   string    `json:"image_url,omitempty"`
	CardID     *uint     `gorm:"index" json:"card_id,omitempty"`
	Deleted    bool      `gorm:"not null;default:false;index" json:"-"`
	Edited     bool      `gorm:"not null;default:false" json:"edited"`
	CreatedAt  time.Time `gorm:"index" json:"timestamp"`
	UpdatedAt  time.Time `json:"-"`

	Author   *Crab `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Parent   *Molt `gorm:"foreignKey:ParentID" json:"parent,omitempty"`
	Quoted   *Molt `gorm:"foreignKey:QuotedID" json:"quoted,omitempty"`
	RemoltOf *Molt `gorm:"foreignKey:RemoltOfID" json:"remolt_of,omitempty"`
	Card     *Card `gorm:"foreignKey:CardID" json:"card,omitempty"`

	LikeCount  int  `gorm:"->;-:migration" json:"like_count"`
	ReplyCount int  `gorm:"->;-:migration" json:"reply_count"`
	Liked      bool `gorm:"->;-:migration" json:"liked"`
	Bookmarked bool `gorm:"->;-:migration" json:"bookmarked"`

	// Unavailable marks a tombstone standing in for a molt the viewer may not see.
	Unavailable bool `gorm:"-" json:"unavailable,omitempty"`
}

// TableName specifies the table name for GORM.
func (Molt) TableName() string {
	return "molts"
}

func (m *Molt) IsReply() bool  { return m.ParentID != nil }
func (m *Molt) IsQuote() bool  { return m.QuotedID != nil }
func (m *Molt) IsRemolt() bool { return m.RemoltOfID != nil }

// Tombstone returns the placeholder rendered in place of an invisible molt.
func Tombstone(id uint) *Molt {
	return &Molt{ID: id, Unavailable: true}
}

// MoltAncestor is one row of the reply-chain closure table: AncestorID is
// Depth levels above MoltID.
type MoltAncestor struct {
	MoltID     uint `gorm:"primaryKey;autoIncrement:false"`
	AncestorID uint `gorm:"primaryKey;autoIncrement:false;index"`
	Depth      int  `gorm:"not null"`
}

// TableName specifies the table name for GORM.
func (MoltAncestor) TableName() string {
	return "molt_ancestors"
}

// Crabtag is a normalised topic label written as %name in molt content.
type Crabtag struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:64;uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"-"`
}

// TableName specifies the table name for GORM.
func (Crabtag) TableName() string {
	return "crabtags"
}

// MoltTag links a molt to a crabtag.
type MoltTag struct {
	MoltID    uint `gorm:"primaryKey;autoIncrement:false"`
	CrabtagID uint `gorm:"primaryKey;autoIncrement:false;index"`
}

// TableName specifies the table name for GORM.
func (MoltTag) TableName() string {
	return "molt_crabtags"
}

// MoltMention links a molt to a crab it mentions.
type MoltMention struct {
	MoltID uint `gorm:"primaryKey;autoIncrement:false"`
	CrabID uint `gorm:"primaryKey;autoIncrement:false;index"`
}

// TableName specifies the table name for GORM.
func (MoltMention) TableName() string {
	return "molt_mentions"
}
