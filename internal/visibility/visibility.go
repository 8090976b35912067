// Package visibility decides which crabs and molts a viewer may see.
//
// Every read path applies the same rules, in this order:
//
//  1. content whose author is deleted or banned is hidden from everyone
//  2. deleted molts are hidden (aggregate counts may opt out with MoltsIncludingDeleted)
//  3. content authored by a crab in a block relation with the viewer is hidden,
//     whichever side created the block
//  4. a reply is hidden when any molt in its parent chain is authored by a
//     banned crab or by a crab in a block relation with the viewer
//
// Deleted parents do not hide their replies; the parent renders as a tombstone.
// The rules are expressed as GORM scopes so that counting and pagination
// happen in the database against the already-filtered set.
package visibility

import (
	"crabber/internal/models"

	"gorm.io/gorm"
)

// Viewer is the crab on whose behalf content is read. A nil Viewer is anonymous.
type Viewer struct {
	ID     uint
	Status models.AccountStatus
}

// NewViewer returns the viewer for c, or nil for a nil crab.
func NewViewer(c *models.Crab) *Viewer {
	if c == nil {
		return nil
	}
	return &Viewer{ID: c.ID, Status: c.Status}
}

// Anonymous reports whether no crab is signed in.
func (v *Viewer) Anonymous() bool {
	return v == nil || v.ID == 0
}

// CrabID returns the viewer's id, 0 when anonymous.
func (v *Viewer) CrabID() uint {
	if v.Anonymous() {
		return 0
	}
	return v.ID
}

const (
	blockedByViewer = "SELECT blocked_id FROM blocks WHERE blocker_id = ?"
	blockingViewer  = "SELECT blocker_id FROM blocks WHERE blocked_id = ?"

	moltAuthorActive = "EXISTS (SELECT 1 FROM crabs mc WHERE mc.id = molts.author_id AND mc.status = ?)"

	ancestorAuthorBanned = `NOT EXISTS (SELECT 1 FROM molt_ancestors ma
		JOIN molts am ON am.id = ma.ancestor_id
		JOIN crabs ac ON ac.id = am.author_id
		WHERE ma.molt_id = molts.id AND ac.status = ?)`

	ancestorAuthorBlocked = `NOT EXISTS (SELECT 1 FROM molt_ancestors ma
		JOIN molts am ON am.id = ma.ancestor_id
		WHERE ma.molt_id = molts.id AND (am.author_id IN (` + blockedByViewer + `) OR am.author_id IN (` + blockingViewer + `)))`
)

// Molts scopes a query over the molts table to what v may see.
func Molts(v *Viewer) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return moltRules(db, v).Where("molts.deleted = ?", false)
	}
}

// MoltsIncludingDeleted applies every rule except the deleted-molt rule.
// Only aggregate counts use it.
func MoltsIncludingDeleted(v *Viewer) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return moltRules(db, v)
	}
}

func moltRules(db *gorm.DB, v *Viewer) *gorm.DB {
	db = db.Where(moltAuthorActive, models.StatusActive).
		Where(ancestorAuthorBanned, models.StatusBanned)
	if v.Anonymous() {
		return db
	}
	return db.
		Where("molts.author_id NOT IN ("+blockedByViewer+")", v.ID).
		Where("molts.author_id NOT IN ("+blockingViewer+")", v.ID).
		Where(ancestorAuthorBlocked, v.ID, v.ID)
}

// Crabs scopes a query over the crabs table to the accounts v may see.
func Crabs(v *Viewer) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Where("crabs.status = ?", models.StatusActive)
		if v.Anonymous() {
			return db
		}
		return db.
			Where("crabs.id NOT IN ("+blockedByViewer+")", v.ID).
			Where("crabs.id NOT IN ("+blockingViewer+")", v.ID)
	}
}

// Blocked reports whether a block exists between a and b in either direction.
func Blocked(db *gorm.DB, a, b uint) (bool, error) {
	if a == 0 || b == 0 || a == b {
		return false, nil
	}
	var count int64
	err := db.Model(&models.Block{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", a, b, b, a).
		Count(&count).Error
	return count > 0, err
}
