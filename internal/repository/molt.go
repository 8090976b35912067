package repository

import (
	"context"
	"errors"

	"crabber/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MoltRepository defines the write side of molts. Reads that a viewer sees
// go through the feed engine so visibility is always applied.
type MoltRepository interface {
	Create(ctx context.Context, molt *models.Molt, tags []string, mentionIDs []uint) error
	GetByID(ctx context.Context, id uint) (*models.Molt, error)
	UpdateContent(ctx context.Context, molt *models.Molt, tags []string, mentionIDs []uint) error
	SoftDelete(ctx context.Context, id uint) error
	FindRemolt(ctx context.Context, crabID, originalID uint) (*models.Molt, error)
}

type moltRepository struct {
	db *gorm.DB
}

// NewMoltRepository creates a new molt repository
func NewMoltRepository(db *gorm.DB) MoltRepository {
	return &moltRepository{db: db}
}

// Create stores the molt with its crabtags and mentions. For replies it also
// records the full parent chain in molt_ancestors.
func (r *moltRepository) Create(ctx context.Context, molt *models.Molt, tags []string, mentionIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(molt).Error; err != nil {
			return err
		}
		if molt.ParentID != nil {
			if err := writeAncestors(tx, molt.ID, *molt.ParentID); err != nil {
				return err
			}
		}
		return writeLinks(tx, molt.ID, tags, mentionIDs)
	})
}

func writeAncestors(tx *gorm.DB, moltID, parentID uint) error {
	err := tx.Exec(`INSERT INTO molt_ancestors (molt_id, ancestor_id, depth)
		SELECT ?, ancestor_id, depth + 1 FROM molt_ancestors WHERE molt_id = ?`, moltID, parentID).Error
	if err != nil {
		return err
	}
	return tx.Create(&models.MoltAncestor{MoltID: moltID, AncestorID: parentID, Depth: 1}).Error
}

func writeLinks(tx *gorm.DB, moltID uint, tags []string, mentionIDs []uint) error {
	for _, name := range tags {
		tag := models.Crabtag{Name: name}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&tag).Error; err != nil {
			return err
		}
		if err := tx.Where("name = ?", name).First(&tag).Error; err != nil {
			return err
		}
		link := models.MoltTag{MoltID: moltID, CrabtagID: tag.ID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error; err != nil {
			return err
		}
	}
	for _, crabID := range mentionIDs {
		mention := models.MoltMention{MoltID: moltID, CrabID: crabID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&mention).Error; err != nil {
			return err
		}
	}
	return nil
}

// GetByID loads a molt regardless of its visibility, for ownership checks.
func (r *moltRepository) GetByID(ctx context.Context, id uint) (*models.Molt, error) {
	var molt models.Molt
	err := r.db.WithContext(ctx).Preload("Author").First(&molt, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("Molt", id)
	}
	if err != nil {
		return nil, err
	}
	return &molt, nil
}

// UpdateContent rewrites the text of an existing molt and replaces its links.
func (r *moltRepository) UpdateContent(ctx context.Context, molt *models.Molt, tags []string, mentionIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Molt{}).Where("id = ?", molt.ID).
			Updates(map[string]interface{}{"content": molt.Content, "edited": true}).Error
		if err != nil {
			return err
		}
		if err := tx.Where("molt_id = ?", molt.ID).Delete(&models.MoltTag{}).Error; err != nil {
			return err
		}
		if err := tx.Where("molt_id = ?", molt.ID).Delete(&models.MoltMention{}).Error; err != nil {
			return err
		}
		molt.Edited = true
		return writeLinks(tx, molt.ID, tags, mentionIDs)
	})
}

func (r *moltRepository) SoftDelete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.Molt{}).Where("id = ?", id).Update("deleted", true).Error
}

// FindRemolt returns the crab's live remolt of originalID, or nil.
func (r *moltRepository) FindRemolt(ctx context.Context, crabID, originalID uint) (*models.Molt, error) {
	var molt models.Molt
	err := r.db.WithContext(ctx).
		Where("author_id = ? AND remolt_of_id = ? AND deleted = ?", crabID, originalID, false).
		First(&molt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &molt, nil
}
