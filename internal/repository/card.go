package repository

import (
	"context"

	"crabber/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CardRepository stores link preview cards.
type CardRepository interface {
	FindOrCreate(ctx context.Context, url string) (*models.Card, error)
	Pending(ctx context.Context) ([]*models.Card, error)
	SaveResults(ctx context.Context, cards []*models.Card) error
	Reset(ctx context.Context, url string) error
}

type cardRepository struct {
	db *gorm.DB
}

// NewCardRepository creates a new card repository
func NewCardRepository(db *gorm.DB) CardRepository {
	return &cardRepository{db: db}
}

// FindOrCreate returns the single card for url, creating a pending one if needed.
func (r *cardRepository) FindOrCreate(ctx context.Context, url string) (*models.Card, error) {
	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.Card{URL: url}).Error; err != nil {
		return nil, err
	}
	var card models.Card
	if err := db.Where("url = ?", url).First(&card).Error; err != nil {
		return nil, err
	}
	return &card, nil
}

// Pending lists cards that have been neither filled in nor marked failed.
func (r *cardRepository) Pending(ctx context.Context) ([]*models.Card, error) {
	var cards []*models.Card
	err := r.db.WithContext(ctx).
		Where("ready = ? AND failed = ?", false, false).
		Order("id").
		Find(&cards).Error
	return cards, err
}

// SaveResults commits every fetched card in a single transaction.
func (r *cardRepository) SaveResults(ctx context.Context, cards []*models.Card) error {
	if len(cards) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, card := range cards {
			err := tx.Model(card).
				Select("Title", "Description", "Image", "Ready", "Failed", "FetchedAt").
				Updates(card).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Reset makes a card eligible for fetching again.
func (r *cardRepository) Reset(ctx context.Context, url string) error {
	res := r.db.WithContext(ctx).Model(&models.Card{}).
		Where("url = ?", url).
		Updates(map[string]interface{}{"ready": false, "failed": false})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Card", url)
	}
	return nil
}
