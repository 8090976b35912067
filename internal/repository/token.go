package repository

import (
	"context"
	"errors"

	"crabber/internal/models"

	"gorm.io/gorm"
)

// TokenRepository stores developer keys and API access tokens.
type TokenRepository interface {
	CreateDeveloperKey(ctx context.Context, key *models.DeveloperKey) error
	ListDeveloperKeys(ctx context.Context, crabID uint) ([]*models.DeveloperKey, error)
	DeleteDeveloperKey(ctx context.Context, crabID, id uint) error
	CreateAccessToken(ctx context.Context, token *models.AccessToken) error
	ListAccessTokens(ctx context.Context, crabID uint) ([]*models.AccessToken, error)
	DeleteAccessToken(ctx context.Context, crabID, id uint) error
	CrabByAccessToken(ctx context.Context, key string) (*models.Crab, error)
}

type tokenRepository struct {
	db *gorm.DB
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) CreateDeveloperKey(ctx context.Context, key *models.DeveloperKey) error {
	return r.db.WithContext(ctx).Create(key).Error
}

func (r *tokenRepository) ListDeveloperKeys(ctx context.Context, crabID uint) ([]*models.DeveloperKey, error) {
	var keys []*models.DeveloperKey
	err := r.db.WithContext(ctx).
		Where("crab_id = ? AND deleted = ?", crabID, false).
		Order("created_at, id").
		Find(&keys).Error
	return keys, err
}

func (r *tokenRepository) DeleteDeveloperKey(ctx context.Context, crabID, id uint) error {
	res := r.db.WithContext(ctx).Model(&models.DeveloperKey{}).
		Where("id = ? AND crab_id = ? AND deleted = ?", id, crabID, false).
		Update("deleted", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Developer key", id)
	}
	return nil
}

func (r *tokenRepository) CreateAccessToken(ctx context.Context, token *models.AccessToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

func (r *tokenRepository) ListAccessTokens(ctx context.Context, crabID uint) ([]*models.AccessToken, error) {
	var tokens []*models.AccessToken
	err := r.db.WithContext(ctx).
		Where("crab_id = ? AND deleted = ?", crabID, false).
		Order("created_at, id").
		Find(&tokens).Error
	return tokens, err
}

func (r *tokenRepository) DeleteAccessToken(ctx context.Context, crabID, id uint) error {
	res := r.db.WithContext(ctx).Model(&models.AccessToken{}).
		Where("id = ? AND crab_id = ? AND deleted = ?", id, crabID, false).
		Update("deleted", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Access token", id)
	}
	return nil
}

// CrabByAccessToken resolves the owner of a live token.
func (r *tokenRepository) CrabByAccessToken(ctx context.Context, key string) (*models.Crab, error) {
	var crab models.Crab
	err := r.db.WithContext(ctx).
		Joins("JOIN access_tokens ON access_tokens.crab_id = crabs.id").
		Where("access_tokens.key = ? AND access_tokens.deleted = ?", key, false).
		First(&crab).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewUnauthorizedError("invalid access token")
	}
	if err != nil {
		return nil, err
	}
	return &crab, nil
}
