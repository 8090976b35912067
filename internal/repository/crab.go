// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"
	"strings"

	"crabber/internal/models"

	"gorm.io/gorm"
)

// CrabRepository defines the interface for crab data operations
type CrabRepository interface {
	Create(ctx context.Context, crab *models.Crab) error
	GetByID(ctx context.Context, id uint) (*models.Crab, error)
	GetByUsername(ctx context.Context, username string) (*models.Crab, error)
	GetByEmail(ctx context.Context, email string) (*models.Crab, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
	ActiveIDsByUsernames(ctx context.Context, usernames []string) ([]uint, error)
	UpdateProfile(ctx context.Context, crab *models.Crab) error
	SetStatus(ctx context.Context, id uint, status models.AccountStatus) error
	SetPreferences(ctx context.Context, id uint, prefs map[string]bool) error
	ListByStatus(ctx context.Context, status models.AccountStatus) ([]*models.Crab, error)
}

type crabRepository struct {
	db *gorm.DB
}

// NewCrabRepository creates a new crab repository
func NewCrabRepository(db *gorm.DB) CrabRepository {
	return &crabRepository{db: db}
}

func (r *crabRepository) Create(ctx context.Context, crab *models.Crab) error {
	err := r.db.WithContext(ctx).Create(crab).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return models.NewValidationError("username or email is already taken")
	}
	return err
}

func (r *crabRepository) GetByID(ctx context.Context, id uint) (*models.Crab, error) {
	var crab models.Crab
	err := r.db.WithContext(ctx).First(&crab, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("Crab", id)
	}
	if err != nil {
		return nil, err
	}
	return &crab, nil
}

// GetByUsername matches case-insensitively and ignores account status.
func (r *crabRepository) GetByUsername(ctx context.Context, username string) (*models.Crab, error) {
	var crab models.Crab
	err := r.db.WithContext(ctx).
		Where("LOWER(username) = ?", strings.ToLower(username)).
		First(&crab).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("Crab", username)
	}
	if err != nil {
		return nil, err
	}
	return &crab, nil
}

func (r *crabRepository) GetByEmail(ctx context.Context, email string) (*models.Crab, error) {
	var crab models.Crab
	err := r.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&crab).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("Crab", email)
	}
	if err != nil {
		return nil, err
	}
	return &crab, nil
}

func (r *crabRepository) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Crab{}).
		Where("LOWER(username) = ?", strings.ToLower(username)).
		Count(&count).Error
	return count > 0, err
}

func (r *crabRepository) EmailTaken(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Crab{}).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		Count(&count).Error
	return count > 0, err
}

// ActiveIDsByUsernames resolves mention targets. Unknown and inactive names are dropped.
func (r *crabRepository) ActiveIDsByUsernames(ctx context.Context, usernames []string) ([]uint, error) {
	if len(usernames) == 0 {
		return nil, nil
	}
	lowered := make([]string, len(usernames))
	for i, u := range usernames {
		lowered[i] = strings.ToLower(u)
	}

	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Crab{}).
		Where("LOWER(username) IN ? AND status = ?", lowered, models.StatusActive).
		Order("id").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *crabRepository) UpdateProfile(ctx context.Context, crab *models.Crab) error {
	return r.db.WithContext(ctx).Model(crab).
		Select("DisplayName", "Description", "Location", "Avatar").
		Updates(crab).Error
}

func (r *crabRepository) SetStatus(ctx context.Context, id uint, status models.AccountStatus) error {
	res := r.db.WithContext(ctx).Model(&models.Crab{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Crab", id)
	}
	return nil
}

func (r *crabRepository) SetPreferences(ctx context.Context, id uint, prefs map[string]bool) error {
	crab := &models.Crab{ID: id}
	return r.db.WithContext(ctx).Model(crab).
		Select("Preferences").
		Updates(&models.Crab{Preferences: prefs}).Error
}

func (r *crabRepository) ListByStatus(ctx context.Context, status models.AccountStatus) ([]*models.Crab, error) {
	var crabs []*models.Crab
	err := r.db.WithContext(ctx).Where("status = ?", status).Order("username").Find(&crabs).Error
	return crabs, err
}
