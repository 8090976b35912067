package service

import (
	"context"
	"fmt"

	"crabber/internal/models"
	"crabber/internal/repository"
	"crabber/internal/visibility"

	"github.com/google/uuid"
)

// DeveloperService issues developer keys and API access tokens, capped per crab.
type DeveloperService struct {
	tokens    repository.TokenRepository
	maxKeys   int
	maxTokens int
}

func NewDeveloperService(tokens repository.TokenRepository, maxKeys, maxTokens int) *DeveloperService {
	return &DeveloperService{tokens: tokens, maxKeys: maxKeys, maxTokens: maxTokens}
}

func (s *DeveloperService) CreateDeveloperKey(ctx context.Context, v *visibility.Viewer) (*models.DeveloperKey, error) {
	if err := requireViewer(v); err != nil {
		return nil, err
	}
	keys, err := s.tokens.ListDeveloperKeys(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	if len(keys) >= s.maxKeys {
		return nil, models.NewValidationError(fmt.Sprintf("You may hold at most %d developer keys", s.maxKeys))
	}
	key := &models.DeveloperKey{CrabID: v.ID, Key: uuid.NewString()}
	if err := s.tokens.CreateDeveloperKey(ctx, key); err != nil {
		return nil, err
	}
	return key, nil
}

func (s *DeveloperService) ListDeveloperKeys(ctx context.Context, v *visibility.Viewer) ([]*models.DeveloperKey, error) {
	if err := requireViewer(v); err != nil {
		return nil, err
	}
	return s.tokens.ListDeveloperKeys(ctx, v.ID)
}

func (s *DeveloperService) DeleteDeveloperKey(ctx context.Context, v *visibility.Viewer, id uint) error {
	if err := requireViewer(v); err != nil {
		return err
	}
	return s.tokens.DeleteDeveloperKey(ctx, v.ID, id)
}

func (s *DeveloperService) CreateAccessToken(ctx context.Context, v *visibility.Viewer) (*models.AccessToken, error) {
	if err := requireViewer(v); err != nil {
		return nil, err
	}
	tokens, err := s.tokens.ListAccessTokens(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	if len(tokens) >= s.maxTokens {
		return nil, models.NewValidationError(fmt.Sprintf("You may hold at most %d access tokens", s.maxTokens))
	}
	token := &models.AccessToken{CrabID: v.ID, Key: uuid.NewString()}
	if err := s.tokens.CreateAccessToken(ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}

func (s *DeveloperService) ListAccessTokens(ctx context.Context, v *visibility.Viewer) ([]*models.AccessToken, error) {
	if err := requireViewer(v); err != nil {
		return nil, err
	}
	return s.tokens.ListAccessTokens(ctx, v.ID)
}

func (s *DeveloperService) DeleteAccessToken(ctx context.Context, v *visibility.Viewer, id uint) error {
	if err := requireViewer(v); err != nil {
		return err
	}
	return s.tokens.DeleteAccessToken(ctx, v.ID, id)
}
