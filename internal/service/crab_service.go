package service

import (
	"context"
	"errors"
	"slices"
	"strings"

	"crabber/internal/models"
	"crabber/internal/repository"
	"crabber/internal/validation"
	"crabber/internal/visibility"

	"golang.org/x/crypto/bcrypt"
)

type CrabService struct {
	crabs               repository.CrabRepository
	relations           repository.RelationRepository
	reader              Reader
	notifier            Notifier
	registrationEnabled bool
}

type SignupInput struct {
	Username    string `json:"username" validate:"required,crabname"`
	DisplayName string `json:"display_name" validate:"max=64"`
	Email       string `json:"email" validate:"required,crabmail"`
	Password    string `json:"password" validate:"required,password"`
}

type UpdateProfileInput struct {
	DisplayName string `json:"display_name" validate:"required,max=64"`
	Description string `json:"description" validate:"max=1024"`
	Location    string `json:"location" validate:"max=64"`
	Avatar      string `json:"avatar" validate:"omitempty,http_url"`
}

func NewCrabService(
	crabs repository.CrabRepository,
	relations repository.RelationRepository,
	reader Reader,
	notifier Notifier,
	registrationEnabled bool,
) *CrabService {
	return &CrabService{
		crabs:               crabs,
		relations:           relations,
		reader:              reader,
		notifier:            notifier,
		registrationEnabled: registrationEnabled,
	}
}

// Signup registers a new active crab.
func (s *CrabService) Signup(ctx context.Context, in SignupInput) (*models.Crab, error) {
	if !s.registrationEnabled {
		return nil, models.NewForbiddenError("Registration is currently closed")
	}
	in.Username = strings.TrimSpace(in.Username)
	in.Email = validation.NormalizeEmail(in.Email)
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}

	taken, err := s.crabs.UsernameTaken(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, models.NewValidationError("That username is taken")
	}
	taken, err = s.crabs.EmailTaken(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, models.NewValidationError("An account with that email address already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	display := strings.TrimSpace(in.DisplayName)
	if display == "" {
		display = in.Username
	}
	crab := &models.Crab{
		Username:     in.Username,
		DisplayName:  display,
		Email:        in.Email,
		PasswordHash: string(hash),
		Status:       models.StatusActive,
		Preferences:  map[string]bool{},
	}
	if err := s.crabs.Create(ctx, crab); err != nil {
		return nil, err
	}
	return crab, nil
}

// Authenticate checks an email and password. Banned crabs are told so;
// deleted accounts look like unknown ones.
func (s *CrabService) Authenticate(ctx context.Context, email, password string) (*models.Crab, error) {
	invalid := models.NewUnauthorizedError("Invalid email or password")

	crab, err := s.crabs.GetByEmail(ctx, email)
	if models.IsNotFound(err) {
		return nil, invalid
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(crab.PasswordHash), []byte(password)) != nil {
		return nil, invalid
	}
	switch crab.Status {
	case models.StatusBanned:
		return nil, models.NewForbiddenError("This account has been banned")
	case models.StatusDeleted:
		return nil, invalid
	}
	return crab, nil
}

func (s *CrabService) UpdateProfile(ctx context.Context, v *visibility.Viewer, in UpdateProfileInput) (*models.Crab, error) {
	if err := requireViewer(v); err != nil {
		return nil, err
	}
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	crab, err := s.crabs.GetByID(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	crab.DisplayName = strings.TrimSpace(in.DisplayName)
	crab.Description = strings.TrimSpace(in.Description)
	crab.Location = strings.TrimSpace(in.Location)
	crab.Avatar = in.Avatar
	if err := s.crabs.UpdateProfile(ctx, crab); err != nil {
		return nil, err
	}
	return crab, nil
}

// Follow makes v follow username. The target must be visible to v.
func (s *CrabService) Follow(ctx context.Context, v *visibility.Viewer, username string) error {
	if err := requireViewer(v); err != nil {
		return err
	}
	target, err := s.reader.Crab(ctx, v, username)
	if err != nil {
		return err
	}
	if target.ID == v.ID {
		return models.NewValidationError("You cannot follow yourself")
	}
	created, err := s.relations.Follow(ctx, v.ID, target.ID)
	if err != nil {
		return err
	}
	if created {
		notifyFailed(ctx, "follow", s.notifier.Follow(ctx, v.ID, target.ID))
	}
	return nil
}

func (s *CrabService) Unfollow(ctx context.Context, v *visibility.Viewer, username string) error {
	if err := requireViewer(v); err != nil {
		return err
	}
	target, err := s.crabs.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	return s.relations.Unfollow(ctx, v.ID, target.ID)
}

// Block hides v and username from each other and removes follows both ways.
// A crab can be blocked whatever its state or visibility.
func (s *CrabService) Block(ctx context.Context, v *visibility.Viewer, username string) error {
	if err := requireViewer(v); err != nil {
		return err
	}
	target, err := s.crabs.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if target.ID == v.ID {
		return models.NewValidationError("You cannot block yourself")
	}
	_, err = s.relations.Block(ctx, v.ID, target.ID)
	return err
}

func (s *CrabService) Unblock(ctx context.Context, v *visibility.Viewer, username string) error {
	if err := requireViewer(v); err != nil {
		return err
	}
	target, err := s.crabs.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	return s.relations.Unblock(ctx, v.ID, target.ID)
}

// SetPreferences merges prefs into v's stored preferences. Unknown keys are rejected.
func (s *CrabService) SetPreferences(ctx context.Context, v *visibility.Viewer, prefs map[string]bool) (map[string]bool, error) {
	if err := requireViewer(v); err != nil {
		return nil, err
	}
	for key := range prefs {
		if !slices.Contains(models.KnownPreferences, key) {
			return nil, models.NewValidationError("Unknown preference: " + key)
		}
	}
	crab, err := s.crabs.GetByID(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	merged := make(map[string]bool, len(crab.Preferences)+len(prefs))
	for k, val := range crab.Preferences {
		merged[k] = val
	}
	for k, val := range prefs {
		merged[k] = val
	}
	if err := s.crabs.SetPreferences(ctx, v.ID, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// DeleteAccount soft-deletes v's account after confirming the password.
func (s *CrabService) DeleteAccount(ctx context.Context, v *visibility.Viewer, password string) error {
	if err := requireViewer(v); err != nil {
		return err
	}
	crab, err := s.crabs.GetByID(ctx, v.ID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(crab.PasswordHash), []byte(password)) != nil {
		return models.NewUnauthorizedError("Password incorrect")
	}
	return s.crabs.SetStatus(ctx, crab.ID, models.StatusDeleted)
}

// ErrNotBanned is returned when unbanning a crab that is not banned.
var ErrNotBanned = errors.New("crab is not banned")

// Ban hides every molt, reply chain and relation of username from everyone.
func (s *CrabService) Ban(ctx context.Context, username string) (*models.Crab, error) {
	crab, err := s.crabs.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := s.crabs.SetStatus(ctx, crab.ID, models.StatusBanned); err != nil {
		return nil, err
	}
	crab.Status = models.StatusBanned
	return crab, nil
}

// Unban restores a banned crab. Deleted accounts stay deleted.
func (s *CrabService) Unban(ctx context.Context, username string) (*models.Crab, error) {
	crab, err := s.crabs.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if crab.Status != models.StatusBanned {
		return nil, ErrNotBanned
	}
	if err := s.crabs.SetStatus(ctx, crab.ID, models.StatusActive); err != nil {
		return nil, err
	}
	crab.Status = models.StatusActive
	return crab, nil
}
