package service

import (
	"context"
	"errors"
	"testing"

	"crabber/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// crabRepoStub is a stub for repository.CrabRepository.
type crabRepoStub struct {
	createFn        func(context.Context, *models.Crab) error
	getByEmailFn    func(context.Context, string) (*models.Crab, error)
	usernameTakenFn func(context.Context, string) (bool, error)
	emailTakenFn    func(context.Context, string) (bool, error)
}

func (s *crabRepoStub) Create(ctx context.Context, crab *models.Crab) error {
	return s.createFn(ctx, crab)
}
func (s *crabRepoStub) GetByID(context.Context, uint) (*models.Crab, error) {
	return nil, errors.New("not implemented")
}
func (s *crabRepoStub) GetByUsername(context.Context, string) (*models.Crab, error) {
	return nil, errors.New("not implemented")
}
func (s *crabRepoStub) GetByEmail(ctx context.Context, email string) (*models.Crab, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *crabRepoStub) UsernameTaken(ctx context.Context, username string) (bool, error) {
	return s.usernameTakenFn(ctx, username)
}
func (s *crabRepoStub) EmailTaken(ctx context.Context, email string) (bool, error) {
	return s.emailTakenFn(ctx, email)
}
func (s *crabRepoStub) ActiveIDsByUsernames(context.Context, []string) ([]uint, error) {
	return nil, nil
}
func (s *crabRepoStub) UpdateProfile(context.Context, *models.Crab) error { return nil }
func (s *crabRepoStub) SetStatus(context.Context, uint, models.AccountStatus) error {
	return nil
}
func (s *crabRepoStub) SetPreferences(context.Context, uint, map[string]bool) error {
	return nil
}
func (s *crabRepoStub) ListByStatus(context.Context, models.AccountStatus) ([]*models.Crab, error) {
	return nil, nil
}

func noopCrabRepo() *crabRepoStub {
	notFound := func(_ context.Context, e string) (*models.Crab, error) {
		return nil, models.NewNotFoundError("Crab", e)
	}
	return &crabRepoStub{
		createFn:        func(_ context.Context, _ *models.Crab) error { return nil },
		getByEmailFn:    notFound,
		usernameTakenFn: func(_ context.Context, _ string) (bool, error) { return false, nil },
		emailTakenFn:    func(_ context.Context, _ string) (bool, error) { return false, nil },
	}
}

func appCode(t *testing.T, err error) string {
	t.Helper()
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	return appErr.Code
}

func TestCrabService_Signup(t *testing.T) {
	ctx := context.Background()
	valid := SignupInput{Username: "jonnyjo", Email: " Jonny@Example.com ", Password: "SecurePass12!@"}

	t.Run("Success", func(t *testing.T) {
		repo := noopCrabRepo()
		var stored *models.Crab
		repo.createFn = func(_ context.Context, c *models.Crab) error {
			stored = c
			return nil
		}
		svc := NewCrabService(repo, nil, nil, nil, true)

		crab, err := svc.Signup(ctx, valid)
		require.NoError(t, err)
		assert.Same(t, stored, crab)
		assert.Equal(t, "jonny@example.com", crab.Email)
		assert.Equal(t, "jonnyjo", crab.DisplayName)
		assert.Equal(t, models.StatusActive, crab.Status)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(crab.PasswordHash), []byte(valid.Password)))
	})

	t.Run("Registration Closed", func(t *testing.T) {
		svc := NewCrabService(noopCrabRepo(), nil, nil, nil, false)
		_, err := svc.Signup(ctx, valid)
		assert.Equal(t, models.CodeForbidden, appCode(t, err))
	})

	t.Run("Username Taken", func(t *testing.T) {
		repo := noopCrabRepo()
		repo.usernameTakenFn = func(_ context.Context, _ string) (bool, error) { return true, nil }
		svc := NewCrabService(repo, nil, nil, nil, true)
		_, err := svc.Signup(ctx, valid)
		assert.EqualError(t, err, "That username is taken")
	})

	t.Run("Only Underscores", func(t *testing.T) {
		svc := NewCrabService(noopCrabRepo(), nil, nil, nil, true)
		in := valid
		in.Username = "____"
		_, err := svc.Signup(ctx, in)
		assert.Equal(t, models.CodeValidation, appCode(t, err))
	})
}

func TestCrabService_Authenticate(t *testing.T) {
	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte("SecurePass12!@"), bcrypt.MinCost)
	require.NoError(t, err)

	tests := []struct {
		name     string
		status   models.AccountStatus
		password string
		code     string
	}{
		{"Active", models.StatusActive, "SecurePass12!@", ""},
		{"Wrong Password", models.StatusActive, "nope", models.CodeUnauthorized},
		{"Banned", models.StatusBanned, "SecurePass12!@", models.CodeForbidden},
		{"Deleted", models.StatusDeleted, "SecurePass12!@", models.CodeUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := noopCrabRepo()
			repo.getByEmailFn = func(_ context.Context, _ string) (*models.Crab, error) {
				return &models.Crab{ID: 7, PasswordHash: string(hash), Status: tt.status}, nil
			}
			svc := NewCrabService(repo, nil, nil, nil, true)

			crab, err := svc.Authenticate(ctx, "j@example.com", tt.password)
			if tt.code == "" {
				require.NoError(t, err)
				assert.Equal(t, uint(7), crab.ID)
				return
			}
			assert.Equal(t, tt.code, appCode(t, err))
		})
	}

	t.Run("Unknown Email", func(t *testing.T) {
		svc := NewCrabService(noopCrabRepo(), nil, nil, nil, true)
		_, err := svc.Authenticate(ctx, "ghost@example.com", "x")
		assert.Equal(t, models.CodeUnauthorized, appCode(t, err))
	})
}

func TestExtractText(t *testing.T) {
	t.Parallel()
	content := "Hi @Alice and @bob, %Crabs %crabs %sea! 50%off mail me at x@y.com https://example.com/a), ok"

	assert.Equal(t, []string{"crabs", "sea"}, ExtractTags(content))
	assert.Equal(t, []string{"alice", "bob"}, ExtractMentions(content))
	assert.Equal(t, "https://example.com/a", FirstURL(content))
	assert.Empty(t, FirstURL("no links here"))
}
