package repository

import (
	"context"
	"regexp"
	"testing"

	"crabber/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestCrabRepository_GetByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCrabRepository(db)
	ctx := context.Background()

	tests := []struct {
		name         string
		crabID       uint
		mockBehavior func()
		expected     string
		notFound     bool
	}{
		{
			name:   "Success",
			crabID: 1,
			mockBehavior: func() {
				rows := sqlmock.NewRows([]string{"id", "username", "email", "status"}).
					AddRow(1, "jonnyjo", "jonny@example.com", "active")
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "crabs" WHERE "crabs"."id" = $1 ORDER BY "crabs"."id" LIMIT $2`)).
					WithArgs(1, 1).
					WillReturnRows(rows)
			},
			expected: "jonnyjo",
		},
		{
			name:   "Not Found",
			crabID: 99,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "crabs" WHERE "crabs"."id" = $1 ORDER BY "crabs"."id" LIMIT $2`)).
					WithArgs(99, 1).
					WillReturnRows(sqlmock.NewRows([]string{"id"}))
			},
			notFound: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockBehavior()
			crab, err := repo.GetByID(ctx, tt.crabID)

			if tt.notFound {
				assert.True(t, models.IsNotFound(err))
			} else if assert.NoError(t, err) && assert.NotNil(t, crab) {
				assert.Equal(t, tt.expected, crab.Username)
				assert.True(t, crab.Active())
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCrabRepository_SetStatusMissingCrab(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCrabRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "crabs" SET "status"=$1`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.SetStatus(context.Background(), 42, models.StatusBanned)
	assert.True(t, models.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
