// Package testutil builds in-memory databases and fixture graphs for tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"crabber/internal/database"
	"crabber/internal/models"
	"crabber/internal/repository"
	"crabber/internal/visibility"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Epoch is the timestamp of the first fixture; each later fixture is one minute newer.
var Epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// NewTestDB opens a migrated in-memory SQLite database that lives for the test.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Each connection to :memory: is a separate database.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// Fixtures creates rows with strictly increasing timestamps.
type Fixtures struct {
	t     testing.TB
	db    *gorm.DB
	molts repository.MoltRepository
	clock time.Time
}

// NewFixtures returns a fixture builder for db.
func NewFixtures(t testing.TB, db *gorm.DB) *Fixtures {
	return &Fixtures{t: t, db: db, molts: repository.NewMoltRepository(db), clock: Epoch}
}

// Tick advances and returns the fixture clock.
func (f *Fixtures) Tick() time.Time {
	f.clock = f.clock.Add(time.Minute)
	return f.clock
}

// Now returns the fixture clock without advancing it.
func (f *Fixtures) Now() time.Time {
	return f.clock
}

// Crab creates an active crab.
func (f *Fixtures) Crab(username string) *models.Crab {
	return f.CrabWithStatus(username, models.StatusActive)
}

// CrabWithStatus creates a crab in the given state.
func (f *Fixtures) CrabWithStatus(username string, status models.AccountStatus) *models.Crab {
	f.t.Helper()
	crab := &models.Crab{
		Username:     username,
		DisplayName:  username,
		Email:        fmt.Sprintf("%s@example.com", username),
		PasswordHash: "x",
		Status:       status,
		CreatedAt:    f.Tick(),
	}
	require.NoError(f.t, f.db.Create(crab).Error)
	return crab
}

// SetStatus changes an existing crab's state.
func (f *Fixtures) SetStatus(crab *models.Crab, status models.AccountStatus) {
	f.t.Helper()
	require.NoError(f.t, f.db.Model(crab).Update("status", status).Error)
	crab.Status = status
}

// Molt creates a top-level molt tagged with tags.
func (f *Fixtures) Molt(author *models.Crab, content string, tags ...string) *models.Molt {
	return f.Save(&models.Molt{AuthorID: author.ID, Content: content}, tags...)
}

// Reply creates a reply to parent.
func (f *Fixtures) Reply(author *models.Crab, parent *models.Molt, content string) *models.Molt {
	return f.Save(&models.Molt{AuthorID: author.ID, Content: content, ParentID: &parent.ID})
}

// Quote creates a quote of quoted.
func (f *Fixtures) Quote(author *models.Crab, quoted *models.Molt, content string) *models.Molt {
	return f.Save(&models.Molt{AuthorID: author.ID, Content: content, QuotedID: &quoted.ID})
}

// Remolt creates a repost of original.
func (f *Fixtures) Remolt(author *models.Crab, original *models.Molt) *models.Molt {
	return f.Save(&models.Molt{AuthorID: author.ID, RemoltOfID: &original.ID})
}

// Save stores m through the molt repository so ancestry and tags are written.
func (f *Fixtures) Save(m *models.Molt, tags ...string) *models.Molt {
	f.t.Helper()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = f.Tick()
	}
	require.NoError(f.t, f.molts.Create(context.Background(), m, tags, nil))
	return m
}

// Delete soft-deletes m.
func (f *Fixtures) Delete(m *models.Molt) {
	f.t.Helper()
	require.NoError(f.t, f.molts.SoftDelete(context.Background(), m.ID))
	m.Deleted = true
}

// Follow makes follower follow followee.
func (f *Fixtures) Follow(follower, followee *models.Crab) {
	f.t.Helper()
	require.NoError(f.t, f.db.Create(&models.Follow{FollowerID: follower.ID, FolloweeID: followee.ID, CreatedAt: f.Tick()}).Error)
}

// Block makes blocker block blocked.
func (f *Fixtures) Block(blocker, blocked *models.Crab) {
	f.t.Helper()
	require.NoError(f.t, f.db.Create(&models.Block{BlockerID: blocker.ID, BlockedID: blocked.ID, CreatedAt: f.Tick()}).Error)
}

// Like makes crab like m.
func (f *Fixtures) Like(crab *models.Crab, m *models.Molt) {
	f.t.Helper()
	require.NoError(f.t, f.db.Create(&models.Like{CrabID: crab.ID, MoltID: m.ID, CreatedAt: f.Tick()}).Error)
}

// Bookmark makes crab bookmark m.
func (f *Fixtures) Bookmark(crab *models.Crab, m *models.Molt) {
	f.t.Helper()
	require.NoError(f.t, f.db.Create(&models.Bookmark{CrabID: crab.ID, MoltID: m.ID, CreatedAt: f.Tick()}).Error)
}

// Viewer is shorthand for visibility.NewViewer.
func Viewer(c *models.Crab) *visibility.Viewer {
	return visibility.NewViewer(c)
}

// IDs lists molt ids in order.
func IDs(molts []*models.Molt) []uint {
	ids := make([]uint, len(molts))
	for i, m := range molts {
		ids[i] = m.ID
	}
	return ids
}
