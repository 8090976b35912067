package repository_test

import (
	"context"
	"testing"

	"crabber/internal/models"
	"crabber/internal/repository"
	"crabber/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrabRepository_CreateRejectsDuplicates(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewCrabRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Crab{Username: "jonnyjo", DisplayName: "Jonny", Email: "j@example.com", PasswordHash: "x"}))
	err := repo.Create(ctx, &models.Crab{Username: "jonnyjo", DisplayName: "Other", Email: "o@example.com", PasswordHash: "x"})
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeValidation, appErr.Code)

	taken, err := repo.UsernameTaken(ctx, "JonnyJo")
	require.NoError(t, err)
	assert.True(t, taken)

	crab, err := repo.GetByUsername(ctx, "JONNYJO")
	require.NoError(t, err)
	assert.Equal(t, "jonnyjo", crab.Username)
}

func TestCrabRepository_ActiveIDsByUsernames(t *testing.T) {
	db := testutil.NewTestDB(t)
	f := testutil.NewFixtures(t, db)
	repo := repository.NewCrabRepository(db)

	alice := f.Crab("alice")
	f.CrabWithStatus("banned", models.StatusBanned)
	bob := f.Crab("bob")

	ids, err := repo.ActiveIDsByUsernames(context.Background(), []string{"Bob", "alice", "banned", "nobody"})
	require.NoError(t, err)
	assert.Equal(t, []uint{alice.ID, bob.ID}, ids)
}

func TestCrabRepository_Preferences(t *testing.T) {
	db := testutil.NewTestDB(t)
	f := testutil.NewFixtures(t, db)
	repo := repository.NewCrabRepository(db)
	ctx := context.Background()

	alice := f.Crab("alice")
	require.NoError(t, repo.SetPreferences(ctx, alice.ID, map[string]bool{models.PrefLightMode: true}))

	got, err := repo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, got.Preference(models.PrefLightMode, false))
	assert.False(t, got.Preference(models.PrefSpookyMode, false))
}

func TestMoltRepository_AncestorsAndLinks(t *testing.T) {
	db := testutil.NewTestDB(t)
	f := testutil.NewFixtures(t, db)
	repo := repository.NewMoltRepository(db)
	ctx := context.Background()

	alice := f.Crab("alice")
	bob := f.Crab("bob")
	root := f.Molt(alice, "root", "crabs")
	reply := f.Reply(bob, root, "reply")
	nested := f.Reply(alice, reply, "nested")

	var rows []models.MoltAncestor
	require.NoError(t, db.Where("molt_id = ?", nested.ID).Order("depth").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, reply.ID, rows[0].AncestorID)
	assert.Equal(t, 1, rows[0].Depth)
	assert.Equal(t, root.ID, rows[1].AncestorID)
	assert.Equal(t, 2, rows[1].Depth)

	// Editing replaces tags and mentions, and reuses existing crabtags.
	root.Content = "edited"
	require.NoError(t, repo.UpdateContent(ctx, root, []string{"crabs", "sea"}, []uint{bob.ID}))

	var tagCount, linkCount, mentionCount int64
	require.NoError(t, db.Model(&models.Crabtag{}).Count(&tagCount).Error)
	require.NoError(t, db.Model(&models.MoltTag{}).Where("molt_id = ?", root.ID).Count(&linkCount).Error)
	require.NoError(t, db.Model(&models.MoltMention{}).Where("molt_id = ?", root.ID).Count(&mentionCount).Error)
	assert.Equal(t, int64(2), tagCount)
	assert.Equal(t, int64(2), linkCount)
	assert.Equal(t, int64(1), mentionCount)

	got, err := repo.GetByID(ctx, root.ID)
	require.NoError(t, err)
	assert.True(t, got.Edited)
	assert.Equal(t, "edited", got.Content)
}

func TestMoltRepository_FindRemolt(t *testing.T) {
	db := testutil.NewTestDB(t)
	f := testutil.NewFixtures(t, db)
	repo := repository.NewMoltRepository(db)
	ctx := context.Background()

	alice := f.Crab("alice")
	bob := f.Crab("bob")
	original := f.Molt(alice, "original")

	none, err := repo.FindRemolt(ctx, bob.ID, original.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	remolt := f.Remolt(bob, original)
	found, err := repo.FindRemolt(ctx, bob.ID, original.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, remolt.ID, found.ID)

	require.NoError(t, repo.SoftDelete(ctx, remolt.ID))
	none, err = repo.FindRemolt(ctx, bob.ID, original.ID)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestRelationRepository_Idempotent(t *testing.T) {
	db := testutil.NewTestDB(t)
	f := testutil.NewFixtures(t, db)
	repo := repository.NewRelationRepository(db)
	ctx := context.Background()

	alice := f.Crab("alice")
	bob := f.Crab("bob")
	m := f.Molt(alice, "hello")

	created, err := repo.Like(ctx, bob.ID, m.ID)
	require.NoError(t, err)
	assert.True(t, created)
	created, err = repo.Like(ctx, bob.ID, m.ID)
	require.NoError(t, err)
	assert.False(t, created)

	require.NoError(t, repo.Unlike(ctx, bob.ID, m.ID))
	require.NoError(t, repo.Unlike(ctx, bob.ID, m.ID))
	var likes int64
	require.NoError(t, db.Model(&models.Like{}).Count(&likes).Error)
	assert.Zero(t, likes)
}

func TestRelationRepository_BlockSeversFollows(t *testing.T) {
	db := testutil.NewTestDB(t)
	f := testutil.NewFixtures(t, db)
	repo := repository.NewRelationRepository(db)
	ctx := context.Background()

	alice := f.Crab("alice")
	bob := f.Crab("bob")
	f.Follow(alice, bob)
	f.Follow(bob, alice)

	created, err := repo.Block(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, created)

	following, err := repo.IsFollowing(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.False(t, following)

	either, err := repo.IsBlockedEither(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, either)

	reverse, err := repo.HasBlocked(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.False(t, reverse)

	require.NoError(t, repo.Unblock(ctx, alice.ID, bob.ID))
	either, err = repo.IsBlockedEither(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, either)
}

func TestTokenRepository(t *testing.T) {
	db := testutil.NewTestDB(t)
	f := testutil.NewFixtures(t, db)
	repo := repository.NewTokenRepository(db)
	ctx := context.Background()

	alice := f.Crab("alice")
	bob := f.Crab("bob")
	tok := &models.AccessToken{CrabID: alice.ID, Key: "tok-alice"}
	require.NoError(t, repo.CreateAccessToken(ctx, tok))

	crab, err := repo.CrabByAccessToken(ctx, "tok-alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, crab.ID)

	assert.True(t, models.IsNotFound(repo.DeleteAccessToken(ctx, bob.ID, tok.ID)))
	require.NoError(t, repo.DeleteAccessToken(ctx, alice.ID, tok.ID))

	_, err = repo.CrabByAccessToken(ctx, "tok-alice")
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeUnauthorized, appErr.Code)

	list, err := repo.ListAccessTokens(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCardRepository(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewCardRepository(db)
	ctx := context.Background()

	a, err := repo.FindOrCreate(ctx, "https://example.com/a")
	require.NoError(t, err)
	again, err := repo.FindOrCreate(ctx, "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, a.ID, again.ID)
	_, err = repo.FindOrCreate(ctx, "https://example.com/b")
	require.NoError(t, err)

	pending, err := repo.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	pending[0].Title = "A"
	pending[0].Ready = true
	pending[1].Failed = true
	require.NoError(t, repo.SaveResults(ctx, pending))

	pending, err = repo.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, repo.Reset(ctx, "https://example.com/b"))
	pending, err = repo.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "https://example.com/b", pending[0].URL)
}
