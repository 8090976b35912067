package service_test

import (
	"context"
	"strings"
	"testing"

	"crabber/internal/feed"
	"crabber/internal/models"
	"crabber/internal/notify"
	"crabber/internal/repository"
	"crabber/internal/service"
	"crabber/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type services struct {
	molts *service.MoltService
	crabs *service.CrabService
}

func newServices(db *gorm.DB) services {
	crabRepo := repository.NewCrabRepository(db)
	relations := repository.NewRelationRepository(db)
	reader := feed.NewEngine(db)
	notifier := notify.NewEngine(db)
	return services{
		molts: service.NewMoltService(
			repository.NewMoltRepository(db), crabRepo, relations,
			repository.NewCardRepository(db), reader, notifier, 240,
		),
		crabs: service.NewCrabService(crabRepo, relations, reader, notifier, true),
	}
}

func notificationTypes(t *testing.T, db *gorm.DB, recipient *models.Crab) []models.NotificationType {
	t.Helper()
	var types []models.NotificationType
	require.NoError(t, db.Model(&models.Notification{}).
		Where("recipient_id = ?", recipient.ID).
		Order("id").
		Pluck("type", &types).Error)
	return types
}

func TestMoltService_CreateReplyWithMentionTagAndCard(t *testing.T) {
	db := testutil.NewTestDB(t)
	f := testutil.NewFixtures(t, db)
	svc := newServices(db)
	ctx := context.Background()

	alice := f.Crab("alice")
	bob := f.Crab("bob")
	carol := f.Crab("carol")
	root := f.Molt(alice, "root")

	reply, err := svc.molts.Create(ctx, testutil.Viewer(bob), service.CreateMoltInput{
		Content:  "  @alice @carol look %Crabs https://example.com/a  ",
		ParentID: &root.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "@alice @carol look %Crabs https://example.com/a", reply.Content)
	require.NotNil(t, reply.Author)
	assert.Equal(t, "bob", reply.Author.Username)
	require.NotNil(t, reply.Card)
	assert.Equal(t, "https://example.com/a", reply.Card.URL)
	assert.False(t, reply.Card.Ready)

	assert.Equal(t, []models.NotificationType{models.NotificationReply, models.NotificationMention}, notificationTypes(t, db, alice))
	assert.Equal(t, []models.NotificationType{models.NotificationMention}, notificationTypes(t, db, carol))

	var tags []string
	require.NoError(t, db.Model(&models.Crabtag{}).Pluck("name", &tags).Error)
	assert.Equal(t, []string{"crabs"}, tags)
}

func TestMoltService_CreateValidation(t *testing.T) {
	db := testutil.NewTestDB(t)
	f := testutil.NewFixtures(t, db)
	svc := newServices(db)
	ctx := context.Background()

	alice := f.Crab("alice")
	bob := f.Crab("bob")
	v := testutil.Viewer(alice)
	hidden := f.Molt(bob, "hidden")
	f.Block(bob, alice)

	_, err := svc.molts.Create(ctx, v, service.CreateMoltInput{Content: "   "})
	assert.Error(t, err)

	_, err = svc.molts.Create(ctx, v, service.CreateMoltInput{Content: strings.Repeat("🦀", 241)})
	assert.Error(t, err)

	m, err := svc.molts.Create(ctx, v, service.CreateMoltInput{Content: strings.Repeat("🦀", 240)})
	require.NoError(t, err)
	assert.NotZero(t, m.ID)

	_, err = svc.molts.Create(ctx, v, service.CreateMoltInput{Content: "hi", ParentID: &hidden.ID})
	assert.True(t, models.IsNotFound(err))

	_, err = svc.molts.Create(ctx, nil, service.CreateMoltInput{Content: "anon"})
	assert.Error(t, err)
}

func TestMoltService_EditRenotifiesOnlyNewMentions(t *testing.T) {
	db := testutil.NewTestDB(t)
	f := testutil.NewFixtures(t, db)
	svc := newServices(db)
	ctx := context.Background()

	alice := f.Crab("alice")
	bob := f.Crab("bob")
	carol := f.Crab("carol")
	v := testutil.Viewer(alice)

	m, err := svc.molts.Create(ctx, v, service.CreateMoltInput{Content: "hey @bob"})
	require.NoError(t, err)

	edited, err := svc.molts.Edit(ctx, v, m.ID, "hey @bob and @carol")
	require.NoError(t, err)
	assert.True(t, edited.Edited)

	assert.Len(t, notificationTypes(t, db, bob), 1)
	assert.Len(t, notificationTypes(t, db, carol), 1)

	_, err = svc.molts.Edit(ctx, testutil.Viewer(bob), m.ID, "mine now")
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeForbidden, appErr.Code)
}

func TestMoltService_LikeTwiceNotifiesOnce(t *testing.T) {
	db := testutil.NewTestDB(t)
	f := testutil.NewFixtures(t, db)
	svc := newServices(db)
	ctx := context.Background()

	alice := f.Crab("alice")
	bob := f.Crab("bob")
	m := f.Molt(alice, "like me")
	v := testutil.Viewer(bob)

	require.NoError(t, svc.molts.Like(ctx, v, m.ID))
	require.NoError(t, svc.molts.Like(ctx, v, m.ID))
	require.NoError(t, svc.molts.Unlike(ctx, v, m.ID))
	require.NoError(t, svc.molts.Like(ctx, v, m.ID))

	var likes int64
	require.NoError(t, db.Model(&models.Like{}).Count(&likes).Error)
	assert.Equal(t, int64(1), likes)
	assert.Len(t, notificationTypes(t, db, alice), 1)
}

func TestMoltService_RemoltAndDelete(t *testing.T) {
	db := testutil.NewTestDB(t)
	f := testutil.NewFixtures(t, db)
	svc := newServices(db)
	ctx := context.Background()

	alice := f.Crab("alice")
	bob := f.Crab("bob")
	carol := f.Crab("carol")
	original := f.Molt(alice, "original")

	first, err := svc.molts.Remolt(ctx, testutil.Viewer(bob), original.ID)
	require.NoError(t, err)
	again, err := svc.molts.Remolt(ctx, testutil.Viewer(bob), original.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	// Remolting a remolt reposts the original.
	chained, err := svc.molts.Remolt(ctx, testutil.Viewer(carol), first.ID)
	require.NoError(t, err)
	require.NotNil(t, chained.RemoltOfID)
	assert.Equal(t, original.ID, *chained.RemoltOfID)

	_, err = svc.molts.Edit(ctx, testutil.Viewer(bob), first.ID, "text")
	assert.Error(t, err)

	require.NoError(t, svc.molts.Delete(ctx, testutil.Viewer(alice), original.ID))
	assert.True(t, models.IsNotFound(svc.molts.Delete(ctx, testutil.Viewer(alice), original.ID)))
	_, err = svc.molts.Remolt(ctx, testutil.Viewer(carol), original.ID)
	assert.True(t, models.IsNotFound(err))
}

func TestCrabService_FollowBlockAndBan(t *testing.T) {
	db := testutil.NewTestDB(t)
	f := testutil.NewFixtures(t, db)
	svc := newServices(db)
	ctx := context.Background()

	alice := f.Crab("alice")
	bob := f.Crab("bob")

	require.NoError(t, svc.crabs.Follow(ctx, testutil.Viewer(bob), "Alice"))
	require.NoError(t, svc.crabs.Follow(ctx, testutil.Viewer(bob), "alice"))
	assert.Equal(t, []models.NotificationType{models.NotificationFollow}, notificationTypes(t, db, alice))
	assert.Error(t, svc.crabs.Follow(ctx, testutil.Viewer(bob), "bob"))

	require.NoError(t, svc.crabs.Block(ctx, testutil.Viewer(alice), "bob"))
	// Blocked crabs cannot see, and so cannot follow, each other.
	assert.True(t, models.IsNotFound(svc.crabs.Follow(ctx, testutil.Viewer(bob), "alice")))
	require.NoError(t, svc.crabs.Unblock(ctx, testutil.Viewer(alice), "bob"))

	banned, err := svc.crabs.Ban(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, models.StatusBanned, banned.Status)
	assert.True(t, models.IsNotFound(svc.crabs.Follow(ctx, testutil.Viewer(alice), "bob")))

	_, err = svc.crabs.Unban(ctx, "alice")
	assert.ErrorIs(t, err, service.ErrNotBanned)
	restored, err := svc.crabs.Unban(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, restored.Status)
}

func TestCrabService_SetPreferences(t *testing.T) {
	db := testutil.NewTestDB(t)
	f := testutil.NewFixtures(t, db)
	svc := newServices(db)
	ctx := context.Background()

	alice := f.Crab("alice")
	v := testutil.Viewer(alice)

	_, err := svc.crabs.SetPreferences(ctx, v, map[string]bool{models.PrefLightMode: true})
	require.NoError(t, err)
	prefs, err := svc.crabs.SetPreferences(ctx, v, map[string]bool{models.PrefSpookyMode: true})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{models.PrefLightMode: true, models.PrefSpookyMode: true}, prefs)

	_, err = svc.crabs.SetPreferences(ctx, v, map[string]bool{"dark_mode": true})
	assert.Error(t, err)
}
