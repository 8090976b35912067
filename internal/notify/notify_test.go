package notify_test

import (
	"context"
	"testing"

	"crabber/internal/models"
	"crabber/internal/notify"
	"crabber/internal/pagination"
	"crabber/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func countNotifications(t *testing.T, db *gorm.DB, recipient *models.Crab) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.Notification{}).Where("recipient_id = ?", recipient.ID).Count(&n).Error)
	return n
}

func TestLike_IsIdempotent(t *testing.T) {
	db := testutil.NewTestDB(t)
	f := testutil.NewFixtures(t, db)
	e := notify.NewEngine(db)
	ctx := context.Background()

	alice := f.Crab("alice")
	bob := f.Crab("bob")
	m := f.Molt(alice, "like me")

	require.NoError(t, e.Like(ctx, bob.ID, m))
	require.NoError(t, e.Like(ctx, bob.ID, m))
	assert.Equal(t, int64(1), countNotifications(t, db, alice))
}

func TestRecord_SkipsSelfAndBlocked(t *testing.T) {
	db := testutil.NewTestDB(t)
	f := testutil.NewFixtures(t, db)
	e := notify.NewEngine(db)
	ctx := context.Background()

	alice := f.Crab("alice")
	bob := f.Crab("bob")
	m := f.Molt(alice, "mine")

	require.NoError(t, e.Like(ctx, alice.ID, m))
	assert.Equal(t, int64(0), countNotifications(t, db, alice))

	f.Block(alice, bob)
	require.NoError(t, e.Follow(ctx, bob.ID, alice.ID))
	require.NoError(t, e.Like(ctx, bob.ID, m))
	assert.Equal(t, int64(0), countNotifications(t, db, alice))
}

func TestReplyAndMention(t *testing.T) {
	db := testutil.NewTestDB(t)
	f := testutil.NewFixtures(t, db)
	e := notify.NewEngine(db)
	ctx := context.Background()

	alice := f.Crab("alice")
	bob := f.Crab("bob")
	carol := f.Crab("carol")
	root := f.Molt(alice, "root")
	reply := f.Reply(bob, root, "hi @alice and @carol")

	require.NoError(t, e.Reply(ctx, reply, alice.ID))
	require.NoError(t, e.Mention(ctx, reply, []uint{alice.ID, carol.ID}))
	// An edit re-runs mentions; nothing new is created.
	require.NoError(t, e.Mention(ctx, reply, []uint{alice.ID, carol.ID}))

	assert.Equal(t, int64(2), countNotifications(t, db, alice))
	assert.Equal(t, int64(1), countNotifications(t, db, carol))
}

func TestListAndReadState(t *testing.T) {
	db := testutil.NewTestDB(t)
	f := testutil.NewFixtures(t, db)
	e := notify.NewEngine(db)
	ctx := context.Background()

	alice := f.Crab("alice")
	bob := f.Crab("bob")
	carol := f.Crab("carol")
	m := f.Molt(alice, "post")

	require.NoError(t, e.Follow(ctx, bob.ID, alice.ID))
	require.NoError(t, e.Like(ctx, bob.ID, m))
	require.NoError(t, e.Follow(ctx, carol.ID, alice.ID))

	v := testutil.Viewer(alice)
	unread, err := e.UnreadCount(ctx, v)
	require.NoError(t, err)
	assert.Equal(t, int64(3), unread)

	// Notifications from crabs that later got banned drop out of the inbox.
	f.SetStatus(carol, models.StatusBanned)
	p, err := e.List(ctx, v, pagination.Request{Number: 1, Size: 10})
	require.NoError(t, err)
	require.Len(t, p.Items, 2)
	assert.Equal(t, models.NotificationLike, p.Items[0].Type)
	require.NotNil(t, p.Items[0].Actor)
	assert.Equal(t, "bob", p.Items[0].Actor.Username)

	require.NoError(t, e.MarkRead(ctx, alice.ID, p.Items[0].ID))
	unread, err = e.UnreadCount(ctx, v)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	err = e.MarkRead(ctx, bob.ID, p.Items[1].ID)
	assert.True(t, models.IsNotFound(err))

	require.NoError(t, e.MarkAllRead(ctx, alice.ID))
	unread, err = e.UnreadCount(ctx, v)
	require.NoError(t, err)
	assert.Equal(t, int64(0), unread)

	empty, err := e.List(ctx, nil, pagination.Request{Number: 1, Size: 10})
	require.NoError(t, err)
	assert.Empty(t, empty.Items)
}
