package services

import (
	"context"
	"testing"

	"keyopolls/internal/models"
	"keyopolls/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedInbox(t *testing.T, env *testEnv, recipient, actor *models.Profile, types ...models.NotificationType) []uint {
	t.Helper()
	ids := make([]uint, 0, len(types))
	for _, nt := range types {
		n, err := env.notifier.Send(context.Background(), Event{RecipientID: recipient.ID, Actor: actor, Type: nt, Title: string(nt)})
		require.NoError(t, err)
		require.NotNil(t, n)
		ids = append(ids, n.ID)
	}
	return ids
}

func TestInboxListAndCounts(t *testing.T) {
	env := newTestEnv(t)
	inbox := NewInboxService(env.db, env.log)
	ctx := context.Background()
	me := env.fx.Profile("me")
	other := env.fx.Profile("other")

	ids := seedInbox(t, env, me, other,
		models.NotificationReply, models.NotificationMention, models.NotificationReply)
	seedInbox(t, env, other, me, models.NotificationReply)

	page, err := inbox.List(ctx, me.ID, InboxFilter{PageSize: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	assert.EqualValues(t, 3, page.UnreadCount)
	assert.Equal(t, 2, page.Pages)
	assert.True(t, page.HasNext)
	require.Len(t, page.Notifications, 2)
	assert.Equal(t, ids[2], page.Notifications[0].ID, "newest first")
	require.NotNil(t, page.Notifications[0].Actor)
	assert.Equal(t, "other", page.Notifications[0].Actor.Username)

	page, err = inbox.List(ctx, me.ID, InboxFilter{Type: models.NotificationMention})
	require.NoError(t, err)
	require.Len(t, page.Notifications, 1)
	assert.Equal(t, ids[1], page.Notifications[0].ID)

	_, err = inbox.List(ctx, me.ID, InboxFilter{PageSize: 101})
	assert.ErrorIs(t, err, utils.ErrValidation)
}

func TestInboxMarkReadAndDelete(t *testing.T) {
	env := newTestEnv(t)
	inbox := NewInboxService(env.db, env.log)
	ctx := context.Background()
	me := env.fx.Profile("me")
	other := env.fx.Profile("other")

	ids := seedInbox(t, env, me, other,
		models.NotificationReply, models.NotificationMention, models.NotificationReply)
	theirs := seedInbox(t, env, other, me, models.NotificationReply)

	require.NoError(t, inbox.MarkRead(ctx, me.ID, ids[0]))
	assert.ErrorIs(t, inbox.MarkRead(ctx, me.ID, theirs[0]), utils.ErrNotFound)

	unread, err := inbox.UnreadCount(ctx, me.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, unread)

	page, err := inbox.List(ctx, me.ID, InboxFilter{Unread: true})
	require.NoError(t, err)
	assert.Len(t, page.Notifications, 2)

	n, err := inbox.MarkAllRead(ctx, me.ID, models.NotificationMention)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, err = inbox.MarkAllRead(ctx, me.ID, "")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	unread, err = inbox.UnreadCount(ctx, other.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread, "other inbox untouched")

	require.NoError(t, inbox.Delete(ctx, me.ID, ids[1]))
	assert.ErrorIs(t, inbox.Delete(ctx, me.ID, ids[1]), utils.ErrNotFound)
	assert.ErrorIs(t, inbox.Delete(ctx, me.ID, theirs[0]), utils.ErrNotFound)
	assert.Len(t, env.notifications(t, me.ID), 2)
}

func TestInboxDevices(t *testing.T) {
	env := newTestEnv(t)
	inbox := NewInboxService(env.db, env.log)
	ctx := context.Background()
	a := env.fx.Profile("a")
	b := env.fx.Profile("b")

	dev, err := inbox.RegisterDevice(ctx, a.ID, DeviceInput{Token: " tok ", DeviceType: "ios"})
	require.NoError(t, err)
	assert.Equal(t, "tok", dev.Token)

	require.NoError(t, inbox.UnregisterDevice(ctx, a.ID, "tok"))
	assert.ErrorIs(t, inbox.UnregisterDevice(ctx, b.ID, "tok"), utils.ErrNotFound)

	// 同一 token 换了账号登录
	moved, err := inbox.RegisterDevice(ctx, b.ID, DeviceInput{Token: "tok", DeviceType: "android"})
	require.NoError(t, err)
	assert.Equal(t, dev.ID, moved.ID)
	assert.Equal(t, b.ID, moved.ProfileID)
	assert.True(t, moved.Active)

	var count int64
	require.NoError(t, env.db.Model(&models.FCMDevice{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	_, err = inbox.RegisterDevice(ctx, a.ID, DeviceInput{Token: "x", DeviceType: "blackberry"})
	assert.ErrorIs(t, err, utils.ErrValidation)
	_, err = inbox.RegisterDevice(ctx, a.ID, DeviceInput{Token: "  ", DeviceType: "web"})
	assert.ErrorIs(t, err, utils.ErrValidation)
}
