package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"keyopolls/internal/models"
	"keyopolls/internal/testutil"
	"keyopolls/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// memoryCache 代替 redis 的共享缓存
type memoryCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	gets    int
	deletes int
	failGet bool
}

func newMemoryCache() *memoryCache { return &memoryCache{data: map[string][]byte{}} }

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.failGet {
		return nil, false, errors.New("connection refused")
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes++
	delete(c.data, key)
	return nil
}

func boolPtr(v bool) *bool { return &v }

func TestPreferenceStoreGetAndUpsert(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, conn)
	shared := newMemoryCache()
	store, err := NewPreferenceStore(conn, zaptest.NewLogger(t), shared, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()
	p := fx.Profile("p")

	pref, err := store.Get(ctx, p.ID, models.NotificationReply)
	require.NoError(t, err)
	assert.Nil(t, pref, "never saved")
	assert.Contains(t, shared.data, preferenceKey(p.ID, models.NotificationReply))

	saved, err := store.Upsert(ctx, p.ID, models.NotificationReply, PreferenceInput{
		PushEnabled:      boolPtr(false),
		CustomThresholds: []int{2, 4},
	})
	require.NoError(t, err)
	assert.True(t, saved.InAppEnabled, "seeded from defaults")
	assert.False(t, saved.PushEnabled)
	assert.True(t, saved.IsEnabled)
	assert.Equal(t, []int{2, 4}, saved.CustomThresholds)
	assert.Equal(t, 1, shared.deletes)

	pref, err = store.Get(ctx, p.ID, models.NotificationReply)
	require.NoError(t, err)
	require.NotNil(t, pref)
	assert.False(t, pref.PushEnabled)

	// 第二次更新只改传入的字段
	saved, err = store.Upsert(ctx, p.ID, models.NotificationReply, PreferenceInput{EmailEnabled: boolPtr(true)})
	require.NoError(t, err)
	assert.False(t, saved.PushEnabled)
	assert.True(t, saved.EmailEnabled)
	assert.Equal(t, []int{2, 4}, saved.CustomThresholds)

	var rows int64
	require.NoError(t, conn.Model(&models.NotificationPreference{}).Where("profile_id = ?", p.ID).Count(&rows).Error)
	assert.EqualValues(t, 1, rows)
}

func TestPreferenceStoreReadsSharedCache(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, conn)
	shared := newMemoryCache()
	ctx := context.Background()
	p := fx.Profile("p")

	writer, err := NewPreferenceStore(conn, zaptest.NewLogger(t), shared, time.Minute)
	require.NoError(t, err)
	_, err = writer.Upsert(ctx, p.ID, models.NotificationMention, PreferenceInput{IsEnabled: boolPtr(false)})
	require.NoError(t, err)
	_, err = writer.Get(ctx, p.ID, models.NotificationMention)
	require.NoError(t, err)

	// 另一个进程：本地缓存为空，从共享缓存读到
	require.NoError(t, conn.Where("profile_id = ?", p.ID).Delete(&models.NotificationPreference{}).Error)
	reader, err := NewPreferenceStore(conn, zaptest.NewLogger(t), shared, time.Minute)
	require.NoError(t, err)
	pref, err := reader.Get(ctx, p.ID, models.NotificationMention)
	require.NoError(t, err)
	require.NotNil(t, pref)
	assert.False(t, pref.IsEnabled)
}

func TestPreferenceStoreFallsBackWhenCacheFails(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, conn)
	shared := newMemoryCache()
	shared.failGet = true
	store, err := NewPreferenceStore(conn, zaptest.NewLogger(t), shared, time.Minute)
	require.NoError(t, err)
	p := fx.Profile("p")

	_, err = store.Upsert(context.Background(), p.ID, models.NotificationFollow, PreferenceInput{PushEnabled: boolPtr(false)})
	require.NoError(t, err)
	pref, err := store.Get(context.Background(), p.ID, models.NotificationFollow)
	require.NoError(t, err)
	require.NotNil(t, pref)
	assert.False(t, pref.PushEnabled)
}

func TestPreferenceStoreList(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, conn)
	store, err := NewPreferenceStore(conn, zaptest.NewLogger(t), nil, 0)
	require.NoError(t, err)
	p := fx.Profile("p")

	_, err = store.Upsert(context.Background(), p.ID, models.NotificationPollVote, PreferenceInput{IsEnabled: boolPtr(false)})
	require.NoError(t, err)

	all, err := store.List(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, all, len(models.AllNotificationTypes))
	for _, pref := range all {
		if pref.NotificationType == models.NotificationPollVote {
			assert.False(t, pref.IsEnabled)
			assert.NotZero(t, pref.ID)
			continue
		}
		assert.True(t, pref.IsEnabled, string(pref.NotificationType))
		assert.Zero(t, pref.ID)
	}
}

func TestPreferenceInputValidation(t *testing.T) {
	v := utils.NewValidator()
	assert.NoError(t, v.Validate(PreferenceInput{CustomThresholds: []int{1, 5}}))
	assert.ErrorIs(t, v.Validate(PreferenceInput{CustomThresholds: []int{0}}), utils.ErrValidation)
	assert.ErrorIs(t, v.Validate(PreferenceInput{CustomThresholds: make([]int, 21)}), utils.ErrValidation)
}
