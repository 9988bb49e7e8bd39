package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"keyopolls/internal/models"
	"keyopolls/internal/testutil"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

// testEnv 一套接好线的服务，通知同步投递到 recordingDeliverer
type testEnv struct {
	db        *gorm.DB
	fx        *testutil.Fixtures
	log       *zap.Logger
	prefs     *PreferenceStore
	deliverer *recordingDeliverer
	notifier  *Notifier
	tree      *TreeBuilder
	comments  *CommentService
	bookmarks *BookmarkService
	aura      *AuraService
	streaks   *StreakService
	answers   *PollAnswerService
	polls     *PollService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conn := testutil.SetupTestDB(t)
	log := zaptest.NewLogger(t)

	prefs, err := NewPreferenceStore(conn, log, nil, time.Minute)
	require.NoError(t, err)

	rec := &recordingDeliverer{}
	notifier := NewNotifier(conn, log, prefs, rec, nil, false)
	tree := NewTreeBuilder(conn, nil)
	aura := NewAuraService(conn, log, DefaultAuraPerPoll)
	streaks := NewStreakService(conn, log, 2)

	return &testEnv{
		db:        conn,
		fx:        testutil.NewFixtures(t, conn),
		log:       log,
		prefs:     prefs,
		deliverer: rec,
		notifier:  notifier,
		tree:      tree,
		comments:  NewCommentService(conn, log, tree, notifier, DefaultMaxDepth),
		bookmarks: NewBookmarkService(conn, log, notifier),
		aura:      aura,
		streaks:   streaks,
		answers:   NewPollAnswerService(conn, log, aura, streaks, notifier),
		polls:     NewPollService(conn, log),
	}
}

// notifications 按 ID 升序返回某人收到的通知
func (e *testEnv) notifications(t *testing.T, recipientID uint) []models.Notification {
	t.Helper()
	var out []models.Notification
	require.NoError(t, e.db.Where("recipient_id = ?", recipientID).Order("id ASC").Find(&out).Error)
	return out
}

func (e *testEnv) reloadComment(t *testing.T, id uint) models.Comment {
	t.Helper()
	var c models.Comment
	require.NoError(t, e.db.First(&c, id).Error)
	return c
}

func (e *testEnv) reloadPoll(t *testing.T, id uint) models.Poll {
	t.Helper()
	var p models.Poll
	require.NoError(t, e.db.First(&p, id).Error)
	return p
}

type recordingDeliverer struct {
	mu   sync.Mutex
	jobs []DeliveryJob
	err  error
}

func (r *recordingDeliverer) Deliver(_ context.Context, job DeliveryJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	return r.err
}

func (r *recordingDeliverer) Jobs() []DeliveryJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]DeliveryJob(nil), r.jobs...)
}

func intPtr(v int) *int { return &v }
