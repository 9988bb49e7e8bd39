// Package testutil provides an in-memory database for package tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"keyopolls/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// SetupTestDB opens a fresh in-memory SQLite database with the full schema.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:keyopolls_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	// 单连接：SQLite 写入串行化，事务之间不会互相锁死
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, conn.AutoMigrate(models.All()...))

	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

// Fixtures creates rows with sensible defaults.
type Fixtures struct {
	t  *testing.T
	db *gorm.DB
	n  int
}

func NewFixtures(t *testing.T, db *gorm.DB) *Fixtures {
	return &Fixtures{t: t, db: db}
}

func (f *Fixtures) Profile(username string) *models.Profile {
	f.t.Helper()
	p := &models.Profile{
		Username:    username,
		DisplayName: username,
		Email:       username + "@example.com",
		Role:        models.RoleUser,
	}
	require.NoError(f.t, f.db.Create(p).Error)
	return p
}

func (f *Fixtures) Moderator(username string) *models.Profile {
	f.t.Helper()
	p := f.Profile(username)
	require.NoError(f.t, f.db.Model(p).Update("role", models.RoleModerator).Error)
	p.Role = models.RoleModerator
	return p
}

func (f *Fixtures) Community(name string) *models.Community {
	f.t.Helper()
	c := &models.Community{Name: name, CommunityType: models.CommunityPublic}
	require.NoError(f.t, f.db.Create(c).Error)
	return c
}

func (f *Fixtures) PrivateCommunity(name string) *models.Community {
	f.t.Helper()
	c := &models.Community{Name: name, CommunityType: models.CommunityPrivate}
	require.NoError(f.t, f.db.Create(c).Error)
	return c
}

// Member adds a membership row with the given status. member_count is left alone.
func (f *Fixtures) Member(p *models.Profile, c *models.Community, status string) *models.CommunityMembership {
	f.t.Helper()
	m := &models.CommunityMembership{ProfileID: p.ID, CommunityID: c.ID, Role: "member", Status: status}
	require.NoError(f.t, f.db.Create(m).Error)
	return m
}

// Poll creates a poll with the given option texts. Options listed in correct are marked correct.
func (f *Fixtures) Poll(owner *models.Profile, community *models.Community, pollType models.PollType, options []string, correct ...int) *models.Poll {
	f.t.Helper()
	f.n++
	poll := &models.Poll{
		Title:       fmt.Sprintf("Poll %d", f.n),
		PollType:    pollType,
		ProfileID:   owner.ID,
		CommunityID: community.ID,
		MaxChoices:  len(options),
	}
	require.NoError(f.t, f.db.Omit("Options").Create(poll).Error)

	isCorrect := make(map[int]bool, len(correct))
	for _, i := range correct {
		isCorrect[i] = true
	}
	for i, text := range options {
		opt := models.PollOption{PollID: poll.ID, Text: text, Order: i, IsCorrect: isCorrect[i]}
		require.NoError(f.t, f.db.Create(&opt).Error)
		poll.Options = append(poll.Options, opt)
	}
	if len(correct) > 0 {
		require.NoError(f.t, f.db.Model(poll).Update("has_correct_answer", true).Error)
		poll.HasCorrectAnswer = true
	}
	return poll
}

// Comment inserts a comment directly, bypassing the service layer.
func (f *Fixtures) Comment(author *models.Profile, ref models.ContentRef, parent *models.Comment, createdAt time.Time, mutate ...func(*models.Comment)) *models.Comment {
	f.t.Helper()
	f.n++
	c := &models.Comment{
		Content:          fmt.Sprintf("comment %d", f.n),
		ProfileID:        author.ID,
		ContentType:      ref.Kind,
		ObjectID:         ref.ID,
		ModerationStatus: models.ModerationApproved,
		CreatedAt:        createdAt,
	}
	if parent != nil {
		c.ParentID = &parent.ID
		c.Depth = parent.Depth + 1
	}
	for _, m := range mutate {
		m(c)
	}
	require.NoError(f.t, f.db.Omit("Profile", "Parent").Create(c).Error)
	return c
}
