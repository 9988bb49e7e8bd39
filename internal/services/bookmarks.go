package services

import (
	"context"
	"errors"

	"keyopolls/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type BookmarkResult struct {
	Bookmarked    bool `json:"bookmarked"`
	BookmarkCount int  `json:"bookmark_count"`
}

// BookmarkService 收藏投票或评论
type BookmarkService struct {
	db       *gorm.DB
	log      *zap.Logger
	notifier *Notifier
}

func NewBookmarkService(conn *gorm.DB, log *zap.Logger, notifier *Notifier) *BookmarkService {
	return &BookmarkService{db: conn, log: log, notifier: notifier}
}

// Toggle 已收藏则取消，否则收藏
func (s *BookmarkService) Toggle(ctx context.Context, profile *models.Profile, ref models.ContentRef) (*BookmarkResult, error) {
	result := &BookmarkResult{}
	var target ContentTarget
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := ResolveContent(ctx, tx, ref)
		if err != nil {
			return err
		}
		target = t

		var existing models.Bookmark
		err = tx.Where("profile_id = ? AND content_type = ? AND object_id = ?", profile.ID, ref.Kind, ref.ID).
			First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			b := models.Bookmark{ProfileID: profile.ID, ContentType: ref.Kind, ObjectID: ref.ID}
			if err := tx.Create(&b).Error; err != nil {
				return err
			}
			if err := incrementColumn(tx, counterModel(ref), ref.ID, "bookmark_count", 1); err != nil {
				return err
			}
			result.Bookmarked = true
		case err != nil:
			return err
		default:
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
			if err := incrementColumn(tx, counterModel(ref), ref.ID, "bookmark_count", -1); err != nil {
				return err
			}
		}

		return tx.Model(counterModel(ref)).Where("id = ?", ref.ID).
			Select("bookmark_count").Scan(&result.BookmarkCount).Error
	})
	if err != nil {
		return nil, wrapDBError(err, "toggle bookmark")
	}

	s.log.Debug("Bookmark toggled",
		zap.Uint("profile_id", profile.ID),
		zap.String("target", ref.String()),
		zap.Bool("bookmarked", result.Bookmarked))

	if result.Bookmarked {
		s.notifier.NotifyMilestone(ctx, target.OwnerID(), models.NotificationBookmarkMilestone,
			result.BookmarkCount, ref)
	}
	return result, nil
}
