package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"keyopolls/internal/models"
	"keyopolls/internal/utils"

	"gorm.io/gorm"
)

// ContentTarget 评论挂载的内容对象，只暴露 id、作者和 comment_count 原子增减
type ContentTarget interface {
	Ref() models.ContentRef
	OwnerID() uint
	Title() string
	IncrementCommentCount(tx *gorm.DB, delta int) error
}

type pollTarget struct {
	poll *models.Poll
}

func (t pollTarget) Ref() models.ContentRef { return models.PollRef(t.poll.ID) }

func (t pollTarget) OwnerID() uint { return t.poll.ProfileID }

func (t pollTarget) Title() string { return t.poll.Title }

func (t pollTarget) IncrementCommentCount(tx *gorm.DB, delta int) error {
	return incrementColumn(tx, &models.Poll{}, t.poll.ID, "comment_count", delta)
}

type commentTarget struct {
	comment *models.Comment
}

func (t commentTarget) Ref() models.ContentRef { return models.CommentRef(t.comment.ID) }

func (t commentTarget) OwnerID() uint { return t.comment.ProfileID }

func (t commentTarget) Title() string { return excerpt(t.comment.Content, 50) }

func (t commentTarget) IncrementCommentCount(tx *gorm.DB, delta int) error {
	return incrementColumn(tx, &models.Comment{}, t.comment.ID, "comment_count", delta)
}

// ResolveContent loads the referenced object and fails with not-found when it is gone or hidden.
func ResolveContent(ctx context.Context, tx *gorm.DB, ref models.ContentRef) (ContentTarget, error) {
	switch ref.Kind {
	case models.ContentPoll:
		var poll models.Poll
		err := tx.WithContext(ctx).Where("id = ? AND is_deleted = ?", ref.ID, false).First(&poll).Error
		if err != nil {
			return nil, notFoundOr(err, "Poll not found")
		}
		return pollTarget{poll: &poll}, nil
	case models.ContentComment:
		var comment models.Comment
		err := liveComments(tx.WithContext(ctx)).Where("id = ?", ref.ID).First(&comment).Error
		if err != nil {
			return nil, notFoundOr(err, "Comment not found")
		}
		return commentTarget{comment: &comment}, nil
	default:
		return nil, utils.Validationf("unsupported content type %q", ref.Kind)
	}
}

// targetFor builds a target without a liveness check, for counters on already-attached rows.
func targetFor(ref models.ContentRef) ContentTarget {
	if ref.Kind == models.ContentComment {
		return commentTarget{comment: &models.Comment{ID: ref.ID}}
	}
	return pollTarget{poll: &models.Poll{ID: ref.ID}}
}

// incrementColumn 原子增减计数，减到 0 为止
func incrementColumn(tx *gorm.DB, model interface{}, id uint, column string, delta int) error {
	q := tx.Model(model).Where("id = ?", id)
	if delta < 0 {
		q = q.Where(column+" >= ?", -delta)
	}
	return q.UpdateColumn(column, gorm.Expr(column+" + ?", delta)).Error
}

// liveComments 未删除、未下架且审核通过
func liveComments(tx *gorm.DB) *gorm.DB {
	return tx.Model(&models.Comment{}).
		Where("is_deleted = ? AND is_taken_down = ? AND moderation_status = ?", false, false, models.ModerationApproved)
}

// counterModel 计数列所在的表
func counterModel(ref models.ContentRef) interface{} {
	if ref.Kind == models.ContentComment {
		return &models.Comment{}
	}
	return &models.Poll{}
}

// wrapDBError keeps AppErrors returned from inside a transaction and wraps anything else.
func wrapDBError(err error, message string) error {
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return utils.WrapError(err, message)
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func notFoundOr(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.NotFound(message)
	}
	return utils.WrapError(err, "database error")
}

// excerpt 按字符截断，用于通知标题
func excerpt(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}

// DayOf 归一到 UTC 零点
func DayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
