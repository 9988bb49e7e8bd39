package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"keyopolls/internal/db"
	"keyopolls/internal/models"
	"keyopolls/internal/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ModerationAction string

const (
	ActionFlag     ModerationAction = "flag"
	ActionApprove  ModerationAction = "approve"
	ActionReject   ModerationAction = "reject"
	ActionTakeDown ModerationAction = "takedown"
	ActionRestore  ModerationAction = "restore"
)

func ParseModerationAction(s string) (ModerationAction, error) {
	switch a := ModerationAction(strings.ToLower(s)); a {
	case ActionFlag, ActionApprove, ActionReject, ActionTakeDown, ActionRestore:
		return a, nil
	}
	return "", utils.Validationf("Unknown moderation action %q", s)
}

// 审核相关字段，整体写回，零值也要写
var moderationColumns = []string{
	"moderation_status", "is_flagged", "flag_reason", "is_taken_down",
	"takedown_reason", "takedown_date", "taken_down_by_id", "is_auto_moderated",
}

// Moderate applies one moderation transition. Counters are left untouched.
func (s *CommentService) Moderate(ctx context.Context, id uint, action ModerationAction, moderator *models.Profile, reason string) (*models.Comment, error) {
	if !moderator.IsModerator() {
		return nil, utils.Forbidden("Moderator access required")
	}

	var comment models.Comment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := db.ForUpdate(tx).Where("id = ? AND is_deleted = ?", id, false).First(&comment).Error
		if err != nil {
			return notFoundOr(err, "Comment not found")
		}

		now := s.now()
		by := &moderator.ID
		switch action {
		case ActionFlag:
			err = comment.Flag(reason)
		case ActionApprove:
			err = comment.Approve()
		case ActionReject:
			err = comment.Reject(by, now)
		case ActionTakeDown:
			err = comment.TakeDown(reason, by, false, now)
		case ActionRestore:
			err = comment.Restore()
		default:
			return utils.Validationf("Unknown moderation action %q", action)
		}
		if errors.Is(err, models.ErrInvalidTransition) {
			return utils.Conflict(fmt.Sprintf("Cannot %s comment in its current state", action))
		}
		if err != nil {
			return err
		}

		return tx.Model(&comment).Select(moderationColumns).Updates(&comment).Error
	})
	if err != nil {
		return nil, wrapDBError(err, "moderate comment")
	}

	s.log.Info("Comment moderated",
		zap.Uint("comment_id", id),
		zap.String("action", string(action)),
		zap.Uint("moderator_id", moderator.ID))
	return &comment, nil
}

// ReportComment 每人每条评论只能举报一次，举报即进入待审
func (s *CommentService) ReportComment(ctx context.Context, id uint, reporter *models.Profile, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return utils.Validation("Report reason is required")
	}
	if utf8.RuneCountInString(reason) > 200 {
		return utils.Validation("Report reason must be at most 200 characters")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comment models.Comment
		err := db.ForUpdate(liveComments(tx)).Where("id = ?", id).First(&comment).Error
		if err != nil {
			return notFoundOr(err, "Comment not found")
		}
		if comment.ProfileID == reporter.ID {
			return utils.Validation("You cannot report your own comment")
		}

		var count int64
		if err := tx.Model(&models.CommentReport{}).
			Where("reporter_id = ? AND comment_id = ?", reporter.ID, id).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return utils.Conflict("You have already reported this comment")
		}

		report := models.CommentReport{ReporterID: reporter.ID, CommentID: id, Reason: reason}
		if err := tx.Omit("Reporter").Create(&report).Error; err != nil {
			return err
		}

		if err := comment.Flag(reason); err != nil {
			return utils.Conflict("Comment cannot be flagged in its current state")
		}
		return tx.Model(&comment).Select(moderationColumns).Updates(&comment).Error
	})
	if err != nil {
		return wrapDBError(err, "report comment")
	}
	s.log.Info("Comment reported", zap.Uint("comment_id", id), zap.Uint("reporter_id", reporter.ID))
	return nil
}
