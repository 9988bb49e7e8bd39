package services

import (
	"context"
	"errors"

	"keyopolls/internal/db"
	"keyopolls/internal/models"
	"keyopolls/internal/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReactionResult 切换后的计数和当前用户状态
type ReactionResult struct {
	CommentID     uint                         `json:"comment_id"`
	LikeCount     int                          `json:"like_count"`
	DislikeCount  int                          `json:"dislike_count"`
	UserReactions map[models.ReactionType]bool `json:"user_reactions"`
}

func reactionColumn(t models.ReactionType) string {
	if t == models.ReactionDislike {
		return "dislike_count"
	}
	return "like_count"
}

// ToggleReaction adds, removes or switches the viewer's reaction in one transaction.
// Reacting with the current type removes it; the other type switches.
func (s *CommentService) ToggleReaction(ctx context.Context, id uint, profile *models.Profile, t models.ReactionType) (*ReactionResult, error) {
	if t != models.ReactionLike && t != models.ReactionDislike {
		return nil, utils.Validationf("Invalid reaction type %q", t)
	}

	result := &ReactionResult{
		CommentID: id,
		UserReactions: map[models.ReactionType]bool{
			models.ReactionLike:    false,
			models.ReactionDislike: false,
		},
	}
	var comment models.Comment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := liveComments(tx).Where("id = ?", id).First(&comment).Error; err != nil {
			return notFoundOr(err, "Comment not found")
		}

		var existing models.CommentReaction
		err := db.ForUpdate(tx).
			Where("profile_id = ? AND comment_id = ?", profile.ID, id).
			First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			r := models.CommentReaction{ProfileID: profile.ID, CommentID: id, ReactionType: t}
			if err := tx.Create(&r).Error; err != nil {
				return err
			}
			if err := incrementColumn(tx, &models.Comment{}, id, reactionColumn(t), 1); err != nil {
				return err
			}
			result.UserReactions[t] = true
		case err != nil:
			return err
		case existing.ReactionType == t:
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
			if err := incrementColumn(tx, &models.Comment{}, id, reactionColumn(t), -1); err != nil {
				return err
			}
		default:
			previous := existing.ReactionType
			if err := tx.Model(&existing).Update("reaction_type", t).Error; err != nil {
				return err
			}
			if err := incrementColumn(tx, &models.Comment{}, id, reactionColumn(previous), -1); err != nil {
				return err
			}
			if err := incrementColumn(tx, &models.Comment{}, id, reactionColumn(t), 1); err != nil {
				return err
			}
			result.UserReactions[t] = true
		}

		return tx.Select("id", "profile_id", "like_count", "dislike_count").First(&comment, id).Error
	})
	if err != nil {
		return nil, wrapDBError(err, "toggle reaction")
	}

	result.LikeCount = comment.LikeCount
	result.DislikeCount = comment.DislikeCount

	if t == models.ReactionLike && result.UserReactions[models.ReactionLike] {
		s.notifier.NotifyMilestone(ctx, comment.ProfileID, models.NotificationLikeMilestone,
			comment.LikeCount, models.CommentRef(comment.ID))
	}
	s.log.Debug("Reaction toggled",
		zap.Uint("comment_id", id),
		zap.Uint("profile_id", profile.ID),
		zap.String("reaction", string(t)))
	return result, nil
}
