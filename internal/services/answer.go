package services

import (
	"context"
	"strings"
	"time"

	"keyopolls/internal/db"
	"keyopolls/internal/models"
	"keyopolls/internal/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AnswerOutcome 答题结果：正确性、获得的光环值和打卡状态
type AnswerOutcome struct {
	IsCorrect  bool            `json:"is_correct"`
	AuraEarned int             `json:"aura_earned"`
	Streak     *StreakSnapshot `json:"streak"`
}

type PollAnswerService struct {
	db       *gorm.DB
	log      *zap.Logger
	aura     *AuraService
	streaks  *StreakService
	notifier *Notifier
	now      func() time.Time
}

func NewPollAnswerService(conn *gorm.DB, log *zap.Logger, aura *AuraService, streaks *StreakService, notifier *Notifier) *PollAnswerService {
	return &PollAnswerService{
		db:       conn,
		log:      log,
		aura:     aura,
		streaks:  streaks,
		notifier: notifier,
		now:      time.Now,
	}
}

// ProcessPollAnswer records correctness, awards aura and updates the streak, all or nothing.
// Inside an outer transaction it runs as a savepoint.
func (s *PollAnswerService) ProcessPollAnswer(ctx context.Context, tx *gorm.DB, profileID uint, poll *models.Poll, options []models.PollOption, in AnswerInput) (*AnswerOutcome, error) {
	outcome := &AnswerOutcome{}
	err := tx.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		outcome.IsCorrect = CalculatePollCorrectness(poll, options, in)

		var count int64
		if err := tx.Model(&models.PollAnswerResult{}).
			Where("profile_id = ? AND poll_id = ?", profileID, poll.ID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return utils.Conflict("You have already answered this poll")
		}

		result := models.PollAnswerResult{ProfileID: profileID, PollID: poll.ID, IsCorrect: outcome.IsCorrect}
		if err := tx.Create(&result).Error; err != nil {
			return err
		}

		amount, err := s.aura.AwardAura(ctx, tx, profileID, poll, outcome.IsCorrect)
		if err != nil {
			return err
		}
		outcome.AuraEarned = amount
		if err := tx.Model(&result).Update("aura_earned", amount).Error; err != nil {
			return err
		}

		snap, err := s.streaks.UpdateCommunityStreak(ctx, tx, profileID, poll.CommunityID, s.now())
		if err != nil {
			return err
		}
		outcome.Streak = snap
		return nil
	})
	if err != nil {
		return nil, wrapDBError(err, "process poll answer")
	}
	return outcome, nil
}

// VoteResult 投票接口的返回
type VoteResult struct {
	PollID      uint                `json:"poll_id"`
	TotalVotes  int                 `json:"total_votes"`
	TotalVoters int                 `json:"total_voters"`
	Options     []models.PollOption `json:"options"`
	Answer      *AnswerOutcome      `json:"answer"`
}

// CastVote is the request path for answering a poll: it stores the votes or text answer,
// bumps the counters and runs ProcessPollAnswer in the same transaction. Voting in a public
// community joins it; private and restricted communities need an active membership.
func (s *PollAnswerService) CastVote(ctx context.Context, profile *models.Profile, pollID uint, in AnswerInput) (*VoteResult, error) {
	var (
		poll    models.Poll
		options []models.PollOption
		outcome *AnswerOutcome
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := db.ForUpdate(tx).Where("id = ? AND is_deleted = ?", pollID, false).First(&poll).Error; err != nil {
			return notFoundOr(err, "Poll not found")
		}
		if !poll.IsActive(s.now()) {
			return utils.Validation("This poll is no longer accepting votes")
		}

		var community models.Community
		if err := tx.First(&community, poll.CommunityID).Error; err != nil {
			return notFoundOr(err, "Community not found")
		}
		if err := requireMembership(tx, profile.ID, &community); err != nil {
			return err
		}

		if answered, err := hasAnswered(tx, profile.ID, poll.ID); err != nil {
			return err
		} else if answered {
			return utils.Conflict("You have already voted on this poll")
		}

		if err := tx.Where("poll_id = ?", poll.ID).Order(`"order" ASC, id ASC`).Find(&options).Error; err != nil {
			return err
		}
		if err := ValidateVote(&poll, options, in); err != nil {
			return err
		}

		votesAdded := 1
		if poll.PollType == models.PollTypeTextInput {
			resp := models.PollTextResponse{PollID: poll.ID, ProfileID: profile.ID, TextValue: strings.TrimSpace(in.TextValue)}
			if err := tx.Create(&resp).Error; err != nil {
				return err
			}
		} else {
			for _, v := range in.Votes {
				vote := models.PollVote{PollID: poll.ID, OptionID: v.OptionID, ProfileID: profile.ID, Rank: v.Rank}
				if err := tx.Create(&vote).Error; err != nil {
					return err
				}
				if err := incrementColumn(tx, &models.PollOption{}, v.OptionID, "vote_count", 1); err != nil {
					return err
				}
			}
			// ranking 一个人只算一票
			if poll.PollType != models.PollTypeRanking {
				votesAdded = len(in.Votes)
			}
		}

		if err := tx.Model(&models.Poll{}).Where("id = ?", poll.ID).UpdateColumns(map[string]interface{}{
			"total_votes":  gorm.Expr("total_votes + ?", votesAdded),
			"total_voters": gorm.Expr("total_voters + ?", 1),
		}).Error; err != nil {
			return err
		}

		o, err := s.ProcessPollAnswer(ctx, tx, profile.ID, &poll, options, in)
		if err != nil {
			return err
		}
		outcome = o

		if err := tx.Select("id", "profile_id", "total_votes", "total_voters").First(&poll, poll.ID).Error; err != nil {
			return err
		}
		return tx.Where("poll_id = ?", poll.ID).Order(`"order" ASC, id ASC`).Find(&options).Error
	})
	if err != nil {
		return nil, wrapDBError(err, "cast vote")
	}

	s.log.Info("Poll answered",
		zap.Uint("poll_id", poll.ID),
		zap.Uint("profile_id", profile.ID),
		zap.Bool("correct", outcome.IsCorrect))

	s.notifier.NotifyPollVote(ctx, profile, &poll)
	s.notifier.NotifyMilestone(ctx, poll.ProfileID, models.NotificationVoteMilestone,
		poll.TotalVoters, models.PollRef(poll.ID))

	return &VoteResult{
		PollID:      poll.ID,
		TotalVotes:  poll.TotalVotes,
		TotalVoters: poll.TotalVoters,
		Options:     options,
		Answer:      outcome,
	}, nil
}

func hasAnswered(tx *gorm.DB, profileID, pollID uint) (bool, error) {
	for _, model := range []interface{}{&models.PollAnswerResult{}, &models.PollVote{}, &models.PollTextResponse{}} {
		var count int64
		if err := tx.Model(model).Where("profile_id = ? AND poll_id = ?", profileID, pollID).Count(&count).Error; err != nil {
			return false, err
		}
		if count > 0 {
			return true, nil
		}
	}
	return false, nil
}
