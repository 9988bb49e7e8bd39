package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"keyopolls/internal/models"
	"keyopolls/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func TestCastVoteMultipleChoice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.fx.Profile("owner")
	voter := env.fx.Profile("voter")
	poll := env.fx.Poll(owner, env.fx.Community("go"), models.PollTypeMultiple, []string{"a", "b", "c"}, 0, 1)
	opts := poll.Options

	res, err := env.answers.CastVote(ctx, voter, poll.ID, votes(opts[0].ID, opts[1].ID))
	require.NoError(t, err)
	assert.True(t, res.Answer.IsCorrect)
	assert.Equal(t, DefaultAuraPerPoll, res.Answer.AuraEarned)
	assert.Equal(t, 2, res.TotalVotes)
	assert.Equal(t, 1, res.TotalVoters)
	require.Len(t, res.Options, 3)
	assert.Equal(t, 1, res.Options[0].VoteCount)
	assert.Equal(t, 1, res.Options[1].VoteCount)
	assert.Equal(t, 0, res.Options[2].VoteCount)

	require.NotNil(t, res.Answer.Streak)
	assert.Equal(t, 1, res.Answer.Streak.PollsToday)
	assert.False(t, res.Answer.Streak.TargetMet)

	var result models.PollAnswerResult
	require.NoError(t, env.db.Where("profile_id = ? AND poll_id = ?", voter.ID, poll.ID).Take(&result).Error)
	assert.True(t, result.IsCorrect)
	assert.Equal(t, DefaultAuraPerPoll, result.AuraEarned)

	notes := env.notifications(t, owner.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationPollVote, notes[0].Type)
	assert.Equal(t, models.PriorityLow, notes[0].Priority)

	_, err = env.answers.CastVote(ctx, voter, poll.ID, votes(opts[2].ID))
	assert.ErrorIs(t, err, utils.ErrConflict)
	assert.Equal(t, 1, env.reloadPoll(t, poll.ID).TotalVoters)
}

func TestCastVoteIncorrectStillEarnsAura(t *testing.T) {
	env := newTestEnv(t)
	owner := env.fx.Profile("owner")
	voter := env.fx.Profile("voter")
	poll := env.fx.Poll(owner, env.fx.Community("go"), models.PollTypeSingle, []string{"a", "b"}, 1)

	res, err := env.answers.CastVote(context.Background(), voter, poll.ID, votes(poll.Options[0].ID))
	require.NoError(t, err)
	assert.False(t, res.Answer.IsCorrect)
	assert.Equal(t, DefaultAuraPerPoll, res.Answer.AuraEarned)

	var profile models.Profile
	require.NoError(t, env.db.First(&profile, voter.ID).Error)
	assert.Equal(t, DefaultAuraPerPoll, profile.TotalAura)
}

func TestCastVoteRankingCountsOneVote(t *testing.T) {
	env := newTestEnv(t)
	owner := env.fx.Profile("owner")
	voter := env.fx.Profile("voter")
	poll := env.fx.Poll(owner, env.fx.Community("go"), models.PollTypeRanking, []string{"a", "b", "c"})
	o := poll.Options
	order := []uint{o[2].ID, o[0].ID, o[1].ID}
	require.NoError(t, env.db.Model(poll).
		Select("has_correct_answer", "correct_ranking_order").
		Updates(&models.Poll{HasCorrectAnswer: true, CorrectRankingOrder: order}).Error)

	res, err := env.answers.CastVote(context.Background(), voter, poll.ID, ranked(order...))
	require.NoError(t, err)
	assert.True(t, res.Answer.IsCorrect)
	assert.Equal(t, 1, res.TotalVotes)
	assert.Equal(t, 1, res.TotalVoters)

	var stored []models.PollVote
	require.NoError(t, env.db.Where("poll_id = ?", poll.ID).Order(`"rank" ASC`).Find(&stored).Error)
	require.Len(t, stored, 3)
	assert.Equal(t, order[0], stored[0].OptionID)
}

func TestCastVoteText(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.fx.Profile("owner")
	voter := env.fx.Profile("voter")
	poll := env.fx.Poll(owner, env.fx.Community("go"), models.PollTypeTextInput, nil)
	require.NoError(t, env.db.Model(poll).Updates(map[string]interface{}{
		"has_correct_answer":  true,
		"correct_text_answer": "Gopher",
	}).Error)

	_, err := env.answers.CastVote(ctx, voter, poll.ID, AnswerInput{TextValue: "two words"})
	assert.ErrorIs(t, err, utils.ErrValidation)

	res, err := env.answers.CastVote(ctx, voter, poll.ID, AnswerInput{TextValue: " gopher "})
	require.NoError(t, err)
	assert.True(t, res.Answer.IsCorrect)
	assert.Equal(t, 1, res.TotalVotes)

	var resp models.PollTextResponse
	require.NoError(t, env.db.Where("poll_id = ?", poll.ID).Take(&resp).Error)
	assert.Equal(t, "gopher", resp.TextValue)
}

func TestCastVoteRejectsClosedOrInvalid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.fx.Profile("owner")
	voter := env.fx.Profile("voter")
	community := env.fx.Community("go")

	expired := env.fx.Poll(owner, community, models.PollTypeSingle, []string{"a", "b"})
	past := time.Now().Add(-time.Hour)
	require.NoError(t, env.db.Model(expired).Update("expires_at", past).Error)
	_, err := env.answers.CastVote(ctx, voter, expired.ID, votes(expired.Options[0].ID))
	assert.ErrorIs(t, err, utils.ErrValidation)

	deleted := env.fx.Poll(owner, community, models.PollTypeSingle, []string{"a", "b"})
	require.NoError(t, env.db.Model(deleted).Update("is_deleted", true).Error)
	_, err = env.answers.CastVote(ctx, voter, deleted.ID, votes(deleted.Options[0].ID))
	assert.ErrorIs(t, err, utils.ErrNotFound)

	open := env.fx.Poll(owner, community, models.PollTypeSingle, []string{"a", "b"})
	_, err = env.answers.CastVote(ctx, voter, open.ID, votes(expired.Options[0].ID))
	assert.ErrorIs(t, err, utils.ErrValidation)

	// 校验失败不留下任何记录
	var count int64
	require.NoError(t, env.db.Model(&models.PollVote{}).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, env.db.Model(&models.AuraTransaction{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Equal(t, 0, env.reloadPoll(t, open.ID).TotalVoters)
}

func TestCastVoteMilestone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.fx.Profile("owner")
	poll := env.fx.Poll(owner, env.fx.Community("go"), models.PollTypeSingle, []string{"a", "b"})

	for i := 0; i < 10; i++ {
		voter := env.fx.Profile(fmt.Sprintf("voter%d", i))
		_, err := env.answers.CastVote(ctx, voter, poll.ID, votes(poll.Options[i%2].ID))
		require.NoError(t, err)
	}

	var notes []models.Notification
	require.NoError(t, env.db.Where("recipient_id = ? AND type = ?", owner.ID, models.NotificationVoteMilestone).
		Find(&notes).Error)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationVoteMilestone, notes[0].Type)
	assert.Equal(t, "🗳️ Your poll reached 10 votes!", notes[0].Message)
}

func TestProcessPollAnswerRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.fx.Profile("owner")
	poll := env.fx.Poll(owner, env.fx.Community("go"), models.PollTypeSingle, []string{"a", "b"})

	// profile 不存在：发光环值失败，答题记录也要回滚
	_, err := env.answers.ProcessPollAnswer(ctx, env.db, 9999, poll, poll.Options, votes(poll.Options[0].ID))
	assert.ErrorIs(t, err, utils.ErrNotFound)

	var count int64
	require.NoError(t, env.db.Model(&models.PollAnswerResult{}).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, env.db.Model(&models.CommunityStreakActivity{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestProcessPollAnswerRejectsDuplicate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.fx.Profile("owner")
	voter := env.fx.Profile("voter")
	poll := env.fx.Poll(owner, env.fx.Community("go"), models.PollTypeSingle, []string{"a", "b"})
	in := votes(poll.Options[0].ID)

	_, err := env.answers.ProcessPollAnswer(ctx, env.db, voter.ID, poll, poll.Options, in)
	require.NoError(t, err)
	_, err = env.answers.ProcessPollAnswer(ctx, env.db, voter.ID, poll, poll.Options, in)
	assert.ErrorIs(t, err, utils.ErrConflict)

	page, err := env.aura.Transactions(ctx, voter.ID, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)
	assert.Equal(t, DefaultAuraPerPoll, page.TotalAura)
}

func TestAuraLedgerMatchesTotalUnderConcurrency(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.fx.Profile("owner")
	voter := env.fx.Profile("voter")
	community := env.fx.Community("go")

	var polls []*models.Poll
	for i := 0; i < 8; i++ {
		polls = append(polls, env.fx.Poll(owner, community, models.PollTypeSingle, []string{"a", "b"}))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, poll := range polls {
		poll := poll
		g.Go(func() error {
			return env.db.WithContext(gctx).Transaction(func(tx *gorm.DB) error {
				_, err := env.aura.AwardAura(gctx, tx, voter.ID, poll, false)
				return err
			})
		})
	}
	require.NoError(t, g.Wait())

	var sum int
	require.NoError(t, env.db.Model(&models.AuraTransaction{}).
		Where("profile_id = ?", voter.ID).
		Select("COALESCE(SUM(amount), 0)").Scan(&sum).Error)

	var profile models.Profile
	require.NoError(t, env.db.First(&profile, voter.ID).Error)
	assert.Equal(t, len(polls)*DefaultAuraPerPoll, sum)
	assert.Equal(t, sum, profile.TotalAura)
}

func TestAuraTransactionsPaging(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.fx.Profile("owner")
	voter := env.fx.Profile("voter")
	community := env.fx.Community("go")

	for i := 0; i < 3; i++ {
		poll := env.fx.Poll(owner, community, models.PollTypeSingle, []string{"a", "b"})
		_, err := env.answers.CastVote(ctx, voter, poll.ID, votes(poll.Options[0].ID))
		require.NoError(t, err)
	}

	page, err := env.aura.Transactions(ctx, voter.ID, 2, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	assert.Equal(t, 3, page.TotalAura)
	require.Len(t, page.Transactions, 2)
	assert.Equal(t, "go", page.Transactions[0].CommunityName)
	assert.Contains(t, page.Transactions[0].Description, "Participated in poll: ")
	assert.Equal(t, models.AuraPollParticipation, page.Transactions[0].TransactionType)

	_, err = env.aura.Transactions(ctx, voter.ID, 101, 0)
	assert.ErrorIs(t, err, utils.ErrValidation)
	_, err = env.aura.Transactions(ctx, 9999, 10, 0)
	assert.ErrorIs(t, err, utils.ErrNotFound)
}
