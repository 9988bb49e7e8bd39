package services

import (
	"context"
	"testing"
	"time"

	"keyopolls/internal/models"
	"keyopolls/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggleReaction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.fx.Profile("author")
	viewer := env.fx.Profile("viewer")
	poll := env.fx.Poll(author, env.fx.Community("go"), models.PollTypeSingle, []string{"a", "b"})
	c := env.fx.Comment(author, models.PollRef(poll.ID), nil, time.Now())

	res, err := env.comments.ToggleReaction(ctx, c.ID, viewer, models.ReactionLike)
	require.NoError(t, err)
	assert.Equal(t, 1, res.LikeCount)
	assert.Equal(t, 0, res.DislikeCount)
	assert.True(t, res.UserReactions[models.ReactionLike])

	// 第一个赞命中默认阈值 1
	notes := env.notifications(t, author.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationLikeMilestone, notes[0].Type)
	assert.Equal(t, "🎉 Your comment reached 1 likes!", notes[0].Message)

	res, err = env.comments.ToggleReaction(ctx, c.ID, viewer, models.ReactionDislike)
	require.NoError(t, err)
	assert.Equal(t, 0, res.LikeCount)
	assert.Equal(t, 1, res.DislikeCount)
	assert.False(t, res.UserReactions[models.ReactionLike])
	assert.True(t, res.UserReactions[models.ReactionDislike])

	res, err = env.comments.ToggleReaction(ctx, c.ID, viewer, models.ReactionDislike)
	require.NoError(t, err)
	assert.Equal(t, 0, res.DislikeCount)
	assert.False(t, res.UserReactions[models.ReactionDislike])

	var rows int64
	require.NoError(t, env.db.Model(&models.CommentReaction{}).Where("comment_id = ?", c.ID).Count(&rows).Error)
	assert.Zero(t, rows)

	stored := env.reloadComment(t, c.ID)
	assert.Equal(t, 0, stored.LikeCount)
	assert.Equal(t, 0, stored.DislikeCount)
}

func TestToggleReactionRejectsHiddenAndInvalid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.fx.Profile("author")
	poll := env.fx.Poll(author, env.fx.Community("go"), models.PollTypeSingle, []string{"a", "b"})
	hidden := env.fx.Comment(author, models.PollRef(poll.ID), nil, time.Now(), func(c *models.Comment) {
		c.IsDeleted = true
	})

	_, err := env.comments.ToggleReaction(ctx, hidden.ID, author, models.ReactionLike)
	assert.ErrorIs(t, err, utils.ErrNotFound)

	_, err = env.comments.ToggleReaction(ctx, hidden.ID, author, models.ReactionType("love"))
	assert.ErrorIs(t, err, utils.ErrValidation)
}

func TestToggleReactionMilestoneHasNoActor(t *testing.T) {
	env := newTestEnv(t)
	author := env.fx.Profile("author")
	poll := env.fx.Poll(author, env.fx.Community("go"), models.PollTypeSingle, []string{"a", "b"})
	c := env.fx.Comment(author, models.PollRef(poll.ID), nil, time.Now())

	_, err := env.comments.ToggleReaction(context.Background(), c.ID, author, models.ReactionLike)
	require.NoError(t, err)

	// 里程碑通知没有 actor，自己点赞同样会触发
	notes := env.notifications(t, author.ID)
	require.Len(t, notes, 1)
	assert.Nil(t, notes[0].ActorID)
}
