package handlers

import (
	"net/http"

	"keyopolls/internal/models"
	"keyopolls/internal/services"

	"github.com/gin-gonic/gin"
)

type PollHandler struct {
	polls   *services.PollService
	answers *services.PollAnswerService
}

func NewPollHandler(polls *services.PollService, answers *services.PollAnswerService) *PollHandler {
	return &PollHandler{polls: polls, answers: answers}
}

// Create POST /api/polls
func (h *PollHandler) Create(c *gin.Context) {
	var in services.PollInput
	if !bind(c, &in) {
		return
	}
	poll, err := h.polls.Create(c.Request.Context(), currentProfile(c), in)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, poll)
}

// Get GET /api/polls/:id
func (h *PollHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	detail, err := h.polls.Get(c.Request.Context(), id, currentProfile(c))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// List GET /api/polls?community_id=&author_id=&poll_type=&include_expired=
func (h *PollHandler) List(c *gin.Context) {
	page, err := h.polls.List(c.Request.Context(), currentProfile(c), services.PollFilter{
		CommunityID:    queryUint(c, "community_id"),
		AuthorID:       queryUint(c, "author_id"),
		PollType:       models.PollType(c.Query("poll_type")),
		IncludeExpired: c.Query("include_expired") == "true",
		Page:           queryInt(c, "page", 1),
		PageSize:       queryInt(c, "page_size", 20),
	})
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Vote POST /api/polls/:id/vote
// 投票、正确性判定、aura 和连续打卡在同一个事务里完成
func (h *PollHandler) Vote(c *gin.Context) {
	pollID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in services.AnswerInput
	if !bind(c, &in) {
		return
	}
	result, err := h.answers.CastVote(c.Request.Context(), currentProfile(c), pollID, in)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
