package handlers

import (
	"net/http"
	"time"

	"keyopolls/internal/services"

	"github.com/gin-gonic/gin"
)

// CommunityHandler 社区维度的连续打卡
type CommunityHandler struct {
	streaks *services.StreakService
	now     clock
}

func NewCommunityHandler(streaks *services.StreakService) *CommunityHandler {
	return &CommunityHandler{streaks: streaks, now: time.Now}
}

// Streak GET /api/communities/:id/streak
func (h *CommunityHandler) Streak(c *gin.Context) {
	communityID, ok := paramID(c, "id")
	if !ok {
		return
	}
	snap, err := h.streaks.GetStreak(c.Request.Context(), currentProfile(c).ID, communityID, h.now())
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Calendar GET /api/communities/:id/streak/calendar?days=
func (h *CommunityHandler) Calendar(c *gin.Context) {
	communityID, ok := paramID(c, "id")
	if !ok {
		return
	}
	cal, err := h.streaks.Calendar(c.Request.Context(), currentProfile(c).ID, communityID, queryInt(c, "days", 0), h.now())
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cal)
}
