package handlers

import (
	"net/http"
	"time"

	"keyopolls/internal/services"

	"github.com/gin-gonic/gin"
)

// ProfileHandler 当前用户的 aura 和打卡汇总
type ProfileHandler struct {
	aura    *services.AuraService
	streaks *services.StreakService
	now     clock
}

func NewProfileHandler(aura *services.AuraService, streaks *services.StreakService) *ProfileHandler {
	return &ProfileHandler{aura: aura, streaks: streaks, now: time.Now}
}

// AuraTransactions GET /api/profile/aura/transactions?limit=&offset=
func (h *ProfileHandler) AuraTransactions(c *gin.Context) {
	page, err := h.aura.Transactions(c.Request.Context(), currentProfile(c).ID,
		queryInt(c, "limit", 20), queryInt(c, "offset", 0))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Streaks GET /api/profile/streaks
func (h *ProfileHandler) Streaks(c *gin.Context) {
	summary, err := h.streaks.Summary(c.Request.Context(), currentProfile(c).ID, h.now())
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"streaks":              summary,
		"target_polls_per_day": h.streaks.DailyTarget(),
	})
}
