package handlers

import (
	"net/http"

	"keyopolls/internal/services"

	"github.com/gin-gonic/gin"
)

// ModerationHandler 版主操作，路由层已限制为版主
type ModerationHandler struct {
	comments *services.CommentService
}

func NewModerationHandler(comments *services.CommentService) *ModerationHandler {
	return &ModerationHandler{comments: comments}
}

type moderateRequest struct {
	Reason string `json:"reason"`
}

// Moderate POST /api/moderation/comment/:cid/:action
func (h *ModerationHandler) Moderate(c *gin.Context) {
	id, ok := paramID(c, "cid")
	if !ok {
		return
	}
	action, err := services.ParseModerationAction(c.Param("action"))
	if err != nil {
		Fail(c, err)
		return
	}
	var req moderateRequest
	// reason 可选，允许空 body
	if c.Request.ContentLength > 0 && !bind(c, &req) {
		return
	}

	comment, err := h.comments.Moderate(c.Request.Context(), id, action, currentProfile(c), req.Reason)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":                comment.ID,
		"moderation_status": comment.ModerationStatus,
		"is_taken_down":     comment.IsTakenDown,
	})
}
