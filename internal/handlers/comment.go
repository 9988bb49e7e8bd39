package handlers

import (
	"net/http"

	"keyopolls/internal/models"
	"keyopolls/internal/services"

	"github.com/gin-gonic/gin"
)

const (
	defaultParentLevels = 3
	defaultReplyDepth   = 6
)

type CommentHandler struct {
	comments *services.CommentService
}

func NewCommentHandler(comments *services.CommentService) *CommentHandler {
	return &CommentHandler{comments: comments}
}

// List GET /api/comments/:kind/:id
func (h *CommentHandler) List(c *gin.Context) {
	ref, ok := contentRef(c)
	if !ok {
		return
	}
	page, err := h.comments.ListComments(c.Request.Context(), ref, services.ListOptions{
		Sort:     c.Query("sort"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
		MaxDepth: queryInt(c, "max_depth", 0),
	}, currentProfile(c))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Create POST /api/comments/:kind/:id
func (h *CommentHandler) Create(c *gin.Context) {
	ref, ok := contentRef(c)
	if !ok {
		return
	}
	var in services.CommentInput
	if !bind(c, &in) {
		return
	}
	node, err := h.comments.CreateComment(c.Request.Context(), ref, currentProfile(c), in)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, node)
}

// Thread GET /api/comments/thread/:cid
func (h *CommentHandler) Thread(c *gin.Context) {
	id, ok := paramID(c, "cid")
	if !ok {
		return
	}
	view, err := h.comments.GetThread(c.Request.Context(), id,
		queryInt(c, "parent_levels", defaultParentLevels),
		queryInt(c, "reply_depth", defaultReplyDepth),
		currentProfile(c))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *CommentHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "cid")
	if !ok {
		return
	}
	node, err := h.comments.GetComment(c.Request.Context(), id, currentProfile(c))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, node)
}

func (h *CommentHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "cid")
	if !ok {
		return
	}
	var in services.CommentInput
	if !bind(c, &in) {
		return
	}
	node, err := h.comments.UpdateComment(c.Request.Context(), id, currentProfile(c), in)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, node)
}

func (h *CommentHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "cid")
	if !ok {
		return
	}
	if err := h.comments.DeleteComment(c.Request.Context(), id, currentProfile(c)); err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Comment deleted"})
}

type reactRequest struct {
	ReactionType models.ReactionType `json:"reaction_type" binding:"required"`
}

// React POST /api/comment/:cid/react
func (h *CommentHandler) React(c *gin.Context) {
	id, ok := paramID(c, "cid")
	if !ok {
		return
	}
	var req reactRequest
	if !bind(c, &req) {
		return
	}
	result, err := h.comments.ToggleReaction(c.Request.Context(), id, currentProfile(c), req.ReactionType)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type reportRequest struct {
	Reason string `json:"reason"`
}

func (h *CommentHandler) Report(c *gin.Context) {
	id, ok := paramID(c, "cid")
	if !ok {
		return
	}
	var req reportRequest
	if !bind(c, &req) {
		return
	}
	if err := h.comments.ReportComment(c.Request.Context(), id, currentProfile(c), req.Reason); err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Comment reported"})
}
