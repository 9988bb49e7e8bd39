package router

import (
	"net/http"
	"time"

	"keyopolls/internal/handlers"
	"keyopolls/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers 路由需要的全部 handler
type Handlers struct {
	Comments      *handlers.CommentHandler
	Moderation    *handlers.ModerationHandler
	Polls         *handlers.PollHandler
	Communities   *handlers.CommunityHandler
	Profile       *handlers.ProfileHandler
	Bookmarks     *handlers.BookmarkHandler
	Notifications *handlers.NotificationHandler
}

// New builds the gin engine with middleware and the /api route table.
func New(log *zap.Logger, auth *middleware.Auth, origins []string, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowHeaders:  []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}))

	RegisterRoutes(r, auth, h)
	return r
}

func RegisterRoutes(r *gin.Engine, auth *middleware.Auth, h Handlers) {
	api := r.Group("/api")
	api.Use(auth.LoadProfile())

	api.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 公共路由 (Public Routes)，登录后带上当前用户的反应/收藏状态
	api.GET("/comments/:kind/:id", h.Comments.List)     // 评论列表
	api.GET("/comments/thread/:cid", h.Comments.Thread) // 以单条评论为中心的线程
	api.GET("/comment/:cid", h.Comments.Get)            // 单条评论
	api.GET("/polls", h.Polls.List)                     // 投票列表
	api.GET("/polls/:id", h.Polls.Get)                  // 单个投票

	// 受保护路由 (Protected Routes)
	authorized := api.Group("")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.POST("/comments/:kind/:id", h.Comments.Create)  // 发表评论
		authorized.PATCH("/comment/:cid", h.Comments.Update)       // 编辑评论
		authorized.DELETE("/comment/:cid", h.Comments.Delete)      // 删除评论
		authorized.POST("/comment/:cid/react", h.Comments.React)   // 点赞/踩
		authorized.POST("/comment/:cid/report", h.Comments.Report) // 举报

		authorized.POST("/polls", h.Polls.Create)                   // 创建投票
		authorized.POST("/polls/:id/vote", h.Polls.Vote)            // 投票
		authorized.POST("/bookmarks/:kind/:id", h.Bookmarks.Toggle) // 收藏/取消收藏

		authorized.GET("/communities/:id/streak", h.Communities.Streak)
		authorized.GET("/communities/:id/streak/calendar", h.Communities.Calendar)
		authorized.GET("/profile/streaks", h.Profile.Streaks)
		authorized.GET("/profile/aura/transactions", h.Profile.AuraTransactions)

		authorized.GET("/notifications", h.Notifications.List)
		authorized.GET("/notifications/unread-count", h.Notifications.UnreadCount)
		authorized.POST("/notifications/read-all", h.Notifications.ReadAll)
		authorized.POST("/notifications/:id/read", h.Notifications.Read)
		authorized.DELETE("/notifications/:id", h.Notifications.Delete)
		authorized.GET("/notifications/preferences", h.Notifications.Preferences)
		authorized.PUT("/notifications/preferences/:type", h.Notifications.UpdatePreference)

		authorized.POST("/devices", h.Notifications.RegisterDevice)
		authorized.DELETE("/devices/:token", h.Notifications.UnregisterDevice)
	}

	// 版主路由 (Moderator Routes)
	moderation := authorized.Group("/moderation")
	moderation.Use(middleware.ModeratorRequired())
	{
		moderation.POST("/comment/:cid/:action", h.Moderation.Moderate)
	}
}
