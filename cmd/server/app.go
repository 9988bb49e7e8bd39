package main

import (
	"context"
	"fmt"

	"keyopolls/internal/config"
	"keyopolls/internal/db"
	"keyopolls/internal/handlers"
	"keyopolls/internal/middleware"
	"keyopolls/internal/router"
	"keyopolls/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app 组装好的服务和 HTTP 引擎
type app struct {
	engine     *gin.Engine
	dispatcher *services.Dispatcher
	closers    []func() error
	log        *zap.Logger
}

// newApp wires every service. Redis, FCM and SMTP are optional; when one is not
// configured the matching channel is skipped.
func newApp(ctx context.Context, cfg *config.Config, conn *gorm.DB, log *zap.Logger) (*app, error) {
	a := &app{log: log}

	var shared services.PreferenceCache
	if cfg.Redis.Enabled() {
		client, err := db.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		shared = services.NewRedisPreferenceCache(client)
	} else {
		log.Info("Redis not configured, preference cache is process-local")
	}

	prefs, err := services.NewPreferenceStore(conn, log, shared, cfg.Redis.TTL)
	if err != nil {
		return nil, fmt.Errorf("init preference store: %w", err)
	}

	var push services.PushSender
	if cfg.Firebase.Enabled() {
		fcm, err := services.NewFCMPushService(ctx, cfg.Firebase.CredentialsFile)
		if err != nil {
			return nil, err
		}
		push = fcm
	} else {
		log.Info("Firebase not configured, push notifications disabled")
	}

	var mail services.MailSender
	if cfg.SMTP.Enabled() {
		m, err := services.NewMailService(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username,
			cfg.SMTP.Password, cfg.SMTP.From, cfg.BaseURL, log)
		if err != nil {
			return nil, err
		}
		mail = m
	} else {
		log.Info("SMTP not configured, email notifications disabled")
	}

	deliverer := services.NewDeliverer(conn, log, push, mail)
	a.dispatcher = services.NewDispatcher(deliverer, log, cfg.Notifications.QueueSize)
	notifier := services.NewNotifier(conn, log, prefs, deliverer, a.dispatcher, cfg.Notifications.Async)

	tree := services.NewTreeBuilder(conn, nil)
	comments := services.NewCommentService(conn, log, tree, notifier, cfg.Comments.MaxDepth)
	aura := services.NewAuraService(conn, log, cfg.Streak.AuraPerPoll)
	streaks := services.NewStreakService(conn, log, cfg.Streak.DailyTarget)
	answers := services.NewPollAnswerService(conn, log, aura, streaks, notifier)
	polls := services.NewPollService(conn, log)
	bookmarks := services.NewBookmarkService(conn, log, notifier)
	inbox := services.NewInboxService(conn, log)

	auth := middleware.NewAuth(conn, cfg.JWTSecret, log)
	a.engine = router.New(log, auth, cfg.FrontOrigins, router.Handlers{
		Comments:      handlers.NewCommentHandler(comments),
		Moderation:    handlers.NewModerationHandler(comments),
		Polls:         handlers.NewPollHandler(polls, answers),
		Communities:   handlers.NewCommunityHandler(streaks),
		Profile:       handlers.NewProfileHandler(aura, streaks),
		Bookmarks:     handlers.NewBookmarkHandler(bookmarks),
		Notifications: handlers.NewNotificationHandler(inbox, prefs),
	})
	return a, nil
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.log.Warn("Close resource failed", zap.Error(err))
		}
	}
}
