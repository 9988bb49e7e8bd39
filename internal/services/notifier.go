package services

import (
	"context"
	"fmt"

	"keyopolls/internal/models"
	"keyopolls/internal/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Event 一次待发送的通知
type Event struct {
	RecipientID uint
	Actor       *models.Profile
	Type        models.NotificationType
	Title       string
	Message     string
	Target      models.ContentRef
	Priority    string
}

// Notifier persists in-app notifications and hands push/email delivery off to the
// Deliverer, inline or through the Dispatcher. Delivery errors never reach the caller.
// A nil *Notifier is valid and sends nothing.
type Notifier struct {
	db         *gorm.DB
	log        *zap.Logger
	prefs      *PreferenceStore
	rules      NotificationRules
	deliverer  JobDeliverer
	dispatcher *Dispatcher
	async      bool
}

// NewNotifier 异步开关来自配置，构造后不可修改
func NewNotifier(db *gorm.DB, log *zap.Logger, prefs *PreferenceStore, deliverer JobDeliverer, dispatcher *Dispatcher, async bool) *Notifier {
	return &Notifier{
		db:         db,
		log:        log,
		prefs:      prefs,
		deliverer:  deliverer,
		dispatcher: dispatcher,
		async:      async && dispatcher != nil,
	}
}

// Send applies the self-notify rule and the recipient's channel preferences. Social events
// (those with an actor) always land in the inbox; preferences only gate push and email.
// Returns the stored notification, or nil when nothing was sent.
func (n *Notifier) Send(ctx context.Context, ev Event) (*models.Notification, error) {
	if n == nil {
		return nil, nil
	}
	if ev.Actor != nil && !n.rules.ShouldNotifySocial(ev.Actor.ID, ev.RecipientID) {
		return nil, nil
	}
	pref, err := n.prefs.Get(ctx, ev.RecipientID, ev.Type)
	if err != nil {
		return nil, err
	}
	return n.send(ctx, ev, pref)
}

func (n *Notifier) send(ctx context.Context, ev Event, pref *models.NotificationPreference) (*models.Notification, error) {
	channels := n.rules.Channels(pref, ev.RecipientID, ev.Type)
	if ev.Actor != nil {
		channels.InApp = true
	}
	if !channels.Any() {
		return nil, nil
	}

	notification := &models.Notification{
		RecipientID: ev.RecipientID,
		Type:        ev.Type,
		Title:       ev.Title,
		Message:     ev.Message,
		Priority:    ev.Priority,
		ClickURL:    clickURL(ev.Target),
	}
	if notification.Priority == "" {
		notification.Priority = models.PriorityNormal
	}
	if ev.Actor != nil {
		notification.ActorID = &ev.Actor.ID
	}
	if !ev.Target.IsZero() {
		notification.TargetType = ev.Target.Kind
		notification.TargetID = utils.UintPtr(ev.Target.ID)
	}
	if err := n.db.WithContext(ctx).Omit("Recipient", "Actor").Create(notification).Error; err != nil {
		return nil, utils.WrapError(err, "create notification")
	}

	if channels.Push || channels.Email {
		n.deliver(ctx, DeliveryJob{
			NotificationID: notification.ID,
			Push:           channels.Push,
			Email:          channels.Email,
		})
	}
	return notification, nil
}

func (n *Notifier) deliver(ctx context.Context, job DeliveryJob) {
	if n.deliverer == nil {
		return
	}
	if n.async {
		n.dispatcher.Enqueue(job)
		return
	}
	if err := n.deliverer.Deliver(ctx, job); err != nil {
		n.log.Warn("Notification delivery failed",
			zap.Uint("notification_id", job.NotificationID),
			zap.Error(err))
	}
}

// notify 供业务路径调用：只记录日志，不向上返回错误
func (n *Notifier) notify(ctx context.Context, ev Event) {
	if _, err := n.Send(ctx, ev); err != nil {
		n.log.Warn("Send notification failed",
			zap.String("type", string(ev.Type)),
			zap.Uint("recipient_id", ev.RecipientID),
			zap.Error(err))
	}
}

// NotifyReply tells the parent comment's author about a reply.
func (n *Notifier) NotifyReply(ctx context.Context, actor *models.Profile, parent *models.Comment, reply *models.Comment) {
	if n == nil {
		return
	}
	n.notify(ctx, Event{
		RecipientID: parent.ProfileID,
		Actor:       actor,
		Type:        models.NotificationReply,
		Title:       "New Reply!",
		Message:     fmt.Sprintf("%s replied to your comment", actor.Handle()),
		Target:      models.CommentRef(reply.ID),
	})
}

// NotifyPollComment 新的顶层评论通知内容作者
func (n *Notifier) NotifyPollComment(ctx context.Context, actor *models.Profile, target ContentTarget, comment *models.Comment) {
	if n == nil {
		return
	}
	ev := Event{
		RecipientID: target.OwnerID(),
		Actor:       actor,
		Type:        models.NotificationPollComment,
		Title:       "New Comment!",
		Message:     fmt.Sprintf("%s commented on your poll", actor.Handle()),
		Target:      models.CommentRef(comment.ID),
	}
	if target.Ref().Kind == models.ContentComment {
		ev.Type = models.NotificationReply
		ev.Title = "New Reply!"
		ev.Message = fmt.Sprintf("%s replied to your comment", actor.Handle())
	}
	n.notify(ctx, ev)
}

func (n *Notifier) NotifyMention(ctx context.Context, actor *models.Profile, mentioned *models.Profile, comment *models.Comment) {
	if n == nil {
		return
	}
	n.notify(ctx, Event{
		RecipientID: mentioned.ID,
		Actor:       actor,
		Type:        models.NotificationMention,
		Title:       "You were mentioned!",
		Message:     fmt.Sprintf("%s mentioned you in a comment", actor.Handle()),
		Target:      models.CommentRef(comment.ID),
	})
}

func (n *Notifier) NotifyPollVote(ctx context.Context, actor *models.Profile, poll *models.Poll) {
	if n == nil {
		return
	}
	n.notify(ctx, Event{
		RecipientID: poll.ProfileID,
		Actor:       actor,
		Type:        models.NotificationPollVote,
		Title:       "New Vote!",
		Message:     fmt.Sprintf("%s voted on your poll", actor.Handle()),
		Target:      models.PollRef(poll.ID),
		Priority:    models.PriorityLow,
	})
}

var pollMilestoneMessages = map[models.NotificationType]string{
	models.NotificationVoteMilestone:     "🗳️ Your poll reached %d votes!",
	models.NotificationLikeMilestone:     "🎉 Your poll reached %d likes!",
	models.NotificationShareMilestone:    "🚀 Your poll was shared %d times!",
	models.NotificationBookmarkMilestone: "📚 Your poll was bookmarked %d times!",
	models.NotificationViewMilestone:     "👀 Your poll reached %d views!",
	models.NotificationRepliesMilestone:  "💬 Your poll received %d comments!",
}

var commentMilestoneMessages = map[models.NotificationType]string{
	models.NotificationLikeMilestone:     "🎉 Your comment reached %d likes!",
	models.NotificationRepliesMilestone:  "💬 Your comment received %d replies!",
	models.NotificationBookmarkMilestone: "📚 Your comment was bookmarked %d times!",
}

// NotifyMilestone fires only when count is exactly one of the recipient's thresholds.
func (n *Notifier) NotifyMilestone(ctx context.Context, recipientID uint, t models.NotificationType, count int, target models.ContentRef) {
	if n == nil {
		return
	}
	pref, err := n.prefs.Get(ctx, recipientID, t)
	if err != nil {
		n.log.Warn("Load preference failed", zap.Uint("recipient_id", recipientID), zap.Error(err))
		return
	}
	if !n.rules.ShouldSendMilestone(pref, t, count) {
		return
	}

	messages, noun := pollMilestoneMessages, "poll"
	if target.Kind == models.ContentComment {
		messages, noun = commentMilestoneMessages, "comment"
	}
	message := fmt.Sprintf("Your %s reached %d!", noun, count)
	if format, ok := messages[t]; ok {
		message = fmt.Sprintf(format, count)
	}

	ev := Event{
		RecipientID: recipientID,
		Type:        t,
		Title:       "Milestone Reached!",
		Message:     message,
		Target:      target,
	}
	if _, err := n.send(ctx, ev, pref); err != nil {
		n.log.Warn("Send milestone notification failed",
			zap.String("type", string(t)),
			zap.Uint("recipient_id", recipientID),
			zap.Error(err))
	}
}

func clickURL(ref models.ContentRef) string {
	switch ref.Kind {
	case models.ContentPoll:
		return fmt.Sprintf("/polls/%d", ref.ID)
	case models.ContentComment:
		return fmt.Sprintf("/comments/%d", ref.ID)
	default:
		return "/notifications"
	}
}
