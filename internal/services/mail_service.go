package services

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"keyopolls/internal/models"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

//go:embed templates/*.html
var mailTemplates embed.FS

// MailSender sends the email copy of a notification.
type MailSender interface {
	SendNotification(ctx context.Context, to, recipientName string, n *models.Notification) error
}

var mailSubjects = map[models.NotificationType]string{
	models.NotificationPollComment:       "💬 New comment on your poll",
	models.NotificationPollVote:          "🗳️ Someone voted on your poll",
	models.NotificationReply:             "↩️ New reply to your comment",
	models.NotificationFollow:            "👋 You have a new follower",
	models.NotificationMention:           "📢 You were mentioned",
	models.NotificationVoteMilestone:     "🗳️ Your poll is getting votes!",
	models.NotificationLikeMilestone:     "🎉 Milestone reached!",
	models.NotificationShareMilestone:    "🚀 Your poll is trending!",
	models.NotificationBookmarkMilestone: "📚 People love your content!",
	models.NotificationViewMilestone:     "👀 Your poll is getting views!",
	models.NotificationFollowerMilestone: "🌟 Congratulations on your followers!",
	models.NotificationCommunityNewPoll:  "📊 New poll in your community",
	models.NotificationCommunityInvite:   "🏘️ Community invitation",
	models.NotificationFollowedUserPoll:  "📊 New poll from someone you follow",
	models.NotificationVerification:      "✅ Verification complete",
	models.NotificationWelcome:           "🎊 Welcome!",
}

// MailSubject 按通知类型取邮件标题，未配置的类型用通知标题
func MailSubject(n *models.Notification) string {
	if s, ok := mailSubjects[n.Type]; ok {
		return s
	}
	return "🔔 " + n.Title
}

// dialer 便于测试替换
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type MailService struct {
	dialer  dialer
	from    string
	baseURL string
	tmpl    *template.Template
	log     *zap.Logger
}

func NewMailService(host string, port int, username, password, from, baseURL string, log *zap.Logger) (*MailService, error) {
	tmpl, err := template.ParseFS(mailTemplates, "templates/notification.html")
	if err != nil {
		return nil, fmt.Errorf("parse mail template: %w", err)
	}
	return &MailService{
		dialer:  gomail.NewDialer(host, port, username, password),
		from:    from,
		baseURL: baseURL,
		tmpl:    tmpl,
		log:     log,
	}, nil
}

func (s *MailService) render(recipientName string, n *models.Notification) (string, error) {
	data := map[string]string{
		"RecipientName": recipientName,
		"Title":         n.Title,
		"Message":       n.Message,
		"ClickURL":      s.baseURL + n.ClickURL,
	}
	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render mail template: %w", err)
	}
	return buf.String(), nil
}

func (s *MailService) SendNotification(ctx context.Context, to, recipientName string, n *models.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := s.render(recipientName, n)
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", msg.FormatAddress(s.from, "Keyopolls"))
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", MailSubject(n))
	msg.SetBody("text/plain", n.Title+"\n\n"+n.Message+"\n\n"+s.baseURL+n.ClickURL)
	msg.AddAlternative("text/html", body)

	if err := s.dialer.DialAndSend(msg); err != nil {
		s.log.Warn("Failed to send email", zap.String("to", to), zap.Error(err))
		return err
	}
	s.log.Info("Email sent", zap.String("to", to), zap.String("type", string(n.Type)))
	return nil
}
