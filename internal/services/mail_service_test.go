package services

import (
	"context"
	"errors"
	"html/template"
	"testing"

	"keyopolls/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gopkg.in/gomail.v2"
)

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m...)
	return nil
}

func newTestMailService(t *testing.T, d dialer) *MailService {
	return &MailService{
		dialer:  d,
		from:    "noreply@keyopolls.test",
		baseURL: "https://keyopolls.test",
		tmpl:    template.Must(template.ParseFS(mailTemplates, "templates/notification.html")),
		log:     zaptest.NewLogger(t),
	}
}

func TestMailServiceRender(t *testing.T) {
	s := newTestMailService(t, &fakeDialer{})
	body, err := s.render("@bob", &models.Notification{
		Title:    "New Reply!",
		Message:  "<script>x</script> replied",
		ClickURL: "/comments/9",
	})
	require.NoError(t, err)
	assert.Contains(t, body, "Hi @bob,")
	assert.Contains(t, body, `href="https://keyopolls.test/comments/9"`)
	assert.Contains(t, body, "&lt;script&gt;")
	assert.NotContains(t, body, "<script>")
}

func TestMailServiceSendNotification(t *testing.T) {
	d := &fakeDialer{}
	s := newTestMailService(t, d)
	n := &models.Notification{Type: models.NotificationMention, Title: "You were mentioned!", ClickURL: "/comments/1"}

	require.NoError(t, s.SendNotification(context.Background(), "bob@example.com", "@bob", n))
	require.Len(t, d.sent, 1)
	assert.Equal(t, []string{"bob@example.com"}, d.sent[0].GetHeader("To"))
	assert.Contains(t, d.sent[0].GetHeader("From")[0], "noreply@keyopolls.test")

	d.err = errors.New("535 auth failed")
	assert.Error(t, s.SendNotification(context.Background(), "bob@example.com", "@bob", n))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.SendNotification(ctx, "bob@example.com", "@bob", n), context.Canceled)
}

func TestMailSubject(t *testing.T) {
	assert.Equal(t, "📢 You were mentioned", MailSubject(&models.Notification{Type: models.NotificationMention}))
	assert.Equal(t, "🔔 Maintenance tonight", MailSubject(&models.Notification{Type: models.NotificationSystem, Title: "Maintenance tonight"}))
}
