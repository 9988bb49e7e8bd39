package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"keyopolls/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deliverer 执行推送和邮件投递，并回写发送状态
type Deliverer struct {
	db   *gorm.DB
	log  *zap.Logger
	push PushSender
	mail MailSender
	now  func() time.Time
}

// NewDeliverer accepts nil senders; the corresponding channel is skipped.
func NewDeliverer(db *gorm.DB, log *zap.Logger, push PushSender, mail MailSender) *Deliverer {
	return &Deliverer{db: db, log: log, push: push, mail: mail, now: time.Now}
}

func (d *Deliverer) Deliver(ctx context.Context, job DeliveryJob) error {
	var n models.Notification
	if err := d.db.WithContext(ctx).Preload("Recipient").First(&n, job.NotificationID).Error; err != nil {
		return fmt.Errorf("load notification %d: %w", job.NotificationID, err)
	}

	var errs []error
	if job.Push && d.push != nil && !n.PushSent {
		if err := d.deliverPush(ctx, &n); err != nil {
			errs = append(errs, err)
		}
	}
	if job.Email && d.mail != nil && !n.EmailSent {
		if err := d.deliverEmail(ctx, &n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Deliverer) deliverPush(ctx context.Context, n *models.Notification) error {
	var tokens []string
	err := d.db.WithContext(ctx).Model(&models.FCMDevice{}).
		Where("profile_id = ? AND active = ?", n.RecipientID, true).
		Pluck("token", &tokens).Error
	if err != nil {
		return fmt.Errorf("load devices: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}

	data := map[string]string{
		"notification_id": strconv.FormatUint(uint64(n.ID), 10),
		"type":            string(n.Type),
		"click_url":       n.ClickURL,
	}
	invalid, err := d.push.Send(ctx, tokens, PushMessage{Title: n.Title, Body: n.Message, Data: data})
	if len(invalid) > 0 {
		if derr := d.db.WithContext(ctx).Model(&models.FCMDevice{}).
			Where("token IN ?", invalid).
			Update("active", false).Error; derr != nil {
			d.log.Warn("Deactivate invalid tokens failed", zap.Error(derr))
		}
	}
	if err != nil {
		return fmt.Errorf("push: %w", err)
	}
	if len(invalid) == len(tokens) {
		return nil
	}

	now := d.now()
	return d.db.WithContext(ctx).Model(n).Updates(map[string]interface{}{
		"push_sent":    true,
		"push_sent_at": now,
	}).Error
}

func (d *Deliverer) deliverEmail(ctx context.Context, n *models.Notification) error {
	if n.Recipient.Email == "" {
		return nil
	}
	if err := d.mail.SendNotification(ctx, n.Recipient.Email, n.Recipient.Handle(), n); err != nil {
		return fmt.Errorf("email: %w", err)
	}
	now := d.now()
	return d.db.WithContext(ctx).Model(n).Updates(map[string]interface{}{
		"email_sent":    true,
		"email_sent_at": now,
	}).Error
}
