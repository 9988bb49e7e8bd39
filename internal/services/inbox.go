package services

import (
	"context"
	"strings"

	"keyopolls/internal/models"
	"keyopolls/internal/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultInboxPageSize = 20
	maxInboxPageSize     = 100
)

// InboxFilter 通知列表的筛选条件，空值表示不过滤
type InboxFilter struct {
	Page     int
	PageSize int
	Unread   bool
	Type     models.NotificationType
}

type InboxPage struct {
	Notifications []models.Notification `json:"notifications"`
	Total         int64                 `json:"total"`
	UnreadCount   int64                 `json:"unread_count"`
	Page          int                   `json:"page"`
	Pages         int                   `json:"pages"`
	PageSize      int                   `json:"page_size"`
	HasNext       bool                  `json:"has_next"`
	HasPrevious   bool                  `json:"has_previous"`
}

// InboxService reads and updates a profile's in-app notifications. Every query is
// scoped to the recipient, so another profile's notification looks like a missing one.
type InboxService struct {
	db        *gorm.DB
	log       *zap.Logger
	validator *utils.Validator
}

func NewInboxService(conn *gorm.DB, log *zap.Logger) *InboxService {
	return &InboxService{db: conn, log: log, validator: utils.NewValidator()}
}

func (s *InboxService) scoped(ctx context.Context, profileID uint) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.Notification{}).Where("recipient_id = ?", profileID)
}

// List 最新的在前
func (s *InboxService) List(ctx context.Context, profileID uint, f InboxFilter) (*InboxPage, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = defaultInboxPageSize
	}
	if f.PageSize > maxInboxPageSize {
		return nil, utils.Validationf("page_size must be at most %d", maxInboxPageSize)
	}

	q := s.scoped(ctx, profileID)
	if f.Unread {
		q = q.Where("is_read = ?", false)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}

	page := &InboxPage{Page: f.Page, PageSize: f.PageSize, Notifications: []models.Notification{}}
	if err := q.Session(&gorm.Session{}).Count(&page.Total).Error; err != nil {
		return nil, utils.WrapError(err, "count notifications")
	}
	err := q.Session(&gorm.Session{}).Preload("Actor").
		Order("created_at DESC, id DESC").
		Offset((f.Page - 1) * f.PageSize).
		Limit(f.PageSize).
		Find(&page.Notifications).Error
	if err != nil {
		return nil, utils.WrapError(err, "list notifications")
	}

	unread, err := s.UnreadCount(ctx, profileID)
	if err != nil {
		return nil, err
	}
	page.UnreadCount = unread
	page.Pages = int((page.Total + int64(f.PageSize) - 1) / int64(f.PageSize))
	page.HasNext = f.Page < page.Pages
	page.HasPrevious = f.Page > 1
	return page, nil
}

func (s *InboxService) UnreadCount(ctx context.Context, profileID uint) (int64, error) {
	var n int64
	if err := s.scoped(ctx, profileID).Where("is_read = ?", false).Count(&n).Error; err != nil {
		return 0, utils.WrapError(err, "count unread notifications")
	}
	return n, nil
}

func (s *InboxService) MarkRead(ctx context.Context, profileID, id uint) error {
	res := s.scoped(ctx, profileID).Where("id = ?", id).Update("is_read", true)
	if res.Error != nil {
		return utils.WrapError(res.Error, "mark notification read")
	}
	if res.RowsAffected == 0 {
		return utils.NotFound("Notification not found")
	}
	return nil
}

// MarkAllRead returns how many notifications changed. t narrows it to one type.
func (s *InboxService) MarkAllRead(ctx context.Context, profileID uint, t models.NotificationType) (int64, error) {
	q := s.scoped(ctx, profileID).Where("is_read = ?", false)
	if t != "" {
		q = q.Where("type = ?", t)
	}
	res := q.Update("is_read", true)
	if res.Error != nil {
		return 0, utils.WrapError(res.Error, "mark notifications read")
	}
	return res.RowsAffected, nil
}

func (s *InboxService) Delete(ctx context.Context, profileID, id uint) error {
	res := s.db.WithContext(ctx).Where("recipient_id = ? AND id = ?", profileID, id).Delete(&models.Notification{})
	if res.Error != nil {
		return utils.WrapError(res.Error, "delete notification")
	}
	if res.RowsAffected == 0 {
		return utils.NotFound("Notification not found")
	}
	return nil
}

// DeviceInput 注册推送设备
type DeviceInput struct {
	Token      string `json:"token" validate:"required,max=512"`
	DeviceType string `json:"device_type" validate:"required,oneof=ios android web"`
}

// RegisterDevice upserts by token. A token seen before moves to this profile and is reactivated.
func (s *InboxService) RegisterDevice(ctx context.Context, profileID uint, in DeviceInput) (*models.FCMDevice, error) {
	in.Token = strings.TrimSpace(in.Token)
	if err := s.validator.Validate(in); err != nil {
		return nil, err
	}

	var device models.FCMDevice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("token = ?", in.Token).Take(&device).Error
		if isNotFound(err) {
			device = models.FCMDevice{ProfileID: profileID, Token: in.Token, DeviceType: in.DeviceType, Active: true}
			return tx.Create(&device).Error
		}
		if err != nil {
			return err
		}
		device.ProfileID = profileID
		device.DeviceType = in.DeviceType
		device.Active = true
		return tx.Save(&device).Error
	})
	if err != nil {
		return nil, wrapDBError(err, "register device")
	}
	s.log.Info("Push device registered",
		zap.Uint("profile_id", profileID),
		zap.String("device_type", device.DeviceType))
	return &device, nil
}

// UnregisterDevice 只停用，不删除记录
func (s *InboxService) UnregisterDevice(ctx context.Context, profileID uint, token string) error {
	res := s.db.WithContext(ctx).Model(&models.FCMDevice{}).
		Where("profile_id = ? AND token = ?", profileID, token).
		Update("active", false)
	if res.Error != nil {
		return utils.WrapError(res.Error, "unregister device")
	}
	if res.RowsAffected == 0 {
		return utils.NotFound("Device not found")
	}
	return nil
}
