package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"keyopolls/internal/models"
	"keyopolls/internal/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const preferenceCacheTTL = 10 * time.Minute

// PreferenceCache is a shared second-level cache in front of the preference table.
type PreferenceCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RedisPreferenceCache 基于 go-redis 的实现
type RedisPreferenceCache struct {
	client *redis.Client
}

func NewRedisPreferenceCache(client *redis.Client) *RedisPreferenceCache {
	return &RedisPreferenceCache{client: client}
}

func (c *RedisPreferenceCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisPreferenceCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisPreferenceCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// PreferenceStore 通知偏好：进程内 LRU -> 可选 redis -> 数据库
type PreferenceStore struct {
	db     *gorm.DB
	log    *zap.Logger
	local  *utils.LocalCache
	shared PreferenceCache
	ttl    time.Duration
}

func NewPreferenceStore(db *gorm.DB, log *zap.Logger, shared PreferenceCache, ttl time.Duration) (*PreferenceStore, error) {
	local, err := utils.NewLocalCache(4096)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = preferenceCacheTTL
	}
	return &PreferenceStore{db: db, log: log, local: local, shared: shared, ttl: ttl}, nil
}

func preferenceKey(profileID uint, t models.NotificationType) string {
	return fmt.Sprintf("notif_prefs:%d:%s", profileID, t)
}

// Get returns the stored preference, or nil when the profile never saved one for this type.
func (s *PreferenceStore) Get(ctx context.Context, profileID uint, t models.NotificationType) (*models.NotificationPreference, error) {
	key := preferenceKey(profileID, t)

	if cached := s.local.Get(key); cached != nil {
		return presentPreference(cached.(models.NotificationPreference)), nil
	}

	if s.shared != nil {
		raw, ok, err := s.shared.Get(ctx, key)
		if err != nil {
			s.log.Warn("Preference cache read failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			var pref models.NotificationPreference
			if err := json.Unmarshal(raw, &pref); err == nil {
				s.local.Set(key, pref, s.ttl)
				return presentPreference(pref), nil
			}
		}
	}

	// ID 为 0 表示“没有记录”，同样缓存
	var pref models.NotificationPreference
	err := s.db.WithContext(ctx).
		Where("profile_id = ? AND notification_type = ?", profileID, t).
		First(&pref).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.WrapError(err, "load notification preference")
	}

	s.remember(ctx, key, pref)
	return presentPreference(pref), nil
}

func presentPreference(pref models.NotificationPreference) *models.NotificationPreference {
	if pref.ID == 0 {
		return nil
	}
	return &pref
}

func (s *PreferenceStore) remember(ctx context.Context, key string, pref models.NotificationPreference) {
	s.local.Set(key, pref, s.ttl)
	if s.shared == nil {
		return
	}
	raw, err := json.Marshal(pref)
	if err != nil {
		return
	}
	if err := s.shared.Set(ctx, key, raw, s.ttl); err != nil {
		s.log.Warn("Preference cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *PreferenceStore) forget(ctx context.Context, key string) {
	s.local.Delete(key)
	if s.shared == nil {
		return
	}
	if err := s.shared.Delete(ctx, key); err != nil {
		s.log.Warn("Preference cache delete failed", zap.String("key", key), zap.Error(err))
	}
}

// PreferenceInput 只更新非空字段
type PreferenceInput struct {
	InAppEnabled     *bool `json:"in_app_enabled"`
	PushEnabled      *bool `json:"push_enabled"`
	EmailEnabled     *bool `json:"email_enabled"`
	IsEnabled        *bool `json:"is_enabled"`
	CustomThresholds []int `json:"custom_thresholds" validate:"omitempty,max=20,dive,gt=0"`
}

// Upsert creates the row from defaults on first write, then applies the given fields.
func (s *PreferenceStore) Upsert(ctx context.Context, profileID uint, t models.NotificationType, in PreferenceInput) (*models.NotificationPreference, error) {
	var pref models.NotificationPreference
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		def := DefaultPreference(profileID, t)
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&def).Error; err != nil {
			return err
		}
		if err := tx.Where("profile_id = ? AND notification_type = ?", profileID, t).First(&pref).Error; err != nil {
			return err
		}

		if in.InAppEnabled != nil {
			pref.InAppEnabled = *in.InAppEnabled
		}
		if in.PushEnabled != nil {
			pref.PushEnabled = *in.PushEnabled
		}
		if in.EmailEnabled != nil {
			pref.EmailEnabled = *in.EmailEnabled
		}
		if in.IsEnabled != nil {
			pref.IsEnabled = *in.IsEnabled
		}
		if in.CustomThresholds != nil {
			pref.CustomThresholds = in.CustomThresholds
		}
		return tx.Save(&pref).Error
	})
	if err != nil {
		return nil, utils.WrapError(err, "save notification preference")
	}

	s.forget(ctx, preferenceKey(profileID, t))
	return &pref, nil
}

// List 返回所有类型的有效偏好，未保存过的类型用默认值补齐
func (s *PreferenceStore) List(ctx context.Context, profileID uint) ([]models.NotificationPreference, error) {
	var saved []models.NotificationPreference
	if err := s.db.WithContext(ctx).Where("profile_id = ?", profileID).Find(&saved).Error; err != nil {
		return nil, utils.WrapError(err, "list notification preferences")
	}
	byType := make(map[models.NotificationType]models.NotificationPreference, len(saved))
	for _, p := range saved {
		byType[p.NotificationType] = p
	}

	out := make([]models.NotificationPreference, 0, len(models.AllNotificationTypes))
	for _, t := range models.AllNotificationTypes {
		if p, ok := byType[t]; ok {
			out = append(out, p)
			continue
		}
		out = append(out, DefaultPreference(profileID, t))
	}
	return out, nil
}
