package models

import (
	"time"
)

type NotificationType string

const (
	NotificationPollComment       NotificationType = "poll_comment"
	NotificationPollVote          NotificationType = "poll_vote"
	NotificationReply             NotificationType = "reply"
	NotificationFollow            NotificationType = "follow"
	NotificationMention           NotificationType = "mention"
	NotificationCommunityNewPoll  NotificationType = "community_new_poll"
	NotificationCommunityInvite   NotificationType = "community_invite"
	NotificationFollowedUserPoll  NotificationType = "followed_user_poll"
	NotificationVoteMilestone     NotificationType = "vote_milestone"
	NotificationLikeMilestone     NotificationType = "like_milestone"
	NotificationShareMilestone    NotificationType = "share_milestone"
	NotificationBookmarkMilestone NotificationType = "bookmark_milestone"
	NotificationViewMilestone     NotificationType = "view_milestone"
	NotificationFollowerMilestone NotificationType = "follower_milestone"
	NotificationRepliesMilestone  NotificationType = "replies_milestone"
	NotificationVerification      NotificationType = "verification"
	NotificationWelcome           NotificationType = "welcome"
	NotificationSystem            NotificationType = "system"
)

// AllNotificationTypes 用于校验偏好设置接口的 type 参数
var AllNotificationTypes = []NotificationType{
	NotificationPollComment, NotificationPollVote, NotificationReply, NotificationFollow,
	NotificationMention, NotificationCommunityNewPoll, NotificationCommunityInvite,
	NotificationFollowedUserPoll, NotificationVoteMilestone, NotificationLikeMilestone,
	NotificationShareMilestone, NotificationBookmarkMilestone, NotificationViewMilestone,
	NotificationFollowerMilestone, NotificationRepliesMilestone, NotificationVerification,
	NotificationWelcome, NotificationSystem,
}

func ParseNotificationType(s string) (NotificationType, bool) {
	for _, t := range AllNotificationTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

type Notification struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	RecipientID uint             `gorm:"not null;index" json:"recipient_id"`
	Recipient   Profile          `gorm:"foreignKey:RecipientID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	ActorID     *uint            `gorm:"index" json:"actor_id"`
	Actor       *Profile         `gorm:"foreignKey:ActorID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"actor,omitempty"`
	Type        NotificationType `gorm:"type:varchar(30);not null" json:"type"`
	Title       string           `gorm:"size:200" json:"title"`
	Message     string           `gorm:"type:text" json:"message"`
	TargetType  ContentKind      `gorm:"type:varchar(20)" json:"target_type,omitempty"`
	TargetID    *uint            `json:"target_id,omitempty"`
	ClickURL    string           `gorm:"size:500" json:"click_url"`
	Priority    string           `gorm:"size:10;default:'normal'" json:"priority"`
	IsRead      bool             `gorm:"default:false;index" json:"is_read"`
	PushSent    bool             `gorm:"default:false" json:"-"`
	PushSentAt  *time.Time       `json:"-"`
	EmailSent   bool             `gorm:"default:false" json:"-"`
	EmailSentAt *time.Time       `json:"-"`
	CreatedAt   time.Time        `gorm:"index" json:"created_at"`
}

// NotificationPreference 每个 (profile, type) 一条
type NotificationPreference struct {
	ID               uint             `gorm:"primaryKey" json:"id"`
	ProfileID        uint             `gorm:"not null;uniqueIndex:idx_pref_owner" json:"profile_id"`
	NotificationType NotificationType `gorm:"type:varchar(30);not null;uniqueIndex:idx_pref_owner" json:"notification_type"`
	InAppEnabled     bool             `gorm:"not null" json:"in_app_enabled"`
	PushEnabled      bool             `gorm:"not null" json:"push_enabled"`
	EmailEnabled     bool             `gorm:"not null" json:"email_enabled"`
	IsEnabled        bool             `gorm:"not null" json:"is_enabled"`
	CustomThresholds []int            `gorm:"type:text;serializer:json" json:"custom_thresholds"` // 为空时使用默认阈值
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// FCMDevice 推送设备
type FCMDevice struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ProfileID  uint      `gorm:"not null;index" json:"profile_id"`
	Token      string    `gorm:"size:512;not null;uniqueIndex" json:"token"`
	DeviceType string    `gorm:"size:20;not null" json:"device_type"` // ios, android, web
	Active     bool      `gorm:"default:true;not null" json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
