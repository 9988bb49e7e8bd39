package services

import (
	"keyopolls/internal/models"
)

// DefaultThresholds 里程碑通知默认阈值，计数必须正好命中其中一个
var DefaultThresholds = map[models.NotificationType][]int{
	models.NotificationVoteMilestone:     {10, 25, 50, 100, 250, 500, 1000},
	models.NotificationLikeMilestone:     {1, 10, 50, 100, 500, 1000},
	models.NotificationShareMilestone:    {10, 50, 100, 500, 1000},
	models.NotificationBookmarkMilestone: {10, 30, 100, 500},
	models.NotificationViewMilestone:     {100, 500, 1000, 5000, 10000},
	models.NotificationFollowerMilestone: {10, 50, 100, 200, 500, 1000},
	models.NotificationRepliesMilestone:  {5, 10, 25, 50, 100, 250, 500},
}

var defaultPushTypes = map[models.NotificationType]bool{
	models.NotificationPollComment:     true,
	models.NotificationPollVote:        true,
	models.NotificationReply:           true,
	models.NotificationFollow:          true,
	models.NotificationMention:         true,
	models.NotificationCommunityInvite: true,
}

var defaultEmailTypes = map[models.NotificationType]bool{
	models.NotificationFollow:           true,
	models.NotificationMention:          true,
	models.NotificationVerification:     true,
	models.NotificationRepliesMilestone: true,
	models.NotificationVoteMilestone:    true,
	models.NotificationCommunityInvite:  true,
}

// DefaultPreference synthesizes the preference used when the profile never saved one.
func DefaultPreference(profileID uint, t models.NotificationType) models.NotificationPreference {
	return models.NotificationPreference{
		ProfileID:        profileID,
		NotificationType: t,
		InAppEnabled:     true,
		PushEnabled:      defaultPushTypes[t],
		EmailEnabled:     defaultEmailTypes[t],
		IsEnabled:        true,
	}
}

// Channels 一条通知要走的渠道
type Channels struct {
	InApp bool
	Push  bool
	Email bool
}

func (c Channels) Any() bool { return c.InApp || c.Push || c.Email }

// NotificationRules decides whether to notify. It never touches storage or delivery.
type NotificationRules struct{}

// ShouldSendMilestone 计数必须正好等于某个阈值；偏好被关闭时不发
func (NotificationRules) ShouldSendMilestone(pref *models.NotificationPreference, t models.NotificationType, count int) bool {
	if pref != nil && !pref.IsEnabled {
		return false
	}
	thresholds := DefaultThresholds[t]
	if pref != nil && len(pref.CustomThresholds) > 0 {
		thresholds = pref.CustomThresholds
	}
	for _, th := range thresholds {
		if th == count {
			return true
		}
	}
	return false
}

// ShouldNotifySocial 不给自己发通知
func (NotificationRules) ShouldNotifySocial(actorID, recipientID uint) bool {
	return actorID != recipientID
}

func (NotificationRules) Channels(pref *models.NotificationPreference, recipientID uint, t models.NotificationType) Channels {
	if pref == nil {
		def := DefaultPreference(recipientID, t)
		pref = &def
	}
	if !pref.IsEnabled {
		return Channels{}
	}
	return Channels{
		InApp: pref.InAppEnabled,
		Push:  pref.PushEnabled,
		Email: pref.EmailEnabled,
	}
}
