package services

import (
	"testing"

	"keyopolls/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestShouldSendMilestone(t *testing.T) {
	rules := NotificationRules{}
	custom := &models.NotificationPreference{IsEnabled: true, CustomThresholds: []int{3, 7}}
	off := &models.NotificationPreference{IsEnabled: false}

	tests := []struct {
		name  string
		pref  *models.NotificationPreference
		t     models.NotificationType
		count int
		want  bool
	}{
		{"default exact", nil, models.NotificationVoteMilestone, 10, true},
		{"default between", nil, models.NotificationVoteMilestone, 11, false},
		{"default above last", nil, models.NotificationVoteMilestone, 5000, false},
		{"first like", nil, models.NotificationLikeMilestone, 1, true},
		{"custom hit", custom, models.NotificationVoteMilestone, 7, true},
		{"custom replaces default", custom, models.NotificationVoteMilestone, 10, false},
		{"disabled", off, models.NotificationVoteMilestone, 10, false},
		{"type without thresholds", nil, models.NotificationReply, 10, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rules.ShouldSendMilestone(tt.pref, tt.t, tt.count))
		})
	}
}

func TestShouldNotifySocial(t *testing.T) {
	rules := NotificationRules{}
	assert.False(t, rules.ShouldNotifySocial(1, 1))
	assert.True(t, rules.ShouldNotifySocial(1, 2))
}

func TestChannels(t *testing.T) {
	rules := NotificationRules{}

	got := rules.Channels(nil, 1, models.NotificationMention)
	assert.Equal(t, Channels{InApp: true, Push: true, Email: true}, got)

	got = rules.Channels(nil, 1, models.NotificationLikeMilestone)
	assert.Equal(t, Channels{InApp: true}, got)

	pref := &models.NotificationPreference{IsEnabled: true, InAppEnabled: false, PushEnabled: true}
	got = rules.Channels(pref, 1, models.NotificationReply)
	assert.Equal(t, Channels{Push: true}, got)
	assert.True(t, got.Any())

	pref = &models.NotificationPreference{IsEnabled: false, InAppEnabled: true, PushEnabled: true, EmailEnabled: true}
	assert.False(t, rules.Channels(pref, 1, models.NotificationReply).Any())
}
