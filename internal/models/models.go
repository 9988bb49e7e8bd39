package models

// All 返回需要迁移的全部模型，顺序即建表顺序
func All() []interface{} {
	return []interface{}{
		&Profile{},
		&Community{},
		&CommunityMembership{},
		&Poll{},
		&PollOption{},
		&PollVote{},
		&PollTextResponse{},
		&Comment{},
		&CommentMedia{},
		&CommentLink{},
		&CommentReaction{},
		&CommentReport{},
		&Bookmark{},
		&AuraTransaction{},
		&PollAnswerResult{},
		&CommunityStreakActivity{},
		&CommunityStreak{},
		&Notification{},
		&NotificationPreference{},
		&FCMDevice{},
	}
}
