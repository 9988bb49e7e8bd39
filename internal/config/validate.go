package config

import (
	"fmt"
)

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Streak.DailyTarget < 1 {
		return fmt.Errorf("STREAK_DAILY_TARGET must be at least 1, got %d", c.Streak.DailyTarget)
	}
	if c.Streak.AuraPerPoll < 0 {
		return fmt.Errorf("AURA_PER_POLL must not be negative, got %d", c.Streak.AuraPerPoll)
	}
	if c.Comments.MaxDepth < 1 {
		return fmt.Errorf("COMMENTS_MAX_DEPTH must be at least 1, got %d", c.Comments.MaxDepth)
	}
	if c.Notifications.QueueSize < 1 {
		c.Notifications.QueueSize = 1000
	}
	return nil
}
