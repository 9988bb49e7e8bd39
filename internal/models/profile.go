package models

import (
	"time"
)

const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// Profile 伪匿名用户档案
type Profile struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Username    string    `gorm:"size:50;uniqueIndex;not null" json:"username"`
	DisplayName string    `gorm:"size:100" json:"display_name"`
	Email       string    `gorm:"size:255;index" json:"-"`
	Avatar      string    `gorm:"size:255" json:"avatar"`
	Role        string    `gorm:"size:20;default:'user';not null" json:"role"` // user, moderator, admin
	TotalAura   int       `gorm:"default:0;not null" json:"total_aura"`        // 缓存值，以 AuraTransaction 为准
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsModerator 版主或管理员
func (p *Profile) IsModerator() bool {
	return p != nil && (p.Role == RoleModerator || p.Role == RoleAdmin)
}

// Handle returns "@username", or display name when username is empty.
func (p *Profile) Handle() string {
	if p == nil {
		return "Someone"
	}
	if p.Username != "" {
		return "@" + p.Username
	}
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return "Someone"
}

// AuthorInfo 评论作者的公开信息
type AuthorInfo struct {
	ID          uint   `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar"`
	TotalAura   int    `json:"total_aura"`
}

func (p *Profile) Info() AuthorInfo {
	return AuthorInfo{
		ID:          p.ID,
		Username:    p.Username,
		DisplayName: p.DisplayName,
		Avatar:      p.Avatar,
		TotalAura:   p.TotalAura,
	}
}
