package models

import (
	"time"
)

type CommunityType string

const (
	CommunityPublic     CommunityType = "public"
	CommunityRestricted CommunityType = "restricted"
	CommunityPrivate    CommunityType = "private"
)

type Community struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	Name          string        `gorm:"size:100;not null;unique" json:"name"`
	Description   string        `json:"description"`
	CommunityType CommunityType `gorm:"type:varchar(20);not null;default:'public';index" json:"community_type"`
	MemberCount   int           `gorm:"default:0" json:"member_count"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// IsPublic 公开社区任何人可以直接参与，参与即自动加入
func (c *Community) IsPublic() bool {
	return c.CommunityType == "" || c.CommunityType == CommunityPublic
}

const (
	MembershipActive = "active"
	MembershipBanned = "banned"
	MembershipLeft   = "left"
)

// CommunityMembership 社区成员关系
type CommunityMembership struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ProfileID   uint      `gorm:"not null;uniqueIndex:idx_membership" json:"profile_id"`
	CommunityID uint      `gorm:"not null;uniqueIndex:idx_membership;index" json:"community_id"`
	Role        string    `gorm:"size:20;default:'member'" json:"role"` // member, moderator, creator
	Status      string    `gorm:"size:20;not null;default:'active'" json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func (m *CommunityMembership) IsActive() bool {
	return m.Status == MembershipActive
}
