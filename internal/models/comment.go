package models

import (
	"errors"
	"time"
)

type ModerationStatus string

const (
	ModerationPending  ModerationStatus = "pending"
	ModerationApproved ModerationStatus = "approved"
	ModerationRejected ModerationStatus = "rejected"
)

const (
	MaxCommentLength       = 1000
	DefaultTakedownReason  = "Violated community standards"
	RejectedTakedownReason = "Rejected by moderator"
)

// ErrInvalidTransition 审核状态机不允许的迁移
var ErrInvalidTransition = errors.New("invalid moderation transition")

type Comment struct {
	ID               uint             `gorm:"primaryKey" json:"id"`
	Content          string           `gorm:"type:text;not null" json:"content"`
	ProfileID        uint             `gorm:"not null;index" json:"profile_id"`
	Profile          Profile          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	ContentType      ContentKind      `gorm:"type:varchar(20);not null;index:idx_comment_target" json:"content_type"`
	ObjectID         uint             `gorm:"not null;index:idx_comment_target" json:"object_id"`
	ParentID         *uint            `gorm:"index" json:"parent_id"` // Nullable for top-level comments
	Parent           *Comment         `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"-"`
	Depth            int              `gorm:"default:0;not null" json:"depth"`
	LikeCount        int              `gorm:"default:0" json:"like_count"`
	DislikeCount     int              `gorm:"default:0" json:"dislike_count"`
	ReplyCount       int              `gorm:"default:0" json:"reply_count"`
	ShareCount       int              `gorm:"default:0" json:"share_count"`
	BookmarkCount    int              `gorm:"default:0" json:"bookmark_count"`
	ImpressionsCount int              `gorm:"default:0" json:"impressions_count"`
	CommentCount     int              `gorm:"default:0" json:"comment_count"` // 以本评论为内容对象的评论数
	ModerationStatus ModerationStatus `gorm:"type:varchar(20);default:'approved';not null;index" json:"moderation_status"`
	IsFlagged        bool             `gorm:"default:false" json:"is_flagged"`
	FlagReason       string           `gorm:"type:text" json:"-"`
	IsTakenDown      bool             `gorm:"default:false;index" json:"is_taken_down"`
	TakedownReason   string           `gorm:"type:text" json:"-"`
	TakedownDate     *time.Time       `json:"-"`
	TakenDownByID    *uint            `json:"-"`
	IsAutoModerated  bool             `gorm:"default:false" json:"-"`
	IsDeleted        bool             `gorm:"default:false;index" json:"is_deleted"`
	IsEdited         bool             `gorm:"default:false" json:"is_edited"`
	CreatedAt        time.Time        `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

func (c *Comment) Ref() ContentRef {
	return ContentRef{Kind: c.ContentType, ID: c.ObjectID}
}

// IsLive 可见性：未删除、未下架且已通过审核
func (c *Comment) IsLive() bool {
	return !c.IsDeleted && !c.IsTakenDown && c.ModerationStatus == ModerationApproved
}

// Flag marks the comment for review. Rejected or taken-down comments cannot be flagged.
func (c *Comment) Flag(reason string) error {
	if c.ModerationStatus == ModerationRejected || c.IsTakenDown {
		return ErrInvalidTransition
	}
	c.IsFlagged = true
	c.FlagReason = reason
	c.ModerationStatus = ModerationPending
	return nil
}

// Approve 通过审核
func (c *Comment) Approve() error {
	if c.ModerationStatus == ModerationApproved && !c.IsFlagged {
		return ErrInvalidTransition
	}
	c.IsFlagged = false
	c.ModerationStatus = ModerationApproved
	return nil
}

// Reject 驳回并下架
func (c *Comment) Reject(by *uint, now time.Time) error {
	if c.ModerationStatus == ModerationRejected {
		return ErrInvalidTransition
	}
	reason := c.FlagReason
	if reason == "" {
		reason = RejectedTakedownReason
	}
	c.IsFlagged = false
	c.ModerationStatus = ModerationRejected
	c.IsTakenDown = true
	c.TakedownReason = reason
	c.TakedownDate = &now
	c.TakenDownByID = by
	return nil
}

func (c *Comment) TakeDown(reason string, by *uint, auto bool, now time.Time) error {
	if c.IsTakenDown {
		return ErrInvalidTransition
	}
	if reason == "" {
		reason = DefaultTakedownReason
	}
	c.IsTakenDown = true
	c.TakedownReason = reason
	c.TakedownDate = &now
	c.TakenDownByID = by
	c.IsAutoModerated = auto
	return nil
}

// Restore clears takedown fields only; moderation status is left alone.
func (c *Comment) Restore() error {
	if !c.IsTakenDown {
		return ErrInvalidTransition
	}
	c.IsTakenDown = false
	c.TakedownReason = ""
	c.TakedownDate = nil
	c.TakenDownByID = nil
	return nil
}

// CommentMedia 评论附带的单个媒体
type CommentMedia struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CommentID uint      `gorm:"not null;uniqueIndex" json:"-"`
	MediaType string    `gorm:"size:20;not null" json:"media_type"` // image, gif, video
	URL       string    `gorm:"size:500;not null" json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// CommentLink 评论附带的单个链接
type CommentLink struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CommentID   uint      `gorm:"not null;uniqueIndex" json:"-"`
	URL         string    `gorm:"size:500;not null" json:"url"`
	DisplayText string    `gorm:"size:200" json:"display_text"`
	CreatedAt   time.Time `json:"created_at"`
}
