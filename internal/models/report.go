package models

import (
	"time"
)

// CommentReport 用户举报，提交即标记评论待审
type CommentReport struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ReporterID uint      `gorm:"not null;uniqueIndex:idx_report_once" json:"reporter_id"`
	Reporter   Profile   `gorm:"foreignKey:ReporterID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	CommentID  uint      `gorm:"not null;uniqueIndex:idx_report_once;index" json:"comment_id"`
	Reason     string    `gorm:"size:200;not null" json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}
