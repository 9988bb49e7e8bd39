package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"keyopolls/internal/db"
	"keyopolls/internal/models"
	"keyopolls/internal/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var mentionPattern = regexp.MustCompile(`@([A-Za-z0-9_]{1,50})`)

const maxMentionsPerComment = 10

type MediaInput struct {
	MediaType string `json:"media_type" validate:"required,oneof=image gif video"`
	URL       string `json:"url" validate:"required,httpurl,max=500"`
}

type LinkInput struct {
	URL         string `json:"url" validate:"required,httpurl,max=500"`
	DisplayText string `json:"display_text" validate:"max=200"`
}

// CommentInput 创建/编辑评论的请求体，编辑时忽略 parent_id
type CommentInput struct {
	Content  string       `json:"content" validate:"required"`
	ParentID *uint        `json:"parent_id"`
	Media    []MediaInput `json:"media" validate:"max=1,dive"`
	Link     *LinkInput   `json:"link"`
}

// CommentService owns comment writes and the read paths that build threads.
type CommentService struct {
	db        *gorm.DB
	log       *zap.Logger
	tree      *TreeBuilder
	notifier  *Notifier
	validator *utils.Validator
	maxDepth  int
	now       func() time.Time
}

func NewCommentService(conn *gorm.DB, log *zap.Logger, tree *TreeBuilder, notifier *Notifier, maxDepth int) *CommentService {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &CommentService{
		db:        conn,
		log:       log,
		tree:      tree,
		notifier:  notifier,
		validator: utils.NewValidator(),
		maxDepth:  maxDepth,
		now:       time.Now,
	}
}

func (s *CommentService) validateInput(in *CommentInput) (string, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return "", utils.Validation("Comment content is required")
	}
	if utf8.RuneCountInString(content) > models.MaxCommentLength {
		return "", utils.Validationf("Comment must be at most %d characters", models.MaxCommentLength)
	}
	in.Content = content
	if err := s.validator.Validate(in); err != nil {
		return "", err
	}
	return content, nil
}

// CreateComment stores a comment on ref, optionally as a reply to parentID.
func (s *CommentService) CreateComment(ctx context.Context, ref models.ContentRef, author *models.Profile, in CommentInput) (*CommentNode, error) {
	content, err := s.validateInput(&in)
	if err != nil {
		return nil, err
	}

	var (
		comment models.Comment
		target  ContentTarget
		parent  *models.Comment
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := ResolveContent(ctx, tx, ref)
		if err != nil {
			return err
		}
		target = t

		comment = models.Comment{
			Content:          content,
			ProfileID:        author.ID,
			ContentType:      ref.Kind,
			ObjectID:         ref.ID,
			ModerationStatus: models.ModerationApproved,
		}

		if in.ParentID != nil {
			var p models.Comment
			err := liveComments(tx).
				Where("id = ? AND content_type = ? AND object_id = ?", *in.ParentID, ref.Kind, ref.ID).
				First(&p).Error
			if err != nil {
				return notFoundOr(err, "Parent comment not found")
			}
			parent = &p
			comment.ParentID = &p.ID
			comment.Depth = p.Depth + 1
		}

		if err := tx.Omit("Profile", "Parent").Create(&comment).Error; err != nil {
			return err
		}

		// comment_count 无论顶层还是回复都加一
		if err := target.IncrementCommentCount(tx, 1); err != nil {
			return err
		}
		if parent != nil {
			if err := incrementColumn(tx, &models.Comment{}, parent.ID, "reply_count", 1); err != nil {
				return err
			}
			return tx.Select("reply_count").First(parent, parent.ID).Error
		}
		return nil
	})
	if err != nil {
		return nil, wrapDBError(err, "create comment")
	}

	s.log.Info("Comment created",
		zap.Uint("comment_id", comment.ID),
		zap.String("target", ref.String()),
		zap.Int("depth", comment.Depth))

	s.attach(ctx, &comment, in)
	s.notifyCreated(ctx, author, target, parent, &comment)

	return s.tree.ResolveNode(ctx, &comment, author)
}

// attach 媒体和链接失败只记日志，不回滚评论
func (s *CommentService) attach(ctx context.Context, c *models.Comment, in CommentInput) {
	conn := s.db.WithContext(ctx)
	if len(in.Media) > 0 {
		m := models.CommentMedia{CommentID: c.ID, MediaType: in.Media[0].MediaType, URL: in.Media[0].URL}
		if err := conn.Create(&m).Error; err != nil {
			s.log.Warn("Attach media failed", zap.Uint("comment_id", c.ID), zap.Error(err))
		}
	}
	if in.Link != nil {
		l := models.CommentLink{CommentID: c.ID, URL: in.Link.URL, DisplayText: in.Link.DisplayText}
		if err := conn.Create(&l).Error; err != nil {
			s.log.Warn("Attach link failed", zap.Uint("comment_id", c.ID), zap.Error(err))
		}
	}
}

func (s *CommentService) notifyCreated(ctx context.Context, author *models.Profile, target ContentTarget, parent, c *models.Comment) {
	if s.notifier == nil {
		return
	}
	notified := map[uint]bool{author.ID: true}
	if parent != nil {
		s.notifier.NotifyReply(ctx, author, parent, c)
		notified[parent.ProfileID] = true
		s.notifier.NotifyMilestone(ctx, parent.ProfileID, models.NotificationRepliesMilestone,
			parent.ReplyCount, models.CommentRef(parent.ID))
	} else {
		s.notifier.NotifyPollComment(ctx, author, target, c)
		notified[target.OwnerID()] = true
	}
	s.notifyMentions(ctx, author, c, notified)
}

// notifyMentions 每个被 @ 的用户只通知一次，已收到回复通知的不再重复
func (s *CommentService) notifyMentions(ctx context.Context, author *models.Profile, c *models.Comment, notified map[uint]bool) {
	names := mentionedUsernames(c.Content)
	if len(names) == 0 {
		return
	}
	var profiles []models.Profile
	if err := s.db.WithContext(ctx).Where("username IN ?", names).Find(&profiles).Error; err != nil {
		s.log.Warn("Resolve mentions failed", zap.Uint("comment_id", c.ID), zap.Error(err))
		return
	}
	for i := range profiles {
		if notified[profiles[i].ID] {
			continue
		}
		notified[profiles[i].ID] = true
		s.notifier.NotifyMention(ctx, author, &profiles[i], c)
	}
}

func mentionedUsernames(content string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range mentionPattern.FindAllStringSubmatch(content, -1) {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		names = append(names, m[1])
		if len(names) == maxMentionsPerComment {
			break
		}
	}
	return names
}

// UpdateComment replaces content and attachments. Only the author may edit.
func (s *CommentService) UpdateComment(ctx context.Context, id uint, editor *models.Profile, in CommentInput) (*CommentNode, error) {
	content, err := s.validateInput(&in)
	if err != nil {
		return nil, err
	}

	var comment models.Comment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := db.ForUpdate(tx).
			Where("id = ? AND is_deleted = ? AND is_taken_down = ?", id, false, false).
			First(&comment).Error
		if err != nil {
			return notFoundOr(err, "Comment not found")
		}
		// 隐藏的评论对作者以外的人等同不存在
		if !comment.IsLive() && comment.ProfileID != editor.ID {
			return utils.NotFound("Comment not found")
		}
		if comment.ProfileID != editor.ID {
			return utils.Forbidden("You can only edit your own comments")
		}

		if err := tx.Model(&comment).Updates(map[string]interface{}{
			"content":   content,
			"is_edited": true,
		}).Error; err != nil {
			return err
		}
		comment.Content = content
		comment.IsEdited = true

		if err := tx.Where("comment_id = ?", comment.ID).Delete(&models.CommentMedia{}).Error; err != nil {
			return err
		}
		return tx.Where("comment_id = ?", comment.ID).Delete(&models.CommentLink{}).Error
	})
	if err != nil {
		return nil, wrapDBError(err, "update comment")
	}

	s.attach(ctx, &comment, in)
	return s.tree.ResolveNode(ctx, &comment, editor)
}

// DeleteComment soft-deletes and decrements the counters the create path incremented.
func (s *CommentService) DeleteComment(ctx context.Context, id uint, actor *models.Profile) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comment models.Comment
		err := db.ForUpdate(tx).Where("id = ? AND is_deleted = ?", id, false).First(&comment).Error
		if err != nil {
			return notFoundOr(err, "Comment not found")
		}
		if !comment.IsLive() && comment.ProfileID != actor.ID {
			return utils.NotFound("Comment not found")
		}
		if comment.ProfileID != actor.ID {
			return utils.Forbidden("You can only delete your own comments")
		}

		if err := tx.Model(&comment).Update("is_deleted", true).Error; err != nil {
			return err
		}
		if err := targetFor(comment.Ref()).IncrementCommentCount(tx, -1); err != nil {
			return err
		}
		if comment.ParentID != nil {
			return incrementColumn(tx, &models.Comment{}, *comment.ParentID, "reply_count", -1)
		}
		return nil
	})
	if err != nil {
		return wrapDBError(err, "delete comment")
	}
	s.log.Info("Comment deleted", zap.Uint("comment_id", id), zap.Uint("profile_id", actor.ID))
	return nil
}

// GetComment 不可见的评论只对作者和版主返回
func (s *CommentService) GetComment(ctx context.Context, id uint, viewer *models.Profile) (*CommentNode, error) {
	var c models.Comment
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, notFoundOr(err, "Comment not found")
	}
	if !c.IsLive() && !(viewer != nil && (viewer.ID == c.ProfileID || viewer.IsModerator())) {
		return nil, utils.NotFound("Comment not found")
	}
	return s.tree.ResolveNode(ctx, &c, viewer)
}

var commentSorts = map[string]string{
	"newest":       "created_at DESC, id DESC",
	"oldest":       "created_at ASC, id ASC",
	"most_liked":   "like_count DESC, created_at DESC",
	"most_replies": "reply_count DESC, created_at DESC",
}

type ListOptions struct {
	Sort     string
	Page     int
	PageSize int
	MaxDepth int
}

// CommentPage 分页结果
type CommentPage struct {
	Items       []*CommentNode `json:"items"`
	Total       int64          `json:"total"`
	Page        int            `json:"page"`
	Pages       int            `json:"pages"`
	PageSize    int            `json:"page_size"`
	HasNext     bool           `json:"has_next"`
	HasPrevious bool           `json:"has_previous"`
}

// ListComments pages through live top-level comments on ref and builds a tree under each.
// A page past the end falls back to the last page.
func (s *CommentService) ListComments(ctx context.Context, ref models.ContentRef, opts ListOptions, viewer *models.Profile) (*CommentPage, error) {
	if opts.Sort == "" {
		opts.Sort = "newest"
	}
	order, ok := commentSorts[opts.Sort]
	if !ok {
		return nil, utils.Validationf("Invalid sort %q", opts.Sort)
	}
	if opts.Page == 0 {
		opts.Page = 1
	}
	if opts.PageSize == 0 {
		opts.PageSize = 20
	}
	if opts.Page < 1 {
		return nil, utils.Validation("page must be at least 1")
	}
	if opts.PageSize < 1 || opts.PageSize > 100 {
		return nil, utils.Validation("page_size must be between 1 and 100")
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = s.maxDepth
	}
	if opts.MaxDepth > 10 {
		return nil, utils.Validation("max_depth must be at most 10")
	}

	if _, err := ResolveContent(ctx, s.db, ref); err != nil {
		return nil, err
	}

	topLevel := func() *gorm.DB {
		return liveComments(s.db.WithContext(ctx)).
			Where("content_type = ? AND object_id = ? AND parent_id IS NULL", ref.Kind, ref.ID)
	}

	var total int64
	if err := topLevel().Count(&total).Error; err != nil {
		return nil, utils.WrapError(err, "count comments")
	}
	pages := int((total + int64(opts.PageSize) - 1) / int64(opts.PageSize))
	if pages < 1 {
		pages = 1
	}
	if opts.Page > pages {
		opts.Page = pages
	}

	var roots []models.Comment
	err := topLevel().
		Order(order).
		Offset((opts.Page - 1) * opts.PageSize).
		Limit(opts.PageSize).
		Find(&roots).Error
	if err != nil {
		return nil, utils.WrapError(err, "list comments")
	}

	items, err := s.tree.Build(ctx, roots, ThreadOptions{MaxDepth: opts.MaxDepth, Viewer: viewer})
	if err != nil {
		return nil, err
	}

	return &CommentPage{
		Items:       items,
		Total:       total,
		Page:        opts.Page,
		Pages:       pages,
		PageSize:    opts.PageSize,
		HasNext:     opts.Page < pages,
		HasPrevious: opts.Page > 1,
	}, nil
}

type ThreadInfo struct {
	FocalCommentID       uint `json:"focal_comment_id"`
	FocalCommentDepth    int  `json:"focal_comment_depth"`
	ParentLevelsIncluded int  `json:"parent_levels_included"`
	ReplyDepthLimit      int  `json:"reply_depth_limit"`
	IsTopLevelComment    bool `json:"is_top_level_comment"`
	OriginalTopLevelID   uint `json:"original_top_level_id"`
}

// ThreadView 单条评论为中心的线程视图
type ThreadView struct {
	Comment       *CommentNode   `json:"comment"`
	ParentContext []*CommentNode `json:"parent_context"`
	ThreadInfo    ThreadInfo     `json:"thread_info"`
}

// GetThread builds the subtree under a focal comment plus up to parentLevels live
// ancestors, ordered from the top-most down.
func (s *CommentService) GetThread(ctx context.Context, id uint, parentLevels, replyDepth int, viewer *models.Profile) (*ThreadView, error) {
	if parentLevels < 0 || parentLevels > 5 {
		return nil, utils.Validation("parent_levels must be between 0 and 5")
	}
	if replyDepth < 1 || replyDepth > 10 {
		return nil, utils.Validation("reply_depth must be between 1 and 10")
	}

	conn := s.db.WithContext(ctx)
	var focal models.Comment
	if err := liveComments(conn).Where("id = ?", id).First(&focal).Error; err != nil {
		return nil, notFoundOr(err, "Comment not found")
	}

	// 向上遍历全部祖先：上下文只取连续可见的部分，顶层 id 不论可见性
	var (
		ancestors   []models.Comment
		contextDone = parentLevels == 0
		topLevelID  = focal.ID
		visited     = map[uint]bool{focal.ID: true}
	)
	cur := focal
	for cur.ParentID != nil && !visited[*cur.ParentID] {
		var parent models.Comment
		if err := conn.First(&parent, *cur.ParentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				break
			}
			return nil, utils.WrapError(err, "load parent comment")
		}
		visited[parent.ID] = true
		topLevelID = parent.ID

		if !contextDone {
			if parent.IsLive() {
				ancestors = append(ancestors, parent)
			}
			contextDone = !parent.IsLive() || len(ancestors) == parentLevels
		}
		cur = parent
	}
	for i, j := 0, len(ancestors)-1; i < j; i, j = i+1, j-1 {
		ancestors[i], ancestors[j] = ancestors[j], ancestors[i]
	}

	nodes, err := s.tree.Build(ctx, []models.Comment{focal}, ThreadOptions{MaxDepth: replyDepth, Viewer: viewer})
	if err != nil {
		return nil, err
	}
	parentNodes, err := s.tree.Resolve(ctx, ancestors, viewer)
	if err != nil {
		return nil, err
	}

	return &ThreadView{
		Comment:       nodes[0],
		ParentContext: parentNodes,
		ThreadInfo: ThreadInfo{
			FocalCommentID:       focal.ID,
			FocalCommentDepth:    focal.Depth,
			ParentLevelsIncluded: len(parentNodes),
			ReplyDepthLimit:      replyDepth,
			IsTopLevelComment:    focal.ParentID == nil,
			OriginalTopLevelID:   topLevelID,
		},
	}, nil
}
