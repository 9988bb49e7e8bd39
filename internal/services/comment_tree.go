package services

import (
	"context"
	"time"
	"unicode/utf8"

	"keyopolls/internal/models"
	"keyopolls/internal/utils"

	"gorm.io/gorm"
)

const DefaultMaxDepth = 6

// CommentNode 评论树中单个节点的输出结构
type CommentNode struct {
	ID               uint                         `json:"id"`
	Content          string                       `json:"content"`
	ContentHTML      string                       `json:"content_html"`
	ParentID         *uint                        `json:"parent_id"`
	CreatedAt        time.Time                    `json:"created_at"`
	UpdatedAt        time.Time                    `json:"updated_at"`
	IsEdited         bool                         `json:"is_edited"`
	IsDeleted        bool                         `json:"is_deleted"`
	LikeCount        int                          `json:"like_count"`
	DislikeCount     int                          `json:"dislike_count"`
	ReplyCount       int                          `json:"reply_count"`
	Depth            int                          `json:"depth"`
	Replies          []*CommentNode               `json:"replies"`
	UserReactions    map[models.ReactionType]bool `json:"user_reactions"`
	IsAuthor         bool                         `json:"is_author"`
	Media            *models.CommentMedia         `json:"media"`
	Link             *models.CommentLink          `json:"link"`
	AuthorInfo       models.AuthorInfo            `json:"author_info"`
	HasMoreReplies   bool                         `json:"has_more_replies"`
	TruncatedAtDepth *int                         `json:"truncated_at_depth"`
	DefaultCollapsed bool                         `json:"default_collapsed"`
}

type ThreadOptions struct {
	MaxDepth int
	Viewer   *models.Profile
}

// CollapsePolicy decides which comments of a resolved batch look low-engagement.
// Author and reaction overrides are applied afterwards by the tree builder.
type CollapsePolicy interface {
	Collapsed(comments []*models.Comment, now time.Time) map[uint]bool
}

// EngagementCollapsePolicy 按发布时间分组，组内按点赞分位数判断是否折叠
type EngagementCollapsePolicy struct{}

type collapseRule struct {
	minLikes   int
	percentile int
}

var collapseRules = map[utils.AgeBucket]collapseRule{
	utils.AgeRecent: {minLikes: 2, percentile: 25},
	utils.AgeMedium: {minLikes: 3, percentile: 30},
	utils.AgeOld:    {minLikes: 5, percentile: 35},
}

func (EngagementCollapsePolicy) Collapsed(comments []*models.Comment, now time.Time) map[uint]bool {
	groups := make(map[utils.AgeBucket][]*models.Comment)
	for _, c := range comments {
		bucket := utils.BucketForAge(now.Sub(c.CreatedAt).Hours())
		groups[bucket] = append(groups[bucket], c)
	}

	out := make(map[uint]bool, len(comments))
	for bucket, group := range groups {
		rule := collapseRules[bucket]
		likes := make([]int, len(group))
		for i, c := range group {
			likes[i] = c.LikeCount
		}
		threshold := utils.PercentileValue(likes, rule.percentile)

		for _, c := range group {
			out[c.ID] = c.LikeCount < rule.minLikes ||
				c.LikeCount <= threshold ||
				(c.ReplyCount > 3 && c.LikeCount == 0) ||
				(utf8.RuneCountInString(c.Content) > 500 && c.LikeCount == 0 && c.ReplyCount == 0)
		}
	}
	return out
}

// applyCollapseOverrides 启发式之后再套用覆盖：作者本人或有过任意互动都不折叠
func applyCollapseOverrides(heuristic, isAuthor bool, reactions map[models.ReactionType]bool) bool {
	if !heuristic || isAuthor {
		return false
	}
	for _, reacted := range reactions {
		if reacted {
			return false
		}
	}
	return true
}

// TreeBuilder builds nested comment threads from the flat comment table.
type TreeBuilder struct {
	db     *gorm.DB
	policy CollapsePolicy
	now    func() time.Time
}

func NewTreeBuilder(db *gorm.DB, policy CollapsePolicy) *TreeBuilder {
	if policy == nil {
		policy = EngagementCollapsePolicy{}
	}
	return &TreeBuilder{db: db, policy: policy, now: time.Now}
}

// arena 一次构建涉及的全部评论，children 按 created_at 升序
type arena struct {
	all      []*models.Comment
	children map[uint][]*models.Comment
	hasMore  map[uint]bool
}

// Build attaches live replies level by level under each live root, at most MaxDepth levels
// below it. One query per level plus one for the boundary, independent of thread width.
func (b *TreeBuilder) Build(ctx context.Context, roots []models.Comment, opts ThreadOptions) ([]*CommentNode, error) {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}

	a := &arena{
		children: make(map[uint][]*models.Comment),
		hasMore:  make(map[uint]bool),
	}
	liveRoots := make([]*models.Comment, 0, len(roots))
	frontier := make([]uint, 0, len(roots))
	for i := range roots {
		c := &roots[i]
		if !c.IsLive() {
			continue
		}
		liveRoots = append(liveRoots, c)
		a.all = append(a.all, c)
		frontier = append(frontier, c.ID)
	}

	depth := 0
	for depth < opts.MaxDepth && len(frontier) > 0 {
		var level []models.Comment
		err := liveComments(b.db.WithContext(ctx)).
			Where("parent_id IN ?", frontier).
			Order("created_at ASC").
			Find(&level).Error
		if err != nil {
			return nil, utils.WrapError(err, "load replies")
		}

		next := make([]uint, 0, len(level))
		for i := range level {
			c := &level[i]
			a.all = append(a.all, c)
			a.children[*c.ParentID] = append(a.children[*c.ParentID], c)
			next = append(next, c.ID)
		}
		frontier = next
		depth++
	}

	// 截断边界：只查是否还有可见子评论，不再展开
	if depth == opts.MaxDepth && len(frontier) > 0 {
		var parents []uint
		err := liveComments(b.db.WithContext(ctx)).
			Where("parent_id IN ?", frontier).
			Distinct().
			Pluck("parent_id", &parents).Error
		if err != nil {
			return nil, utils.WrapError(err, "check truncated replies")
		}
		for _, id := range parents {
			a.hasMore[id] = true
		}
	}

	res, err := b.resolve(ctx, a.all, opts.Viewer)
	if err != nil {
		return nil, err
	}

	var build func(c *models.Comment, rel int) *CommentNode
	build = func(c *models.Comment, rel int) *CommentNode {
		n := res.node(c, opts.Viewer)
		if rel == opts.MaxDepth {
			if a.hasMore[c.ID] {
				d := c.Depth
				n.HasMoreReplies = true
				n.TruncatedAtDepth = &d
			}
			return n
		}
		for _, child := range a.children[c.ID] {
			n.Replies = append(n.Replies, build(child, rel+1))
		}
		return n
	}

	nodes := make([]*CommentNode, 0, len(liveRoots))
	for _, root := range liveRoots {
		nodes = append(nodes, build(root, 0))
	}
	return nodes, nil
}

// Resolve projects comments without replies. Visibility is the caller's decision here.
func (b *TreeBuilder) Resolve(ctx context.Context, comments []models.Comment, viewer *models.Profile) ([]*CommentNode, error) {
	ptrs := make([]*models.Comment, len(comments))
	for i := range comments {
		ptrs[i] = &comments[i]
	}
	res, err := b.resolve(ctx, ptrs, viewer)
	if err != nil {
		return nil, err
	}
	nodes := make([]*CommentNode, len(ptrs))
	for i, c := range ptrs {
		nodes[i] = res.node(c, viewer)
	}
	return nodes, nil
}

// ResolveNode 单条评论的输出
func (b *TreeBuilder) ResolveNode(ctx context.Context, c *models.Comment, viewer *models.Profile) (*CommentNode, error) {
	nodes, err := b.Resolve(ctx, []models.Comment{*c}, viewer)
	if err != nil {
		return nil, err
	}
	return nodes[0], nil
}

type resolution struct {
	authors   map[uint]*models.Profile
	reactions map[uint]map[models.ReactionType]bool
	media     map[uint]*models.CommentMedia
	links     map[uint]*models.CommentLink
	collapsed map[uint]bool
}

// resolve 批量加载作者、当前用户的互动、媒体和链接
func (b *TreeBuilder) resolve(ctx context.Context, comments []*models.Comment, viewer *models.Profile) (*resolution, error) {
	res := &resolution{
		authors:   make(map[uint]*models.Profile),
		reactions: make(map[uint]map[models.ReactionType]bool),
		media:     make(map[uint]*models.CommentMedia),
		links:     make(map[uint]*models.CommentLink),
	}
	if len(comments) == 0 {
		res.collapsed = map[uint]bool{}
		return res, nil
	}

	ids := make([]uint, 0, len(comments))
	authorSet := make(map[uint]struct{})
	authorIDs := make([]uint, 0)
	for _, c := range comments {
		ids = append(ids, c.ID)
		if _, ok := authorSet[c.ProfileID]; !ok {
			authorSet[c.ProfileID] = struct{}{}
			authorIDs = append(authorIDs, c.ProfileID)
		}
	}

	conn := b.db.WithContext(ctx)

	var authors []models.Profile
	if err := conn.Where("id IN ?", authorIDs).Find(&authors).Error; err != nil {
		return nil, utils.WrapError(err, "load comment authors")
	}
	for i := range authors {
		res.authors[authors[i].ID] = &authors[i]
	}

	if viewer != nil {
		var reactions []models.CommentReaction
		err := conn.Where("profile_id = ? AND comment_id IN ?", viewer.ID, ids).Find(&reactions).Error
		if err != nil {
			return nil, utils.WrapError(err, "load viewer reactions")
		}
		for _, r := range reactions {
			if res.reactions[r.CommentID] == nil {
				res.reactions[r.CommentID] = make(map[models.ReactionType]bool)
			}
			res.reactions[r.CommentID][r.ReactionType] = true
		}
	}

	var media []models.CommentMedia
	if err := conn.Where("comment_id IN ?", ids).Find(&media).Error; err != nil {
		return nil, utils.WrapError(err, "load comment media")
	}
	for i := range media {
		res.media[media[i].CommentID] = &media[i]
	}

	var links []models.CommentLink
	if err := conn.Where("comment_id IN ?", ids).Find(&links).Error; err != nil {
		return nil, utils.WrapError(err, "load comment links")
	}
	for i := range links {
		res.links[links[i].CommentID] = &links[i]
	}

	res.collapsed = b.policy.Collapsed(comments, b.now())
	return res, nil
}

func (r *resolution) node(c *models.Comment, viewer *models.Profile) *CommentNode {
	reactions := map[models.ReactionType]bool{
		models.ReactionLike:    false,
		models.ReactionDislike: false,
	}
	for k, v := range r.reactions[c.ID] {
		reactions[k] = v
	}
	isAuthor := viewer != nil && viewer.ID == c.ProfileID

	n := &CommentNode{
		ID:               c.ID,
		Content:          c.Content,
		ContentHTML:      utils.RenderMarkdown(c.Content),
		ParentID:         c.ParentID,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
		IsEdited:         c.IsEdited,
		IsDeleted:        c.IsDeleted,
		LikeCount:        c.LikeCount,
		DislikeCount:     c.DislikeCount,
		ReplyCount:       c.ReplyCount,
		Depth:            c.Depth,
		Replies:          []*CommentNode{},
		UserReactions:    reactions,
		IsAuthor:         isAuthor,
		Media:            r.media[c.ID],
		Link:             r.links[c.ID],
		DefaultCollapsed: applyCollapseOverrides(r.collapsed[c.ID], isAuthor, reactions),
	}
	if author, ok := r.authors[c.ProfileID]; ok {
		n.AuthorInfo = author.Info()
	}
	return n
}
