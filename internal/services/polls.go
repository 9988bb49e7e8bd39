package services

import (
	"context"
	"strings"
	"time"

	"keyopolls/internal/models"
	"keyopolls/internal/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	minPollOptions      = 2
	maxPollOptions      = 10
	maxDailyPolls       = 100
	defaultPollPageSize = 20
	maxPollPageSize     = 100
)

type PollOptionInput struct {
	Text      string `json:"text" validate:"required,max=200"`
	Order     int    `json:"order" validate:"min=0"`
	IsCorrect bool   `json:"is_correct"`
}

// PollInput 创建投票。CorrectRankingOrder 填选项的 order 值，排名第一的在前
type PollInput struct {
	CommunityID         uint              `json:"community_id" validate:"required"`
	Title               string            `json:"title" validate:"required,max=200"`
	Description         string            `json:"description" validate:"max=2000"`
	PollType            models.PollType   `json:"poll_type" validate:"required,oneof=single multiple ranking text_input"`
	MaxChoices          int               `json:"max_choices" validate:"min=0"`
	Options             []PollOptionInput `json:"options" validate:"dive"`
	HasCorrectAnswer    bool              `json:"has_correct_answer"`
	CorrectTextAnswer   string            `json:"correct_text_answer"`
	CorrectRankingOrder []int             `json:"correct_ranking_order"`
	ExpiresAt           *time.Time        `json:"expires_at"`
}

// PollDetail 单个投票，带上当前用户是否已作答
type PollDetail struct {
	models.Poll
	CommunityName string `json:"community_name"`
	IsOpen        bool   `json:"is_open"`
	HasAnswered   bool   `json:"has_answered"`
}

type PollFilter struct {
	CommunityID    uint
	AuthorID       uint
	PollType       models.PollType
	IncludeExpired bool
	Page           int
	PageSize       int
}

type PollPage struct {
	Polls    []models.Poll `json:"polls"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	Pages    int           `json:"pages"`
	PageSize int           `json:"page_size"`
	HasNext  bool          `json:"has_next"`
}

// PollService creates and reads polls. Posting in a public community joins it;
// private and restricted communities need an active membership first.
type PollService struct {
	db        *gorm.DB
	log       *zap.Logger
	validator *utils.Validator
	now       func() time.Time
}

func NewPollService(conn *gorm.DB, log *zap.Logger) *PollService {
	return &PollService{db: conn, log: log, validator: utils.NewValidator(), now: time.Now}
}

func (s *PollService) Create(ctx context.Context, author *models.Profile, in PollInput) (*models.Poll, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if err := s.validator.Validate(&in); err != nil {
		return nil, err
	}
	if err := s.validateShape(&in); err != nil {
		return nil, err
	}

	poll := models.Poll{
		Title:            in.Title,
		Description:      in.Description,
		PollType:         in.PollType,
		ProfileID:        author.ID,
		CommunityID:      in.CommunityID,
		MaxChoices:       in.MaxChoices,
		HasCorrectAnswer: in.HasCorrectAnswer,
		ExpiresAt:        in.ExpiresAt,
	}
	if in.HasCorrectAnswer && in.PollType == models.PollTypeTextInput {
		poll.CorrectTextAnswer = strings.TrimSpace(in.CorrectTextAnswer)
	}
	for _, o := range in.Options {
		poll.Options = append(poll.Options, models.PollOption{
			Text:      strings.TrimSpace(o.Text),
			Order:     o.Order,
			IsCorrect: in.HasCorrectAnswer && o.IsCorrect,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var community models.Community
		if err := tx.First(&community, in.CommunityID).Error; err != nil {
			return notFoundOr(err, "Community not found")
		}
		if err := requireMembership(tx, author.ID, &community); err != nil {
			return err
		}

		now := s.now()
		var today int64
		if err := tx.Model(&models.Poll{}).
			Where("profile_id = ? AND community_id = ? AND created_at >= ?",
				author.ID, community.ID, time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())).
			Count(&today).Error; err != nil {
			return err
		}
		if today >= maxDailyPolls {
			return utils.Validationf("You can only create %d polls per day in this community", maxDailyPolls)
		}

		if err := tx.Omit("Profile", "Community").Create(&poll).Error; err != nil {
			return err
		}

		if in.HasCorrectAnswer && in.PollType == models.PollTypeRanking {
			byOrder := make(map[int]uint, len(poll.Options))
			for _, o := range poll.Options {
				byOrder[o.Order] = o.ID
			}
			ids := make([]uint, 0, len(in.CorrectRankingOrder))
			for _, order := range in.CorrectRankingOrder {
				ids = append(ids, byOrder[order])
			}
			poll.CorrectRankingOrder = ids
			return tx.Model(&poll).Select("correct_ranking_order").Updates(&models.Poll{CorrectRankingOrder: ids}).Error
		}
		return nil
	})
	if err != nil {
		return nil, wrapDBError(err, "create poll")
	}

	s.log.Info("Poll created",
		zap.Uint("poll_id", poll.ID),
		zap.Uint("community_id", poll.CommunityID),
		zap.Uint("profile_id", author.ID),
		zap.String("poll_type", string(poll.PollType)))
	return &poll, nil
}

// validateShape 按投票类型检查选项和正确答案，并补齐 MaxChoices
func (s *PollService) validateShape(in *PollInput) error {
	if in.ExpiresAt != nil && !in.ExpiresAt.After(s.now()) {
		return utils.Validation("expires_at must be in the future")
	}

	if in.PollType == models.PollTypeTextInput {
		if len(in.Options) > 0 {
			return utils.Validation("Text input polls cannot have predefined options")
		}
		in.MaxChoices = 1
		if in.HasCorrectAnswer {
			if err := validateTextAnswer(in.CorrectTextAnswer); err != nil {
				return utils.Validation("correct_text_answer must be a single word of at most 50 characters")
			}
		}
		return nil
	}

	n := len(in.Options)
	if n < minPollOptions {
		return utils.Validationf("Poll must have at least %d options", minPollOptions)
	}
	if n > maxPollOptions {
		return utils.Validationf("Poll cannot have more than %d options", maxPollOptions)
	}

	// 客户端没给 order 时按提交顺序
	allZero := true
	for i := range in.Options {
		in.Options[i].Text = strings.TrimSpace(in.Options[i].Text)
		if in.Options[i].Text == "" {
			return utils.Validation("Option text cannot be empty")
		}
		if in.Options[i].Order != 0 {
			allZero = false
		}
	}
	orders := make(map[int]bool, n)
	for i := range in.Options {
		if allZero {
			in.Options[i].Order = i
		}
		if orders[in.Options[i].Order] {
			return utils.Validation("Option orders must be unique")
		}
		orders[in.Options[i].Order] = true
	}

	correct := 0
	for _, o := range in.Options {
		if o.IsCorrect {
			correct++
		}
	}

	switch in.PollType {
	case models.PollTypeSingle:
		in.MaxChoices = 1
		if in.HasCorrectAnswer && correct != 1 {
			return utils.Validation("Single choice polls with a correct answer need exactly one correct option")
		}
	case models.PollTypeMultiple:
		if in.MaxChoices > n {
			return utils.Validation("max_choices cannot exceed number of options")
		}
		if in.MaxChoices == 0 {
			in.MaxChoices = n
		}
		if in.HasCorrectAnswer && correct == 0 {
			return utils.Validation("Multiple choice polls with a correct answer need at least one correct option")
		}
	case models.PollTypeRanking:
		in.MaxChoices = n
		if in.HasCorrectAnswer {
			if len(in.CorrectRankingOrder) != n {
				return utils.Validation("Correct ranking order must include all options")
			}
			seen := make(map[int]bool, n)
			for _, order := range in.CorrectRankingOrder {
				if !orders[order] || seen[order] {
					return utils.Validation("Correct ranking order must include all option orders exactly once")
				}
				seen[order] = true
			}
		}
	}
	return nil
}

func (s *PollService) Get(ctx context.Context, id uint, viewer *models.Profile) (*PollDetail, error) {
	var poll models.Poll
	err := s.db.WithContext(ctx).
		Preload("Community").
		Preload("Options", func(db *gorm.DB) *gorm.DB { return db.Order(`"order" ASC, id ASC`) }).
		Where("id = ? AND is_deleted = ?", id, false).
		First(&poll).Error
	if err != nil {
		return nil, notFoundOr(err, "Poll not found")
	}

	detail := &PollDetail{Poll: poll, CommunityName: poll.Community.Name, IsOpen: poll.IsActive(s.now())}
	if viewer != nil {
		answered, err := hasAnswered(s.db.WithContext(ctx), viewer.ID, poll.ID)
		if err != nil {
			return nil, utils.WrapError(err, "load answer state")
		}
		detail.HasAnswered = answered
	}
	return detail, nil
}

// List 最新的在前。匿名只看公开社区；登录用户额外能看受限社区和自己加入的私有社区
func (s *PollService) List(ctx context.Context, viewer *models.Profile, f PollFilter) (*PollPage, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = defaultPollPageSize
	}
	if f.PageSize > maxPollPageSize {
		return nil, utils.Validationf("page_size must be at most %d", maxPollPageSize)
	}
	switch f.PollType {
	case "", models.PollTypeSingle, models.PollTypeMultiple, models.PollTypeRanking, models.PollTypeTextInput:
	default:
		return nil, utils.Validationf("Unknown poll type %q", f.PollType)
	}

	q := s.db.WithContext(ctx).Model(&models.Poll{}).Where("is_deleted = ?", false)
	if viewer == nil {
		q = q.Where("community_id IN (?)",
			s.db.Model(&models.Community{}).Select("id").Where("community_type = ?", models.CommunityPublic))
	} else {
		q = q.Where(s.db.Where("community_id IN (?)",
			s.db.Model(&models.Community{}).Select("id").
				Where("community_type IN ?", []models.CommunityType{models.CommunityPublic, models.CommunityRestricted})).
			Or("community_id IN (?)",
				s.db.Model(&models.CommunityMembership{}).Select("community_id").
					Where("profile_id = ? AND status = ?", viewer.ID, models.MembershipActive)))
	}
	if f.CommunityID != 0 {
		q = q.Where("community_id = ?", f.CommunityID)
	}
	if f.AuthorID != 0 {
		q = q.Where("profile_id = ?", f.AuthorID)
	}
	if f.PollType != "" {
		q = q.Where("poll_type = ?", f.PollType)
	}
	if !f.IncludeExpired {
		q = q.Where("expires_at IS NULL OR expires_at > ?", s.now())
	}

	page := &PollPage{Page: f.Page, PageSize: f.PageSize, Polls: []models.Poll{}}
	if err := q.Session(&gorm.Session{}).Count(&page.Total).Error; err != nil {
		return nil, utils.WrapError(err, "count polls")
	}
	err := q.Session(&gorm.Session{}).
		Preload("Options", func(db *gorm.DB) *gorm.DB { return db.Order(`"order" ASC, id ASC`) }).
		Order("created_at DESC, id DESC").
		Offset((f.Page - 1) * f.PageSize).
		Limit(f.PageSize).
		Find(&page.Polls).Error
	if err != nil {
		return nil, utils.WrapError(err, "list polls")
	}

	page.Pages = int((page.Total + int64(f.PageSize) - 1) / int64(f.PageSize))
	page.HasNext = f.Page < page.Pages
	return page, nil
}

// requireMembership 公开社区自动加入并累加 member_count，私有和受限社区必须已是活跃成员
func requireMembership(tx *gorm.DB, profileID uint, community *models.Community) error {
	var m models.CommunityMembership
	err := tx.Where("profile_id = ? AND community_id = ?", profileID, community.ID).Take(&m).Error
	if err == nil {
		if !m.IsActive() {
			return utils.Forbidden("You are not an active member of this community")
		}
		return nil
	}
	if !isNotFound(err) {
		return err
	}
	if !community.IsPublic() {
		return utils.Forbidden("You must be a member of this community")
	}

	m = models.CommunityMembership{
		ProfileID:   profileID,
		CommunityID: community.ID,
		Role:        "member",
		Status:      models.MembershipActive,
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&m)
	if res.Error != nil {
		return res.Error
	}
	// 并发下另一个请求已经加入
	if res.RowsAffected == 0 {
		return nil
	}
	return incrementColumn(tx, &models.Community{}, community.ID, "member_count", 1)
}
