package services

import (
	"context"
	"time"

	"keyopolls/internal/db"
	"keyopolls/internal/models"
	"keyopolls/internal/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const DefaultAuraPerPoll = 1

// AuraService 光环值：流水只追加，余额用原子表达式更新
type AuraService struct {
	db          *gorm.DB
	log         *zap.Logger
	auraPerPoll int
}

func NewAuraService(conn *gorm.DB, log *zap.Logger, auraPerPoll int) *AuraService {
	if auraPerPoll < 0 {
		auraPerPoll = DefaultAuraPerPoll
	}
	return &AuraService{db: conn, log: log, auraPerPoll: auraPerPoll}
}

// AwardAura appends a ledger entry and bumps the cached total in tx.
// Correctness is recorded by the caller and does not change the amount.
func (s *AuraService) AwardAura(ctx context.Context, tx *gorm.DB, profileID uint, poll *models.Poll, isCorrect bool) (int, error) {
	amount := s.auraPerPoll
	tx = tx.WithContext(ctx)

	// 锁住 profile 行，同一用户并发答题时串行累加
	var profile models.Profile
	if err := db.ForUpdate(tx).Select("id").First(&profile, profileID).Error; err != nil {
		return 0, notFoundOr(err, "Profile not found")
	}

	// 1. 写流水
	entry := models.AuraTransaction{
		ProfileID:       profileID,
		TransactionType: models.AuraPollParticipation,
		Amount:          amount,
		Description:     "Participated in poll: " + poll.Title,
		PollID:          utils.UintPtr(poll.ID),
		CommunityID:     utils.UintPtr(poll.CommunityID),
	}
	if err := tx.Omit("Profile", "Poll", "Community").Create(&entry).Error; err != nil {
		return 0, err
	}

	// 2. 更新余额
	if err := tx.Model(&models.Profile{}).
		Where("id = ?", profileID).
		UpdateColumn("total_aura", gorm.Expr("total_aura + ?", amount)).
		Error; err != nil {
		return 0, err
	}

	s.log.Debug("Aura awarded",
		zap.Uint("profile_id", profileID),
		zap.Uint("poll_id", poll.ID),
		zap.Int("amount", amount),
		zap.Bool("correct", isCorrect))
	return amount, nil
}

// AuraEntry 流水列表项
type AuraEntry struct {
	ID              uint      `json:"id"`
	TransactionType string    `json:"transaction_type"`
	Amount          int       `json:"amount"`
	Description     string    `json:"description"`
	PollID          *uint     `json:"poll_id"`
	PollTitle       string    `json:"poll_title,omitempty"`
	CommunityID     *uint     `json:"community_id"`
	CommunityName   string    `json:"community_name,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type AuraPage struct {
	TotalAura    int         `json:"total_aura"`
	Transactions []AuraEntry `json:"transactions"`
	Total        int64       `json:"total"`
	Limit        int         `json:"limit"`
	Offset       int         `json:"offset"`
}

// Transactions lists a profile's ledger, newest first.
func (s *AuraService) Transactions(ctx context.Context, profileID uint, limit, offset int) (*AuraPage, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		return nil, utils.Validation("limit must be at most 100")
	}
	if offset < 0 {
		return nil, utils.Validation("offset must not be negative")
	}

	conn := s.db.WithContext(ctx)
	var profile models.Profile
	if err := conn.Select("id", "total_aura").First(&profile, profileID).Error; err != nil {
		return nil, notFoundOr(err, "Profile not found")
	}

	var total int64
	if err := conn.Model(&models.AuraTransaction{}).Where("profile_id = ?", profileID).Count(&total).Error; err != nil {
		return nil, utils.WrapError(err, "count aura transactions")
	}

	var rows []models.AuraTransaction
	err := conn.Preload("Poll").Preload("Community").
		Where("profile_id = ?", profileID).
		Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, utils.WrapError(err, "list aura transactions")
	}

	entries := make([]AuraEntry, 0, len(rows))
	for _, r := range rows {
		e := AuraEntry{
			ID:              r.ID,
			TransactionType: r.TransactionType,
			Amount:          r.Amount,
			Description:     r.Description,
			PollID:          r.PollID,
			CommunityID:     r.CommunityID,
			CreatedAt:       r.CreatedAt,
		}
		if r.Poll != nil {
			e.PollTitle = r.Poll.Title
		}
		if r.Community != nil {
			e.CommunityName = r.Community.Name
		}
		entries = append(entries, e)
	}

	return &AuraPage{
		TotalAura:    profile.TotalAura,
		Transactions: entries,
		Total:        total,
		Limit:        limit,
		Offset:       offset,
	}, nil
}
