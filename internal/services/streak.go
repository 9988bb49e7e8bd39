package services

import (
	"context"
	"time"

	"keyopolls/internal/db"
	"keyopolls/internal/models"
	"keyopolls/internal/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultDailyTarget  = 5
	defaultCalendarDays = 365
	maxCalendarDays     = 730
	dateLayout          = "2006-01-02"
)

// StreakSnapshot 一次答题后的连续打卡状态
type StreakSnapshot struct {
	CommunityID      uint       `json:"community_id"`
	CurrentStreak    int        `json:"current_streak"`
	MaxStreak        int        `json:"max_streak"`
	PollsToday       int        `json:"polls_today"`
	TargetMet        bool       `json:"target_met"`
	TargetJustMet    bool       `json:"target_just_met"`
	LastActivityDate *time.Time `json:"last_activity_date"`
	StreakStartDate  *time.Time `json:"streak_start_date"`
}

// StreakService tracks per-community daily activity and the streak it qualifies.
type StreakService struct {
	db          *gorm.DB
	log         *zap.Logger
	dailyTarget int
}

func NewStreakService(conn *gorm.DB, log *zap.Logger, dailyTarget int) *StreakService {
	if dailyTarget < 1 {
		dailyTarget = DefaultDailyTarget
	}
	return &StreakService{db: conn, log: log, dailyTarget: dailyTarget}
}

func (s *StreakService) DailyTarget() int { return s.dailyTarget }

// UpdateCommunityStreak counts one answered poll on day. The day row's target_met flips
// false -> true at most once, and only that flip runs ProcessQualifyingDay.
func (s *StreakService) UpdateCommunityStreak(ctx context.Context, tx *gorm.DB, profileID, communityID uint, day time.Time) (*StreakSnapshot, error) {
	day = DayOf(day)
	tx = tx.WithContext(ctx)

	seed := models.CommunityStreakActivity{ProfileID: profileID, CommunityID: communityID, ActivityDate: day}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return nil, err
	}

	var activity models.CommunityStreakActivity
	err := db.ForUpdate(tx).
		Where("profile_id = ? AND community_id = ? AND activity_date = ?", profileID, communityID, day).
		First(&activity).Error
	if err != nil {
		return nil, err
	}

	if err := incrementColumn(tx, &models.CommunityStreakActivity{}, activity.ID, "polls_answered", 1); err != nil {
		return nil, err
	}
	if err := tx.First(&activity, activity.ID).Error; err != nil {
		return nil, err
	}

	justMet := false
	if activity.PollsAnswered >= s.dailyTarget && !activity.TargetMet {
		res := tx.Model(&models.CommunityStreakActivity{}).
			Where("id = ? AND target_met = ?", activity.ID, false).
			Update("target_met", true)
		if res.Error != nil {
			return nil, res.Error
		}
		// 只有真正翻转的那次才推进连续天数
		if res.RowsAffected == 1 {
			justMet = true
			activity.TargetMet = true
			if err := s.ProcessQualifyingDay(ctx, tx, profileID, communityID, day); err != nil {
				return nil, err
			}
		}
	}

	snap := &StreakSnapshot{
		CommunityID:   communityID,
		PollsToday:    activity.PollsAnswered,
		TargetMet:     activity.TargetMet,
		TargetJustMet: justMet,
	}
	var streak models.CommunityStreak
	err = tx.Where("profile_id = ? AND community_id = ?", profileID, communityID).Take(&streak).Error
	switch {
	case err == nil:
		fillStreak(snap, &streak)
	case !isNotFound(err):
		return nil, err
	}

	if justMet {
		s.log.Info("Daily streak target met",
			zap.Uint("profile_id", profileID),
			zap.Uint("community_id", communityID),
			zap.Int("current_streak", snap.CurrentStreak))
	}
	return snap, nil
}

// ProcessQualifyingDay advances the (profile, community) streak for a day whose target
// was just met. Repeating a day, or a day older than the last one, changes nothing.
func (s *StreakService) ProcessQualifyingDay(ctx context.Context, tx *gorm.DB, profileID, communityID uint, day time.Time) error {
	day = DayOf(day)
	tx = tx.WithContext(ctx)

	seed := models.CommunityStreak{ProfileID: profileID, CommunityID: communityID}
	if err := tx.Omit("Community").Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return err
	}
	var streak models.CommunityStreak
	err := db.ForUpdate(tx).
		Where("profile_id = ? AND community_id = ?", profileID, communityID).
		Take(&streak).Error
	if err != nil {
		return err
	}

	yesterday := day.AddDate(0, 0, -1)
	switch {
	case streak.LastActivityDate == nil:
		streak.CurrentStreak = 1
		streak.StreakStartDate = &day
	case DayOf(*streak.LastActivityDate).Equal(day):
		return nil
	case DayOf(*streak.LastActivityDate).After(day):
		return nil
	case DayOf(*streak.LastActivityDate).Equal(yesterday):
		streak.CurrentStreak++
	default:
		// 中断，重新开始
		streak.CurrentStreak = 1
		streak.StreakStartDate = &day
	}
	streak.LastActivityDate = &day
	if streak.CurrentStreak > streak.MaxStreak {
		streak.MaxStreak = streak.CurrentStreak
	}

	return tx.Model(&streak).
		Select("current_streak", "max_streak", "last_activity_date", "streak_start_date").
		Updates(&streak).Error
}

func fillStreak(snap *StreakSnapshot, streak *models.CommunityStreak) {
	snap.CurrentStreak = streak.CurrentStreak
	snap.MaxStreak = streak.MaxStreak
	snap.LastActivityDate = normalizeDate(streak.LastActivityDate)
	snap.StreakStartDate = normalizeDate(streak.StreakStartDate)
}

func normalizeDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := DayOf(*t)
	return &d
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := DayOf(*t).Format(dateLayout)
	return &s
}

func (s *StreakService) ensureCommunity(ctx context.Context, communityID uint) (*models.Community, error) {
	var c models.Community
	if err := s.db.WithContext(ctx).First(&c, communityID).Error; err != nil {
		return nil, notFoundOr(err, "Community not found")
	}
	return &c, nil
}

// GetStreak 当前状态；没有记录时返回零值
func (s *StreakService) GetStreak(ctx context.Context, profileID, communityID uint, today time.Time) (*StreakSnapshot, error) {
	if _, err := s.ensureCommunity(ctx, communityID); err != nil {
		return nil, err
	}
	conn := s.db.WithContext(ctx)
	snap := &StreakSnapshot{CommunityID: communityID}

	var streak models.CommunityStreak
	err := conn.Where("profile_id = ? AND community_id = ?", profileID, communityID).Take(&streak).Error
	switch {
	case err == nil:
		fillStreak(snap, &streak)
	case !isNotFound(err):
		return nil, utils.WrapError(err, "load streak")
	}

	var activity models.CommunityStreakActivity
	err = conn.Where("profile_id = ? AND community_id = ? AND activity_date = ?", profileID, communityID, DayOf(today)).
		Take(&activity).Error
	switch {
	case err == nil:
		snap.PollsToday = activity.PollsAnswered
		snap.TargetMet = activity.TargetMet
	case !isNotFound(err):
		return nil, utils.WrapError(err, "load today's activity")
	}
	return snap, nil
}

type CalendarDay struct {
	Date       string `json:"date"`
	PollsCount int    `json:"polls_count"`
	TargetMet  bool   `json:"target_met"`
	IsToday    bool   `json:"is_today"`
}

// StreakCalendar 日历视图
type StreakCalendar struct {
	CurrentStreak     int           `json:"current_streak"`
	MaxStreak         int           `json:"max_streak"`
	StreakStartDate   *string       `json:"streak_start_date"`
	LastActivityDate  *string       `json:"last_activity_date"`
	Calendar          []CalendarDay `json:"calendar"`
	TotalDaysActive   int           `json:"total_days_active"`
	TargetPollsPerDay int           `json:"target_polls_per_day"`
}

// Calendar returns one entry per day for the last `days` days ending today.
func (s *StreakService) Calendar(ctx context.Context, profileID, communityID uint, days int, today time.Time) (*StreakCalendar, error) {
	if days == 0 {
		days = defaultCalendarDays
	}
	if days < 1 {
		return nil, utils.Validation("days must be positive")
	}
	if days > maxCalendarDays {
		days = maxCalendarDays
	}
	if _, err := s.ensureCommunity(ctx, communityID); err != nil {
		return nil, err
	}

	end := DayOf(today)
	start := end.AddDate(0, 0, -(days - 1))
	conn := s.db.WithContext(ctx)

	out := &StreakCalendar{TargetPollsPerDay: s.dailyTarget}
	var streak models.CommunityStreak
	err := conn.Where("profile_id = ? AND community_id = ?", profileID, communityID).Take(&streak).Error
	switch {
	case err == nil:
		out.CurrentStreak = streak.CurrentStreak
		out.MaxStreak = streak.MaxStreak
		out.StreakStartDate = formatDate(streak.StreakStartDate)
		out.LastActivityDate = formatDate(streak.LastActivityDate)
	case !isNotFound(err):
		return nil, utils.WrapError(err, "load streak")
	}

	var activities []models.CommunityStreakActivity
	err = conn.Where("profile_id = ? AND community_id = ? AND activity_date BETWEEN ? AND ?",
		profileID, communityID, start, end).
		Find(&activities).Error
	if err != nil {
		return nil, utils.WrapError(err, "load streak activity")
	}
	byDay := make(map[string]models.CommunityStreakActivity, len(activities))
	for _, a := range activities {
		byDay[DayOf(a.ActivityDate).Format(dateLayout)] = a
	}

	out.Calendar = make([]CalendarDay, 0, days)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := d.Format(dateLayout)
		a := byDay[key]
		out.Calendar = append(out.Calendar, CalendarDay{
			Date:       key,
			PollsCount: a.PollsAnswered,
			TargetMet:  a.TargetMet,
			IsToday:    d.Equal(end),
		})
		if a.TargetMet {
			out.TotalDaysActive++
		}
	}
	return out, nil
}

type StreakSummary struct {
	CommunityID      uint    `json:"community_id"`
	CommunityName    string  `json:"community_name"`
	CurrentStreak    int     `json:"current_streak"`
	MaxStreak        int     `json:"max_streak"`
	LastActivityDate *string `json:"last_activity_date"`
	IsActive         bool    `json:"is_active"`
}

// Summary 所有社区的连续打卡，按当前连续天数降序
func (s *StreakService) Summary(ctx context.Context, profileID uint, today time.Time) ([]StreakSummary, error) {
	var streaks []models.CommunityStreak
	err := s.db.WithContext(ctx).Preload("Community").
		Where("profile_id = ?", profileID).
		Order("current_streak DESC, community_id ASC").
		Find(&streaks).Error
	if err != nil {
		return nil, utils.WrapError(err, "load streaks")
	}

	day := DayOf(today)
	out := make([]StreakSummary, 0, len(streaks))
	for _, st := range streaks {
		out = append(out, StreakSummary{
			CommunityID:      st.CommunityID,
			CommunityName:    st.Community.Name,
			CurrentStreak:    st.CurrentStreak,
			MaxStreak:        st.MaxStreak,
			LastActivityDate: formatDate(st.LastActivityDate),
			IsActive:         st.LastActivityDate != nil && DayOf(*st.LastActivityDate).Equal(day),
		})
	}
	return out, nil
}
