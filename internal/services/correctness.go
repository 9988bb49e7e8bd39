package services

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"keyopolls/internal/models"
	"keyopolls/internal/utils"
)

const maxTextAnswerLength = 50

// VoteInput 一个选项的投票，ranking 类型需要 rank
type VoteInput struct {
	OptionID uint `json:"option_id" validate:"required"`
	Rank     *int `json:"rank"`
}

// AnswerInput 投票请求：选项类投票或文本回答
type AnswerInput struct {
	Votes     []VoteInput `json:"votes" validate:"dive"`
	TextValue string      `json:"text_value"`
}

// CalculatePollCorrectness never fails. Malformed input is incorrect; a poll without a
// configured answer counts every participation as correct.
func CalculatePollCorrectness(poll *models.Poll, options []models.PollOption, in AnswerInput) bool {
	if !poll.HasCorrectAnswer {
		return true
	}

	switch poll.PollType {
	case models.PollTypeTextInput:
		expected := strings.TrimSpace(poll.CorrectTextAnswer)
		if expected == "" {
			return true
		}
		given := strings.TrimSpace(in.TextValue)
		return given != "" && strings.EqualFold(given, expected)

	case models.PollTypeSingle:
		correct := correctOptionIDs(options)
		if len(correct) == 0 {
			return true
		}
		if len(in.Votes) != 1 || len(correct) != 1 {
			return false
		}
		return correct[in.Votes[0].OptionID]

	case models.PollTypeMultiple:
		correct := correctOptionIDs(options)
		if len(correct) == 0 {
			return true
		}
		if len(in.Votes) == 0 {
			return false
		}
		// 集合必须完全相等
		chosen := make(map[uint]bool, len(in.Votes))
		for _, v := range in.Votes {
			chosen[v.OptionID] = true
		}
		// 重复的选项算作格式错误
		if len(chosen) != len(in.Votes) || len(chosen) != len(correct) {
			return false
		}
		for id := range chosen {
			if !correct[id] {
				return false
			}
		}
		return true

	case models.PollTypeRanking:
		order := poll.CorrectRankingOrder
		if len(order) == 0 {
			return true
		}
		if len(in.Votes) != len(order) {
			return false
		}
		byRank := make(map[int]uint, len(in.Votes))
		for _, v := range in.Votes {
			if v.Rank == nil {
				return false
			}
			if _, dup := byRank[*v.Rank]; dup {
				return false
			}
			byRank[*v.Rank] = v.OptionID
		}
		for i, want := range order {
			if got, ok := byRank[i+1]; !ok || got != want {
				return false
			}
		}
		return true
	}
	return false
}

func correctOptionIDs(options []models.PollOption) map[uint]bool {
	ids := make(map[uint]bool)
	for _, o := range options {
		if o.IsCorrect {
			ids[o.ID] = true
		}
	}
	return ids
}

// ValidateVote checks the answer shape for the poll type before anything is stored.
func ValidateVote(poll *models.Poll, options []models.PollOption, in AnswerInput) error {
	if poll.PollType == models.PollTypeTextInput {
		return validateTextAnswer(in.TextValue)
	}

	valid := make(map[uint]bool, len(options))
	for _, o := range options {
		valid[o.ID] = true
	}
	seen := make(map[uint]bool, len(in.Votes))
	for _, v := range in.Votes {
		if !valid[v.OptionID] {
			return utils.Validationf("Option %d does not belong to this poll", v.OptionID)
		}
		if seen[v.OptionID] {
			return utils.Validation("Duplicate option in votes")
		}
		seen[v.OptionID] = true
	}

	switch poll.PollType {
	case models.PollTypeSingle:
		if len(in.Votes) != 1 {
			return utils.Validation("Single choice polls require exactly one vote")
		}
		if in.Votes[0].Rank != nil {
			return utils.Validation("Rank is only allowed for ranking polls")
		}

	case models.PollTypeMultiple:
		if len(in.Votes) == 0 {
			return utils.Validation("Select at least one option")
		}
		maxChoices := poll.MaxChoices
		if maxChoices <= 0 {
			maxChoices = len(options)
		}
		if len(in.Votes) > maxChoices {
			return utils.Validationf("You can select at most %d options", maxChoices)
		}
		for _, v := range in.Votes {
			if v.Rank != nil {
				return utils.Validation("Rank is only allowed for ranking polls")
			}
		}

	case models.PollTypeRanking:
		n := len(options)
		if len(in.Votes) != n {
			return utils.Validationf("Must rank all %d options", n)
		}
		ranks := make(map[int]bool, n)
		for _, v := range in.Votes {
			if v.Rank == nil {
				return utils.Validation("Each ranking vote requires a rank")
			}
			r := *v.Rank
			if r < 1 || r > n || ranks[r] {
				return utils.Validationf("Ranks must be unique values from 1 to %d", n)
			}
			ranks[r] = true
		}

	default:
		return utils.Validation(fmt.Sprintf("Unsupported poll type %q", poll.PollType))
	}
	return nil
}

func validateTextAnswer(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return utils.Validation("Text answer is required")
	}
	if strings.ContainsAny(text, " \t\n") {
		return utils.Validation("Text answer must be a single word without spaces")
	}
	if utf8.RuneCountInString(text) > maxTextAnswerLength {
		return utils.Validationf("Text answer must be at most %d characters", maxTextAnswerLength)
	}
	return nil
}
