package service

import (
	"time"

	"adaptive-quiz-backend/internal/model"
)

type NamedRef struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// QuestionView is the client projection of a question record. The answer
// key and explanation are included only when revealed.
type QuestionView struct {
	ID                 uint                 `json:"id"`
	Mode               model.QuestionMode   `json:"mode"`
	Text               string               `json:"text"`
	Options            []string             `json:"options,omitempty"`
	CorrectOptionIndex *int                 `json:"correctOptionIndex,omitempty"`
	Explanation        string               `json:"explanation,omitempty"`
	Difficulty         float64              `json:"difficulty"`
	Source             model.QuestionSource `json:"source"`
	Category           NamedRef             `json:"category"`
	Skill              *NamedRef            `json:"skill,omitempty"`
	AskedAt            time.Time            `json:"askedAt"`
	AnsweredAt         *time.Time           `json:"answeredAt,omitempty"`
	UserAnswerIndex    *int                 `json:"userAnswerIndex,omitempty"`
	AnswerText         string               `json:"answerText,omitempty"`
	IsCorrect          *bool                `json:"isCorrect,omitempty"`
	TimeTakenSeconds   int                  `json:"timeTaken,omitempty"`
}

// NewQuestionView projects r. Answered records always reveal the key.
func NewQuestionView(r *model.QuestionRecord, revealAnswer bool) QuestionView {
	v := QuestionView{
		ID:               r.ID,
		Mode:             r.Mode,
		Text:             r.Text,
		Options:          append([]string(nil), r.Options...),
		Difficulty:       r.Difficulty,
		Source:           r.Source,
		Category:         NamedRef{ID: r.CategoryID},
		AskedAt:          r.AskedAt,
		AnsweredAt:       r.AnsweredAt,
		UserAnswerIndex:  r.UserAnswerIndex,
		AnswerText:       r.AnswerText,
		IsCorrect:        r.IsCorrect,
		TimeTakenSeconds: r.TimeTakenSeconds,
	}
	if r.Category != nil {
		v.Category.Name = r.Category.Name
	}
	if r.SkillID != nil {
		v.Skill = &NamedRef{ID: *r.SkillID}
		if r.Skill != nil {
			v.Skill.Name = r.Skill.Name
		}
	}
	if revealAnswer || r.IsAnswered() {
		v.CorrectOptionIndex = r.CorrectOptionIndex
		v.Explanation = r.Explanation
	}
	return v
}

// AbilityView is a learner's ability snapshot on one skill.
type AbilityView struct {
	SkillID         uint       `json:"skillId"`
	SkillName       string     `json:"skillName,omitempty"`
	CategoryID      uint       `json:"categoryId,omitempty"`
	CategoryName    string     `json:"categoryName,omitempty"`
	Theta           float64    `json:"theta"`
	Confidence      float64    `json:"confidence"`
	TotalAttempts   int        `json:"totalAttempts"`
	CorrectAttempts int        `json:"correctAttempts"`
	LastAttemptAt   *time.Time `json:"lastAttemptAt,omitempty"`
}

func NewAbilityView(s *model.AbilityState) AbilityView {
	v := AbilityView{
		SkillID:         s.SkillID,
		Theta:           s.Theta,
		Confidence:      s.Confidence,
		TotalAttempts:   s.TotalAttempts,
		CorrectAttempts: s.CorrectAttempts,
		LastAttemptAt:   s.LastAttemptAt,
	}
	if s.Skill != nil {
		v.SkillName = s.Skill.Name
		v.CategoryID = s.Skill.CategoryID
		if s.Skill.Category != nil {
			v.CategoryName = s.Skill.Category.Name
		}
	}
	return v
}

// Event payloads published on the event bus.
type QuestionGeneratedEvent struct {
	QuestionID uint
	LearnerID  uint
	SkillID    uint
	Source     model.QuestionSource
	Difficulty float64
	// FallbackErr is the PROVIDER_ERROR that sent generation to the local
	// generator. Nil when the provider succeeded or was not asked.
	FallbackErr error
}

type AnswerRecordedEvent struct {
	QuestionID uint
	LearnerID  uint
	SkillID    *uint
	IsCorrect  bool
	ThetaAfter *float64
}
