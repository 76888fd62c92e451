package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	Username    string     `json:"username" gorm:"not null"`
	Email       string     `json:"email" gorm:"uniqueIndex;not null"`
	Password    string     `json:"-" gorm:"not null"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Role        string     `json:"role" gorm:"size:16;not null;default:user"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

type Category struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"uniqueIndex;not null"`
	Description string    `json:"description"`
	ParentID    *uint     `json:"parent_id,omitempty" gorm:"index"`
	Level       int       `json:"level" gorm:"not null;default:0"`
	Skills      []Skill   `json:"skills,omitempty" gorm:"foreignKey:CategoryID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Skill struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	Name           string    `json:"name" gorm:"uniqueIndex:idx_skill_name_category;not null"`
	Description    string    `json:"description"`
	CategoryID     uint      `json:"category_id" gorm:"uniqueIndex:idx_skill_name_category;not null;index"`
	Category       *Category `json:"category,omitempty"`
	DifficultyBase float64   `json:"difficulty_base" gorm:"not null;default:2"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AbilityState is a learner's estimated ability on one skill.
type AbilityState struct {
	ID              uint       `json:"id" gorm:"primaryKey"`
	UserID          uint       `json:"user_id" gorm:"uniqueIndex:idx_user_skill;not null"`
	SkillID         uint       `json:"skill_id" gorm:"uniqueIndex:idx_user_skill;not null"`
	Skill           *Skill     `json:"skill,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	Theta           float64    `json:"theta" gorm:"not null;default:0"`
	Confidence      float64    `json:"confidence" gorm:"not null;default:1"`
	TotalAttempts   int        `json:"total_attempts" gorm:"not null;default:0"`
	CorrectAttempts int        `json:"correct_attempts" gorm:"not null;default:0"`
	LastAttemptAt   *time.Time `json:"last_attempt_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (AbilityState) TableName() string {
	return "user_skill_levels"
}

// CorrectRatio is the share of correct attempts, 0.5 before any attempt.
func (a *AbilityState) CorrectRatio() float64 {
	if a.TotalAttempts == 0 {
		return 0.5
	}
	return float64(a.CorrectAttempts) / float64(a.TotalAttempts)
}

type QuestionMode string

const (
	ModeMultipleChoice QuestionMode = "multiple_choice"
	ModeFreeText       QuestionMode = "free_text"
)

type QuestionSource string

const (
	SourceProvider QuestionSource = "provider"
	SourceFallback QuestionSource = "fallback"
)

// QuestionRecord is a question asked to a learner. The answer fields are
// written at most once.
type QuestionRecord struct {
	ID                 uint                        `json:"id" gorm:"primaryKey"`
	UserID             uint                        `json:"user_id" gorm:"not null;index:idx_history_user_asked"`
	CategoryID         uint                        `json:"category_id" gorm:"not null;index"`
	Category           *Category                   `json:"category,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	SkillID            *uint                       `json:"skill_id,omitempty" gorm:"index"`
	Skill              *Skill                      `json:"skill,omitempty" gorm:"constraint:OnDelete:SET NULL"`
	Hash               string                      `json:"hash" gorm:"size:64;not null;index"`
	Mode               QuestionMode                `json:"mode" gorm:"size:32;not null;default:multiple_choice"`
	Text               string                      `json:"text" gorm:"type:text;not null"`
	Options            datatypes.JSONSlice[string] `json:"options,omitempty"`
	CorrectOptionIndex *int                        `json:"correct_option_index,omitempty"`
	Explanation        string                      `json:"explanation,omitempty" gorm:"type:text"`
	Difficulty         float64                     `json:"difficulty" gorm:"not null"`
	Summary            string                      `json:"summary" gorm:"size:64"`
	AbstractHash       string                      `json:"abstract_hash" gorm:"size:255"`
	Source             QuestionSource              `json:"source" gorm:"size:16;not null"`
	AskedAt            time.Time                   `json:"asked_at" gorm:"not null;index:idx_history_user_asked"`
	AnsweredAt         *time.Time                  `json:"answered_at,omitempty"`
	UserAnswerIndex    *int                        `json:"user_answer_index,omitempty"`
	AnswerText         string                      `json:"answer_text,omitempty" gorm:"type:text"`
	IsCorrect          *bool                       `json:"is_correct,omitempty"`
	TimeTakenSeconds   int                         `json:"time_taken_seconds"`
	ThetaBefore        *float64                    `json:"theta_before,omitempty"`
	ThetaAfter         *float64                    `json:"theta_after,omitempty"`
	CreatedAt          time.Time                   `json:"created_at"`
	UpdatedAt          time.Time                   `json:"updated_at"`
}

func (QuestionRecord) TableName() string {
	return "question_history"
}

func (q *QuestionRecord) IsAnswered() bool {
	return q.AnsweredAt != nil
}

// AllModels lists every persisted model in migration order.
func AllModels() []any {
	return []any{&User{}, &Category{}, &Skill{}, &AbilityState{}, &QuestionRecord{}}
}
