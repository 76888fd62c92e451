package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"adaptive-quiz-backend/internal/db/query"
	"adaptive-quiz-backend/internal/model"
)

// HistoryFilter narrows a learner's question history. Zero values mean no
// restriction.
type HistoryFilter struct {
	CategoryID uint
	SkillID    uint
	Answered   *bool
	Since      time.Time
	Limit      int
	Offset     int
}

// AnswerUpdate holds the fields written when a question is answered.
type AnswerUpdate struct {
	AnsweredAt       time.Time
	UserAnswerIndex  *int
	AnswerText       string
	IsCorrect        bool
	TimeTakenSeconds int
	ThetaBefore      *float64
	ThetaAfter       *float64
}

// CategoryStat aggregates one learner's history for a category.
type CategoryStat struct {
	CategoryID   uint
	CategoryName string
	Asked        int64
	Answered     int64
	Correct      int64
	AvgSeconds   float64
}

type QuestionRepository interface {
	WithTx(tx *gorm.DB) QuestionRepository
	SaveQuestionRecord(ctx context.Context, record *model.QuestionRecord) error
	FindQuestionRecord(ctx context.Context, questionID, learnerID uint) (*model.QuestionRecord, error)
	FindQuestionRecordForUpdate(ctx context.Context, questionID, learnerID uint) (*model.QuestionRecord, error)
	FindRecentQuestionRecords(ctx context.Context, learnerID uint, limit int) ([]model.QuestionRecord, error)
	FindHistory(ctx context.Context, learnerID uint, filter HistoryFilter) ([]model.QuestionRecord, error)
	MarkAnswered(ctx context.Context, questionID, learnerID uint, update AnswerUpdate) error
	ExistsRecentHash(ctx context.Context, learnerID uint, hash string, since time.Time) (bool, error)
	FindAnsweredBySkill(ctx context.Context, skillID uint, limit int) ([]model.QuestionRecord, error)
	CategoryStats(ctx context.Context, learnerID uint) ([]CategoryStat, error)
}

type questionRepository struct {
	db *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

func (r *questionRepository) WithTx(tx *gorm.DB) QuestionRepository {
	return &questionRepository{db: tx}
}

func (r *questionRepository) SaveQuestionRecord(ctx context.Context, record *model.QuestionRecord) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Save(record).Error)
}

func (r *questionRepository) FindQuestionRecord(ctx context.Context, questionID, learnerID uint) (*model.QuestionRecord, error) {
	return r.findOne(r.db.WithContext(ctx), questionID, learnerID)
}

func (r *questionRepository) FindQuestionRecordForUpdate(ctx context.Context, questionID, learnerID uint) (*model.QuestionRecord, error) {
	return r.findOne(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), questionID, learnerID)
}

func (r *questionRepository) findOne(q *gorm.DB, questionID, learnerID uint) (*model.QuestionRecord, error) {
	var record model.QuestionRecord
	err := q.Where("id = ? AND user_id = ?", questionID, learnerID).First(&record).Error
	if err != nil {
		return nil, translate(err)
	}
	return &record, nil
}

// FindRecentQuestionRecords returns up to limit records, newest first, with
// category and skill loaded.
func (r *questionRepository) FindRecentQuestionRecords(ctx context.Context, learnerID uint, limit int) ([]model.QuestionRecord, error) {
	return r.FindHistory(ctx, learnerID, HistoryFilter{Limit: limit})
}

func (r *questionRepository) FindHistory(ctx context.Context, learnerID uint, filter HistoryFilter) ([]model.QuestionRecord, error) {
	fp := query.NewFilterPredicate().Equal("user_id", learnerID)
	if filter.CategoryID != 0 {
		fp.Equal("category_id", filter.CategoryID)
	}
	if filter.SkillID != 0 {
		fp.Equal("skill_id", filter.SkillID)
	}
	if filter.Answered != nil {
		if *filter.Answered {
			fp.IsNotNull("answered_at")
		} else {
			fp.IsNull("answered_at")
		}
	}
	if !filter.Since.IsZero() {
		fp.GreaterThan("asked_at", filter.Since)
	}

	q := r.db.WithContext(ctx).
		Preload("Category").
		Preload("Skill").
		Scopes(fp.Scope()).
		Order("asked_at DESC").
		Order("id DESC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var records []model.QuestionRecord
	err := q.Find(&records).Error
	return records, translate(err)
}

// MarkAnswered writes the answer fields only while the record is still
// unanswered. ErrNotUpdated means another request answered it first or the
// record does not belong to the learner.
func (r *questionRepository) MarkAnswered(ctx context.Context, questionID, learnerID uint, update AnswerUpdate) error {
	res := r.db.WithContext(ctx).
		Model(&model.QuestionRecord{}).
		Where("id = ? AND user_id = ? AND answered_at IS NULL", questionID, learnerID).
		Updates(map[string]any{
			"answered_at":        update.AnsweredAt,
			"user_answer_index":  update.UserAnswerIndex,
			"answer_text":        update.AnswerText,
			"is_correct":         update.IsCorrect,
			"time_taken_seconds": update.TimeTakenSeconds,
			"theta_before":       update.ThetaBefore,
			"theta_after":        update.ThetaAfter,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotUpdated
	}
	return nil
}

func (r *questionRepository) ExistsRecentHash(ctx context.Context, learnerID uint, hash string, since time.Time) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.QuestionRecord{}).
		Where("user_id = ? AND hash = ? AND asked_at > ?", learnerID, hash, since).
		Count(&n).Error
	if err != nil {
		return false, translate(err)
	}
	return n > 0, nil
}

// FindAnsweredBySkill returns the most recent answered records of a skill
// across all learners.
func (r *questionRepository) FindAnsweredBySkill(ctx context.Context, skillID uint, limit int) ([]model.QuestionRecord, error) {
	q := r.db.WithContext(ctx).
		Where("skill_id = ? AND answered_at IS NOT NULL", skillID).
		Order("answered_at DESC").
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var records []model.QuestionRecord
	err := q.Find(&records).Error
	return records, translate(err)
}

func (r *questionRepository) CategoryStats(ctx context.Context, learnerID uint) ([]CategoryStat, error) {
	var stats []CategoryStat
	err := r.db.WithContext(ctx).
		Table("question_history AS h").
		Select(`h.category_id AS category_id,
			c.name AS category_name,
			COUNT(*) AS asked,
			SUM(CASE WHEN h.answered_at IS NOT NULL THEN 1 ELSE 0 END) AS answered,
			SUM(CASE WHEN h.is_correct THEN 1 ELSE 0 END) AS correct,
			COALESCE(AVG(CASE WHEN h.answered_at IS NOT NULL THEN h.time_taken_seconds END), 0) AS avg_seconds`).
		Joins("JOIN categories AS c ON c.id = h.category_id").
		Where("h.user_id = ?", learnerID).
		Group("h.category_id, c.name").
		Order("h.category_id").
		Scan(&stats).Error
	return stats, translate(err)
}
