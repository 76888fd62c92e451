package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"adaptive-quiz-backend/internal/model"
)

type AbilityRepository interface {
	WithTx(tx *gorm.DB) AbilityRepository
	FindAbilityState(ctx context.Context, learnerID, skillID uint) (*model.AbilityState, error)
	FindAbilityStateForUpdate(ctx context.Context, learnerID, skillID uint) (*model.AbilityState, error)
	LockOrCreateAbilityState(ctx context.Context, learnerID, skillID uint, confidence float64) (*model.AbilityState, error)
	FindAbilityStates(ctx context.Context, learnerID uint, skillIDs []uint) ([]model.AbilityState, error)
	FindAbilityStatesByLearner(ctx context.Context, learnerID uint) ([]model.AbilityState, error)
	SaveAbilityState(ctx context.Context, state *model.AbilityState) error
	CountBySkill(ctx context.Context, skillID uint) (int64, error)
}

type abilityRepository struct {
	db *gorm.DB
}

func NewAbilityRepository(db *gorm.DB) AbilityRepository {
	return &abilityRepository{db: db}
}

func (r *abilityRepository) WithTx(tx *gorm.DB) AbilityRepository {
	return &abilityRepository{db: tx}
}

func (r *abilityRepository) FindAbilityState(ctx context.Context, learnerID, skillID uint) (*model.AbilityState, error) {
	return r.findOne(r.db.WithContext(ctx), learnerID, skillID)
}

// FindAbilityStateForUpdate locks the row until the surrounding transaction
// ends. Dialects without row locks ignore the clause.
func (r *abilityRepository) FindAbilityStateForUpdate(ctx context.Context, learnerID, skillID uint) (*model.AbilityState, error) {
	return r.findOne(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), learnerID, skillID)
}

// LockOrCreateAbilityState inserts a fresh state for the pair unless one
// exists, then locks and returns the stored row. Concurrent callers for the
// same pair all end up holding the single row in turn.
func (r *abilityRepository) LockOrCreateAbilityState(ctx context.Context, learnerID, skillID uint, confidence float64) (*model.AbilityState, error) {
	fresh := &model.AbilityState{UserID: learnerID, SkillID: skillID, Confidence: confidence}
	err := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "skill_id"}},
			DoNothing: true,
		}).
		Create(fresh).Error
	if err != nil {
		return nil, translate(err)
	}
	return r.FindAbilityStateForUpdate(ctx, learnerID, skillID)
}

func (r *abilityRepository) findOne(q *gorm.DB, learnerID, skillID uint) (*model.AbilityState, error) {
	var state model.AbilityState
	err := q.Where("user_id = ? AND skill_id = ?", learnerID, skillID).First(&state).Error
	if err != nil {
		return nil, translate(err)
	}
	return &state, nil
}

func (r *abilityRepository) FindAbilityStates(ctx context.Context, learnerID uint, skillIDs []uint) ([]model.AbilityState, error) {
	var states []model.AbilityState
	if len(skillIDs) == 0 {
		return states, nil
	}
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND skill_id IN ?", learnerID, skillIDs).
		Order("skill_id").
		Find(&states).Error
	return states, translate(err)
}

func (r *abilityRepository) FindAbilityStatesByLearner(ctx context.Context, learnerID uint) ([]model.AbilityState, error) {
	var states []model.AbilityState
	err := r.db.WithContext(ctx).
		Preload("Skill.Category").
		Where("user_id = ?", learnerID).
		Order("skill_id").
		Find(&states).Error
	return states, translate(err)
}

// SaveAbilityState inserts a new state or updates an existing one.
func (r *abilityRepository) SaveAbilityState(ctx context.Context, state *model.AbilityState) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Save(state).Error)
}

func (r *abilityRepository) CountBySkill(ctx context.Context, skillID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.AbilityState{}).Where("skill_id = ?", skillID).Count(&n).Error
	return n, translate(err)
}
