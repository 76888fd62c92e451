package repository

import (
	"context"

	"gorm.io/gorm"

	"adaptive-quiz-backend/internal/model"
)

type SkillRepository interface {
	FindSkillByID(ctx context.Context, id uint) (*model.Skill, error)
	FindSkillByName(ctx context.Context, categoryID uint, name string) (*model.Skill, error)
	FindSkillsByCategory(ctx context.Context, categoryID uint) ([]model.Skill, error)
	FindAllSkills(ctx context.Context) ([]model.Skill, error)
	CreateSkill(ctx context.Context, skill *model.Skill) error
	UpdateSkill(ctx context.Context, skill *model.Skill) error
	UpdateDifficultyBase(ctx context.Context, id uint, difficulty float64) error
	DeleteSkill(ctx context.Context, id uint) error
}

type skillRepository struct {
	db *gorm.DB
}

func NewSkillRepository(db *gorm.DB) SkillRepository {
	return &skillRepository{db: db}
}

func (r *skillRepository) FindSkillByID(ctx context.Context, id uint) (*model.Skill, error) {
	var skill model.Skill
	if err := r.db.WithContext(ctx).Preload("Category").First(&skill, id).Error; err != nil {
		return nil, translate(err)
	}
	return &skill, nil
}

func (r *skillRepository) FindSkillByName(ctx context.Context, categoryID uint, name string) (*model.Skill, error) {
	var skill model.Skill
	err := r.db.WithContext(ctx).
		Where("category_id = ? AND name = ?", categoryID, name).
		First(&skill).Error
	if err != nil {
		return nil, translate(err)
	}
	return &skill, nil
}

// FindSkillsByCategory returns the category's skills ordered by id.
func (r *skillRepository) FindSkillsByCategory(ctx context.Context, categoryID uint) ([]model.Skill, error) {
	var skills []model.Skill
	err := r.db.WithContext(ctx).Where("category_id = ?", categoryID).Order("id").Find(&skills).Error
	return skills, translate(err)
}

func (r *skillRepository) FindAllSkills(ctx context.Context) ([]model.Skill, error) {
	var skills []model.Skill
	err := r.db.WithContext(ctx).Preload("Category").Order("id").Find(&skills).Error
	return skills, translate(err)
}

func (r *skillRepository) CreateSkill(ctx context.Context, skill *model.Skill) error {
	return translate(r.db.WithContext(ctx).Create(skill).Error)
}

func (r *skillRepository) UpdateSkill(ctx context.Context, skill *model.Skill) error {
	res := r.db.WithContext(ctx).Model(skill).
		Select("Name", "Description", "CategoryID", "DifficultyBase").
		Updates(skill)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *skillRepository) UpdateDifficultyBase(ctx context.Context, id uint, difficulty float64) error {
	res := r.db.WithContext(ctx).Model(&model.Skill{}).Where("id = ?", id).Update("difficulty_base", difficulty)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *skillRepository) DeleteSkill(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.Skill{}, id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
