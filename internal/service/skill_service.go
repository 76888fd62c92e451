package service

import (
	"context"
	"errors"
	"strings"

	"adaptive-quiz-backend/internal/apperror"
	"adaptive-quiz-backend/internal/irt"
	"adaptive-quiz-backend/internal/model"
	"adaptive-quiz-backend/internal/repository"
)

// calibrationWindow is how many recent answers a calibration reads.
const calibrationWindow = 200

type SkillInput struct {
	Name           string   `json:"name" validate:"required,max=100"`
	Description    string   `json:"description" validate:"max=1000"`
	CategoryID     uint     `json:"category_id" validate:"required"`
	DifficultyBase *float64 `json:"difficulty_base" validate:"omitempty,gte=0.5,lte=4.5"`
}

// CalibrationResult reports a difficulty recalibration of one skill.
type CalibrationResult struct {
	SkillID   uint    `json:"skillId"`
	Before    float64 `json:"before"`
	After     float64 `json:"after"`
	Responses int     `json:"responses"`
}

type SkillService interface {
	ListSkills(ctx context.Context) ([]model.Skill, error)
	GetSkill(ctx context.Context, id uint) (*model.Skill, error)
	SkillsByCategory(ctx context.Context, categoryID uint) ([]model.Skill, error)
	CreateSkill(ctx context.Context, in SkillInput) (*model.Skill, error)
	UpdateSkill(ctx context.Context, id uint, in SkillInput) (*model.Skill, error)
	DeleteSkill(ctx context.Context, id uint) error
	CalibrateSkill(ctx context.Context, id uint) (*CalibrationResult, error)
}

type skillService struct {
	skills     repository.SkillRepository
	categories repository.CategoryRepository
	abilities  repository.AbilityRepository
	questions  repository.QuestionRepository
}

func NewSkillService(skills repository.SkillRepository, categories repository.CategoryRepository, abilities repository.AbilityRepository, questions repository.QuestionRepository) SkillService {
	return &skillService{skills: skills, categories: categories, abilities: abilities, questions: questions}
}

func (s *skillService) ListSkills(ctx context.Context) ([]model.Skill, error) {
	skills, err := s.skills.FindAllSkills(ctx)
	if err != nil {
		return nil, apperror.Persistence("load skills", err)
	}
	return skills, nil
}

func (s *skillService) GetSkill(ctx context.Context, id uint) (*model.Skill, error) {
	skill, err := s.skills.FindSkillByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound("skill %d not found", id)
	}
	if err != nil {
		return nil, apperror.Persistence("load skill", err)
	}
	return skill, nil
}

func (s *skillService) SkillsByCategory(ctx context.Context, categoryID uint) ([]model.Skill, error) {
	if err := s.requireCategory(ctx, categoryID); err != nil {
		return nil, err
	}
	skills, err := s.skills.FindSkillsByCategory(ctx, categoryID)
	if err != nil {
		return nil, apperror.Persistence("load skills", err)
	}
	return skills, nil
}

func (s *skillService) CreateSkill(ctx context.Context, in SkillInput) (*model.Skill, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if err := s.requireCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}

	skill := &model.Skill{Name: in.Name, Description: in.Description, CategoryID: in.CategoryID, DifficultyBase: 2}
	if in.DifficultyBase != nil {
		skill.DifficultyBase = *in.DifficultyBase
	}

	err := s.skills.CreateSkill(ctx, skill)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, apperror.Conflict("skill %q already exists in category %d", in.Name, in.CategoryID)
	}
	if err != nil {
		return nil, apperror.Persistence("create skill", err)
	}
	return skill, nil
}

func (s *skillService) UpdateSkill(ctx context.Context, id uint, in SkillInput) (*model.Skill, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	skill, err := s.GetSkill(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.CategoryID != skill.CategoryID {
		if err := s.requireCategory(ctx, in.CategoryID); err != nil {
			return nil, err
		}
	}

	skill.Name = in.Name
	skill.Description = in.Description
	skill.CategoryID = in.CategoryID
	skill.Category = nil
	if in.DifficultyBase != nil {
		skill.DifficultyBase = *in.DifficultyBase
	}

	err = s.skills.UpdateSkill(ctx, skill)
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		return nil, apperror.Conflict("skill %q already exists in category %d", in.Name, in.CategoryID)
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperror.NotFound("skill %d not found", id)
	case err != nil:
		return nil, apperror.Persistence("update skill", err)
	}
	return skill, nil
}

// DeleteSkill refuses skills that learners already have abilities on.
func (s *skillService) DeleteSkill(ctx context.Context, id uint) error {
	if _, err := s.GetSkill(ctx, id); err != nil {
		return err
	}
	n, err := s.abilities.CountBySkill(ctx, id)
	if err != nil {
		return apperror.Persistence("count ability states", err)
	}
	if n > 0 {
		return apperror.Conflict("skill %d has ability records for %d learners", id, n)
	}

	err = s.skills.DeleteSkill(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound("skill %d not found", id)
	}
	if err != nil {
		return apperror.Persistence("delete skill", err)
	}
	return nil
}

// CalibrateSkill moves the skill's base difficulty toward the observed
// answers, each weighed at the learner's theta when it was given.
func (s *skillService) CalibrateSkill(ctx context.Context, id uint) (*CalibrationResult, error) {
	skill, err := s.GetSkill(ctx, id)
	if err != nil {
		return nil, err
	}

	records, err := s.questions.FindAnsweredBySkill(ctx, id, calibrationWindow)
	if err != nil {
		return nil, apperror.Persistence("load answered questions", err)
	}
	responses := make([]irt.Response, 0, len(records))
	for _, r := range records {
		if r.ThetaBefore == nil || r.IsCorrect == nil {
			continue
		}
		responses = append(responses, irt.Response{Correct: *r.IsCorrect, Theta: *r.ThetaBefore})
	}

	result := &CalibrationResult{SkillID: id, Before: skill.DifficultyBase, After: skill.DifficultyBase, Responses: len(responses)}
	if len(responses) == 0 {
		return result, nil
	}

	result.After = irt.UpdateDifficulty(skill.DifficultyBase, responses, irt.DefaultDifficultyLearningRate, irt.DefaultDiscrimination)
	if err := s.skills.UpdateDifficultyBase(ctx, id, result.After); err != nil {
		return nil, apperror.Persistence("save difficulty", err)
	}
	return result, nil
}

func (s *skillService) requireCategory(ctx context.Context, categoryID uint) error {
	_, err := s.categories.FindCategoryByID(ctx, categoryID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound("category %d not found", categoryID)
	}
	if err != nil {
		return apperror.Persistence("load category", err)
	}
	return nil
}
