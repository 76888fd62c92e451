package service

import (
	"context"
	"errors"
	"sort"

	"adaptive-quiz-backend/internal/apperror"
	"adaptive-quiz-backend/internal/model"
	"adaptive-quiz-backend/internal/repository"
)

const (
	// WeakSkillBias is the chance of drawing from the weak band when the
	// learner has ability records.
	WeakSkillBias = 0.7
	// WeakBandFraction is the share of the learner's theta range, from the
	// bottom, that counts as weak.
	WeakBandFraction = 0.3
)

// Selection is the resolved target of the next question. Ability is nil
// when the learner has never answered a question of the skill.
type Selection struct {
	Category model.Category
	Skill    model.Skill
	Ability  *model.AbilityState
}

// SkillSelector resolves which category and skill to ask about next,
// favouring the learner's weakest skills.
type SkillSelector struct {
	categories repository.CategoryRepository
	skills     repository.SkillRepository
	abilities  repository.AbilityRepository
	rng        *Rand
}

func NewSkillSelector(categories repository.CategoryRepository, skills repository.SkillRepository, abilities repository.AbilityRepository, rng *Rand) *SkillSelector {
	return &SkillSelector{categories: categories, skills: skills, abilities: abilities, rng: rng}
}

// Select resolves the explicit ids when given and picks randomly otherwise.
// A skill outside the requested category is a validation error; an empty
// catalog or category is not found.
func (s *SkillSelector) Select(ctx context.Context, learnerID, categoryID, skillID uint) (*Selection, error) {
	if skillID != 0 {
		return s.selectExplicitSkill(ctx, learnerID, categoryID, skillID)
	}

	category, err := s.resolveCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}

	skills, err := s.skills.FindSkillsByCategory(ctx, category.ID)
	if err != nil {
		return nil, apperror.Persistence("load skills", err)
	}
	if len(skills) == 0 {
		return nil, apperror.NotFound("category %d has no skills", category.ID)
	}

	ids := make([]uint, len(skills))
	for i, sk := range skills {
		ids[i] = sk.ID
	}
	states, err := s.abilities.FindAbilityStates(ctx, learnerID, ids)
	if err != nil {
		return nil, apperror.Persistence("load ability states", err)
	}

	skill := s.pickSkill(skills, states)
	skill.Category = category
	return &Selection{Category: *category, Skill: skill, Ability: stateFor(states, skill.ID)}, nil
}

func (s *SkillSelector) selectExplicitSkill(ctx context.Context, learnerID, categoryID, skillID uint) (*Selection, error) {
	skill, err := s.skills.FindSkillByID(ctx, skillID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound("skill %d not found", skillID)
	}
	if err != nil {
		return nil, apperror.Persistence("load skill", err)
	}
	if categoryID != 0 && skill.CategoryID != categoryID {
		return nil, apperror.Validation("skill %d does not belong to category %d", skillID, categoryID)
	}

	category := skill.Category
	if category == nil {
		if category, err = s.resolveCategory(ctx, skill.CategoryID); err != nil {
			return nil, err
		}
	}

	state, err := s.abilities.FindAbilityState(ctx, learnerID, skill.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.Persistence("load ability state", err)
	}
	return &Selection{Category: *category, Skill: *skill, Ability: state}, nil
}

func (s *SkillSelector) resolveCategory(ctx context.Context, categoryID uint) (*model.Category, error) {
	if categoryID != 0 {
		category, err := s.categories.FindCategoryByID(ctx, categoryID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound("category %d not found", categoryID)
		}
		if err != nil {
			return nil, apperror.Persistence("load category", err)
		}
		return category, nil
	}

	categories, err := s.categories.FindAllCategories(ctx)
	if err != nil {
		return nil, apperror.Persistence("load categories", err)
	}
	if len(categories) == 0 {
		return nil, apperror.NotFound("no categories available")
	}
	return &categories[s.rng.IntN(len(categories))], nil
}

// pickSkill draws from the weak band with probability WeakSkillBias when
// any ability records exist, otherwise uniformly from all skills.
func (s *SkillSelector) pickSkill(skills []model.Skill, states []model.AbilityState) model.Skill {
	if len(states) > 0 && s.rng.Float64() < WeakSkillBias {
		weak := weakBand(skills, states)
		if len(weak) > 0 {
			return weak[s.rng.IntN(len(weak))]
		}
	}
	return skills[s.rng.IntN(len(skills))]
}

// weakBand returns the skills with theta no higher than
// min + WeakBandFraction*(max-min), lowest theta first. Skills without an
// ability record count as theta 0. Equal thetas keep catalog order.
func weakBand(skills []model.Skill, states []model.AbilityState) []model.Skill {
	if len(skills) == 0 {
		return nil
	}
	theta := make(map[uint]float64, len(skills))
	for _, st := range states {
		theta[st.SkillID] = st.Theta
	}

	ranked := append([]model.Skill(nil), skills...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return theta[ranked[i].ID] < theta[ranked[j].ID]
	})

	lo, hi := theta[ranked[0].ID], theta[ranked[len(ranked)-1].ID]
	cut := lo + WeakBandFraction*(hi-lo)
	n := 0
	for n < len(ranked) && theta[ranked[n].ID] <= cut {
		n++
	}
	return ranked[:n]
}

func stateFor(states []model.AbilityState, skillID uint) *model.AbilityState {
	for i := range states {
		if states[i].SkillID == skillID {
			st := states[i]
			return &st
		}
	}
	return nil
}
