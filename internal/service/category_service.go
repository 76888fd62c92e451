package service

import (
	"context"
	"errors"
	"strings"

	"adaptive-quiz-backend/internal/apperror"
	"adaptive-quiz-backend/internal/model"
	"adaptive-quiz-backend/internal/repository"
)

type CategoryInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=1000"`
	ParentID    *uint  `json:"parent_id"`
}

type CategoryService interface {
	ListCategories(ctx context.Context) ([]model.Category, error)
	GetCategory(ctx context.Context, id uint) (*model.Category, error)
	CreateCategory(ctx context.Context, in CategoryInput) (*model.Category, error)
	UpdateCategory(ctx context.Context, id uint, in CategoryInput) (*model.Category, error)
	DeleteCategory(ctx context.Context, id uint) error
}

type categoryService struct {
	categories repository.CategoryRepository
}

func NewCategoryService(categories repository.CategoryRepository) CategoryService {
	return &categoryService{categories: categories}
}

func (s *categoryService) ListCategories(ctx context.Context) ([]model.Category, error) {
	categories, err := s.categories.FindAllCategories(ctx)
	if err != nil {
		return nil, apperror.Persistence("load categories", err)
	}
	return categories, nil
}

func (s *categoryService) GetCategory(ctx context.Context, id uint) (*model.Category, error) {
	category, err := s.categories.FindCategoryByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound("category %d not found", id)
	}
	if err != nil {
		return nil, apperror.Persistence("load category", err)
	}
	return category, nil
}

func (s *categoryService) CreateCategory(ctx context.Context, in CategoryInput) (*model.Category, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	category := &model.Category{Name: in.Name, Description: in.Description}
	if err := s.placeUnder(ctx, category, in.ParentID); err != nil {
		return nil, err
	}

	err := s.categories.CreateCategory(ctx, category)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, apperror.Conflict("category %q already exists", in.Name)
	}
	if err != nil {
		return nil, apperror.Persistence("create category", err)
	}
	return category, nil
}

func (s *categoryService) UpdateCategory(ctx context.Context, id uint, in CategoryInput) (*model.Category, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.ParentID != nil && *in.ParentID == id {
		return nil, apperror.Validation("a category cannot be its own parent")
	}

	category, err := s.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	category.Name = in.Name
	category.Description = in.Description
	if err := s.placeUnder(ctx, category, in.ParentID); err != nil {
		return nil, err
	}

	err = s.categories.UpdateCategory(ctx, category)
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		return nil, apperror.Conflict("category %q already exists", in.Name)
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperror.NotFound("category %d not found", id)
	case err != nil:
		return nil, apperror.Persistence("update category", err)
	}
	return category, nil
}

// DeleteCategory removes the category with its skills and history.
func (s *categoryService) DeleteCategory(ctx context.Context, id uint) error {
	err := s.categories.DeleteCategory(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound("category %d not found", id)
	}
	if err != nil {
		return apperror.Persistence("delete category", err)
	}
	return nil
}

// placeUnder sets the parent and derives the level from it.
func (s *categoryService) placeUnder(ctx context.Context, category *model.Category, parentID *uint) error {
	category.ParentID = parentID
	category.Level = 0
	if parentID == nil {
		return nil
	}

	parent, err := s.categories.FindCategoryByID(ctx, *parentID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.Validation("parent category %d does not exist", *parentID)
	}
	if err != nil {
		return apperror.Persistence("load parent category", err)
	}
	category.Level = parent.Level + 1
	return nil
}
