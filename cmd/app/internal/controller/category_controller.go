package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"adaptive-quiz-backend/internal/service"
)

type CategoryController struct {
	CategoryService service.CategoryService
	SkillService    service.SkillService
}

func NewCategoryController(categoryService service.CategoryService, skillService service.SkillService) *CategoryController {
	return &CategoryController{CategoryService: categoryService, SkillService: skillService}
}

func (cc *CategoryController) List(c *gin.Context) {
	categories, err := cc.CategoryService.ListCategories(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (cc *CategoryController) Get(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	category, err := cc.CategoryService.GetCategory(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

// Skills handles GET /categories/:id/skills
func (cc *CategoryController) Skills(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	skills, err := cc.SkillService.SkillsByCategory(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, skills)
}

func (cc *CategoryController) Create(c *gin.Context) {
	var in service.CategoryInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid input")
		return
	}
	category, err := cc.CategoryService.CreateCategory(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

func (cc *CategoryController) Update(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var in service.CategoryInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid input")
		return
	}
	category, err := cc.CategoryService.UpdateCategory(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

func (cc *CategoryController) Delete(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	if err := cc.CategoryService.DeleteCategory(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
