package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"adaptive-quiz-backend/internal/service"
)

type SkillController struct {
	SkillService service.SkillService
}

func NewSkillController(skillService service.SkillService) *SkillController {
	return &SkillController{SkillService: skillService}
}

func (sc *SkillController) List(c *gin.Context) {
	skills, err := sc.SkillService.ListSkills(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, skills)
}

func (sc *SkillController) Get(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	skill, err := sc.SkillService.GetSkill(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, skill)
}

// ByCategory handles GET /skills/category/:categoryId
func (sc *SkillController) ByCategory(c *gin.Context) {
	id, ok := uintParam(c, "categoryId")
	if !ok {
		return
	}
	skills, err := sc.SkillService.SkillsByCategory(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, skills)
}

func (sc *SkillController) Create(c *gin.Context) {
	var in service.SkillInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid input")
		return
	}
	skill, err := sc.SkillService.CreateSkill(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, skill)
}

func (sc *SkillController) Update(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var in service.SkillInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid input")
		return
	}
	skill, err := sc.SkillService.UpdateSkill(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, skill)
}

func (sc *SkillController) Delete(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	if err := sc.SkillService.DeleteSkill(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Calibrate handles POST /skills/:id/calibrate
func (sc *SkillController) Calibrate(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	result, err := sc.SkillService.CalibrateSkill(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
