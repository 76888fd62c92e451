package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"adaptive-quiz-backend/internal/model"
	"adaptive-quiz-backend/internal/service"
)

type QuestionController struct {
	QuestionService service.QuestionService
}

func NewQuestionController(questionService service.QuestionService) *QuestionController {
	return &QuestionController{QuestionService: questionService}
}

// Generate handles GET /questions?categoryId=&skillId=&mode=
func (qc *QuestionController) Generate(c *gin.Context) {
	learnerID, ok := currentUser(c)
	if !ok {
		return
	}
	categoryID, ok := uintQuery(c, "categoryId")
	if !ok {
		return
	}
	skillID, ok := uintQuery(c, "skillId")
	if !ok {
		return
	}

	question, err := qc.QuestionService.GenerateQuestion(c.Request.Context(), service.GenerateInput{
		LearnerID:  learnerID,
		CategoryID: categoryID,
		SkillID:    skillID,
		Mode:       model.QuestionMode(c.Query("mode")),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, question)
}

// History handles GET /questions/history?limit=&offset=&categoryId=&skillId=&answered=
func (qc *QuestionController) History(c *gin.Context) {
	learnerID, ok := currentUser(c)
	if !ok {
		return
	}
	var q service.HistoryQuery
	if q.Limit, ok = intQuery(c, "limit"); !ok {
		return
	}
	if q.Offset, ok = intQuery(c, "offset"); !ok {
		return
	}
	if q.CategoryID, ok = uintQuery(c, "categoryId"); !ok {
		return
	}
	if q.SkillID, ok = uintQuery(c, "skillId"); !ok {
		return
	}
	if raw := c.Query("answered"); raw != "" {
		answered, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, "invalid answered")
			return
		}
		q.Answered = &answered
	}

	questions, err := qc.QuestionService.History(c.Request.Context(), learnerID, q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, questions)
}

func intQuery(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return n, true
}
