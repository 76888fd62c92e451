package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"adaptive-quiz-backend/internal/model"
	"adaptive-quiz-backend/internal/service"
)

type AnswerController struct {
	AnswerService service.AnswerService
}

func NewAnswerController(answerService service.AnswerService) *AnswerController {
	return &AnswerController{AnswerService: answerService}
}

// answerRequest carries either a selected option or a free-text answer.
type answerRequest struct {
	QuestionID          uint    `json:"questionId" binding:"required"`
	SelectedOptionIndex *int    `json:"selectedOptionIndex"`
	AnswerText          *string `json:"answerText"`
	IsCorrect           *bool   `json:"isCorrect"`
	TimeTaken           float64 `json:"timeTaken"`
}

func (r answerRequest) answer() (model.Answer, string) {
	switch {
	case r.SelectedOptionIndex != nil && r.AnswerText != nil:
		return nil, "send either selectedOptionIndex or answerText, not both"
	case r.SelectedOptionIndex != nil:
		return model.MultipleChoiceAnswer{SelectedOptionIndex: *r.SelectedOptionIndex}, ""
	case r.AnswerText != nil:
		if r.IsCorrect == nil {
			return nil, "isCorrect is required with answerText"
		}
		return model.FreeTextAnswer{Text: *r.AnswerText, IsCorrect: *r.IsCorrect}, ""
	default:
		return nil, "selectedOptionIndex or answerText is required"
	}
}

// Submit handles POST /answers
func (ac *AnswerController) Submit(c *gin.Context) {
	learnerID, ok := currentUser(c)
	if !ok {
		return
	}
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid input")
		return
	}
	answer, msg := req.answer()
	if answer == nil {
		badRequest(c, msg)
		return
	}
	if req.TimeTaken < 0 {
		badRequest(c, "timeTaken cannot be negative")
		return
	}

	taken := time.Duration(req.TimeTaken * float64(time.Second))
	result, err := ac.AnswerService.RecordAnswer(c.Request.Context(), req.QuestionID, learnerID, answer, taken)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
