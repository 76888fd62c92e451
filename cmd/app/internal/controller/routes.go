package controller

import (
	"github.com/gin-gonic/gin"

	"adaptive-quiz-backend/internal/db"
	"adaptive-quiz-backend/internal/service"
	"adaptive-quiz-backend/utilities"
)

// Services is everything the HTTP layer calls into.
type Services struct {
	Auth     service.AuthService
	User     service.UserService
	Progress service.ProgressService
	Category service.CategoryService
	Skill    service.SkillService
	Question service.QuestionService
	Answer   service.AnswerService
	Executor *db.QueryExecutor

	// QuestionLimiter throttles generation per learner. Nil disables it.
	QuestionLimiter gin.HandlerFunc
}

func RegisterRoutes(r gin.IRouter, s Services) {
	r.GET("/healthz", NewHealthController(s.Executor).Check)

	// Auth routes.
	authCtrl := NewAuthController(s.Auth)
	authRoutes := r.Group("/auth")
	{
		authRoutes.POST("/register", authCtrl.Register)
		authRoutes.POST("/login", authCtrl.Login)
		authRoutes.POST("/refresh", authCtrl.Refresh)
	}

	secured := r.Group("/", utilities.AuthMiddleware())
	admin := secured.Group("/", utilities.RequireAdmin())

	// Catalog routes.
	categoryCtrl := NewCategoryController(s.Category, s.Skill)
	secured.GET("/categories", categoryCtrl.List)
	secured.GET("/categories/:id", categoryCtrl.Get)
	secured.GET("/categories/:id/skills", categoryCtrl.Skills)
	admin.POST("/categories", categoryCtrl.Create)
	admin.PUT("/categories/:id", categoryCtrl.Update)
	admin.DELETE("/categories/:id", categoryCtrl.Delete)

	skillCtrl := NewSkillController(s.Skill)
	secured.GET("/skills", skillCtrl.List)
	secured.GET("/skills/:id", skillCtrl.Get)
	secured.GET("/skills/category/:categoryId", skillCtrl.ByCategory)
	admin.POST("/skills", skillCtrl.Create)
	admin.PUT("/skills/:id", skillCtrl.Update)
	admin.DELETE("/skills/:id", skillCtrl.Delete)
	admin.POST("/skills/:id/calibrate", skillCtrl.Calibrate)

	// Quiz routes.
	questionCtrl := NewQuestionController(s.Question)
	generate := []gin.HandlerFunc{questionCtrl.Generate}
	if s.QuestionLimiter != nil {
		generate = append([]gin.HandlerFunc{s.QuestionLimiter}, generate...)
	}
	secured.GET("/questions", generate...)
	secured.GET("/questions/history", questionCtrl.History)

	answerCtrl := NewAnswerController(s.Answer)
	secured.POST("/answers", answerCtrl.Submit)

	// User routes.
	userCtrl := NewUserController(s.User, s.Progress, s.Auth)
	secured.GET("/users/me", userCtrl.Me)
	secured.GET("/users/me/skill-levels", userCtrl.SkillLevels)
	secured.GET("/users/me/report", userCtrl.Report)
	secured.GET("/users/me/report.pdf", userCtrl.ReportPDF)
	admin.GET("/users", userCtrl.GetAllUsers)
	admin.POST("/users", userCtrl.CreateUser)
	admin.GET("/users/:id", userCtrl.GetUser)
	admin.PUT("/users/:id", userCtrl.UpdateUser)
	admin.DELETE("/users/:id", userCtrl.DeleteUser)
}
