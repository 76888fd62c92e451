package controller

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"adaptive-quiz-backend/internal/model"
	"adaptive-quiz-backend/internal/service"
)

type UserController struct {
	UserService     service.UserService
	ProgressService service.ProgressService
	AuthService     service.AuthService
}

func NewUserController(userService service.UserService, progressService service.ProgressService, authService service.AuthService) *UserController {
	return &UserController{UserService: userService, ProgressService: progressService, AuthService: authService}
}

// GetAllUsers handles GET /users (admin)
func (uc *UserController) GetAllUsers(c *gin.Context) {
	users, err := uc.UserService.GetAllUsers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// GetUser handles GET /users/:id (admin)
func (uc *UserController) GetUser(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	user, err := uc.UserService.GetUser(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// CreateUser handles POST /users (admin). Role defaults to user.
func (uc *UserController) CreateUser(c *gin.Context) {
	var in struct {
		service.RegisterInput
		Role string `json:"role"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid input")
		return
	}
	if in.Role != "" && in.Role != model.RoleUser && in.Role != model.RoleAdmin {
		badRequest(c, "role must be user or admin")
		return
	}
	user, err := uc.AuthService.Register(c.Request.Context(), in.RegisterInput, in.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// UpdateUser handles PUT /users/:id (admin)
func (uc *UserController) UpdateUser(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var in service.UserUpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid input")
		return
	}
	user, err := uc.UserService.UpdateUser(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (uc *UserController) DeleteUser(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	if err := uc.UserService.DeleteUser(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (uc *UserController) Me(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	user, err := uc.UserService.GetUser(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// SkillLevels handles GET /users/me/skill-levels
func (uc *UserController) SkillLevels(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	levels, err := uc.UserService.SkillLevels(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, levels)
}

func (uc *UserController) Report(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	report, err := uc.ProgressService.Progress(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// ReportPDF renders the progress report to memory first so a failure can
// still be answered with JSON.
func (uc *UserController) ReportPDF(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	report, err := uc.ProgressService.Progress(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := service.WriteProgressPDF(&buf, report); err != nil {
		respondError(c, fmt.Errorf("render progress pdf: %w", err))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=progress-%d.pdf", uid))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}
