package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mbaye/projecthub/models"
	"github.com/mbaye/projecthub/utils"
)

// AdminController handles account validation and platform administration.
type AdminController struct {
	db *gorm.DB
}

// NewAdminController creates a new AdminController instance.
func NewAdminController(db *gorm.DB) *AdminController {
	return &AdminController{db: db}
}

// ListUsers returns paginated accounts, filterable by validation status and role.
func (a *AdminController) ListUsers(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))

	query := a.db.Model(&models.User{})
	switch strings.TrimSpace(ctx.Query("status")) {
	case "pending":
		query = query.Where("validated = ?", false)
	case "validated":
		query = query.Where("validated = ?", true)
	}
	if role := strings.TrimSpace(ctx.Query("role")); role != "" {
		query = query.Where("role = ?", role)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to count users")
		return
	}

	var users []models.User
	if err := query.Order("created_at DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&users).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to list users")
		return
	}

	utils.Success(ctx, gin.H{
		"items": users,
		"pagination": gin.H{
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": int((total + int64(pageSize) - 1) / int64(pageSize)),
		},
	})
}

// ValidateUser approves a pending account and notifies the owner by email.
// The notification is best-effort; a mail failure never blocks validation.
func (a *AdminController) ValidateUser(ctx *gin.Context) {
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40030, "missing or invalid user id")
		return
	}

	var user models.User
	if err := a.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40430, "user not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50032, "failed to load user")
		return
	}
	if user.Validated {
		utils.Success(ctx, gin.H{"message": "account already validated", "user": user})
		return
	}

	user.Validated = true
	if err := a.db.Save(&user).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50033, "failed to validate account")
		return
	}

	if err := utils.SendMail(
		user.Email,
		"Your ProjectHub account has been approved",
		fmt.Sprintf("Hello %s,\n\nYour %s account has been validated. You can now sign in.\n", user.Name, user.Role),
	); err != nil {
		logWarnf("validation email to %s failed: %v", user.Email, err)
	}

	utils.Success(ctx, gin.H{"message": "account validated", "user": user})
}

// DeleteUser rejects or removes an account. Admin accounts cannot be removed.
func (a *AdminController) DeleteUser(ctx *gin.Context) {
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40030, "missing or invalid user id")
		return
	}
	adminID, _ := getUserID(ctx)
	if id == adminID {
		utils.Error(ctx, http.StatusBadRequest, 40031, "cannot delete your own account")
		return
	}

	var user models.User
	if err := a.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40430, "user not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50032, "failed to load user")
		return
	}
	if user.Role == models.RoleAdmin {
		utils.Error(ctx, http.StatusForbidden, 40330, "admin accounts cannot be removed")
		return
	}

	if err := a.db.Delete(&user).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50034, "failed to delete user")
		return
	}
	utils.Success(ctx, gin.H{"message": "user deleted"})
}

// Stats returns platform counters for the admin dashboard.
func (a *AdminController) Stats(ctx *gin.Context) {
	type counter struct {
		model interface{}
		where []interface{}
		dest  *int64
	}

	var teachers, students, pending, classes, projects, tasks, attachments int64
	counters := []counter{
		{&models.User{}, []interface{}{"role = ?", models.RoleTeacher}, &teachers},
		{&models.User{}, []interface{}{"role = ?", models.RoleStudent}, &students},
		{&models.User{}, []interface{}{"validated = ?", false}, &pending},
		{&models.Class{}, nil, &classes},
		{&models.Project{}, nil, &projects},
		{&models.Task{}, nil, &tasks},
		{&models.Attachment{}, nil, &attachments},
	}
	for _, c := range counters {
		q := a.db.Model(c.model)
		if len(c.where) > 0 {
			q = q.Where(c.where[0], c.where[1:]...)
		}
		if err := q.Count(c.dest).Error; err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50035, "failed to compute stats")
			return
		}
	}

	utils.Success(ctx, gin.H{
		"teachers":      teachers,
		"students":      students,
		"pending_users": pending,
		"classes":       classes,
		"projects":      projects,
		"tasks":         tasks,
		"attachments":   attachments,
	})
}
