package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mbaye/projecthub/models"
	"github.com/mbaye/projecthub/utils"
)

// ClassController handles class CRUD and the class-teacher assignment edges.
type ClassController struct {
	db *gorm.DB
}

// NewClassController creates a new ClassController instance.
func NewClassController(db *gorm.DB) *ClassController {
	return &ClassController{db: db}
}

// CreateClass adds a class (admin only).
func (c *ClassController) CreateClass(ctx *gin.Context) {
	var req struct {
		Name         string `json:"name" binding:"required,min=1"`
		Level        string `json:"level"`
		AcademicYear string `json:"academic_year"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid request payload")
		return
	}

	class := models.Class{
		Name:         strings.TrimSpace(req.Name),
		Level:        strings.TrimSpace(req.Level),
		AcademicYear: strings.TrimSpace(req.AcademicYear),
	}
	if err := c.db.Create(&class).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to create class")
		return
	}

	utils.InvalidateByPrefix("cache:classes:")
	utils.Created(ctx, "class created", gin.H{"class": class})
}

// ListClasses returns all classes, cached for an hour.
func (c *ClassController) ListClasses(ctx *gin.Context) {
	if b, ok := utils.CacheGetBytes("cache:classes:list"); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	var classes []models.Class
	if err := c.db.Order("name ASC").Find(&classes).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to list classes")
		return
	}

	payload := gin.H{"classes": classes}
	wrapper := utils.JSONResponse{Code: 0, Message: "success", Data: payload}
	utils.CacheSetJSON("cache:classes:list", wrapper, time.Hour)
	utils.Success(ctx, payload)
}

// GetClass returns one class with its teachers and students.
func (c *ClassController) GetClass(ctx *gin.Context) {
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40041, "missing or invalid class id")
		return
	}

	var class models.Class
	err := c.db.Preload("Teachers").Preload("Students").First(&class, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.Error(ctx, http.StatusNotFound, 40440, "class not found")
		return
	}
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50042, "failed to load class")
		return
	}
	utils.Success(ctx, gin.H{"class": class})
}

// UpdateClass updates class fields (admin only).
func (c *ClassController) UpdateClass(ctx *gin.Context) {
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40041, "missing or invalid class id")
		return
	}
	var req struct {
		Name         string `json:"name"`
		Level        string `json:"level"`
		AcademicYear string `json:"academic_year"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid request payload")
		return
	}

	var class models.Class
	if err := c.db.First(&class, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40440, "class not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50042, "failed to load class")
		return
	}

	if v := strings.TrimSpace(req.Name); v != "" {
		class.Name = v
	}
	if v := strings.TrimSpace(req.Level); v != "" {
		class.Level = v
	}
	if v := strings.TrimSpace(req.AcademicYear); v != "" {
		class.AcademicYear = v
	}
	if err := c.db.Save(&class).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50043, "failed to update class")
		return
	}

	utils.InvalidateByPrefix("cache:classes:")
	utils.Success(ctx, gin.H{"class": class})
}

// DeleteClass removes a class that has no students left (admin only).
func (c *ClassController) DeleteClass(ctx *gin.Context) {
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40041, "missing or invalid class id")
		return
	}

	var students int64
	if err := c.db.Model(&models.User{}).Where("class_id = ?", id).Count(&students).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50044, "failed to check class roster")
		return
	}
	if students > 0 {
		utils.Error(ctx, http.StatusConflict, 40940, "class still has students")
		return
	}

	res := c.db.Delete(&models.Class{}, id)
	if res.Error != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50045, "failed to delete class")
		return
	}
	if res.RowsAffected == 0 {
		utils.Error(ctx, http.StatusNotFound, 40440, "class not found")
		return
	}

	utils.InvalidateByPrefix("cache:classes:")
	utils.Success(ctx, gin.H{"message": "class deleted"})
}

// AssignTeacher attaches a validated teacher to a class (admin only).
func (c *ClassController) AssignTeacher(ctx *gin.Context) {
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40041, "missing or invalid class id")
		return
	}
	var req struct {
		TeacherID uint `json:"teacher_id" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid request payload")
		return
	}

	var class models.Class
	if err := c.db.First(&class, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40440, "class not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50042, "failed to load class")
		return
	}

	var teacher models.User
	if err := c.db.First(&teacher, req.TeacherID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40441, "teacher not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50046, "failed to load teacher")
		return
	}
	if teacher.Role != models.RoleTeacher || !teacher.Validated {
		utils.Error(ctx, http.StatusBadRequest, 40042, "user is not a validated teacher")
		return
	}

	if err := c.db.Model(&class).Association("Teachers").Append(&teacher); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50047, "failed to assign teacher")
		return
	}

	utils.InvalidateByPrefix("cache:classes:")
	utils.Success(ctx, gin.H{"message": "teacher assigned"})
}

// UnassignTeacher removes a class-teacher edge (admin only).
func (c *ClassController) UnassignTeacher(ctx *gin.Context) {
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40041, "missing or invalid class id")
		return
	}
	teacherID, ok := parseUintParam(ctx, "teacherId")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40043, "missing or invalid teacher id")
		return
	}

	var class models.Class
	if err := c.db.First(&class, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40440, "class not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50042, "failed to load class")
		return
	}

	if err := c.db.Model(&class).Association("Teachers").Delete(&models.User{ID: teacherID}); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50048, "failed to unassign teacher")
		return
	}

	utils.InvalidateByPrefix("cache:classes:")
	utils.Success(ctx, gin.H{"message": "teacher unassigned"})
}

// ListStudents returns the class roster.
func (c *ClassController) ListStudents(ctx *gin.Context) {
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40041, "missing or invalid class id")
		return
	}

	var students []models.User
	if err := c.db.Where("class_id = ? AND role = ?", id, models.RoleStudent).
		Order("name ASC").Find(&students).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50049, "failed to list students")
		return
	}
	utils.Success(ctx, gin.H{"students": students})
}
