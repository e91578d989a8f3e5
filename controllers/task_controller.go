package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mbaye/projecthub/models"
	"github.com/mbaye/projecthub/storage"
	"github.com/mbaye/projecthub/utils"
)

// TaskController manages project tasks and their student assignments.
type TaskController struct {
	db    *gorm.DB
	store storage.BlobStore
}

// NewTaskController creates a new TaskController instance.
func NewTaskController(db *gorm.DB, store storage.BlobStore) *TaskController {
	return &TaskController{db: db, store: store}
}

// CreateTask handles POST /projects/:id/tasks (owner teacher, multipart).
func (t *TaskController) CreateTask(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	projectID, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40054, "missing or invalid project id")
		return
	}

	var project models.Project
	err := t.db.First(&project, projectID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.Error(ctx, http.StatusNotFound, 40450, "project not found")
		return
	}
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50058, "failed to load project")
		return
	}
	if project.TeacherID != userID {
		utils.Error(ctx, http.StatusForbidden, 40352, "you do not own this project")
		return
	}

	title := utils.Sanitize(strings.TrimSpace(ctx.PostForm("title")))
	if title == "" {
		utils.Error(ctx, http.StatusBadRequest, 40060, "title cannot be empty")
		return
	}

	dueDate, ok := parseOptionalTime(ctx.PostForm("due_date"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40061, "invalid due date, expected RFC3339")
		return
	}

	var studentID *uint
	if raw := strings.TrimSpace(ctx.PostForm("student_id")); raw != "" {
		sid64, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || sid64 == 0 {
			utils.Error(ctx, http.StatusBadRequest, 40062, "invalid student id")
			return
		}
		sid := uint(sid64)
		if !t.studentInClass(ctx, sid, project.ClassID) {
			return
		}
		studentID = &sid
	}

	files := formFiles(ctx)
	if msg := validateUploadBatch(files); msg != "" {
		utils.Error(ctx, http.StatusBadRequest, 40063, msg)
		return
	}

	task := models.Task{
		ProjectID:   project.ID,
		StudentID:   studentID,
		Title:       title,
		Description: utils.Sanitize(ctx.PostForm("description")),
		Status:      models.TaskStatusTodo,
		DueDate:     dueDate,
	}
	if err := t.db.Create(&task).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50060, "failed to create task")
		return
	}

	succeeded, failed := processUploadBatch(ctx.Request.Context(), t.db, t.store, models.EntityTask, task.ID, files)
	task.Attachments = succeeded

	data := gin.H{"task": task}
	if len(failed) > 0 {
		data["errors"] = failureMessages(failed)
	}
	utils.Created(ctx, "task created", data)
}

// ListProjectTasks handles GET /projects/:id/tasks for anyone who can see the
// project.
func (t *TaskController) ListProjectTasks(ctx *gin.Context) {
	// project visibility carries the same rules as GetProject
	pc := &ProjectController{db: t.db, store: t.store}
	project, ok := pc.visibleProject(ctx)
	if !ok {
		return
	}

	var tasks []models.Task
	if err := t.db.Where("project_id = ?", project.ID).Order("created_at ASC").Find(&tasks).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50061, "failed to list tasks")
		return
	}
	utils.Success(ctx, gin.H{"tasks": tasks})
}

// ListAssignedTasks handles GET /tasks/assigned for students.
func (t *TaskController) ListAssignedTasks(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var tasks []models.Task
	if err := t.db.Where("student_id = ?", userID).Preload("Project").
		Order("due_date IS NULL, due_date ASC").Find(&tasks).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50062, "failed to list assigned tasks")
		return
	}
	utils.Success(ctx, gin.H{"tasks": tasks})
}

// GetTask returns one task with its attachments.
func (t *TaskController) GetTask(ctx *gin.Context) {
	task, _, ok := t.visibleTask(ctx)
	if !ok {
		return
	}
	atts, err := models.AttachmentsByEntity(t.db, models.EntityTask, task.ID)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50063, "failed to load attachments")
		return
	}
	task.Attachments = atts
	utils.Success(ctx, gin.H{"task": task})
}

// UpdateTask handles PUT /tasks/:id. The owning teacher may change any field;
// the assigned student may only move the status.
func (t *TaskController) UpdateTask(ctx *gin.Context) {
	task, ownerID, ok := t.visibleTask(ctx)
	if !ok {
		return
	}
	userID, _ := getUserID(ctx)

	var req struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Status      *string `json:"status"`
		StudentID   *uint   `json:"student_id"`
		DueDate     *string `json:"due_date"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40064, "invalid request payload")
		return
	}

	isOwner := ownerID == userID
	isAssignee := task.StudentID != nil && *task.StudentID == userID
	if !isOwner && !isAssignee {
		utils.Error(ctx, http.StatusForbidden, 40360, "you cannot modify this task")
		return
	}
	if !isOwner && (req.Title != nil || req.Description != nil || req.StudentID != nil || req.DueDate != nil) {
		utils.Error(ctx, http.StatusForbidden, 40361, "students may only update the status")
		return
	}

	if req.Status != nil {
		status := strings.TrimSpace(*req.Status)
		if !models.ValidTaskStatus(status) {
			utils.Error(ctx, http.StatusBadRequest, 40065, "invalid task status")
			return
		}
		task.Status = status
	}
	if req.Title != nil {
		title := utils.Sanitize(strings.TrimSpace(*req.Title))
		if title == "" {
			utils.Error(ctx, http.StatusBadRequest, 40060, "title cannot be empty")
			return
		}
		task.Title = title
	}
	if req.Description != nil {
		task.Description = utils.Sanitize(*req.Description)
	}
	if req.StudentID != nil {
		if *req.StudentID == 0 {
			task.StudentID = nil
		} else {
			var project models.Project
			if err := t.db.First(&project, task.ProjectID).Error; err != nil {
				utils.Error(ctx, http.StatusInternalServerError, 50058, "failed to load project")
				return
			}
			if !t.studentInClass(ctx, *req.StudentID, project.ClassID) {
				return
			}
			task.StudentID = req.StudentID
		}
	}
	if req.DueDate != nil {
		due, ok := parseOptionalTime(*req.DueDate)
		if !ok {
			utils.Error(ctx, http.StatusBadRequest, 40061, "invalid due date, expected RFC3339")
			return
		}
		task.DueDate = due
	}

	if err := t.db.Save(task).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50064, "failed to update task")
		return
	}
	utils.Success(ctx, gin.H{"task": task})
}

// DeleteTask handles DELETE /tasks/:id (owner teacher). The task's blobs get
// a best-effort remote delete before the row goes.
func (t *TaskController) DeleteTask(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40066, "missing or invalid task id")
		return
	}

	ownerID, err := models.ResolveOwner(t.db, models.EntityTask, id)
	if errors.Is(err, models.ErrEntityNotFound) {
		utils.Error(ctx, http.StatusNotFound, 40460, "task not found")
		return
	}
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50065, "failed to load task")
		return
	}
	if ownerID != userID {
		utils.Error(ctx, http.StatusForbidden, 40360, "you cannot modify this task")
		return
	}

	removeEntityBlobs(ctx.Request.Context(), t.db, t.store, models.EntityTask, id)

	if err := t.db.Delete(&models.Task{ID: id}).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50066, "failed to delete task")
		return
	}
	utils.Success(ctx, gin.H{"message": "task deleted"})
}

// visibleTask loads a task and its resolved owner, allowing the owning
// teacher, the assigned student and students of the project's class to read it.
func (t *TaskController) visibleTask(ctx *gin.Context) (*models.Task, uint, bool) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return nil, 0, false
	}
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40066, "missing or invalid task id")
		return nil, 0, false
	}

	var task models.Task
	err := t.db.First(&task, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.Error(ctx, http.StatusNotFound, 40460, "task not found")
		return nil, 0, false
	}
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50065, "failed to load task")
		return nil, 0, false
	}

	var project models.Project
	if err := t.db.First(&project, task.ProjectID).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50058, "failed to load project")
		return nil, 0, false
	}

	switch getRole(ctx) {
	case models.RoleAdmin:
	case models.RoleTeacher:
		if project.TeacherID != userID {
			utils.Error(ctx, http.StatusForbidden, 40360, "you cannot access this task")
			return nil, 0, false
		}
	case models.RoleStudent:
		var student models.User
		if err := t.db.First(&student, userID).Error; err != nil ||
			student.ClassID == nil || *student.ClassID != project.ClassID {
			utils.Error(ctx, http.StatusForbidden, 40360, "you cannot access this task")
			return nil, 0, false
		}
	default:
		utils.Error(ctx, http.StatusForbidden, 40310, "insufficient role")
		return nil, 0, false
	}
	return &task, project.TeacherID, true
}

// studentInClass verifies the user is a validated student of the class,
// writing the error response itself when not.
func (t *TaskController) studentInClass(ctx *gin.Context, studentID, classID uint) bool {
	var student models.User
	if err := t.db.First(&student, studentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusBadRequest, 40067, "student not found")
			return false
		}
		utils.Error(ctx, http.StatusInternalServerError, 50067, "failed to load student")
		return false
	}
	if student.Role != models.RoleStudent || student.ClassID == nil || *student.ClassID != classID {
		utils.Error(ctx, http.StatusBadRequest, 40068, "user is not a student of this class")
		return false
	}
	return true
}
